package db

import (
	"database/sql"
	"testing"
	"time"

	"github.com/deemkeen/worknet/domain"
)

func putCacheEntry(t *testing.T, db *DB, uri string, expiresAt time.Time) {
	entry := &domain.RemoteActorCacheEntry{
		ActorURI:  uri,
		Document:  `{"id":"` + uri + `"}`,
		FetchedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := db.UpsertCacheEntry(entry); err != nil {
		t.Fatalf("UpsertCacheEntry failed: %v", err)
	}
}

func TestCacheUpsertPreservesHitCount(t *testing.T) {
	db := setupTestDB(t)
	uri := "https://remote.example/members/carol"
	putCacheEntry(t, db, uri, time.Now().Add(time.Hour))

	for i := 0; i < 3; i++ {
		if err := db.IncrementCacheHit(uri); err != nil {
			t.Fatalf("IncrementCacheHit failed: %v", err)
		}
	}

	// A refresh must not reset the counter.
	putCacheEntry(t, db, uri, time.Now().Add(2*time.Hour))

	err, entry := db.ReadCacheEntry(uri)
	if err != nil {
		t.Fatalf("ReadCacheEntry failed: %v", err)
	}
	if entry.HitCount != 3 {
		t.Errorf("Expected hit count 3 to survive refresh, got %d", entry.HitCount)
	}
}

func TestCacheEntryNotFound(t *testing.T) {
	db := setupTestDB(t)
	err, entry := db.ReadCacheEntry("https://nowhere.example/members/nobody")
	if err != sql.ErrNoRows {
		t.Errorf("Expected sql.ErrNoRows, got %v", err)
	}
	if entry != nil {
		t.Error("Expected nil entry")
	}
}

func TestCacheDelete(t *testing.T) {
	db := setupTestDB(t)
	uri := "https://remote.example/members/carol"
	putCacheEntry(t, db, uri, time.Now().Add(time.Hour))

	if err := db.DeleteCacheEntry(uri); err != nil {
		t.Fatalf("DeleteCacheEntry failed: %v", err)
	}
	err, _ := db.ReadCacheEntry(uri)
	if err != sql.ErrNoRows {
		t.Errorf("Expected entry gone, got %v", err)
	}

	// Deleting an absent entry is a no-op, not an error.
	if err := db.DeleteCacheEntry(uri); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

func TestReadTopCacheEntries(t *testing.T) {
	db := setupTestDB(t)

	hits := map[string]int{
		"https://a.example/members/a": 5,
		"https://b.example/members/b": 3,
		"https://c.example/members/c": 1,
	}
	for uri, count := range hits {
		putCacheEntry(t, db, uri, time.Now().Add(time.Hour))
		for i := 0; i < count; i++ {
			if err := db.IncrementCacheHit(uri); err != nil {
				t.Fatalf("IncrementCacheHit failed: %v", err)
			}
		}
	}

	err, entries := db.ReadTopCacheEntries(2)
	if err != nil {
		t.Fatalf("ReadTopCacheEntries failed: %v", err)
	}
	if len(*entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(*entries))
	}
	if (*entries)[0].ActorURI != "https://a.example/members/a" {
		t.Errorf("Expected hottest entry first, got %s", (*entries)[0].ActorURI)
	}
	if (*entries)[1].ActorURI != "https://b.example/members/b" {
		t.Errorf("Expected second-hottest entry, got %s", (*entries)[1].ActorURI)
	}
}

func TestReadCacheCounts(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()

	putCacheEntry(t, db, "https://a.example/members/a", now.Add(time.Hour))
	putCacheEntry(t, db, "https://b.example/members/b", now.Add(-time.Hour))
	putCacheEntry(t, db, "https://c.example/members/c", now.Add(-time.Minute))

	if err := db.IncrementCacheHit("https://a.example/members/a"); err != nil {
		t.Fatalf("IncrementCacheHit failed: %v", err)
	}
	if err := db.IncrementCacheHit("https://a.example/members/a"); err != nil {
		t.Fatalf("IncrementCacheHit failed: %v", err)
	}

	err, total, expired, hits := db.ReadCacheCounts(now)
	if err != nil {
		t.Fatalf("ReadCacheCounts failed: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected 3 total, got %d", total)
	}
	if expired != 2 {
		t.Errorf("Expected 2 expired, got %d", expired)
	}
	if hits != 2 {
		t.Errorf("Expected 2 hits, got %d", hits)
	}
	// Active plus expired always equals the total.
	if total-expired != 1 {
		t.Errorf("Expected 1 active, got %d", total-expired)
	}
}
