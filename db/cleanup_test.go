package db

import (
	"testing"
	"time"

	"github.com/deemkeen/worknet/domain"
	"github.com/google/uuid"
)

// seedRetentionFixture writes rows on both sides of each retention cutoff.
func seedRetentionFixture(t *testing.T, db *DB, now time.Time) {
	old := now.Add(-48 * time.Hour)
	fresh := now.Add(-time.Hour)

	putCacheEntry(t, db, "https://old.example/members/a", old)
	putCacheEntry(t, db, "https://fresh.example/members/b", now.Add(time.Hour))

	actor := createTestActor(t, db, "alice", false)
	done := enqueueTestItem(t, db, actor, "done.example")
	if err, won := db.ClaimDelivery(done.Id); err != nil || !won {
		t.Fatalf("ClaimDelivery failed: %v", err)
	}
	if err := db.MarkDeliveryProcessed(done.Id); err != nil {
		t.Fatalf("MarkDeliveryProcessed failed: %v", err)
	}
	// Still pending, must never be purged.
	enqueueTestItem(t, db, actor, "pending.example")

	for _, createdAt := range []time.Time{old, fresh} {
		if err := db.CreateRequestLog(&domain.FederationRequestLog{
			Id:        uuid.New(),
			Host:      "remote.example",
			Method:    "POST",
			TargetURI: "https://remote.example/inbox",
			Success:   true,
			CreatedAt: createdAt,
		}); err != nil {
			t.Fatalf("CreateRequestLog failed: %v", err)
		}
	}

	acked := &domain.FederationAlert{Id: uuid.New(), AlertType: "delivery_dead_letter", Message: "old", CreatedAt: old}
	if err := db.CreateAlert(acked); err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}
	if err := db.AcknowledgeAlert(acked.Id); err != nil {
		t.Fatalf("AcknowledgeAlert failed: %v", err)
	}
	// Old but unacknowledged, stays.
	if err := db.CreateAlert(&domain.FederationAlert{Id: uuid.New(), AlertType: "delivery_dead_letter", Message: "unseen", CreatedAt: old}); err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}

	for i, createdAt := range []time.Time{old, fresh} {
		if err := db.CreateActivityRecord(&domain.ActivityRecord{
			Id:           uuid.New(),
			ActivityURI:  "https://remote.example/activities/" + string(rune('a'+i)),
			ActivityType: "Create",
			ActorURI:     "https://remote.example/members/carol",
			RawJSON:      "{}",
			CreatedAt:    createdAt,
		}); err != nil {
			t.Fatalf("CreateActivityRecord failed: %v", err)
		}
	}
}

// Dry-run parity: a count must predict exactly what the matching delete
// removes.
func TestRetentionCountDeleteParity(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	cutoff := now.Add(-24 * time.Hour)
	seedRetentionFixture(t, db, now)

	cases := []struct {
		name   string
		count  func() (error, int64)
		purge  func() (error, int64)
		expect int64
	}{
		{"expired_cache", func() (error, int64) { return db.CountExpiredCacheEntries(now) },
			func() (error, int64) { return db.DeleteExpiredCacheEntries(now) }, 1},
		{"completed_deliveries", func() (error, int64) { return db.CountCompletedDeliveriesBefore(now.Add(time.Second)) },
			func() (error, int64) { return db.DeleteCompletedDeliveriesBefore(now.Add(time.Second)) }, 1},
		{"request_logs", func() (error, int64) { return db.CountRequestLogsBefore(cutoff) },
			func() (error, int64) { return db.DeleteRequestLogsBefore(cutoff) }, 1},
		{"acknowledged_alerts", func() (error, int64) { return db.CountAcknowledgedAlertsBefore(cutoff) },
			func() (error, int64) { return db.DeleteAcknowledgedAlertsBefore(cutoff) }, 1},
		{"activities", func() (error, int64) { return db.CountActivitiesBefore(cutoff) },
			func() (error, int64) { return db.DeleteActivitiesBefore(cutoff) }, 1},
	}

	for _, tc := range cases {
		err, counted := tc.count()
		if err != nil {
			t.Fatalf("%s: count failed: %v", tc.name, err)
		}
		if counted != tc.expect {
			t.Errorf("%s: expected count %d, got %d", tc.name, tc.expect, counted)
		}

		err, deleted := tc.purge()
		if err != nil {
			t.Fatalf("%s: delete failed: %v", tc.name, err)
		}
		if deleted != counted {
			t.Errorf("%s: count %d did not match deleted %d", tc.name, counted, deleted)
		}

		// Nothing left behind for the same cutoff.
		err, remaining := tc.count()
		if err != nil {
			t.Fatalf("%s: recount failed: %v", tc.name, err)
		}
		if remaining != 0 {
			t.Errorf("%s: expected 0 remaining, got %d", tc.name, remaining)
		}
	}
}

func TestRetentionSparesLiveRows(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	seedRetentionFixture(t, db, now)

	if err, _ := db.DeleteCompletedDeliveriesBefore(now.Add(time.Second)); err != nil {
		t.Fatalf("DeleteCompletedDeliveriesBefore failed: %v", err)
	}
	err, pending := db.CountDeliveriesByStatus(domain.DeliveryPending)
	if err != nil {
		t.Fatalf("CountDeliveriesByStatus failed: %v", err)
	}
	if pending != 1 {
		t.Errorf("Pending delivery must survive cleanup, got %d", pending)
	}

	cutoff := now.Add(-24 * time.Hour)
	if err, _ := db.DeleteAcknowledgedAlertsBefore(cutoff); err != nil {
		t.Fatalf("DeleteAcknowledgedAlertsBefore failed: %v", err)
	}
	err, alerts := db.ReadRecentAlerts(10)
	if err != nil {
		t.Fatalf("ReadRecentAlerts failed: %v", err)
	}
	if len(*alerts) != 1 {
		t.Fatalf("Expected 1 surviving alert, got %d", len(*alerts))
	}
	if (*alerts)[0].Acknowledged {
		t.Error("Unacknowledged alert should have survived")
	}
}

func TestCountResettableHealthRows(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	if err := db.IncrementHealthCounters("a.example", false, now); err != nil {
		t.Fatalf("IncrementHealthCounters failed: %v", err)
	}
	if err := db.IncrementHealthCounters("b.example", true, now); err != nil {
		t.Fatalf("IncrementHealthCounters failed: %v", err)
	}

	err, count := db.CountResettableHealthRows()
	if err != nil {
		t.Fatalf("CountResettableHealthRows failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 resettable rows, got %d", count)
	}

	if err, _ := db.ResetDailyHealthCounters(); err != nil {
		t.Fatalf("ResetDailyHealthCounters failed: %v", err)
	}
	err, count = db.CountResettableHealthRows()
	if err != nil {
		t.Fatalf("CountResettableHealthRows failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 resettable rows after reset, got %d", count)
	}
}
