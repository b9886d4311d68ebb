package db

import (
	"database/sql"

	"github.com/deemkeen/worknet/domain"
	"time"
)

// Remote actor cache queries
const (
	sqlUpsertCacheEntry = `INSERT INTO remote_actor_cache(actor_uri, document, hit_count, fetched_at, expires_at)
						VALUES (?, ?, 0, ?, ?)
						ON CONFLICT(actor_uri) DO UPDATE SET document = excluded.document, fetched_at = excluded.fetched_at, expires_at = excluded.expires_at`
	sqlSelectCacheEntry = `SELECT actor_uri, document, hit_count, fetched_at, expires_at FROM remote_actor_cache WHERE actor_uri = ?`
	sqlIncrementCacheHit = `UPDATE remote_actor_cache SET hit_count = hit_count + 1 WHERE actor_uri = ?`
	sqlDeleteCacheEntry  = `DELETE FROM remote_actor_cache WHERE actor_uri = ?`
	sqlSelectTopCacheEntries = `SELECT actor_uri, document, hit_count, fetched_at, expires_at FROM remote_actor_cache ORDER BY hit_count DESC LIMIT ?`
	sqlSelectCacheStats      = `SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0), COALESCE(SUM(hit_count), 0) FROM remote_actor_cache`
)

// UpsertCacheEntry writes a freshly fetched document. Hit counts of an
// existing row survive the refresh.
func (db *DB) UpsertCacheEntry(entry *domain.RemoteActorCacheEntry) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertCacheEntry,
			entry.ActorURI,
			entry.Document,
			entry.FetchedAt,
			entry.ExpiresAt,
		)
		return err
	})
}

func (db *DB) ReadCacheEntry(actorURI string) (error, *domain.RemoteActorCacheEntry) {
	row := db.db.QueryRow(sqlSelectCacheEntry, actorURI)
	var entry domain.RemoteActorCacheEntry
	err := row.Scan(&entry.ActorURI, &entry.Document, &entry.HitCount, &entry.FetchedAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	return nil, &entry
}

// IncrementCacheHit bumps the hit counter as a row-level atomic update.
func (db *DB) IncrementCacheHit(actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlIncrementCacheHit, actorURI)
		return err
	})
}

func (db *DB) DeleteCacheEntry(actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteCacheEntry, actorURI)
		return err
	})
}

// ReadTopCacheEntries returns the n entries with the highest hit counts.
func (db *DB) ReadTopCacheEntries(n int) (error, *[]domain.RemoteActorCacheEntry) {
	rows, err := db.db.Query(sqlSelectTopCacheEntries, n)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var entries []domain.RemoteActorCacheEntry
	for rows.Next() {
		var entry domain.RemoteActorCacheEntry
		if err := rows.Scan(&entry.ActorURI, &entry.Document, &entry.HitCount, &entry.FetchedAt, &entry.ExpiresAt); err != nil {
			return err, &entries
		}
		entries = append(entries, entry)
	}
	if err = rows.Err(); err != nil {
		return err, &entries
	}
	return nil, &entries
}

// ReadCacheCounts returns total rows, expired rows and summed hits in one
// round trip.
func (db *DB) ReadCacheCounts(now time.Time) (error, int64, int64, int64) {
	var total, expired, hits int64
	err := db.db.QueryRow(sqlSelectCacheStats, now).Scan(&total, &expired, &hits)
	return err, total, expired, hits
}
