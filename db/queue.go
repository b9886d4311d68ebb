package db

import (
	"database/sql"
	"fmt"

	"github.com/deemkeen/worknet/domain"
	"github.com/google/uuid"
	"time"
)

// Delivery queue queries
const (
	sqlInsertQueueItem = `INSERT INTO delivery_queue(id, actor_id, target_host, shard, inbox_uri, activity_json, status, attempts, next_retry_at, created_at)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectQueueColumns = `SELECT id, actor_id, target_host, shard, inbox_uri, activity_json, status, attempts, last_error, next_retry_at, created_at, claimed_at, completed_at FROM delivery_queue`
	sqlSelectClaimable    = sqlSelectQueueColumns + ` WHERE shard = ? AND status = 'pending' AND next_retry_at <= ? ORDER BY created_at ASC LIMIT ?`
	sqlSelectQueueItem    = sqlSelectQueueColumns + ` WHERE id = ?`

	// The claim is the only contended write in the engine. It succeeds only
	// while the row is still pending, so concurrent claimers get exactly one
	// winner via RowsAffected.
	sqlClaimQueueItem = `UPDATE delivery_queue SET status = 'processing', claimed_at = ? WHERE id = ? AND status = 'pending'`

	sqlMarkProcessed = `UPDATE delivery_queue SET status = 'processed', completed_at = ? WHERE id = ? AND status = 'processing'`
	sqlMarkFailed    = `UPDATE delivery_queue SET status = 'failed', attempts = ?, last_error = ?, next_retry_at = ? WHERE id = ? AND status = 'processing'`
	sqlMarkDead      = `UPDATE delivery_queue SET status = 'dead', last_error = ?, completed_at = ? WHERE id = ? AND status IN ('pending', 'processing', 'failed')`
	sqlReleaseRetry  = `UPDATE delivery_queue SET status = 'pending' WHERE shard = ? AND status = 'failed' AND next_retry_at <= ?`
	sqlReclaimStale  = `UPDATE delivery_queue SET status = 'failed', last_error = 'stale claim reclaimed', next_retry_at = ? WHERE shard = ? AND status = 'processing' AND claimed_at <= ?`
	sqlDeferPending  = `UPDATE delivery_queue SET next_retry_at = ? WHERE id = ? AND status = 'pending'`

	sqlCountQueueByStatus = `SELECT COUNT(*) FROM delivery_queue WHERE status = ?`
)

func (db *DB) EnqueueDelivery(item *domain.OutboundQueueItem) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertQueueItem,
			item.Id.String(),
			item.ActorId.String(),
			item.TargetHost,
			item.Shard,
			item.InboxURI,
			item.ActivityJSON,
			string(item.Status),
			item.Attempts,
			item.NextRetryAt,
			item.CreatedAt,
		)
		return err
	})
}

// ReadClaimableDeliveries returns pending items of one shard that are due.
func (db *DB) ReadClaimableDeliveries(shard int, limit int) (error, *[]domain.OutboundQueueItem) {
	rows, err := db.db.Query(sqlSelectClaimable, shard, time.Now(), limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var items []domain.OutboundQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return err, &items
		}
		items = append(items, *item)
	}
	if err = rows.Err(); err != nil {
		return err, &items
	}
	return nil, &items
}

func (db *DB) ReadDelivery(id uuid.UUID) (error, *domain.OutboundQueueItem) {
	rows, err := db.db.Query(sqlSelectQueueItem, id.String())
	if err != nil {
		return err, nil
	}
	defer rows.Close()
	if !rows.Next() {
		return sql.ErrNoRows, nil
	}
	item, err := scanQueueItem(rows)
	if err != nil {
		return err, nil
	}
	return nil, item
}

// ClaimDelivery atomically moves a pending item to processing. The second
// return value reports whether this caller won the claim.
func (db *DB) ClaimDelivery(id uuid.UUID) (error, bool) {
	res, err := db.db.Exec(sqlClaimQueueItem, time.Now(), id.String())
	if err != nil {
		return err, false
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err, false
	}
	return nil, n == 1
}

func (db *DB) MarkDeliveryProcessed(id uuid.UUID) error {
	return db.conditionalQueueUpdate(sqlMarkProcessed, time.Now(), id.String())
}

func (db *DB) MarkDeliveryFailed(id uuid.UUID, attempts int, lastError string, nextRetryAt time.Time) error {
	return db.conditionalQueueUpdate(sqlMarkFailed, attempts, lastError, nextRetryAt, id.String())
}

func (db *DB) MarkDeliveryDead(id uuid.UUID, reason string) error {
	return db.conditionalQueueUpdate(sqlMarkDead, reason, time.Now(), id.String())
}

// ReleaseRetryableDeliveries moves failed items whose backoff has elapsed
// back to pending. Returns the number of released items.
func (db *DB) ReleaseRetryableDeliveries(shard int) (error, int64) {
	var released int64
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlReleaseRetry, shard, time.Now())
		if err != nil {
			return err
		}
		released, err = res.RowsAffected()
		return err
	})
	return err, released
}

// ReclaimStaleDeliveries moves processing items claimed before the given
// cutoff to failed, so the release pass picks them up again. Covers
// workers that died between claiming and completing an item. The attempt
// count is untouched, an interrupted attempt never completed.
func (db *DB) ReclaimStaleDeliveries(shard int, claimedBefore time.Time) (error, int64) {
	var reclaimed int64
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlReclaimStale, time.Now(), shard, claimedBefore)
		if err != nil {
			return err
		}
		reclaimed, err = res.RowsAffected()
		return err
	})
	return err, reclaimed
}

// DeferPendingDelivery pushes the retry time of a still-pending item
// forward without touching its attempt count.
func (db *DB) DeferPendingDelivery(id uuid.UUID, nextRetryAt time.Time) error {
	return db.conditionalQueueUpdate(sqlDeferPending, nextRetryAt, id.String())
}

func (db *DB) CountDeliveriesByStatus(status domain.DeliveryStatus) (error, int64) {
	var count int64
	err := db.db.QueryRow(sqlCountQueueByStatus, string(status)).Scan(&count)
	return err, count
}

func (db *DB) conditionalQueueUpdate(query string, args ...interface{}) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("queue item not in expected status for update")
		}
		return nil
	})
}

func scanQueueItem(rows *sql.Rows) (*domain.OutboundQueueItem, error) {
	var item domain.OutboundQueueItem
	var idStr, actorIdStr, status string
	var lastError sql.NullString
	var claimedAt, completedAt sql.NullTime
	err := rows.Scan(
		&idStr,
		&actorIdStr,
		&item.TargetHost,
		&item.Shard,
		&item.InboxURI,
		&item.ActivityJSON,
		&status,
		&item.Attempts,
		&lastError,
		&item.NextRetryAt,
		&item.CreatedAt,
		&claimedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Id, _ = uuid.Parse(idStr)
	item.ActorId, _ = uuid.Parse(actorIdStr)
	item.Status = domain.DeliveryStatus(status)
	item.LastError = lastError.String
	if claimedAt.Valid {
		item.ClaimedAt = &claimedAt.Time
	}
	if completedAt.Valid {
		item.CompletedAt = &completedAt.Time
	}
	return &item, nil
}
