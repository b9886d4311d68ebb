package db

import (
	"database/sql"

	"time"
)

// Retention queries. Every category comes as a count/delete pair with the
// same WHERE clause so a dry run reports exactly what a live run removes.
const (
	sqlCountExpiredCache  = `SELECT COUNT(*) FROM remote_actor_cache WHERE expires_at <= ?`
	sqlDeleteExpiredCache = `DELETE FROM remote_actor_cache WHERE expires_at <= ?`

	sqlCountProcessedDeliveries  = `SELECT COUNT(*) FROM delivery_queue WHERE status IN ('processed', 'dead') AND completed_at <= ?`
	sqlDeleteProcessedDeliveries = `DELETE FROM delivery_queue WHERE status IN ('processed', 'dead') AND completed_at <= ?`

	sqlCountOldRequestLogs  = `SELECT COUNT(*) FROM federation_request_log WHERE created_at <= ?`
	sqlDeleteOldRequestLogs = `DELETE FROM federation_request_log WHERE created_at <= ?`

	sqlCountAcknowledgedAlerts  = `SELECT COUNT(*) FROM federation_alerts WHERE acknowledged = 1 AND created_at <= ?`
	sqlDeleteAcknowledgedAlerts = `DELETE FROM federation_alerts WHERE acknowledged = 1 AND created_at <= ?`

	sqlCountOldActivities  = `SELECT COUNT(*) FROM activities WHERE created_at <= ?`
	sqlDeleteOldActivities = `DELETE FROM activities WHERE created_at <= ?`

	sqlCountStaleHealthRows = `SELECT COUNT(*) FROM instance_health WHERE request_count_24h > 0 OR error_count_24h > 0`
)

func (db *DB) CountExpiredCacheEntries(now time.Time) (error, int64) {
	return db.countRows(sqlCountExpiredCache, now)
}

func (db *DB) DeleteExpiredCacheEntries(now time.Time) (error, int64) {
	return db.deleteRows(sqlDeleteExpiredCache, now)
}

func (db *DB) CountCompletedDeliveriesBefore(cutoff time.Time) (error, int64) {
	return db.countRows(sqlCountProcessedDeliveries, cutoff)
}

func (db *DB) DeleteCompletedDeliveriesBefore(cutoff time.Time) (error, int64) {
	return db.deleteRows(sqlDeleteProcessedDeliveries, cutoff)
}

func (db *DB) CountRequestLogsBefore(cutoff time.Time) (error, int64) {
	return db.countRows(sqlCountOldRequestLogs, cutoff)
}

func (db *DB) DeleteRequestLogsBefore(cutoff time.Time) (error, int64) {
	return db.deleteRows(sqlDeleteOldRequestLogs, cutoff)
}

func (db *DB) CountAcknowledgedAlertsBefore(cutoff time.Time) (error, int64) {
	return db.countRows(sqlCountAcknowledgedAlerts, cutoff)
}

func (db *DB) DeleteAcknowledgedAlertsBefore(cutoff time.Time) (error, int64) {
	return db.deleteRows(sqlDeleteAcknowledgedAlerts, cutoff)
}

func (db *DB) CountActivitiesBefore(cutoff time.Time) (error, int64) {
	return db.countRows(sqlCountOldActivities, cutoff)
}

func (db *DB) DeleteActivitiesBefore(cutoff time.Time) (error, int64) {
	return db.deleteRows(sqlDeleteOldActivities, cutoff)
}

// CountResettableHealthRows reports how many host rows a daily counter
// reset would touch.
func (db *DB) CountResettableHealthRows() (error, int64) {
	var count int64
	err := db.db.QueryRow(sqlCountStaleHealthRows).Scan(&count)
	return err, count
}

func (db *DB) countRows(query string, args ...interface{}) (error, int64) {
	var count int64
	err := db.db.QueryRow(query, args...).Scan(&count)
	return err, count
}

func (db *DB) deleteRows(query string, args ...interface{}) (error, int64) {
	var deleted int64
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return err, deleted
}
