package db

import (
	"database/sql"

	"github.com/deemkeen/worknet/domain"
	"time"
)

// Instance health queries. Counter bumps are row-level atomic updates so
// concurrent workers never lose increments.
const (
	sqlUpsertHealthRequest = `INSERT INTO instance_health(host, request_count_24h, error_count_24h, health_score, last_seen_at, status)
						VALUES (?, 1, ?, 100, ?, 'active')
						ON CONFLICT(host) DO UPDATE SET
							request_count_24h = request_count_24h + 1,
							error_count_24h = error_count_24h + excluded.error_count_24h,
							last_seen_at = excluded.last_seen_at`
	sqlSelectHealth      = `SELECT host, request_count_24h, error_count_24h, health_score, last_seen_at, status FROM instance_health WHERE host = ?`
	sqlUpdateHealthScore = `UPDATE instance_health SET health_score = ?, status = ? WHERE host = ?`
	sqlResetDailyCounters = `UPDATE instance_health SET request_count_24h = 0, error_count_24h = 0, status = CASE WHEN status = 'rate_limited' THEN 'active' ELSE status END
						WHERE request_count_24h > 0 OR error_count_24h > 0`
	sqlCountKnownHosts = `SELECT COUNT(*) FROM instance_health`
)

// IncrementHealthCounters bumps the 24h request counter for a host, plus
// the error counter when hardError is set.
func (db *DB) IncrementHealthCounters(host string, hardError bool, now time.Time) error {
	errInc := 0
	if hardError {
		errInc = 1
	}
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpsertHealthRequest, host, errInc, now)
		return err
	})
}

func (db *DB) ReadInstanceHealth(host string) (error, *domain.InstanceHealth) {
	row := db.db.QueryRow(sqlSelectHealth, host)
	var health domain.InstanceHealth
	var status string
	err := row.Scan(&health.Host, &health.RequestCount24, &health.ErrorCount24, &health.HealthScore, &health.LastSeenAt, &status)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	health.Status = domain.InstanceStatus(status)
	return nil, &health
}

func (db *DB) UpdateHealthScore(host string, score float64, status domain.InstanceStatus) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlUpdateHealthScore, score, string(status), host)
		return err
	})
}

// ResetDailyHealthCounters zeroes the 24h counters, touching only rows
// that actually have counts. Returns the number of reset rows.
func (db *DB) ResetDailyHealthCounters() (error, int64) {
	var reset int64
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlResetDailyCounters)
		if err != nil {
			return err
		}
		reset, err = res.RowsAffected()
		return err
	})
	return err, reset
}

// CountKnownHosts returns the number of remote hosts this server has
// exchanged requests with.
func (db *DB) CountKnownHosts() (error, int64) {
	var count int64
	err := db.db.QueryRow(sqlCountKnownHosts).Scan(&count)
	return err, count
}
