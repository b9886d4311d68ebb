package db

import (
	"database/sql"

	"github.com/deemkeen/worknet/domain"
	"github.com/google/uuid"
)

// Alert and request log queries
const (
	sqlInsertAlert      = `INSERT INTO federation_alerts(id, alert_type, message, acknowledged, created_at) VALUES (?, ?, ?, 0, ?)`
	sqlSelectAlerts     = `SELECT id, alert_type, message, acknowledged, created_at FROM federation_alerts ORDER BY created_at DESC LIMIT ?`
	sqlAcknowledgeAlert = `UPDATE federation_alerts SET acknowledged = 1 WHERE id = ?`

	sqlInsertRequestLog = `INSERT INTO federation_request_log(id, host, method, target_uri, status_code, success, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	sqlInsertActivity      = `INSERT INTO activities(id, activity_uri, activity_type, actor_uri, raw_json, local, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActivityByURI = `SELECT id, activity_uri, activity_type, actor_uri, raw_json, local, created_at FROM activities WHERE activity_uri = ?`
	sqlCountLocalActivities = `SELECT COUNT(*) FROM activities WHERE local = 1`
)

func (db *DB) CreateAlert(alert *domain.FederationAlert) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertAlert, alert.Id.String(), alert.AlertType, alert.Message, alert.CreatedAt)
		return err
	})
}

func (db *DB) ReadRecentAlerts(limit int) (error, *[]domain.FederationAlert) {
	rows, err := db.db.Query(sqlSelectAlerts, limit)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var alerts []domain.FederationAlert
	for rows.Next() {
		var alert domain.FederationAlert
		var idStr string
		if err := rows.Scan(&idStr, &alert.AlertType, &alert.Message, &alert.Acknowledged, &alert.CreatedAt); err != nil {
			return err, &alerts
		}
		alert.Id, _ = uuid.Parse(idStr)
		alerts = append(alerts, alert)
	}
	if err = rows.Err(); err != nil {
		return err, &alerts
	}
	return nil, &alerts
}

func (db *DB) AcknowledgeAlert(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlAcknowledgeAlert, id.String())
		return err
	})
}

func (db *DB) CreateRequestLog(entry *domain.FederationRequestLog) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertRequestLog,
			entry.Id.String(),
			entry.Host,
			entry.Method,
			entry.TargetURI,
			entry.StatusCode,
			entry.Success,
			entry.Error,
			entry.CreatedAt,
		)
		return err
	})
}

// CreateActivityRecord stores an activity for dedup and audit. Duplicate
// activity URIs are rejected by the unique index.
func (db *DB) CreateActivityRecord(record *domain.ActivityRecord) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActivity,
			record.Id.String(),
			record.ActivityURI,
			record.ActivityType,
			record.ActorURI,
			record.RawJSON,
			record.Local,
			record.CreatedAt,
		)
		return err
	})
}

// HasActivity reports whether an activity URI was already seen.
func (db *DB) HasActivity(activityURI string) (error, bool) {
	row := db.db.QueryRow(sqlSelectActivityByURI, activityURI)
	var record domain.ActivityRecord
	var idStr string
	err := row.Scan(&idStr, &record.ActivityURI, &record.ActivityType, &record.ActorURI, &record.RawJSON, &record.Local, &record.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		return err, false
	}
	return nil, true
}

func (db *DB) CountLocalActivities() (error, int64) {
	var count int64
	err := db.db.QueryRow(sqlCountLocalActivities).Scan(&count)
	return err, count
}
