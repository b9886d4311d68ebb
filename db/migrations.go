package db

import (
	"database/sql"
	"log"
)

// SQL for the federation engine tables
const (
	// Server-wide signing keys, rotated by superseding
	sqlCreateServerKeysTable = `CREATE TABLE IF NOT EXISTS server_keys (
		id TEXT NOT NULL PRIMARY KEY,
		public_key_pem TEXT NOT NULL,
		private_key_pem TEXT NOT NULL,
		is_current INTEGER DEFAULT 0,
		revoked INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Outbound delivery queue, sharded by target host
	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		actor_id TEXT NOT NULL,
		target_host TEXT NOT NULL,
		shard INTEGER NOT NULL,
		inbox_uri TEXT NOT NULL,
		activity_json TEXT NOT NULL,
		status TEXT DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		last_error TEXT,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		claimed_at TIMESTAMP,
		completed_at TIMESTAMP
	)`

	sqlCreateDeliveryQueueIndices = `
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_shard_status ON delivery_queue(shard, status, next_retry_at);
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_status ON delivery_queue(status);
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_target_host ON delivery_queue(target_host);
	`

	// Remote actor document cache
	sqlCreateActorCacheTable = `CREATE TABLE IF NOT EXISTS remote_actor_cache (
		actor_uri TEXT NOT NULL PRIMARY KEY,
		document TEXT NOT NULL,
		hit_count INTEGER DEFAULT 0,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP NOT NULL
	)`

	sqlCreateActorCacheIndices = `
		CREATE INDEX IF NOT EXISTS idx_actor_cache_expires_at ON remote_actor_cache(expires_at);
		CREATE INDEX IF NOT EXISTS idx_actor_cache_hit_count ON remote_actor_cache(hit_count DESC);
	`

	// Per-host rolling health counters
	sqlCreateInstanceHealthTable = `CREATE TABLE IF NOT EXISTS instance_health (
		host TEXT NOT NULL PRIMARY KEY,
		request_count_24h INTEGER DEFAULT 0,
		error_count_24h INTEGER DEFAULT 0,
		health_score REAL DEFAULT 100,
		last_seen_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		status TEXT DEFAULT 'active'
	)`

	// Moderation denylists
	sqlCreateBlockedDomainsTable = `CREATE TABLE IF NOT EXISTS blocked_domains (
		domain TEXT NOT NULL PRIMARY KEY,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateBlockedActorsTable = `CREATE TABLE IF NOT EXISTS blocked_actors (
		actor_uri TEXT NOT NULL PRIMARY KEY,
		reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	// Append-only observability records
	sqlCreateAlertsTable = `CREATE TABLE IF NOT EXISTS federation_alerts (
		id TEXT NOT NULL PRIMARY KEY,
		alert_type TEXT NOT NULL,
		message TEXT NOT NULL,
		acknowledged INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateRequestLogTable = `CREATE TABLE IF NOT EXISTS federation_request_log (
		id TEXT NOT NULL PRIMARY KEY,
		host TEXT NOT NULL,
		method TEXT NOT NULL,
		target_uri TEXT NOT NULL,
		status_code INTEGER DEFAULT 0,
		success INTEGER DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateRequestLogIndices = `
		CREATE INDEX IF NOT EXISTS idx_request_log_created_at ON federation_request_log(created_at);
		CREATE INDEX IF NOT EXISTS idx_request_log_host ON federation_request_log(host);
	`

	// Inbound/outbound activity log (dedup and audit)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		raw_json TEXT NOT NULL,
		local INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateActivitiesIndices = `
		CREATE INDEX IF NOT EXISTS idx_activities_uri ON activities(activity_uri);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
	`
)

// RunMigrations executes all database migrations
func (db *DB) RunMigrations() error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		tables := []struct {
			name string
			sql  string
		}{
			{"accounts", sqlCreateActorsTable},
			{"server_keys", sqlCreateServerKeysTable},
			{"delivery_queue", sqlCreateDeliveryQueueTable},
			{"remote_actor_cache", sqlCreateActorCacheTable},
			{"instance_health", sqlCreateInstanceHealthTable},
			{"blocked_domains", sqlCreateBlockedDomainsTable},
			{"blocked_actors", sqlCreateBlockedActorsTable},
			{"federation_alerts", sqlCreateAlertsTable},
			{"federation_request_log", sqlCreateRequestLogTable},
			{"activities", sqlCreateActivitiesTable},
		}

		for _, table := range tables {
			if err := db.createTableIfNotExists(tx, table.sql, table.name); err != nil {
				return err
			}
		}

		indices := []string{
			sqlCreateDeliveryQueueIndices,
			sqlCreateActorCacheIndices,
			sqlCreateRequestLogIndices,
			sqlCreateActivitiesIndices,
		}

		for _, index := range indices {
			if _, err := tx.Exec(index); err != nil {
				log.Printf("Warning: Failed to create indices: %v", err)
			}
		}

		return nil
	})
}

func (db *DB) createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.Exec(createSQL)
	if err != nil {
		log.Printf("Error creating table %s: %v", tableName, err)
		return err
	}
	return nil
}
