package db

import (
	"database/sql"

	"github.com/deemkeen/worknet/domain"
)

// Moderation denylist queries
const (
	sqlInsertBlockedDomain = `INSERT OR IGNORE INTO blocked_domains(domain, reason, created_at) VALUES (?, ?, ?)`
	sqlDeleteBlockedDomain = `DELETE FROM blocked_domains WHERE domain = ?`
	sqlSelectBlockedDomain = `SELECT domain, reason, created_at FROM blocked_domains WHERE domain = ?`
	sqlInsertBlockedActor  = `INSERT OR IGNORE INTO blocked_actors(actor_uri, reason, created_at) VALUES (?, ?, ?)`
	sqlDeleteBlockedActor  = `DELETE FROM blocked_actors WHERE actor_uri = ?`
	sqlSelectBlockedActor  = `SELECT actor_uri, reason, created_at FROM blocked_actors WHERE actor_uri = ?`
)

func (db *DB) CreateBlockedDomain(block *domain.BlockedDomain) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBlockedDomain, block.Domain, block.Reason, block.CreatedAt)
		return err
	})
}

func (db *DB) DeleteBlockedDomain(host string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteBlockedDomain, host)
		return err
	})
}

// IsDomainBlocked reports whether the host is on the domain denylist.
func (db *DB) IsDomainBlocked(host string) (error, bool) {
	row := db.db.QueryRow(sqlSelectBlockedDomain, host)
	var block domain.BlockedDomain
	err := row.Scan(&block.Domain, &block.Reason, &block.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		return err, false
	}
	return nil, true
}

func (db *DB) CreateBlockedActor(block *domain.BlockedActor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertBlockedActor, block.ActorURI, block.Reason, block.CreatedAt)
		return err
	})
}

func (db *DB) DeleteBlockedActor(actorURI string) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlDeleteBlockedActor, actorURI)
		return err
	})
}

// IsActorBlocked reports whether the actor URI is on the actor denylist.
func (db *DB) IsActorBlocked(actorURI string) (error, bool) {
	row := db.db.QueryRow(sqlSelectBlockedActor, actorURI)
	var block domain.BlockedActor
	err := row.Scan(&block.ActorURI, &block.Reason, &block.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		return err, false
	}
	return nil, true
}
