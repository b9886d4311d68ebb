package db

import (
	"database/sql"

	"github.com/deemkeen/worknet/domain"
	"github.com/google/uuid"
)

// Server key queries
const (
	sqlInsertServerKey        = `INSERT INTO server_keys(id, public_key_pem, private_key_pem, is_current, revoked, created_at) VALUES (?, ?, ?, ?, 0, ?)`
	sqlSupersedeServerKeys    = `UPDATE server_keys SET is_current = 0 WHERE is_current = 1`
	sqlSelectCurrentServerKey = `SELECT id, public_key_pem, private_key_pem, is_current, revoked, created_at FROM server_keys WHERE is_current = 1 AND revoked = 0`
	sqlSelectActiveServerKeys = `SELECT id, public_key_pem, private_key_pem, is_current, revoked, created_at FROM server_keys WHERE revoked = 0 ORDER BY created_at DESC`
	sqlRevokeServerKey        = `UPDATE server_keys SET revoked = 1, is_current = 0 WHERE id = ?`
)

// CreateServerKey inserts a new current server key, flipping all previously
// current keys to non-current in the same transaction.
func (db *DB) CreateServerKey(key *domain.ServerKey) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(sqlSupersedeServerKeys); err != nil {
			return err
		}
		_, err := tx.Exec(sqlInsertServerKey,
			key.Id.String(),
			key.PublicKeyPem,
			key.PrivateKeyPem,
			key.IsCurrent,
			key.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadCurrentServerKey() (error, *domain.ServerKey) {
	row := db.db.QueryRow(sqlSelectCurrentServerKey)
	var key domain.ServerKey
	var idStr string
	err := row.Scan(&idStr, &key.PublicKeyPem, &key.PrivateKeyPem, &key.IsCurrent, &key.Revoked, &key.CreatedAt)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	key.Id, _ = uuid.Parse(idStr)
	return nil, &key
}

// ReadActiveServerKeys returns all non-revoked keys, current first by age.
func (db *DB) ReadActiveServerKeys() (error, *[]domain.ServerKey) {
	rows, err := db.db.Query(sqlSelectActiveServerKeys)
	if err != nil {
		return err, nil
	}
	defer rows.Close()

	var keys []domain.ServerKey
	for rows.Next() {
		var key domain.ServerKey
		var idStr string
		if err := rows.Scan(&idStr, &key.PublicKeyPem, &key.PrivateKeyPem, &key.IsCurrent, &key.Revoked, &key.CreatedAt); err != nil {
			return err, &keys
		}
		key.Id, _ = uuid.Parse(idStr)
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return err, &keys
	}
	return nil, &keys
}

func (db *DB) RevokeServerKey(id uuid.UUID) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlRevokeServerKey, id.String())
		return err
	})
}
