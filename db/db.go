package db

import (
	"context"
	"database/sql"
	"sync"

	"github.com/deemkeen/worknet/domain"
	"github.com/google/uuid"
	"log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
	"time"
)

// DB is the database struct.
type DB struct {
	db *sql.DB
}

var (
	dbInstance *DB
	dbOnce     sync.Once
)

const (
	//Actors (local and remote)
	sqlCreateActorsTable = `CREATE TABLE IF NOT EXISTS accounts(
						id TEXT NOT NULL PRIMARY KEY,
						username TEXT NOT NULL,
						domain TEXT NOT NULL,
						actor_uri TEXT UNIQUE NOT NULL,
						inbox_uri TEXT NOT NULL,
						actor_type TEXT DEFAULT 'Person',
						status TEXT DEFAULT 'active',
						is_remote INTEGER DEFAULT 0,
						display_name TEXT,
						summary TEXT,
						public_key_pem TEXT,
						private_key_pem TEXT,
						created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
						UNIQUE(username, domain)
						)`

	sqlInsertActor = `INSERT INTO accounts(id, username, domain, actor_uri, inbox_uri, actor_type, status, is_remote, display_name, summary, public_key_pem, private_key_pem, created_at)
						VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectActorColumns = `SELECT id, username, domain, actor_uri, inbox_uri, actor_type, status, is_remote, display_name, summary, public_key_pem, private_key_pem, created_at FROM accounts`
	sqlSelectActorByUsername = sqlSelectActorColumns + ` WHERE username = ? AND is_remote = 0`
	sqlSelectActorById       = sqlSelectActorColumns + ` WHERE id = ?`
	sqlSelectActorByURI      = sqlSelectActorColumns + ` WHERE actor_uri = ?`
	sqlUpdateActorKeys       = `UPDATE accounts SET public_key_pem = ?, private_key_pem = ? WHERE id = ? AND (public_key_pem IS NULL OR public_key_pem = '')`
	sqlCountLocalActors      = `SELECT COUNT(*) FROM accounts WHERE is_remote = 0 AND status = 'active'`
)

func GetDB() *DB {
	dbOnce.Do(func() {
		// Open database connection
		db, err := sql.Open("sqlite", "database.db")
		if err != nil {
			panic(err)
		}

		// Configure connection pool for concurrent access
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)

		// Try to enable WAL2 mode, fall back to WAL if not supported
		var journalMode string
		err = db.QueryRow("PRAGMA journal_mode=WAL2").Scan(&journalMode)
		if err != nil || journalMode == "delete" {
			// WAL2 not supported, try regular WAL
			err = db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode)
			if err != nil {
				log.Printf("Warning: Failed to enable WAL mode: %v", err)
			} else {
				log.Printf("Database journal mode: %s (WAL2 not supported, using WAL)", journalMode)
			}
		} else {
			log.Printf("Database journal mode: %s", journalMode)
		}

		// Optimize PRAGMAs for the concurrent federation workload
		db.Exec("PRAGMA synchronous = NORMAL")
		db.Exec("PRAGMA cache_size = -64000")
		db.Exec("PRAGMA temp_store = MEMORY")
		db.Exec("PRAGMA busy_timeout = 5000")
		db.Exec("PRAGMA foreign_keys = ON")
		db.Exec("PRAGMA auto_vacuum = INCREMENTAL")

		log.Printf("Database initialized with connection pooling (max 25 connections)")

		dbInstance = &DB{db: db}

		if err2 := dbInstance.RunMigrations(); err2 != nil {
			panic(err2)
		}
	})

	return dbInstance
}

func (db *DB) CreateActor(actor *domain.Actor) error {
	return db.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(sqlInsertActor,
			actor.Id.String(),
			actor.Username,
			actor.Domain,
			actor.ActorURI,
			actor.InboxURI,
			actor.ActorType,
			string(actor.Status),
			actor.IsRemote,
			actor.DisplayName,
			actor.Summary,
			actor.PublicKeyPem,
			actor.PrivateKeyPem,
			actor.CreatedAt,
		)
		return err
	})
}

func (db *DB) ReadActorByUsername(username string) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByUsername, username))
}

func (db *DB) ReadActorById(id uuid.UUID) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorById, id.String()))
}

func (db *DB) ReadActorByURI(uri string) (error, *domain.Actor) {
	return db.scanActor(db.db.QueryRow(sqlSelectActorByURI, uri))
}

// UpdateActorKeys writes both key halves in one statement, and only when
// the actor has no key yet. Enrollment stays idempotent and a half-written
// record cannot occur.
func (db *DB) UpdateActorKeys(id uuid.UUID, publicPem string, privatePem string) (error, bool) {
	var updated bool
	err := db.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(sqlUpdateActorKeys, publicPem, privatePem, id.String())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		updated = n == 1
		return nil
	})
	return err, updated
}

func (db *DB) CountLocalActors() (error, int64) {
	var count int64
	err := db.db.QueryRow(sqlCountLocalActors).Scan(&count)
	return err, count
}

func (db *DB) scanActor(row *sql.Row) (error, *domain.Actor) {
	var actor domain.Actor
	var idStr, status string
	var displayName, summary, publicPem, privatePem sql.NullString
	err := row.Scan(
		&idStr,
		&actor.Username,
		&actor.Domain,
		&actor.ActorURI,
		&actor.InboxURI,
		&actor.ActorType,
		&status,
		&actor.IsRemote,
		&displayName,
		&summary,
		&publicPem,
		&privatePem,
		&actor.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return err, nil
	}
	if err != nil {
		return err, nil
	}
	actor.Id, _ = uuid.Parse(idStr)
	actor.Status = domain.ActorStatus(status)
	actor.DisplayName = displayName.String
	actor.Summary = summary.String
	actor.PublicKeyPem = publicPem.String
	actor.PrivateKeyPem = privatePem.String
	return nil, &actor
}

// wrapTransaction runs the given function within a transaction.
func (db *DB) wrapTransaction(f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("error starting transaction: %s", err)
		return err
	}
	// Rollback is a no-op once the transaction has committed. Without it an
	// error return leaves the transaction open and poisons the pooled
	// connection when the context is cancelled.
	defer tx.Rollback()
	for {
		err = f(tx)
		if err != nil {
			serr, ok := err.(*sqlite.Error)
			if ok && serr.Code() == sqlitelib.SQLITE_BUSY {
				continue
			}
			log.Printf("error in transaction: %s", err)
			return err
		}
		err = tx.Commit()
		if err != nil {
			log.Printf("error committing transaction: %s", err)
			return err
		}
		break
	}
	return nil
}
