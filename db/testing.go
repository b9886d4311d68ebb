package db

import (
	"database/sql"
)

// NewTestDB wraps an existing sql.DB handle. Used by tests in other
// packages to run against an in-memory database.
func NewTestDB(sqlDB *sql.DB) *DB {
	return &DB{db: sqlDB}
}

// SetInstanceForTesting installs the given DB as the process singleton so
// code under test that calls GetDB() hits the test database.
func SetInstanceForTesting(testDB *DB) {
	dbOnce.Do(func() {})
	dbInstance = testDB
}
