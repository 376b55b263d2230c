// Package sqlite is the embedded catalog store used by single-node deployments
// and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"hotel_fusion/internal/storage/sqlstore"
)

// Dialect stores timestamps as fixed-width UTC text so comparisons are lexical.
var Dialect = sqlstore.Dialect{
	Name:           "sqlite",
	UpsertMapping:  upsertMappingSQL,
	InsertOffer:    insertOfferSQL,
	UpsertSnapshot: upsertSnapshotSQL,
	Time:           func(t time.Time) any { return t.UTC().Format(sqlstore.TextTimeLayout) },
	IsDuplicate:    isDuplicate,
}

func isDuplicate(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

func New(db *sql.DB) *sqlstore.Store { return sqlstore.New(db, Dialect) }

// Open opens (or creates) the database file at path and applies the schema.
// A session pins one connection while the store keeps reading, so the pool
// must allow more than one.
func Open(ctx context.Context, path string) (*sqlstore.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return New(db), nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
