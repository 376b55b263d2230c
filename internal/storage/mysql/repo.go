package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"hotel_fusion/internal/storage/sqlstore"
)

const errDuplicateEntry = 1062

// Dialect is the MySQL 8 flavour of the catalog. Timestamps are DATETIME(6)
// in UTC; the DSN must carry parseTime=true&loc=UTC.
var Dialect = sqlstore.Dialect{
	Name:           "mysql",
	UpsertMapping:  upsertMappingSQL,
	InsertOffer:    insertOfferSQL,
	UpsertSnapshot: upsertSnapshotSQL,
	Time:           func(t time.Time) any { return t.UTC() },
	IsDuplicate: func(err error) bool {
		var me *driver.MySQLError
		return errors.As(err, &me) && me.Number == errDuplicateEntry
	},
}

func New(db *sql.DB) *sqlstore.Store { return sqlstore.New(db, Dialect) }

// Open connects and pings; failing here is a fatal startup error for callers.
func Open(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	return New(db), nil
}
