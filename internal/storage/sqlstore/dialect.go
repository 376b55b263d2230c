// Package sqlstore is the database/sql catalog shared by the MySQL and SQLite
// stores. Only conflict handling and time encoding differ between them.
package sqlstore

import "time"

// Dialect carries the statements and encodings that differ per database.
type Dialect struct {
	Name string

	// UpsertMapping overwrites property, confidence and method for an existing key.
	UpsertMapping string
	// InsertOffer must affect zero rows when offer_id already exists.
	InsertOffer string
	// UpsertSnapshot replaces the snapshot of a product key.
	UpsertSnapshot string

	// Time encodes a timestamp argument.
	Time func(time.Time) any
	// IsDuplicate reports a unique or primary key violation.
	IsDuplicate func(error) bool
}

func (d Dialect) timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.Time(*t)
}
