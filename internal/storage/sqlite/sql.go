package sqlite

import "hotel_fusion/internal/storage/sqlstore"

const schema = `
CREATE TABLE IF NOT EXISTS properties (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	address        TEXT,
	city           TEXT COLLATE NOCASE,
	country        TEXT COLLATE NOCASE,
	postal_code    TEXT,
	lat            REAL,
	lng            REAL,
	star_rating    REAL,
	review_score   REAL,
	review_count   INTEGER,
	chain_code     TEXT,
	brand_code     TEXT,
	giata_id       TEXT UNIQUE,
	thumbnail_url  TEXT,
	amenities      TEXT,
	checkin_from   TEXT,
	checkout_until TEXT,
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_properties_locality ON properties(city, country);
CREATE INDEX IF NOT EXISTS idx_properties_chain ON properties(chain_code, brand_code, city, country);

CREATE TABLE IF NOT EXISTS supplier_mappings (
	supplier_code     TEXT NOT NULL,
	supplier_hotel_id TEXT NOT NULL,
	property_id       TEXT NOT NULL REFERENCES properties(id),
	confidence_score  REAL NOT NULL,
	matched_on        TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL,
	PRIMARY KEY (supplier_code, supplier_hotel_id)
);
CREATE INDEX IF NOT EXISTS idx_mappings_property ON supplier_mappings(property_id);

CREATE TABLE IF NOT EXISTS room_offers (
	offer_id          TEXT PRIMARY KEY,
	property_id       TEXT NOT NULL REFERENCES properties(id),
	supplier_code     TEXT NOT NULL,
	supplier_hotel_id TEXT NOT NULL,
	product_key       TEXT NOT NULL,
	room_name         TEXT NOT NULL,
	board_basis       TEXT NOT NULL,
	bed_type          TEXT,
	refundable        INTEGER NOT NULL DEFAULT 0,
	free_cancellation INTEGER NOT NULL DEFAULT 0,
	cancellable_until TEXT,
	adults            INTEGER NOT NULL DEFAULT 0,
	children          INTEGER NOT NULL DEFAULT 0,
	currency          TEXT NOT NULL,
	price_base        REAL,
	price_taxes       REAL,
	price_total       REAL NOT NULL,
	price_per_night   REAL,
	rate_token        TEXT,
	availability      INTEGER,
	check_in          TEXT NOT NULL,
	check_out         TEXT NOT NULL,
	created_at        TEXT NOT NULL,
	expires_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_offers_stale ON room_offers(supplier_code, property_id, check_in, check_out, created_at);
CREATE INDEX IF NOT EXISTS idx_offers_product ON room_offers(product_key, expires_at);

CREATE TABLE IF NOT EXISTS rate_snapshots (
	product_key  TEXT PRIMARY KEY,
	best_price   REAL NOT NULL,
	currency     TEXT NOT NULL,
	suppliers    TEXT NOT NULL,
	expires_at   TEXT NOT NULL,
	last_updated TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_queries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	product_key TEXT NOT NULL,
	queried_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_queries_window ON product_queries(queried_at, product_key);

CREATE TABLE IF NOT EXISTS ingest_rejects (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	supplier_code     TEXT NOT NULL,
	supplier_hotel_id TEXT NOT NULL DEFAULT '',
	reason            TEXT NOT NULL,
	seen_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rejects_supplier ON ingest_rejects(supplier_code, seen_at);
`

const upsertMappingSQL = `
INSERT INTO supplier_mappings (` + sqlstore.MappingInsertColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(supplier_code, supplier_hotel_id) DO UPDATE SET
	property_id      = excluded.property_id,
	confidence_score = excluded.confidence_score,
	matched_on       = excluded.matched_on,
	updated_at       = excluded.updated_at`

const insertOfferSQL = `
INSERT INTO room_offers (` + sqlstore.OfferInsertColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(offer_id) DO NOTHING`

const upsertSnapshotSQL = `
INSERT INTO rate_snapshots (` + sqlstore.SnapshotInsertColumns + `)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(product_key) DO UPDATE SET
	best_price   = excluded.best_price,
	currency     = excluded.currency,
	suppliers    = excluded.suppliers,
	expires_at   = excluded.expires_at,
	last_updated = excluded.last_updated`
