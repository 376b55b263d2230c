package mysql

import "hotel_fusion/internal/storage/sqlstore"

const upsertMappingSQL = `
INSERT INTO supplier_mappings (` + sqlstore.MappingInsertColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  property_id      = VALUES(property_id),
  confidence_score = VALUES(confidence_score),
  matched_on       = VALUES(matched_on),
  updated_at       = VALUES(updated_at)
`

// A duplicate offer_id touches nothing, so RowsAffected is 0.
const insertOfferSQL = `
INSERT INTO room_offers (` + sqlstore.OfferInsertColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE offer_id = offer_id
`

const upsertSnapshotSQL = `
INSERT INTO rate_snapshots (` + sqlstore.SnapshotInsertColumns + `)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  best_price   = VALUES(best_price),
  currency     = VALUES(currency),
  suppliers    = VALUES(suppliers),
  expires_at   = VALUES(expires_at),
  last_updated = VALUES(last_updated)
`
