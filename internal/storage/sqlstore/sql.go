package sqlstore

import (
	"fmt"
	"strings"

	"hotel_fusion/internal/domain"
)

const propertyCols = `id, name, address, city, country, postal_code, lat, lng, star_rating,
  review_score, review_count, chain_code, brand_code, giata_id, thumbnail_url, amenities,
  checkin_from, checkout_until, created_at, updated_at`

const offerCols = `offer_id, property_id, supplier_code, supplier_hotel_id, product_key, room_name,
  board_basis, bed_type, refundable, free_cancellation, cancellable_until, adults, children,
  currency, price_base, price_taxes, price_total, price_per_night, rate_token, availability,
  check_in, check_out, created_at, expires_at`

// OfferInsertColumns is shared by the dialect insert statements.
const OfferInsertColumns = offerCols

const mappingCols = `supplier_code, supplier_hotel_id, property_id, confidence_score, matched_on`

// -----------------------------------------------------------------------------
// PROPERTIES
// -----------------------------------------------------------------------------

const propertyExistsSQL = `SELECT 1 FROM properties WHERE id = ?`

var insertPropertySQL = "INSERT INTO properties (" + propertyCols + ")\nVALUES (" + placeholders(20) + ")"

// updatePropertySQL applies domain.PropertyMergePolicy. Arguments follow the
// policy order, then updated_at and id.
var updatePropertySQL = buildPropertyUpdate(domain.PropertyMergePolicy)

func buildPropertyUpdate(policy []domain.PropertyColumn) string {
	sets := make([]string, 0, len(policy)+1)
	for _, c := range policy {
		switch c.Rule {
		case domain.AlwaysRefresh:
			// incoming wins unless it is NULL
			sets = append(sets, fmt.Sprintf("%s = COALESCE(?, %s)", c.Name, c.Name))
		default:
			// stored wins unless it is NULL
			sets = append(sets, fmt.Sprintf("%s = COALESCE(%s, ?)", c.Name, c.Name))
		}
	}
	sets = append(sets, "updated_at = ?")
	return "UPDATE properties SET\n  " + strings.Join(sets, ",\n  ") + "\nWHERE id = ?"
}

const getByGiataSQL = `SELECT ` + propertyCols + ` FROM properties WHERE giata_id = ?`

const getByChainBrandSQL = `SELECT ` + propertyCols + ` FROM properties
WHERE chain_code = ? AND brand_code = ? AND city = ? AND country = ?
ORDER BY created_at ASC, id ASC
LIMIT 1`

const listByCityCountrySQL = `SELECT ` + propertyCols + ` FROM properties
WHERE city = ? AND country = ?
ORDER BY created_at ASC, id ASC`

// -----------------------------------------------------------------------------
// MAPPINGS
// -----------------------------------------------------------------------------

// MappingInsertColumns is shared by the dialect upsert statements.
const MappingInsertColumns = mappingCols + `, created_at, updated_at`

const getMappingSQL = `SELECT ` + mappingCols + ` FROM supplier_mappings
WHERE supplier_code = ? AND supplier_hotel_id = ?`

const mappingsForPropertiesPrefix = `SELECT ` + mappingCols + ` FROM supplier_mappings
WHERE supplier_code = ? AND property_id IN (`

// -----------------------------------------------------------------------------
// OFFERS
// -----------------------------------------------------------------------------

const activeOffersPrefix = `SELECT ` + offerCols + ` FROM room_offers
WHERE (expires_at IS NULL OR expires_at > ?) AND product_key IN (`

// expireWhere is completed with the property id placeholders and ")".
const expireWhere = `
WHERE supplier_code = ? AND check_in = ? AND check_out = ?
  AND created_at < ?
  AND (expires_at IS NULL OR expires_at > ?)
  AND property_id IN (`

const expiringKeysPrefix = `SELECT DISTINCT product_key FROM room_offers` + expireWhere

const expireOffersPrefix = `UPDATE room_offers SET expires_at = ?` + expireWhere

const lastOfferAtSQL = `SELECT MAX(created_at) FROM room_offers WHERE supplier_code = ?`

// staleGroupsSQL: %s is an optional product key filter. A group is stale when
// its newest offer predates the cutoff and none of its offers expires in the future.
const staleGroupsSQL = `
SELECT o.property_id, COALESCE(p.city, ''), COALESCE(p.country, ''), o.check_in, o.check_out,
       COUNT(*), MAX(o.created_at)
FROM room_offers o
JOIN properties p ON p.id = o.property_id
WHERE o.supplier_code = ?%s
GROUP BY o.property_id, p.city, p.country, o.check_in, o.check_out
HAVING MAX(o.created_at) < ?
   AND SUM(CASE WHEN o.expires_at > ? THEN 1 ELSE 0 END) = 0
ORDER BY MAX(o.created_at) ASC, o.property_id ASC
LIMIT ?`

// -----------------------------------------------------------------------------
// SNAPSHOTS, QUERIES, REJECTS
// -----------------------------------------------------------------------------

// SnapshotInsertColumns is shared by the dialect upsert statements.
const SnapshotInsertColumns = `product_key, best_price, currency, suppliers, expires_at, last_updated`

const getSnapshotSQL = `SELECT ` + SnapshotInsertColumns + ` FROM rate_snapshots WHERE product_key = ?`

const insertProductQuerySQL = `INSERT INTO product_queries (product_key, queried_at) VALUES (?, ?)`

const topProductKeysSQL = `
SELECT q.product_key, COUNT(*) AS n
FROM product_queries q
WHERE q.queried_at >= ?
  AND EXISTS (SELECT 1 FROM room_offers o WHERE o.product_key = q.product_key AND o.supplier_code = ?)
GROUP BY q.product_key
ORDER BY n DESC, q.product_key ASC
LIMIT ?`

const insertRejectSQL = `INSERT INTO ingest_rejects (supplier_code, supplier_hotel_id, reason, seen_at) VALUES (?, ?, ?, ?)`
