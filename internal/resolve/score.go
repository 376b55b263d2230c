package resolve

import (
	"math"
	"strings"

	"hotel_fusion/internal/domain"
)

const earthRadiusKm = 6371.0

// Config holds the fuzzy matching weights and thresholds.
type Config struct {
	NameWeight      float64
	GeoWeight       float64
	StarWeight      float64
	GeoRadiusKm     float64
	StarTolerance   float64
	AcceptScore     float64
	ChainConfidence float64
}

func DefaultConfig() Config {
	return Config{
		NameWeight:      0.4,
		GeoWeight:       0.4,
		StarWeight:      0.2,
		GeoRadiusKm:     0.2,
		StarTolerance:   0.5,
		AcceptScore:     0.75,
		ChainConfidence: 0.9,
	}
}

// Score rates how likely two hotels are the same property, in [0, 1] for
// weights that sum to 1.
func Score(a, b domain.PropertyAttrs, cfg Config) float64 {
	var score float64

	na, nb := cleanName(a.Name), cleanName(b.Name)
	if na != "" && nb != "" {
		score += NameSimilarity(na, nb) * cfg.NameWeight
	}

	if a.HasCoords() && b.HasCoords() && sameLocality(a, b) {
		if HaversineKm(*a.Lat, *a.Lng, *b.Lat, *b.Lng) <= cfg.GeoRadiusKm {
			score += cfg.GeoWeight
		}
	}

	if a.StarRating != nil && b.StarRating != nil && cfg.StarTolerance > 0 {
		diff := math.Abs(*a.StarRating - *b.StarRating)
		if diff <= cfg.StarTolerance {
			score += (1 - diff/cfg.StarTolerance) * cfg.StarWeight
		}
	}
	return score
}

func sameLocality(a, b domain.PropertyAttrs) bool {
	return strings.EqualFold(strings.TrimSpace(a.City), strings.TrimSpace(b.City)) &&
		strings.EqualFold(strings.TrimSpace(a.Country), strings.TrimSpace(b.Country))
}

// cleanName lower-cases and keeps only [a-z0-9 ].
func cleanName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == ' ' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// NameSimilarity is 1 - levenshtein/len(longer). Inputs are compared as given.
func NameSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longer := len(ra)
	if len(rb) > longer {
		longer = len(rb)
	}
	if longer == 0 {
		return 1
	}
	return float64(longer-Levenshtein(a, b)) / float64(longer)
}

func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// HaversineKm is the great-circle distance between two coordinates.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
