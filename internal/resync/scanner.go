package resync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hotel_fusion/internal/domain"
)

type StaleFinder interface {
	FindStale(ctx context.Context, q domain.StaleQuery) ([]domain.StaleGroup, error)
}

// Batch is one supplier search: a locality and stay dates plus the
// properties whose offers it refreshes.
type Batch struct {
	City        string
	Country     string
	CheckIn     time.Time
	CheckOut    time.Time
	PropertyIDs []string
	// OldestSeen is the newest-offer time of the stalest group in the batch.
	OldestSeen time.Time
}

func (b Batch) String() string {
	return fmt.Sprintf("%s/%s %s..%s (%d properties)", b.City, b.Country,
		b.CheckIn.Format(domain.DateLayout), b.CheckOut.Format(domain.DateLayout), len(b.PropertyIDs))
}

type Scanner struct {
	store     StaleFinder
	batchSize int
}

// NewScanner caps each batch at batchSize properties; 0 means unbounded.
func NewScanner(store StaleFinder, batchSize int) *Scanner {
	return &Scanner{store: store, batchSize: batchSize}
}

// Scan returns stale groups folded into batches by (city, country, check-in,
// check-out). Batches keep the oldest-first order of their first group.
func (s *Scanner) Scan(ctx context.Context, q domain.StaleQuery) ([]Batch, error) {
	groups, err := s.store.FindStale(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find stale: %w", err)
	}

	var out []Batch
	open := make(map[string]int) // key -> index of the batch still taking properties
	for _, g := range groups {
		key := strings.ToLower(g.City) + "|" + strings.ToUpper(g.Country) + "|" +
			g.CheckIn.Format(domain.DateLayout) + "|" + g.CheckOut.Format(domain.DateLayout)
		i, ok := open[key]
		if !ok || (s.batchSize > 0 && len(out[i].PropertyIDs) >= s.batchSize) {
			out = append(out, Batch{
				City: g.City, Country: g.Country, CheckIn: g.CheckIn, CheckOut: g.CheckOut,
				OldestSeen: g.LastSeen,
			})
			i = len(out) - 1
			open[key] = i
		}
		out[i].PropertyIDs = append(out[i].PropertyIDs, g.PropertyID)
	}
	return out, nil
}
