package resync_test

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"hotel_fusion/internal/app"
	"hotel_fusion/internal/breaker"
	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/resolve"
	"hotel_fusion/internal/resync"
	"hotel_fusion/internal/storage/sqlite"
	"hotel_fusion/internal/storage/sqlstore"
)

// ---------- manual clock ----------

type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newClock(t time.Time) *manualClock { return &manualClock{now: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// After fires at once so pacing never slows a test down.
func (c *manualClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now().Add(d)
	return ch
}

func (c *manualClock) NewTicker(d time.Duration) resync.Ticker {
	t := &manualTicker{c: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Tick fires every live ticker once.
func (c *manualClock) Tick() {
	c.mu.Lock()
	ts := append([]*manualTicker(nil), c.tickers...)
	now := c.now
	c.mu.Unlock()
	for _, t := range ts {
		t.fire(now)
	}
}

type manualTicker struct {
	mu      sync.Mutex
	c       chan time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.c }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	select {
	case t.c <- now:
	default:
	}
}

// ---------- supplier client ----------

type fakeClient struct {
	mu      sync.Mutex
	calls   []domain.SearchParams
	hotels  []string
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeClient) SearchHotels(ctx context.Context, p domain.SearchParams) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	hotels, err, block, started := f.hotels, f.err, f.block, f.started
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(hotels))
	for i, h := range hotels {
		out[i] = json.RawMessage(h)
	}
	return out, nil
}

func (f *fakeClient) set(hotels ...string) {
	f.mu.Lock()
	f.hotels = hotels
	f.mu.Unlock()
}

func (f *fakeClient) lastCall() domain.SearchParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func tboHotel(id, name string, price float64) string {
	return fmt.Sprintf(`{"HotelCode":%q,"HotelName":%q,"CityName":"Dubai","CountryCode":"AE",
		"Rooms":[{"RoomName":"Deluxe King","MealType":"BB","TotalPrice":%v,"Currency":"USD"}]}`, id, name, price)
}

func rateHawkHotel(id, giata, room string, price float64) string {
	return fmt.Sprintf(`{"id":%q,"name":"Palm Resort","city":"Dubai","country_code":"AE","giata_id":%q,
		"rates":[{"room_name":%q,"board_basis":"BB","refundable":true,"price":%v,"currency":"USD"}]}`, id, giata, room, price)
}

func tboGiataHotel(id, giata string, price float64) string {
	return fmt.Sprintf(`{"HotelCode":%q,"HotelName":"Palm Resort Dubai","CityName":"Dubai","CountryCode":"AE","GiataId":%q,
		"Rooms":[{"RoomName":"Deluxe King","MealType":"BB","TotalPrice":%v,"Currency":"USD"}]}`, id, giata, price)
}

// ---------- publisher ----------

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OffersRefreshed
}

func (p *recordingPublisher) PublishOffersRefreshed(_ context.Context, ev domain.OffersRefreshed) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) all() []domain.OffersRefreshed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OffersRefreshed(nil), p.events...)
}

// ---------- harness ----------

type harness struct {
	orch    *resync.Orchestrator
	store   *sqlstore.Store
	clock   *manualClock
	client  *fakeClient // first supplier's client
	clients map[string]*fakeClient
	pub     *recordingPublisher
}

func newHarness(t *testing.T) *harness { return newHarnessFor(t, "tbo") }

func newHarnessFor(t *testing.T, codes ...string) *harness {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := newClock(time.Now().UTC().Truncate(time.Millisecond))
	pub := &recordingPublisher{}

	merge := app.NewMergeService(store, resolve.NewEngine(store, resolve.DefaultConfig()))
	snaps := app.NewSnapshotService(store, nil, 5*time.Minute)
	breakers := breaker.NewRegistry(breaker.DefaultConfig(), clock.Now)

	clients := make(map[string]*fakeClient, len(codes))
	sups := make([]resync.SupplierConfig, 0, len(codes))
	for _, c := range codes {
		fc := &fakeClient{}
		clients[strings.ToUpper(c)] = fc
		sups = append(sups, resync.SupplierConfig{Code: c, Client: fc, MaxAge: 2 * time.Hour})
	}

	orch, err := resync.New(resync.DefaultConfig(), store, merge, snaps, pub, breakers, clock, sups)
	if err != nil {
		t.Fatalf("resync.New: %v", err)
	}
	return &harness{
		orch: orch, store: store, clock: clock, pub: pub,
		client: clients[strings.ToUpper(codes[0])], clients: clients,
	}
}

func stay() domain.SearchContext {
	ci := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	return domain.SearchContext{City: "Dubai", Country: "AE", CheckIn: ci, CheckOut: ci.AddDate(0, 0, 2), Adults: 2, Currency: "USD"}
}
