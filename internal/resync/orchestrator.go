package resync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"hotel_fusion/internal/adapters/observability"
	"hotel_fusion/internal/app"
	"hotel_fusion/internal/breaker"
	"hotel_fusion/internal/domain"
	"hotel_fusion/internal/normalize"
)

var (
	ErrUnknownSupplier = errors.New("resync: unknown supplier")
	// ErrBusy is returned by ForceResync while a run for the supplier is in flight.
	ErrBusy = errors.New("resync: supplier run in progress")
)

const (
	TierHot    = "hot"
	TierTail   = "tail"
	TierForce  = "force"
	TierIngest = "ingest"
)

// Store is the catalog surface the orchestrator reads and expires through.
type Store interface {
	StaleFinder
	ExpireOffers(ctx context.Context, q domain.ExpireQuery) (domain.ExpireResult, error)
	MappingsForProperties(ctx context.Context, supplierCode string, propertyIDs []string) ([]domain.SupplierMapping, error)
	TopProductKeys(ctx context.Context, supplierCode string, since time.Time, limit int) ([]string, error)
	LastOfferAt(ctx context.Context, supplierCode string) (*time.Time, error)
}

type Merger interface {
	MergeBatch(ctx context.Context, drafts []domain.PropertyDraft, offers []domain.OfferDraft, supplier string) (app.MergeResult, error)
	RecordRejects(ctx context.Context, supplier string, rejects []app.Reject) (int, error)
}

type SnapshotRefresher interface {
	Refresh(ctx context.Context, keys []string) (int, error)
}

type Config struct {
	HotEvery    time.Duration
	TailEvery   time.Duration
	ReloadEvery time.Duration

	// HotMaxAge is the staleness threshold of hot-set tuples; long-tail
	// tuples use the supplier's MaxAge.
	HotMaxAge    time.Duration
	BatchSize    int
	BatchPause   time.Duration
	TailLimit    int
	HotSetSize   int
	HotWindow    time.Duration
	BatchTimeout time.Duration

	Adults     int
	Currency   string
	MaxResults int
}

func DefaultConfig() Config {
	return Config{
		HotEvery:     5 * time.Minute,
		TailEvery:    15 * time.Minute,
		ReloadEvery:  time.Hour,
		HotMaxAge:    5 * time.Minute,
		BatchSize:    50,
		BatchPause:   time.Second,
		TailLimit:    200,
		HotSetSize:   1000,
		HotWindow:    30 * 24 * time.Hour,
		BatchTimeout: 2 * time.Minute,
		Adults:       2,
		Currency:     "USD",
		MaxResults:   100,
	}
}

// SupplierConfig wires one supplier into the orchestrator.
type SupplierConfig struct {
	Code   string
	Client domain.SupplierClient
	MaxAge time.Duration
}

// SyncReport summarises one run over a supplier.
type SyncReport struct {
	Supplier         string    `json:"supplier"`
	Tier             string    `json:"tier"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Batches          int       `json:"batches"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	CircuitOpen      int       `json:"circuit_open"`
	Rejected         int       `json:"rejected"`
	HotelsInserted   int       `json:"hotels_inserted"`
	HotelsMatched    int       `json:"hotels_matched"`
	OffersInserted   int       `json:"offers_inserted"`
	OffersExpired    int64     `json:"offers_expired"`
	SnapshotsWritten int       `json:"snapshots_written"`
}

func (r *SyncReport) add(o SyncReport) {
	r.Batches += o.Batches
	r.Succeeded += o.Succeeded
	r.Failed += o.Failed
	r.CircuitOpen += o.CircuitOpen
	r.Rejected += o.Rejected
	r.HotelsInserted += o.HotelsInserted
	r.HotelsMatched += o.HotelsMatched
	r.OffersInserted += o.OffersInserted
	r.OffersExpired += o.OffersExpired
	r.SnapshotsWritten += o.SnapshotsWritten
}

// SupplierStatus is the operational view of one supplier.
type SupplierStatus struct {
	Supplier       string                `json:"supplier"`
	Breaker        breaker.Snapshot      `json:"breaker"`
	HotSetSize     int                   `json:"hot_set_size"`
	HotSetLoadedAt *time.Time            `json:"hot_set_loaded_at,omitempty"`
	LastOfferAt    *time.Time            `json:"last_offer_at,omitempty"`
	Running        bool                  `json:"running"`
	LastRuns       map[string]SyncReport `json:"last_runs,omitempty"`
}

type supplierState struct {
	cfg  SupplierConfig
	norm normalize.Normalizer

	run     sync.Mutex // serialises runs for the supplier
	running atomic.Bool

	mu        sync.Mutex
	hotKeys   []string
	hotLoaded time.Time
	lastOffer *time.Time // newest stored offer as of the last reload
	last      map[string]SyncReport
}

type Orchestrator struct {
	cfg      Config
	store    Store
	merge    Merger
	snaps    SnapshotRefresher
	pub      domain.EventPublisher
	breakers *breaker.Registry
	clock    Clock
	scanner  *Scanner
	sched    *Scheduler

	codes     []string
	suppliers map[string]*supplierState
	log       zerolog.Logger
}

func New(cfg Config, store Store, merge Merger, snaps SnapshotRefresher, pub domain.EventPublisher,
	breakers *breaker.Registry, clock Clock, suppliers []SupplierConfig) (*Orchestrator, error) {
	if clock == nil {
		clock = RealClock()
	}
	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		merge:     merge,
		snaps:     snaps,
		pub:       pub,
		breakers:  breakers,
		clock:     clock,
		scanner:   NewScanner(store, cfg.BatchSize),
		sched:     NewScheduler(clock),
		suppliers: make(map[string]*supplierState, len(suppliers)),
		log:       log.With().Str("component", "resync").Logger(),
	}
	for _, sc := range suppliers {
		code := strings.ToUpper(strings.TrimSpace(sc.Code))
		n, err := normalize.For(code)
		if err != nil {
			return nil, err
		}
		if sc.Client == nil {
			return nil, fmt.Errorf("supplier %s: nil client", code)
		}
		if _, dup := o.suppliers[code]; dup {
			return nil, fmt.Errorf("supplier %s configured twice", code)
		}
		if sc.MaxAge <= 0 {
			sc.MaxAge = 2 * time.Hour
		}
		sc.Code = code
		o.suppliers[code] = &supplierState{cfg: sc, norm: n, last: map[string]SyncReport{}}
		o.codes = append(o.codes, code)
	}
	sort.Strings(o.codes)
	return o, nil
}

// Suppliers lists the configured supplier codes.
func (o *Orchestrator) Suppliers() []string { return append([]string(nil), o.codes...) }

// Start schedules, per supplier, the hot-set reload (run at start), the hot
// refresh and the long-tail refresh.
func (o *Orchestrator) Start(ctx context.Context) {
	for _, code := range o.codes {
		code := code
		o.sched.Add(Task{Name: code + ":reload", Every: o.cfg.ReloadEvery, Immediate: true, Run: func(ctx context.Context) {
			if _, err := o.ReloadHotSet(ctx, code); err != nil {
				o.log.Error().Err(err).Str("supplier", code).Msg("hot set reload failed")
			}
		}})
		o.sched.Add(Task{Name: code + ":hot", Every: o.cfg.HotEvery, Run: func(ctx context.Context) {
			if _, err := o.RefreshHotSet(ctx, code); err != nil {
				o.log.Error().Err(err).Str("supplier", code).Msg("hot refresh failed")
			}
		}})
		o.sched.Add(Task{Name: code + ":tail", Every: o.cfg.TailEvery, Run: func(ctx context.Context) {
			if _, err := o.RefreshLongTail(ctx, code); err != nil {
				o.log.Error().Err(err).Str("supplier", code).Msg("long-tail refresh failed")
			}
		}})
	}
	o.sched.Start(ctx)
}

// Stop stops scheduling and waits for in-flight runs until ctx is done.
func (o *Orchestrator) Stop(ctx context.Context) error { return o.sched.Stop(ctx) }

func (o *Orchestrator) state(supplier string) (*supplierState, error) {
	st, ok := o.suppliers[strings.ToUpper(strings.TrimSpace(supplier))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSupplier, supplier)
	}
	return st, nil
}

// locked runs fn while holding the supplier run lock. With wait=false a busy
// supplier yields ErrBusy instead of queueing.
func (o *Orchestrator) locked(st *supplierState, wait bool, fn func() (SyncReport, error)) (SyncReport, error) {
	if wait {
		st.run.Lock()
	} else if !st.run.TryLock() {
		return SyncReport{}, ErrBusy
	}
	st.running.Store(true)
	defer func() {
		st.running.Store(false)
		st.run.Unlock()
	}()
	return fn()
}

// ReloadHotSet replaces the supplier's hot set with the most queried product
// keys it has offers for, and returns the new size.
func (o *Orchestrator) ReloadHotSet(ctx context.Context, supplier string) (int, error) {
	st, err := o.state(supplier)
	if err != nil {
		return 0, err
	}
	return o.reloadHotSet(ctx, st)
}

func (o *Orchestrator) reloadHotSet(ctx context.Context, st *supplierState) (int, error) {
	now := o.clock.Now()
	keys, err := o.store.TopProductKeys(ctx, st.cfg.Code, now.Add(-o.cfg.HotWindow), o.cfg.HotSetSize)
	if err != nil {
		return 0, fmt.Errorf("top product keys: %w", err)
	}
	lastOffer, err := o.store.LastOfferAt(ctx, st.cfg.Code)
	if err != nil {
		o.log.Warn().Err(err).Str("supplier", st.cfg.Code).Msg("last offer lookup failed")
	}
	st.mu.Lock()
	st.hotKeys, st.hotLoaded = keys, now
	if err == nil {
		st.lastOffer = lastOffer
	}
	st.mu.Unlock()
	o.log.Info().Str("supplier", st.cfg.Code).Int("keys", len(keys)).Msg("hot set reloaded")
	return len(keys), nil
}

func (st *supplierState) hotSet() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.hotKeys
}

func (o *Orchestrator) RefreshHotSet(ctx context.Context, supplier string) (SyncReport, error) {
	st, err := o.state(supplier)
	if err != nil {
		return SyncReport{}, err
	}
	return o.locked(st, true, func() (SyncReport, error) { return o.refreshHot(ctx, st) })
}

func (o *Orchestrator) RefreshLongTail(ctx context.Context, supplier string) (SyncReport, error) {
	st, err := o.state(supplier)
	if err != nil {
		return SyncReport{}, err
	}
	return o.locked(st, true, func() (SyncReport, error) { return o.refreshTail(ctx, st, st.cfg.MaxAge, TierTail) })
}

// SyncSupplierRates runs a hot-set pass followed by a long-tail pass.
func (o *Orchestrator) SyncSupplierRates(ctx context.Context, supplier string) (SyncReport, error) {
	st, err := o.state(supplier)
	if err != nil {
		return SyncReport{}, err
	}
	return o.locked(st, true, func() (SyncReport, error) {
		rep := SyncReport{Supplier: st.cfg.Code, Tier: "sync", StartedAt: o.clock.Now()}
		hot, err := o.refreshHot(ctx, st)
		rep.add(hot)
		if err != nil {
			return o.finish(st, rep), err
		}
		tail, err := o.refreshTail(ctx, st, st.cfg.MaxAge, TierTail)
		rep.add(tail)
		return o.finish(st, rep), err
	})
}

// ForceResync reloads the hot set and refreshes every tuple without a
// future expiry, ignoring max-age. It does not queue behind a running pass.
func (o *Orchestrator) ForceResync(ctx context.Context, supplier string) (SyncReport, error) {
	st, err := o.state(supplier)
	if err != nil {
		return SyncReport{}, err
	}
	return o.locked(st, false, func() (SyncReport, error) {
		if _, err := o.reloadHotSet(ctx, st); err != nil {
			o.log.Warn().Err(err).Str("supplier", st.cfg.Code).Msg("force resync: hot set reload failed")
		}
		return o.refreshTail(ctx, st, 0, TierForce)
	})
}

// IngestDestination seeds the catalog with one destination search.
func (o *Orchestrator) IngestDestination(ctx context.Context, supplier string, sc domain.SearchContext) (SyncReport, error) {
	st, err := o.state(supplier)
	if err != nil {
		return SyncReport{}, err
	}
	if sc.CheckIn.IsZero() || !sc.CheckOut.After(sc.CheckIn) {
		return SyncReport{}, fmt.Errorf("ingest %s: invalid stay dates", st.cfg.Code)
	}
	return o.locked(st, true, func() (SyncReport, error) {
		rep := SyncReport{Supplier: st.cfg.Code, Tier: TierIngest, StartedAt: o.clock.Now()}
		b := Batch{City: sc.City, Country: sc.Country, CheckIn: sc.CheckIn, CheckOut: sc.CheckOut}
		rep.add(o.runBatch(ctx, st, TierIngest, b, sc.Adults, sc.Currency))
		return o.finish(st, rep), nil
	})
}

func (o *Orchestrator) refreshHot(ctx context.Context, st *supplierState) (SyncReport, error) {
	rep := SyncReport{Supplier: st.cfg.Code, Tier: TierHot, StartedAt: o.clock.Now()}
	keys := st.hotSet()
	if len(keys) == 0 {
		return o.finish(st, rep), nil
	}
	now := o.clock.Now()
	batches, err := o.scanner.Scan(ctx, domain.StaleQuery{
		SupplierCode: st.cfg.Code,
		OlderThan:    now.Add(-o.cfg.HotMaxAge),
		Now:          now,
		OnlyKeys:     keys,
		Limit:        o.cfg.HotSetSize,
	})
	if err != nil {
		return o.finish(st, rep), err
	}
	o.runBatches(ctx, st, TierHot, batches, 0, &rep)
	return o.finish(st, rep), nil
}

func (o *Orchestrator) refreshTail(ctx context.Context, st *supplierState, maxAge time.Duration, tier string) (SyncReport, error) {
	rep := SyncReport{Supplier: st.cfg.Code, Tier: tier, StartedAt: o.clock.Now()}
	now := o.clock.Now()
	q := domain.StaleQuery{
		SupplierCode: st.cfg.Code,
		OlderThan:    now.Add(-maxAge),
		Now:          now,
		Limit:        o.cfg.TailLimit,
	}
	if tier == TierTail {
		q.ExcludeKeys = st.hotSet()
	}
	batches, err := o.scanner.Scan(ctx, q)
	if err != nil {
		return o.finish(st, rep), err
	}
	o.runBatches(ctx, st, tier, batches, o.cfg.BatchPause, &rep)
	return o.finish(st, rep), nil
}

// runBatches stops between batches once ctx is done; a started batch runs to
// completion.
func (o *Orchestrator) runBatches(ctx context.Context, st *supplierState, tier string, batches []Batch, pause time.Duration, rep *SyncReport) {
	for i, b := range batches {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && !sleep(ctx, o.clock, pause) {
			return
		}
		rep.add(o.runBatch(ctx, st, tier, b, o.cfg.Adults, o.cfg.Currency))
	}
}

// runBatch refreshes one batch: breaker-guarded search, normalize, merge,
// expire the offers it supersedes, refresh snapshots, publish.
func (o *Orchestrator) runBatch(ctx context.Context, st *supplierState, tier string, b Batch, adults int, currency string) SyncReport {
	code := st.cfg.Code
	rep := SyncReport{Batches: 1}
	lg := o.log.With().Str("supplier", code).Str("tier", tier).Str("batch", b.String()).Logger()

	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.BatchTimeout)
	defer cancel()
	start := o.clock.Now()
	outcome := "ok"
	defer func() { observability.ObserveResyncBatch(code, tier, outcome, o.clock.Now().Sub(start)) }()

	if adults <= 0 {
		adults = o.cfg.Adults
	}
	if currency == "" {
		currency = o.cfg.Currency
	}
	params := domain.SearchParams{
		Destination: b.City,
		Country:     b.Country,
		CheckIn:     b.CheckIn.Format(domain.DateLayout),
		CheckOut:    b.CheckOut.Format(domain.DateLayout),
		Rooms:       []domain.RoomRequest{{Adults: adults}},
		Currency:    currency,
		MaxResults:  o.cfg.MaxResults,
	}
	if len(b.PropertyIDs) > 0 {
		ms, err := o.store.MappingsForProperties(bctx, code, b.PropertyIDs)
		if err != nil {
			outcome = "error"
			rep.Failed++
			lg.Error().Err(err).Msg("load supplier mappings failed")
			return rep
		}
		for _, m := range ms {
			params.HotelIDs = append(params.HotelIDs, m.SupplierHotelID)
		}
	}

	var raws []json.RawMessage
	err := o.breakers.Get(code).Execute(bctx, func(c context.Context) error {
		var err error
		raws, err = st.cfg.Client.SearchHotels(c, params)
		return err
	})
	switch {
	case errors.Is(err, breaker.ErrOpen):
		outcome = "circuit_open"
		rep.CircuitOpen++
		lg.Warn().Msg("circuit open, batch skipped")
		return rep
	case err != nil:
		outcome = "error"
		rep.Failed++
		lg.Error().Err(err).Msg("supplier search failed")
		return rep
	}

	sc := domain.SearchContext{
		City: b.City, Country: b.Country, CheckIn: b.CheckIn, CheckOut: b.CheckOut,
		Adults: adults, Currency: currency, FetchedAt: start,
	}
	var (
		drafts  []domain.PropertyDraft
		offers  []domain.OfferDraft
		rejects []app.Reject
		dropped int
	)
	for _, raw := range raws {
		rec, err := st.norm.Normalize(raw, sc)
		if err != nil {
			rep.Rejected++
			observability.ObserveReject(code)
			lg.Debug().Err(err).Msg("record rejected")
			rejects = append(rejects, toReject(err))
			continue
		}
		drafts = append(drafts, rec.Property)
		offers = append(offers, rec.Offers...)
		dropped += rec.Dropped
	}
	if dropped > 0 {
		observability.ObserveOffers(code, "dropped", dropped)
	}
	if _, err := o.merge.RecordRejects(bctx, code, rejects); err != nil {
		lg.Error().Err(err).Int("rejects", len(rejects)).Msg("record rejects failed")
	}

	res, err := o.merge.MergeBatch(bctx, drafts, offers, code)
	if err != nil {
		outcome = "error"
		rep.Failed++
		lg.Error().Err(err).Msg("merge failed")
		return rep
	}
	rep.HotelsInserted, rep.HotelsMatched, rep.OffersInserted = res.HotelsInserted, res.HotelsMatched, res.OffersInserted

	ids := union(b.PropertyIDs, res.PropertyIDs)
	exp, err := o.store.ExpireOffers(bctx, domain.ExpireQuery{
		SupplierCode:  code,
		PropertyIDs:   ids,
		CheckIn:       b.CheckIn,
		CheckOut:      b.CheckOut,
		CreatedBefore: start,
		At:            o.clock.Now(),
	})
	if err != nil {
		lg.Error().Err(err).Msg("expire superseded offers failed")
	}
	expired := exp.Expired
	rep.OffersExpired = expired
	observability.ObserveOffers(code, "expired", int(expired))

	// keys that only lost offers still need their snapshot rebuilt
	keys := union(res.ProductKeys, exp.ProductKeys)
	if n, err := o.snaps.Refresh(bctx, keys); err != nil {
		lg.Error().Err(err).Msg("snapshot refresh failed")
	} else {
		rep.SnapshotsWritten = n
	}

	if res.OffersInserted > 0 || expired > 0 {
		ev := domain.OffersRefreshed{
			SupplierCode:   code,
			Tier:           tier,
			City:           b.City,
			Country:        b.Country,
			CheckIn:        params.CheckIn,
			CheckOut:       params.CheckOut,
			PropertyIDs:    ids,
			ProductKeys:    keys,
			OffersInserted: res.OffersInserted,
			OffersExpired:  expired,
			RefreshedAt:    o.clock.Now(),
		}
		if err := o.pub.PublishOffersRefreshed(bctx, ev); err != nil {
			lg.Warn().Err(err).Msg("publish offers refreshed failed")
		}
	}

	rep.Succeeded++
	lg.Info().
		Int("hotels", len(raws)).
		Int("offers_inserted", res.OffersInserted).
		Int64("offers_expired", expired).
		Msg("batch refreshed")
	return rep
}

func toReject(err error) app.Reject {
	var rej *normalize.RejectError
	if errors.As(err, &rej) {
		return app.Reject{SupplierHotelID: rej.SupplierHotelID, Reason: rej.Reason}
	}
	return app.Reject{Reason: err.Error()}
}

func (o *Orchestrator) finish(st *supplierState, rep SyncReport) SyncReport {
	rep.FinishedAt = o.clock.Now()
	st.mu.Lock()
	st.last[rep.Tier] = rep
	st.mu.Unlock()
	return rep
}

// Status reports every supplier in code order.
func (o *Orchestrator) Status() []SupplierStatus {
	out := make([]SupplierStatus, 0, len(o.codes))
	for _, code := range o.codes {
		st := o.suppliers[code]
		s := SupplierStatus{
			Supplier: code,
			Breaker:  o.breakers.Get(code).Snapshot(),
			Running:  st.running.Load(),
		}
		st.mu.Lock()
		s.HotSetSize = len(st.hotKeys)
		if !st.hotLoaded.IsZero() {
			t := st.hotLoaded
			s.HotSetLoadedAt = &t
		}
		s.LastOfferAt = st.lastOffer
		if len(st.last) > 0 {
			s.LastRuns = make(map[string]SyncReport, len(st.last))
			for k, v := range st.last {
				s.LastRuns[k] = v
			}
		}
		st.mu.Unlock()
		out = append(out, s)
	}
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
