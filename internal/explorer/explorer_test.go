// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package explorer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/boston311/internal/config"
	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/timeperiod"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeStore answers from fixed data and counts executions per plan kind.
type fakeStore struct {
	records []models.Record
	values  map[string][]string
	counts  []models.CategoryCount

	bounds    timeperiod.Range
	boundsErr error

	mu    sync.Mutex
	err   error
	block chan struct{}
	plans []query.Plan

	calls map[query.Kind]*atomic.Int64
}

func newFakeStore() *fakeStore {
	s := &fakeStore{
		records: []models.Record{
			{ID: "2", Neighborhood: "Roxbury", Source: "Citizens Connect App"},
			{ID: "1", Neighborhood: "Dorchester", Source: "Constituent Call"},
			{ID: "3", Neighborhood: "", Source: "Constituent Call"},
		},
		values: map[string][]string{
			models.ColumnNeighborhood: {"Dorchester", "Roxbury"},
			models.ColumnSource:       {"Citizens Connect App", "Constituent Call"},
		},
		counts: []models.CategoryCount{{Value: "Dorchester", Count: 2}, {Value: "Roxbury", Count: 1}},
		bounds: timeperiod.Range{
			Start: time.Date(2011, time.July, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, time.March, 14, 12, 0, 0, 1000, time.UTC),
		},
		calls: make(map[query.Kind]*atomic.Int64),
	}
	for _, k := range []query.Kind{query.KindRecords, query.KindSelection, query.KindDistinct, query.KindCounts, query.KindBounds} {
		s.calls[k] = &atomic.Int64{}
	}
	return s
}

func (s *fakeStore) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeStore) enter(ctx context.Context, plan query.Plan) error {
	s.calls[plan.Kind].Add(1)
	s.mu.Lock()
	s.plans = append(s.plans, plan)
	err, block := s.err, s.block
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", models.ErrStoreTimeout, ctx.Err())
		}
	}
	return err
}

func (s *fakeStore) Records(ctx context.Context, plan query.Plan) ([]models.Record, error) {
	if err := s.enter(ctx, plan); err != nil {
		return nil, err
	}
	return s.records, nil
}

func (s *fakeStore) Values(ctx context.Context, plan query.Plan) ([]string, error) {
	if err := s.enter(ctx, plan); err != nil {
		return nil, err
	}
	return s.values[plan.Column], nil
}

func (s *fakeStore) Counts(ctx context.Context, plan query.Plan) ([]models.CategoryCount, error) {
	if err := s.enter(ctx, plan); err != nil {
		return nil, err
	}
	return s.counts, nil
}

func (s *fakeStore) Bounds(ctx context.Context, plan query.Plan) (timeperiod.Range, error) {
	s.calls[plan.Kind].Add(1)
	return s.bounds, s.boundsErr
}

func (s *fakeStore) count(kind query.Kind) int64 {
	return s.calls[kind].Load()
}

var testNow = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Periods.Location = "UTC"
	cfg.Cache.TTL = 48 * time.Hour
	cfg.Cache.SweepInterval = -1
	cfg.Colors.SessionTTL = 0
	cfg.Store.QueryTimeout = time.Second
	return cfg
}

func newTestExplorer(t *testing.T, store *fakeStore, mutate ...func(*config.Config)) (*Explorer, *fakeClock) {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}
	clock := &fakeClock{now: testNow}
	e, err := New(context.Background(), store, cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e, clock
}

func TestNew_DiscoversDatasetBounds(t *testing.T) {
	store := newFakeStore()
	e, _ := newTestExplorer(t, store)

	if store.count(query.KindBounds) != 1 {
		t.Errorf("bounds queried %d times, want 1", store.count(query.KindBounds))
	}
	if got := e.Dataset(); !got.Start.Equal(store.bounds.Start) || !got.End.Equal(store.bounds.End) {
		t.Errorf("Dataset() = %v, want %v", got, store.bounds)
	}

	var allTime *timeperiod.Option
	for _, opt := range e.Periods(testNow) {
		if opt.Token == timeperiod.AllTime {
			allTime = &opt
		}
	}
	if allTime == nil {
		t.Fatal("all_time missing from Periods")
	}
	if !allTime.Range.End.Equal(store.bounds.End) {
		t.Errorf("all_time range = %v, want discovered bounds", allTime.Range)
	}
}

func TestNew_DatasetFallbacks(t *testing.T) {
	t.Run("bounds failure", func(t *testing.T) {
		store := newFakeStore()
		store.boundsErr = models.ErrStore
		e, _ := newTestExplorer(t, store)
		if !e.Dataset().IsZero() {
			t.Errorf("Dataset() = %v, want zero after failed discovery", e.Dataset())
		}
	})

	t.Run("empty dataset", func(t *testing.T) {
		store := newFakeStore()
		store.bounds = timeperiod.Range{}
		e, _ := newTestExplorer(t, store)
		if !e.Dataset().IsZero() {
			t.Errorf("Dataset() = %v, want zero", e.Dataset())
		}
	})

	t.Run("configured bounds", func(t *testing.T) {
		store := newFakeStore()
		e, _ := newTestExplorer(t, store, func(c *config.Config) {
			c.Periods.DatasetStart = "2015-01-01T00:00:00Z"
			c.Periods.DatasetEnd = "2020-01-01T00:00:00Z"
		})
		if store.count(query.KindBounds) != 0 {
			t.Error("configured bounds must skip discovery")
		}
		if e.Dataset().Start.Year() != 2015 {
			t.Errorf("Dataset() = %v", e.Dataset())
		}
	})
}

func TestNew_InvalidColors(t *testing.T) {
	cfg := testConfig()
	cfg.Colors.NullColor = "grey"
	if _, err := New(context.Background(), newFakeStore(), cfg); err == nil {
		t.Error("expected error for invalid null color")
	}
}

func TestQuery_CachesByCanonicalFilter(t *testing.T) {
	store := newFakeStore()
	e, _ := newTestExplorer(t, store)
	ctx := context.Background()

	first := query.FilterSet{Period: "year_2023", Neighborhoods: []string{"Roxbury", "Dorchester"}}
	same := query.FilterSet{Period: "year_2023", Neighborhoods: []string{"Dorchester", "Roxbury", "Dorchester"}}
	other := query.FilterSet{Period: "year_2023", Neighborhoods: []string{"Dorchester"}}

	for _, fs := range []query.FilterSet{first, same, first} {
		records, err := e.Query(ctx, fs)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("got %d records", len(records))
		}
	}
	if got := store.count(query.KindRecords); got != 1 {
		t.Errorf("store executed %d times, want 1 for equivalent filters", got)
	}

	if _, err := e.Query(ctx, other); err != nil {
		t.Fatal(err)
	}
	if got := store.count(query.KindRecords); got != 2 {
		t.Errorf("store executed %d times, want 2 after a different filter", got)
	}

	stats := e.CacheStats()[string(query.KindRecords)]
	if stats.Hits != 2 || stats.Misses != 2 {
		t.Errorf("stats = %+v, want 2 hits and 2 misses", stats)
	}
}

func TestQuery_RelativePeriodsRollOverAtMidnight(t *testing.T) {
	tests := []struct {
		period    string
		wantCalls int64
	}{
		{"last_30_days", 2},
		{"this_year", 2},
		{"year_2023", 1},
		{"all_time", 1},
		{"", 1},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			store := newFakeStore()
			e, clock := newTestExplorer(t, store)
			fs := query.FilterSet{Period: tt.period}

			if _, err := e.Query(context.Background(), fs); err != nil {
				t.Fatal(err)
			}
			clock.Advance(24 * time.Hour)
			if _, err := e.Query(context.Background(), fs); err != nil {
				t.Fatal(err)
			}
			if got := store.count(query.KindRecords); got != tt.wantCalls {
				t.Errorf("store executed %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestQuery_InvalidFilterNeverReachesStore(t *testing.T) {
	store := newFakeStore()
	e, _ := newTestExplorer(t, store)

	tests := []struct {
		name string
		fs   query.FilterSet
		want error
	}{
		{"unknown period", query.FilterSet{Period: "next_week"}, models.ErrUnknownPeriod},
		{"inverted bbox", query.FilterSet{BBox: &query.BBox{MinLon: -71, MaxLon: -72, MinLat: 42, MaxLat: 43}}, models.ErrInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Query(context.Background(), tt.fs); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if store.count(query.KindRecords) != 0 {
		t.Error("invalid filters must not execute")
	}
}

func TestQuery_FailuresAreNotCached(t *testing.T) {
	store := newFakeStore()
	e, _ := newTestExplorer(t, store)
	ctx := context.Background()
	fs := query.FilterSet{Period: "year_2023"}

	store.setErr(fmt.Errorf("%w: disk on fire", models.ErrStore))
	if _, err := e.Query(ctx, fs); !models.IsTransient(err) {
		t.Fatalf("err = %v, want transient store error", err)
	}

	store.setErr(nil)
	records, err := e.Query(ctx, fs)
	if err != nil {
		t.Fatalf("retry should execute again: %v", err)
	}
	if len(records) != 3 || store.count(query.KindRecords) != 2 {
		t.Errorf("records=%d calls=%d, want 3 and 2", len(records), store.count(query.KindRecords))
	}
}

func TestQuery_EmptyResultIsCached(t *testing.T) {
	store := newFakeStore()
	store.records = []models.Record{}
	e, _ := newTestExplorer(t, store)

	for i := 0; i < 2; i++ {
		records, err := e.Query(context.Background(), query.FilterSet{Neighborhoods: []string{"Nowhere"}})
		if err != nil || records == nil || len(records) != 0 {
			t.Fatalf("records=%v err=%v, want empty non-nil", records, err)
		}
	}
	if store.count(query.KindRecords) != 1 {
		t.Error("an empty result is a valid answer and must be cached")
	}
}

func TestQuery_SingleFlight(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	e, _ := newTestExplorer(t, store)

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Query(context.Background(), query.FilterSet{Period: "year_2022"})
			errs <- err
		}()
	}

	deadline := time.After(5 * time.Second)
	for store.count(query.KindRecords) == 0 {
		select {
		case <-deadline:
			t.Fatal("store never called")
		case <-time.After(time.Millisecond):
		}
	}
	// Give the remaining callers time to join the flight.
	time.Sleep(20 * time.Millisecond)
	close(store.block)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("caller failed: %v", err)
		}
	}
	if got := store.count(query.KindRecords); got != 1 {
		t.Errorf("store executed %d times, want 1", got)
	}
}

func TestQuery_Timeout(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	defer close(store.block)
	e, _ := newTestExplorer(t, store, func(c *config.Config) {
		c.Store.QueryTimeout = 20 * time.Millisecond
	})

	_, err := e.Query(context.Background(), query.FilterSet{})
	if !errors.Is(err, models.ErrStoreTimeout) {
		t.Fatalf("err = %v, want ErrStoreTimeout", err)
	}
	if e.CacheStats()[string(query.KindRecords)].Entries != 0 {
		t.Error("a timeout must not be cached")
	}
}

func TestCallerDeadline_IsStoreTimeout(t *testing.T) {
	bbox := &query.BBox{MinLon: -71.2, MinLat: 42.2, MaxLon: -71.0, MaxLat: 42.4}
	tests := []struct {
		name string
		call func(context.Context, *Explorer) error
	}{
		{"query", func(ctx context.Context, e *Explorer) error {
			_, err := e.Query(ctx, query.FilterSet{})
			return err
		}},
		{"select", func(ctx context.Context, e *Explorer) error {
			_, err := e.Select(ctx, query.FilterSet{BBox: bbox})
			return err
		}},
		{"options", func(ctx context.Context, e *Explorer) error {
			_, err := e.Options(ctx, models.ColumnNeighborhood, query.FilterSet{})
			return err
		}},
		{"counts", func(ctx context.Context, e *Explorer) error {
			_, err := e.Counts(ctx, models.ColumnNeighborhood, query.FilterSet{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.block = make(chan struct{})
			defer close(store.block)
			e, _ := newTestExplorer(t, store, func(c *config.Config) {
				c.Store.QueryTimeout = 10 * time.Second
			})

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()
			start := time.Now()
			err := tt.call(ctx, e)
			if !errors.Is(err, models.ErrStoreTimeout) {
				t.Fatalf("err = %v, want ErrStoreTimeout", err)
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("err = %v, want the caller's deadline kept in the chain", err)
			}
			if !models.IsTransient(err) {
				t.Errorf("IsTransient(%v) = false, want true", err)
			}
			if elapsed := time.Since(start); elapsed > 5*time.Second {
				t.Errorf("returned after %v, want the caller's deadline to bound the wait", elapsed)
			}
		})
	}
}

func TestCallerCancel_StaysCanceled(t *testing.T) {
	store := newFakeStore()
	store.block = make(chan struct{})
	defer close(store.block)
	e, _ := newTestExplorer(t, store, func(c *config.Config) {
		c.Store.QueryTimeout = 10 * time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := e.Query(ctx, query.FilterSet{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, models.ErrStoreTimeout) {
		t.Errorf("err = %v, a canceled caller is not a store timeout", err)
	}
}

func TestQuery_RangeBeyondYear9999(t *testing.T) {
	store := newFakeStore()
	e, _ := newTestExplorer(t, store)

	fs := query.FilterSet{Range: &timeperiod.Range{
		Start: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC),
	}}
	if _, err := e.Query(context.Background(), fs); !errors.Is(err, models.ErrInvalidFilter) {
		t.Fatalf("err = %v, want ErrInvalidFilter", err)
	}
	if got := store.count(query.KindRecords); got != 0 {
		t.Errorf("store executed %d times, want 0", got)
	}
}

func TestKey_EqualFiltersEqualKeys(t *testing.T) {
	e, clock := newTestExplorer(t, newFakeStore())
	a := query.FilterSet{Neighborhoods: []string{"Roxbury", "Dorchester"}, Period: "last_7_days"}
	b := query.FilterSet{Neighborhoods: []string{"Dorchester", "Roxbury"}, Period: "last_7_days"}

	ka, err := e.key(query.KindRecords, a.Canonical(), "", clock.Now())
	if err != nil {
		t.Fatalf("key(a) error = %v", err)
	}
	kb, err := e.key(query.KindRecords, b.Canonical(), "", clock.Now())
	if err != nil {
		t.Fatalf("key(b) error = %v", err)
	}
	if ka != kb {
		t.Errorf("key(a) = %s, key(b) = %s, want equal", ka, kb)
	}
}

func TestSelect(t *testing.T) {
	store := newFakeStore()
	e, _ := newTestExplorer(t, store)

	if _, err := e.Select(context.Background(), query.FilterSet{}); !errors.Is(err, models.ErrInvalidFilter) {
		t.Errorf("Select without bbox = %v, want ErrInvalidFilter", err)
	}

	bbox := &query.BBox{MinLon: -71.2, MinLat: 42.2, MaxLon: -71.0, MaxLat: 42.4}
	if _, err := e.Select(context.Background(), query.FilterSet{BBox: bbox}); err != nil {
		t.Fatal(err)
	}
	if store.count(query.KindSelection) != 1 {
		t.Fatal("selection should run a selection plan")
	}
	plan := store.plans[len(store.plans)-1]
	if last := plan.Args[len(plan.Args)-1]; last != 1000 {
		t.Errorf("selection limit arg = %v, want 1000", last)
	}
}

func TestOptionsAndCounts(t *testing.T) {
	store := newFakeStore()
	e, _ := newTestExplorer(t, store)
	ctx := context.Background()

	values, err := e.Options(ctx, models.ColumnNeighborhood, query.FilterSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 || values[0] != "Dorchester" {
		t.Errorf("Options = %v", values)
	}
	if _, err := e.Options(ctx, "case_title", query.FilterSet{}); !errors.Is(err, models.ErrInvalidFilter) {
		t.Errorf("Options(case_title) = %v, want ErrInvalidFilter", err)
	}

	counts, err := e.Counts(ctx, models.ColumnNeighborhood, query.FilterSet{})
	if err != nil {
		t.Fatal(err)
	}
	if len(counts) != 2 || counts[0].Count != 2 {
		t.Errorf("Counts = %v", counts)
	}

	// Same column, different kind: separate caches.
	if _, err := e.Options(ctx, models.ColumnNeighborhood, query.FilterSet{}); err != nil {
		t.Fatal(err)
	}
	if store.count(query.KindDistinct) != 1 || store.count(query.KindCounts) != 1 {
		t.Errorf("distinct=%d counts=%d, want 1 each", store.count(query.KindDistinct), store.count(query.KindCounts))
	}

	e.ClearCaches()
	if _, err := e.Options(ctx, models.ColumnNeighborhood, query.FilterSet{}); err != nil {
		t.Fatal(err)
	}
	if store.count(query.KindDistinct) != 2 {
		t.Error("ClearCaches should force re-execution")
	}
}
