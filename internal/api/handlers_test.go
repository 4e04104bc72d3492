// Boston 311 Explorer - Service Request Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/boston311

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/boston311/internal/cache"
	"github.com/tomtom215/boston311/internal/database/query"
	"github.com/tomtom215/boston311/internal/explorer"
	"github.com/tomtom215/boston311/internal/models"
	"github.com/tomtom215/boston311/internal/palette"
	"github.com/tomtom215/boston311/internal/timeperiod"
)

var testNow = time.Date(2024, time.March, 15, 14, 0, 0, 0, time.UTC)

// fakeExplorer records the filters it receives and answers from fixed data.
type fakeExplorer struct {
	mu       sync.Mutex
	records  []models.Record
	err      error
	lastFS   query.FilterSet
	lastCol  string
	sessions map[string]*palette.Session
	cleared  bool
}

func newFakeExplorer() *fakeExplorer {
	return &fakeExplorer{
		records: []models.Record{
			{ID: "101", Neighborhood: "Dorchester", Source: "Constituent Call"},
			{ID: "102", Neighborhood: "Roxbury", Source: "Citizens Connect App"},
		},
		sessions: make(map[string]*palette.Session),
	}
}

func (f *fakeExplorer) fetch(fs query.FilterSet, column string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFS = fs
	f.lastCol = column
	return f.err
}

func (f *fakeExplorer) Query(_ context.Context, fs query.FilterSet) ([]models.Record, error) {
	if err := f.fetch(fs, ""); err != nil {
		return nil, err
	}
	return f.records, nil
}

func (f *fakeExplorer) Select(ctx context.Context, fs query.FilterSet) ([]models.Record, error) {
	if fs.BBox == nil {
		return nil, fmt.Errorf("%w: selection requires a bounding box", models.ErrInvalidFilter)
	}
	return f.Query(ctx, fs)
}

func (f *fakeExplorer) Options(_ context.Context, column string, fs query.FilterSet) ([]string, error) {
	if err := f.fetch(fs, column); err != nil {
		return nil, err
	}
	if !models.IsCategoryColumn(column) {
		return nil, fmt.Errorf("%w: unknown column %q", models.ErrInvalidFilter, column)
	}
	return []string{"Dorchester", "Roxbury"}, nil
}

func (f *fakeExplorer) Counts(_ context.Context, column string, fs query.FilterSet) ([]models.CategoryCount, error) {
	if err := f.fetch(fs, column); err != nil {
		return nil, err
	}
	return nil, nil
}

func (f *fakeExplorer) Periods(now time.Time) []timeperiod.Option {
	return []timeperiod.Option{{
		Token: "year_2024",
		Label: "2024",
		Range: timeperiod.Range{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: now},
	}}
}

func (f *fakeExplorer) Now() time.Time            { return testNow }
func (f *fakeExplorer) Dataset() timeperiod.Range { return timeperiod.Range{} }
func (f *fakeExplorer) Columns() []string         { return []string{models.ColumnNeighborhood} }
func (f *fakeExplorer) DefaultAlpha() float64     { return 0.8 }

func (f *fakeExplorer) NewSession(context.Context) (*palette.Session, error) {
	s := palette.NewSession(uuid.NewString(), f.Columns(), palette.DefaultPalette, palette.Gray)
	f.mu.Lock()
	f.sessions[s.ID] = s
	f.mu.Unlock()
	return s, nil
}

func (f *fakeExplorer) Session(id string) (*palette.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, explorer.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeExplorer) ResetSession(_ context.Context, id string) (*palette.Session, error) {
	s, err := f.Session(id)
	if err != nil {
		return nil, err
	}
	s.Reset()
	return s, nil
}

func (f *fakeExplorer) CloseSession(id string) {
	f.mu.Lock()
	delete(f.sessions, id)
	f.mu.Unlock()
}

func (f *fakeExplorer) SessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeExplorer) Legend(id, column string, records []models.Record) ([]palette.LegendEntry, error) {
	s, err := f.Session(id)
	if err != nil {
		return nil, err
	}
	a, err := s.Assigner(column)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(records))
	for i := range records {
		values[i] = records[i].Category(column)
	}
	return a.Legend(values), nil
}

func (f *fakeExplorer) Colors(id, column string, records []models.Record, alpha float64) ([]palette.RGBA, error) {
	out := make([]palette.RGBA, len(records))
	if column == "" {
		for i := range out {
			out[i] = palette.Gray.WithAlpha(alpha)
		}
		return out, nil
	}
	s, err := f.Session(id)
	if err != nil {
		return nil, err
	}
	for i := range records {
		c, err := s.ColorFor(column, records[i].Category(column))
		if err != nil {
			return nil, err
		}
		out[i] = c.WithAlpha(alpha)
	}
	return out, nil
}

func (f *fakeExplorer) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{"records": {Hits: 3, Misses: 1, Entries: 1}}
}

func (f *fakeExplorer) ClearCaches() {
	f.mu.Lock()
	f.cleared = true
	f.mu.Unlock()
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T) (http.Handler, *fakeExplorer) {
	t.Helper()
	fe := newFakeExplorer()
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return NewRouter(NewHandler(fe, fakePinger{}), NewChiMiddleware(cfg)), fe
}

func do(t *testing.T, h http.Handler, method, target string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var resp APIResponse
	if rec.Code != http.StatusNoContent {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s %s: invalid JSON body %q: %v", method, target, rec.Body.String(), err)
		}
	}
	return rec, resp
}

// decodeData re-decodes the envelope's data field into out.
func decodeData(t *testing.T, resp APIResponse, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("decode data %s: %v", raw, err)
	}
}

func TestRequests_ParsesFilters(t *testing.T) {
	router, fe := newTestRouter(t)

	target := "/api/v1/requests?period=last_30_days&neighborhood=Roxbury&neighborhood=Dorchester" +
		"&source=Constituent+Call&subject=Public+Works&bbox=-71.2,42.2,-71.0,42.4&q=Pothole"
	rec, resp := do(t, router, http.MethodGet, target)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !resp.Success || resp.Meta == nil || resp.Meta.Count == nil || *resp.Meta.Count != 2 {
		t.Fatalf("unexpected envelope: %+v", resp)
	}

	fs := fe.lastFS
	if fs.Period != "last_30_days" || fs.Text != "Pothole" {
		t.Errorf("period/text = %q/%q", fs.Period, fs.Text)
	}
	if len(fs.Neighborhoods) != 2 || len(fs.Sources) != 1 || len(fs.Subjects) != 1 {
		t.Errorf("sets = %v %v %v", fs.Neighborhoods, fs.Sources, fs.Subjects)
	}
	want := query.BBox{MinLon: -71.2, MinLat: 42.2, MaxLon: -71.0, MaxLat: 42.4}
	if fs.BBox == nil || *fs.BBox != want {
		t.Errorf("bbox = %v, want %v", fs.BBox, want)
	}

	var data RecordsResponse
	decodeData(t, resp, &data)
	if len(data.Records) != 2 || len(data.Colors) != 2 {
		t.Fatalf("records/colors = %d/%d", len(data.Records), len(data.Colors))
	}
	if data.Colors[0].A != 204 {
		t.Errorf("default alpha 0.8 should give A=204, got %d", data.Colors[0].A)
	}
	if data.Legend != nil {
		t.Errorf("legend without color_by: %v", data.Legend)
	}
}

func TestRequests_ExplicitRange(t *testing.T) {
	router, fe := newTestRouter(t)

	rec, _ := do(t, router, http.MethodGet, "/api/v1/requests?start=2024-01-01T00:00:00Z&end=2024-02-01T00:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	rng := fe.lastFS.Range
	if rng == nil || !rng.Start.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) ||
		!rng.End.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("range = %v", rng)
	}
}

func TestRequests_InvalidFilters(t *testing.T) {
	router, _ := newTestRouter(t)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{"start without end", "start=2024-01-01T00:00:00Z", ErrCodeInvalidFilter},
		{"inverted range", "start=2024-02-01T00:00:00Z&end=2024-01-01T00:00:00Z", ErrCodeInvalidFilter},
		{"malformed start", "start=yesterday&end=2024-01-01T00:00:00Z", ErrCodeValidationFailed},
		{"period and range", "period=year_2024&start=2024-01-01T00:00:00Z&end=2024-02-01T00:00:00Z", ErrCodeInvalidFilter},
		{"bad period shape", "period=Last+Week!", ErrCodeValidationFailed},
		{"bbox arity", "bbox=1,2,3", ErrCodeInvalidFilter},
		{"bbox not numeric", "bbox=a,b,c,d", ErrCodeInvalidFilter},
		{"bbox inverted", "bbox=-71.0,42.2,-71.2,42.4", ErrCodeInvalidFilter},
		{"bbox out of range", "bbox=-200,42.2,-71.0,42.4", ErrCodeInvalidFilter},
		{"text too long", "q=" + strings.Repeat("x", 201), ErrCodeValidationFailed},
		{"alpha out of range", "alpha=1.5", ErrCodeValidationFailed},
		{"alpha not numeric", "alpha=opaque", ErrCodeInvalidFilter},
		{"color_by without session", "color_by=source", ErrCodeInvalidFilter},
		{"color_by unknown column", "color_by=case_title&session=" + uuid.NewString(), ErrCodeValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, router, http.MethodGet, "/api/v1/requests?"+tt.query)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if resp.Success || resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestRequests_ColoredBySession(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/sessions")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: %d %s", rec.Code, rec.Body.String())
	}
	var session SessionResponse
	decodeData(t, resp, &session)

	rec, resp = do(t, router, http.MethodGet,
		"/api/v1/requests?color_by=neighborhood&alpha=1&session="+session.ID)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var data RecordsResponse
	decodeData(t, resp, &data)

	if data.ColorBy != models.ColumnNeighborhood {
		t.Errorf("color_by = %q", data.ColorBy)
	}
	if data.Colors[0] != palette.DefaultPalette[0] || data.Colors[1] != palette.DefaultPalette[1] {
		t.Errorf("colors = %v", data.Colors)
	}
	want := []palette.LegendEntry{
		{Value: "Dorchester", Hex: palette.DefaultPalette[0].Hex()},
		{Value: "Roxbury", Hex: palette.DefaultPalette[1].Hex()},
	}
	if len(data.Legend) != 2 || data.Legend[0] != want[0] || data.Legend[1] != want[1] {
		t.Errorf("legend = %v, want %v", data.Legend, want)
	}
}

func TestSelection_RequiresBBox(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, resp := do(t, router, http.MethodGet, "/api/v1/selection")
	if rec.Code != http.StatusBadRequest || resp.Error.Code != ErrCodeInvalidFilter {
		t.Errorf("no bbox: %d %+v", rec.Code, resp.Error)
	}

	rec, _ = do(t, router, http.MethodGet, "/api/v1/selection?bbox=-71.2,42.2,-71.0,42.4")
	if rec.Code != http.StatusOK {
		t.Errorf("with bbox: %d %s", rec.Code, rec.Body.String())
	}
}

func TestOptionsAndCounts(t *testing.T) {
	router, fe := newTestRouter(t)

	rec, resp := do(t, router, http.MethodGet, "/api/v1/options/neighborhood?period=year_2024")
	if rec.Code != http.StatusOK {
		t.Fatalf("options: %d %s", rec.Code, rec.Body.String())
	}
	var values []string
	decodeData(t, resp, &values)
	if len(values) != 2 || fe.lastCol != models.ColumnNeighborhood || fe.lastFS.Period != "year_2024" {
		t.Errorf("values = %v, column = %q, fs = %+v", values, fe.lastCol, fe.lastFS)
	}

	rec, resp = do(t, router, http.MethodGet, "/api/v1/options/case_title")
	if rec.Code != http.StatusBadRequest || resp.Error.Code != ErrCodeInvalidFilter {
		t.Errorf("unknown column: %d %+v", rec.Code, resp.Error)
	}

	// An empty aggregate is an empty list, not null.
	rec, resp = do(t, router, http.MethodGet, "/api/v1/counts/source")
	if rec.Code != http.StatusOK {
		t.Fatalf("counts: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) || *resp.Meta.Count != 0 {
		t.Errorf("counts body = %s", rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		retryable  bool
	}{
		{"unknown period", fmt.Errorf("%w: %q", models.ErrUnknownPeriod, "fortnight"), http.StatusBadRequest, ErrCodeUnknownPeriod, false},
		{"invalid filter", models.ErrInvalidFilter, http.StatusBadRequest, ErrCodeInvalidFilter, false},
		{"store timeout", fmt.Errorf("%w: records", models.ErrStoreTimeout), http.StatusGatewayTimeout, ErrCodeStoreTimeout, true},
		{"store failure", fmt.Errorf("%w: circuit breaker is open", models.ErrStore), http.StatusBadGateway, ErrCodeStoreUnavailable, true},
		{"canceled", context.Canceled, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, false},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, fe := newTestRouter(t)
			fe.err = tt.err

			rec, resp := do(t, router, http.MethodGet, "/api/v1/requests")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode || resp.Error.Retryable != tt.retryable {
				t.Errorf("error = %+v, want code %s retryable %v", resp.Error, tt.wantCode, tt.retryable)
			}
			if tt.retryable && rec.Header().Get("Retry-After") == "" {
				t.Error("transient failures should set Retry-After")
			}
			if resp.Error != nil && resp.Error.RequestID == "" {
				t.Error("error should carry the request ID")
			}
			if tt.wantStatus >= 500 && strings.Contains(resp.Error.Message, "boom") {
				t.Error("internal error details must not leak")
			}
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	router, fe := newTestRouter(t)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/sessions")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	var s SessionResponse
	decodeData(t, resp, &s)
	if _, err := uuid.Parse(s.ID); err != nil || len(s.Columns) != 1 {
		t.Fatalf("session = %+v", s)
	}

	rec, resp = do(t, router, http.MethodGet, "/api/v1/sessions/"+s.ID+"/legend/neighborhood?period=year_2024")
	if rec.Code != http.StatusOK {
		t.Fatalf("legend: %d %s", rec.Code, rec.Body.String())
	}
	var legend LegendResponse
	decodeData(t, resp, &legend)
	if legend.Column != models.ColumnNeighborhood || len(legend.Legend) != 2 {
		t.Errorf("legend = %+v", legend)
	}

	rec, _ = do(t, router, http.MethodPost, "/api/v1/sessions/"+s.ID+"/reset")
	if rec.Code != http.StatusOK {
		t.Errorf("reset: %d", rec.Code)
	}

	rec, _ = do(t, router, http.MethodDelete, "/api/v1/sessions/"+s.ID)
	if rec.Code != http.StatusNoContent || fe.SessionCount() != 0 {
		t.Errorf("delete: %d, sessions %d", rec.Code, fe.SessionCount())
	}

	rec, resp = do(t, router, http.MethodPost, "/api/v1/sessions/"+s.ID+"/reset")
	if rec.Code != http.StatusNotFound || resp.Error.Code != ErrCodeSessionNotFound {
		t.Errorf("reset after delete: %d %+v", rec.Code, resp.Error)
	}

	rec, resp = do(t, router, http.MethodGet, "/api/v1/sessions/"+uuid.NewString()+"/legend/neighborhood")
	if rec.Code != http.StatusNotFound {
		t.Errorf("legend of unknown session: %d", rec.Code)
	}

	rec, resp = do(t, router, http.MethodPost, "/api/v1/sessions/not-a-uuid/reset")
	if rec.Code != http.StatusBadRequest || resp.Error.Code != ErrCodeValidationFailed {
		t.Errorf("malformed id: %d %+v", rec.Code, resp.Error)
	}
}

func TestPeriods(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, resp := do(t, router, http.MethodGet, "/api/v1/periods")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var data PeriodsResponse
	decodeData(t, resp, &data)
	if !data.Now.Equal(testNow) || len(data.Options) != 1 || data.Options[0].Token != "year_2024" {
		t.Errorf("periods = %+v", data)
	}
	if data.AllTime != nil {
		t.Errorf("all_time should be omitted when unbounded, got %v", data.AllTime)
	}
}

func TestClearCache(t *testing.T) {
	router, fe := newTestRouter(t)

	rec, _ := do(t, router, http.MethodDelete, "/api/v1/cache")
	if rec.Code != http.StatusNoContent || !fe.cleared {
		t.Errorf("status = %d, cleared = %v", rec.Code, fe.cleared)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		store      Pinger
		wantStatus int
		wantHealth string
	}{
		{"connected", fakePinger{}, http.StatusOK, "healthy"},
		{"ping fails", fakePinger{err: models.ErrStore}, http.StatusServiceUnavailable, "degraded"},
		{"no store", nil, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(NewHandler(newFakeExplorer(), tt.store), nil)
			rec, resp := do(t, router, http.MethodGet, "/health")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var health HealthStatus
			decodeData(t, resp, &health)
			if health.Status != tt.wantHealth {
				t.Errorf("status = %q, want %q", health.Status, tt.wantHealth)
			}
			if c := health.Caches["records"]; c.Hits != 3 || c.HitRate != 75 {
				t.Errorf("cache stats = %+v", c)
			}
		})
	}
}

func TestRouter_Infrastructure(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, resp := do(t, router, http.MethodGet, "/api/v1/nope")
	if rec.Code != http.StatusNotFound || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown route: %d %+v", rec.Code, resp.Error)
	}

	rec, _ = do(t, router, http.MethodPut, "/api/v1/requests")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("wrong method: %d", rec.Code)
	}

	rec, _ = do(t, router, http.MethodGet, "/api/v1/periods")
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("security headers missing: %v", rec.Header())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	scrape := httptest.NewRecorder()
	router.ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if scrape.Code != http.StatusOK || !strings.Contains(scrape.Body.String(), "api_requests_total") {
		t.Errorf("/metrics: %d", scrape.Code)
	}
}
