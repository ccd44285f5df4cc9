package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpserver "airbnb_kpi/internal/adapters/http_server"
	"airbnb_kpi/internal/app"
	"airbnb_kpi/internal/domain"
)

type fakeRepo struct {
	rep domain.Report
	err error
}

func (f *fakeRepo) SaveReport(ctx context.Context, r domain.Report) error { return nil }
func (f *fakeRepo) LatestReport(ctx context.Context) (domain.Report, error) {
	return f.rep, f.err
}
func (f *fakeRepo) GetReport(ctx context.Context, runID string) (domain.Report, error) {
	if f.err != nil || runID != f.rep.RunID {
		return domain.Report{}, domain.ErrNotFound
	}
	return f.rep, nil
}

func pfloat(f float64) *float64 { return &f }

func newTestServer(t *testing.T, repo *fakeRepo) *httptest.Server {
	t.Helper()
	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{Q: app.NewQueryService(repo, nil, time.Minute)})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return ts
}

func sample() domain.Report {
	jan := domain.NewMonth(2019, time.January)
	feb := domain.NewMonth(2019, time.February)
	return domain.Report{
		RunID:       "run-1",
		GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Series: map[string]domain.Series{
			domain.KPITotalRevenue: {Name: domain.KPITotalRevenue, Points: []domain.Point{{Month: jan, Value: pfloat(100)}}},
			domain.KPIRevenueByCity: {Name: domain.KPIRevenueByCity, Dimension: domain.DimCity, Points: []domain.Point{
				{Month: jan, Dimension: "Austin", Value: pfloat(60)},
				{Month: jan, Dimension: "Dallas", Value: pfloat(40)},
			}},
		},
		Amenities: []domain.AmenityStat{
			{Month: jan, Category: domain.AmenityPool, Revenue: 60, Listings: 1, Rank: 1},
			{Month: feb, Category: domain.AmenityPool, Revenue: 10, Listings: 1, Rank: 1},
		},
	}
}

func get(t *testing.T, url string, hdr map[string]string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{})
	if res := get(t, ts.URL+"/healthz", nil); res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}

	srv := httpserver.New()
	srv.MountHandlers(&httpserver.Handlers{
		Q:     app.NewQueryService(&fakeRepo{}, nil, time.Minute),
		Ready: func(context.Context) error { return errors.New("db down") },
	})
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestLatestReport_ETag(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{rep: sample()})

	res := get(t, ts.URL+"/v1/report", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var rep domain.Report
	if err := json.NewDecoder(res.Body).Decode(&rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.RunID != "run-1" || len(rep.Series) != 2 {
		t.Fatalf("unexpected report: %+v", rep)
	}

	etag := res.Header.Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	if res2 := get(t, ts.URL+"/v1/report", map[string]string{"If-None-Match": etag}); res2.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", res2.StatusCode)
	}
}

func TestNoReportIsProblem404(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{err: domain.ErrNotFound})
	res := get(t, ts.URL+"/v1/report", nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/problem+json" {
		t.Fatalf("content type %q", ct)
	}
}

func TestRepoFailureIs500(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{err: errors.New("connection refused")})
	if res := get(t, ts.URL+"/v1/kpis", nil); res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d", res.StatusCode)
	}
}

func TestKPIRoutes(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{rep: sample()})

	var idx struct {
		RunID string   `json:"run_id"`
		KPIs  []string `json:"kpis"`
	}
	if err := json.NewDecoder(get(t, ts.URL+"/v1/kpis", nil).Body).Decode(&idx); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if idx.RunID != "run-1" || len(idx.KPIs) != 2 || idx.KPIs[0] != domain.KPIRevenueByCity {
		t.Fatalf("unexpected index: %+v", idx)
	}

	var s domain.Series
	res := get(t, ts.URL+"/v1/kpis/"+domain.KPIRevenueByCity+"?dimension=Austin", nil)
	if err := json.NewDecoder(res.Body).Decode(&s); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(s.Points) != 1 || s.Points[0].Dimension != "Austin" || *s.Points[0].Value != 60 {
		t.Fatalf("unexpected series: %+v", s)
	}

	if res := get(t, ts.URL+"/v1/kpis/bogus", nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown kpi: status %d", res.StatusCode)
	}
}

func TestReportByRunID(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{rep: sample()})
	if res := get(t, ts.URL+"/v1/reports/run-1", nil); res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	if res := get(t, ts.URL+"/v1/reports/other", nil); res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", res.StatusCode)
	}
}

func TestAmenitiesMonthFilter(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{rep: sample()})

	var stats []domain.AmenityStat
	if err := json.NewDecoder(get(t, ts.URL+"/v1/amenities?month=2019-02", nil).Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stats) != 1 || stats[0].Revenue != 10 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if res := get(t, ts.URL+"/v1/amenities?month=feb", nil); res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", res.StatusCode)
	}
}

func TestBookingWindowsEmptyArray(t *testing.T) {
	ts := newTestServer(t, &fakeRepo{rep: sample()})
	var bw []domain.BookingWindow
	res := get(t, ts.URL+"/v1/booking-windows", nil)
	if err := json.NewDecoder(res.Body).Decode(&bw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if bw == nil || len(bw) != 0 {
		t.Fatalf("expected empty array, got %v", bw)
	}
}
