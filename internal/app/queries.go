package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"airbnb_kpi/internal/domain"
)

type QueryService struct {
	repo     domain.ReportRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewQueryService(r domain.ReportRepository, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *QueryService) cacheGet(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, _ := s.cache.Get(ctx, key, dst)
	return ok
}

func (s *QueryService) cacheSet(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, v, int(s.cacheTTL.Seconds()))
}

// LatestReport returns the most recent stored run.
func (s *QueryService) LatestReport(ctx context.Context) (domain.Report, error) {
	var rep domain.Report
	if s.cacheGet(ctx, latestReportKey, &rep) {
		return rep, nil
	}
	rep, err := s.repo.LatestReport(ctx)
	if err != nil {
		return domain.Report{}, err
	}

	// optional size guard
	if b, _ := json.Marshal(rep); len(b) < 4_000_000 {
		s.cacheSet(ctx, latestReportKey, rep)
	}
	return rep, nil
}

// Report returns a specific run; runs are immutable so they bypass the cache.
func (s *QueryService) Report(ctx context.Context, runID string) (domain.Report, error) {
	return s.repo.GetReport(ctx, runID)
}

// SeriesNames lists the KPI tables of the latest run.
func (s *QueryService) SeriesNames(ctx context.Context) ([]string, error) {
	rep, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	return rep.SeriesNames(), nil
}

// Series returns one KPI table of the latest run, optionally narrowed to one
// dimension value (a city, a host type, a listing).
func (s *QueryService) Series(ctx context.Context, name, dimension string) (domain.Series, error) {
	key := seriesKey(name)
	var out domain.Series
	if !s.cacheGet(ctx, key, &out) {
		rep, err := s.LatestReport(ctx)
		if err != nil {
			return domain.Series{}, err
		}
		sr, found := rep.Series[name]
		if !found {
			return domain.Series{}, fmt.Errorf("%w: %s", domain.ErrUnknownKPI, name)
		}
		out = copySeries(sr)
		s.cacheSet(ctx, key, out)
	}
	if dimension == "" {
		return out, nil
	}
	return filterSeries(out, dimension), nil
}

func (s *QueryService) Amenities(ctx context.Context) ([]domain.AmenityStat, error) {
	rep, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	return rep.Amenities, nil
}

func (s *QueryService) BookingWindows(ctx context.Context) ([]domain.BookingWindow, error) {
	rep, err := s.LatestReport(ctx)
	if err != nil {
		return nil, err
	}
	return rep.BookingWindows, nil
}

// copy points to avoid aliasing the report's backing array
func copySeries(in domain.Series) domain.Series {
	out := domain.Series{Name: in.Name, Dimension: in.Dimension}
	if n := len(in.Points); n > 0 {
		out.Points = make([]domain.Point, n)
		copy(out.Points, in.Points)
	}
	return out
}

func filterSeries(in domain.Series, dimension string) domain.Series {
	out := domain.Series{Name: in.Name, Dimension: in.Dimension, Points: []domain.Point{}}
	for _, p := range in.Points {
		if p.Dimension == dimension {
			out.Points = append(out.Points, p)
		}
	}
	return out
}
