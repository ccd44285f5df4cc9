package app_test

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"time"

	"airbnb_kpi/internal/domain"
)

// ---- fakes ----

type fakeRepo struct {
	mu      sync.Mutex
	saved   []domain.Report
	saveErr error
	reads   int
}

func (f *fakeRepo) SaveReport(ctx context.Context, r domain.Report) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, r)
	return nil
}

func (f *fakeRepo) LatestReport(ctx context.Context) (domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if len(f.saved) == 0 {
		return domain.Report{}, domain.ErrNotFound
	}
	return f.saved[len(f.saved)-1], nil
}

func (f *fakeRepo) GetReport(ctx context.Context, runID string) (domain.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.saved {
		if r.RunID == runID {
			return r, nil
		}
	}
	return domain.Report{}, domain.ErrNotFound
}

// fakeCache stores JSON like the Redis adapter does.
type fakeCache struct {
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// ---- builders ----

func pfloat(f float64) *float64 { return &f }

func month(y int, m time.Month) domain.Month { return domain.NewMonth(y, m) }

func raw(id string, m domain.Month, revenue float64, openness int64, occupancy float64) domain.RawListingMonth {
	return domain.RawListingMonth{
		ID: id, Month: m, City: "Austin", HostType: "multi",
		Revenue: revenue, Openness: openness, Occupancy: occupancy,
		NightlyRate: pfloat(100), LeadTime: pfloat(10), LengthOfStay: pfloat(3),
	}
}

func source(name string, rows ...domain.RawListingMonth) domain.SourceTable {
	return domain.SourceTable{Name: name, Columns: append([]string(nil), domain.ListingColumns...), Rows: rows}
}

func fact(id string, m domain.Month, city string, revenue float64, openness int64, occupancy float64) domain.ListingMonth {
	return domain.ListingMonth{ID: id, Month: m, City: city, HostType: "multi",
		Revenue: revenue, Openness: openness, Occupancy: occupancy}
}

func amenityTable(rows ...domain.AmenityFlags) domain.AmenityTable {
	return domain.AmenityTable{Name: "amenities", Columns: append([]string(nil), domain.AmenityColumns...), Rows: rows}
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func values(s domain.Series) []*float64 {
	out := make([]*float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}
