package app_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"airbnb_kpi/internal/app"
	"airbnb_kpi/internal/domain"
)

type fakeSource struct {
	delay    map[string]time.Duration
	fail     map[string]bool
	inflight int32
	peak     int32
}

func (f *fakeSource) LoadListings(ctx context.Context, loc string) (domain.SourceTable, error) {
	n := atomic.AddInt32(&f.inflight, 1)
	defer atomic.AddInt32(&f.inflight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	time.Sleep(f.delay[loc])
	if f.fail[loc] {
		return domain.SourceTable{}, fmt.Errorf("cannot read %s", loc)
	}
	return source(loc, raw("A", month(2019, time.January), 1, 1, 1)), nil
}

func (f *fakeSource) LoadAmenities(ctx context.Context, loc string) (domain.AmenityTable, error) {
	if f.fail[loc] {
		return domain.AmenityTable{}, errors.New("no amenities")
	}
	return amenityTable(domain.AmenityFlags{ID: "A", Pool: true}), nil
}

func TestLoader_KeepsConfiguredOrder(t *testing.T) {
	src := &fakeSource{delay: map[string]time.Duration{"t1": 30 * time.Millisecond}}
	l := app.NewLoader(2)
	l.Register("table", src)

	refs := []domain.SourceRef{{Name: "y2019", Table: "t1"}, {Name: "y2020", Table: "t2"}, {Name: "y2021", Table: "t3"}}
	in, err := l.Load(context.Background(), refs, domain.SourceRef{Name: "amen", Table: "a"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, want := range []string{"y2019", "y2020", "y2021"} {
		if in.Listings[i].Name != want {
			t.Fatalf("listing %d = %s, want %s", i, in.Listings[i].Name, want)
		}
	}
	if in.Amenities.Name != "amen" || len(in.Amenities.Rows) != 1 {
		t.Fatalf("amenities = %+v", in.Amenities)
	}
	if p := atomic.LoadInt32(&src.peak); p > 2 {
		t.Fatalf("more than 2 concurrent loads: %d", p)
	}
}

func TestLoader_ReportsAllFailures(t *testing.T) {
	src := &fakeSource{fail: map[string]bool{"t1": true, "t3": true}}
	l := app.NewLoader(4)
	l.Register("table", src)

	refs := []domain.SourceRef{
		{Name: "a", Table: "t1"},
		{Name: "b", Table: "t2"},
		{Name: "c", Table: "t3"},
		{Name: "d", File: "x.csv"},
	}
	_, err := l.Load(context.Background(), refs, domain.SourceRef{})
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, part := range []string{"load a", "load c", `source "d"`} {
		if !strings.Contains(err.Error(), part) {
			t.Fatalf("error should mention %s: %v", part, err)
		}
	}
}

func TestLoader_RefValidation(t *testing.T) {
	l := app.NewLoader(1)
	if _, err := l.Load(context.Background(), nil, domain.SourceRef{}); !errors.Is(err, domain.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
	l.Register("table", &fakeSource{})
	_, err := l.Load(context.Background(), []domain.SourceRef{{Name: "both", Table: "t", File: "f"}}, domain.SourceRef{})
	if err == nil || !strings.Contains(err.Error(), "exactly one") {
		t.Fatalf("expected ref validation error, got %v", err)
	}
}
