package app_test

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"airbnb_kpi/internal/app"
	"airbnb_kpi/internal/domain"
)

func TestNormalize_FillsNullsAndCounts(t *testing.T) {
	r := raw("A", month(2019, time.January), 100, 30, 0.5)
	r.NightlyRate, r.LeadTime = nil, nil
	r2 := raw("B", month(2019, time.January), 50, 30, 0.2)
	r2.LengthOfStay = nil

	out, miss, err := app.Normalize([]domain.SourceTable{source("y2019", r, r2)})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	want := domain.MissingReport{Rows: 2, NightlyRate: 1, LeadTime: 1, LengthOfStay: 1}
	if miss != want {
		t.Fatalf("missing = %+v, want %+v", miss, want)
	}
	got := out[0].Rows[0]
	if got.NightlyRate != 0 || got.LeadTime != 0 || got.LengthOfStay != 3 {
		t.Fatalf("nulls not filled with zero: %+v", got)
	}
	if out[0].Rows[1].LengthOfStay != 0 {
		t.Fatalf("length of stay not filled: %+v", out[0].Rows[1])
	}
}

func TestNormalize_EmptyTableIsValid(t *testing.T) {
	out, miss, err := app.Normalize([]domain.SourceTable{source("empty")})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(out) != 1 || len(out[0].Rows) != 0 || miss.Rows != 0 {
		t.Fatalf("unexpected output: %+v %+v", out, miss)
	}
}

func TestNormalize_MissingColumns(t *testing.T) {
	tbl := domain.SourceTable{Name: "broken", Columns: []string{"listing_id", "MONTH", "city"}}
	_, _, err := app.Normalize([]domain.SourceTable{tbl})
	if !errors.Is(err, domain.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	for _, col := range []string{"revenue", "openness", "occupancy", "host_type"} {
		if !strings.Contains(err.Error(), col) {
			t.Fatalf("error should name %s: %v", col, err)
		}
	}
	if strings.Contains(err.Error(), `"month"`) {
		t.Fatalf("month is present (case-insensitive) and must not be reported: %v", err)
	}
}

func TestNormalize_InvalidRows(t *testing.T) {
	cases := map[string]domain.RawListingMonth{
		"empty id":          raw(" ", month(2019, time.January), 1, 1, 0.5),
		"no month":          raw("A", domain.Month{}, 1, 1, 0.5),
		"negative revenue":  raw("A", month(2019, time.January), -1, 1, 0.5),
		"negative openness": raw("A", month(2019, time.January), 1, -1, 0.5),
		"occupancy above 1": raw("A", month(2019, time.January), 1, 1, 1.5),
		"occupancy below 0": raw("A", month(2019, time.January), 1, 1, -0.1),
		"occupancy NaN":     raw("A", month(2019, time.January), 1, 1, math.NaN()),
		"infinite revenue":  raw("A", month(2019, time.January), math.Inf(1), 1, 0.5),
	}
	inf := raw("A", month(2019, time.January), 1, 1, 0.5)
	inf.LeadTime = pfloat(math.Inf(1))
	cases["infinite lead time"] = inf
	nan := raw("A", month(2019, time.January), 1, 1, 0.5)
	nan.NightlyRate = pfloat(math.NaN())
	cases["NaN nightly rate"] = nan
	neg := raw("A", month(2019, time.January), 1, 1, 0.5)
	neg.LengthOfStay = pfloat(math.Inf(-1))
	cases["infinite length of stay"] = neg
	for name, r := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := app.Normalize([]domain.SourceTable{source("s", r)})
			if !errors.Is(err, domain.ErrInvalidRow) {
				t.Fatalf("expected ErrInvalidRow, got %v", err)
			}
		})
	}
}

func TestNormalizeAmenities(t *testing.T) {
	flags, err := app.NormalizeAmenities(amenityTable(
		domain.AmenityFlags{ID: " A ", Pool: true},
		domain.AmenityFlags{ID: ""},
	))
	if err != nil {
		t.Fatalf("NormalizeAmenities: %v", err)
	}
	if len(flags) != 1 || flags[0].ID != "A" {
		t.Fatalf("unexpected flags: %+v", flags)
	}

	if flags, err := app.NormalizeAmenities(domain.AmenityTable{}); err != nil || flags != nil {
		t.Fatalf("zero table should yield no flags, got %v %v", flags, err)
	}

	_, err = app.NormalizeAmenities(domain.AmenityTable{Name: "x", Columns: []string{"listing_id", "pool"}})
	if !errors.Is(err, domain.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}
