package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/hashicorp/go-multierror"

	"airbnb_kpi/internal/domain"
)

// NormalizedTable is a source table after null filling.
type NormalizedTable struct {
	Name    string
	Columns []string
	Rows    []domain.ListingMonth
}

// ValidateColumns reports every required column absent from have.
// Column names compare case-insensitively.
func ValidateColumns(table string, have, required []string) error {
	present := make(map[string]bool, len(have))
	for _, c := range have {
		present[normColumn(c)] = true
	}
	var merr *multierror.Error
	for _, c := range required {
		if !present[normColumn(c)] {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w %q", table, domain.ErrMissingColumn, c))
		}
	}
	return merr.ErrorOrNil()
}

func normColumn(c string) string { return strings.ToLower(strings.TrimSpace(c)) }

// Normalize validates each table and fills nulls in numeric fields with zero.
// Missing values are counted, never rejected. A table with no rows is valid.
func Normalize(tables []domain.SourceTable) ([]NormalizedTable, domain.MissingReport, error) {
	var total domain.MissingReport
	out := make([]NormalizedTable, 0, len(tables))
	for _, t := range tables {
		if err := ValidateColumns(t.Name, t.Columns, domain.ListingColumns); err != nil {
			return nil, domain.MissingReport{}, err
		}
		nt, miss, err := normalizeTable(t)
		if err != nil {
			return nil, domain.MissingReport{}, err
		}
		total = total.Add(miss)
		out = append(out, nt)
	}
	return out, total, nil
}

func normalizeTable(t domain.SourceTable) (NormalizedTable, domain.MissingReport, error) {
	miss := domain.MissingReport{Rows: len(t.Rows)}
	rows := make([]domain.ListingMonth, 0, len(t.Rows))
	for i, r := range t.Rows {
		if err := validateRow(r); err != nil {
			return NormalizedTable{}, miss, fmt.Errorf("%s row %d: %w", t.Name, i, err)
		}
		if r.NightlyRate == nil {
			miss.NightlyRate++
		}
		if r.LeadTime == nil {
			miss.LeadTime++
		}
		if r.LengthOfStay == nil {
			miss.LengthOfStay++
		}
		rows = append(rows, domain.ListingMonth{
			ID:           strings.TrimSpace(r.ID),
			Month:        r.Month,
			City:         strings.TrimSpace(r.City),
			HostType:     strings.TrimSpace(r.HostType),
			Revenue:      r.Revenue,
			Openness:     r.Openness,
			Occupancy:    r.Occupancy,
			NightlyRate:  orZero(r.NightlyRate),
			LeadTime:     orZero(r.LeadTime),
			LengthOfStay: orZero(r.LengthOfStay),
		})
	}
	return NormalizedTable{Name: t.Name, Columns: t.Columns, Rows: rows}, miss, nil
}

func validateRow(r domain.RawListingMonth) error {
	switch {
	case strings.TrimSpace(r.ID) == "":
		return fmt.Errorf("%w: empty listing id", domain.ErrInvalidRow)
	case r.Month.IsZero():
		return fmt.Errorf("%w: listing %s has no month", domain.ErrInvalidRow, r.ID)
	case r.Revenue < 0:
		return fmt.Errorf("%w: listing %s negative revenue %v", domain.ErrInvalidRow, r.ID, r.Revenue)
	case r.Openness < 0:
		return fmt.Errorf("%w: listing %s negative openness %d", domain.ErrInvalidRow, r.ID, r.Openness)
	case !finite(r.Revenue):
		return fmt.Errorf("%w: listing %s revenue %v", domain.ErrInvalidRow, r.ID, r.Revenue)
	case r.Occupancy < 0 || r.Occupancy > 1 || math.IsNaN(r.Occupancy):
		return fmt.Errorf("%w: listing %s occupancy %v outside [0,1]", domain.ErrInvalidRow, r.ID, r.Occupancy)
	}
	optional := []struct {
		col string
		v   *float64
	}{
		{domain.ColNightlyRate, r.NightlyRate},
		{domain.ColLeadTime, r.LeadTime},
		{domain.ColLengthOfStay, r.LengthOfStay},
	}
	for _, o := range optional {
		if o.v != nil && !finite(*o.v) {
			return fmt.Errorf("%w: listing %s %s %v", domain.ErrInvalidRow, r.ID, o.col, *o.v)
		}
	}
	return nil
}

func finite(f float64) bool { return !math.IsInf(f, 0) && !math.IsNaN(f) }

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// NormalizeAmenities validates the amenity table and trims listing ids.
// A run without an amenity source passes a zero table and gets no flags.
func NormalizeAmenities(t domain.AmenityTable) ([]domain.AmenityFlags, error) {
	if t.Name == "" && len(t.Columns) == 0 && len(t.Rows) == 0 {
		return nil, nil
	}
	if err := ValidateColumns(t.Name, t.Columns, domain.AmenityColumns); err != nil {
		return nil, err
	}
	out := make([]domain.AmenityFlags, 0, len(t.Rows))
	for _, f := range t.Rows {
		f.ID = strings.TrimSpace(f.ID)
		if f.ID == "" {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
