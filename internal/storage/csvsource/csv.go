// Package csvsource reads listing-month and amenity tables from CSV.
package csvsource

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"airbnb_kpi/internal/domain"
)

// Source loads CSV files. Relative locations resolve against Dir.
type Source struct {
	Dir string
}

func New(dir string) *Source { return &Source{Dir: dir} }

func (s *Source) path(location string) string {
	if filepath.IsAbs(location) || s.Dir == "" {
		return location
	}
	return filepath.Join(s.Dir, location)
}

func (s *Source) LoadListings(ctx context.Context, location string) (domain.SourceTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.SourceTable{}, err
	}
	f, err := os.Open(s.path(location))
	if err != nil {
		return domain.SourceTable{}, err
	}
	defer f.Close()
	return ParseListings(strings.TrimSuffix(filepath.Base(location), filepath.Ext(location)), f)
}

func (s *Source) LoadAmenities(ctx context.Context, location string) (domain.AmenityTable, error) {
	if err := ctx.Err(); err != nil {
		return domain.AmenityTable{}, err
	}
	f, err := os.Open(s.path(location))
	if err != nil {
		return domain.AmenityTable{}, err
	}
	defer f.Close()
	return ParseAmenities(strings.TrimSuffix(filepath.Base(location), filepath.Ext(location)), f)
}

// header maps lower-cased column names to their index.
type header map[string]int

func readHeader(cr *csv.Reader) ([]string, header, error) {
	rec, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, header{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(rec))
	idx := make(header, len(rec))
	for i, c := range rec {
		c = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		cols[i] = c
		idx[c] = i
	}
	return cols, idx, nil
}

func (h header) has(cols []string) bool {
	for _, c := range cols {
		if _, ok := h[c]; !ok {
			return false
		}
	}
	return true
}

func (h header) cell(rec []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// ParseListings reads a listing-month CSV. Rows keep file order. When required
// columns are absent only the header is returned. Empty nullable cells stay nil.
// An empty file is a source with no rows.
func ParseListings(name string, r io.Reader) (domain.SourceTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cols, h, err := readHeader(cr)
	if err != nil {
		return domain.SourceTable{}, fmt.Errorf("%s: %w", name, err)
	}
	if cols == nil {
		// zero-byte file: an empty source with the canonical header
		return domain.SourceTable{Name: name, Columns: append([]string(nil), domain.ListingColumns...)}, nil
	}
	out := domain.SourceTable{Name: name, Columns: cols}
	if !h.has(domain.ListingColumns) {
		return out, nil
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.SourceTable{}, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		row, err := listingRow(h, rec)
		if err != nil {
			return domain.SourceTable{}, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func listingRow(h header, rec []string) (domain.RawListingMonth, error) {
	var (
		row domain.RawListingMonth
		err error
	)
	row.ID = h.cell(rec, domain.ColID)
	row.City = h.cell(rec, domain.ColCity)
	row.HostType = h.cell(rec, domain.ColHostType)
	if row.Month, err = domain.ParseMonth(h.cell(rec, domain.ColMonth)); err != nil {
		return row, err
	}
	if row.Revenue, err = number(h.cell(rec, domain.ColRevenue)); err != nil {
		return row, fmt.Errorf("%s: %w", domain.ColRevenue, err)
	}
	open, err := number(h.cell(rec, domain.ColOpenness))
	if err != nil {
		return row, fmt.Errorf("%s: %w", domain.ColOpenness, err)
	}
	row.Openness = int64(math.Round(open))
	if row.Occupancy, err = number(h.cell(rec, domain.ColOccupancy)); err != nil {
		return row, fmt.Errorf("%s: %w", domain.ColOccupancy, err)
	}
	if row.NightlyRate, err = nullable(h.cell(rec, domain.ColNightlyRate)); err != nil {
		return row, fmt.Errorf("%s: %w", domain.ColNightlyRate, err)
	}
	if row.LeadTime, err = nullable(h.cell(rec, domain.ColLeadTime)); err != nil {
		return row, fmt.Errorf("%s: %w", domain.ColLeadTime, err)
	}
	if row.LengthOfStay, err = nullable(h.cell(rec, domain.ColLengthOfStay)); err != nil {
		return row, fmt.Errorf("%s: %w", domain.ColLengthOfStay, err)
	}
	return row, nil
}

// ParseAmenities reads a (listing_id, pool, hot_tub) CSV.
func ParseAmenities(name string, r io.Reader) (domain.AmenityTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cols, h, err := readHeader(cr)
	if err != nil {
		return domain.AmenityTable{}, fmt.Errorf("%s: %w", name, err)
	}
	if cols == nil {
		return domain.AmenityTable{Name: name, Columns: append([]string(nil), domain.AmenityColumns...)}, nil
	}
	out := domain.AmenityTable{Name: name, Columns: cols}
	if !h.has(domain.AmenityColumns) {
		return out, nil
	}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.AmenityTable{}, fmt.Errorf("%s line %d: %w", name, line, err)
		}
		out.Rows = append(out.Rows, domain.AmenityFlags{
			ID:     h.cell(rec, domain.ColID),
			Pool:   flag(h.cell(rec, domain.ColPool)),
			HotTub: flag(h.cell(rec, domain.ColHotTub)),
		})
	}
	return out, nil
}

// number parses a required measure; blank or NA counts as zero.
func number(s string) (float64, error) {
	p, err := nullable(s)
	if err != nil || p == nil {
		return 0, err
	}
	return *p, nil
}

func nullable(s string) (*float64, error) {
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite value %q", s)
	}
	return &f, nil
}

func flag(s string) bool {
	switch strings.ToLower(s) {
	case "1", "1.0", "t", "true", "y", "yes":
		return true
	}
	return false
}
