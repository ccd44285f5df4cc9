package domain

import (
	"fmt"
	"time"
)

// Month is a calendar year-month. Its text form is "YYYY-MM".
type Month struct {
	Year  int
	Month time.Month
}

func NewMonth(year int, m time.Month) Month { return Month{Year: year, Month: m} }

// ParseMonth accepts "YYYY-MM" and, for convenience, full dates ("YYYY-MM-DD").
func ParseMonth(s string) (Month, error) {
	if len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			return Month{Year: t.Year(), Month: t.Month()}, nil
		}
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", s, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

func (m Month) String() string { return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month)) }

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

func (m Month) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Month) UnmarshalText(b []byte) error {
	p, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = p
	return nil
}

// RawListingMonth is one source row as loaded, before null filling.
type RawListingMonth struct {
	ID           string
	Month        Month
	City         string
	HostType     string
	Revenue      float64
	Openness     int64 // available nights
	Occupancy    float64
	NightlyRate  *float64
	LeadTime     *float64
	LengthOfStay *float64
}

// ListingMonth is a normalized row of the canonical fact table.
// (ID, Month) is unique once the table has been unified.
type ListingMonth struct {
	ID           string
	Month        Month
	City         string
	HostType     string
	Revenue      float64
	Openness     int64
	Occupancy    float64
	NightlyRate  float64
	LeadTime     float64
	LengthOfStay float64
}

// OccupiedNights is openness weighted by the occupancy ratio.
func (l ListingMonth) OccupiedNights() float64 { return float64(l.Openness) * l.Occupancy }

// ListingKey identifies a listing-month.
type ListingKey struct {
	ID    string
	Month Month
}

func (l ListingMonth) Key() ListingKey { return ListingKey{ID: l.ID, Month: l.Month} }

// Column names of the listing-month schema.
const (
	ColID           = "listing_id"
	ColMonth        = "month"
	ColCity         = "city"
	ColHostType     = "host_type"
	ColRevenue      = "revenue"
	ColOpenness     = "openness"
	ColOccupancy    = "occupancy"
	ColNightlyRate  = "nightly_rate"
	ColLeadTime     = "lead_time"
	ColLengthOfStay = "length_of_stay"

	ColPool   = "pool"
	ColHotTub = "hot_tub"
)

// ListingColumns is the full listing-month schema, in canonical order.
var ListingColumns = []string{
	ColID, ColMonth, ColCity, ColHostType, ColRevenue, ColOpenness,
	ColOccupancy, ColNightlyRate, ColLeadTime, ColLengthOfStay,
}

// AmenityColumns is the amenity flag schema.
var AmenityColumns = []string{ColID, ColPool, ColHotTub}

// SourceTable is one loaded listing-month source (a by-year extract).
// Rows keep the order they were read in.
type SourceTable struct {
	Name    string
	Columns []string
	Rows    []RawListingMonth
}

type AmenityFlags struct {
	ID     string
	Pool   bool
	HotTub bool
}

type AmenityTable struct {
	Name    string
	Columns []string
	Rows    []AmenityFlags
}

// FactTable is the canonical, deduplicated union of all sources.
type FactTable struct {
	Sources []string
	Columns []string
	Rows    []ListingMonth
}

// SourceRef points at one source. Exactly one of Table, File or Extract is set.
type SourceRef struct {
	Name    string `yaml:"name" json:"name"`
	Table   string `yaml:"table,omitempty" json:"table,omitempty"`
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	Extract string `yaml:"extract,omitempty" json:"extract,omitempty"`
}

// Kind reports which loader the ref targets: "table", "file", "extract" or "".
func (r SourceRef) Kind() string {
	n := 0
	kind := ""
	if r.Table != "" {
		n++
		kind = "table"
	}
	if r.File != "" {
		n++
		kind = "file"
	}
	if r.Extract != "" {
		n++
		kind = "extract"
	}
	if n != 1 {
		return ""
	}
	return kind
}

// Location returns the table name, file path or extract name.
func (r SourceRef) Location() string {
	switch r.Kind() {
	case "table":
		return r.Table
	case "file":
		return r.File
	case "extract":
		return r.Extract
	}
	return ""
}
