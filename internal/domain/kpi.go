package domain

import (
	"sort"
	"time"
)

// KPI series names.
const (
	KPITotalRevenue          = "total_revenue"
	KPIRevenuePerListing     = "avg_revenue_per_listing"
	KPIOccupancyRate         = "occupancy_rate"
	KPIAvgLengthOfStay       = "avg_length_of_stay"
	KPIAvgNightlyRate        = "avg_nightly_rate"
	KPIAvgLeadTime           = "avg_lead_time"
	KPIListingCount          = "listing_count"
	KPIRevenueByCity         = "revenue_by_city"
	KPIOccupancyByCity       = "occupancy_rate_by_city"
	KPINightlyRateByCity     = "avg_nightly_rate_by_city"
	KPIRevenueByHostType     = "revenue_by_host_type"
	KPIRevenueByListing      = "revenue_by_listing"
	KPIRevenueGrowth         = "revenue_growth"
	KPIOccupancyGrowth       = "occupancy_growth"
	KPINightlyRateGrowth     = "nightly_rate_growth"
	KPIRevenuePerListingGrow = "revenue_per_listing_growth"
	KPICityRevenueGrowth     = "revenue_by_city_growth"
)

// Dimension labels carried by grouped series.
const (
	DimNone     = ""
	DimCity     = "city"
	DimHostType = "host_type"
	DimListing  = "listing"
)

// Point is one (period, dimension, value) row of a KPI table.
// A nil Value is an undefined metric (e.g. a zero denominator).
type Point struct {
	Month     Month    `json:"month"`
	Dimension string   `json:"dimension,omitempty"`
	Value     *float64 `json:"value"`
}

// Series is a named KPI result table, ordered by month then dimension.
type Series struct {
	Name      string  `json:"name"`
	Dimension string  `json:"dimension,omitempty"`
	Points    []Point `json:"points"`
}

type AmenityCategory string

const (
	AmenityPool   AmenityCategory = "Pool"
	AmenityHotTub AmenityCategory = "Hot_tub"
	AmenityBoth   AmenityCategory = "Both"
	AmenityNone   AmenityCategory = "No_Amenity"
)

// AmenityCategories is the stable category order used for tie-breaks.
var AmenityCategories = []AmenityCategory{AmenityPool, AmenityHotTub, AmenityBoth, AmenityNone}

// AmenityStat is revenue and listing counts for one amenity category in one month.
type AmenityStat struct {
	Month        Month           `json:"month"`
	Category     AmenityCategory `json:"category"`
	Revenue      float64         `json:"revenue"`
	Listings     int             `json:"listings"`
	Rank         int             `json:"rank"`
	RevenueShare *float64        `json:"revenue_share"`
	ListingShare *float64        `json:"listing_share"`
}

// Booking-window buckets for the average lead time of a month.
const (
	BucketUnknown    = "unknown"
	BucketSameDay    = "under 1 day"
	BucketOneWeek    = "1-7 days"
	BucketTwoWeeks   = "8-14 days"
	BucketThreeWeeks = "2-3 weeks"
	BucketOneMonth   = "about 1 month"
	BucketLonger     = "more than 1 month"
)

type BookingWindow struct {
	Month       Month    `json:"month"`
	AvgLeadTime *float64 `json:"avg_lead_time"`
	Bucket      string   `json:"bucket"`
}

// MissingReport counts nulls found per nullable field during normalization.
type MissingReport struct {
	Rows         int `json:"rows"`
	NightlyRate  int `json:"nightly_rate"`
	LeadTime     int `json:"lead_time"`
	LengthOfStay int `json:"length_of_stay"`
}

func (m MissingReport) Add(o MissingReport) MissingReport {
	return MissingReport{
		Rows:         m.Rows + o.Rows,
		NightlyRate:  m.NightlyRate + o.NightlyRate,
		LeadTime:     m.LeadTime + o.LeadTime,
		LengthOfStay: m.LengthOfStay + o.LengthOfStay,
	}
}

// Report is everything one pipeline run produces.
type Report struct {
	RunID          string            `json:"run_id"`
	GeneratedAt    time.Time         `json:"generated_at"`
	Sources        []string          `json:"sources"`
	Rows           int               `json:"rows"`
	Missing        MissingReport     `json:"missing"`
	Series         map[string]Series `json:"series"`
	Amenities      []AmenityStat     `json:"amenities"`
	BookingWindows []BookingWindow   `json:"booking_windows"`
}

// SeriesNames returns the report's KPI names in a stable order.
func (r Report) SeriesNames() []string {
	names := make([]string, 0, len(r.Series))
	for n := range r.Series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
