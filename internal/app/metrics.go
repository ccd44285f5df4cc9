package app

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"airbnb_kpi/internal/domain"
)

// Aggregate holds the sums for one (month, dimension) group.
type Aggregate struct {
	Month        domain.Month
	Dimension    string
	Revenue      float64
	Listings     int // distinct listing ids
	Rows         int
	Openness     float64
	Occupied     float64 // sum of openness x occupancy
	LengthOfStay float64
	LeadTimes    []float64
}

// Dimension extracts the extra group key of a row. nil groups by month only.
type Dimension func(domain.ListingMonth) string

var (
	ByCity     Dimension = func(l domain.ListingMonth) string { return l.City }
	ByHostType Dimension = func(l domain.ListingMonth) string { return l.HostType }
	ByListing  Dimension = func(l domain.ListingMonth) string { return l.ID }
)

type groupKey struct {
	month domain.Month
	dim   string
}

// AggregateBy groups facts by month (and dim, when set) and returns the groups
// ordered by month ascending, then dimension.
func AggregateBy(facts []domain.ListingMonth, dim Dimension) []Aggregate {
	groups := make(map[groupKey]*Aggregate)
	listings := make(map[groupKey]map[string]struct{})
	for _, f := range facts {
		k := groupKey{month: f.Month}
		if dim != nil {
			k.dim = dim(f)
		}
		g, ok := groups[k]
		if !ok {
			g = &Aggregate{Month: k.month, Dimension: k.dim}
			groups[k] = g
			listings[k] = make(map[string]struct{})
		}
		g.Revenue += f.Revenue
		g.Rows++
		g.Openness += float64(f.Openness)
		g.Occupied += f.OccupiedNights()
		g.LengthOfStay += f.LengthOfStay
		g.LeadTimes = append(g.LeadTimes, f.LeadTime)
		listings[k][f.ID] = struct{}{}
	}

	out := make([]Aggregate, 0, len(groups))
	for k, g := range groups {
		g.Listings = len(listings[k])
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Month != out[j].Month {
			return out[i].Month.Before(out[j].Month)
		}
		return out[i].Dimension < out[j].Dimension
	})
	return out
}

func (a Aggregate) TotalRevenue() *float64 { return ptr(a.Revenue) }

func (a Aggregate) ListingCount() *float64 { return ptr(float64(a.Listings)) }

func (a Aggregate) RevenuePerListing() *float64 { return ratio(a.Revenue, float64(a.Listings)) }

// OccupancyRate is occupied nights over open nights, in percent.
// Undefined (nil) when no nights were open.
func (a Aggregate) OccupancyRate() *float64 {
	r := ratio(a.Occupied, a.Openness)
	if r == nil {
		return nil
	}
	return ptr(*r * 100)
}

func (a Aggregate) AvgLengthOfStay() *float64 { return ratio(a.LengthOfStay, float64(a.Rows)) }

// AvgNightlyRate is the revenue earned per occupied night.
func (a Aggregate) AvgNightlyRate() *float64 { return ratio(a.Revenue, a.Occupied) }

func (a Aggregate) AvgLeadTime() *float64 {
	if len(a.LeadTimes) == 0 {
		return nil
	}
	return ptr(stat.Mean(a.LeadTimes, nil))
}

// BookingBucket classifies an average lead time (days) into a booking window.
// Bucket bounds are closed on the right: (7,14] is "8-14 days".
func BookingBucket(avg *float64) string {
	if avg == nil || math.IsNaN(*avg) {
		return domain.BucketUnknown
	}
	v := *avg
	switch {
	case v < 1:
		return domain.BucketSameDay
	case v <= 7:
		return domain.BucketOneWeek
	case v <= 14:
		return domain.BucketTwoWeeks
	case v <= 21:
		return domain.BucketThreeWeeks
	case v <= 28:
		return domain.BucketOneMonth
	default:
		return domain.BucketLonger
	}
}

// SeriesOf turns aggregates into a KPI table using metric.
func SeriesOf(name, dimension string, aggs []Aggregate, metric func(Aggregate) *float64) domain.Series {
	s := domain.Series{Name: name, Dimension: dimension, Points: make([]domain.Point, 0, len(aggs))}
	for _, a := range aggs {
		s.Points = append(s.Points, domain.Point{Month: a.Month, Dimension: a.Dimension, Value: metric(a)})
	}
	return s
}

// BookingWindows buckets each month's average lead time.
func BookingWindows(monthly []Aggregate) []domain.BookingWindow {
	out := make([]domain.BookingWindow, 0, len(monthly))
	for _, a := range monthly {
		avg := a.AvgLeadTime()
		out = append(out, domain.BookingWindow{Month: a.Month, AvgLeadTime: avg, Bucket: BookingBucket(avg)})
	}
	return out
}

func ratio(num, den float64) *float64 {
	if den == 0 {
		return nil
	}
	return ptr(num / den)
}

func ptr[T any](v T) *T { return &v }
