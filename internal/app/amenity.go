package app

import (
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"

	"airbnb_kpi/internal/domain"
)

// AmenityPolicy decides how a listing with both a pool and a hot tub is classified.
type AmenityPolicy int

const (
	// AmenityParity folds "both" into No_Amenity.
	AmenityParity AmenityPolicy = iota
	// AmenitySplitBoth gives "both" its own category.
	AmenitySplitBoth
)

func ParseAmenityPolicy(s string) AmenityPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "split", "both", "split_both", "1", "true", "yes":
		return AmenitySplitBoth
	}
	return AmenityParity
}

func (p AmenityPolicy) String() string {
	if p == AmenitySplitBoth {
		return "split"
	}
	return "parity"
}

// Classify assigns a listing exactly one amenity category.
func Classify(f domain.AmenityFlags, p AmenityPolicy) domain.AmenityCategory {
	switch {
	case f.Pool && !f.HotTub:
		return domain.AmenityPool
	case !f.Pool && f.HotTub:
		return domain.AmenityHotTub
	case f.Pool && f.HotTub && p == AmenitySplitBoth:
		return domain.AmenityBoth
	}
	return domain.AmenityNone
}

type amenityKey struct {
	month domain.Month
	cat   domain.AmenityCategory
}

type amenityAcc struct {
	revenue  float64
	listings map[string]struct{}
}

// AmenityImpact sums revenue and counts listings per month and amenity category,
// ranks categories by revenue within each month (dense rank, ties share a rank
// and keep the stable category order) and computes each category's share of
// the month's revenue and listings in percent. Listings without a flag row are
// No_Amenity.
func AmenityImpact(facts []domain.ListingMonth, flags []domain.AmenityFlags, p AmenityPolicy) []domain.AmenityStat {
	classOf := make(map[string]domain.AmenityCategory, len(flags))
	for _, f := range DedupeAmenities(flags) {
		classOf[f.ID] = Classify(f, p)
	}

	acc := make(map[amenityKey]*amenityAcc)
	monthSet := make(map[domain.Month]struct{})
	for _, f := range facts {
		cat, ok := classOf[f.ID]
		if !ok {
			cat = domain.AmenityNone
		}
		k := amenityKey{month: f.Month, cat: cat}
		a, ok := acc[k]
		if !ok {
			a = &amenityAcc{listings: make(map[string]struct{})}
			acc[k] = a
		}
		a.revenue += f.Revenue
		a.listings[f.ID] = struct{}{}
		monthSet[f.Month] = struct{}{}
	}

	months := make([]domain.Month, 0, len(monthSet))
	for m := range monthSet {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	var out []domain.AmenityStat
	for _, m := range months {
		var stats []domain.AmenityStat
		for _, cat := range domain.AmenityCategories {
			a, ok := acc[amenityKey{month: m, cat: cat}]
			if !ok {
				continue
			}
			stats = append(stats, domain.AmenityStat{
				Month:    m,
				Category: cat,
				Revenue:  a.revenue,
				Listings: len(a.listings),
			})
		}
		out = append(out, rankMonth(stats)...)
	}
	return out
}

// rankMonth ranks one month's stats and fills their shares.
// stats arrive in stable category order.
func rankMonth(stats []domain.AmenityStat) []domain.AmenityStat {
	revenues := make([]float64, len(stats))
	counts := make([]float64, len(stats))
	for i, s := range stats {
		revenues[i] = s.Revenue
		counts[i] = float64(s.Listings)
	}
	totalRevenue := floats.Sum(revenues)
	totalListings := floats.Sum(counts)

	distinct := append([]float64(nil), revenues...)
	sort.Sort(sort.Reverse(sort.Float64Slice(distinct)))
	rankOf := make(map[float64]int, len(distinct))
	rank := 0
	for i, v := range distinct {
		if i == 0 || v != distinct[i-1] {
			rank++
			rankOf[v] = rank
		}
	}

	for i := range stats {
		stats[i].Rank = rankOf[stats[i].Revenue]
		stats[i].RevenueShare = percent(stats[i].Revenue, totalRevenue)
		stats[i].ListingShare = percent(float64(stats[i].Listings), totalListings)
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Rank < stats[j].Rank })
	return stats
}

func percent(part, total float64) *float64 {
	r := ratio(part, total)
	if r == nil {
		return nil
	}
	return ptr(*r * 100)
}
