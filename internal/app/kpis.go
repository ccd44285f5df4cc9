package app

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"airbnb_kpi/internal/domain"
)

// KPIs is the output of the metric and trend stages.
type KPIs struct {
	Series         map[string]domain.Series
	Amenities      []domain.AmenityStat
	BookingWindows []domain.BookingWindow
}

// ComputeKPIs runs every KPI family over the fact table. Families only read the
// fact table and each writes its own series, so they run concurrently.
func ComputeKPIs(ctx context.Context, facts domain.FactTable, flags []domain.AmenityFlags, p AmenityPolicy) (KPIs, error) {
	var (
		mu  sync.Mutex
		out = KPIs{Series: make(map[string]domain.Series)}
	)
	publish := func(ss ...domain.Series) {
		mu.Lock()
		defer mu.Unlock()
		for _, s := range ss {
			out.Series[s.Name] = s
		}
	}

	monthly := AggregateBy(facts.Rows, nil)

	g, ctx := errgroup.WithContext(ctx)

	// revenue
	g.Go(func() error {
		byCity := AggregateBy(facts.Rows, ByCity)
		byHost := AggregateBy(facts.Rows, ByHostType)
		byListing := AggregateBy(facts.Rows, ByListing)
		if err := ctx.Err(); err != nil {
			return err
		}
		publish(
			SeriesOf(domain.KPITotalRevenue, domain.DimNone, monthly, Aggregate.TotalRevenue),
			SeriesOf(domain.KPIRevenuePerListing, domain.DimNone, monthly, Aggregate.RevenuePerListing),
			SeriesOf(domain.KPIListingCount, domain.DimNone, monthly, Aggregate.ListingCount),
			SeriesOf(domain.KPIRevenueByCity, domain.DimCity, byCity, Aggregate.TotalRevenue),
			SeriesOf(domain.KPIRevenueByHostType, domain.DimHostType, byHost, Aggregate.TotalRevenue),
			SeriesOf(domain.KPIRevenueByListing, domain.DimListing, byListing, Aggregate.TotalRevenue),
		)
		return nil
	})

	// occupancy
	g.Go(func() error {
		byCity := AggregateBy(facts.Rows, ByCity)
		if err := ctx.Err(); err != nil {
			return err
		}
		publish(
			SeriesOf(domain.KPIOccupancyRate, domain.DimNone, monthly, Aggregate.OccupancyRate),
			SeriesOf(domain.KPIOccupancyByCity, domain.DimCity, byCity, Aggregate.OccupancyRate),
		)
		return nil
	})

	// pricing
	g.Go(func() error {
		byCity := AggregateBy(facts.Rows, ByCity)
		if err := ctx.Err(); err != nil {
			return err
		}
		publish(
			SeriesOf(domain.KPIAvgNightlyRate, domain.DimNone, monthly, Aggregate.AvgNightlyRate),
			SeriesOf(domain.KPINightlyRateByCity, domain.DimCity, byCity, Aggregate.AvgNightlyRate),
		)
		return nil
	})

	// demand
	var windows []domain.BookingWindow
	g.Go(func() error {
		windows = BookingWindows(monthly)
		publish(
			SeriesOf(domain.KPIAvgLengthOfStay, domain.DimNone, monthly, Aggregate.AvgLengthOfStay),
			SeriesOf(domain.KPIAvgLeadTime, domain.DimNone, monthly, Aggregate.AvgLeadTime),
		)
		return ctx.Err()
	})

	// amenity
	var amenities []domain.AmenityStat
	g.Go(func() error {
		amenities = AmenityImpact(facts.Rows, flags, p)
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return KPIs{}, err
	}
	out.Amenities = amenities
	out.BookingWindows = windows
	return out, nil
}

// growthOf maps each growth KPI to the series it is derived from.
var growthOf = []struct{ name, from string }{
	{domain.KPIRevenueGrowth, domain.KPITotalRevenue},
	{domain.KPIOccupancyGrowth, domain.KPIOccupancyRate},
	{domain.KPINightlyRateGrowth, domain.KPIAvgNightlyRate},
	{domain.KPIRevenuePerListingGrow, domain.KPIRevenuePerListing},
	{domain.KPICityRevenueGrowth, domain.KPIRevenueByCity},
}

// DeriveTrends adds the growth series to k and returns it.
func DeriveTrends(k KPIs) KPIs {
	for _, gr := range growthOf {
		src, ok := k.Series[gr.from]
		if !ok {
			continue
		}
		k.Series[gr.name] = Growth(gr.name, src)
	}
	return k
}
