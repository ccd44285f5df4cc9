package domain

import "context"

// ListingSource loads source tables from one kind of location
// (a SQL table, a CSV file, a remote extract).
type ListingSource interface {
	LoadListings(ctx context.Context, location string) (SourceTable, error)
	LoadAmenities(ctx context.Context, location string) (AmenityTable, error)
}

type ReportRepository interface {
	// Write path
	SaveReport(ctx context.Context, r Report) error

	// Read paths
	LatestReport(ctx context.Context) (Report, error)
	GetReport(ctx context.Context, runID string) (Report, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
