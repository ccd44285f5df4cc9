package app

import "airbnb_kpi/internal/domain"

// Deduplicate keeps exactly one row per key. The first row in input order wins,
// so the result is deterministic for a given row order.
func Deduplicate[T any, K comparable](rows []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// DedupeListings keeps one row per (listing, month).
func DedupeListings(rows []domain.ListingMonth) []domain.ListingMonth {
	return Deduplicate(rows, domain.ListingMonth.Key)
}

// DedupeAmenities keeps one flag row per listing.
func DedupeAmenities(rows []domain.AmenityFlags) []domain.AmenityFlags {
	return Deduplicate(rows, func(f domain.AmenityFlags) string { return f.ID })
}
