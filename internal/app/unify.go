package app

import (
	"fmt"
	"sort"
	"strings"

	"airbnb_kpi/internal/domain"
)

// Unify builds the canonical fact table as the set union of tables sharing one
// column set. Rows identical across (or within) sources are kept once; rows
// that still collide on (listing, month) keep the one from the earliest source.
func Unify(tables []NormalizedTable) (domain.FactTable, error) {
	if len(tables) == 0 {
		return domain.FactTable{}, domain.ErrNoSources
	}
	want := columnSet(tables[0].Columns)
	var n int
	for _, t := range tables[1:] {
		if got := columnSet(t.Columns); got != want {
			return domain.FactTable{}, fmt.Errorf("%w: %s has [%s], %s has [%s]",
				domain.ErrSchemaMismatch, tables[0].Name, want, t.Name, got)
		}
	}
	for _, t := range tables {
		n += len(t.Rows)
	}

	seen := make(map[domain.ListingMonth]struct{}, n)
	rows := make([]domain.ListingMonth, 0, n)
	sources := make([]string, 0, len(tables))
	for _, t := range tables {
		sources = append(sources, t.Name)
		for _, r := range t.Rows {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			rows = append(rows, r)
		}
	}

	return domain.FactTable{
		Sources: sources,
		Columns: append([]string(nil), tables[0].Columns...),
		Rows:    DedupeListings(rows),
	}, nil
}

func columnSet(cols []string) string {
	norm := make([]string, 0, len(cols))
	for _, c := range cols {
		norm = append(norm, normColumn(c))
	}
	sort.Strings(norm)
	return strings.Join(norm, ",")
}
