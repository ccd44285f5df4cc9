package app_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"airbnb_kpi/internal/app"
	"airbnb_kpi/internal/domain"
)

func normalized(name string, rows ...domain.ListingMonth) app.NormalizedTable {
	return app.NormalizedTable{Name: name, Columns: append([]string(nil), domain.ListingColumns...), Rows: rows}
}

func TestUnify_SetUnion(t *testing.T) {
	jan, feb := month(2019, time.January), month(2019, time.February)
	a := normalized("y2019", fact("A", jan, "Austin", 100, 30, 0.5), fact("B", jan, "Austin", 50, 30, 0.1))
	b := normalized("y2020", fact("A", jan, "Austin", 100, 30, 0.5), fact("A", feb, "Austin", 70, 28, 0.4))

	got, err := app.Unify([]app.NormalizedTable{a, b})
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if len(got.Rows) != 3 {
		t.Fatalf("identical rows must be counted once, got %d rows", len(got.Rows))
	}
	if diff := cmp.Diff([]string{"y2019", "y2020"}, got.Sources); diff != "" {
		t.Fatalf("sources (-want +got):\n%s", diff)
	}
}

func TestUnify_SelfUnionIsIdentity(t *testing.T) {
	jan := month(2019, time.January)
	a := normalized("y2019", fact("A", jan, "Austin", 100, 30, 0.5), fact("B", jan, "Dallas", 50, 30, 0.1))

	self, err := app.Unify([]app.NormalizedTable{a, a})
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if diff := cmp.Diff(a.Rows, self.Rows); diff != "" {
		t.Fatalf("A ∪ A != A (-want +got):\n%s", diff)
	}
}

func TestUnify_KeyCollisionFirstSourceWins(t *testing.T) {
	jan := month(2019, time.January)
	a := normalized("y2019", fact("A", jan, "Austin", 100, 30, 0.5))
	b := normalized("y2020", fact("A", jan, "Austin", 120, 30, 0.5))

	got, err := app.Unify([]app.NormalizedTable{a, b})
	if err != nil {
		t.Fatalf("Unify: %v", err)
	}
	if len(got.Rows) != 1 || got.Rows[0].Revenue != 100 {
		t.Fatalf("expected the first source's row, got %+v", got.Rows)
	}
}

func TestUnify_SchemaMismatch(t *testing.T) {
	a := normalized("y2019")
	b := app.NormalizedTable{Name: "y2020", Columns: []string{"listing_id", "month"}}
	if _, err := app.Unify([]app.NormalizedTable{a, b}); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestUnify_ColumnOrderAndCaseIgnored(t *testing.T) {
	a := normalized("y2019")
	cols := append([]string(nil), domain.ListingColumns...)
	cols[0], cols[1] = "MONTH", "Listing_ID"
	b := app.NormalizedTable{Name: "y2020", Columns: cols}
	if _, err := app.Unify([]app.NormalizedTable{a, b}); err != nil {
		t.Fatalf("reordered columns should unify: %v", err)
	}
}

func TestUnify_NoSources(t *testing.T) {
	if _, err := app.Unify(nil); !errors.Is(err, domain.ErrNoSources) {
		t.Fatalf("expected ErrNoSources, got %v", err)
	}
}
