package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"airbnb_kpi/internal/domain"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullF64(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func parseFlag(n sql.NullString) bool {
	switch strings.ToLower(strings.TrimSpace(n.String)) {
	case "1", "t", "true", "y", "yes":
		return true
	}
	return false
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// -----------------------------------------------------------------------------
// Sources
// -----------------------------------------------------------------------------

// columns returns the column names of table without reading any row.
func (r *Repo) columns(ctx context.Context, table string) ([]string, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(probeColumnsSQL, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rows.Columns()
}

func hasAll(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[strings.ToLower(c)] = true
	}
	for _, c := range want {
		if !set[c] {
			return false
		}
	}
	return true
}

// LoadListings reads a listing-month table. When required columns are absent
// only the header is returned; the normalizer reports what is missing.
func (r *Repo) LoadListings(ctx context.Context, table string) (domain.SourceTable, error) {
	cols, err := r.columns(ctx, table)
	if err != nil {
		return domain.SourceTable{}, err
	}
	out := domain.SourceTable{Name: table, Columns: cols}
	if !hasAll(cols, domain.ListingColumns) {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(selectListingsSQL, table))
	if err != nil {
		return domain.SourceTable{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id, month, city, host             sql.NullString
			revenue, openness, occupancy      sql.NullFloat64
			nightlyRate, leadTime, stayLength sql.NullFloat64
		)
		if err := rows.Scan(&id, &month, &city, &host, &revenue, &openness, &occupancy,
			&nightlyRate, &leadTime, &stayLength); err != nil {
			return domain.SourceTable{}, err
		}
		m, err := domain.ParseMonth(strings.TrimSpace(month.String))
		if err != nil {
			return domain.SourceTable{}, fmt.Errorf("%s listing %s: %w", table, id.String, err)
		}
		out.Rows = append(out.Rows, domain.RawListingMonth{
			ID:           id.String,
			Month:        m,
			City:         city.String,
			HostType:     host.String,
			Revenue:      revenue.Float64,
			Openness:     int64(math.Round(openness.Float64)),
			Occupancy:    occupancy.Float64,
			NightlyRate:  nullF64(nightlyRate),
			LeadTime:     nullF64(leadTime),
			LengthOfStay: nullF64(stayLength),
		})
	}
	if err := rows.Err(); err != nil {
		return domain.SourceTable{}, err
	}
	return out, nil
}

// LoadAmenities reads a (listing_id, pool, hot_tub) table. Flags may be stored
// as integers, booleans or "true"/"false" text.
func (r *Repo) LoadAmenities(ctx context.Context, table string) (domain.AmenityTable, error) {
	cols, err := r.columns(ctx, table)
	if err != nil {
		return domain.AmenityTable{}, err
	}
	out := domain.AmenityTable{Name: table, Columns: cols}
	if !hasAll(cols, domain.AmenityColumns) {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(selectAmenitiesSQL, table))
	if err != nil {
		return domain.AmenityTable{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, pool, hotTub sql.NullString
		if err := rows.Scan(&id, &pool, &hotTub); err != nil {
			return domain.AmenityTable{}, err
		}
		out.Rows = append(out.Rows, domain.AmenityFlags{ID: id.String, Pool: parseFlag(pool), HotTub: parseFlag(hotTub)})
	}
	if err := rows.Err(); err != nil {
		return domain.AmenityTable{}, err
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Reports
// -----------------------------------------------------------------------------

type seriesIndex struct {
	Name      string `json:"name"`
	Dimension string `json:"dimension,omitempty"`
}

// SaveReport writes a run and all its KPI rows in one transaction.
func (r *Repo) SaveReport(ctx context.Context, rep domain.Report) (err error) {
	sources, err := json.Marshal(rep.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	windows, err := json.Marshal(rep.BookingWindows)
	if err != nil {
		return fmt.Errorf("marshal booking windows: %w", err)
	}
	index := make([]seriesIndex, 0, len(rep.Series))
	for _, name := range rep.SeriesNames() {
		index = append(index, seriesIndex{Name: name, Dimension: rep.Series[name].Dimension})
	}
	idx, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("marshal series index: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var seq int64
	if err = tx.QueryRowContext(ctx, nextSeqSQL).Scan(&seq); err != nil {
		return fmt.Errorf("next run seq: %w", err)
	}
	if _, err = tx.ExecContext(ctx, insertRunSQL,
		rep.RunID,
		seq,
		rep.GeneratedAt.UTC().Format(time.RFC3339),
		string(sources),
		rep.Rows,
		rep.Missing.Rows,
		rep.Missing.NightlyRate,
		rep.Missing.LeadTime,
		rep.Missing.LengthOfStay,
		string(idx),
		string(windows),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	pts, err := tx.PrepareContext(ctx, insertPointSQL)
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer pts.Close()
	for _, ix := range index {
		for _, p := range rep.Series[ix.Name].Points {
			if _, err = pts.ExecContext(ctx, rep.RunID, ix.Name, ix.Dimension, p.Month.String(), p.Dimension, valF64(p.Value)); err != nil {
				return fmt.Errorf("insert point %s %s: %w", ix.Name, p.Month, err)
			}
		}
	}

	am, err := tx.PrepareContext(ctx, insertAmenitySQL)
	if err != nil {
		return fmt.Errorf("prepare amenities: %w", err)
	}
	defer am.Close()
	for _, a := range rep.Amenities {
		if _, err = am.ExecContext(ctx, rep.RunID, a.Month.String(), string(a.Category), a.Revenue,
			a.Listings, a.Rank, valF64(a.RevenueShare), valF64(a.ListingShare)); err != nil {
			return fmt.Errorf("insert amenity %s %s: %w", a.Month, a.Category, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) LatestReport(ctx context.Context) (domain.Report, error) {
	var runID string
	if err := r.db.QueryRowContext(ctx, latestRunIDSQL).Scan(&runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Report{}, domain.ErrNotFound
		}
		return domain.Report{}, err
	}
	return r.GetReport(ctx, runID)
}

func (r *Repo) GetReport(ctx context.Context, runID string) (domain.Report, error) {
	var (
		rep                   domain.Report
		generatedAt           string
		sources, idx, windows string
	)
	err := r.db.QueryRowContext(ctx, getRunSQL, runID).Scan(
		&rep.RunID,
		&generatedAt,
		&sources,
		&rep.Rows,
		&rep.Missing.Rows,
		&rep.Missing.NightlyRate,
		&rep.Missing.LeadTime,
		&rep.Missing.LengthOfStay,
		&idx,
		&windows,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Report{}, domain.ErrNotFound
		}
		return domain.Report{}, err
	}
	if rep.GeneratedAt, err = time.Parse(time.RFC3339, generatedAt); err != nil {
		return domain.Report{}, fmt.Errorf("run %s generated_at: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(sources), &rep.Sources); err != nil {
		return domain.Report{}, fmt.Errorf("run %s sources: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(windows), &rep.BookingWindows); err != nil {
		return domain.Report{}, fmt.Errorf("run %s booking windows: %w", runID, err)
	}

	var index []seriesIndex
	if err := json.Unmarshal([]byte(idx), &index); err != nil {
		return domain.Report{}, fmt.Errorf("run %s series index: %w", runID, err)
	}
	rep.Series = make(map[string]domain.Series, len(index))
	for _, ix := range index {
		rep.Series[ix.Name] = domain.Series{Name: ix.Name, Dimension: ix.Dimension, Points: []domain.Point{}}
	}

	if err := r.loadPoints(ctx, &rep); err != nil {
		return domain.Report{}, err
	}
	if err := r.loadAmenities(ctx, &rep); err != nil {
		return domain.Report{}, err
	}
	return rep, nil
}

func (r *Repo) loadPoints(ctx context.Context, rep *domain.Report) error {
	rows, err := r.db.QueryContext(ctx, listPointsSQL, rep.RunID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kpi, month, dim string
			value           sql.NullFloat64
		)
		if err := rows.Scan(&kpi, &month, &dim, &value); err != nil {
			return err
		}
		m, err := domain.ParseMonth(month)
		if err != nil {
			return err
		}
		s := rep.Series[kpi]
		s.Name = kpi
		s.Points = append(s.Points, domain.Point{Month: m, Dimension: dim, Value: nullF64(value)})
		rep.Series[kpi] = s
	}
	return rows.Err()
}

func (r *Repo) loadAmenities(ctx context.Context, rep *domain.Report) error {
	rows, err := r.db.QueryContext(ctx, listAmenitiesSQL, rep.RunID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a            domain.AmenityStat
			month, cat   string
			revShare     sql.NullFloat64
			listingShare sql.NullFloat64
		)
		if err := rows.Scan(&month, &cat, &a.Revenue, &a.Listings, &a.Rank, &revShare, &listingShare); err != nil {
			return err
		}
		if a.Month, err = domain.ParseMonth(month); err != nil {
			return err
		}
		a.Category = domain.AmenityCategory(cat)
		a.RevenueShare = nullF64(revShare)
		a.ListingShare = nullF64(listingShare)
		rep.Amenities = append(rep.Amenities, a)
	}
	return rows.Err()
}
