package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"airbnb_kpi/internal/adapters/observability"
	"airbnb_kpi/internal/domain"
)

// Cache keys owned by the pipeline; QueryService reads them.
const (
	latestReportKey = "kpi:report:latest"
	seriesKeyPrefix = "kpi:series:"
)

func seriesKey(name string) string { return seriesKeyPrefix + name }

// PipelineInput is everything a run reads: the yearly listing sources (in
// union order) and the amenity flag table.
type PipelineInput struct {
	Listings  []domain.SourceTable
	Amenities domain.AmenityTable
}

type PipelineService struct {
	repo   domain.ReportRepository
	cache  domain.Cache
	policy AmenityPolicy
	now    func() time.Time
}

func NewPipelineService(r domain.ReportRepository, c domain.Cache, p AmenityPolicy) *PipelineService {
	return &PipelineService{repo: r, cache: c, policy: p, now: time.Now}
}

// Compute runs the five stages and returns the report without storing it.
// A failing stage aborts the run; no partial report is returned.
func (s *PipelineService) Compute(ctx context.Context, in PipelineInput) (domain.Report, error) {
	runID := uuid.NewString()
	l := log.With().Str("run_id", runID).Logger()

	// 1) normalize
	var (
		normalized []NormalizedTable
		missing    domain.MissingReport
		flags      []domain.AmenityFlags
	)
	err := stage("normalize", func() (int, error) {
		var err error
		normalized, missing, err = Normalize(in.Listings)
		if err != nil {
			return 0, err
		}
		flags, err = NormalizeAmenities(in.Amenities)
		return missing.Rows, err
	})
	if err != nil {
		return domain.Report{}, err
	}
	observability.ObserveMissing(domain.ColNightlyRate, missing.NightlyRate)
	observability.ObserveMissing(domain.ColLeadTime, missing.LeadTime)
	observability.ObserveMissing(domain.ColLengthOfStay, missing.LengthOfStay)
	l.Info().
		Int("rows", missing.Rows).
		Int("missing_nightly_rate", missing.NightlyRate).
		Int("missing_lead_time", missing.LeadTime).
		Int("missing_length_of_stay", missing.LengthOfStay).
		Msg("normalized sources")

	// 2) dedupe each source
	_ = stage("dedupe", func() (int, error) {
		n := 0
		for i := range normalized {
			before := len(normalized[i].Rows)
			normalized[i].Rows = DedupeListings(normalized[i].Rows)
			if d := before - len(normalized[i].Rows); d > 0 {
				l.Debug().Str("source", normalized[i].Name).Int("dropped", d).Msg("duplicate rows dropped")
			}
			n += len(normalized[i].Rows)
		}
		flags = DedupeAmenities(flags)
		return n, nil
	})

	// 3) unify
	var facts domain.FactTable
	err = stage("unify", func() (int, error) {
		var err error
		facts, err = Unify(normalized)
		return len(facts.Rows), err
	})
	if err != nil {
		return domain.Report{}, err
	}
	l.Info().Strs("sources", facts.Sources).Int("rows", len(facts.Rows)).Msg("fact table built")

	// 4) aggregate
	var kpis KPIs
	err = stage("aggregate", func() (int, error) {
		var err error
		kpis, err = ComputeKPIs(ctx, facts, flags, s.policy)
		return len(kpis.Series), err
	})
	if err != nil {
		return domain.Report{}, err
	}

	// 5) trends
	_ = stage("trend", func() (int, error) {
		kpis = DeriveTrends(kpis)
		return len(kpis.Series), nil
	})

	return domain.Report{
		RunID:          runID,
		GeneratedAt:    s.now().UTC().Truncate(time.Second),
		Sources:        facts.Sources,
		Rows:           len(facts.Rows),
		Missing:        missing,
		Series:         kpis.Series,
		Amenities:      kpis.Amenities,
		BookingWindows: kpis.BookingWindows,
	}, nil
}

// Run computes a report, stores it and evicts cached reads.
func (s *PipelineService) Run(ctx context.Context, in PipelineInput) (domain.Report, error) {
	rep, err := s.Compute(ctx, in)
	if err == nil {
		err = s.repo.SaveReport(ctx, rep)
		if err != nil {
			err = fmt.Errorf("save report %s: %w", rep.RunID, err)
		}
	}
	observability.ObserveRun(err)
	if err != nil {
		return domain.Report{}, err
	}

	// A new run replaces every cached view; evict after the write so readers
	// never repopulate the cache from the previous run.
	if s.cache != nil {
		s.invalidate(ctx, rep)
	}
	log.Info().Str("run_id", rep.RunID).Int("rows", rep.Rows).Int("series", len(rep.Series)).Msg("report stored")
	return rep, nil
}

func (s *PipelineService) invalidate(ctx context.Context, rep domain.Report) {
	_ = s.cache.Del(ctx, latestReportKey)
	for _, name := range rep.SeriesNames() {
		_ = s.cache.Del(ctx, seriesKey(name))
	}
}

// stage times fn, records its metrics and prefixes its error with the stage name.
func stage(name string, fn func() (int, error)) error {
	start := time.Now()
	rows, err := fn()
	observability.ObserveStage(name, err, rows, time.Since(start))
	if err != nil {
		log.Error().Str("stage", name).Err(err).Msg("stage failed")
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Debug().Str("stage", name).Int("rows", rows).Dur("took", time.Since(start)).Msg("stage done")
	return nil
}
