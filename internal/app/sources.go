package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"airbnb_kpi/internal/domain"
)

// Loader resolves source refs to the ListingSource registered for their kind
// and loads them with bounded concurrency.
type Loader struct {
	sources map[string]domain.ListingSource
	workers int64
}

func NewLoader(workers int) *Loader {
	if workers <= 0 {
		workers = 1
	}
	return &Loader{sources: map[string]domain.ListingSource{}, workers: int64(workers)}
}

// Register binds a source kind ("table", "file", "extract") to an adapter.
func (l *Loader) Register(kind string, src domain.ListingSource) {
	l.sources[kind] = src
}

func (l *Loader) sourceFor(ref domain.SourceRef) (domain.ListingSource, error) {
	kind := ref.Kind()
	if kind == "" {
		return nil, fmt.Errorf("source %q: exactly one of table, file or extract must be set", ref.Name)
	}
	src, ok := l.sources[kind]
	if !ok {
		return nil, fmt.Errorf("source %q: no loader registered for %s", ref.Name, kind)
	}
	return src, nil
}

// Load reads every listing source and the amenity table. Listing tables keep
// the configured order regardless of which finishes first. All load failures
// are reported together.
func (l *Loader) Load(ctx context.Context, listings []domain.SourceRef, amenities domain.SourceRef) (PipelineInput, error) {
	if len(listings) == 0 {
		return PipelineInput{}, domain.ErrNoSources
	}

	var (
		in   = PipelineInput{Listings: make([]domain.SourceTable, len(listings))}
		mu   sync.Mutex
		merr *multierror.Error
		wg   sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		merr = multierror.Append(merr, err)
		mu.Unlock()
	}

	sem := semaphore.NewWeighted(l.workers)
	for i, ref := range listings {
		src, err := l.sourceFor(ref)
		if err != nil {
			fail(err)
			continue
		}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(err)
			break
		}
		wg.Add(1)
		go func(i int, ref domain.SourceRef, src domain.ListingSource) {
			defer wg.Done()
			defer sem.Release(1)

			t, err := src.LoadListings(ctx, ref.Location())
			if err != nil {
				fail(fmt.Errorf("load %s: %w", ref.Name, err))
				return
			}
			if ref.Name != "" {
				t.Name = ref.Name
			}
			in.Listings[i] = t
			log.Info().Str("source", t.Name).Str("kind", ref.Kind()).Int("rows", len(t.Rows)).Msg("source loaded")
		}(i, ref, src)
	}

	// no amenity source: every listing classifies as No_Amenity
	if amenities != (domain.SourceRef{}) {
		if t, err := l.loadAmenities(ctx, amenities); err != nil {
			fail(err)
		} else {
			in.Amenities = t
		}
	}

	wg.Wait()
	if err := merr.ErrorOrNil(); err != nil {
		return PipelineInput{}, err
	}
	return in, nil
}

func (l *Loader) loadAmenities(ctx context.Context, ref domain.SourceRef) (domain.AmenityTable, error) {
	src, err := l.sourceFor(ref)
	if err != nil {
		return domain.AmenityTable{}, err
	}
	t, err := src.LoadAmenities(ctx, ref.Location())
	if err != nil {
		return domain.AmenityTable{}, fmt.Errorf("load %s: %w", ref.Name, err)
	}
	if ref.Name != "" {
		t.Name = ref.Name
	}
	return t, nil
}
