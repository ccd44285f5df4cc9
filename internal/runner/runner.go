// Package runner wires configuration to the stores, sources and services
// shared by the pipeline and API binaries.
package runner

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"airbnb_kpi/internal/adapters/extract"
	redisad "airbnb_kpi/internal/adapters/redis"
	"airbnb_kpi/internal/app"
	"airbnb_kpi/internal/domain"
	"airbnb_kpi/internal/shared"
	"airbnb_kpi/internal/storage/csvsource"
	"airbnb_kpi/internal/storage/sqldb"
)

type Runner struct {
	cfg   shared.Config
	db    *sql.DB
	redis *redisad.Cache

	Repo     *sqldb.Repo
	Loader   *app.Loader
	Pipeline *app.PipelineService
	Query    *app.QueryService

	mu sync.Mutex // one pipeline run at a time
}

// New opens the database (and Redis when configured), migrates the result
// tables and registers a loader for every source kind that is configured.
func New(ctx context.Context, cfg shared.Config) (*Runner, error) {
	db, err := sqldb.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := sqldb.Migrate(ctx, db, cfg.DBDriver); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	r := &Runner{cfg: cfg, db: db, Repo: sqldb.New(db)}

	// keep the interface nil when Redis is off so services skip the cache
	var cache domain.Cache
	if cfg.RedisAddr != "" {
		r.redis = redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.RedisPrefix)
		cache = r.redis
	}

	csvDir := cfg.CSVDir
	if csvDir == "" {
		csvDir = filepath.Dir(cfg.SourcesFile)
	}
	r.Loader = app.NewLoader(cfg.Workers)
	r.Loader.Register("table", r.Repo)
	r.Loader.Register("file", csvsource.New(csvDir))
	if cfg.ExtractBase != "" {
		cl, err := extract.New(cfg.ExtractBase, cfg.ExtractKey, cfg.ExtractRPS)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.Loader.Register("extract", cl)
	}

	policy := app.ParseAmenityPolicy(cfg.AmenityBoth)
	r.Pipeline = app.NewPipelineService(r.Repo, cache, policy)
	r.Query = app.NewQueryService(r.Repo, cache, cfg.CacheTTL)
	log.Info().Str("amenity_policy", policy.String()).Int("workers", cfg.Workers).Msg("runner ready")
	return r, nil
}

// RunOnce loads the configured sources and runs the pipeline over them.
func (r *Runner) RunOnce(ctx context.Context) (domain.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	srcs, err := shared.LoadSources(r.cfg.SourcesFile)
	if err != nil {
		return domain.Report{}, err
	}
	in, err := r.Loader.Load(ctx, srcs.Listings, srcs.Amenities)
	if err != nil {
		return domain.Report{}, fmt.Errorf("load sources: %w", err)
	}
	rep, err := r.Pipeline.Run(ctx, in)
	if err != nil {
		return domain.Report{}, err
	}
	log.Info().Str("run_id", rep.RunID).Dur("took", time.Since(start)).Msg("pipeline run complete")
	return rep, nil
}

// Ready pings the database and, when configured, Redis.
func (r *Runner) Ready(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if r.redis != nil {
		if err := r.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (r *Runner) Close() error {
	var merr *multierror.Error
	if r.redis != nil {
		merr = multierror.Append(merr, r.redis.Close())
	}
	merr = multierror.Append(merr, r.db.Close())
	return merr.ErrorOrNil()
}
