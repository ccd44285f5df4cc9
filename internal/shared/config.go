package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"airbnb_kpi/internal/domain"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	DBDriver string
	DBDSN    string

	RedisAddr   string
	RedisDB     int
	RedisPass   string
	RedisPrefix string
	CacheTTL    time.Duration

	SourcesFile string
	CSVDir      string
	Workers     int
	AmenityBoth string

	ExtractBase string
	ExtractKey  string
	ExtractRPS  int

	RefreshCron string
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists.
func Load() Config { return LoadWith(".env") }

// LoadWith is Load with an explicit dotenv path. Variables already set in the
// environment win over the file.
func LoadWith(dotenv string) Config {
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("file", dotenv).Msg("could not read dotenv file")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		DBDriver:    env("DB_DRIVER", "mysql"),
		DBDSN:       env("DB_DSN", "root:root@tcp(localhost:3306)/airbnb?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", ""),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisPrefix: env("REDIS_PREFIX", "airbnb:"),
		CacheTTL:    time.Duration(atoi("CACHE_TTL_SECONDS", 900)) * time.Second,
		SourcesFile: env("KPI_SOURCES_FILE", "sources.yaml"),
		CSVDir:      env("KPI_CSV_DIR", ""),
		Workers:     atoi("KPI_WORKERS", 4),
		AmenityBoth: env("KPI_AMENITY_BOTH", "parity"),
		ExtractBase: env("EXTRACT_BASE_URL", ""),
		ExtractKey:  env("EXTRACT_API_KEY", ""),
		ExtractRPS:  atoi("EXTRACT_RPS", 5),
		RefreshCron: env("KPI_REFRESH_CRON", ""),
	}
	if c.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty; reads are not cached")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Sources is the run's input list, read from KPI_SOURCES_FILE:
//
//	listings:
//	  - {name: y2019, table: listings_2019}
//	  - {name: y2020, file: listings_2020.csv}
//	amenities: {name: amenities, extract: amenities}
type Sources struct {
	Listings  []domain.SourceRef `yaml:"listings"`
	Amenities domain.SourceRef   `yaml:"amenities"`
}

func LoadSources(path string) (Sources, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Sources{}, fmt.Errorf("read sources: %w", err)
	}
	var s Sources
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Sources{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return Sources{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate checks every ref targets exactly one location and names are unique.
func (s Sources) Validate() error {
	if len(s.Listings) == 0 {
		return domain.ErrNoSources
	}
	var merr *multierror.Error
	seen := make(map[string]bool, len(s.Listings))
	for i, ref := range s.Listings {
		if ref.Name == "" {
			merr = multierror.Append(merr, fmt.Errorf("listings[%d]: name is required", i))
		} else if seen[ref.Name] {
			merr = multierror.Append(merr, fmt.Errorf("listings[%d]: duplicate name %q", i, ref.Name))
		}
		seen[ref.Name] = true
		if ref.Kind() == "" {
			merr = multierror.Append(merr, fmt.Errorf("listings[%d]: exactly one of table, file or extract must be set", i))
		}
	}
	if s.Amenities != (domain.SourceRef{}) && s.Amenities.Kind() == "" {
		merr = multierror.Append(merr, errors.New("amenities: exactly one of table, file or extract must be set"))
	}
	return merr.ErrorOrNil()
}
