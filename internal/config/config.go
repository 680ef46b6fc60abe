// Package config loads crawl settings from flags, LISTCRAWL_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/listcrawl/internal/fingerprint"
	"github.com/FranksOps/listcrawl/internal/listing"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, with "." in keys
// replaced by "_": storage.dsn is LISTCRAWL_STORAGE_DSN.
const EnvPrefix = "LISTCRAWL"

// Engine names.
const (
	EngineNative = "native"
	EngineColly  = "colly"
)

// Storage backend names.
const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendCSV      = "csv"
	BackendJSON     = "json"
)

var (
	engines     = []string{EngineNative, EngineColly}
	backends    = []string{BackendNone, BackendSQLite, BackendPostgres, BackendCSV, BackendJSON}
	formats     = []string{"text", "json", "html"}
	logFormats  = []string{"text", "json"}
	defaultDSNs = map[string]string{
		BackendSQLite: "listcrawl.db",
		BackendCSV:    "records.csv",
		BackendJSON:   "records.ndjson",
	}
)

// Config is the fully resolved configuration of one run.
type Config struct {
	Search    listing.SearchConfig
	Site      string
	Selectors listing.Selectors

	Engine            string
	Concurrency       int
	RequestsPerSecond float64
	Jitter            float64
	RespectRobots     bool
	Cookies           bool
	// AllowedDomains scopes the crawl. Empty means the site's registrable
	// domain and its subdomains.
	AllowedDomains []string
	UserAgent      string
	Fingerprint    fingerprint.Profile
	Timeout        time.Duration

	Storage StorageConfig
	Metrics MetricsConfig
	Report  ReportConfig
	Log     LogConfig
}

// StorageConfig selects where scraped records are persisted.
type StorageConfig struct {
	Backend string
	DSN     string
}

// MetricsConfig controls the Prometheus endpoint. Port 0 disables it.
type MetricsConfig struct {
	Port int
}

// ReportConfig controls the end-of-crawl report. An empty Output means stdout.
type ReportConfig struct {
	Format string
	Output string
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key with its default so environment variables
// resolve for nested keys as well.
func SetDefaults(v *viper.Viper) {
	sel := listing.DefaultSelectors()

	v.SetDefault("query", "")
	v.SetDefault("location", "")
	v.SetDefault("max_results", "3")
	v.SetDefault("site", listing.DefaultSite)
	v.SetDefault("engine", EngineNative)
	v.SetDefault("concurrency", 3)
	v.SetDefault("requests_per_second", 1.0)
	v.SetDefault("jitter", 0.3)
	v.SetDefault("respect_robots", false)
	v.SetDefault("cookies", false)
	v.SetDefault("allowed_domains", []string{})
	v.SetDefault("user_agent", "")
	v.SetDefault("fingerprint", string(fingerprint.ProfileChrome))
	v.SetDefault("timeout", "30s")
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("metrics.port", 0)
	v.SetDefault("report.format", "text")
	v.SetDefault("report.output", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("selectors.result_links", sel.ResultLinks)
	v.SetDefault("selectors.name", sel.Name)
	v.SetDefault("selectors.address_lines", sel.AddressLines)
	v.SetDefault("selectors.phone", sel.Phone)
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// ReadFile merges the YAML file at path into v. An empty path looks for
// listcrawl.yaml in the working directory and is not an error when absent.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("listcrawl")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// ParseMaxResults converts the raw max results value. Anything that is not a
// whole number of at least 1 is rejected.
func ParseMaxResults(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: max results %q is not a number", listing.ErrInvalidConfig, raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%w: max results must be at least 1, got %d", listing.ErrInvalidConfig, n)
	}
	return n, nil
}

// Load resolves and validates the configuration held by v. Every problem is
// reported in the returned error, which wraps listing.ErrInvalidConfig.
func Load(v *viper.Viper) (*Config, error) {
	return load(v, true)
}

// LoadStored is Load without the search settings, for commands that only
// read stored records.
func LoadStored(v *viper.Viper) (*Config, error) {
	return load(v, false)
}

func load(v *viper.Viper, withSearch bool) (*Config, error) {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{listing.ErrInvalidConfig}, args...)...))
	}

	cfg := &Config{
		Site: strings.TrimRight(strings.TrimSpace(v.GetString("site")), "/"),
		Selectors: listing.Selectors{
			ResultLinks:  v.GetString("selectors.result_links"),
			Name:         v.GetString("selectors.name"),
			AddressLines: v.GetString("selectors.address_lines"),
			Phone:        v.GetString("selectors.phone"),
		},
		Engine:            strings.ToLower(v.GetString("engine")),
		Concurrency:       v.GetInt("concurrency"),
		RequestsPerSecond: v.GetFloat64("requests_per_second"),
		Jitter:            v.GetFloat64("jitter"),
		RespectRobots:     v.GetBool("respect_robots"),
		Cookies:           v.GetBool("cookies"),
		AllowedDomains:    domainList(v.GetStringSlice("allowed_domains")),
		UserAgent:         v.GetString("user_agent"),
		Timeout:           v.GetDuration("timeout"),
		Storage: StorageConfig{
			Backend: strings.ToLower(v.GetString("storage.backend")),
			DSN:     v.GetString("storage.dsn"),
		},
		Metrics: MetricsConfig{Port: v.GetInt("metrics.port")},
		Report: ReportConfig{
			Format: strings.ToLower(v.GetString("report.format")),
			Output: v.GetString("report.output"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}

	if withSearch {
		maxResults, err := ParseMaxResults(v.GetString("max_results"))
		if err != nil {
			errs = append(errs, err)
			maxResults = 1 // keep validating query and location
		}
		cfg.Search = listing.SearchConfig{
			Query:      strings.TrimSpace(v.GetString("query")),
			Location:   strings.TrimSpace(v.GetString("location")),
			MaxResults: maxResults,
		}
		if err := cfg.Search.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	if !slices.Contains(engines, cfg.Engine) {
		invalid("unknown engine %q", cfg.Engine)
	}
	if cfg.Concurrency < 1 {
		invalid("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.RequestsPerSecond < 0 {
		invalid("requests per second must not be negative")
	}
	if cfg.Jitter < 0 || cfg.Jitter > 1 {
		invalid("jitter must be between 0 and 1, got %g", cfg.Jitter)
	}
	if cfg.Timeout <= 0 {
		invalid("timeout must be positive")
	}
	if p, err := fingerprint.ParseProfile(v.GetString("fingerprint")); err != nil {
		invalid("%v", err)
	} else {
		cfg.Fingerprint = p
	}

	if !slices.Contains(backends, cfg.Storage.Backend) {
		invalid("unknown storage backend %q", cfg.Storage.Backend)
	} else if cfg.Storage.DSN == "" {
		if dsn, ok := defaultDSNs[cfg.Storage.Backend]; ok {
			cfg.Storage.DSN = dsn
		} else if cfg.Storage.Backend == BackendPostgres {
			invalid("storage.dsn is required for postgres")
		}
	}

	if cfg.Metrics.Port < 0 || cfg.Metrics.Port > 65535 {
		invalid("metrics port %d out of range", cfg.Metrics.Port)
	}
	if !slices.Contains(formats, cfg.Report.Format) {
		invalid("unknown report format %q", cfg.Report.Format)
	}
	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		invalid("%v", err)
	}
	if !slices.Contains(logFormats, cfg.Log.Format) {
		invalid("unknown log format %q", cfg.Log.Format)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// domainList splits comma separated entries, which is how a list arrives
// from the environment, and drops empties.
func domainList(raw []string) []string {
	var out []string
	for _, entry := range raw {
		for _, d := range strings.Split(entry, ",") {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				out = append(out, d)
			}
		}
	}
	return out
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
