// =============================================================================
// config.go - Configuration Management
// =============================================================================
//
// Configuration is resolved in layers, each overriding the previous one:
//
//	1. Built-in defaults (DefaultConfig)
//	2. TOML file given by --config
//	3. Environment: MAX_PRODUCTS_EXTRACT, CATALOG_SOURCE_URL, PG_DSN
//	4. Command-line flags that were set explicitly
//
// The result is checked by Validate before anything is opened.
//
// EXAMPLE FILE:
//
//	[source]
//	base_url = "https://challenges.coode.sh/food/data/json"
//	timeout = "30s"
//
//	[import]
//	max_products = 100
//	schedule_interval = "2m"
//	run_on_start = true
//
//	[store]
//	backend = "rocksdb"
//	path = "/var/lib/catalog-sync"
//
//	[http]
//	addr = ":3000"
//
// =============================================================================

package main

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/errors"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/interfaces"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/scheduler"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/store"
	"github.com/karthikiyer56/product-catalog-sync/catalog-sync-workflow/pkg/types"
	"github.com/karthikiyer56/product-catalog-sync/helpers"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// DefaultSourceURL is the public catalog mirror
	DefaultSourceURL = "https://challenges.coode.sh/food/data/json"

	// DefaultHTTPAddr is where the API listens
	DefaultHTTPAddr = ":3000"

	// MinChunkSize bounds [import] chunk_size from below
	MinChunkSize = 1024

	EnvMaxProducts = "MAX_PRODUCTS_EXTRACT"
	EnvSourceURL   = "CATALOG_SOURCE_URL"
	EnvPGDSN       = "PG_DSN"
)

// =============================================================================
// Config Structures
// =============================================================================

// Config is the complete runtime configuration.
type Config struct {
	Source SourceConfig `toml:"source"`
	Import ImportConfig `toml:"import"`
	Store  StoreConfig  `toml:"store"`
	HTTP   HTTPConfig   `toml:"http"`
	Log    LogConfig    `toml:"log"`

	// Runtime-only settings (flags)
	ConfigPath string `toml:"-"`
	Once       bool   `toml:"-"`
	DryRun     bool   `toml:"-"`
	Compact    bool   `toml:"-"`
}

// SourceConfig describes where catalog files come from.
type SourceConfig struct {
	// BaseURL is http(s)://... or s3://bucket/prefix
	BaseURL string `toml:"base_url"`

	// FileNameLength is the only manifest name length that is processed
	FileNameLength int `toml:"file_name_length"`

	// Timeout bounds connecting and waiting for response headers
	Timeout time.Duration `toml:"timeout"`

	// Retries is the per-request retry budget for transient HTTP failures
	Retries int `toml:"retries"`

	UserAgent  string `toml:"user_agent"`
	S3Region   string `toml:"s3_region"`
	S3Endpoint string `toml:"s3_endpoint"`
}

// ImportConfig controls the import runs.
type ImportConfig struct {
	// MaxProducts is the per-file, per-run line cap
	MaxProducts int `toml:"max_products"`

	// ChunkSize is the line extraction read size in bytes
	ChunkSize int `toml:"chunk_size"`

	// ScheduleInterval is the time between scheduled runs
	ScheduleInterval time.Duration `toml:"schedule_interval"`

	// RunTimeout bounds one run; 0 means no limit
	RunTimeout time.Duration `toml:"run_timeout"`

	// RunOnStart triggers a run as soon as the service starts
	RunOnStart bool `toml:"run_on_start"`
}

// StoreConfig selects and tunes the backend.
type StoreConfig struct {
	// Backend is rocksdb, postgres or memory
	Backend string `toml:"backend"`

	// Path is the RocksDB directory
	Path string `toml:"path"`

	PGDSN            string `toml:"pg_dsn"`
	PGMaxConns       int    `toml:"pg_max_conns"`
	PGSimpleProtocol bool   `toml:"pg_simple_protocol"`

	RocksDB types.RocksDBSettings `toml:"rocksdb"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `toml:"addr"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// LogConfig names the log files. Empty paths log to stdout and stderr.
type LogConfig struct {
	File      string `toml:"file"`
	ErrorFile string `toml:"error_file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:        DefaultSourceURL,
			FileNameLength: types.DefaultFileNameLength,
			Timeout:        30 * time.Second,
			UserAgent:      ToolName + "/" + Version,
		},
		Import: ImportConfig{
			MaxProducts:      types.DefaultMaxProducts,
			ChunkSize:        types.DefaultChunkSize,
			ScheduleInterval: scheduler.DefaultInterval,
			RunTimeout:       10 * time.Minute,
			RunOnStart:       true,
		},
		Store: StoreConfig{
			Backend:    store.BackendRocksDB,
			Path:       "data/catalog",
			PGMaxConns: 4,
			RocksDB:    types.DefaultRocksDBSettings(),
		},
		HTTP: HTTPConfig{
			Addr:            DefaultHTTPAddr,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// =============================================================================
// Loading
// =============================================================================

// LoadConfig returns the defaults overlaid with the TOML file at path. An
// empty path returns the defaults. Unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	md, err := toml.DecodeFile(path, config)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.Newf(errors.ErrInvalidArgument, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	config.ConfigPath = path
	return config, nil
}

// ApplyEnv overlays the environment variables. Empty values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvMaxProducts); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.WithCode(err, errors.ErrInvalidArgument, EnvMaxProducts+" must be an integer")
		}
		c.Import.MaxProducts = n
	}
	if v, ok := lookup(EnvSourceURL); ok && strings.TrimSpace(v) != "" {
		c.Source.BaseURL = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvPGDSN); ok && strings.TrimSpace(v) != "" {
		c.Store.PGDSN = strings.TrimSpace(v)
	}
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || c.Source.BaseURL == "" {
		return errors.Newf(errors.ErrInvalidArgument, "[source] base_url %q is not a valid URL", c.Source.BaseURL)
	}
	switch u.Scheme {
	case "http", "https", "s3":
	default:
		return errors.Newf(errors.ErrInvalidArgument, "[source] base_url must be http, https or s3, got %q", u.Scheme)
	}
	if c.Source.FileNameLength <= 0 {
		return errors.New(errors.ErrInvalidArgument, "[source] file_name_length must be positive")
	}
	if c.Source.Retries < 0 {
		return errors.New(errors.ErrInvalidArgument, "[source] retries must not be negative")
	}
	if c.Source.Timeout <= 0 {
		return errors.New(errors.ErrInvalidArgument, "[source] timeout must be positive")
	}

	if c.Import.MaxProducts <= 0 {
		return errors.Newf(errors.ErrInvalidArgument, "max products must be positive, got %d", c.Import.MaxProducts)
	}
	if c.Import.ChunkSize < MinChunkSize {
		return errors.Newf(errors.ErrInvalidArgument, "[import] chunk_size must be at least %d", MinChunkSize)
	}
	if c.Import.ScheduleInterval <= 0 {
		return errors.New(errors.ErrInvalidArgument, "[import] schedule_interval must be positive")
	}
	if c.Import.RunTimeout < 0 {
		return errors.New(errors.ErrInvalidArgument, "[import] run_timeout must not be negative")
	}

	switch c.Store.Backend {
	case store.BackendRocksDB:
		if c.Store.Path == "" {
			return errors.New(errors.ErrInvalidArgument, "[store] path is required for rocksdb")
		}
	case store.BackendPostgres:
		if c.Store.PGDSN == "" {
			return errors.New(errors.ErrInvalidArgument, "[store] pg_dsn (or PG_DSN) is required for postgres")
		}
		if c.Store.PGMaxConns <= 0 {
			return errors.New(errors.ErrInvalidArgument, "[store] pg_max_conns must be positive")
		}
	case store.BackendMemory:
	default:
		return errors.Newf(errors.ErrInvalidArgument, "[store] backend must be rocksdb, postgres or memory, got %q", c.Store.Backend)
	}

	if c.Compact && c.Store.Backend != store.BackendRocksDB {
		return errors.New(errors.ErrInvalidArgument, "--compact requires the rocksdb backend")
	}
	if c.Compact && (c.Once || c.DryRun) {
		return errors.New(errors.ErrInvalidArgument, "--compact cannot be combined with --once or --dry-run")
	}
	if !c.Once && !c.Compact && c.HTTP.Addr == "" {
		return errors.New(errors.ErrInvalidArgument, "[http] addr is required unless --once is set")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		return errors.New(errors.ErrInvalidArgument, "[http] shutdown_timeout must be positive")
	}
	return nil
}

// =============================================================================
// Printing
// =============================================================================

// PrintConfig logs the resolved configuration. The Postgres DSN password is
// redacted.
func (c *Config) PrintConfig(logger interfaces.Logger) {
	logger.Separator()
	logger.Info("                         CONFIGURATION")
	logger.Separator()
	logger.Info("")
	logger.Info("SOURCE:")
	logger.Info("  Base URL:            %s", c.Source.BaseURL)
	logger.Info("  File Name Length:    %d", c.Source.FileNameLength)
	logger.Info("  Timeout:             %s", helpers.FormatDuration(c.Source.Timeout))
	logger.Info("  Retries:             %d", c.Source.Retries)
	logger.Info("")
	logger.Info("IMPORT:")
	logger.Info("  Max Products:        %d per file per run", c.Import.MaxProducts)
	logger.Info("  Chunk Size:          %s", helpers.FormatBytes(int64(c.Import.ChunkSize)))
	logger.Info("  Schedule Interval:   %s", helpers.FormatDuration(c.Import.ScheduleInterval))
	logger.Info("  Run Timeout:         %s", helpers.FormatDuration(c.Import.RunTimeout))
	logger.Info("  Run On Start:        %v", c.Import.RunOnStart)
	logger.Info("")
	logger.Info("STORE:")
	logger.Info("  Backend:             %s", c.Store.Backend)
	switch c.Store.Backend {
	case store.BackendRocksDB:
		s := c.Store.RocksDB
		logger.Info("  Path:                %s", c.Store.Path)
		logger.Info("  Write Buffer:        %d MB x %d", s.WriteBufferSizeMB, s.MaxWriteBufferNumber)
		logger.Info("  Block Cache:         %d MB", s.BlockCacheSizeMB)
		logger.Info("  Bloom Filter:        %d bits/key", s.BloomFilterBitsPerKey)
		logger.Info("  Sync Writes:         %v", s.SyncWrites)
	case store.BackendPostgres:
		logger.Info("  DSN:                 %s", redactDSN(c.Store.PGDSN))
		logger.Info("  Max Conns:           %d", c.Store.PGMaxConns)
	}
	logger.Info("")
	logger.Info("HTTP:")
	logger.Info("  Addr:                %s", c.HTTP.Addr)
	logger.Info("")
	logger.Info("LOGGING:")
	logger.Info("  Log File:            %s", orStream(c.Log.File, "stdout"))
	logger.Info("  Error File:          %s", orStream(c.Log.ErrorFile, "stderr"))
	logger.Info("")
	logger.Info("OPTIONS:")
	logger.Info("  Config File:         %s", orStream(c.ConfigPath, "none"))
	logger.Info("  Once:                %v", c.Once)
	logger.Info("  Dry Run:             %v", c.DryRun)
	logger.Info("  Compact:             %v", c.Compact)
	logger.Info("")
}

// redactDSN hides the password of a URL-form DSN.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func orStream(path, stream string) string {
	if path == "" {
		return "(" + stream + ")"
	}
	return path
}
