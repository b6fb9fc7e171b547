// Package config loads pairent.yaml and PAIRENT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/acksell/pairent/dynamodb/store"
	"github.com/acksell/pairent/dynamodb/table"
	"github.com/acksell/pairent/forum/cascade"
	"github.com/acksell/pairent/forum/query"
	"gopkg.in/yaml.v3"
)

// FileName is searched for from the working directory upwards.
const FileName = "pairent.yaml"

type Config struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`

	Local   Local   `yaml:"local"`
	Limits  Limits  `yaml:"limits"`
	Retry   Retry   `yaml:"retry"`
	Cascade Cascade `yaml:"cascade"`
	Search  Search  `yaml:"search"`
	Log     Log     `yaml:"log"`
	Metrics Metrics `yaml:"metrics"`
}

// Local selects the embedded badger backend instead of DynamoDB.
type Local struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type Limits struct {
	Min     int `yaml:"min"`
	Max     int `yaml:"max"`
	Default int `yaml:"default"`
}

type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type Cascade struct {
	PageSize        int           `yaml:"page_size"`
	MaxPages        int           `yaml:"max_pages"`
	MaxBatchRetries int           `yaml:"max_batch_retries"`
	BatchTimeout    time.Duration `yaml:"batch_timeout"`
}

type Search struct {
	InitialBatch int `yaml:"initial_batch"`
	MaxBatch     int `yaml:"max_batch"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Default is the configuration used when no file is found.
func Default() Config {
	return Config{
		Table:  table.DefaultForumTableName,
		Region: "eu-north-1",
		Limits: Limits{
			Min:     query.DefaultLimits.Min,
			Max:     query.DefaultLimits.Max,
			Default: query.DefaultLimits.Default,
		},
		Retry: Retry{MaxAttempts: 5, BaseDelay: 25 * time.Millisecond, MaxDelay: 2 * time.Second},
		Cascade: Cascade{
			PageSize:        cascade.DefaultOptions.PageSize,
			MaxPages:        cascade.DefaultOptions.MaxPages,
			MaxBatchRetries: cascade.DefaultOptions.MaxBatchRetries,
		},
		Search: Search{
			InitialBatch: query.DefaultSearch.InitialBatch,
			MaxBatch:     query.DefaultSearch.MaxBatch,
		},
		Log:     Log{Level: "info"},
		Metrics: Metrics{Namespace: "pairent"},
	}
}

// Load reads path, or the nearest pairent.yaml when path is empty, on
// top of the defaults and applies environment overrides. A missing file
// is not an error unless path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = Find()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Find returns the nearest pairent.yaml walking up from the working
// directory, or "" if there is none.
func Find() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if v, ok := lookup(name); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = b
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}

	str("PAIRENT_TABLE", &c.Table)
	str("PAIRENT_REGION", &c.Region)
	str("PAIRENT_ENDPOINT", &c.Endpoint)
	boolean("PAIRENT_LOCAL", &c.Local.Enabled)
	str("PAIRENT_LOCAL_PATH", &c.Local.Path)
	boolean("PAIRENT_LOCAL_IN_MEMORY", &c.Local.InMemory)
	integer("PAIRENT_LIMITS_MAX", &c.Limits.Max)
	integer("PAIRENT_LIMITS_DEFAULT", &c.Limits.Default)
	integer("PAIRENT_RETRY_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	integer("PAIRENT_CASCADE_PAGE_SIZE", &c.Cascade.PageSize)
	integer("PAIRENT_CASCADE_MAX_PAGES", &c.Cascade.MaxPages)
	duration("PAIRENT_CASCADE_BATCH_TIMEOUT", &c.Cascade.BatchTimeout)
	str("PAIRENT_LOG_LEVEL", &c.Log.Level)
	boolean("PAIRENT_LOG_DEVELOPMENT", &c.Log.Development)
	boolean("PAIRENT_METRICS_ENABLED", &c.Metrics.Enabled)
	return errors.Join(errs...)
}

// Validate reports every inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Table == "" {
		errs = append(errs, errors.New("table must be set"))
	}
	if err := c.QueryLimits().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry delays must satisfy 0 <= base_delay <= max_delay"))
	}
	if c.Cascade.PageSize < 2 || c.Cascade.PageSize > 1000 {
		errs = append(errs, errors.New("cascade.page_size must be within [2, 1000]"))
	}
	if c.Cascade.MaxPages < 1 {
		errs = append(errs, errors.New("cascade.max_pages must be at least 1"))
	}
	if c.Cascade.BatchTimeout < 0 {
		errs = append(errs, errors.New("cascade.batch_timeout must not be negative"))
	}
	if c.Search.InitialBatch < 1 || c.Search.MaxBatch < c.Search.InitialBatch {
		errs = append(errs, errors.New("search batches must satisfy 1 <= initial_batch <= max_batch"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: config: %w", store.ErrInvalidArgument, err)
	}
	return nil
}

func (c Config) QueryLimits() query.Limits {
	return query.Limits{Min: c.Limits.Min, Max: c.Limits.Max, Default: c.Limits.Default}
}

func (c Config) SearchOptions() query.SearchOptions {
	return query.SearchOptions{InitialBatch: c.Search.InitialBatch, MaxBatch: c.Search.MaxBatch}
}

func (c Config) Backoff() store.BackoffFunc {
	return store.ExponentialBackoff(c.Retry.BaseDelay, 2, c.Retry.MaxDelay)
}

func (c Config) CascadeOptions() cascade.Options {
	return cascade.Options{
		PageSize:        c.Cascade.PageSize,
		MaxPages:        c.Cascade.MaxPages,
		MaxBatchRetries: c.Cascade.MaxBatchRetries,
		BatchTimeout:    c.Cascade.BatchTimeout,
		Backoff:         c.Backoff(),
	}
}
