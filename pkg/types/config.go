package types

import (
	"errors"
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings for requests to the directory.
type HTTPConfig struct {
	// Timeout is the per-attempt HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with every request
	// (e.g. "scholars-harvest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// DirectoryConfig locates the directory service.
type DirectoryConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// BaseURL is the API root, e.g. "https://scholars.uab.edu/api".
	BaseURL string `json:"base_url" yaml:"base_url" mapstructure:"base_url"`

	// Token is an optional bearer token. Usually loaded from .secrets/.
	Token string `json:"-" yaml:"-" mapstructure:"token"`
}

// ThrottleConfig bounds the request rate and the retry budget. One limiter
// and one retry policy built from these values are shared by a whole run.
type ThrottleConfig struct {
	// MinInterval is the minimum spacing between any two requests (default 100ms).
	MinInterval time.Duration `json:"min_interval" yaml:"min_interval" mapstructure:"min_interval"`

	// MaxRetries is the number of retries after the first attempt (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryBackoff is the fixed wait before each retry (default 500ms).
	RetryBackoff time.Duration `json:"retry_backoff" yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// ScanConfig configures the range scanner.
type ScanConfig struct {
	// MaxID is the inclusive upper bound of the probed identifier space.
	// There is no default: the directory does not expose its largest id.
	MaxID int `json:"max_id" yaml:"max_id" mapstructure:"max_id"`

	// Workers is the scan pool width (default 20).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
}

// FetchConfig configures the entity fetcher and orchestrator.
type FetchConfig struct {
	// Workers is the fetch pool width (default 10).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// PageSize is the page size for every collection (default 500).
	PageSize int `json:"page_size" yaml:"page_size" mapstructure:"page_size"`

	// Collections selects the collections to fetch. Empty means all.
	Collections []string `json:"collections,omitempty" yaml:"collections,omitempty" mapstructure:"collections"`

	// SortKey is sent with collection requests (default "dateDesc").
	SortKey string `json:"sort_key" yaml:"sort_key" mapstructure:"sort_key"`
}

// NameConfig tunes fuzzy name resolution.
type NameConfig struct {
	// Workers bounds how many names resolve concurrently (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// Nicknames extends the built-in nickname table (short form -> formal).
	Nicknames map[string]string `json:"nicknames,omitempty" yaml:"nicknames,omitempty" mapstructure:"nicknames"`

	// Overrides pins names the directory search cannot find to an identifier.
	Overrides map[string]Identifier `json:"overrides,omitempty" yaml:"overrides,omitempty" mapstructure:"overrides"`
}

// OutputConfig selects sinks and where they write.
type OutputConfig struct {
	// Dir is the directory for file sinks (default "output").
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`

	// Formats lists sinks: csv, jsonl, sqlite, redis (default csv).
	Formats []string `json:"formats" yaml:"formats" mapstructure:"formats"`

	// SortByName orders the profiles CSV by last then first name.
	SortByName bool `json:"sort_by_name" yaml:"sort_by_name" mapstructure:"sort_by_name"`

	// SQLitePath is the database file for the sqlite sink (default Dir/scholars.db).
	SQLitePath string `json:"sqlite_path,omitempty" yaml:"sqlite_path,omitempty" mapstructure:"sqlite_path"`

	// RedisAddr is the host:port of the redis sink.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`

	// RedisStream is the stream key outcomes are appended to.
	RedisStream string `json:"redis_stream,omitempty" yaml:"redis_stream,omitempty" mapstructure:"redis_stream"`

	// RedisPassword is usually loaded from .secrets/.
	RedisPassword string `json:"-" yaml:"-" mapstructure:"redis_password"`

	// ReportPath is where the YAML run report goes. Empty means
	// Dir/run-<command>[-<query>].yaml.
	ReportPath string `json:"report_path,omitempty" yaml:"report_path,omitempty" mapstructure:"report_path"`
}

// HarvestConfig is the full configuration of one run.
type HarvestConfig struct {
	Directory DirectoryConfig `json:"directory" yaml:"directory" mapstructure:"directory"`
	Throttle  ThrottleConfig  `json:"throttle" yaml:"throttle" mapstructure:"throttle"`
	Scan      ScanConfig      `json:"scan" yaml:"scan" mapstructure:"scan"`
	Fetch     FetchConfig     `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Names     NameConfig      `json:"names" yaml:"names" mapstructure:"names"`
	Output    OutputConfig    `json:"output" yaml:"output" mapstructure:"output"`
}

// DefaultHarvestConfig returns the settings the harvester uses when nothing
// is configured.
func DefaultHarvestConfig() HarvestConfig {
	return HarvestConfig{
		Directory: DirectoryConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   15 * time.Second,
				UserAgent: "scholars-harvest/0.1",
			},
			BaseURL: "https://scholars.uab.edu/api",
		},
		Throttle: ThrottleConfig{
			MinInterval:  100 * time.Millisecond,
			MaxRetries:   1,
			RetryBackoff: 500 * time.Millisecond,
		},
		Scan: ScanConfig{
			Workers: 20,
		},
		Fetch: FetchConfig{
			Workers:  10,
			PageSize: MaxPageSize,
			SortKey:  "dateDesc",
		},
		Names: NameConfig{
			Workers: 4,
		},
		Output: OutputConfig{
			Dir:         "output",
			Formats:     []string{"csv"},
			RedisStream: "scholars:outcomes",
		},
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate rejects settings that would make a run ill-defined. Scan bounds
// are checked by the scanner itself since only the scan command needs them.
func (c HarvestConfig) Validate() error {
	if c.Directory.BaseURL == "" {
		return fmt.Errorf("%w: directory base_url is empty", ErrInvalidConfig)
	}
	if c.Throttle.MinInterval < 0 {
		return fmt.Errorf("%w: throttle min_interval %v is negative", ErrInvalidConfig, c.Throttle.MinInterval)
	}
	if c.Throttle.MaxRetries < 0 {
		return fmt.Errorf("%w: throttle max_retries %d is negative", ErrInvalidConfig, c.Throttle.MaxRetries)
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("%w: fetch workers must be at least 1, got %d", ErrInvalidConfig, c.Fetch.Workers)
	}
	if err := (PageRequest{PageSize: c.Fetch.PageSize}).Validate(); err != nil {
		return fmt.Errorf("%w: fetch %v", ErrInvalidConfig, err)
	}
	if _, err := c.Fetch.Kinds(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Kinds parses Collections, defaulting to AllCollections when empty.
func (c FetchConfig) Kinds() ([]CollectionKind, error) {
	if len(c.Collections) == 0 {
		return AllCollections(), nil
	}
	kinds := make([]CollectionKind, 0, len(c.Collections))
	seen := make(map[CollectionKind]bool)
	for _, s := range c.Collections {
		k, err := ParseCollectionKind(s)
		if err != nil {
			return nil, err
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}
