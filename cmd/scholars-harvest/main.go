// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the scholars-harvest CLI. Each
// discovery mode is a subcommand (scan, search, names, fetch); all of them
// feed the same fetch pipeline and sinks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/scholars-harvest/internal/logging"
	"github.com/pdiddy/scholars-harvest/internal/secrets"
	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from the secrets directory at startup.
var loadedSecrets map[string]string

// rootCmd is the base command for the scholars-harvest CLI.
var rootCmd = &cobra.Command{
	Use:   "scholars-harvest",
	Short: "Discover faculty in Scholars@UAB and harvest their records",
	Long: `scholars-harvest finds faculty in the Scholars@UAB directory and downloads
their profiles, publications, grants, and teaching and professional
activities.

Targets come from one of four subcommands: scan (probe the identifier space
with a department or interest filter), search (server-side filtered search),
names (fuzzy matching of a list of names), or fetch (explicit identifiers).
Every request shares one rate limiter and retry policy; finished records are
streamed to the configured sinks as they complete.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		pretty, _ := cmd.Flags().GetBool("log-pretty")
		logging.Setup(logging.Config{Level: level, Pretty: pretty})

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			log.Info().Strs("keys", keys).Msg("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	d := types.DefaultHarvestConfig()
	f := rootCmd.PersistentFlags()
	f.String("config", "", "config file (default: ./scholars-harvest.yaml or ~/.config/scholars-harvest/config.yaml)")
	f.String("secrets-dir", secrets.DefaultDir, "directory of secret files (directory-api-token, redis-password)")
	f.String("log-level", "info", "log level: debug, info, warn, error, disabled")
	f.Bool("log-pretty", false, "human-readable console logs instead of JSON")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address during the run (e.g. :9090)")
	f.Bool("resolve-only", false, "list resolved targets and stop before fetching")

	f.String("base-url", d.Directory.BaseURL, "directory API root")
	f.Duration("timeout", d.Directory.Timeout, "per-request HTTP timeout")
	f.String("user-agent", d.Directory.UserAgent, "User-Agent header")
	f.Duration("min-interval", d.Throttle.MinInterval, "minimum spacing between requests (0 disables throttling)")
	f.Int("max-retries", d.Throttle.MaxRetries, "retries after the first attempt for transient failures")
	f.Duration("retry-backoff", d.Throttle.RetryBackoff, "wait before each retry")
	f.Int("fetch-workers", d.Fetch.Workers, "entities fetched concurrently")
	f.Int("page-size", d.Fetch.PageSize, "page size for collection requests (max 500)")
	f.StringSlice("collections", nil, "collections to fetch: publications, grants, teaching_activities, professional_activities (default all)")
	f.String("sort", d.Fetch.SortKey, "sort key sent with collection requests")
	f.String("out-dir", d.Output.Dir, "directory for file sinks and the run report")
	f.StringSlice("format", d.Output.Formats, "sinks: csv, jsonl, sqlite, redis")
	f.Bool("sort-by-name", false, "order profiles.csv by last then first name")
	f.String("sqlite-path", "", "database file for the sqlite sink (default <out-dir>/scholars.db)")
	f.String("redis-addr", "", "host:port for the redis sink")
	f.String("redis-stream", d.Output.RedisStream, "stream key for the redis sink")
	f.String("report", "", "run report path (default <out-dir>/run-<command>.yaml)")

	bindFlags(f, map[string]string{
		"directory.base_url":     "base-url",
		"directory.timeout":      "timeout",
		"directory.user_agent":   "user-agent",
		"throttle.min_interval":  "min-interval",
		"throttle.max_retries":   "max-retries",
		"throttle.retry_backoff": "retry-backoff",
		"fetch.workers":          "fetch-workers",
		"fetch.page_size":        "page-size",
		"fetch.collections":      "collections",
		"fetch.sort_key":         "sort",
		"output.dir":             "out-dir",
		"output.formats":         "format",
		"output.sort_by_name":    "sort-by-name",
		"output.sqlite_path":     "sqlite-path",
		"output.redis_addr":      "redis-addr",
		"output.redis_stream":    "redis-stream",
		"output.report_path":     "report",
	})
}

// bindFlags maps config keys to flags so a changed flag beats the
// environment, which beats the config file.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("scholars-harvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "scholars-harvest"))
		}
	}

	viper.SetEnvPrefix("SCHOLARS_HARVEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// Secrets are never flags; make them reachable from the environment.
	_ = viper.BindEnv("directory.token")
	_ = viper.BindEnv("output.redis_password")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig merges defaults, config file, environment, flags, and secret
// files, then validates the result.
func loadConfig() (types.HarvestConfig, error) {
	cfg := types.DefaultHarvestConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("reading configuration: %w", err)
	}
	secrets.Apply(&cfg, loadedSecrets)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
