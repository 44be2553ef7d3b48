// Package config loads pipeline configuration from defaults, an optional
// YAML config file, environment variables, and a .env file.
package config

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/therealsahil19/webspace/pkg/errors"
	"github.com/therealsahil19/webspace/pkg/logging"
	"github.com/therealsahil19/webspace/pkg/sources"
)

// Config is the assembled runtime configuration.
type Config struct {
	DatabasePath string `mapstructure:"database_path"`
	SourcesFile  string `mapstructure:"sources_file"`

	// Deduplication.
	DedupWindow         time.Duration `mapstructure:"dedup_window"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`

	// Reconciliation.
	MassTolerance float64       `mapstructure:"mass_tolerance"`
	DateTolerance time.Duration `mapstructure:"date_tolerance"`

	// Run coordination.
	LeaseName    string        `mapstructure:"lease_name"`
	LeaseTTL     time.Duration `mapstructure:"lease_ttl"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	RunTimeout   time.Duration `mapstructure:"run_timeout"`
	MaxParallel  int           `mapstructure:"max_parallel"`

	// Retry policy.
	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	RetryMultiplier  float64       `mapstructure:"retry_multiplier"`
	RetryJitter      float64       `mapstructure:"retry_jitter"`

	// Periodic runs. Zero disables the scheduler.
	RunInterval time.Duration `mapstructure:"run_interval"`

	Sources []sources.Config `mapstructure:"-"`
}

// setDefaults seeds viper with the pipeline defaults.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database_path", "webspace.db")
	v.SetDefault("sources_file", "")
	v.SetDefault("dedup_window", 24*time.Hour)
	v.SetDefault("similarity_threshold", 0.7)
	v.SetDefault("mass_tolerance", 0.01)
	v.SetDefault("date_tolerance", 5*time.Minute)
	v.SetDefault("lease_name", "pipeline_run")
	v.SetDefault("lease_ttl", 10*time.Minute)
	v.SetDefault("fetch_timeout", 60*time.Second)
	v.SetDefault("run_timeout", 30*time.Minute)
	v.SetDefault("max_parallel", 4)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay", time.Minute)
	v.SetDefault("retry_multiplier", 2.0)
	v.SetDefault("retry_jitter", 0.2)
	v.SetDefault("run_interval", time.Duration(0))
}

// Load assembles configuration. Precedence, lowest to highest: defaults,
// the config file at path (optional), WEBSPACE_* environment variables.
// A .env file in the working directory is loaded into the environment first.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case.
	if err := godotenv.Load(); err == nil {
		logging.Debug().Msg("Loaded .env file")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("WEBSPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("config", "read config file "+path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.NewConfigError("config", "parse configuration", err)
	}

	if cfg.SourcesFile != "" {
		srcs, err := LoadSources(cfg.SourcesFile)
		if err != nil {
			return nil, err
		}
		cfg.Sources = srcs
	}

	return cfg, nil
}

// sourcesDocument is the on-disk shape of the sources file.
type sourcesDocument struct {
	Sources []sources.Config `yaml:"sources"`
}

// LoadSources reads the YAML sources file: the per-source name, URL,
// adapter, priority, and quality score.
func LoadSources(path string) ([]sources.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("sources", "read sources file "+path, err)
	}
	var doc sourcesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewConfigError("sources", "parse sources file "+path, err)
	}
	for i, src := range doc.Sources {
		if src.Name == "" {
			return nil, errors.NewConfigError("sources", "source entry missing name", nil)
		}
		if src.Quality < 0 || src.Quality > 1 {
			return nil, errors.NewConfigError("sources", "quality score out of range for "+doc.Sources[i].Name, nil)
		}
	}
	return doc.Sources, nil
}

// Ranking returns the source names ordered by priority, highest first, for
// the reconciler.
func (c *Config) Ranking() []string {
	ordered := make([]sources.Config, len(c.Sources))
	copy(ordered, c.Sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	names := make([]string, len(ordered))
	for i, src := range ordered {
		names[i] = src.Name
	}
	return names
}
