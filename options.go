package webspace

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/therealsahil19/webspace/internal/config"
	"github.com/therealsahil19/webspace/pkg/sources"
)

// Option is a function that configures a Webspace instance.
type Option func(*settings) error

// settings collects construction-time configuration.
type settings struct {
	configFile       string
	config           *config.Config
	adapters         []sources.Adapter
	metricsRegistry  prometheus.Registerer
	schedulerEnabled bool
	runInterval      time.Duration
}

// WithConfigFile loads configuration from the given YAML file.
func WithConfigFile(path string) Option {
	return func(s *settings) error {
		s.configFile = path
		return nil
	}
}

// WithConfig supplies an already loaded configuration, skipping file and
// environment loading.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) error {
		s.config = cfg
		return nil
	}
}

// WithAdapter registers an extra source adapter. Adapters for the "http"
// and "static" kinds are registered by default.
func WithAdapter(a sources.Adapter) Option {
	return func(s *settings) error {
		s.adapters = append(s.adapters, a)
		return nil
	}
}

// WithMetrics registers pipeline collectors with the given Prometheus
// registerer.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) error {
		s.metricsRegistry = reg
		return nil
	}
}

// WithScheduler enables periodic runs at the configured interval.
func WithScheduler(enabled bool) Option {
	return func(s *settings) error {
		s.schedulerEnabled = enabled
		return nil
	}
}

// WithRunInterval overrides the configured periodic run interval.
func WithRunInterval(interval time.Duration) Option {
	return func(s *settings) error {
		s.runInterval = interval
		return nil
	}
}
