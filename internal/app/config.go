package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ossensor/internal/enrich"
	"ossensor/internal/scoring"
	"ossensor/internal/store"
)

// Config composes the per-package configuration. The server holds a pointer
// to this struct rather than the other way around, so app stays free of a
// dependency on the HTTP layer.
type Config struct {
	// ListenAddr is the HTTP listen address for the API server (the CLI
	// uses the orchestrator in-process and does not require the network).
	ListenAddr string `yaml:"listen_addr"`

	// Store configuration.
	Store store.Config `yaml:"store"`

	// Enrichment configuration. An empty provider keeps the pipeline
	// rules-only.
	Enrich enrich.Config `yaml:"enrich"`

	// Weights overrides individual scoring weights by kind. Unset kinds
	// keep their defaults.
	Weights map[string]float64 `yaml:"weights"`

	// JobRetentionTime is how long finished jobs stay listable.
	JobRetentionTime time.Duration `yaml:"job_retention_time"`
}

// UnmarshalYAML decodes the config, accepting the retention time as a
// duration string ("30m", "1h"). Fields absent from the document keep their
// current values so the file is an overlay, not a replacement.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		ListenAddr       string             `yaml:"listen_addr"`
		Store            store.Config       `yaml:"store"`
		Enrich           enrich.Config      `yaml:"enrich"`
		Weights          map[string]float64 `yaml:"weights"`
		JobRetentionTime string             `yaml:"job_retention_time"`
	}{
		ListenAddr: c.ListenAddr,
		Store:      c.Store,
		Enrich:     c.Enrich,
		Weights:    c.Weights,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.ListenAddr = raw.ListenAddr
	c.Store = raw.Store
	c.Enrich = raw.Enrich
	c.Weights = raw.Weights
	if raw.JobRetentionTime != "" {
		d, err := time.ParseDuration(raw.JobRetentionTime)
		if err != nil {
			return fmt.Errorf("parsing job retention time: %w", err)
		}
		c.JobRetentionTime = d
	}
	return nil
}

// DefaultConfig returns a Config populated with sensible development defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		Store:            store.DefaultConfig(),
		Enrich:           enrich.DefaultConfig(),
		JobRetentionTime: time.Hour,
	}
}

// LoadConfig overlays a YAML file onto the defaults. An empty path returns
// the defaults untouched. The enrichment API key is never read from the
// file alone: when absent it is resolved from the provider's conventional
// environment variable so credentials stay out of config files.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	resolveEnrichAPIKey(cfg)
	return cfg, nil
}

func resolveEnrichAPIKey(cfg *Config) {
	if cfg.Enrich.APIKey != "" {
		return
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Enrich.Provider)) {
	case "openai":
		cfg.Enrich.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		cfg.Enrich.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// effectiveWeights merges the config overrides onto the default weights.
func effectiveWeights(cfg *Config) scoring.Weights {
	w := scoring.DefaultWeights()
	for k, v := range cfg.Weights {
		w[k] = v
	}
	return w
}
