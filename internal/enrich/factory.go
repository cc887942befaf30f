package enrich

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"ossensor/internal/interfaces"
	"ossensor/internal/logging"
)

// Config selects and parameterizes the completion provider. An empty Provider
// or APIKey means rules-only operation.
type Config struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultConfig returns the rules-only configuration.
func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second}
}

// UnmarshalYAML decodes the config, accepting the timeout as a duration
// string ("90s", "2m"). Fields absent from the document keep their current
// values so a partial overlay does not clobber defaults.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
		Timeout  string `yaml:"timeout"`
	}{
		Provider: c.Provider,
		APIKey:   c.APIKey,
		Model:    c.Model,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Provider = raw.Provider
	c.APIKey = raw.APIKey
	c.Model = raw.Model
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("parsing enrich timeout: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// TransportConstructor builds a transport for a named provider.
type TransportConstructor func(cfg Config, logger interfaces.Logger) (interfaces.Transport, error)

var (
	mu       sync.RWMutex
	registry = map[string]TransportConstructor{}
)

// RegisterProvider registers a named transport constructor. Name is
// lower-cased internally; registering the same name again overwrites the
// previous constructor.
func RegisterProvider(name string, ctor TransportConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// ListProviders returns the registered provider names.
func ListProviders() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// NewEnricher constructs the configured enricher. No provider or no API key
// yields the no-op enricher; a named but unregistered provider is an error.
func NewEnricher(cfg Config, logger interfaces.Logger) (interfaces.Enricher, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" || cfg.APIKey == "" {
		return NoopEnricher{}, nil
	}

	mu.RLock()
	ctor, ok := registry[provider]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("enrichment provider %q not registered: available providers=%v", provider, ListProviders())
	}

	transport, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct enrichment provider %q: %w", provider, err)
	}
	if transport == nil {
		return nil, errors.New("enrichment provider constructor returned nil")
	}
	return NewGatedEnricher(transport, logger), nil
}

// RegisterDefaultProviders registers the built-in openai and anthropic
// transports. Call this early in main() to make them available to NewEnricher.
func RegisterDefaultProviders() {
	RegisterProvider("openai", func(cfg Config, logger interfaces.Logger) (interfaces.Transport, error) {
		return NewOpenAITransport(cfg, logger), nil
	})
	RegisterProvider("anthropic", func(cfg Config, logger interfaces.Logger) (interfaces.Transport, error) {
		return NewAnthropicTransport(cfg, logger), nil
	})
}

func componentLogger(logger interfaces.Logger, provider string) logging.Logger {
	if logger == nil {
		logger = logging.NewStdoutLogger("enrich")
	}
	return logger.With(logging.Field{Key: "provider", Value: provider})
}
