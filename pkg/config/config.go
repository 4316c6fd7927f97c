package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mopad/mopad/pkg/hub"
	"github.com/mopad/mopad/pkg/log"
	"github.com/mopad/mopad/pkg/service"
)

// Duration wraps time.Duration so YAML can spell it as "168h" or "30m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the full server configuration, loaded from one YAML file.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string `yaml:"listen"`
	// DataDir holds the persisted JSON collections.
	DataDir string `yaml:"data_dir"`
	// StaticDir is served at / for the frontend. Empty disables it.
	StaticDir string `yaml:"static_dir"`
	// TokenTTL is how long minted session tokens stay valid.
	TokenTTL Duration `yaml:"token_ttl"`
	// HubBuffer is the per-connection broadcast buffer; a client that
	// falls this many events behind is disconnected.
	HubBuffer int `yaml:"hub_buffer"`
	Log       Log `yaml:"log"`
}

// Log configures the global logger.
type Log struct {
	Level log.Level `yaml:"level"`
	JSON  bool      `yaml:"json"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:    ":1337",
		DataDir:   "data",
		StaticDir: "",
		TokenTTL:  Duration(service.DefaultTokenTTL),
		HubBuffer: hub.DefaultBuffer,
		Log:       Log{Level: log.InfoLevel},
	}
}

// Load reads the configuration from path, filling omitted fields with
// defaults. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token_ttl must be positive, got %s", time.Duration(c.TokenTTL))
	}
	if c.HubBuffer <= 0 {
		return fmt.Errorf("hub_buffer must be positive, got %d", c.HubBuffer)
	}
	return nil
}
