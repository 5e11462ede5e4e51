// CLAUDE:SUMMARY Top-level pepite configuration: YAML structs, defaults, file loading.
// Package pepite assembles the promo intelligence daemon: campaign-driven
// extraction, credential-pooled collaborators, market probing and the
// collision pass, over a single SQLite database.
package pepite

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chineur/pepite/credpool"
	"github.com/chineur/pepite/extractai"
	"github.com/chineur/pepite/market"
	"github.com/chineur/pepite/worker"
)

// Config is the top-level daemon configuration.
type Config struct {
	// DBPath locates the SQLite database file.
	DBPath string `yaml:"db_path"`
	// PollInterval between scheduler sweeps.
	PollInterval time.Duration `yaml:"poll_interval"`
	// CollisionInterval between collision engine passes.
	CollisionInterval time.Duration `yaml:"collision_interval"`
	// MinROIPercent is the certification floor for the collision engine.
	MinROIPercent float64 `yaml:"min_roi_percent"`

	Credentials CredentialsConfig  `yaml:"credentials"`
	RenderProxy worker.ProxyConfig `yaml:"render_proxy"`
	Extraction  extractai.Config   `yaml:"extraction"`
	Market      market.Config      `yaml:"market"`
}

// CredentialsConfig tunes the shared key pool.
type CredentialsConfig struct {
	ErrorThreshold int           `yaml:"error_threshold"`
	Cooldown       time.Duration `yaml:"cooldown"`
}

// PoolConfig converts to the credpool configuration.
func (c *CredentialsConfig) PoolConfig() credpool.Config {
	return credpool.Config{
		ErrorThreshold: c.ErrorThreshold,
		Cooldown:       c.Cooldown,
	}
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "pepite.db"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Minute
	}
	if c.CollisionInterval <= 0 {
		c.CollisionInterval = time.Hour
	}
	if c.MinROIPercent <= 0 {
		c.MinROIPercent = 15
	}
	if c.RenderProxy.Service == "" {
		c.RenderProxy.Service = "scrapingbee"
	}
}
