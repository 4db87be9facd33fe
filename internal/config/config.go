package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models homeline.yml.
type Config struct {
	Pipeline struct {
		// Minimum listing quality score before marketing may run.
		QualityThreshold int `yaml:"quality_threshold"`
		// Offers below this fraction of asking price are rejected without
		// asking the broker.
		AutoRejectRatio float64 `yaml:"auto_reject_ratio"`
		// Lead score at or above which a lead is qualified.
		QualifyScore int `yaml:"qualify_score"`
		// Agent failures tolerated per stage before the engine insists on a
		// human resume.
		RetryLimit int `yaml:"retry_limit"`
	} `yaml:"pipeline"`
	Market struct {
		DefaultAveragePrice float64 `yaml:"default_average_price"`
		Tolerance           float64 `yaml:"tolerance"`
	} `yaml:"market"`
	Marketing struct {
		Channels []string `yaml:"channels"`
	} `yaml:"marketing"`
	Webhooks []Webhook `yaml:"webhooks"`
}

type Webhook struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret,omitempty"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with hl config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Pipeline.QualityThreshold < 0 || c.Pipeline.QualityThreshold > 100 {
		return fmt.Errorf("config.pipeline.quality_threshold must be within 0..100")
	}
	if c.Pipeline.AutoRejectRatio <= 0 || c.Pipeline.AutoRejectRatio >= 1 {
		return fmt.Errorf("config.pipeline.auto_reject_ratio must be within (0,1)")
	}
	if c.Pipeline.QualifyScore < 0 || c.Pipeline.QualifyScore > 100 {
		return fmt.Errorf("config.pipeline.qualify_score must be within 0..100")
	}
	if c.Pipeline.RetryLimit < 1 {
		return fmt.Errorf("config.pipeline.retry_limit must be at least 1")
	}
	if c.Market.Tolerance < 0 || c.Market.Tolerance >= 1 {
		return fmt.Errorf("config.market.tolerance must be within [0,1)")
	}
	if len(c.Marketing.Channels) == 0 {
		return fmt.Errorf("config.marketing.channels is required")
	}
	for i, ch := range c.Marketing.Channels {
		if ch == "" {
			return fmt.Errorf("config.marketing.channels[%d] is empty", i)
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "homeline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `pipeline:
  # Listing quality score (0-100) the validation agent requires before the
  # workflow proceeds to marketing without broker review.
  quality_threshold: 85

  # Offers below this fraction of the asking price are rejected autonomously.
  auto_reject_ratio: 0.75

  # Lead qualification score (0-100) at or above which a lead may advance
  # toward negotiation.
  qualify_score: 70

  # Agent failures tolerated per stage before the engine stops retrying and
  # waits for a human.
  retry_limit: 3

market:
  # Fallback comparables when no market data source covers the city.
  default_average_price: 450000
  tolerance: 0.15

marketing:
  channels: [website, portal, social]

webhooks: []
`
