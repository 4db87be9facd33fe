package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Pipeline.QualityThreshold != 85 || cfg.Pipeline.AutoRejectRatio != 0.75 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.QualifyScore != 70 || cfg.Pipeline.RetryLimit != 3 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	if len(cfg.Marketing.Channels) != 3 {
		t.Fatalf("expected three default channels, got %v", cfg.Marketing.Channels)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold out of range", func(c *Config) { c.Pipeline.QualityThreshold = 120 }},
		{"ratio at one", func(c *Config) { c.Pipeline.AutoRejectRatio = 1 }},
		{"ratio at zero", func(c *Config) { c.Pipeline.AutoRejectRatio = 0 }},
		{"qualify score negative", func(c *Config) { c.Pipeline.QualifyScore = -1 }},
		{"retry limit zero", func(c *Config) { c.Pipeline.RetryLimit = 0 }},
		{"no channels", func(c *Config) { c.Marketing.Channels = nil }},
		{"empty channel", func(c *Config) { c.Marketing.Channels = []string{"website", ""} }},
		{"webhook without url", func(c *Config) { c.Webhooks = []Webhook{{Events: []string{"workflow.suspended"}}} }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("default template must parse: %v", err)
	}
	if cfg.Market.DefaultAveragePrice != 450000 {
		t.Fatalf("unexpected market default: %v", cfg.Market.DefaultAveragePrice)
	}
	if _, err := FromYAML([]byte("pipeline: [broken")); err == nil {
		t.Fatalf("invalid yaml must error")
	}
	if _, err := FromYAML([]byte("pipeline:\n  retry_limit: 0\n")); err == nil {
		t.Fatalf("invalid values must fail validation")
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg != nil {
		t.Fatalf("missing file must yield nil, nil; got %v, %v", cfg, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "homeline.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("existing file must load: %v", err)
	}
	if cfg.Pipeline.QualityThreshold != 85 {
		t.Fatalf("unexpected loaded config: %+v", cfg.Pipeline)
	}
}
