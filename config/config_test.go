package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
	if cfg.Epochs != 10 || cfg.BatchSize != 32 || cfg.ImageSize != 224 {
		t.Errorf("unexpected defaults: epochs=%d batch=%d image=%d",
			cfg.Epochs, cfg.BatchSize, cfg.ImageSize)
	}
	if cfg.LearningRate != 0.001 || cfg.DropoutRate != 0.2 {
		t.Errorf("unexpected defaults: lr=%g dropout=%g", cfg.LearningRate, cfg.DropoutRate)
	}
	if cfg.SchedulerPatience != 2 {
		t.Errorf("expected scheduler patience 2, got %d", cfg.SchedulerPatience)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg != Default() {
		t.Error("empty path should return defaults")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
data_dir: /srv/images
epochs: 5
batch_size: 16
augment_negatives: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.DataDir != "/srv/images" || cfg.Epochs != 5 || cfg.BatchSize != 16 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if !cfg.AugmentNegatives {
		t.Error("augment_negatives override not applied")
	}
	// Untouched fields keep defaults.
	if cfg.LearningRate != 0.001 || cfg.ImageSize != 224 {
		t.Errorf("defaults lost: lr=%g image=%d", cfg.LearningRate, cfg.ImageSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("epochs: [not a number"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(path, []byte("epochs: -1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for negative epochs")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data dir", func(c *Config) { c.DataDir = "" }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative learning rate", func(c *Config) { c.LearningRate = -0.1 }},
		{"dropout of one", func(c *Config) { c.DropoutRate = 1.0 }},
		{"scheduler factor of one", func(c *Config) { c.SchedulerFactor = 1.0 }},
		{"zero image size", func(c *Config) { c.ImageSize = 0 }},
		{"negative prefetch workers", func(c *Config) { c.PrefetchWorkers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
