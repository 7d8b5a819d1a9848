// Package config loads training pipeline settings from a YAML file,
// falling back to defaults for anything unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the training pipeline.
type Config struct {
	// Paths
	DataDir        string `yaml:"data_dir"`
	OutputDir      string `yaml:"output_dir"`
	CheckpointPath string `yaml:"checkpoint_path"`

	// Reproducibility
	Seed int64 `yaml:"seed"`

	// Training
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float64 `yaml:"learning_rate"`
	WeightDecay  float64 `yaml:"weight_decay"`
	DropoutRate  float64 `yaml:"dropout_rate"`

	// Learning rate schedule
	SchedulerFactor   float64 `yaml:"scheduler_factor"`
	SchedulerPatience int     `yaml:"scheduler_patience"`

	// Data
	ImageSize        int  `yaml:"image_size"`
	AugmentNegatives bool `yaml:"augment_negatives"`
	CacheSize        int  `yaml:"cache_size"`
	PrefetchWorkers  int  `yaml:"prefetch_workers"`

	// Logging
	ProgressInterval int `yaml:"progress_interval"`
}

// Default returns the standard training configuration.
func Default() Config {
	return Config{
		DataDir:           "data",
		OutputDir:         "output",
		CheckpointPath:    "output/model.json",
		Seed:              42,
		Epochs:            10,
		BatchSize:         32,
		LearningRate:      0.001,
		WeightDecay:       0.01,
		DropoutRate:       0.2,
		SchedulerFactor:   0.1,
		SchedulerPatience: 2,
		ImageSize:         224,
		CacheSize:         256,
		ProgressInterval:  10,
	}
}

// Load reads a YAML config file over the defaults. A missing path
// argument returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(payload, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field for a usable value.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	if c.CheckpointPath == "" {
		return fmt.Errorf("checkpoint_path cannot be empty")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	}
	if c.WeightDecay < 0 {
		return fmt.Errorf("weight_decay cannot be negative, got %g", c.WeightDecay)
	}
	if c.DropoutRate < 0 || c.DropoutRate >= 1 {
		return fmt.Errorf("dropout_rate must be in [0, 1), got %g", c.DropoutRate)
	}
	if c.SchedulerFactor <= 0 || c.SchedulerFactor >= 1 {
		return fmt.Errorf("scheduler_factor must be in (0, 1), got %g", c.SchedulerFactor)
	}
	if c.SchedulerPatience <= 0 {
		return fmt.Errorf("scheduler_patience must be positive, got %d", c.SchedulerPatience)
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive, got %d", c.ImageSize)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size cannot be negative, got %d", c.CacheSize)
	}
	if c.PrefetchWorkers < 0 {
		return fmt.Errorf("prefetch_workers cannot be negative, got %d", c.PrefetchWorkers)
	}
	return nil
}
