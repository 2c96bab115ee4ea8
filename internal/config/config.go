// Package config loads and validates the engine configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LevelConfig is one configured threat level.
type LevelConfig struct {
	ScoreThreshold int    `mapstructure:"scoreThreshold"`
	Action         string `mapstructure:"action"`
}

// ThreatLevels holds the three policy tiers.
type ThreatLevels struct {
	High   LevelConfig `mapstructure:"high"`
	Medium LevelConfig `mapstructure:"medium"`
	Low    LevelConfig `mapstructure:"low"`
}

type Config struct {
	DataDir string `mapstructure:"dataDir"`

	DNS struct {
		Listen   string `mapstructure:"listen"`
		Upstream string `mapstructure:"upstream"`
	} `mapstructure:"dns"`

	Admin struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"admin"`

	Log struct {
		Level string `mapstructure:"level"`
		Path  string `mapstructure:"path"`
	} `mapstructure:"log"`

	InitialTrainingPeriodDays int `mapstructure:"initialTrainingPeriodDays"`
	RetrainingPeriodDays      int `mapstructure:"retrainingPeriodDays"`

	AnalysisIntervalMinutes int `mapstructure:"analysisIntervalMinutes"`
	MinClientQueryCount     int `mapstructure:"minClientQueryCount"`
	MinTrainingSamples      int `mapstructure:"minTrainingSamples"`
	TrainingWindowDays      int `mapstructure:"trainingWindowDays"`
	RetentionDays           int `mapstructure:"retentionDays"`

	ThreatLevels ThreatLevels `mapstructure:"threatLevels"`
}

// Load reads the YAML configuration at path, applies defaults, and
// validates the result. A validation failure is fatal to initialization.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration, used by tests and by hosts
// that embed the engine without a config file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dataDir", "./data")
	v.SetDefault("dns.listen", ":5353")
	v.SetDefault("dns.upstream", "1.1.1.1:53")
	v.SetDefault("admin.listen", ":9153")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("initialTrainingPeriodDays", 7)
	v.SetDefault("retrainingPeriodDays", 7)
	v.SetDefault("analysisIntervalMinutes", 5)
	v.SetDefault("minClientQueryCount", 10)
	v.SetDefault("minTrainingSamples", 100)
	v.SetDefault("trainingWindowDays", 14)
	v.SetDefault("retentionDays", 30)
	v.SetDefault("threatLevels.high.scoreThreshold", 85)
	v.SetDefault("threatLevels.high.action", "block")
	v.SetDefault("threatLevels.medium.scoreThreshold", 70)
	v.SetDefault("threatLevels.medium.action", "detect")
	v.SetDefault("threatLevels.low.scoreThreshold", 55)
	v.SetDefault("threatLevels.low.action", "detect")
}

func (c *Config) Validate() error {
	if c.InitialTrainingPeriodDays <= 0 {
		return fmt.Errorf("initialTrainingPeriodDays must be greater than zero, got %d", c.InitialTrainingPeriodDays)
	}
	if c.RetrainingPeriodDays <= 0 {
		return fmt.Errorf("retrainingPeriodDays must be greater than zero, got %d", c.RetrainingPeriodDays)
	}
	if c.AnalysisIntervalMinutes <= 0 {
		return fmt.Errorf("analysisIntervalMinutes must be greater than zero, got %d", c.AnalysisIntervalMinutes)
	}
	if c.TrainingWindowDays <= 0 {
		return fmt.Errorf("trainingWindowDays must be greater than zero, got %d", c.TrainingWindowDays)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("retentionDays must be greater than zero, got %d", c.RetentionDays)
	}
	if c.MinTrainingSamples <= 0 {
		return fmt.Errorf("minTrainingSamples must be greater than zero, got %d", c.MinTrainingSamples)
	}
	for name, lvl := range map[string]LevelConfig{
		"high":   c.ThreatLevels.High,
		"medium": c.ThreatLevels.Medium,
		"low":    c.ThreatLevels.Low,
	} {
		if lvl.ScoreThreshold < 0 || lvl.ScoreThreshold > 100 {
			return fmt.Errorf("threatLevels.%s.scoreThreshold must be in [0, 100], got %d", name, lvl.ScoreThreshold)
		}
		if lvl.Action != "detect" && lvl.Action != "block" {
			return fmt.Errorf("threatLevels.%s.action must be detect or block, got %q", name, lvl.Action)
		}
	}
	return nil
}
