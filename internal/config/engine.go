package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	TimeFilterFirstLeg = "firstLeg"
	TimeFilterAllLegs  = "allLegs"
)

// Engine holds the tuning knobs of graph build, search and cache.
type Engine struct {
	MaxTransfers      int           `yaml:"maxTransfers" validate:"gte=0,lte=6"`
	LabelsPerStop     int           `yaml:"labelsPerStop" validate:"gte=1,lte=50"`
	DefaultMaxOptions int           `yaml:"defaultMaxOptions" validate:"gte=1,ltefield=MaxOptionsLimit"`
	MaxOptionsLimit   int           `yaml:"maxOptionsLimit" validate:"gte=1,lte=50"`
	TimeFilter        string        `yaml:"timeFilter" validate:"oneof=firstLeg allLegs"`
	AverageSpeedKmh   float64       `yaml:"averageSpeedKmh" validate:"gt=0"`
	SearchTimeout     time.Duration `yaml:"searchTimeout" validate:"gt=0"`
	BuildTimeout      time.Duration `yaml:"buildTimeout" validate:"gt=0"`
	Cache             CacheConfig   `yaml:"cache"`
}

type CacheConfig struct {
	TTL  time.Duration `yaml:"ttl" validate:"gt=0"`
	Size int           `yaml:"size" validate:"gte=1"`
}

// DefaultEngine mirrors what the service runs with when no file is configured.
func DefaultEngine() Engine {
	return Engine{
		MaxTransfers:      3,
		LabelsPerStop:     6,
		DefaultMaxOptions: 3,
		MaxOptionsLimit:   10,
		TimeFilter:        TimeFilterFirstLeg,
		AverageSpeedKmh:   40,
		SearchTimeout:     2 * time.Second,
		BuildTimeout:      30 * time.Second,
		Cache: CacheConfig{
			TTL:  5 * time.Minute,
			Size: 1000,
		},
	}
}

// LoadEngine overlays the YAML file at path on the defaults. Empty path means defaults.
func LoadEngine(path string) (Engine, error) {
	cfg := DefaultEngine()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read engine config: %w", err)
	}
	return ParseEngine(data)
}

func ParseEngine(data []byte) (Engine, error) {
	cfg := DefaultEngine()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse engine config: %w", err)
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return cfg, fmt.Errorf("engine config: %s failed %q", verrs[0].Namespace(), verrs[0].Tag())
		}
		return cfg, err
	}
	return cfg, nil
}
