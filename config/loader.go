package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves a knob unset.
const (
	DefaultSOAPGroupSize = 30
	DefaultJSONGroupSize = 120

	defaultPreviewInterval    = "PT30M"
	defaultCacheTTLSeconds    = 30
	defaultSnapshotTTLSeconds = 30
	defaultTripInfoTTLMinutes = 30
	defaultTimeoutMS          = 15000
)

// Load reads and validates the application configuration from path, falling
// back to config.yml in the working directory when path is empty.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		path = "config.yml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validating config: %w", err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	sm := &cfg.StopMonitoring
	if sm.Variant == "" {
		sm.Variant = "soap"
	}
	if sm.GroupSize == 0 {
		if sm.Variant == "json" {
			sm.GroupSize = DefaultJSONGroupSize
		} else {
			sm.GroupSize = DefaultSOAPGroupSize
		}
	}
	if sm.PreviewInterval == "" {
		sm.PreviewInterval = defaultPreviewInterval
	}
	if sm.CacheTTLSeconds == 0 {
		sm.CacheTTLSeconds = defaultCacheTTLSeconds
	}
	if sm.TimeoutMS == 0 {
		sm.TimeoutMS = defaultTimeoutMS
	}

	df := &cfg.DeltaFeed
	if df.SnapshotTTLSeconds == 0 {
		df.SnapshotTTLSeconds = defaultSnapshotTTLSeconds
	}
	if df.TripInfoTTLMinutes == 0 {
		df.TripInfoTTLMinutes = defaultTripInfoTTLMinutes
	}
	if df.TimeoutMS == 0 {
		df.TimeoutMS = defaultTimeoutMS
	}
}
