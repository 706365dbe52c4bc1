// Package config loads the engine configuration from TOML files. The
// programmatic API is primary; this loader serves the demo player and
// embedders that prefer file configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	CrossfadeDuration float64 `koanf:"crossfade_duration"` // seconds, 1-30
	FadeCurve         string  `koanf:"fade_curve"`         // linear|easePower|easeIn|easeOut|equalPower
	RepeatMode        string  `koanf:"repeat_mode"`        // off|singleTrack|playlist
	Volume            float64 `koanf:"volume"`
	SessionMode       string  `koanf:"session_mode"` // managed|external

	Overlay       OverlayConfig       `koanf:"overlay"`
	Normalization NormalizationConfig `koanf:"normalization"`
	Cache         CacheConfig         `koanf:"cache"`
	Log           LogConfig           `koanf:"log"`
}

// OverlayConfig holds the looping-layer defaults.
type OverlayConfig struct {
	LoopMode   string  `koanf:"loop_mode"` // once|count|infinite
	LoopCount  int     `koanf:"loop_count"`
	LoopDelay  float64 `koanf:"loop_delay"` // seconds
	Volume     float64 `koanf:"volume"`
	FadeIn     float64 `koanf:"fade_in"`  // seconds
	FadeOut    float64 `koanf:"fade_out"` // seconds
	FadeCurve  string  `koanf:"fade_curve"`
	Normalized bool    `koanf:"normalized"`
}

// NormalizationConfig holds the loudness pipeline settings.
type NormalizationConfig struct {
	Enabled     bool    `koanf:"enabled"`
	TargetLUFS  float64 `koanf:"target_lufs"`
	CeilingDBTP float64 `koanf:"ceiling_dbtp"`
}

// CacheConfig bounds the decoded-buffer cache.
type CacheConfig struct {
	MaxEntries  int     `koanf:"max_entries"`
	LoadTimeout float64 `koanf:"load_timeout"` // seconds
}

// LogConfig configures the engine log.
type LogConfig struct {
	Level string `koanf:"level"`
	Path  string `koanf:"path"`
}

// Load reads config files in priority order (XDG config dir first,
// ./config.toml last wins) and applies defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	for _, path := range configPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func configPaths() []string {
	return []string{
		filepath.Join(xdg.ConfigHome, "drift", "config.toml"),
		"config.toml",
	}
}

func (c *Config) applyDefaults() {
	if c.CrossfadeDuration <= 0 {
		c.CrossfadeDuration = 5
	}
	if c.FadeCurve == "" {
		c.FadeCurve = "equalPower"
	}
	if c.RepeatMode == "" {
		c.RepeatMode = "off"
	}
	if c.Volume <= 0 {
		c.Volume = 1
	}
	if c.SessionMode == "" {
		c.SessionMode = "managed"
	}
	if c.Overlay.LoopMode == "" {
		c.Overlay.LoopMode = "infinite"
	}
	if c.Overlay.Volume <= 0 {
		c.Overlay.Volume = 1
	}
	if c.Normalization.TargetLUFS == 0 {
		c.Normalization.TargetLUFS = -16
	}
	if c.Normalization.CeilingDBTP == 0 {
		c.Normalization.CeilingDBTP = -1
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 16
	}
	if c.Cache.LoadTimeout <= 0 {
		c.Cache.LoadTimeout = 30
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// LoadTimeout returns the cache timeout as a duration.
func (c *Config) LoadTimeout() time.Duration {
	return time.Duration(c.Cache.LoadTimeout * float64(time.Second))
}
