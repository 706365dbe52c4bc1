package config

import (
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.CrossfadeDuration != 5 {
		t.Errorf("crossfade = %v, want 5", cfg.CrossfadeDuration)
	}
	if cfg.FadeCurve != "equalPower" {
		t.Errorf("curve = %q", cfg.FadeCurve)
	}
	if cfg.Volume != 1 {
		t.Errorf("volume = %v", cfg.Volume)
	}
	if cfg.SessionMode != "managed" {
		t.Errorf("session mode = %q", cfg.SessionMode)
	}
	if cfg.Normalization.TargetLUFS != -16 || cfg.Normalization.CeilingDBTP != -1 {
		t.Errorf("normalization = %+v", cfg.Normalization)
	}
	if cfg.Cache.MaxEntries != 16 {
		t.Errorf("cache entries = %d", cfg.Cache.MaxEntries)
	}
	if cfg.LoadTimeout() != 30*time.Second {
		t.Errorf("load timeout = %v", cfg.LoadTimeout())
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		CrossfadeDuration: 8,
		RepeatMode:        "playlist",
		Volume:            0.5,
	}
	cfg.applyDefaults()
	if cfg.CrossfadeDuration != 8 || cfg.RepeatMode != "playlist" || cfg.Volume != 0.5 {
		t.Errorf("explicit values overridden: %+v", cfg)
	}
}
