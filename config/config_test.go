package config

import (
	"testing"
	"time"

	"audio-classification/features"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "FEATURE_PAD_MODE", "MODEL_DIR", "SESSION_TTL", "TRAIN_TEST_SIZE", "FOREST_TREES"} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "5000" || cfg.ModelDir != "data" || cfg.Artifact != "rf_model.bin" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Features.Pad != features.PadNone || cfg.Features.NFFT != 2048 || cfg.Features.HopLength != 512 {
		t.Fatalf("unexpected feature config %+v", cfg.Features)
	}
	if cfg.Train.Trees != 100 || cfg.Train.Seed != 42 || cfg.Train.TestSize != 0.2 {
		t.Fatalf("unexpected train config %+v", cfg.Train)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Fatalf("unexpected ttl %v", cfg.SessionTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FEATURE_PAD_MODE", "zero")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("MODEL_REGISTRY_URI", "sqlite://tmp/r.db")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Features.Pad != features.PadZero || cfg.SessionTTL != 15*time.Minute || cfg.RegistryURI != "sqlite://tmp/r.db" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"FEATURE_PAD_MODE": "mirror",
		"TRAIN_TEST_SIZE":  "1.5",
		"FOREST_TREES":     "-3",
		"MAX_UPLOAD_MB":    "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
