// Package config gathers the service settings from the environment.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"audio-classification/features"
	"audio-classification/trainer"
	"audio-classification/utils"
)

// Config is everything the shell server needs.
type Config struct {
	Port        string
	Proto       string
	CertFile    string
	CertKey     string
	TempDir     string
	ModelDir    string
	Artifact    string
	RegistryURI string
	SessionTTL  time.Duration
	MaxUploadMB int64

	Features features.Config
	Train    trainer.Config
}

// Load reads the environment. godotenv.Load should already have run.
func Load() (Config, error) {
	pad, err := features.ParsePadMode(utils.GetEnv("FEATURE_PAD_MODE", string(features.PadNone)))
	if err != nil {
		return Config{}, fmt.Errorf("FEATURE_PAD_MODE: %w", err)
	}

	feat := features.DefaultConfig()
	feat.NFFT = utils.GetEnvInt("FEATURE_NFFT", feat.NFFT)
	feat.HopLength = utils.GetEnvInt("FEATURE_HOP_LENGTH", feat.HopLength)
	feat.Order = utils.GetEnvInt("FEATURE_ORDER", feat.Order)
	feat.Pad = pad

	cfg := Config{
		Port:        utils.GetEnv("PORT", "5000"),
		Proto:       utils.GetEnv("PROTO", "http"),
		CertFile:    utils.GetEnv("CERT_FILE", ""),
		CertKey:     utils.GetEnv("CERT_KEY", ""),
		TempDir:     utils.GetEnv("TEMP_DIR", filepath.Join("tmp", "uploads")),
		ModelDir:    utils.GetEnv("MODEL_DIR", "data"),
		Artifact:    utils.GetEnv("MODEL_ARTIFACT", "rf_model.bin"),
		RegistryURI: utils.GetEnv("MODEL_REGISTRY_URI", ""),
		SessionTTL:  utils.GetEnvDuration("SESSION_TTL", 2*time.Hour),
		MaxUploadMB: int64(utils.GetEnvInt("MAX_UPLOAD_MB", 64)),
		Features:    feat,
		Train:       trainer.ConfigFromEnv(),
	}

	if cfg.Train.TestSize <= 0 || cfg.Train.TestSize >= 1 {
		return Config{}, fmt.Errorf("TRAIN_TEST_SIZE must be in (0, 1), got %g", cfg.Train.TestSize)
	}
	if cfg.Train.Trees <= 0 {
		return Config{}, fmt.Errorf("FOREST_TREES must be positive, got %d", cfg.Train.Trees)
	}
	if cfg.MaxUploadMB <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}
	return cfg, nil
}
