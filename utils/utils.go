package utils

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of key, or fallback when it is unset or blank.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

// GetEnvInt parses key as an integer, returning fallback when unset or malformed.
func GetEnvInt(key string, fallback int) int {
	val := GetEnv(key, "")
	if val == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(val); err == nil {
		return parsed
	}
	return fallback
}

// GetEnvFloat parses key as a float, returning fallback when unset or malformed.
func GetEnvFloat(key string, fallback float64) float64 {
	val := GetEnv(key, "")
	if val == "" {
		return fallback
	}
	if parsed, err := strconv.ParseFloat(val, 64); err == nil {
		return parsed
	}
	return fallback
}

// GetEnvDuration parses key with time.ParseDuration.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	val := GetEnv(key, "")
	if val == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(val); err == nil {
		return parsed
	}
	return fallback
}

// CreateFolder creates folderPath and any missing parents.
func CreateFolder(folderPath string) error {
	return os.MkdirAll(folderPath, 0o755)
}

