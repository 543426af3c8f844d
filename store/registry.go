package store

import (
	"context"
	"fmt"
	"strings"

	"audio-classification/models"
)

// DefaultRegistryPath is used when MODEL_REGISTRY_URI is empty.
const DefaultRegistryPath = "data/registry.db"

// Registry indexes saved model versions and prediction runs.
type Registry interface {
	Record(ctx context.Context, info models.ModelInfo) error
	Get(ctx context.Context, version string) (models.ModelInfo, bool, error)
	// List returns the newest versions first.
	List(ctx context.Context, limit int) ([]models.ModelInfo, error)
	RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error
	// Predictions returns the newest runs first.
	Predictions(ctx context.Context, limit int) ([]models.PredictionRecord, error)
	Close() error
}

// OpenRegistry picks the backend from uri: empty or sqlite://path for SQLite,
// mongodb:// or mongodb+srv:// for MongoDB.
func OpenRegistry(ctx context.Context, uri string) (Registry, error) {
	switch {
	case uri == "":
		return NewSQLiteRegistry(DefaultRegistryPath)
	case strings.HasPrefix(uri, "sqlite://"):
		return NewSQLiteRegistry(strings.TrimPrefix(uri, "sqlite://"))
	case strings.HasPrefix(uri, "mongodb://"), strings.HasPrefix(uri, "mongodb+srv://"):
		return NewMongoRegistry(ctx, uri, "")
	default:
		return nil, fmt.Errorf("unsupported registry uri %q", uri)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}
