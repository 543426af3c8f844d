// Package trainer fits a random forest on a labelled table and scores it on a
// held-out split.
package trainer

import (
	"context"
	"fmt"
	"time"

	"audio-classification/dataset"
	"audio-classification/forest"
	"audio-classification/utils"
)

// Config controls the split and the forest.
type Config struct {
	TestSize float64
	Seed     uint64
	Trees    int
}

// DefaultConfig holds out 20% of rows and grows 100 trees, all seeded with 42.
func DefaultConfig() Config {
	return Config{TestSize: 0.2, Seed: 42, Trees: 100}
}

// ConfigFromEnv reads TRAIN_TEST_SIZE, TRAIN_SEED and FOREST_TREES over the
// defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.TestSize = utils.GetEnvFloat("TRAIN_TEST_SIZE", cfg.TestSize)
	cfg.Seed = uint64(utils.GetEnvInt("TRAIN_SEED", int(cfg.Seed)))
	cfg.Trees = utils.GetEnvInt("FOREST_TREES", cfg.Trees)
	return cfg
}

// Result is a fitted model together with its evaluation.
type Result struct {
	Model        *forest.Forest
	Report       *Report
	TrainRows    int
	TestRows     int
	FeatureNames []string
	Duration     time.Duration
}

// Train splits the table, fits the forest on the training part and reports on
// the rest. The model's feature count equals the table's.
func Train(ctx context.Context, table *dataset.Table, cfg Config) (*Result, error) {
	start := time.Now()

	train, test, err := dataset.TrainTestSplit(table, cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, err
	}

	params := forest.DefaultParams()
	params.Seed = cfg.Seed
	if cfg.Trees > 0 {
		params.Trees = cfg.Trees
	}
	model := forest.New(params)
	if err := model.Fit(ctx, train.X, train.Y); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	predicted, err := model.PredictBatch(test.X)
	if err != nil {
		return nil, fmt.Errorf("score held-out rows: %w", err)
	}
	report, err := NewReport(table.Classes(), test.Y, predicted)
	if err != nil {
		return nil, err
	}

	return &Result{
		Model:        model,
		Report:       report,
		TrainRows:    train.Len(),
		TestRows:     test.Len(),
		FeatureNames: append([]string(nil), table.FeatureNames...),
		Duration:     time.Since(start),
	}, nil
}
