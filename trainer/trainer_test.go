package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"audio-classification/dataset"
	"audio-classification/forest"
)

func syntheticTable(rows, features int) *dataset.Table {
	rng := rand.New(rand.NewPCG(5, 5))
	t := &dataset.Table{IDColumn: "File Names", LabelColumn: "Label"}
	for f := 0; f < features; f++ {
		t.FeatureNames = append(t.FeatureNames, fmt.Sprintf("f%d", f))
	}
	for i := 0; i < rows; i++ {
		label, offset := "drone", 2.0
		if i%2 == 1 {
			label, offset = "background", -2.0
		}
		x := make([]float64, features)
		for f := range x {
			x[f] = offset + rng.NormFloat64()*0.5
		}
		t.IDs = append(t.IDs, fmt.Sprintf("clip_%03d.wav", i))
		t.X = append(t.X, x)
		t.Y = append(t.Y, label)
	}
	return t
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Trees = 10
	return cfg
}

func TestTrainProducesModelWithTableWidth(t *testing.T) {
	table := syntheticTable(50, 7)
	res, err := Train(context.Background(), table, fastConfig())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if res.Model.NumFeatures() != 7 {
		t.Fatalf("expected model with 7 features, got %d", res.Model.NumFeatures())
	}
	if res.TrainRows != 40 || res.TestRows != 10 {
		t.Fatalf("expected 40/10 split, got %d/%d", res.TrainRows, res.TestRows)
	}
	if len(res.Report.Classes) != 2 {
		t.Fatalf("expected 2 report rows, got %d", len(res.Report.Classes))
	}
	if res.Report.Accuracy < 0.9 {
		t.Errorf("separable data scored only %.2f", res.Report.Accuracy)
	}
	if _, err := res.Model.Predict(make([]float64, 6)); !errors.Is(err, forest.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestTrainIsReproducible(t *testing.T) {
	table := syntheticTable(30, 4)
	a, err := Train(context.Background(), table, fastConfig())
	if err != nil {
		t.Fatalf("train a: %v", err)
	}
	b, err := Train(context.Background(), table, fastConfig())
	if err != nil {
		t.Fatalf("train b: %v", err)
	}
	if a.Report.String() != b.Report.String() {
		t.Fatalf("reports differ:\n%s\nvs\n%s", a.Report, b.Report)
	}
}

func TestTrainRejectsTinyTable(t *testing.T) {
	table := syntheticTable(1, 3)
	if _, err := Train(context.Background(), table, fastConfig()); !errors.Is(err, dataset.ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestNewReportMetrics(t *testing.T) {
	actual := []string{"a", "a", "a", "b", "b"}
	predicted := []string{"a", "a", "b", "b", "a"}
	r, err := NewReport([]string{"a", "b", "c"}, actual, predicted)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	if math.Abs(r.Accuracy-0.6) > 1e-9 {
		t.Errorf("accuracy %.3f, want 0.6", r.Accuracy)
	}
	a := r.Classes[0]
	if math.Abs(a.Precision-2.0/3) > 1e-9 || math.Abs(a.Recall-2.0/3) > 1e-9 || a.Support != 3 {
		t.Errorf("class a metrics wrong: %+v", a)
	}
	c := r.Classes[2]
	if c.Support != 0 || c.Precision != 0 || c.Recall != 0 || c.F1 != 0 {
		t.Errorf("absent class should score zero: %+v", c)
	}
	if r.Confusion["b"]["a"] != 1 || r.Confusion["a"]["a"] != 2 {
		t.Errorf("unexpected confusion %v", r.Confusion)
	}
	if r.WeightedAvg.Support != 5 {
		t.Errorf("weighted support %d", r.WeightedAvg.Support)
	}

	text := r.String()
	for _, want := range []string{"precision", "recall", "f1-score", "support", "accuracy", "macro avg", "weighted avg"} {
		if !strings.Contains(text, want) {
			t.Errorf("report text missing %q:\n%s", want, text)
		}
	}
}

func TestNewReportLengthMismatch(t *testing.T) {
	if _, err := NewReport(nil, []string{"a"}, nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TRAIN_TEST_SIZE", "0.25")
	t.Setenv("TRAIN_SEED", "7")
	t.Setenv("FOREST_TREES", "12")
	cfg := ConfigFromEnv()
	if cfg.TestSize != 0.25 || cfg.Seed != 7 || cfg.Trees != 12 {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
