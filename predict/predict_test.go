package predict

import (
	"context"
	"errors"
	"testing"

	"audio-classification/forest"
)

type fixedModel struct {
	classes []string
	proba   []float64
	n       int
	calls   int
}

func (m *fixedModel) NumFeatures() int  { return m.n }
func (m *fixedModel) Classes() []string { return m.classes }
func (m *fixedModel) PredictProba(x []float64) ([]float64, error) {
	m.calls++
	return m.proba, nil
}

func TestPredictPicksMostLikely(t *testing.T) {
	m := &fixedModel{classes: []string{"bird", "drone", "wind"}, proba: []float64{0.2, 0.7, 0.1}, n: 3}
	p, err := Predict(m, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Label != "drone" || p.Confidence != 0.7 {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if p.Probabilities[1].Label != "bird" || p.Probabilities[2].Label != "wind" {
		t.Fatalf("probabilities not sorted: %+v", p.Probabilities)
	}
}

func TestPredictTieKeepsClassOrder(t *testing.T) {
	m := &fixedModel{classes: []string{"a", "b"}, proba: []float64{0.5, 0.5}, n: 1}
	p, err := Predict(m, []float64{0})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Label != "a" {
		t.Fatalf("expected a, got %s", p.Label)
	}
}

func TestPredictRefusesWrongLength(t *testing.T) {
	m := &fixedModel{classes: []string{"a"}, proba: []float64{1}, n: 4}
	for _, v := range [][]float64{{1, 2, 3}, {1, 2, 3, 4, 5}} {
		if _, err := Predict(m, v); !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("len %d: expected ErrDimensionMismatch, got %v", len(v), err)
		}
	}
	if m.calls != 0 {
		t.Fatalf("model was queried %d times for refused vectors", m.calls)
	}
}

func TestPredictWithForest(t *testing.T) {
	X := [][]float64{{0, 0}, {0, 1}, {5, 5}, {5, 6}}
	y := []string{"quiet", "quiet", "loud", "loud"}
	params := forest.DefaultParams()
	params.Trees = 5
	params.Bootstrap = false
	f := forest.New(params)
	if err := f.Fit(context.Background(), X, y); err != nil {
		t.Fatalf("fit: %v", err)
	}
	p, err := Predict(f, []float64{5, 5.5})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if p.Label != "loud" || p.Confidence != 1 {
		t.Fatalf("unexpected prediction %+v", p)
	}
	if _, err := Predict(f, []float64{5}); !errors.Is(err, forest.ErrDimensionMismatch) {
		t.Fatalf("expected forest.ErrDimensionMismatch, got %v", err)
	}
}
