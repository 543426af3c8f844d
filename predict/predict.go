// Package predict runs a single feature vector through a trained classifier.
package predict

import (
	"fmt"
	"sort"

	"audio-classification/forest"
)

// ErrDimensionMismatch is forest.ErrDimensionMismatch, re-exported for callers
// that only deal with predictions.
var ErrDimensionMismatch = forest.ErrDimensionMismatch

// Model is what Predict needs from a classifier.
type Model interface {
	NumFeatures() int
	Classes() []string
	PredictProba(x []float64) ([]float64, error)
}

// ClassProbability is one class score.
type ClassProbability struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Prediction is the outcome for one vector. Probabilities are sorted from most
// to least likely.
type Prediction struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities []ClassProbability `json:"probabilities"`
}

// Predict classifies vector. A vector whose length differs from the model's
// feature count is refused, never reshaped.
func Predict(model Model, vector []float64) (Prediction, error) {
	if want := model.NumFeatures(); len(vector) != want {
		return Prediction{}, fmt.Errorf("%w: extracted %d features, model expects %d", ErrDimensionMismatch, len(vector), want)
	}

	proba, err := model.PredictProba(vector)
	if err != nil {
		return Prediction{}, err
	}
	classes := model.Classes()
	if len(proba) != len(classes) {
		return Prediction{}, fmt.Errorf("model returned %d probabilities for %d classes", len(proba), len(classes))
	}

	scores := make([]ClassProbability, len(classes))
	for i, label := range classes {
		scores[i] = ClassProbability{Label: label, Probability: proba[i]}
	}
	// stable so equal scores keep class order
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Probability > scores[j].Probability })

	return Prediction{
		Label:         scores[0].Label,
		Confidence:    scores[0].Probability,
		Probabilities: scores,
	}, nil
}
