package shell

import (
	"errors"
	"fmt"

	"audio-classification/dataset"
	"audio-classification/features"
	"audio-classification/forest"
	"audio-classification/store"
	"audio-classification/wav"
)

var errNoModel = errors.New("no trained model: upload a training table first")

const dimensionMismatchText = "Number of features extracted does not match the model. " +
	"Please upload a file with the correct number of features."

func classify(err error) Kind {
	switch {
	case errors.Is(err, wav.ErrDecode), errors.Is(err, features.ErrInvalidInput):
		return KindDecode
	case errors.Is(err, dataset.ErrFormat):
		return KindFormat
	case errors.Is(err, forest.ErrDimensionMismatch):
		return KindDimension
	case errors.Is(err, store.ErrStorage):
		return KindStorage
	case errors.Is(err, errNoModel):
		return KindState
	default:
		return KindInternal
	}
}

// describe turns err into the text shown to the user for the given phase.
func describe(phase string, kind Kind, err error) string {
	switch kind {
	case KindDimension:
		return dimensionMismatchText
	case KindState:
		return err.Error()
	default:
		return fmt.Sprintf("An error occurred during %s: %v", phase, err)
	}
}
