// Package features computes polynomial spectral descriptors of audio.
//
// For every STFT frame the magnitude spectrum is approximated by a polynomial
// in frequency; the coefficient matrix (one row per coefficient, one column per
// frame) is then flattened row by row and cut to the feature count the
// classifier was trained with.
package features

import (
	"fmt"
)

// PolyFeatures returns the (Order+1) x frames matrix of polynomial
// coefficients, highest degree first.
func PolyFeatures(samples []float64, sampleRate int, cfg Config) ([][]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples provided", ErrInvalidInput)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidInput, sampleRate)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	spectrum, frames := magnitudeSpectrogram(samples, cfg)
	if frames == 0 {
		return nil, fmt.Errorf("%w: %d samples is shorter than one %d-point frame", ErrInvalidInput, len(samples), cfg.NFFT)
	}

	return fitPolynomial(binFrequencies(sampleRate, cfg.NFFT), spectrum, cfg.Order)
}

// Flatten concatenates the rows of a coefficient matrix.
func Flatten(matrix [][]float64) []float64 {
	total := 0
	for _, row := range matrix {
		total += len(row)
	}
	out := make([]float64, 0, total)
	for _, row := range matrix {
		out = append(out, row...)
	}
	return out
}

// ExtractFeatureVector derives exactly n values from the waveform when the
// audio is long enough. Shorter results are returned as-is under PadNone and
// zero-filled under PadZero.
func ExtractFeatureVector(samples []float64, sampleRate int, n int, cfg Config) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: requested %d features", ErrInvalidInput, n)
	}

	matrix, err := PolyFeatures(samples, sampleRate, cfg)
	if err != nil {
		return nil, err
	}

	flat := Flatten(matrix)
	if len(flat) >= n {
		return flat[:n:n], nil
	}
	if cfg.Pad == PadZero {
		padded := make([]float64, n)
		copy(padded, flat)
		return padded, nil
	}
	return flat, nil
}
