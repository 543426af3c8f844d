package features

import (
	"errors"
	"math"
	"testing"
)

func tone(freq float64, sampleRate int, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.6*math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) +
			0.2*math.Sin(2*math.Pi*3*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestPolyFeaturesShape(t *testing.T) {
	cfg := DefaultConfig()
	samples := tone(440, 22050, 22050)

	matrix, err := PolyFeatures(samples, 22050, cfg)
	if err != nil {
		t.Fatalf("PolyFeatures: %v", err)
	}
	if len(matrix) != cfg.Order+1 {
		t.Fatalf("expected %d coefficient rows, got %d", cfg.Order+1, len(matrix))
	}
	wantFrames := 1 + len(samples)/cfg.HopLength
	for i, row := range matrix {
		if len(row) != wantFrames {
			t.Fatalf("row %d: expected %d frames, got %d", i, wantFrames, len(row))
		}
	}
}

func TestPolyFeaturesSilenceIsZero(t *testing.T) {
	matrix, err := PolyFeatures(make([]float64, 4096), 8000, DefaultConfig())
	if err != nil {
		t.Fatalf("PolyFeatures: %v", err)
	}
	for _, v := range Flatten(matrix) {
		if v != 0 {
			t.Fatalf("silence should fit a zero polynomial, got %g", v)
		}
	}
}

func TestFitPolynomialRecoversLine(t *testing.T) {
	x := []float64{0, 10, 20, 30, 40}
	values := make([][]float64, len(x))
	for i, xi := range x {
		values[i] = []float64{2*xi + 3, -0.5*xi + 1}
	}

	coeffs, err := fitPolynomial(x, values, 1)
	if err != nil {
		t.Fatalf("fitPolynomial: %v", err)
	}
	want := [][]float64{{2, -0.5}, {3, 1}}
	for i := range want {
		for j := range want[i] {
			if math.Abs(coeffs[i][j]-want[i][j]) > 1e-9 {
				t.Fatalf("coeff[%d][%d] = %g, want %g", i, j, coeffs[i][j], want[i][j])
			}
		}
	}
}

func TestFitPolynomialQuadratic(t *testing.T) {
	x := []float64{-2, -1, 0, 1, 2, 3}
	values := make([][]float64, len(x))
	for i, xi := range x {
		values[i] = []float64{0.5*xi*xi - xi + 4}
	}

	coeffs, err := fitPolynomial(x, values, 2)
	if err != nil {
		t.Fatalf("fitPolynomial: %v", err)
	}
	want := []float64{0.5, -1, 4}
	for i, w := range want {
		if math.Abs(coeffs[i][0]-w) > 1e-9 {
			t.Fatalf("degree %d coefficient = %g, want %g", 2-i, coeffs[i][0], w)
		}
	}
}

func TestExtractFeatureVectorIsDeterministic(t *testing.T) {
	samples := tone(220, 16000, 12000)
	cfg := DefaultConfig()

	first, err := ExtractFeatureVector(samples, 16000, 20, cfg)
	if err != nil {
		t.Fatalf("ExtractFeatureVector: %v", err)
	}
	for run := 0; run < 5; run++ {
		again, err := ExtractFeatureVector(samples, 16000, 20, cfg)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		for i := range first {
			if math.Float64bits(first[i]) != math.Float64bits(again[i]) {
				t.Fatalf("run %d feature %d differs: %v vs %v", run, i, first[i], again[i])
			}
		}
	}
}

func TestExtractFeatureVectorTruncatesRowMajor(t *testing.T) {
	samples := tone(330, 8000, 8000)
	cfg := DefaultConfig()

	matrix, err := PolyFeatures(samples, 8000, cfg)
	if err != nil {
		t.Fatalf("PolyFeatures: %v", err)
	}
	flat := Flatten(matrix)

	vec, err := ExtractFeatureVector(samples, 8000, 5, cfg)
	if err != nil {
		t.Fatalf("ExtractFeatureVector: %v", err)
	}
	if len(vec) != 5 {
		t.Fatalf("expected 5 features, got %d", len(vec))
	}
	for i := range vec {
		if vec[i] != flat[i] {
			t.Fatalf("feature %d = %g, want %g", i, vec[i], flat[i])
		}
	}
	if vec[0] != matrix[0][0] || vec[1] != matrix[0][1] {
		t.Fatal("vector should start with the first coefficient row")
	}
}

func TestExtractFeatureVectorUnderfill(t *testing.T) {
	samples := tone(330, 8000, 1024)
	cfg := DefaultConfig()

	available := len(Flatten(mustPoly(t, samples, 8000, cfg)))
	want := available + 7

	short, err := ExtractFeatureVector(samples, 8000, want, cfg)
	if err != nil {
		t.Fatalf("ExtractFeatureVector: %v", err)
	}
	if len(short) != available {
		t.Fatalf("PadNone should return the %d available values, got %d", available, len(short))
	}

	cfg.Pad = PadZero
	padded, err := ExtractFeatureVector(samples, 8000, want, cfg)
	if err != nil {
		t.Fatalf("ExtractFeatureVector: %v", err)
	}
	if len(padded) != want {
		t.Fatalf("PadZero should return %d values, got %d", want, len(padded))
	}
	for i := available; i < want; i++ {
		if padded[i] != 0 {
			t.Fatalf("padding at %d = %g", i, padded[i])
		}
	}
}

func TestExtractFeatureVectorRejectsBadInput(t *testing.T) {
	cfg := DefaultConfig()
	cases := []struct {
		name    string
		samples []float64
		rate    int
		n       int
		cfg     Config
	}{
		{"empty", nil, 8000, 4, cfg},
		{"zero rate", []float64{1, 2, 3}, 0, 4, cfg},
		{"zero n", []float64{1, 2, 3}, 8000, 0, cfg},
		{"bad hop", []float64{1, 2, 3}, 8000, 4, Config{NFFT: 2048, HopLength: 0, Order: 1, Center: true}},
		{"short uncentred", []float64{1, 2, 3}, 8000, 4, Config{NFFT: 2048, HopLength: 512, Order: 1}},
	}
	for _, tc := range cases {
		if _, err := ExtractFeatureVector(tc.samples, tc.rate, tc.n, tc.cfg); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestParsePadMode(t *testing.T) {
	if mode, err := ParsePadMode(""); err != nil || mode != PadNone {
		t.Fatalf("empty pad mode = %q, %v", mode, err)
	}
	if mode, err := ParsePadMode(" Zero "); err != nil || mode != PadZero {
		t.Fatalf("zero pad mode = %q, %v", mode, err)
	}
	if _, err := ParsePadMode("reflect"); err == nil {
		t.Fatal("expected error for unknown pad mode")
	}
}

func TestPeriodicHann(t *testing.T) {
	w := periodicHann(8)
	if w[0] != 0 {
		t.Fatalf("window should start at zero, got %g", w[0])
	}
	if math.Abs(w[4]-1) > 1e-12 {
		t.Fatalf("window peak should be 1 at n/2, got %g", w[4])
	}
	if math.Abs(w[1]-w[7]) > 1e-12 {
		t.Fatalf("window not symmetric: %g vs %g", w[1], w[7])
	}
}

func mustPoly(t *testing.T, samples []float64, rate int, cfg Config) [][]float64 {
	t.Helper()
	m, err := PolyFeatures(samples, rate, cfg)
	if err != nil {
		t.Fatalf("PolyFeatures: %v", err)
	}
	return m
}
