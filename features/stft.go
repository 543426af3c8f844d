package features

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// magnitudeSpectrogram returns |STFT| as a bins x frames matrix stored row
// major (bins = NFFT/2+1).
func magnitudeSpectrogram(samples []float64, cfg Config) ([][]float64, int) {
	signal := samples
	if cfg.Center {
		pad := cfg.NFFT / 2
		signal = make([]float64, len(samples)+2*pad)
		copy(signal[pad:], samples)
	}

	if len(signal) < cfg.NFFT {
		return nil, 0
	}
	frames := 1 + (len(signal)-cfg.NFFT)/cfg.HopLength
	bins := cfg.NFFT/2 + 1

	spectrum := make([][]float64, bins)
	for k := range spectrum {
		spectrum[k] = make([]float64, frames)
	}

	window := periodicHann(cfg.NFFT)
	fft := fourier.NewFFT(cfg.NFFT)
	buffer := make([]float64, cfg.NFFT)
	coeffs := make([]complex128, bins)

	for t := 0; t < frames; t++ {
		start := t * cfg.HopLength
		for i := range buffer {
			buffer[i] = signal[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, buffer)
		for k := 0; k < bins; k++ {
			spectrum[k][t] = cmplx.Abs(coeffs[k])
		}
	}

	return spectrum, frames
}

// periodicHann is the DFT-even Hann window used for spectral analysis.
func periodicHann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// binFrequencies returns the centre frequency in Hz of each FFT bin.
func binFrequencies(sampleRate, nfft int) []float64 {
	bins := nfft/2 + 1
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = float64(k) * float64(sampleRate) / float64(nfft)
	}
	return freqs
}
