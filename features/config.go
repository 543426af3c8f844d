package features

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is returned for empty audio or nonsensical parameters.
var ErrInvalidInput = errors.New("invalid feature extraction input")

// PadMode decides what happens when the audio yields fewer values than requested.
type PadMode string

const (
	// PadNone returns the shorter vector; the caller's length check refuses it.
	PadNone PadMode = "none"
	// PadZero fills the missing tail with zeros.
	PadZero PadMode = "zero"
)

// ParsePadMode maps a configuration string onto a PadMode.
func ParsePadMode(value string) (PadMode, error) {
	switch PadMode(strings.ToLower(strings.TrimSpace(value))) {
	case "", PadNone:
		return PadNone, nil
	case PadZero:
		return PadZero, nil
	default:
		return PadNone, fmt.Errorf("unknown pad mode %q (want none or zero)", value)
	}
}

// Config holds the STFT and polynomial fit parameters.
type Config struct {
	NFFT      int  // FFT size and analysis window length
	HopLength int  // samples between successive frames
	Order     int  // polynomial order fitted to each frame
	Center    bool // pad NFFT/2 zeros on both sides so frames are centred
	Pad       PadMode
}

// DefaultConfig mirrors the usual spectral defaults: 2048-point frames, hop of
// 512, first order fit, centred frames.
func DefaultConfig() Config {
	return Config{
		NFFT:      2048,
		HopLength: 512,
		Order:     1,
		Center:    true,
		Pad:       PadNone,
	}
}

func (c Config) validate() error {
	if c.NFFT < 2 {
		return fmt.Errorf("%w: fft size %d", ErrInvalidInput, c.NFFT)
	}
	if c.HopLength <= 0 {
		return fmt.Errorf("%w: hop length %d", ErrInvalidInput, c.HopLength)
	}
	if c.Order < 0 {
		return fmt.Errorf("%w: polynomial order %d", ErrInvalidInput, c.Order)
	}
	if c.Order+1 > c.NFFT/2+1 {
		return fmt.Errorf("%w: order %d needs more than %d frequency bins", ErrInvalidInput, c.Order, c.NFFT/2+1)
	}
	switch c.Pad {
	case "", PadNone, PadZero:
	default:
		return fmt.Errorf("%w: pad mode %q", ErrInvalidInput, c.Pad)
	}
	return nil
}
