package wav

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	goaudiowav "github.com/go-audio/wav"
)

// WriteWavFile encodes interleaved samples in [-1, 1] as 16-bit PCM.
func WriteWavFile(path string, samples []float64, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if channels <= 0 {
		return fmt.Errorf("invalid channel count %d", channels)
	}

	file, err := os.Create(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to create wav file: %w", err)
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		clipped := math.Max(-1, math.Min(1, s))
		data[i] = int(math.Round(clipped * 32767))
	}

	enc := goaudiowav.NewEncoder(file, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		file.Close()
		return fmt.Errorf("failed to write pcm data: %w", err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return fmt.Errorf("failed to finalise wav file: %w", err)
	}
	return file.Close()
}
