// Package wav turns uploaded audio containers into mono PCM samples.
//
// WAV files are decoded with go-audio/wav and MP3 files with go-mp3. Every
// channel is averaged into a single mono track. Integer PCM is scaled into
// [-1, 1] and IEEE float WAV is taken as is, so downstream feature extraction
// sees the same signal whatever the container, bit depth or channel layout of
// the upload was.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/riff"
	goaudiowav "github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// ErrDecode is returned when audio cannot be parsed.
var ErrDecode = errors.New("audio decode error")

// Format identifies an audio container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
)

// Audio is a decoded mono waveform.
type Audio struct {
	Samples    []float64
	SampleRate int
	Channels   int // channel count of the source before down-mixing
	Duration   float64
	Format     Format
}

// DecodeFile opens path and decodes it, sniffing the container from its
// leading bytes and falling back to the file extension.
func DecodeFile(path string) (*Audio, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrDecode, filepath.Base(path), err)
	}
	defer file.Close()

	return Decode(filepath.Base(path), file)
}

// Decode reads a WAV or MP3 stream. name is only used for extension based
// detection and error messages.
func Decode(name string, r io.ReadSeeker) (*Audio, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %s is empty or unreadable: %v", ErrDecode, name, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: failed to rewind %s: %v", ErrDecode, name, err)
	}

	var audio *Audio
	switch DetectFormat(name, header[:n]) {
	case FormatWAV:
		audio, err = decodeWAV(r)
	case FormatMP3:
		audio, err = decodeMP3(r)
	default:
		return nil, fmt.Errorf("%w: %s is neither WAV nor MP3", ErrDecode, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	if len(audio.Samples) == 0 {
		return nil, fmt.Errorf("%w: %s contains no samples", ErrDecode, name)
	}
	if audio.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %s has invalid sample rate %d", ErrDecode, name, audio.SampleRate)
	}

	audio.Duration = float64(len(audio.Samples)) / float64(audio.SampleRate)
	return audio, nil
}

// DetectFormat inspects magic bytes first and the extension second.
func DetectFormat(name string, header []byte) Format {
	switch {
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return FormatWAV
	case len(header) >= 3 && bytes.Equal(header[0:3], []byte("ID3")):
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	}
	return FormatUnknown
}

// Format tags of the WAVE fmt chunk.
const (
	wavFormatPCM        = 0x0001
	wavFormatFloat      = 0x0003
	wavFormatExtensible = 0xFFFE
)

func decodeWAV(r io.ReadSeeker) (*Audio, error) {
	encoding, err := wavEncoding(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind: %w", err)
	}

	dec := goaudiowav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav header")
	}
	channels := int(dec.NumChans)
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	var samples []float64
	switch encoding {
	case wavFormatPCM:
		samples, err = readIntegerPCM(dec, channels)
	case wavFormatFloat:
		samples, err = readFloatPCM(dec, channels)
	default:
		return nil, fmt.Errorf("unsupported wav encoding %d (integer PCM and IEEE float are supported)", encoding)
	}
	if err != nil {
		return nil, err
	}

	return &Audio{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   channels,
		Format:     FormatWAV,
	}, nil
}

// wavEncoding reads the fmt chunk and returns its format tag. Extensible
// files report the tag carried in the first two bytes of their sub-format GUID.
func wavEncoding(r io.Reader) (uint16, error) {
	parser := riff.New(r)
	if err := parser.ParseHeaders(); err != nil {
		return 0, fmt.Errorf("invalid riff header: %w", err)
	}
	if parser.Format != riff.WavFormatID {
		return 0, fmt.Errorf("riff form %q is not WAVE", parser.Format[:])
	}

	for {
		chunk, err := parser.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("fmt chunk not found: %w", err)
		}
		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}
		if chunk.Size < 16 {
			return 0, fmt.Errorf("fmt chunk too short (%d bytes)", chunk.Size)
		}

		body := make([]byte, chunk.Size)
		if _, err := io.ReadFull(chunk, body); err != nil {
			return 0, fmt.Errorf("failed to read fmt chunk: %w", err)
		}
		tag := binary.LittleEndian.Uint16(body[0:2])
		if tag == wavFormatExtensible {
			// cbSize(2) validBits(2) channelMask(4) precede the GUID.
			if len(body) < 26 {
				return 0, errors.New("extensible fmt chunk has no sub-format")
			}
			tag = binary.LittleEndian.Uint16(body[24:26])
		}
		return tag, nil
	}
}

func readIntegerPCM(dec *goaudiowav.Decoder, channels int) ([]float64, error) {
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read pcm data: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, errors.New("wav has no pcm data")
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale, offset, err := pcmScale(bitDepth)
	if err != nil {
		return nil, err
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += (float64(buf.Data[i*channels+ch]) - offset) / scale
		}
		samples[i] = sum / float64(channels)
	}
	return samples, nil
}

// readFloatPCM down-mixes little-endian IEEE float samples, 32 or 64 bit.
func readFloatPCM(dec *goaudiowav.Decoder, channels int) ([]float64, error) {
	width := int(dec.BitDepth) / 8
	if dec.BitDepth != 32 && dec.BitDepth != 64 {
		return nil, fmt.Errorf("unsupported float bit depth %d", dec.BitDepth)
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate pcm data: %w", err)
	}
	if dec.PCMChunk == nil {
		return nil, errors.New("wav has no pcm data")
	}

	data, err := io.ReadAll(io.LimitReader(dec.PCMChunk, int64(dec.PCMChunk.Size)))
	if err != nil {
		return nil, fmt.Errorf("failed to read pcm data: %w", err)
	}

	frameBytes := width * channels
	frames := len(data) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * width
			if width == 4 {
				sum += float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
			} else {
				sum += math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			}
		}
		samples[i] = sum / float64(channels)
	}
	return samples, nil
}

// pcmScale returns the divisor and offset that map raw integer samples of the
// given bit depth into [-1, 1]. 8-bit WAV is unsigned.
func pcmScale(bitDepth int) (float64, float64, error) {
	switch bitDepth {
	case 8:
		return 128, 128, nil
	case 16:
		return 32768, 0, nil
	case 24:
		return 8388608, 0, nil
	case 32:
		return 2147483648, 0, nil
	default:
		return 0, 0, fmt.Errorf("unsupported bit depth %d", bitDepth)
	}
}

// mp3 output is always 16-bit little endian stereo.
func decodeMP3(r io.Reader) (*Audio, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("invalid mp3 stream: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mp3 frames: %w", err)
	}

	const channels = 2
	const frameBytes = 2 * channels
	frames := len(pcm) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		base := i * frameBytes
		left := int16(uint16(pcm[base]) | uint16(pcm[base+1])<<8)
		right := int16(uint16(pcm[base+2]) | uint16(pcm[base+3])<<8)
		samples[i] = (float64(left) + float64(right)) / 2 / 32768
	}

	return &Audio{
		Samples:    samples,
		SampleRate: dec.SampleRate(),
		Channels:   channels,
		Format:     FormatMP3,
	}, nil
}
