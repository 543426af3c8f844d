package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func sine(freq float64, sampleRate int, seconds float64) []float64 {
	n := int(float64(sampleRate) * seconds)
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestDecodeFileRoundTripMono(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	want := sine(440, 8000, 0.25)
	if err := WriteWavFile(path, want, 8000, 1); err != nil {
		t.Fatalf("WriteWavFile: %v", err)
	}

	got, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if got.Format != FormatWAV {
		t.Fatalf("expected wav format, got %q", got.Format)
	}
	if got.SampleRate != 8000 || got.Channels != 1 {
		t.Fatalf("unexpected header: rate=%d channels=%d", got.SampleRate, got.Channels)
	}
	if len(got.Samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got.Samples))
	}
	for i := range want {
		if math.Abs(got.Samples[i]-want[i]) > 1e-3 {
			t.Fatalf("sample %d: want %.5f got %.5f", i, want[i], got.Samples[i])
		}
	}
	if math.Abs(got.Duration-0.25) > 1e-9 {
		t.Fatalf("unexpected duration %.4f", got.Duration)
	}
}

func TestDecodeFileDownmixesStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	interleaved := []float64{0.5, -0.5, 0.25, 0.25, 1, 0}
	if err := WriteWavFile(path, interleaved, 16000, 2); err != nil {
		t.Fatalf("WriteWavFile: %v", err)
	}

	got, err := DecodeFile(path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if got.Channels != 2 || len(got.Samples) != 3 {
		t.Fatalf("expected 3 mono frames from stereo, got %d (channels=%d)", len(got.Samples), got.Channels)
	}
	want := []float64{0, 0.25, 0.5}
	for i := range want {
		if math.Abs(got.Samples[i]-want[i]) > 1e-3 {
			t.Fatalf("frame %d: want %.4f got %.4f", i, want[i], got.Samples[i])
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"notes.txt":  []byte("hello, this is not audio at all"),
		"empty.wav":  {},
		"broken.wav": []byte("RIFF\x00\x00\x00\x00WAVEjunk"),
	}
	for name, payload := range cases {
		_, err := Decode(name, bytes.NewReader(payload))
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}

func TestDecodeFileMissing(t *testing.T) {
	_, err := DecodeFile(filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Format
	}{
		{"a.bin", []byte("RIFF\x24\x00\x00\x00WAVE"), FormatWAV},
		{"a.bin", []byte("ID3\x03\x00"), FormatMP3},
		{"a.bin", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"clip.MP3", nil, FormatMP3},
		{"clip.wav", nil, FormatWAV},
		{"clip.ogg", []byte("OggS"), FormatUnknown},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.name, tt.header); got != tt.want {
			t.Errorf("DetectFormat(%q, %q) = %q, want %q", tt.name, tt.header, got, tt.want)
		}
	}
}

func TestWriteWavFileValidatesArguments(t *testing.T) {
	dir := t.TempDir()
	if err := WriteWavFile(filepath.Join(dir, "a.wav"), []float64{0}, 0, 1); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	if err := WriteWavFile(filepath.Join(dir, "b.wav"), []float64{0}, 8000, 0); err == nil {
		t.Fatal("expected error for zero channels")
	}
	if _, err := os.Stat(filepath.Join(dir, "a.wav")); !os.IsNotExist(err) {
		t.Fatal("invalid arguments must not create a file")
	}
}

// riffWave assembles a WAVE stream around raw sample bytes. Extensible
// streams carry subFormat as the leading tag of their sub-format GUID.
func riffWave(tag, subFormat uint16, channels, rate, bits int, data []byte) []byte {
	le := binary.LittleEndian
	blockAlign := channels * bits / 8

	var fmtBody bytes.Buffer
	binary.Write(&fmtBody, le, tag)
	binary.Write(&fmtBody, le, uint16(channels))
	binary.Write(&fmtBody, le, uint32(rate))
	binary.Write(&fmtBody, le, uint32(rate*blockAlign))
	binary.Write(&fmtBody, le, uint16(blockAlign))
	binary.Write(&fmtBody, le, uint16(bits))
	switch tag {
	case wavFormatExtensible:
		binary.Write(&fmtBody, le, uint16(22))
		binary.Write(&fmtBody, le, uint16(bits))
		binary.Write(&fmtBody, le, uint32(0))
		binary.Write(&fmtBody, le, subFormat)
		fmtBody.Write([]byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71})
	case wavFormatFloat:
		binary.Write(&fmtBody, le, uint16(0))
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, le, uint32(4+8+fmtBody.Len()+8+len(data)))
	out.WriteString("WAVE")
	out.WriteString("fmt ")
	binary.Write(&out, le, uint32(fmtBody.Len()))
	out.Write(fmtBody.Bytes())
	out.WriteString("data")
	binary.Write(&out, le, uint32(len(data)))
	out.Write(data)
	return out.Bytes()
}

func littleEndian(values ...any) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		binary.Write(&buf, binary.LittleEndian, v)
	}
	return buf.Bytes()
}

func TestDecodeWavEncodings(t *testing.T) {
	tests := []struct {
		name     string
		stream   []byte
		channels int
		want     []float64
	}{
		{
			name:     "float32 mono",
			stream:   riffWave(wavFormatFloat, 0, 1, 8000, 32, littleEndian(float32(0.5), float32(-0.25), float32(1), float32(0))),
			channels: 1,
			want:     []float64{0.5, -0.25, 1, 0},
		},
		{
			name:     "float64 stereo",
			stream:   riffWave(wavFormatFloat, 0, 2, 22050, 64, littleEndian(0.5, -0.5, 0.25, 0.75)),
			channels: 2,
			want:     []float64{0, 0.5},
		},
		{
			name: "extensible pcm16 4ch",
			stream: riffWave(wavFormatExtensible, wavFormatPCM, 4, 48000, 16, littleEndian(
				int16(16384), int16(16384), int16(0), int16(0),
				int16(-32768), int16(0), int16(0), int16(0),
			)),
			channels: 4,
			want:     []float64{0.25, -0.25},
		},
		{
			name:     "extensible float32 stereo",
			stream:   riffWave(wavFormatExtensible, wavFormatFloat, 2, 44100, 32, littleEndian(float32(1), float32(0), float32(-0.5), float32(-0.5))),
			channels: 2,
			want:     []float64{0.5, -0.5},
		},
	}

	for _, tt := range tests {
		got, err := Decode("upload.wav", bytes.NewReader(tt.stream))
		if err != nil {
			t.Fatalf("%s: Decode: %v", tt.name, err)
		}
		if got.Channels != tt.channels {
			t.Fatalf("%s: expected %d channels, got %d", tt.name, tt.channels, got.Channels)
		}
		if len(got.Samples) != len(tt.want) {
			t.Fatalf("%s: expected %d samples, got %d", tt.name, len(tt.want), len(got.Samples))
		}
		for i := range tt.want {
			if math.Abs(got.Samples[i]-tt.want[i]) > 1e-6 {
				t.Fatalf("%s: sample %d: want %.5f got %.5f", tt.name, i, tt.want[i], got.Samples[i])
			}
		}
	}
}

func TestDecodeWavRejectsCompressedEncodings(t *testing.T) {
	payload := littleEndian(int16(1), int16(2), int16(3), int16(4))
	streams := map[string][]byte{
		"adpcm":            riffWave(0x0002, 0, 1, 8000, 16, payload),
		"extensible adpcm": riffWave(wavFormatExtensible, 0x0002, 1, 8000, 16, payload),
	}
	for name, stream := range streams {
		_, err := Decode("upload.wav", bytes.NewReader(stream))
		if !errors.Is(err, ErrDecode) {
			t.Errorf("%s: expected ErrDecode, got %v", name, err)
		}
	}
}

func TestDecodeMP3File(t *testing.T) {
	got, err := DecodeFile(filepath.Join("testdata", "speech.mp3"))
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if got.Format != FormatMP3 {
		t.Fatalf("expected mp3 format, got %q", got.Format)
	}
	if got.SampleRate != 22050 || got.Channels != 2 {
		t.Fatalf("unexpected header: rate=%d channels=%d", got.SampleRate, got.Channels)
	}

	// 24 MPEG-2 layer III frames of 576 samples each.
	if len(got.Samples) < 20*576 || len(got.Samples) > 24*576 {
		t.Fatalf("unexpected sample count %d", len(got.Samples))
	}
	peak := 0.0
	for i, s := range got.Samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
		peak = math.Max(peak, math.Abs(s))
	}
	if peak == 0 {
		t.Fatal("expected a non-silent signal")
	}
	if math.Abs(got.Duration-float64(len(got.Samples))/22050) > 1e-9 {
		t.Fatalf("unexpected duration %.4f", got.Duration)
	}
}

func TestDecodeTruncatedMP3(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "speech.mp3"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	_, err = Decode("cut.mp3", bytes.NewReader(data[:100]))
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}
