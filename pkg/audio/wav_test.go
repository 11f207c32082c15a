package audio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/speechgate/pkg/audio"
)

func TestWAVFile_PreservesFormatAndSamples(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := audio.Buffer{
		Samples:    []float32{0, 0.5, -0.5, 0.25, -0.25, 0.999},
		SampleRate: 22050,
		Channels:   2,
	}
	if err := audio.WriteWAVFile(path, in); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	out, err := audio.ReadWAVFile(path)
	if err != nil {
		t.Fatalf("ReadWAVFile: %v", err)
	}
	if out.SampleRate != 22050 || out.Channels != 2 {
		t.Fatalf("format: got %+v, want 22050Hz stereo", out.Format())
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("length: got %d, want %d", len(out.Samples), len(in.Samples))
	}
	for i := range in.Samples {
		// 16-bit quantization error.
		if math.Abs(float64(out.Samples[i]-in.Samples[i])) > 1.0/16384 {
			t.Errorf("sample %d: got %v, want %v", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	t.Parallel()
	_, err := audio.DecodeWAV(strings.NewReader("definitely not a riff header"))
	if !errors.Is(err, audio.ErrInvalidWAV) {
		t.Errorf("err = %v, want ErrInvalidWAV", err)
	}
}

func TestReadWAVFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := audio.ReadWAVFile(filepath.Join(t.TempDir(), "missing.wav"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestWriteWAVFile_FailureLeavesNoFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.wav")
	if err := audio.WriteWAVFile(path, audio.Buffer{Samples: []float32{0}}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("directory not empty after failed write: %v", entries)
	}
}

func TestDecodeWAV_EightBitIsCentred(t *testing.T) {
	t.Parallel()
	b, err := audio.DecodeWAV(bytes.NewReader(rawWAV(1, 8, []byte{128, 255, 0, 64})))
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	want := []float32{0, 127.0 / 128, -1, -0.5}
	if len(b.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(b.Samples), len(want))
	}
	for i, w := range want {
		if b.Samples[i] != w {
			t.Errorf("sample %d = %v, want %v", i, b.Samples[i], w)
		}
	}
}

func TestDecodeWAV_RejectsFloat(t *testing.T) {
	t.Parallel()
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(0.5))
	_, err := audio.DecodeWAV(bytes.NewReader(rawWAV(3, 32, data)))
	if !errors.Is(err, audio.ErrInvalidWAV) {
		t.Errorf("err = %v, want ErrInvalidWAV", err)
	}
}

// rawWAV builds a mono 16 kHz WAV file with the given format tag.
func rawWAV(format uint16, bits int, data []byte) []byte {
	const rate = 16000
	block := bits / 8
	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, uint32(36+len(data)))
	b.WriteString("WAVEfmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, format)
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*block))
	binary.Write(&b, binary.LittleEndian, uint16(block))
	binary.Write(&b, binary.LittleEndian, uint16(bits))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, uint32(len(data)))
	b.Write(data)
	return b.Bytes()
}
