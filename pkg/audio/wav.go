package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when a stream is not a decodable PCM WAV file.
var ErrInvalidWAV = errors.New("audio: invalid wav file")

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// DecodeWAV reads an integer PCM WAV stream and returns its samples scaled to
// [-1.0, 1.0) according to the source bit depth. 8-bit data is unsigned and
// is recentred on zero. Floating-point and compressed encodings are rejected.
func DecodeWAV(r io.ReadSeeker) (Buffer, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Buffer{}, ErrInvalidWAV
	}
	if f := dec.WavAudioFormat; f != wavFormatPCM && f != wavFormatExtensible {
		return Buffer{}, fmt.Errorf("%w: unsupported encoding %d", ErrInvalidWAV, f)
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: decode wav: %w", err)
	}
	if ib == nil || ib.Format == nil {
		return Buffer{}, ErrInvalidWAV
	}

	depth := ib.SourceBitDepth
	if depth <= 0 {
		depth = int(dec.BitDepth)
	}
	if depth <= 0 || depth > 32 {
		return Buffer{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, depth)
	}
	scale := float64(int64(1) << (depth - 1))
	offset := 0.0
	if depth == 8 {
		offset = scale
	}

	samples := make([]float32, len(ib.Data))
	for i, v := range ib.Data {
		samples[i] = float32((float64(v) - offset) / scale)
	}
	return Buffer{
		Samples:    samples,
		SampleRate: ib.Format.SampleRate,
		Channels:   ib.Format.NumChannels,
	}, nil
}

// ReadWAVFile opens and decodes the WAV file at path.
func ReadWAVFile(path string) (Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()
	b, err := DecodeWAV(f)
	if err != nil {
		return Buffer{}, fmt.Errorf("audio: read %s: %w", path, err)
	}
	return b, nil
}

// EncodeWAV writes b as 16-bit PCM WAV. Samples are clamped to the int16
// range.
func EncodeWAV(w io.WriteSeeker, b Buffer) error {
	if b.SampleRate <= 0 || b.Channels <= 0 {
		return fmt.Errorf("audio: encode wav: invalid format %s", formatString(b.SampleRate, b.Channels))
	}
	enc := wav.NewEncoder(w, b.SampleRate, 16, b.Channels, 1)
	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		data[i] = int(floatToInt16(s))
	}
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: b.Channels, SampleRate: b.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(ib); err != nil {
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return nil
}

// WriteWAVFile encodes b as 16-bit PCM WAV at path. The file is written
// under a temporary name in the same directory and renamed into place, so a
// failed write leaves no partial file behind.
func WriteWAVFile(path string, b Buffer) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	tmp := f.Name()
	if err := EncodeWAV(f, b); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("audio: write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("audio: write %s: %w", path, err)
	}
	return nil
}
