// Package audio holds the sample buffer type shared by every stage of the
// enhancement pipeline together with the format conversions (resampling,
// downmixing, int16 PCM packing) and WAV file I/O those stages need.
package audio

import "time"

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Buffer is a decoded block of audio. Samples are float32 in [-1, 1] nominal
// range, interleaved when Channels > 1.
//
// Buffers are treated as immutable once produced: every transform in this
// module allocates a new slice rather than writing into its input.
type Buffer struct {
	// Samples holds the interleaved sample data.
	Samples []float32

	// SampleRate in Hz (e.g., 44100 for a typical WAV file, 16000 after normalization).
	SampleRate int

	// Channels: 1 for mono, 2 for stereo, and so on.
	Channels int
}

// Format returns the buffer's sample rate and channel count.
func (b Buffer) Format() Format {
	return Format{SampleRate: b.SampleRate, Channels: b.Channels}
}

// Frames returns the number of sample frames (samples per channel).
func (b Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Empty reports whether the buffer holds no samples.
func (b Buffer) Empty() bool {
	return len(b.Samples) == 0
}

// Clone returns a deep copy of b.
func (b Buffer) Clone() Buffer {
	out := b
	out.Samples = make([]float32, len(b.Samples))
	copy(out.Samples, b.Samples)
	return out
}
