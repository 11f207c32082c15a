// Package vad defines the Engine interface for model-based Voice Activity
// Detection backends.
//
// A VAD engine wraps a frame-level speech classifier (e.g., WebRTC VAD or a
// small neural model) and surfaces it as a per-recording session. Each session
// keeps its own internal state (smoothing history, hangover counters) so that
// multiple recordings can be classified concurrently and independently.
//
// VAD is synchronous: ProcessFrame returns immediately with a classification
// for the frame it was given.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

import (
	"errors"
	"fmt"
)

// ErrFrameSize is returned by sessions when a frame does not match the
// configured frame duration.
var ErrFrameSize = errors.New("vad: frame size does not match session config")

// Config holds the parameters for a VAD session.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame. Common values: 8000, 16000, 32000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Most
	// classifiers operate on fixed frame sizes (10, 20 or 30 ms).
	FrameSizeMs int

	// Aggressiveness selects how eagerly non-speech is rejected, from 0 (least
	// aggressive, most frames kept as speech) to 3 (most aggressive).
	Aggressiveness int
}

// FrameBytes returns the byte length of one little-endian int16 frame under c.
func (c Config) FrameBytes() int {
	return c.SampleRate * c.FrameSizeMs / 1000 * 2
}

// Validate reports whether c describes a usable session.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSizeMs <= 0 {
		return fmt.Errorf("vad: frame size must be positive, got %dms", c.FrameSizeMs)
	}
	if c.Aggressiveness < 0 || c.Aggressiveness > 3 {
		return fmt.Errorf("vad: aggressiveness must be in [0, 3], got %d", c.Aggressiveness)
	}
	return nil
}

// SessionHandle represents an active VAD session for a single recording. It is
// an interface so that test code can supply mock implementations without a live
// engine. Reset clears detection state without closing the session.
type SessionHandle interface {
	// ProcessFrame classifies a single audio frame. The frame must be raw
	// little-endian int16 PCM at the SampleRate and FrameSizeMs configured
	// when the session was created. Returns ErrFrameSize (possibly wrapped) if
	// the frame length is wrong.
	ProcessFrame(frame []byte) (Event, error)

	// Reset clears all accumulated detection state without closing the session.
	Reset()

	// Close releases all resources associated with the session. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration.
	// Returns an error if the configuration is not supported by the engine.
	NewSession(cfg Config) (SessionHandle, error)
}
