// Package webrtc provides a frame-based vad.Engine backed by the WebRTC voice
// activity detector through github.com/maxhawkins/go-webrtcvad.
//
// The detector is compiled from C sources bundled with the binding, so a cgo
// toolchain is required but no shared library. Every session owns its own
// detector instance.
package webrtc

import (
	"errors"
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"

	"github.com/MrWong99/speechgate/pkg/provider/vad"
)

var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*Session)(nil)
)

// ErrClosed is returned by ProcessFrame after Close.
var ErrClosed = errors.New("webrtc: session closed")

// Engine creates WebRTC VAD sessions. The zero value is ready to use.
type Engine struct{}

// New returns an Engine.
func New() *Engine {
	return &Engine{}
}

// NewSession implements vad.Engine. The detector accepts 8, 16, 32 and
// 48 kHz audio in 10, 20 or 30 ms frames; cfg.Aggressiveness becomes the
// detector mode.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	v, err := newDetector(cfg)
	if err != nil {
		return nil, err
	}
	return &Session{v: v, cfg: cfg, frameBytes: cfg.FrameBytes()}, nil
}

func newDetector(cfg vad.Config) (*webrtcvad.VAD, error) {
	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("webrtc: create detector: %w", err)
	}
	if !v.ValidRateAndFrameLength(cfg.SampleRate, cfg.FrameBytes()/2) {
		return nil, fmt.Errorf("webrtc: unsupported rate %d Hz with %d ms frames", cfg.SampleRate, cfg.FrameSizeMs)
	}
	if err := v.SetMode(cfg.Aggressiveness); err != nil {
		return nil, fmt.Errorf("webrtc: set mode %d: %w", cfg.Aggressiveness, err)
	}
	return v, nil
}

// Session classifies the frames of one recording.
type Session struct {
	mu         sync.Mutex
	v          *webrtcvad.VAD
	cfg        vad.Config
	frameBytes int
	speaking   bool
}

// ProcessFrame implements vad.SessionHandle.
func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.v == nil {
		return vad.Event{}, ErrClosed
	}
	if len(frame) != s.frameBytes {
		return vad.Event{}, fmt.Errorf("%w: got %d bytes, want %d", vad.ErrFrameSize, len(frame), s.frameBytes)
	}
	active, err := s.v.Process(s.cfg.SampleRate, frame)
	if err != nil {
		return vad.Event{}, fmt.Errorf("webrtc: process frame: %w", err)
	}
	ev := vad.Event{Type: transition(s.speaking, active)}
	if active {
		ev.Probability = 1
	}
	s.speaking = active
	return ev, nil
}

// Reset implements vad.SessionHandle. The detector is replaced by a fresh
// instance; if that fails only the speech state is cleared.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = false
	if s.v == nil {
		return
	}
	if v, err := newDetector(s.cfg); err == nil {
		s.v = v
	}
}

// Close implements vad.SessionHandle. The detector memory is released by the
// binding's finalizer.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = nil
	return nil
}

func transition(speaking, active bool) vad.EventType {
	switch {
	case active && !speaking:
		return vad.SpeechStart
	case active:
		return vad.SpeechContinue
	case speaking:
		return vad.SpeechEnd
	default:
		return vad.Silence
	}
}
