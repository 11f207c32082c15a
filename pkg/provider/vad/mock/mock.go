// Package mock provides test doubles for the vad package interfaces.
//
// Use Engine to verify that sessions are created with the expected Config.
// Use Session to inject Event responses and inspect the frames that were
// submitted for processing.
//
// Example:
//
//	eng := &mock.Engine{
//	    NewSessionFunc: func(vad.Config) vad.SessionHandle {
//	        return &mock.Session{Classify: func(i int, _ []byte) vad.Event {
//	            if i >= 10 && i < 40 {
//	                return vad.Event{Type: vad.SpeechContinue, Probability: 1}
//	            }
//	            return vad.Event{Type: vad.Silence}
//	        }}
//	    },
//	}
package mock

import (
	"sync"

	"github.com/MrWong99/speechgate/pkg/provider/vad"
)

// NewSessionCall records a single invocation of Engine.NewSession.
type NewSessionCall struct {
	// Cfg is the Config passed to NewSession.
	Cfg vad.Config
}

// Engine is a mock implementation of vad.Engine.
type Engine struct {
	mu sync.Mutex

	// NewSessionFunc, if set, builds the handle returned by NewSession. It takes
	// precedence over Session.
	NewSessionFunc func(cfg vad.Config) vad.SessionHandle

	// Session is the SessionHandle returned by NewSession. If both Session and
	// NewSessionFunc are nil, NewSession returns a new default Session.
	Session vad.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every call to NewSession in order.
	NewSessionCalls []NewSessionCall
}

// NewSession records the call and returns a session or NewSessionErr.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = append(e.NewSessionCalls, NewSessionCall{Cfg: cfg})
	if e.NewSessionErr != nil {
		return nil, e.NewSessionErr
	}
	if e.NewSessionFunc != nil {
		return e.NewSessionFunc(cfg), nil
	}
	if e.Session != nil {
		return e.Session, nil
	}
	return &Session{}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.NewSessionCalls = nil
}

// Ensure Engine implements vad.Engine at compile time.
var _ vad.Engine = (*Engine)(nil)

// ProcessFrameCall records a single invocation of Session.ProcessFrame.
type ProcessFrameCall struct {
	// Frame is a copy of the bytes passed to ProcessFrame.
	Frame []byte
}

// Session is a mock implementation of vad.SessionHandle.
type Session struct {
	mu sync.Mutex

	// Classify, if set, computes the event for each frame. index counts frames
	// since the session was created or last Reset.
	Classify func(index int, frame []byte) vad.Event

	// EventResult is returned by every ProcessFrame call when Classify is nil.
	EventResult vad.Event

	// ProcessFrameErr, if non-nil, is returned by every ProcessFrame call.
	ProcessFrameErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// ProcessFrameCalls records every call to ProcessFrame in order.
	ProcessFrameCalls []ProcessFrameCall

	// ResetCallCount is the number of times Reset was called.
	ResetCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	index int
}

// ProcessFrame records the call and returns the classified event and
// ProcessFrameErr.
func (s *Session) ProcessFrame(frame []byte) (vad.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.ProcessFrameCalls = append(s.ProcessFrameCalls, ProcessFrameCall{Frame: cp})
	if s.ProcessFrameErr != nil {
		return vad.Event{}, s.ProcessFrameErr
	}
	ev := s.EventResult
	if s.Classify != nil {
		ev = s.Classify(s.index, cp)
	}
	s.index++
	return ev, nil
}

// Reset records the call by incrementing ResetCallCount and rewinds the frame
// index.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResetCallCount++
	s.index = 0
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded call history. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ProcessFrameCalls = nil
	s.ResetCallCount = 0
	s.CloseCallCount = 0
}

// Ensure Session implements vad.SessionHandle at compile time.
var _ vad.SessionHandle = (*Session)(nil)

// DetectSegmentsCall records a single invocation of Detector.DetectSegments.
type DetectSegmentsCall struct {
	Samples    int
	SampleRate int
}

// Detector is a mock implementation of vad.SegmentDetector.
type Detector struct {
	mu sync.Mutex

	// Segments is returned by every DetectSegments call.
	Segments []vad.Segment

	// DetectErr, if non-nil, is returned by DetectSegments.
	DetectErr error

	// DetectSegmentsCalls records every call in order.
	DetectSegmentsCalls []DetectSegmentsCall
}

// DetectSegments records the call and returns Segments or DetectErr.
func (d *Detector) DetectSegments(samples []float32, sampleRate int) ([]vad.Segment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DetectSegmentsCalls = append(d.DetectSegmentsCalls, DetectSegmentsCall{Samples: len(samples), SampleRate: sampleRate})
	if d.DetectErr != nil {
		return nil, d.DetectErr
	}
	return append([]vad.Segment(nil), d.Segments...), nil
}

var _ vad.SegmentDetector = (*Detector)(nil)
