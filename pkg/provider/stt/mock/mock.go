// Package mock provides a test double for the stt.Transcriber interface.
//
// Example:
//
//	tr := &mock.Transcriber{Result: stt.Transcript{Text: "open the gate"}}
//	got, _ := tr.Transcribe(ctx, stt.Request{Audio: buf})
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/speechgate/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req stt.Request
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// TranscribeFunc, if set, computes the result. It takes precedence over
	// Result and TranscribeErr.
	TranscribeFunc func(ctx context.Context, req stt.Request) (stt.Transcript, error)

	// Result is returned by Transcribe when TranscribeFunc is nil.
	Result stt.Transcript

	// TranscribeErr, if non-nil, is returned by Transcribe when TranscribeFunc
	// is nil.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe records the call and returns the configured result.
func (m *Transcriber) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	m.mu.Lock()
	m.TranscribeCalls = append(m.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	fn := m.TranscribeFunc
	res, err := m.Result, m.TranscribeErr
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return res, err
}

// CallCount returns the number of Transcribe calls recorded. Thread-safe.
func (m *Transcriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.TranscribeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (m *Transcriber) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TranscribeCalls = nil
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
