// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A transcriber wraps a batch recognition engine (e.g., a whisper.cpp server
// or the whisper.cpp library itself) and turns one complete recording into
// text. The enhancement pipeline uses it as its downstream consumer: enhanced
// and original recordings are transcribed so that recognition quality can be
// compared.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/speechgate/pkg/audio"
)

// Request describes a single transcription job.
type Request struct {
	// Audio is the recording to transcribe. Most engines expect 16 kHz mono;
	// implementations convert other formats where they can.
	Audio audio.Buffer

	// Language is the language code for recognition (e.g., "en", "ko").
	// An empty string lets the provider use its default or auto-detect.
	Language string
}

// Transcript is the recognition result for one recording.
type Transcript struct {
	// Text is the full transcribed text, segments joined by a single space.
	Text string

	// Segments holds the individual segment texts in order, when the backend
	// reports them.
	Segments []string
}

// Transcriber is the abstraction over any batch STT backend.
type Transcriber interface {
	// Transcribe recognizes the speech in req.Audio. It blocks until the
	// backend returns or ctx is cancelled.
	Transcribe(ctx context.Context, req Request) (Transcript, error)
}
