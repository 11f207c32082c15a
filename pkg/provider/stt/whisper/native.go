// This file contains the Native transcriber backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/MrWong99/speechgate/pkg/provider/stt"
)

// Compile-time assertion that Native satisfies stt.Transcriber.
var _ stt.Transcriber = (*Native)(nil)

// Native implements stt.Transcriber using the whisper.cpp Go bindings. The
// model is loaded once and shared; every Transcribe call creates its own
// context from it, so calls may run concurrently.
type Native struct {
	model    whisperlib.Model
	language string
}

// NativeOption is a functional option for configuring a Native transcriber.
type NativeOption func(*Native)

// WithNativeLanguage sets the language code for transcription (e.g., "en",
// "ko"). Defaults to "en".
func WithNativeLanguage(lang string) NativeOption {
	return func(n *Native) { n.language = lang }
}

// NewNative loads the whisper.cpp model at modelPath. The caller must call
// Close when the transcriber is no longer needed.
func NewNative(modelPath string, opts ...NativeOption) (*Native, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	n := &Native{model: model, language: defaultLanguage}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Close releases the whisper model.
func (n *Native) Close() error {
	if n.model != nil {
		return n.model.Close()
	}
	return nil
}

// Transcribe runs whisper.cpp inference over the whole recording. The context
// is checked before inference starts; whisper.cpp itself cannot be
// interrupted mid-run.
func (n *Native) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	buf, err := toWhisperFormat(req.Audio)
	if err != nil {
		return stt.Transcript{}, err
	}
	lang := req.Language
	if lang == "" {
		lang = n.language
	}

	wctx, err := n.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: set language %q: %w", lang, err)
	}
	if err := wctx.Process(buf.Samples, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process: %w", err)
	}

	var segments []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: next segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			segments = append(segments, text)
		}
	}
	return stt.Transcript{Text: strings.Join(segments, " "), Segments: segments}, nil
}
