package resilience

import (
	"context"

	"github.com/MrWong99/speechgate/pkg/provider/stt"
)

// TranscriberChain is an [stt.Transcriber] that fails over across several
// backends, for example a whisper server with the embedded model behind it.
type TranscriberChain struct {
	chain *Chain[stt.Transcriber]
}

var _ stt.Transcriber = (*TranscriberChain)(nil)

// NewTranscriberChain returns an empty chain.
func NewTranscriberChain() *TranscriberChain {
	return &TranscriberChain{chain: NewChain[stt.Transcriber]()}
}

// Add appends a backend in priority order.
func (t *TranscriberChain) Add(name string, tr stt.Transcriber, cfg BreakerConfig) {
	t.chain.Add(name, tr, cfg)
}

// Len returns the number of backends.
func (t *TranscriberChain) Len() int { return t.chain.Len() }

// States reports the breaker state of each backend.
func (t *TranscriberChain) States() map[string]State { return t.chain.States() }

// Transcribe uses the first healthy backend.
func (t *TranscriberChain) Transcribe(ctx context.Context, req stt.Request) (stt.Transcript, error) {
	tr, _, err := t.TranscribeNamed(ctx, req)
	return tr, err
}

// TranscribeNamed is Transcribe that also reports which backend answered.
func (t *TranscriberChain) TranscribeNamed(ctx context.Context, req stt.Request) (stt.Transcript, string, error) {
	return Call(ctx, t.chain, func(ctx context.Context, tr stt.Transcriber) (stt.Transcript, error) {
		return tr.Transcribe(ctx, req)
	})
}
