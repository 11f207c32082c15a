package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/speechgate/pkg/provider/denoise"
	"github.com/MrWong99/speechgate/pkg/provider/stt"
	"github.com/MrWong99/speechgate/pkg/provider/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	vad        map[string]func(ProviderEntry) (vad.Engine, error)
	segmentVAD map[string]func(ProviderEntry) (vad.SegmentDetector, error)
	reducer    map[ReducerKind]func(StrategyConfig) (denoise.Reducer, error)
	stt        map[string]func(ProviderEntry) (stt.Transcriber, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		vad:        make(map[string]func(ProviderEntry) (vad.Engine, error)),
		segmentVAD: make(map[string]func(ProviderEntry) (vad.SegmentDetector, error)),
		reducer:    make(map[ReducerKind]func(StrategyConfig) (denoise.Reducer, error)),
		stt:        make(map[string]func(ProviderEntry) (stt.Transcriber, error)),
	}
}

// RegisterVAD registers a frame-based VAD engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterSegmentVAD registers a whole-recording VAD factory under name.
// It takes precedence over a frame-based engine of the same name.
func (r *Registry) RegisterSegmentVAD(name string, factory func(ProviderEntry) (vad.SegmentDetector, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segmentVAD[name] = factory
}

// RegisterReducer registers the reducer factory for a strategy kind.
func (r *Registry) RegisterReducer(kind ReducerKind, factory func(StrategyConfig) (denoise.Reducer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reducer[kind] = factory
}

// RegisterSTT registers a transcriber factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// CreateVAD instantiates a VAD engine using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSegmentVAD instantiates a whole-recording VAD using the factory
// registered under entry.Name.
func (r *Registry) CreateSegmentVAD(entry ProviderEntry) (vad.SegmentDetector, error) {
	r.mu.RLock()
	factory, ok := r.segmentVAD[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: segment-vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// HasSegmentVAD reports whether a whole-recording VAD is registered under name.
func (r *Registry) HasSegmentVAD(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.segmentVAD[name]
	return ok
}

// CreateReducer instantiates the reducer for s.Kind.
func (r *Registry) CreateReducer(s StrategyConfig) (denoise.Reducer, error) {
	r.mu.RLock()
	factory, ok := r.reducer[s.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: reducer/%q", ErrProviderNotRegistered, s.Kind)
	}
	return factory(s)
}

// CreateSTT instantiates a transcriber using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
