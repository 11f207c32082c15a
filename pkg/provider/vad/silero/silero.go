// Package silero provides a vad.SegmentDetector backed by the Silero VAD
// model through github.com/streamer45/silero-vad-go.
//
// The ONNX runtime shared library and headers must be available at build and
// run time. The model is stateful, so calls to DetectSegments are serialized
// and the model state is reset before each recording.
package silero

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/MrWong99/speechgate/pkg/provider/vad"
)

var _ vad.SegmentDetector = (*Detector)(nil)

// ErrSampleRate is returned when DetectSegments is called with a rate other
// than the one the detector was created for.
var ErrSampleRate = errors.New("silero: sample rate mismatch")

// Option configures a Detector.
type Option func(*speech.DetectorConfig)

// WithSampleRate sets the model sample rate. Silero supports 8000 and 16000.
// Default: 16000.
func WithSampleRate(hz int) Option {
	return func(c *speech.DetectorConfig) { c.SampleRate = hz }
}

// WithThreshold sets the speech probability threshold. Default: 0.5.
func WithThreshold(p float32) Option {
	return func(c *speech.DetectorConfig) { c.Threshold = p }
}

// WithMinSilence sets how long silence must last to end a segment.
// Default: 100 ms.
func WithMinSilence(d time.Duration) Option {
	return func(c *speech.DetectorConfig) { c.MinSilenceDurationMs = int(d.Milliseconds()) }
}

// WithSpeechPad sets the padding added to both ends of every segment.
// Default: 30 ms.
func WithSpeechPad(d time.Duration) Option {
	return func(c *speech.DetectorConfig) { c.SpeechPadMs = int(d.Milliseconds()) }
}

// Detector wraps one Silero model instance.
type Detector struct {
	mu         sync.Mutex
	sd         *speech.Detector
	sampleRate int
}

// New loads the model at modelPath.
func New(modelPath string, opts ...Option) (*Detector, error) {
	cfg := speech.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           16000,
		Threshold:            0.5,
		MinSilenceDurationMs: 100,
		SpeechPadMs:          30,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return nil, fmt.Errorf("silero: sample rate must be 8000 or 16000, got %d", cfg.SampleRate)
	}
	sd, err := speech.NewDetector(cfg)
	if err != nil {
		return nil, fmt.Errorf("silero: load model %q: %w", modelPath, err)
	}
	return &Detector{sd: sd, sampleRate: cfg.SampleRate}, nil
}

// DetectSegments implements vad.SegmentDetector.
func (d *Detector) DetectSegments(samples []float32, sampleRate int) ([]vad.Segment, error) {
	if sampleRate != d.sampleRate {
		return nil, fmt.Errorf("%w: model runs at %d Hz, got %d Hz", ErrSampleRate, d.sampleRate, sampleRate)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.sd.Reset(); err != nil {
		return nil, fmt.Errorf("silero: reset: %w", err)
	}
	segs, err := d.sd.Detect(samples)
	if err != nil {
		return nil, fmt.Errorf("silero: detect: %w", err)
	}
	return convertSegments(segs), nil
}

// Close releases the model.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sd == nil {
		return nil
	}
	err := d.sd.Destroy()
	d.sd = nil
	return err
}

func convertSegments(in []speech.Segment) []vad.Segment {
	out := make([]vad.Segment, 0, len(in))
	for _, s := range in {
		out = append(out, vad.Segment{
			Start: seconds(s.SpeechStartAt),
			End:   seconds(s.SpeechEndAt),
		})
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
