package batch_test

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/speechgate/internal/observe"
	"github.com/MrWong99/speechgate/pkg/audio"
	"github.com/MrWong99/speechgate/pkg/enhance"
	"github.com/MrWong99/speechgate/pkg/provider/vad"
	vadmock "github.com/MrWong99/speechgate/pkg/provider/vad/mock"
)

const (
	testRate    = 16000
	toneStart   = 8000
	toneEnd     = 24000
	toneAmp     = 0.1452
	frameLength = 480
)

// recording returns 2 s of uniform noise of amplitude noiseAmp with a 440 Hz
// tone between 0.5 s and 1.5 s.
func recording(noiseAmp float64, seed uint32) audio.Buffer {
	state := seed
	x := make([]float32, 2*testRate)
	for i := range x {
		state = state*1664525 + 1013904223
		v := noiseAmp * (float64(state)/float64(1<<31) - 1)
		if i >= toneStart && i < toneEnd {
			v += toneAmp * math.Sin(2*math.Pi*440*float64(i)/testRate)
		}
		x[i] = float32(v)
	}
	return audio.Buffer{Samples: x, SampleRate: testRate, Channels: 1}
}

func writeWAV(t *testing.T, dir, name string, b audio.Buffer) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := audio.WriteWAVFile(p, b); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}
	return p
}

// newEnhancer returns an Enhancer whose VAD marks exactly the tone as speech.
func newEnhancer(t *testing.T) *enhance.Enhancer {
	t.Helper()
	eng := &vadmock.Engine{NewSessionFunc: func(vad.Config) vad.SessionHandle {
		return &vadmock.Session{Classify: func(idx int, _ []byte) vad.Event {
			if idx*frameLength < toneEnd && (idx+1)*frameLength > toneStart {
				return vad.Event{Type: vad.SpeechContinue, Probability: 1}
			}
			return vad.Event{Type: vad.Silence}
		}}
	}}
	e, err := enhance.New(enhance.DefaultConfig(), enhance.WithVADEngine(eng))
	if err != nil {
		t.Fatalf("enhance.New: %v", err)
	}
	return e
}

func newTestMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// counterTotal sums all data points of the named int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}
