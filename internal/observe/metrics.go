// Package observe provides application-wide observability primitives for
// speechgate: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware for the metrics endpoint.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/speechgate/pkg/enhance"
)

// meterName is the instrumentation scope name used for all speechgate metrics.
const meterName = "github.com/MrWong99/speechgate"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// EnhanceDuration tracks one Enhance call. Attribute: decision.
	EnhanceDuration metric.Float64Histogram

	// TranscribeDuration tracks one transcription. Attributes: provider,
	// variant ("original" or "enhanced").
	TranscribeDuration metric.Float64Histogram

	// --- Signal statistics ---

	// InputSNR tracks the estimated SNR of every non-empty recording.
	InputSNR metric.Float64Histogram

	// --- Counters ---

	// Files counts processed recordings. Attribute: status ("ok", "failed").
	Files metric.Int64Counter

	// Decisions counts pipeline decisions. Attributes: decision, reason.
	Decisions metric.Int64Counter

	// SelectedStrength counts chosen candidates. Attributes: strength,
	// strategy.
	SelectedStrength metric.Int64Counter

	// ReductionFailures counts failed reduction attempts. Attributes:
	// strategy, strength.
	ReductionFailures metric.Int64Counter

	// ProviderRequests counts transcriber calls. Attributes: provider, kind,
	// status.
	ProviderRequests metric.Int64Counter

	// KeywordMatches counts keyword judgements. Attributes: variant, method.
	KeywordMatches metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// breaker, from, to.
	BreakerTransitions metric.Int64Counter

	// --- Gauges ---

	// ActiveFiles tracks recordings currently in flight.
	ActiveFiles metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes:
	// method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// per-recording processing and recognition times.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// snrBuckets brackets the 12 dB bypass threshold.
var snrBuckets = []float64{
	-10, 0, 3, 6, 9, 12, 15, 20, 30, 40,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.EnhanceDuration, err = m.Float64Histogram("speechgate.enhance.duration",
		metric.WithDescription("Latency of one enhancement call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("speechgate.transcribe.duration",
		metric.WithDescription("Latency of one transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InputSNR, err = m.Float64Histogram("speechgate.enhance.snr",
		metric.WithDescription("Estimated signal-to-noise ratio of input recordings."),
		metric.WithUnit("dB"),
		metric.WithExplicitBucketBoundaries(snrBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Files, err = m.Int64Counter("speechgate.batch.files",
		metric.WithDescription("Total recordings processed by status."),
	); err != nil {
		return nil, err
	}
	if met.Decisions, err = m.Int64Counter("speechgate.enhance.decisions",
		metric.WithDescription("Total enhancement decisions by decision and bypass reason."),
	); err != nil {
		return nil, err
	}
	if met.SelectedStrength, err = m.Int64Counter("speechgate.enhance.selected_strength",
		metric.WithDescription("Total selected candidates by strength and strategy."),
	); err != nil {
		return nil, err
	}
	if met.ReductionFailures, err = m.Int64Counter("speechgate.denoise.failures",
		metric.WithDescription("Total failed reduction attempts by strategy and strength."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("speechgate.provider.requests",
		metric.WithDescription("Total provider requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.KeywordMatches, err = m.Int64Counter("speechgate.keyword.matches",
		metric.WithDescription("Total keyword judgements by transcript variant and match method."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("speechgate.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveFiles, err = m.Int64UpDownCounter("speechgate.batch.active_files",
		metric.WithDescription("Number of recordings currently being processed."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("speechgate.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordEnhance records the duration, decision, SNR, selected candidate and
// failed reduction attempts of one Enhance call.
func (m *Metrics) RecordEnhance(ctx context.Context, res *enhance.Result, elapsed time.Duration) {
	decision := res.Decision.String()
	m.EnhanceDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("decision", decision)))
	m.Decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("reason", res.BypassReason.String()),
	))
	if res.Decision == enhance.DecisionEmpty {
		return
	}
	m.InputSNR.Record(ctx, res.SNR)

	if c, ok := res.SelectedCandidate(); ok {
		m.SelectedStrength.Add(ctx, 1, metric.WithAttributes(
			attribute.String("strength", c.Strength.String()),
			attribute.String("strategy", c.Strategy),
		))
	}
	for _, c := range res.Candidates {
		for _, a := range c.Failed {
			m.recordReductionFailure(ctx, a)
		}
	}
	if ae, ok := res.ReductionErr.(*enhance.AlgorithmError); ok {
		for _, a := range ae.Attempts {
			m.recordReductionFailure(ctx, a)
		}
	}
}

func (m *Metrics) recordReductionFailure(ctx context.Context, a enhance.Attempt) {
	m.ReductionFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("strategy", a.Strategy),
		attribute.String("strength", a.Strength.String()),
	))
}

// RecordFile records the outcome of one recording.
func (m *Metrics) RecordFile(ctx context.Context, status string) {
	m.Files.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordTranscribe records one transcription's latency and request outcome.
func (m *Metrics) RecordTranscribe(ctx context.Context, provider, variant string, elapsed time.Duration, err error) {
	m.TranscribeDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("variant", variant),
	))
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RecordProviderRequest(ctx, provider, "stt", status)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordKeywordMatch records one keyword judgement.
func (m *Metrics) RecordKeywordMatch(ctx context.Context, variant, method string) {
	m.KeywordMatches.Add(ctx, 1, metric.WithAttributes(
		attribute.String("variant", variant),
		attribute.String("method", method),
	))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, from, to string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker", breaker),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}
