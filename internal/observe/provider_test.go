package observe

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// restoreGlobals puts back the global OTel providers after a test that
// installs its own.
func restoreGlobals(t *testing.T) {
	t.Helper()
	mp, tp := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(mp)
		otel.SetTracerProvider(tp)
	})
}

func TestInitProvider_MetricsReachRegistry(t *testing.T) {
	restoreGlobals(t)
	reg := prometheus.NewRegistry()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{Registerer: reg, ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	defer shutdown(context.Background())

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordFile(context.Background(), "ok")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "speechgate_batch_files") {
			found = true
		}
	}
	if !found {
		t.Error("speechgate_batch_files not exported to the registry")
	}
}

func TestInitProvider_ExportsSpans(t *testing.T) {
	restoreGlobals(t)
	exp := tracetest.NewInMemoryExporter()
	shutdown, err := InitProvider(context.Background(), ProviderConfig{
		Registerer:    prometheus.NewRegistry(),
		TraceExporter: exp,
	})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}

	_, span := StartSpan(context.Background(), "batch.file")
	span.End()
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "batch.file" {
		t.Fatalf("spans = %v, want one batch.file span", spans)
	}
	if got := spans[0].Resource.Attributes(); len(got) == 0 {
		t.Error("span has no resource attributes")
	}
}
