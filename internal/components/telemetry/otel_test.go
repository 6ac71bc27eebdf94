package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func restoreGlobalProviders(t *testing.T) {
	t.Helper()
	tracerProvider := otel.GetTracerProvider()
	meterProvider := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tracerProvider)
		otel.SetMeterProvider(meterProvider)
	})
}

func TestZeroTelemetryShutdown(t *testing.T) {
	require.NoError(t, Telemetry{}.Shutdown(context.Background()))
}

func TestSetupExportsOnShutdown(t *testing.T) {
	restoreGlobalProviders(t)

	var mu sync.Mutex
	paths := map[string]int{}
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	tel, err := Setup(context.Background(), "uoa-collector-test", Config{
		Otlp: OtlpConfig{
			Traces:  OtlpConnConfig{HttpEndpoint: collector.URL + "/v1/traces"},
			Metrics: OtlpConnConfig{HttpEndpoint: collector.URL + "/v1/metrics"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, tel.TracerProvider)
	require.NotNil(t, tel.MeterProvider)

	_, span := otel.Tracer("test").Start(context.Background(), "collect")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("rows")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, tel.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Positive(t, paths["/v1/traces"])
	require.Positive(t, paths["/v1/metrics"])
}

func TestShutdownWithUnreachableCollectorReturns(t *testing.T) {
	restoreGlobalProviders(t)

	tel, err := Setup(context.Background(), "uoa-collector-test", Config{
		Otlp: OtlpConfig{
			Traces:  OtlpConnConfig{HttpEndpoint: "http://127.0.0.1:1/v1/traces"},
			Metrics: OtlpConnConfig{HttpEndpoint: "http://127.0.0.1:1/v1/metrics"},
		},
	})
	require.NoError(t, err)

	_, span := tel.TracerProvider.Tracer("test").Start(context.Background(), "collect")
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		// the export may fail, only the return matters here
		_ = tel.Shutdown(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not return")
	}
}
