package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := NewTracerProvider(context.Background(), Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Provider())
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestNewSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), newSampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), newSampler(0).Description())
	assert.Contains(t, newSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestStartServiceSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartServiceSpan(context.Background(), "invoicing", "submit",
		SpanAttrDocName, "FE-FAC-A-00001-00000001",
		SpanAttrPointOfSale, 1,
	)
	err := RecordError(span, errors.New("boom"))
	span.End()

	assert.EqualError(t, err, "boom")
	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "invoicing.submit", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Attributes(), 2)

	assert.NoError(t, RecordError(span, nil))
}

func TestHTTPMetrics(t *testing.T) {
	reg := NewRegistry()
	m, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	done := m.Start()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inFlight))
	done("GET", "/api/v1/ping", "200")

	assert.Equal(t, float64(0), testutil.ToFloat64(m.inFlight))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/v1/ping", "200")))

	_, err = NewHTTPMetrics(reg)
	assert.Error(t, err)
}

func TestBusinessMetrics(t *testing.T) {
	reg := NewRegistry()
	bm, err := NewBusinessMetrics(reg)
	require.NoError(t, err)

	bm.RecordLogin("success")
	bm.RecordVoucher("created", "A")
	bm.RecordVoucher("created", "A")
	bm.RecordPurchaseInvoice("duplicate")
	bm.RecordReconciliations("created", 3)
	bm.RecordReconciliations("created", 0)
	bm.RecordArchived()

	assert.Equal(t, float64(2), testutil.ToFloat64(bm.vouchers.WithLabelValues("created", "A")))
	assert.Equal(t, float64(3), testutil.ToFloat64(bm.reconciliations.WithLabelValues("created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(bm.archived))

	var nilMetrics *BusinessMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordLogin("failure")
		nilMetrics.RecordArchived()
	})
}
