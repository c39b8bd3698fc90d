package observability

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

func TestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	_, span := StartSpan(context.Background(), "parcel.Write", attribute.String("parcel.compression", "zstd"))
	span.SetAttribute("parcel.rows", int64(6))
	span.SetAttribute("parcel.row_groups", 1)
	span.End(nil)

	_, failed := StartSpan(context.Background(), "parcel.Read")
	failed.End(errors.New(errors.ErrorTypeCorruptContainer, "missing trailer magic"))

	ended := rec.Ended()
	require.Len(t, ended, 2)

	assert.Equal(t, "parcel.Write", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.Int64("parcel.rows", 6))
	assert.Contains(t, ended[0].Attributes(), attribute.String("parcel.compression", "zstd"))

	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Contains(t, ended[1].Attributes(), attribute.String("parcel.error_type", "corrupt_container"))
}

func TestInitTracing(t *testing.T) {
	shutdown, err := InitTracing(TracingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	cfg := DefaultTracingConfig()
	cfg.Enabled = true
	cfg.OutputPath = filepath.Join(t.TempDir(), "spans.json")
	shutdown, err = InitTracing(cfg)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "parcel.Write")
	span.End(nil)
	require.NoError(t, shutdown(context.Background()))
}
