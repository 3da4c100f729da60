package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/riyakasaudhan20/sync-clip/internal/config"
)

func TestInitTelemetryDisabled(t *testing.T) {
	cfg := config.Config{
		Service: &config.ServiceConfig{Name: "sync-clip", Env: "test"},
		Tracer:  &config.TracerConfig{Enabled: false},
	}

	shutdown, err := InitTelemetry(context.Background(), cfg)

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
	assert.ElementsMatch(t,
		[]string{"traceparent", "tracestate", "baggage"},
		otel.GetTextMapPropagator().Fields(),
	)
}
