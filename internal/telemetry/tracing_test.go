package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupAndShutdown(t *testing.T) {
	tr, err := Setup("gridbot-test")
	require.NoError(t, err)
	require.NotNil(t, tr)

	tracer := GetTracer("gridbot-test")
	_, span := tracer.Start(context.Background(), "unit-test-span")
	span.End()

	require.NoError(t, tr.Shutdown(context.Background()))
}
