package signals

import (
	"testing"

	"gridbot/internal/logging"

	"github.com/stretchr/testify/require"
)

func TestSentimentGateNeverVetoesBeforeFirstReading(t *testing.T) {
	logger, err := logging.NewZapLogger("ERROR")
	require.NoError(t, err)
	g := NewSentimentGate(logger)
	require.False(t, g.ExtremeFear(20))

	value, ok := g.Value()
	require.False(t, ok)
	require.Equal(t, 0, value)
}
