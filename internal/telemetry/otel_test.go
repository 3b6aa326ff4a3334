package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vnmchuo/lms-assistant/config"
)

func TestInitTracer_None(t *testing.T) {
	shutdown, err := InitTracer("lms-assistant", &config.Config{OTELExporterType: "none"}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestInitTracer_Stdout(t *testing.T) {
	shutdown, err := InitTracer("lms-assistant", &config.Config{OTELExporterType: "stdout"}, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, shutdown)
	shutdown()
}
