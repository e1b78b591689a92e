package observability

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	require.Equal(t, zapcore.WarnLevel, parseLevel("WARNING"))
	require.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	require.Equal(t, zapcore.InfoLevel, parseLevel(""))
	require.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestLoggerFallsBackToNop(t *testing.T) {
	saved := CLILogger
	CLILogger = nil
	t.Cleanup(func() { CLILogger = saved })

	require.NotNil(t, Logger())
}

func TestInitCLILoggerVerboseEnablesDebug(t *testing.T) {
	saved := CLILogger
	t.Cleanup(func() { CLILogger = saved })

	InitCLILogger("info", "console", true)
	require.NotNil(t, CLILogger)
	require.True(t, CLILogger.Core().Enabled(zapcore.DebugLevel))
}

func TestCLIConfigEncoderSelection(t *testing.T) {
	require.Equal(t, "json", cliConfig("info", "json", false).Encoding)
	require.Equal(t, "console", cliConfig("info", "console", false).Encoding)
	require.Equal(t, "console", cliConfig("info", "", false).Encoding)
	require.Equal(t, "json", cliConfig("info", " JSON ", false).Encoding)
}
