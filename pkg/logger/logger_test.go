package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"DEBUG": zapcore.DebugLevel,
		"trace": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"ERROR": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
		"bogus": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestPlatformLogPathsUsesXDGState(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")
	paths := PlatformLogPaths()
	assert.Equal(t, "/var/log/honeydash/honeydash.log", paths[0])
	assert.Contains(t, paths, "/tmp/xdg-state/honeydash/honeydash.log")
	assert.Equal(t, "/tmp/honeydash/honeydash.log", paths[len(paths)-1])
}

func TestGenerateTraceID(t *testing.T) {
	id := GenerateTraceID()
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, GenerateTraceID())
}
