package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerDefaults(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)

	assert.True(t, logger.Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Enabled(zapcore.DebugLevel))
	assert.NoError(t, logger.Sync())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(*Config) {}},
		{name: "console format valid", mutate: func(c *Config) { c.Format = "console" }},
		{name: "bad format", mutate: func(c *Config) { c.Format = "xml" }, wantErr: true},
		{name: "no outputs", mutate: func(c *Config) { c.Stdout = false; c.OTEL = false }, wantErr: true},
		{name: "empty field key", mutate: func(c *Config) { c.Fields = map[string]string{"": "x"} }, wantErr: true},
		{name: "empty field value", mutate: func(c *Config) { c.Fields = map[string]string{"env": ""} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, level)

	level, err = ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerContextMethods(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithSessionID(context.Background(), "session-42")

	tl.Info(ctx, "stored thoughts", zap.Int("count", 3))

	tl.AssertLogged(t, zapcore.InfoLevel, "stored thoughts")
	tl.AssertField(t, "stored thoughts", "session.id", "session-42")
}

func TestLoggerNamedAndWith(t *testing.T) {
	tl := NewTestLogger()
	child := tl.Named("pipeline").With(zap.String("component", "ingest"))

	child.Warn(context.Background(), "linear fallback engaged")

	entries := tl.FilterMessage("linear fallback engaged").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pipeline", entries[0].LoggerName)
}
