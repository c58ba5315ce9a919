package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestSetup_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := Setup(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("statement failed", "table", "users")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "statement failed")
	assert.Contains(t, out, "table=users")
}

func TestSetup_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := Setup(Options{Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("opened", "path", "app.db")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
	assert.Contains(t, buf.String(), `"path":"app.db"`)

	_, _, err = Setup(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestMultiHandler_FansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	assert.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(h).With("session", "s1").WithGroup("stmt")
	logger.Debug("executed", "kind", "SELECT")

	assert.Contains(t, a.String(), "session=s1")
	assert.Contains(t, a.String(), "stmt.kind=SELECT")
	assert.Empty(t, b.String())
}

func TestDiscard(t *testing.T) {
	assert.False(t, Discard().Enabled(context.Background(), slog.LevelError))
}
