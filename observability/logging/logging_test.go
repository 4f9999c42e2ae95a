package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerEmitsCanonicalKeys(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := newWithWriter(Config{Service: "dextherd", Env: "test", Level: "debug"}, &buf)
	logger.Debug("swap settled", "digest", "0xabc")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "swap settled", line["message"])
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "dextherd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, "0xabc", line["digest"])
	require.Contains(t, line, "timestamp")
}

func TestLoggerRespectsLevel(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := newWithWriter(Config{Service: "dextherd", Level: "warn"}, &buf)
	logger.Info("dropped")
	require.Zero(t, buf.Len())
	logger.Warn("kept")
	require.NotZero(t, buf.Len())
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewWithFileSink(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	path := filepath.Join(t.TempDir(), "dextherd.log")
	logger, closer := New(Config{Service: "dextherd", File: path})
	logger.Info("hello")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("authorization", "Bearer abc").Value.String())
	require.Equal(t, "0xabc", MaskField("digest", "0xabc").Value.String())
	require.Equal(t, "", MaskField("passphrase", "").Value.String())
	require.True(t, Sensitive("JWT_Secret"))
	require.False(t, Sensitive("relayer"))
}

func TestLoggerRedactsSensitiveKeys(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger := newWithWriter(Config{Service: "dextherd"}, &buf)
	logger.Info("receipts opened", "receipts_dsn", "postgres://u:p@db/dexther", "driver", "postgres")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, RedactedValue, line["receipts_dsn"])
	require.Equal(t, "postgres", line["driver"])
}
