package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"DEBUG":   DEBUG,
		"debug":   DEBUG,
		"Info":    INFO,
		"warning": WARN,
		"ERROR":   ERROR,
		"bogus":   INFO,
		"":        INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_FiltersByLevelAndWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: WARN, Output: &buf})
	require.NoError(t, err)

	l.Info("dropped")
	l.WithFields(F("component", "session")).Warn("kept", Err(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "WARN")
	assert.Contains(t, out, "kept | component=session error=boom")
}

func TestLogger_NilIsSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Info("nothing")
		l.WithFields(F("a", 1)).Error("still nothing")
		require.NoError(t, l.Close())
	})
}

func TestLogger_RotatesOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topia.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), 64), 0644))

	l, err := New(Config{Level: DEBUG, FilePath: path, MaxSize: 32, MaxBackups: 2})
	require.NoError(t, err)
	defer l.Close()

	_, err = os.Stat(path + ".1")
	require.NoError(t, err)

	l.Debug("fresh")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "fresh")
}
