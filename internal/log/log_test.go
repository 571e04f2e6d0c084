package log

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLog_WritesCategoryAndFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(Reset)

	Debug(CatRender, "rendered fragment", "refs", 2, "bytes", 40)

	out := buf.String()
	require.Contains(t, out, "[DEBUG] [render] rendered fragment refs=2 bytes=40")
	require.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestLog_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelWarn)
	t.Cleanup(Reset)

	Debug(CatRegistry, "hidden")
	Info(CatRegistry, "hidden too")
	Warn(CatRegistry, "visible")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "[WARN] [registry] visible")
}

func TestLog_DisabledWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(Reset)

	SetEnabled(false)
	Error(CatLoader, "dropped")
	require.Empty(t, buf.String())

	SetEnabled(true)
	Error(CatLoader, "kept")
	require.Contains(t, buf.String(), "kept")
}

func TestLog_OddFieldsAndErrors(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)
	t.Cleanup(Reset)

	Info(CatConfig, "odd", "orphan")
	ErrorErr(CatConfig, "failed", errors.New("boom"), "path", "a.json")
	ErrorErr(CatConfig, "nil error", nil)

	out := buf.String()
	require.Contains(t, out, "orphan=<missing>")
	require.Contains(t, out, "path=a.json error=boom")
	require.Contains(t, out, "error=<nil>")
}

func TestLog_NoLoggerIsSafe(t *testing.T) {
	Reset()
	require.NotPanics(t, func() {
		Debug(CatLexer, "nobody listening")
		SetEnabled(true)
		SetMinLevel(LevelError)
	})
}

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	cleanup, err := Init(path)
	require.NoError(t, err)
	t.Cleanup(Reset)

	Info(CatWatcher, "to file")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "[INFO] [watcher] to file")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, LevelInfo, ParseLevel("INFO"))
	require.Equal(t, LevelWarn, ParseLevel("warning"))
	require.Equal(t, LevelError, ParseLevel("error"))
	require.Equal(t, LevelDebug, ParseLevel("anything"))
}
