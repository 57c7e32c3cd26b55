package logger

import (
	"bytes"
	"errors"
	stdlog "log"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetJSONWriter(&buf)
	prev := zerolog.GlobalLevel()
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(prev)
		SetConsoleWriter(os.Stderr, false)
	})
	return &buf
}

func TestSetLevel(t *testing.T) {
	captureJSON(t)
	for name, want := range map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		"verb":   zerolog.TraceLevel,
		"notice": zerolog.InfoLevel,
		"warn":   zerolog.WarnLevel,
		"silent": zerolog.Disabled,
	} {
		require.NoError(t, SetLevel(name), name)
		assert.Equal(t, want, zerolog.GlobalLevel(), name)
	}
	err := SetLevel("loud")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestFields(t *testing.T) {
	buf := captureJSON(t)
	require.NoError(t, SetLevel("debug"))

	Info("stream", "prod", "batch", 2, "block", 500*time.Millisecond, "subscribed")
	line := buf.String()
	assert.Equal(t, "INFO", gjson.Get(line, "severity").String())
	assert.Equal(t, "prod", gjson.Get(line, "stream").String())
	assert.Equal(t, int64(2), gjson.Get(line, "batch").Int())
	assert.Equal(t, "500ms", gjson.Get(line, "block").String())
	assert.Equal(t, "subscribed", gjson.Get(line, "message").String())
}

func TestErrorAndFormat(t *testing.T) {
	buf := captureJSON(t)
	require.NoError(t, SetLevel("info"))

	Error(errors.New("boom"), "read %s failed", "prod")
	line := buf.String()
	assert.Equal(t, "ERROR", gjson.Get(line, "severity").String())
	assert.Equal(t, "boom", gjson.Get(line, "error").String())
	assert.Equal(t, "read prod failed", gjson.Get(line, "message").String())
}

func TestDisabledLevel(t *testing.T) {
	buf := captureJSON(t)
	require.NoError(t, SetLevel("warn"))

	Debug("hidden")
	Notice("hidden")
	assert.Zero(t, buf.Len())

	Warn("shown")
	assert.NotZero(t, buf.Len())
}

func TestWriter(t *testing.T) {
	buf := captureJSON(t)
	require.NoError(t, SetLevel("debug"))

	stdlog.New(Writer, "", stdlog.LstdFlags).Print(`[W] container slow: image=redis:7 took="2 s"`)
	line := buf.String()
	assert.Equal(t, "WARN", gjson.Get(line, "severity").String())
	assert.Equal(t, "container slow", gjson.Get(line, "message").String())
	assert.Equal(t, "redis:7", gjson.Get(line, "image").String())
	assert.Equal(t, "2 s", gjson.Get(line, "took").String())

	buf.Reset()
	Writer.Write([]byte("[I] pulled 50% of layers"))
	assert.Equal(t, "pulled 50% of layers", gjson.Get(buf.String(), "message").String())

	buf.Reset()
	Writer.Write([]byte(`[I] pull at 50%: layer=3 rate="10%"`))
	line = buf.String()
	assert.Equal(t, "pull at 50%", gjson.Get(line, "message").String())
	assert.Equal(t, "3", gjson.Get(line, "layer").String())
	assert.Equal(t, "10%", gjson.Get(line, "rate").String())

	buf.Reset()
	Writer.Printf("started %s", "redis")
	assert.Equal(t, "started redis", gjson.Get(buf.String(), "message").String())

	buf.Reset()
	require.NoError(t, SetLevel("info"))
	Writer.Write([]byte("[D] hidden"))
	assert.Zero(t, buf.Len())
}
