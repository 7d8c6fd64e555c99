package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(New(&buf))
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	return &buf
}

func TestInfo(t *testing.T) {
	buf := capture(t)

	Info("test message", "user_id", 42)

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.Contains(t, output, `"user_id":42`)
	assert.Contains(t, output, `"level":"info"`)
}

func TestInfoOddPairs(t *testing.T) {
	buf := capture(t)

	Info("odd", "dangling")

	assert.Contains(t, buf.String(), "MISSING")
}

func TestError(t *testing.T) {
	buf := capture(t)

	Errorf("test %s", "error")

	output := buf.String()
	assert.Contains(t, output, "test error")
	assert.Contains(t, output, `"level":"error"`)
}

func TestDebug(t *testing.T) {
	buf := capture(t)

	Debugf("test %s", "debug")

	assert.Contains(t, buf.String(), "test debug")
}

func TestSetLevelFiltersDebug(t *testing.T) {
	buf := capture(t)
	SetLevel("info")

	Debug("hidden")

	assert.NotContains(t, buf.String(), "hidden")
}

func TestWithError(t *testing.T) {
	buf := capture(t)

	WithError(errors.New("boom")).Info("test with error")

	output := buf.String()
	assert.Contains(t, output, "test with error")
	assert.Contains(t, output, "boom")
}

func TestWithFields(t *testing.T) {
	buf := capture(t)

	WithFields(map[string]any{"key1": "value1", "key2": 123}).WithField("key3", true).Warn("test with fields")

	output := buf.String()
	assert.Contains(t, output, "test with fields")
	assert.Contains(t, output, `"key1":"value1"`)
	assert.Contains(t, output, `"key2":123`)
	assert.Contains(t, output, `"key3":true`)
}
