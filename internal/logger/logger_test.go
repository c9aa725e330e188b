package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestLoggerWritesKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.DebugLevel).With("component", "relay")

	l.Info("调用完成", "path", "/api/sns/web/v1/feed", "attempt", 2)

	line := buf.Bytes()
	require.True(t, gjson.ValidBytes(line))
	assert.Equal(t, "调用完成", gjson.GetBytes(line, "message").String())
	assert.Equal(t, "relay", gjson.GetBytes(line, "component").String())
	assert.Equal(t, "/api/sns/web/v1/feed", gjson.GetBytes(line, "path").String())
	assert.Equal(t, int64(2), gjson.GetBytes(line, "attempt").Int())
}

func TestLoggerErrIncludesError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	l.Err(errors.New("boom"), "调用失败")

	assert.Equal(t, "boom", gjson.GetBytes(buf.Bytes(), "error").String())
	assert.Equal(t, "error", gjson.GetBytes(buf.Bytes(), "level").String())
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)

	l.Debug("忽略")
	l.Info("忽略")
	assert.Zero(t, buf.Len())

	l.Warn("保留")
	assert.NotZero(t, buf.Len())
}

func TestNopDiscards(t *testing.T) {
	l := NewNop()
	l.Info("nothing", "k", "v")
	l.With("a", 1).Err(errors.New("x"), "nothing")
}
