package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter("info", "json", &buf)
	require.NoError(t, err)

	l.Info("pushed diagram", zap.String("diagram_id", "d1"))
	require.NoError(t, l.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "pushed diagram", line["message"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "d1", line["diagram_id"])
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter("warn", "console", &buf)
	require.NoError(t, err)

	l.Info("dropped")
	l.Warn("kept")
	_ = l.Sync()

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_InvalidInput(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := zap.NewExample()
	assert.Same(t, l, OrNop(l))
}
