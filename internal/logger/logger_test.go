package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONRespectsLevel(t *testing.T) {
	Init("warn", "json")
	var buf bytes.Buffer
	SetOutput(&buf)

	Info("hidden %d", 1)
	assert.Empty(t, buf.String())

	Warn("rows dropped: %d", 3)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "rows dropped: 3", entry["msg"])
}

func TestWithFields(t *testing.T) {
	Init("debug", "json")
	var buf bytes.Buffer
	SetOutput(&buf)

	WithFields(map[string]interface{}{"engine": "granger"}).Debug("done")
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "granger", entry["engine"])
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	assert.Equal(t, "info", parseLevel("verbose").String())
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
}
