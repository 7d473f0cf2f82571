package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New("debug", "json", &buf)
		require.NoError(t, err)

		log.Debug("switched database", "path", "/data/a.db")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "switched database", entry["msg"])
		assert.Equal(t, "/data/a.db", entry["path"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log, err := New("WARN", "text", &buf)
		require.NoError(t, err)

		log.Info("hidden")
		log.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := New("loud", "text", nil)
		assert.Error(t, err)

		_, err = New("info", "xml", nil)
		assert.Error(t, err)
	})
}
