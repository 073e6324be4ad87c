package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("info"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("bogus"))
}

func TestGrpcRequestFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(Config{Level: "info", Output: buf})

	log.LogGrpcRequest("/entitystore.v1.EntityStore/Query", "req-1", 5*time.Millisecond, nil)
	entry := decodeLine(t, buf)

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "entitystore", entry["service"])
	assert.Equal(t, "grpc", entry["component"])
	assert.Equal(t, "/entitystore.v1.EntityStore/Query", entry["method"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestErrorsRaiseLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(Config{Level: "info", Output: buf})

	log.LogStorageOperation("file", "get", "attribute-index", time.Millisecond, errors.New("disk gone"))
	entry := decodeLine(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "disk gone", entry["error"])
	assert.Equal(t, "file", entry["backend"])
}

func TestLevelFiltersDebug(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(Config{Level: "info", Output: buf})

	log.LogIndexOperation("add", time.Millisecond, 1, nil)
	log.LogQuery(time.Millisecond, 10, 5, 2)
	assert.Zero(t, buf.Len())

	log = NewLogger(Config{Level: "debug", Output: buf})
	log.LogQuery(time.Millisecond, 10, 5, 2)
	entry := decodeLine(t, buf)
	assert.Equal(t, float64(10), entry["scanned"])
	assert.Equal(t, float64(2), entry["returned"])
}

func TestComponentAndFields(t *testing.T) {
	buf := &bytes.Buffer{}
	log := NewLogger(Config{Level: "info", Output: buf}).
		Component("attrindex").
		WithFields(map[string]interface{}{"key": "attribute-index"})

	log.Info("loaded").Int("entities", 3).Send()
	entry := decodeLine(t, buf)
	assert.Equal(t, "attrindex", entry["component"])
	assert.Equal(t, "attribute-index", entry["key"])
	assert.Equal(t, "loaded", entry["msg"])
	assert.Equal(t, float64(3), entry["entities"])
}

func TestNopDiscards(t *testing.T) {
	log := Nop()
	log.LogServerStart(50051, "memory")
	log.Error("ignored").Send()
}
