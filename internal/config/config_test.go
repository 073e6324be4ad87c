package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entitystore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
storage:
  backend: minio
  endpoint: localhost:9000
  bucket: indexes
  compression: zstd
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "minio", cfg.Storage.Backend)
	assert.Equal(t, "zstd", cfg.Storage.Compression)
	// untouched sections keep defaults
	assert.Equal(t, 50051, cfg.Server.Port)
	assert.Equal(t, "attribute-index", cfg.Index.Key)
}

func TestValidationFailures(t *testing.T) {
	cases := map[string]string{
		"bad level":       "log: {level: trace}",
		"bad port":        "server: {port: 70000}",
		"same ports":      "server: {port: 9090, metrics_port: 9090}",
		"negative rate":   "server: {rate_limit: -1}",
		"bad backend":     "storage: {backend: cassandra}",
		"bad compression": "storage: {compression: gzip}",
		"file needs path": "storage: {backend: file, path: ''}",
		"minio bucket":    "storage: {backend: minio, endpoint: 'x:9000'}",
		"dynamodb table":  "storage: {backend: dynamodb}",
		"empty index key": "index: {key: ''}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := Default()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.Path = "/var/lib/entitystore/index.db"
	require.NoError(t, Write(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
