package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/entitystore/internal/config"
	"github.com/nainya/entitystore/internal/metrics"
	"github.com/nainya/entitystore/pkg/attrindex"
	"github.com/nainya/entitystore/pkg/storage"
	"github.com/nainya/entitystore/pkg/value"
)

func TestOpenLocalBackends(t *testing.T) {
	dir := t.TempDir()
	cases := []config.StorageConfig{
		{Backend: "memory", Compression: "none"},
		{Backend: "file", Path: filepath.Join(dir, "files"), Compression: "lz4"},
		{Backend: "badger", Path: filepath.Join(dir, "badger"), Compression: "zstd"},
		{Backend: "sqlite", Path: filepath.Join(dir, "index.db"), Compression: "none"},
	}

	for _, cfg := range cases {
		t.Run(cfg.Backend, func(t *testing.T) {
			ctx := context.Background()
			m := metrics.NewMetrics(prometheus.NewRegistry())

			b, err := Open(ctx, cfg, nil, m)
			require.NoError(t, err)
			defer b.Close()
			assert.Equal(t, cfg.Backend, b.Name)

			ix := attrindex.New(b)
			require.NoError(t, ix.AddAttribute("e1", "type", value.Text("function")))
			require.NoError(t, ix.Save(ctx, attrindex.DefaultKey))

			fresh := attrindex.New(b)
			require.NoError(t, fresh.Load(ctx, attrindex.DefaultKey))
			ids, err := fresh.FindByAttribute("type", value.Text("function"))
			require.NoError(t, err)
			assert.Equal(t, []string{"e1"}, ids)

			assert.Equal(t, float64(1),
				testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues(cfg.Backend, "set", "success")))
		})
	}
}

func TestCompressionAppliesBeforeBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(ctx, config.StorageConfig{Backend: "file", Path: dir, Compression: "zstd"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, "k", []byte("payload")))

	raw, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	data, err := raw.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, byte(storage.CodecZstd), data[0])
}

func TestOpenRejectsUnknown(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "tape"}, nil, nil)
	assert.Error(t, err)

	_, err = Open(context.Background(), config.StorageConfig{Backend: "memory", Compression: "brotli"}, nil, nil)
	assert.Error(t, err)
}
