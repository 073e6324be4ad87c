// ABOUTME: Tests for the in-memory, file and decorator stores
// ABOUTME: Shared conformance checks run against every local backend

package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/entitystore/internal/metrics"
)

// RunConformance exercises the Store contract against s
func runConformance(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "index/main", []byte(`{"a":1}`)))
	require.NoError(t, s.Set(ctx, "index/backup", []byte("second")))
	require.NoError(t, s.Set(ctx, "other", []byte("third")))

	data, err := s.Get(ctx, "index/main")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), data)

	// overwrite
	require.NoError(t, s.Set(ctx, "index/main", []byte("replaced")))
	data, err = s.Get(ctx, "index/main")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), data)

	keys, err := s.List(ctx, "index/")
	require.NoError(t, err)
	assert.Equal(t, []string{"index/backup", "index/main"}, keys)

	require.NoError(t, s.Delete(ctx, "index/backup"))
	require.NoError(t, s.Delete(ctx, "index/backup"))
	_, err = s.Get(ctx, "index/backup")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, s.Set(ctx, "", []byte("x")), ErrInvalidKey)
}

func TestMemoryStoreConformance(t *testing.T) {
	runConformance(t, NewMemoryStore())
}

func TestMemoryStoreCopiesBlobs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	buf := []byte("original")
	require.NoError(t, s.Set(ctx, "k", buf))
	buf[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	got[0] = 'Y'
	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "original", string(again))
}

func TestFileStoreConformance(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	runConformance(t, s)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "a/b c", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasPrefix(entries[0].Name(), ".tmp-"))
	assert.FileExists(t, filepath.Join(dir, entries[0].Name()))
}

func TestCompressedStoreConformance(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			runConformance(t, NewCompressedStore(NewMemoryStore(), codec))
		})
	}
}

func TestCompressedStoreShrinksRepetitiveBlobs(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	s := NewCompressedStore(inner, CodecZstd)

	blob := bytes.Repeat([]byte(`{"type":"function","language":"go"}`), 500)
	require.NoError(t, s.Set(ctx, "doc", blob))

	raw, err := inner.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Less(t, len(raw), len(blob)/4)

	got, err := s.Get(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestCompressedStoreRejectsUnframedBlob(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	require.NoError(t, inner.Set(ctx, "doc", []byte{0x09, 0, 0, 0, 0, 1}))
	require.NoError(t, inner.Set(ctx, "short", []byte{1}))

	s := NewCompressedStore(inner, CodecLZ4)
	_, err := s.Get(ctx, "doc")
	assert.ErrorIs(t, err, ErrCorrupted)
	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestDecodeFrameRejectsOversizedHeader(t *testing.T) {
	for _, codec := range []Codec{CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			frame := []byte{byte(codec), 0xff, 0xff, 0xff, 0xff}
			_, err := decodeFrame(frame)
			assert.ErrorIs(t, err, ErrCorrupted)

			frame = append(frame, 'x', 'y', 'z')
			_, err = decodeFrame(frame)
			assert.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestEncodeFrameRoundTripsEachCodec(t *testing.T) {
	data := bytes.Repeat([]byte("entity-attribute "), 200)
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			frame, err := encodeFrame(data, codec)
			require.NoError(t, err)
			out, err := decodeFrame(frame)
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("zstd")
	require.NoError(t, err)
	assert.Equal(t, CodecZstd, c)

	c, err = ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecNone, c)

	_, err = ParseCodec("gzip")
	assert.Error(t, err)
}

func TestInstrumentedStoreRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	s := NewInstrumentedStore(NewMemoryStore(), "memory", nil, m)

	runConformance(t, s)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("memory", "set", "error")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("memory", "set", "success")))
	// not-found lookups count as successful calls
	assert.Equal(t, float64(0), testutil.ToFloat64(m.StorageOperationsTotal.WithLabelValues("memory", "get", "error")))

	require.NoError(t, s.Set(ctx, "sized", make([]byte, 10)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.StorageBytesWritten), float64(10))
}
