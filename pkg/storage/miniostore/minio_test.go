package miniostore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/entitystore/pkg/storage"
)

// TestStoreIntegration requires a running MinIO instance.
// Skip if not available.
func TestStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := NewClient(Options{
		Endpoint:  endpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	s := NewStore(client, "entitystore-test", "it/")
	require.NoError(t, s.EnsureBucket(ctx))

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "attr-index", []byte(`{"index":{}}`)))
	got, err := s.Get(ctx, "attr-index")
	require.NoError(t, err)
	assert.Equal(t, `{"index":{}}`, string(got))

	keys, err := s.List(ctx, "attr-")
	require.NoError(t, err)
	assert.Contains(t, keys, "attr-index")

	require.NoError(t, s.Delete(ctx, "attr-index"))
	_, err = s.Get(ctx, "attr-index")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeyJoinsPrefix(t *testing.T) {
	s := NewStore(nil, "bucket", "root/")
	assert.Equal(t, "root/attr-index", s.key("attr-index"))

	s = NewStore(nil, "bucket", "")
	assert.Equal(t, "attr-index", s.key("attr-index"))
}
