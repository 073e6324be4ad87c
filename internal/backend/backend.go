// Package backend opens the storage backend named in the configuration and
// layers instrumentation and compression on top of it.
package backend

import (
	"context"
	"fmt"
	"io"

	"github.com/nainya/entitystore/internal/config"
	"github.com/nainya/entitystore/internal/logger"
	"github.com/nainya/entitystore/internal/metrics"
	"github.com/nainya/entitystore/pkg/storage"
	"github.com/nainya/entitystore/pkg/storage/badgerstore"
	"github.com/nainya/entitystore/pkg/storage/dynamostore"
	"github.com/nainya/entitystore/pkg/storage/miniostore"
	"github.com/nainya/entitystore/pkg/storage/sqlitestore"
)

// Backend is an opened, decorated store
type Backend struct {
	storage.Store
	Name   string
	closer io.Closer
}

// Close releases the underlying backend, if it holds resources
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Open opens cfg.Backend. Calls are instrumented against the raw backend and
// blobs are compressed with cfg.Compression before they reach it.
func Open(ctx context.Context, cfg config.StorageConfig, log *logger.Logger, m *metrics.Metrics) (*Backend, error) {
	if log == nil {
		log = logger.Nop()
	}
	codec, err := storage.ParseCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	raw, closer, err := openRaw(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}

	var store storage.Store = storage.NewInstrumentedStore(raw, cfg.Backend, log, m)
	if codec != storage.CodecNone {
		store = storage.NewCompressedStore(store, codec)
	}

	log.Info("storage backend opened").
		Str("backend", cfg.Backend).
		Str("compression", codec.String()).
		Send()

	return &Backend{Store: store, Name: cfg.Backend, closer: closer}, nil
}

func openRaw(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (storage.Store, io.Closer, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(), nil, nil

	case "file":
		s, err := storage.NewFileStore(cfg.Path)
		return s, nil, err

	case "badger":
		bcfg := badgerstore.DefaultConfig(cfg.Path)
		bcfg.Logger = log.Component("badger").GetZerolog()
		s, err := badgerstore.Open(bcfg)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case "sqlite":
		s, err := sqlitestore.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil

	case "minio":
		client, err := miniostore.NewClient(miniostore.Options{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Region:    cfg.Region,
			Secure:    cfg.Secure,
		})
		if err != nil {
			return nil, nil, err
		}
		s := miniostore.NewStore(client, cfg.Bucket, cfg.Prefix)
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		return s, nil, nil

	case "dynamodb":
		client, err := dynamostore.NewClient(ctx, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		return dynamostore.NewStore(client, cfg.Table), nil, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
