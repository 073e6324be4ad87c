// ABOUTME: Store decorator that compresses blobs with zstd or lz4
// ABOUTME: Blobs carry a small header so the codec is detected on read

package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec names a blob compression algorithm
type Codec uint8

const (
	// CodecNone stores blobs as is (still framed)
	CodecNone Codec = 0
	// CodecLZ4 uses LZ4 block compression (fast)
	CodecLZ4 Codec = 1
	// CodecZstd uses zstd (better ratio for large index documents)
	CodecZstd Codec = 2
)

// Frame: [codec uint8][uncompressed size uint32 LE][payload]
const frameHeaderSize = 5

const (
	// an LZ4 block never expands by more than this factor
	lz4MaxRatio = 255
	// upper bound on the buffer preallocated from an untrusted header
	maxPrealloc = 64 << 20
)

// ParseCodec maps a config name to a Codec
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return CodecNone, fmt.Errorf("storage: unknown compression %q", name)
	}
}

func (c Codec) String() string {
	switch c {
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return "none"
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil)
}

// CompressedStore wraps a Store and compresses every blob it writes
type CompressedStore struct {
	inner Store
	codec Codec
}

// NewCompressedStore wraps inner with the given codec
func NewCompressedStore(inner Store, codec Codec) *CompressedStore {
	return &CompressedStore{inner: inner, codec: codec}
}

// Get reads and decompresses the blob under key
func (s *CompressedStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	out, err := decodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return out, nil
}

// Set compresses data and writes it under key
func (s *CompressedStore) Set(ctx context.Context, key string, data []byte) error {
	framed, err := encodeFrame(data, s.codec)
	if err != nil {
		return fmt.Errorf("compress %s: %w", key, err)
	}
	return s.inner.Set(ctx, key, framed)
}

// Delete removes key
func (s *CompressedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// List lists keys of the wrapped store
func (s *CompressedStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

func encodeFrame(data []byte, codec Codec) ([]byte, error) {
	var payload []byte
	switch codec {
	case CodecLZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			// incompressible
			codec = CodecNone
			payload = data
		} else {
			payload = buf[:n]
		}
	case CodecZstd:
		enc, err := getZstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		payload = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		codec = CodecNone
		payload = data
	}

	out := make([]byte, frameHeaderSize+len(payload))
	out[0] = byte(codec)
	binary.LittleEndian.PutUint32(out[1:], uint32(len(data)))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

func decodeFrame(data []byte) ([]byte, error) {
	if len(data) < frameHeaderSize {
		return nil, fmt.Errorf("%w: frame too small", ErrCorrupted)
	}
	size := binary.LittleEndian.Uint32(data[1:])
	payload := data[frameHeaderSize:]

	switch Codec(data[0]) {
	case CodecNone:
		if uint32(len(payload)) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupted)
		}
		return payload, nil
	case CodecLZ4:
		if uint64(size) > uint64(len(payload))*lz4MaxRatio+16 {
			return nil, fmt.Errorf("%w: declared size %d exceeds payload bound", ErrCorrupted, size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if uint32(n) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupted)
		}
		return out, nil
	case CodecZstd:
		dec, err := getZstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, make([]byte, 0, min(size, maxPrealloc)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if uint32(len(out)) != size {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupted)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unknown codec %d", ErrCorrupted, data[0])
	}
}
