package attrindex

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/entitystore/pkg/storage"
	"github.com/nainya/entitystore/pkg/value"
)

// failingStore fails every call
type failingStore struct{}

var errBackend = errors.New("backend unavailable")

func (failingStore) Get(context.Context, string) ([]byte, error)   { return nil, errBackend }
func (failingStore) Set(context.Context, string, []byte) error     { return errBackend }
func (failingStore) Delete(context.Context, string) error          { return errBackend }
func (failingStore) List(context.Context, string) ([]string, error) { return nil, errBackend }

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	src := New(store)
	add := func(e, a string, v value.Value) { require.NoError(t, src.AddAttribute(e, a, v)) }
	add("e1", "type", value.Text("function"))
	add("e1", "line", value.Number(12))
	add("e1", "exported", value.Bool(true))
	add("e2", "type", value.Text("module"))
	add("e2", "line", value.Text("12"))
	add("e2", "loc", value.NewMap(value.F("file", value.Text("a<b>.go")), value.F("col", value.Number(-0.5))))
	add("e3", "tags", value.List{value.Text("x"), value.Null{}})
	require.NoError(t, src.Save(ctx, DefaultKey))

	dst := New(store)
	require.NoError(t, dst.Load(ctx, DefaultKey))

	assert.Equal(t, src.Statistics(), dst.Statistics())
	for _, attr := range []string{"type", "line", "exported", "loc", "tags"} {
		want, err := src.FindByAttributeExists(attr)
		require.NoError(t, err)
		got, err := dst.FindByAttributeExists(attr)
		require.NoError(t, err)
		assert.Equal(t, want, got, attr)
	}
	for _, e := range []string{"e1", "e2", "e3"} {
		for _, f := range src.Attributes(e) {
			ids, err := dst.FindByAttribute(f.Key, f.Value)
			require.NoError(t, err)
			assert.Contains(t, ids, e)
		}
	}

	ids, err := dst.FindByAttribute("line", value.Number(12))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids)
	checkInvariants(t, dst)
}

func TestSaveDocumentShape(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	ix := New(store)
	require.NoError(t, ix.AddAttribute("e1", "type", value.Text("function")))
	require.NoError(t, ix.AddAttribute("e2", "type", value.Text("function")))
	require.NoError(t, ix.AddAttribute("e2", "line", value.Number(3)))
	require.NoError(t, ix.Save(ctx, "k"))

	data, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"index": {
			"type": {"\"function\"": ["e1", "e2"]},
			"line": {"3": ["e2"]}
		},
		"entityAttributes": {"e1": ["type"], "e2": ["line", "type"]}
	}`, string(data))
}

func TestLoadMissingKeyYieldsEmptyIndex(t *testing.T) {
	ix := New(storage.NewMemoryStore())
	require.NoError(t, ix.AddAttribute("e", "a", value.Bool(true)))

	require.NoError(t, ix.Load(context.Background(), "never-saved"))
	assert.Equal(t, Statistics{}, ix.Statistics())
}

func TestLoadRejectsInvalidDocuments(t *testing.T) {
	docs := map[string]string{
		"not json":             `{"index":`,
		"not an object":        `[1,2]`,
		"missing index":        `{"entityAttributes":{}}`,
		"null entity map":      `{"index":{},"entityAttributes":null}`,
		"wrong index type":     `{"index":[],"entityAttributes":{}}`,
		"bad value key":        `{"index":{"a":{"not-json":["e"]}},"entityAttributes":{"e":["a"]}}`,
		"non-canonical key":    `{"index":{"a":{"1.0":["e"]}},"entityAttributes":{"e":["a"]}}`,
		"two values":           `{"index":{"a":{"1":["e"],"2":["e"]}},"entityAttributes":{"e":["a"]}}`,
		"empty entity id":      `{"index":{"a":{"1":[""]}},"entityAttributes":{"":["a"]}}`,
		"reverse missing attr": `{"index":{"a":{"1":["e"]},"b":{"1":["e"]}},"entityAttributes":{"e":["a"]}}`,
		"reverse extra attr":   `{"index":{"a":{"1":["e"]}},"entityAttributes":{"e":["a","b"]}}`,
		"reverse extra entity": `{"index":{"a":{"1":["e"]}},"entityAttributes":{"e":["a"],"f":["a"]}}`,
		"duplicate attr":       `{"index":{"a":{"1":["e"]},"b":{"1":["e"]}},"entityAttributes":{"e":["a","a"]}}`,
	}

	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(ctx, "k", []byte(doc)))

			ix := New(store)
			require.NoError(t, ix.AddAttribute("keep", "me", value.Text("yes")))
			before := ix.Statistics()

			err := ix.Load(ctx, "k")
			assert.ErrorIs(t, err, ErrInvalidDataStructure)
			// all-or-nothing
			assert.Equal(t, before, ix.Statistics())
			assert.True(t, ix.HasEntity("keep"))
		})
	}
}

func TestLoadAcceptsHandWrittenDocument(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	doc := map[string]any{
		"index": map[string]any{
			"type": map[string][]string{`"function"`: {"e1", "e3"}, `"module"`: {"e2"}},
		},
		"entityAttributes": map[string][]string{"e1": {"type"}, "e2": {"type"}, "e3": {"type"}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", data))

	ix := New(store)
	require.NoError(t, ix.Load(ctx, "k"))
	ids, err := ix.FindByAttribute("type", value.Text("function"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1", "e3"}, ids)
}

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()
	ix := New(failingStore{})
	require.NoError(t, ix.AddAttribute("e", "a", value.Number(1)))

	err := ix.Save(ctx, "k")
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, errBackend)

	err = ix.Load(ctx, "k")
	assert.ErrorIs(t, err, ErrStorageFailure)
	assert.True(t, ix.HasEntity("e"))

	assert.ErrorIs(t, New(nil).Save(ctx, "k"), ErrStorageFailure)
	assert.ErrorIs(t, ix.Save(ctx, ""), ErrInvalidArgument)
}

func TestLoadThroughCompressedStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewCompressedStore(storage.NewMemoryStore(), storage.CodecZstd)

	src := New(store)
	require.NoError(t, src.AddAttribute("e1", "lang", value.Text("go")))
	require.NoError(t, src.Save(ctx, DefaultKey))

	dst := New(store)
	require.NoError(t, dst.Load(ctx, DefaultKey))
	ids, err := dst.FindByAttribute("lang", value.Text("go"))
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, ids)
}

func TestLoadCorruptFrameIsInvalidData(t *testing.T) {
	ctx := context.Background()
	raw := storage.NewMemoryStore()
	require.NoError(t, raw.Set(ctx, DefaultKey, []byte{0x7f, 0, 0, 0, 1, 'x'}))

	ix := New(storage.NewCompressedStore(raw, storage.CodecZstd))
	require.NoError(t, ix.AddAttribute("e", "a", value.Number(1)))

	err := ix.Load(ctx, DefaultKey)
	assert.ErrorIs(t, err, ErrInvalidDataStructure)
	assert.ErrorIs(t, err, storage.ErrCorrupted)
	assert.True(t, ix.HasEntity("e"))
}

func TestSaveLoadNonASCII(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	src := New(store)
	require.NoError(t, src.AddAttribute("café", "名前", value.Text("naïve ✓")))
	require.NoError(t, src.AddAttribute("café", "meta", value.NewMap(value.F("ключ", value.Text("значение")))))
	require.NoError(t, src.Save(ctx, DefaultKey))

	dst := New(store)
	require.NoError(t, dst.Load(ctx, DefaultKey))
	assert.Equal(t, src.Attributes("café"), dst.Attributes("café"))
	checkInvariants(t, dst)
}
