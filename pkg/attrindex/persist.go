// ABOUTME: Snapshot persistence of the attribute index through a storage.Store
// ABOUTME: Load validates the whole document before replacing in-memory state

package attrindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/nainya/entitystore/pkg/storage"
	"github.com/nainya/entitystore/pkg/value"
)

// DefaultKey is the storage key used when none is configured
const DefaultKey = "attribute-index"

// document is the persisted form:
//
//	{"index": {attr: {valueKey: [ids]}}, "entityAttributes": {id: [attrs]}}
type document struct {
	Index            map[string]map[string][]string `json:"index"`
	EntityAttributes map[string][]string            `json:"entityAttributes"`
}

func (ix *Index) checkStore(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty storage key", ErrInvalidArgument)
	}
	if ix.store == nil {
		return fmt.Errorf("%w: no store configured", ErrStorageFailure)
	}
	return nil
}

// Save writes a snapshot of the index under key
func (ix *Index) Save(ctx context.Context, key string) (err error) {
	start := time.Now()
	entities := 0
	defer func() { ix.observe("save", start, entities, err) }()

	if err := ix.checkStore(key); err != nil {
		return err
	}

	ix.mu.RLock()
	doc := ix.st.document()
	entities = len(ix.st.reverse)
	ix.mu.RUnlock()

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode index document: %w", err)
	}
	if err := ix.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("%w: save %q: %w", ErrStorageFailure, key, err)
	}
	return nil
}

// Load replaces the index with the snapshot stored under key. A missing key
// yields an empty index. On any error the current state is left untouched.
func (ix *Index) Load(ctx context.Context, key string) (err error) {
	start := time.Now()
	entities := 0
	defer func() { ix.observe("load", start, entities, err) }()

	if err := ix.checkStore(key); err != nil {
		return err
	}

	data, err := ix.store.Get(ctx, key)
	var st *state
	switch {
	case errors.Is(err, storage.ErrNotFound):
		st = newState()
	case errors.Is(err, storage.ErrCorrupted):
		return fmt.Errorf("%w: load %q: %w", ErrInvalidDataStructure, key, err)
	case err != nil:
		return fmt.Errorf("%w: load %q: %w", ErrStorageFailure, key, err)
	default:
		st, err = decodeDocument(data)
		if err != nil {
			return fmt.Errorf("load %q: %w", key, err)
		}
	}

	ix.mu.Lock()
	ix.st = st
	entities = len(st.reverse)
	ix.publishStats()
	ix.mu.Unlock()
	return nil
}

func (s *state) document() document {
	doc := document{
		Index:            make(map[string]map[string][]string, len(s.forward)),
		EntityAttributes: make(map[string][]string, len(s.reverse)),
	}
	for attr, buckets := range s.forward {
		out := make(map[string][]string, len(buckets))
		for key, b := range buckets {
			out[key] = s.dict.resolve(b.ids)
		}
		doc.Index[attr] = out
	}
	for id, attrs := range s.reverse {
		names := make([]string, 0, len(attrs))
		for name := range attrs {
			names = append(names, name)
		}
		slices.Sort(names)
		doc.EntityAttributes[id] = names
	}
	return doc
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDataStructure, fmt.Sprintf(format, args...))
}

func isNullJSON(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// decodeDocument parses and cross-checks a persisted document into a fresh state
func decodeDocument(data []byte) (*state, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, invalid("not a JSON object: %v", err)
	}
	for _, field := range []string{"index", "entityAttributes"} {
		if r, ok := raw[field]; !ok || isNullJSON(r) {
			return nil, invalid("missing %q", field)
		}
	}

	var doc document
	if err := json.Unmarshal(raw["index"], &doc.Index); err != nil {
		return nil, invalid("index: %v", err)
	}
	if err := json.Unmarshal(raw["entityAttributes"], &doc.EntityAttributes); err != nil {
		return nil, invalid("entityAttributes: %v", err)
	}

	st := newState()
	for attr, buckets := range doc.Index {
		if attr == "" {
			return nil, invalid("empty attribute name")
		}
		seen := make(map[string]struct{})
		for key, ids := range buckets {
			v, err := value.ParseKey(key)
			if err != nil {
				return nil, invalid("attribute %q: %v", attr, err)
			}
			if value.Key(v) != key {
				return nil, invalid("attribute %q: value key %q is not canonical", attr, key)
			}
			for _, id := range ids {
				if id == "" {
					return nil, invalid("attribute %q: empty entity id", attr)
				}
				if _, dup := seen[id]; dup {
					return nil, invalid("entity %q holds more than one value of %q", id, attr)
				}
				seen[id] = struct{}{}
				st.add(id, attr, key, v)
			}
		}
	}

	if len(doc.EntityAttributes) != len(st.reverse) {
		return nil, invalid("entityAttributes lists %d entities, index holds %d",
			len(doc.EntityAttributes), len(st.reverse))
	}
	for id, attrs := range doc.EntityAttributes {
		derived, ok := st.reverse[id]
		if !ok {
			return nil, invalid("entity %q has no indexed attributes", id)
		}
		listed := make(map[string]struct{}, len(attrs))
		for _, a := range attrs {
			if _, ok := derived[a]; !ok {
				return nil, invalid("entity %q lists attribute %q missing from index", id, a)
			}
			listed[a] = struct{}{}
		}
		if len(listed) != len(attrs) || len(listed) != len(derived) {
			return nil, invalid("entity %q attribute list disagrees with index", id)
		}
	}
	return st, nil
}
