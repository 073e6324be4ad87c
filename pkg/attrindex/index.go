// ABOUTME: Inverted attribute index mapping entity ids to typed attribute values
// ABOUTME: Forward buckets hold roaring bitmaps; reverse map tracks each entity's attributes

// Package attrindex implements an in-memory inverted index from (attribute, value)
// pairs to entity identifiers, with compound queries and snapshot persistence
// through a storage.Store.
package attrindex

import (
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/nainya/entitystore/internal/logger"
	"github.com/nainya/entitystore/internal/metrics"
	"github.com/nainya/entitystore/pkg/storage"
	"github.com/nainya/entitystore/pkg/value"
)

// bucket holds the entities carrying one value of one attribute
type bucket struct {
	value value.Value
	ids   *roaring.Bitmap
}

// state is everything Load replaces in one swap
type state struct {
	// attribute -> value key -> bucket
	forward map[string]map[string]*bucket
	// entity -> attribute -> value key
	reverse map[string]map[string]string
	dict    *dictionary
}

func newState() *state {
	return &state{
		forward: make(map[string]map[string]*bucket),
		reverse: make(map[string]map[string]string),
		dict:    newDictionary(),
	}
}

// Index is the attribute index. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	st      *state
	store   storage.Store
	log     *logger.Logger
	metrics *metrics.Metrics
}

// Option configures an Index
type Option func(*Index)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.log = l.Component("attrindex")
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Index) { ix.metrics = m }
}

// New creates an empty index persisting through store. store may be nil for
// an index that is never saved or loaded.
func New(store storage.Store, opts ...Option) *Index {
	ix := &Index{
		st:    newState(),
		store: store,
		log:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

func (ix *Index) observe(op string, start time.Time, entities int, err error) {
	d := time.Since(start)
	ix.metrics.RecordIndexOperation(op, err, d)
	ix.log.LogIndexOperation(op, d, entities, err)
}

// publishStats must be called with the lock held
func (ix *Index) publishStats() {
	if ix.metrics == nil {
		return
	}
	s := ix.st.statistics()
	ix.metrics.UpdateIndexStats(s.TotalEntities, s.TotalAttributes, s.TotalAssociations)
}

func validateAssociation(entityID, attribute string) error {
	if entityID == "" {
		return fmt.Errorf("%w: empty entity id", ErrInvalidArgument)
	}
	if attribute == "" {
		return fmt.Errorf("%w: empty attribute name", ErrInvalidArgument)
	}
	if !utf8.ValidString(entityID) {
		return fmt.Errorf("%w: entity id %q is not valid UTF-8", ErrInvalidArgument, entityID)
	}
	if !utf8.ValidString(attribute) {
		return fmt.Errorf("%w: attribute name %q is not valid UTF-8", ErrInvalidArgument, attribute)
	}
	return nil
}

// AddAttribute associates value v with entityID under attribute. Re-adding an
// attribute the entity already carries replaces the previous value.
func (ix *Index) AddAttribute(entityID, attribute string, v value.Value) (err error) {
	start := time.Now()
	defer func() { ix.observe("add_attribute", start, 1, err) }()

	if err := validateAssociation(entityID, attribute); err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("%w: nil value for %s.%s", ErrInvalidArgument, entityID, attribute)
	}
	if !value.IsFinite(v) {
		return fmt.Errorf("%w: non-finite number for %s.%s", ErrInvalidArgument, entityID, attribute)
	}
	if !value.ValidUTF8(v) {
		return fmt.Errorf("%w: invalid UTF-8 in value for %s.%s", ErrInvalidArgument, entityID, attribute)
	}

	key := value.Key(v)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.st.add(entityID, attribute, key, v)
	ix.publishStats()
	return nil
}

// RemoveAttribute drops attribute from entityID. Removing an absent
// association is a no-op.
func (ix *Index) RemoveAttribute(entityID, attribute string) (err error) {
	start := time.Now()
	defer func() { ix.observe("remove_attribute", start, 1, err) }()

	if err := validateAssociation(entityID, attribute); err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.st.remove(entityID, attribute)
	ix.publishStats()
	return nil
}

// RemoveEntity drops every association of entityID. Idempotent.
func (ix *Index) RemoveEntity(entityID string) (err error) {
	start := time.Now()
	defer func() { ix.observe("remove_entity", start, 1, err) }()

	if entityID == "" {
		return fmt.Errorf("%w: empty entity id", ErrInvalidArgument)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for attribute := range ix.st.reverse[entityID] {
		ix.st.remove(entityID, attribute)
	}
	ix.publishStats()
	return nil
}

// FindByAttribute returns the sorted ids of entities whose attribute equals v.
// A nil v matches every entity carrying the attribute.
func (ix *Index) FindByAttribute(attribute string, v value.Value) (ids []string, err error) {
	start := time.Now()
	defer func() { ix.observe("find_by_attribute", start, len(ids), err) }()

	if attribute == "" {
		return nil, fmt.Errorf("%w: empty attribute name", ErrInvalidArgument)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var bm *roaring.Bitmap
	if v == nil {
		bm = ix.st.union(attribute, nil)
	} else {
		bm = ix.st.equals(attribute, value.Key(v))
	}
	return ix.st.dict.resolve(bm), nil
}

// FindByAttributeExists returns the ids of entities carrying attribute with any value
func (ix *Index) FindByAttributeExists(attribute string) ([]string, error) {
	return ix.FindByAttribute(attribute, nil)
}

// Attributes returns the current attribute values of entityID sorted by
// attribute name, or an empty map for an unknown entity
func (ix *Index) Attributes(entityID string) value.Map {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	attrs := ix.st.reverse[entityID]
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make(value.Map, 0, len(names))
	for _, name := range names {
		b := ix.st.forward[name][attrs[name]]
		out = append(out, value.F(name, value.Clone(b.value)))
	}
	return out
}

// HasEntity reports whether entityID carries at least one attribute
func (ix *Index) HasEntity(entityID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.st.reverse[entityID]
	return ok
}

// Clear removes every association
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.st = newState()
	ix.publishStats()
}

// Statistics returns index size figures
func (ix *Index) Statistics() Statistics {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.st.statistics()
}

func (s *state) add(entityID, attribute, key string, v value.Value) {
	attrs, ok := s.reverse[entityID]
	if ok {
		if prev, had := attrs[attribute]; had {
			if prev == key {
				return
			}
			s.detach(entityID, attribute, prev)
		}
	} else {
		attrs = make(map[string]string)
		s.reverse[entityID] = attrs
	}

	ord := s.dict.intern(entityID)
	buckets, ok := s.forward[attribute]
	if !ok {
		buckets = make(map[string]*bucket)
		s.forward[attribute] = buckets
	}
	b, ok := buckets[key]
	if !ok {
		b = &bucket{value: value.Clone(v), ids: roaring.New()}
		buckets[key] = b
	}
	b.ids.Add(ord)
	attrs[attribute] = key
}

func (s *state) remove(entityID, attribute string) {
	attrs, ok := s.reverse[entityID]
	if !ok {
		return
	}
	key, ok := attrs[attribute]
	if !ok {
		return
	}
	s.detach(entityID, attribute, key)
	delete(attrs, attribute)
	if len(attrs) == 0 {
		delete(s.reverse, entityID)
		s.dict.release(entityID)
	}
}

// detach removes the entity from one bucket and prunes empty containers
func (s *state) detach(entityID, attribute, key string) {
	ord, ok := s.dict.lookup(entityID)
	if !ok {
		return
	}
	buckets := s.forward[attribute]
	b, ok := buckets[key]
	if !ok {
		return
	}
	b.ids.Remove(ord)
	if b.ids.IsEmpty() {
		delete(buckets, key)
	}
	if len(buckets) == 0 {
		delete(s.forward, attribute)
	}
}

// equals returns a fresh bitmap for one bucket
func (s *state) equals(attribute, key string) *roaring.Bitmap {
	if b, ok := s.forward[attribute][key]; ok {
		return b.ids.Clone()
	}
	return roaring.New()
}

// union merges the buckets of attribute accepted by match (nil accepts all)
func (s *state) union(attribute string, match func(value.Value) bool) *roaring.Bitmap {
	var parts []*roaring.Bitmap
	for _, b := range s.forward[attribute] {
		if match == nil || match(b.value) {
			parts = append(parts, b.ids)
		}
	}
	switch len(parts) {
	case 0:
		return roaring.New()
	case 1:
		return parts[0].Clone()
	}
	return roaring.FastOr(parts...)
}

func (s *state) statistics() Statistics {
	stats := Statistics{
		TotalEntities:   len(s.reverse),
		TotalAttributes: len(s.forward),
	}
	for _, attrs := range s.reverse {
		stats.TotalAssociations += len(attrs)
	}
	if stats.TotalEntities > 0 {
		stats.AvgAttributesPerEntity = float64(stats.TotalAssociations) / float64(stats.TotalEntities)
	}
	return stats
}
