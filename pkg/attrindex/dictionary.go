// ABOUTME: Interning dictionary mapping entity ids to bitmap ordinals
// ABOUTME: Ordinals are never reused within one index state

package attrindex

import (
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

type dictionary struct {
	ordinals map[string]uint32
	names    map[uint32]string
	next     uint32
}

func newDictionary() *dictionary {
	return &dictionary{
		ordinals: make(map[string]uint32),
		names:    make(map[uint32]string),
	}
}

func (d *dictionary) intern(id string) uint32 {
	if ord, ok := d.ordinals[id]; ok {
		return ord
	}
	ord := d.next
	d.next++
	d.ordinals[id] = ord
	d.names[ord] = id
	return ord
}

func (d *dictionary) lookup(id string) (uint32, bool) {
	ord, ok := d.ordinals[id]
	return ord, ok
}

func (d *dictionary) release(id string) {
	if ord, ok := d.ordinals[id]; ok {
		delete(d.ordinals, id)
		delete(d.names, ord)
	}
}

// resolve converts a bitmap of ordinals into sorted entity ids
func (d *dictionary) resolve(bm *roaring.Bitmap) []string {
	ids := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		if id, ok := d.names[it.Next()]; ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
