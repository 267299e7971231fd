package kura

import (
	"fmt"
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Entity represents a unique identifier for an object stored in a World. It
// combines a 32-bit index with a 32-bit generation so that a recycled index is
// never confused with the entity that held it before.
type Entity struct {
	// Index is the recyclable slot of the entity in the allocator.
	Index uint32
	// Generation is incremented each time Index is reused. Zero is never
	// issued.
	Generation uint32
}

func (e Entity) String() string {
	return fmt.Sprintf("%dv%d", e.Index, e.Generation)
}

// EntityAllocator issues entity identifiers. An identifier is live from
// Allocate until Free; no two live entities share an Index.
type EntityAllocator struct {
	alive       *roaring.Bitmap
	generations []uint32 // current generation per index, 0 if never issued
	freeIDs     []uint32 // stack of recycled indices
}

// NewEntityAllocator creates an allocator with room for initialCapacity
// indices before its tables grow.
func NewEntityAllocator(initialCapacity int) *EntityAllocator {
	return &EntityAllocator{
		alive:       roaring.New(),
		generations: make([]uint32, 0, initialCapacity),
	}
}

// Allocate issues a fresh entity. Recycled indices are preferred; their
// generation is bumped so stale copies of the previous entity stay invalid.
func (a *EntityAllocator) Allocate() Entity {
	var idx uint32
	if n := len(a.freeIDs); n > 0 {
		idx = a.freeIDs[n-1]
		a.freeIDs = a.freeIDs[:n-1]
	} else {
		idx = uint32(len(a.generations))
		a.generations = append(a.generations, 0)
	}
	gen := a.generations[idx] + 1
	if gen == 0 {
		gen = 1
	}
	a.generations[idx] = gen
	a.alive.Add(idx)
	return Entity{Index: idx, Generation: gen}
}

// AllocateN issues n fresh entities.
func (a *EntityAllocator) AllocateN(n int) []Entity {
	if n <= 0 {
		return nil
	}
	out := make([]Entity, n)
	for i := range out {
		out[i] = a.Allocate()
	}
	return out
}

// Free releases a live entity so its index can be reused. It returns false if
// e was not live.
func (a *EntityAllocator) Free(e Entity) bool {
	if !a.IsAlive(e) {
		return false
	}
	a.alive.Remove(e.Index)
	a.freeIDs = append(a.freeIDs, e.Index)
	return true
}

// IsAlive reports whether e is the current holder of its index.
func (a *EntityAllocator) IsAlive(e Entity) bool {
	if int(e.Index) >= len(a.generations) {
		return false
	}
	return a.generations[e.Index] == e.Generation && a.alive.Contains(e.Index)
}

// Len returns the number of live entities.
func (a *EntityAllocator) Len() int {
	return int(a.alive.GetCardinality())
}

// Alive iterates live entities in index order.
func (a *EntityAllocator) Alive() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		it := a.alive.Iterator()
		for it.HasNext() {
			idx := it.Next()
			if !yield(Entity{Index: idx, Generation: a.generations[idx]}) {
				return
			}
		}
	}
}
