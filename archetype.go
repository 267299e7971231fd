package kura

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultChunkBytes is the byte budget of one chunk used to derive its
// entity capacity when no fixed capacity is configured.
const DefaultChunkBytes = 16 * 1024

// ChunkRange is one entry of an allocation plan: Count entities were placed
// at the end of chunk Chunk.
type ChunkRange struct {
	Chunk int
	Count int
}

// Archetype holds storage for all entities sharing one ArchetypeDescription,
// partitioned into chunksets by tag values.
type Archetype struct {
	desc      *ArchetypeDescription
	storage   *Storage
	chunksets []*Chunkset
	capacity  int // entities per chunk
	index     int
}

// Description returns the archetype's structural key.
func (a *Archetype) Description() *ArchetypeDescription { return a.desc }

// Index returns the archetype's stable position in the registry.
func (a *Archetype) Index() int { return a.index }

// ChunkCapacity returns the fixed entity capacity of the archetype's chunks.
func (a *Archetype) ChunkCapacity() int { return a.capacity }

// Chunksets returns the chunksets in creation order.
func (a *Archetype) Chunksets() []*Chunkset { return a.chunksets }

// Chunkset returns chunkset i.
func (a *Archetype) Chunkset(i int) *Chunkset { return a.chunksets[i] }

// Len returns the number of entities stored in the archetype.
func (a *Archetype) Len() int {
	n := 0
	for _, s := range a.chunksets {
		n += s.Len()
	}
	return n
}

// allocChunkset appends a chunkset, lets fill populate its tag storages and
// returns its index. ChunksetCreated is published after fill returns.
func (a *Archetype) allocChunkset(fill func(tags []*TagStorage)) int {
	s := newChunkset(a.desc)
	if fill != nil {
		fill(s.tags)
	}
	a.chunksets = append(a.chunksets, s)
	idx := len(a.chunksets) - 1
	a.storage.log.WithFields(logrus.Fields{
		"archetype": a.index,
		"chunkset":  idx,
	}).Debug("chunkset created")
	Publish(a.storage.bus, ChunksetCreated{Archetype: a.index, Chunkset: idx})
	return idx
}

// GetFreeChunk returns the index of the chunk the next entities of chunkset
// set go into: the last chunk if it has at least needed free slots (needed is
// clamped to [1, capacity]), otherwise a newly appended empty chunk. It does
// not place anything.
//
// Parameters:
//   - set: The chunkset index.
//   - needed: The minimum number of free slots the caller wants.
//
// Returns:
//   - The chunk index inside the chunkset.
func (a *Archetype) GetFreeChunk(set, needed int) int {
	needed = max(1, min(needed, a.capacity))
	cs := a.chunksets[set]
	if n := len(cs.chunks); n > 0 && cs.chunks[n-1].Free() >= needed {
		return n - 1
	}
	cs.chunks = append(cs.chunks, newChunk(a.desc, a.capacity))
	idx := len(cs.chunks) - 1
	a.storage.log.WithFields(logrus.Fields{
		"archetype": a.index,
		"chunkset":  set,
		"chunk":     idx,
		"capacity":  a.capacity,
	}).Debug("chunk created")
	Publish(a.storage.bus, ChunkCreated{Archetype: a.index, Chunkset: set, Chunk: idx})
	return idx
}

// AppendEntities places entities into chunkset set, filling the last chunk
// before opening new ones, and returns the allocation plan: the ordered
// (chunk, count) ranges in the order the entities were consumed. The plan is
// what ties each entity to its column slots; component values for the
// entities must be reserved in exactly this order.
//
// Parameters:
//   - set: The chunkset index.
//   - entities: The entities to place.
//
// Returns:
//   - The allocation plan, nil when entities is empty.
func (a *Archetype) AppendEntities(set int, entities []Entity) []ChunkRange {
	var plan []ChunkRange
	for len(entities) > 0 {
		ci := a.GetFreeChunk(set, 1)
		c := a.chunksets[set].chunks[ci]
		start := c.Len()
		n := c.appendEntities(entities)
		a.storage.place(Location{Archetype: a.index, Chunkset: set, Chunk: ci, Index: start}, entities[:n])
		plan = append(plan, ChunkRange{Chunk: ci, Count: n})
		entities = entities[n:]
	}
	return plan
}

// ReserveComponentSlots grows the column of component comp in the given chunk
// by count values and returns the reserved range. The caller must initialize
// every slot of the range before reserving the next one.
//
// Parameters:
//   - set: The chunkset index.
//   - chunk: The chunk index inside the chunkset.
//   - comp: The component type to reserve.
//   - count: The number of slots.
//
// Returns:
//   - The reserved slot range.
//   - An error if the archetype does not declare comp or the column would
//     outgrow the chunk's entity list.
func (a *Archetype) ReserveComponentSlots(set, chunk int, comp ComponentTypeID, count int) (SlotRange, error) {
	ci := a.desc.ComponentIndex(comp)
	if ci < 0 {
		return SlotRange{}, errors.Wrapf(ErrUnknownType, "component %d not in archetype %d", comp, a.index)
	}
	c := a.chunksets[set].chunks[chunk]
	col := c.columns[ci]
	if col.len+count > c.Len() {
		return SlotRange{}, errors.Wrapf(ErrProtocolOrder,
			"reserving %d %s slots in chunk %d with %d of %d filled", count, col.meta.name, chunk, col.len, c.Len())
	}
	return SlotRange{ptr: col.reserve(count), count: count, meta: col.meta}, nil
}

// chunkCapacityFor returns fixed when positive, otherwise how many entities
// with desc's components fit in chunkBytes, at least one.
func chunkCapacityFor(desc *ArchetypeDescription, chunkBytes, fixed int) int {
	if fixed > 0 {
		return fixed
	}
	if chunkBytes <= 0 {
		chunkBytes = DefaultChunkBytes
	}
	per := unsafe.Sizeof(Entity{})
	for _, c := range desc.components {
		per += c.Meta.size
	}
	return max(1, chunkBytes/int(per))
}
