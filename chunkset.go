package kura

import "unsafe"

// Chunkset is the set of chunks of one archetype whose entities share one
// tuple of tag values. It owns one TagStorage per declared tag type, each
// holding exactly that tuple's value.
type Chunkset struct {
	tags   []*TagStorage // description tag order
	chunks []*Chunk
}

func newChunkset(desc *ArchetypeDescription) *Chunkset {
	s := &Chunkset{tags: make([]*TagStorage, len(desc.tags))}
	for i, tt := range desc.tags {
		s.tags[i] = NewTagStorage(tt.Meta)
	}
	return s
}

// Tags returns the chunkset's tag storages in description order.
func (s *Chunkset) Tags() []*TagStorage { return s.tags }

// Tag returns a pointer to the value of the tag at description index i.
func (s *Chunkset) Tag(i int) unsafe.Pointer { return s.tags[i].Get(0) }

// Chunks returns the chunkset's chunks in creation order.
func (s *Chunkset) Chunks() []*Chunk { return s.chunks }

// Chunk returns chunk i.
func (s *Chunkset) Chunk(i int) *Chunk { return s.chunks[i] }

// Len returns the number of entities across all chunks.
func (s *Chunkset) Len() int {
	n := 0
	for _, c := range s.chunks {
		n += c.Len()
	}
	return n
}

// matches reports whether candidate i of the decoded storages equals this
// chunkset's tuple under every tag type's equality.
func (s *Chunkset) matches(decoded []*TagStorage, i int) bool {
	for t, ts := range s.tags {
		if !ts.meta.Equals(decoded[t].Get(i), ts.Get(0)) {
			return false
		}
	}
	return true
}
