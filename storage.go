package kura

import (
	"github.com/sirupsen/logrus"
)

// Location is where an entity lives inside the storage.
type Location struct {
	Archetype int
	Chunkset  int
	Chunk     int
	Index     int // position in the chunk's entity list and columns
}

type entityLocation struct {
	Location
	gen uint32 // generation of the entity the location belongs to, 0 if unset
}

// Storage is the archetype registry: the ordered list of archetypes of a
// World, deduplicated by structural equality of their descriptions.
// Archetypes are only ever appended, so an index stays valid for the
// lifetime of the storage.
type Storage struct {
	bus           *EventBus
	log           *logrus.Entry
	archetypes    []*Archetype
	locations     []entityLocation // by entity index
	chunkBytes    int
	chunkCapacity int
}

func newStorage(bus *EventBus, log *logrus.Entry, chunkBytes, chunkCapacity int) *Storage {
	return &Storage{
		bus:           bus,
		log:           log,
		archetypes:    make([]*Archetype, 0, 16),
		chunkBytes:    chunkBytes,
		chunkCapacity: chunkCapacity,
	}
}

// FindOrCreate returns the index of the archetype whose description equals
// desc, appending a new archetype when none does. An archetype without tag
// types gets its single chunkset immediately.
//
// Parameters:
//   - desc: The structural key to look up.
//
// Returns:
//   - The archetype's registry index.
func (s *Storage) FindOrCreate(desc *ArchetypeDescription) int {
	for i, a := range s.archetypes {
		if a.desc.Equal(desc) {
			return i
		}
	}
	a := &Archetype{
		desc:     desc,
		storage:  s,
		index:    len(s.archetypes),
		capacity: chunkCapacityFor(desc, s.chunkBytes, s.chunkCapacity),
	}
	s.archetypes = append(s.archetypes, a)
	s.log.WithFields(logrus.Fields{
		"archetype":   a.index,
		"description": desc.String(),
		"capacity":    a.capacity,
	}).Debug("archetype created")
	Publish(s.bus, ArchetypeCreated{Archetype: a.index, Description: desc})
	if len(desc.tags) == 0 {
		a.allocChunkset(nil)
	}
	return a.index
}

// Archetypes returns the archetypes in registry order.
func (s *Storage) Archetypes() []*Archetype { return s.archetypes }

// Archetype returns archetype i.
func (s *Storage) Archetype(i int) *Archetype { return s.archetypes[i] }

// Len returns the number of archetypes.
func (s *Storage) Len() int { return len(s.archetypes) }

// place records the locations of entities stored contiguously from loc.
func (s *Storage) place(loc Location, entities []Entity) {
	for i, e := range entities {
		idx := int(e.Index)
		if idx >= len(s.locations) {
			s.locations = append(s.locations, make([]entityLocation, idx+1-len(s.locations))...)
		}
		l := loc
		l.Index += i
		s.locations[idx] = entityLocation{Location: l, gen: e.Generation}
	}
}

// locate returns the recorded location of e.
func (s *Storage) locate(e Entity) (Location, bool) {
	idx := int(e.Index)
	if idx >= len(s.locations) {
		return Location{}, false
	}
	l := s.locations[idx]
	if l.gen == 0 || l.gen != e.Generation {
		return Location{}, false
	}
	return l.Location, true
}
