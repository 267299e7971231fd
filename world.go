// Package kura is an archetype-partitioned entity/component store with a
// streaming reconstruction protocol.
//
// Entities sharing a set of component and tag types live in one Archetype.
// An archetype splits its entities into Chunksets, one per distinct tuple of
// tag values, and every chunkset stores its entities in fixed-capacity
// Chunks holding one column per component type.
//
// Stores are rebuilt from external, self-describing formats with
// Deserialize, which drives a Decoder through the record order
// Description, Tags, ChunkSets, Chunks, Entities, Components, and written
// back with Serialize. The codec sub-packages provide msgpack and YAML
// implementations.
package kura

import (
	"github.com/sirupsen/logrus"
)

// World owns everything a store needs: the type registry, the archetype
// storage, the entity allocator, the event bus and the logger.
//
// A World is not safe for concurrent use. Reconstruction requires exclusive
// access for its whole duration.
type World struct {
	types    *TypeRegistry
	storage  *Storage
	entities *EntityAllocator
	events   *EventBus
	log      *logrus.Entry
	decoding bool
}

// NewWorld creates an empty World.
//
// Parameters:
//   - opts: Options overriding the default logger, chunk sizing, type
//     registry and initial entity capacity.
//
// Returns:
//   - The newly created World.
func NewWorld(opts ...Option) *World {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.WithField("component", "kura")
	}
	if o.types == nil {
		o.types = NewTypeRegistry()
	}
	bus := &EventBus{}
	return &World{
		types:    o.types,
		storage:  newStorage(bus, o.log, o.chunkBytes, o.chunkCapacity),
		entities: NewEntityAllocator(o.initialCapacity),
		events:   bus,
		log:      o.log,
	}
}

// Types returns the world's type registry.
func (w *World) Types() *TypeRegistry { return w.types }

// Storage returns the archetype registry.
func (w *World) Storage() *Storage { return w.storage }

// Entities returns the entity allocator.
func (w *World) Entities() *EntityAllocator { return w.entities }

// Events returns the bus storage events are published on.
func (w *World) Events() *EventBus { return w.events }

// Logger returns the world's logger.
func (w *World) Logger() *logrus.Entry { return w.log }

// IsValid reports whether e is live and stored in this world.
func (w *World) IsValid(e Entity) bool {
	if !w.entities.IsAlive(e) {
		return false
	}
	_, ok := w.storage.locate(e)
	return ok
}

// Location returns where e is stored.
//
// Returns:
//   - The entity's location.
//   - false if e is not live or not stored in this world.
func (w *World) Location(e Entity) (Location, bool) {
	if !w.entities.IsAlive(e) {
		return Location{}, false
	}
	return w.storage.locate(e)
}

// Len returns the number of stored entities.
func (w *World) Len() int {
	n := 0
	for _, a := range w.storage.archetypes {
		n += a.Len()
	}
	return n
}
