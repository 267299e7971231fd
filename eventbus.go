package kura

import "reflect"

// MaxEventTypes defines the maximum number of unique event types that can be
// registered in the EventBus. This value is fixed at 256.
const MaxEventTypes = 256

// ArchetypeCreated is published when the registry appends a new archetype.
type ArchetypeCreated struct {
	Description *ArchetypeDescription
	Archetype   int
}

// ChunksetCreated is published once a new chunkset holds its tag tuple.
type ChunksetCreated struct {
	Archetype int
	Chunkset  int
}

// ChunkCreated is published when a chunkset grows by one chunk.
type ChunkCreated struct {
	Archetype int
	Chunkset  int
	Chunk     int
}

// EventBus provides a simple, type-safe event bus for decoupled communication
// between the storage engine and the code observing it. Handlers subscribe to
// a Go type and are called synchronously, in subscription order, whenever an
// event of that type is published.
//
// Publish is allocation-free once the event type has a handler list.
type EventBus struct {
	eventTypeMap    map[reflect.Type]uint8
	handlers        [MaxEventTypes][]any
	nextEventTypeID uint8
	full            bool
}

// Subscribe registers a handler function to be called when an event of type `T`
// is published. Handlers are stored in the order they are subscribed.
//
// Parameters:
//   - bus: The EventBus instance to subscribe to.
//   - handler: A function that takes a single argument of type `T`.
func Subscribe[T any](bus *EventBus, handler func(T)) {
	t := reflect.TypeFor[T]()
	id := bus.getEventTypeID(t)
	if cap(bus.handlers[id]) == 0 {
		bus.handlers[id] = make([]any, 0, 4)
	}
	bus.handlers[id] = append(bus.handlers[id], handler)
}

// Publish broadcasts an event of type `T` to all registered handlers for that
// type. The handlers are called synchronously in the order they were subscribed.
//
// Parameters:
//   - bus: The EventBus instance to publish to.
//   - event: The event data of type `T` to be sent to handlers.
func Publish[T any](bus *EventBus, event T) {
	if bus == nil {
		return
	}
	t := reflect.TypeFor[T]()
	if id, ok := bus.eventTypeMap[t]; ok {
		for _, h := range bus.handlers[id] {
			h.(func(T))(event)
		}
	}
}

// getEventTypeID retrieves or assigns an ID for the event type.
func (bus *EventBus) getEventTypeID(t reflect.Type) uint8 {
	if bus.eventTypeMap == nil {
		bus.eventTypeMap = make(map[reflect.Type]uint8)
	}
	if id, ok := bus.eventTypeMap[t]; ok {
		return id
	}
	if bus.full {
		panic("kura: too many event types")
	}
	id := bus.nextEventTypeID
	bus.nextEventTypeID++
	if bus.nextEventTypeID == 0 {
		bus.full = true
	}
	bus.eventTypeMap[t] = id
	return id
}
