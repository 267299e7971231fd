package kura

import (
	"fmt"
	"reflect"
)

// MaxComponentTypes defines the maximum number of unique component types that
// can be registered in a TypeRegistry. Tag types share the same limit in their
// own id space.
const MaxComponentTypes = 256

// ComponentTypeID identifies a registered component type.
type ComponentTypeID uint8

// TagTypeID identifies a registered tag type.
type TagTypeID uint8

// TypeRegistry maps Go types and stable names to type ids and metas. Codecs
// resolve archetype descriptions through it, so every type that appears in a
// stream must be registered before reconstruction, unless opaque types are
// allowed.
type TypeRegistry struct {
	compByType  map[reflect.Type]ComponentTypeID
	compByName  map[string]ComponentTypeID
	tagByType   map[reflect.Type]TagTypeID
	tagByName   map[string]TagTypeID
	components  []*ComponentMeta
	tags        []*TagMeta
	allowOpaque bool
}

// NewTypeRegistry creates an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		compByType: make(map[reflect.Type]ComponentTypeID, 16),
		compByName: make(map[string]ComponentTypeID, 16),
		tagByType:  make(map[reflect.Type]TagTypeID, 4),
		tagByName:  make(map[string]TagTypeID, 4),
	}
}

// RegisterComponent registers component type T under name and returns its id.
// Registering the same type again returns the existing id. It panics if the
// name is taken by another type or the registry is full.
func RegisterComponent[T any](r *TypeRegistry, name string) ComponentTypeID {
	if id, ok := r.compByType[reflect.TypeFor[T]()]; ok {
		return id
	}
	return r.RegisterComponentMeta(NewComponentMeta[T](name))
}

// RegisterTag registers tag type T under name and returns its id.
func RegisterTag[T any](r *TypeRegistry, name string) TagTypeID {
	if id, ok := r.tagByType[reflect.TypeFor[T]()]; ok {
		return id
	}
	return r.RegisterTagMeta(NewTagMeta[T](name))
}

// RegisterComponentMeta registers a prepared component meta.
func (r *TypeRegistry) RegisterComponentMeta(m *ComponentMeta) ComponentTypeID {
	if _, ok := r.compByName[m.name]; ok {
		panic(fmt.Sprintf("kura: component name %q already registered", m.name))
	}
	if len(r.components) >= MaxComponentTypes {
		panic(fmt.Sprintf("kura: cannot register component %s: maximum number of component types (%d) reached", m.name, MaxComponentTypes))
	}
	id := ComponentTypeID(len(r.components))
	r.components = append(r.components, m)
	r.compByName[m.name] = id
	if _, ok := r.compByType[m.typ]; !ok {
		r.compByType[m.typ] = id
	}
	return id
}

// RegisterTagMeta registers a prepared tag meta.
func (r *TypeRegistry) RegisterTagMeta(m *TagMeta) TagTypeID {
	if _, ok := r.tagByName[m.name]; ok {
		panic(fmt.Sprintf("kura: tag name %q already registered", m.name))
	}
	if len(r.tags) >= MaxComponentTypes {
		panic(fmt.Sprintf("kura: cannot register tag %s: maximum number of tag types (%d) reached", m.name, MaxComponentTypes))
	}
	id := TagTypeID(len(r.tags))
	r.tags = append(r.tags, m)
	r.tagByName[m.name] = id
	if _, ok := r.tagByType[m.typ]; !ok {
		r.tagByType[m.typ] = id
	}
	return id
}

// ComponentID returns the id registered for component type T.
func ComponentID[T any](r *TypeRegistry) (ComponentTypeID, bool) {
	id, ok := r.compByType[reflect.TypeFor[T]()]
	return id, ok
}

// TagID returns the id registered for tag type T.
func TagID[T any](r *TypeRegistry) (TagTypeID, bool) {
	id, ok := r.tagByType[reflect.TypeFor[T]()]
	return id, ok
}

// Component returns the meta of a registered component id.
func (r *TypeRegistry) Component(id ComponentTypeID) *ComponentMeta {
	return r.components[id]
}

// Tag returns the meta of a registered tag id.
func (r *TypeRegistry) Tag(id TagTypeID) *TagMeta {
	return r.tags[id]
}

// SetAllowOpaque lets ResolveComponent and ResolveTag register unknown
// raw-encoded names as opaque byte layouts instead of failing.
func (r *TypeRegistry) SetAllowOpaque(allow bool) {
	r.allowOpaque = allow
}

// ResolveComponent looks a component up by the name, size and encoding a
// codec read from a stream. A zero size or empty encoding skips that check.
func (r *TypeRegistry) ResolveComponent(name string, size uintptr, encoding string) (ComponentTypeID, *ComponentMeta, error) {
	if id, ok := r.compByName[name]; ok {
		m := r.components[id]
		if err := checkLayout(&m.typeInfo, size, encoding); err != nil {
			return 0, nil, err
		}
		return id, m, nil
	}
	if !r.allowOpaque || encoding != EncodingRaw {
		return 0, nil, fmt.Errorf("%w: component %q", ErrUnknownType, name)
	}
	m := NewOpaqueComponentMeta(name, size)
	return r.RegisterComponentMeta(m), m, nil
}

// ResolveTag is the tag counterpart of ResolveComponent.
func (r *TypeRegistry) ResolveTag(name string, size uintptr, encoding string) (TagTypeID, *TagMeta, error) {
	if id, ok := r.tagByName[name]; ok {
		m := r.tags[id]
		if err := checkLayout(&m.typeInfo, size, encoding); err != nil {
			return 0, nil, err
		}
		return id, m, nil
	}
	if !r.allowOpaque || encoding != EncodingRaw {
		return 0, nil, fmt.Errorf("%w: tag %q", ErrUnknownType, name)
	}
	m := NewOpaqueTagMeta(name, size)
	return r.RegisterTagMeta(m), m, nil
}

func checkLayout(ti *typeInfo, size uintptr, encoding string) error {
	if size != 0 && size != ti.size {
		return fmt.Errorf("%w: %q is %d bytes, stream says %d", ErrUnknownType, ti.name, ti.size, size)
	}
	if encoding != "" && encoding != ti.codec.Encoding() {
		return fmt.Errorf("%w: %q uses %s encoding, stream says %s", ErrUnknownType, ti.name, ti.codec.Encoding(), encoding)
	}
	return nil
}
