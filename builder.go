package kura

import (
	"unsafe"
)

// TagValue is a tag value bound to its registered type, ready to be attached
// to a Builder.
type TagValue struct {
	meta *TagMeta
	set  func(p unsafe.Pointer)
	id   TagTypeID
}

// Tag binds v to its tag type, registering T with its Go type name if it is
// not registered yet.
func Tag[T any](w *World, v T) TagValue {
	id := RegisterTag[T](w.types, "")
	return TagValue{
		id:   id,
		meta: w.types.Tag(id),
		set:  func(p unsafe.Pointer) { *(*T)(p) = v },
	}
}

// Builder inserts entities carrying component T into one chunkset, selected
// by the tag values given at construction.
type Builder[T any] struct {
	world *World
	arch  *Archetype
	comp  ComponentType
	set   int
}

// NewBuilder resolves the archetype for component T plus the tag types of
// tags, and the chunkset for the tag values, creating either as needed.
// Chunksets are shared with reconstruction: a builder whose tag values equal
// those of a decoded chunkset appends to it.
//
// Parameters:
//   - w: The World to insert into.
//   - tags: Tag values of the entities; see Tag.
//
// Returns:
//   - A pointer to the newly created `Builder[T]`.
func NewBuilder[T any](w *World, tags ...TagValue) *Builder[T] {
	id := RegisterComponent[T](w.types, "")
	meta := w.types.Component(id)
	desc := NewArchetypeDescription().WithComponent(id, meta)
	for _, tv := range tags {
		desc.WithTag(tv.id, tv.meta)
	}
	a := w.storage.archetypes[w.storage.FindOrCreate(desc)]

	decoded := make([]*TagStorage, len(a.desc.tags))
	for i, tt := range a.desc.tags {
		s := NewTagStorage(tt.Meta)
		for _, tv := range tags {
			if tv.id == tt.ID {
				tv.set(s.Push())
				break
			}
		}
		decoded[i] = s
	}
	mapping, err := a.partitionTags(decoded)
	if err != nil {
		panic("kura: " + err.Error())
	}
	return &Builder[T]{
		world: w,
		arch:  a,
		comp:  ComponentType{ID: id, Meta: meta},
		set:   mapping[0],
	}
}

// New is a convenience function that creates a new builder instance.
func (b *Builder[T]) New(w *World, tags ...TagValue) *Builder[T] {
	return NewBuilder[T](w, tags...)
}

// Archetype returns the archetype the builder inserts into.
func (b *Builder[T]) Archetype() *Archetype { return b.arch }

// Chunkset returns the index of the chunkset the builder inserts into.
func (b *Builder[T]) Chunkset() int { return b.set }

// NewEntity creates one entity with a zero T.
func (b *Builder[T]) NewEntity() Entity {
	return b.insert(1, nil)[0]
}

// NewEntities creates count entities with zero T values.
//
// Returns:
//   - The created entities in insertion order.
func (b *Builder[T]) NewEntities(count int) []Entity {
	return b.insert(count, nil)
}

// NewEntitiesWithValueSet creates count entities whose component is set to
// comp.
//
// Returns:
//   - The created entities in insertion order.
func (b *Builder[T]) NewEntitiesWithValueSet(count int, comp T) []Entity {
	return b.insert(count, &comp)
}

// Get returns the entity's component, or nil if it has none.
func (b *Builder[T]) Get(e Entity) *T {
	return GetComponent[T](b.world, e)
}

// Set overwrites the entity's component. It reports false if the entity does
// not carry T.
func (b *Builder[T]) Set(e Entity, comp T) bool {
	p := GetComponent[T](b.world, e)
	if p == nil {
		return false
	}
	*p = comp
	return true
}

func (b *Builder[T]) insert(count int, comp *T) []Entity {
	if count <= 0 {
		return nil
	}
	if b.world.decoding {
		panic("kura: cannot insert entities while a reconstruction is running")
	}
	ents := b.world.entities.AllocateN(count)
	plan := b.arch.AppendEntities(b.set, ents)
	cur := newSlotCursor(b.arch, b.set, plan, b.comp)
	for r, ok := cur.Next(); ok; r, ok = cur.Next() {
		if comp != nil {
			vals := Slots[T](r)
			for i := range vals {
				vals[i] = *comp
			}
		}
		cur.Commit()
	}
	if err := cur.finish(); err != nil {
		panic("kura: " + err.Error())
	}
	return ents
}
