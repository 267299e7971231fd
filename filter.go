package kura

// Filter iterates over every stored entity carrying component T, chunk by
// chunk, in archetype, chunkset and chunk order. The filter notices archetypes
// created since it was built when it is Reset.
type Filter[T any] struct {
	world    *World
	matching []*Archetype
	curEnts  []Entity
	curVals  []T
	seen     int // archetypes inspected so far
	arch     int
	set      int
	chunk    int
	idx      int
	comp     ComponentTypeID
	ok       bool // T is registered
}

// NewFilter creates a new `Filter` over all entities possessing component T.
//
// Parameters:
//   - w: The World to query.
//
// Returns:
//   - A pointer to the newly created `Filter[T]`.
func NewFilter[T any](w *World) *Filter[T] {
	f := &Filter[T]{world: w}
	f.Reset()
	return f
}

// New is a convenience function that creates a new filter instance.
func (f *Filter[T]) New(w *World) *Filter[T] {
	return NewFilter[T](w)
}

func (f *Filter[T]) updateMatching() {
	if !f.ok {
		f.comp, f.ok = ComponentID[T](f.world.types)
		if !f.ok {
			return
		}
	}
	archs := f.world.storage.archetypes
	for _, a := range archs[f.seen:] {
		if a.desc.HasComponent(f.comp) {
			f.matching = append(f.matching, a)
		}
	}
	f.seen = len(archs)
}

// Reset rewinds the filter to the first entity.
func (f *Filter[T]) Reset() {
	if f.seen != len(f.world.storage.archetypes) || !f.ok {
		f.updateMatching()
	}
	f.arch, f.set, f.chunk = 0, 0, -1
	f.idx = -1
	f.curEnts, f.curVals = nil, nil
}

// Next advances the filter to the next matching entity. It returns true if an
// entity was found, and false if the iteration is complete.
//
// Example:
//
//	query := kura.NewFilter[Position](world)
//	for query.Next() {
//	    // ... process entity
//	}
func (f *Filter[T]) Next() bool {
	f.idx++
	if f.idx < len(f.curVals) {
		return true
	}
	for f.arch < len(f.matching) {
		a := f.matching[f.arch]
		for f.set < len(a.chunksets) {
			chunks := a.chunksets[f.set].chunks
			for f.chunk+1 < len(chunks) {
				f.chunk++
				c := chunks[f.chunk]
				vals := Column[T](c.columns[a.desc.ComponentIndex(f.comp)])
				if len(vals) == 0 {
					continue
				}
				f.curEnts = c.entities
				f.curVals = vals
				f.idx = 0
				return true
			}
			f.set++
			f.chunk = -1
		}
		f.arch++
		f.set = 0
	}
	f.curEnts, f.curVals = nil, nil
	return false
}

// Entity returns the current `Entity` in the iteration.
func (f *Filter[T]) Entity() Entity {
	return f.curEnts[f.idx]
}

// Get returns a pointer to the current entity's component.
func (f *Filter[T]) Get() *T {
	return &f.curVals[f.idx]
}

// Entities returns every matching entity. The filter is reset before and
// after collecting.
func (f *Filter[T]) Entities() []Entity {
	f.Reset()
	var out []Entity
	for f.Next() {
		out = append(out, f.Entity())
	}
	f.Reset()
	return out
}

// Len returns the number of matching entities.
func (f *Filter[T]) Len() int {
	if f.seen != len(f.world.storage.archetypes) || !f.ok {
		f.updateMatching()
	}
	n := 0
	for _, a := range f.matching {
		n += a.Len()
	}
	return n
}
