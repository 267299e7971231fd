package kura

// GetComponent returns a pointer to the T component of e, or nil if e is not
// stored in w or does not carry T.
//
// Example:
//
//	pos := kura.GetComponent[Position](world, e)
//	if pos != nil {
//	    pos.X++
//	}
func GetComponent[T any](w *World, e Entity) *T {
	loc, ok := w.Location(e)
	if !ok {
		return nil
	}
	id, ok := ComponentID[T](w.types)
	if !ok {
		return nil
	}
	a := w.storage.archetypes[loc.Archetype]
	ci := a.desc.ComponentIndex(id)
	if ci < 0 {
		return nil
	}
	col := a.chunksets[loc.Chunkset].chunks[loc.Chunk].columns[ci]
	if loc.Index >= col.len {
		return nil
	}
	return (*T)(col.Get(loc.Index))
}

// GetTag returns a pointer to the T tag value shared by e's chunkset, or nil
// if e is not stored in w or its archetype has no T tag.
func GetTag[T any](w *World, e Entity) *T {
	loc, ok := w.Location(e)
	if !ok {
		return nil
	}
	id, ok := TagID[T](w.types)
	if !ok {
		return nil
	}
	a := w.storage.archetypes[loc.Archetype]
	ti := a.desc.TagIndex(id)
	if ti < 0 {
		return nil
	}
	return (*T)(a.chunksets[loc.Chunkset].Tag(ti))
}
