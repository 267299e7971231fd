package kura

import "github.com/pkg/errors"

// Encoder is implemented by codecs that can write a World out in the record
// order Deserialize reads back. Every Begin call is matched by one End call
// once its elements have been written; counts are known up front.
type Encoder interface {
	BeginArchetypes(n int) error
	BeginArchetype() error
	EncodeArchetypeDescription(desc *ArchetypeDescription) error
	// BeginTags opens the tags field with one buffer per declared tag type.
	BeginTags(n int) error
	// EncodeTags writes one buffer holding the value of every chunkset, in
	// chunkset order.
	EncodeTags(id TagTypeID, meta *TagMeta, values *TagStorage) error
	BeginChunksets(n int) error
	// BeginChunks opens the chunk list of one chunkset.
	BeginChunks(n int) error
	BeginChunk() error
	EncodeEntities(entities []Entity) error
	BeginComponents(n int) error
	EncodeComponents(id ComponentTypeID, meta *ComponentMeta, col *ComponentColumn) error
	End() error
}

// Serialize writes every archetype of w to enc.
func Serialize(w *World, enc Encoder) error {
	archs := w.storage.archetypes
	if err := enc.BeginArchetypes(len(archs)); err != nil {
		return errors.Wrap(err, "kura: encode archetypes")
	}
	for _, a := range archs {
		if err := serializeArchetype(a, enc); err != nil {
			return errors.Wrapf(err, "kura: encode archetype %d", a.index)
		}
	}
	if err := enc.End(); err != nil {
		return errors.Wrap(err, "kura: encode archetypes")
	}
	w.log.WithField("archetypes", len(archs)).Debug("serialization complete")
	return nil
}

func serializeArchetype(a *Archetype, enc Encoder) error {
	if err := enc.BeginArchetype(); err != nil {
		return err
	}
	if err := enc.EncodeArchetypeDescription(a.desc); err != nil {
		return errors.Wrap(err, "description")
	}

	if err := enc.BeginTags(len(a.desc.tags)); err != nil {
		return errors.Wrap(err, "tags")
	}
	for t, tt := range a.desc.tags {
		// values share memory with the chunksets; the buffer is only read
		values := NewTagStorage(tt.Meta)
		for _, s := range a.chunksets {
			values.PushRaw(s.tags[t].Get(0))
		}
		if err := enc.EncodeTags(tt.ID, tt.Meta, values); err != nil {
			return errors.Wrapf(err, "tag %s", tt.Meta.name)
		}
	}
	if err := enc.End(); err != nil {
		return errors.Wrap(err, "tags")
	}

	if err := enc.BeginChunksets(len(a.chunksets)); err != nil {
		return errors.Wrap(err, "chunk_sets")
	}
	for si, s := range a.chunksets {
		if err := serializeChunkset(a.desc, s, enc); err != nil {
			return errors.Wrapf(err, "chunk set %d", si)
		}
	}
	if err := enc.End(); err != nil {
		return errors.Wrap(err, "chunk_sets")
	}
	return enc.End()
}

func serializeChunkset(desc *ArchetypeDescription, s *Chunkset, enc Encoder) error {
	if err := enc.BeginChunks(len(s.chunks)); err != nil {
		return err
	}
	for ci, c := range s.chunks {
		if err := enc.BeginChunk(); err != nil {
			return errors.Wrapf(err, "chunk %d", ci)
		}
		if err := enc.EncodeEntities(c.entities); err != nil {
			return errors.Wrapf(err, "chunk %d entities", ci)
		}
		if err := enc.BeginComponents(len(c.columns)); err != nil {
			return errors.Wrapf(err, "chunk %d components", ci)
		}
		for i, col := range c.columns {
			if err := enc.EncodeComponents(desc.components[i].ID, col.meta, col); err != nil {
				return errors.Wrapf(err, "chunk %d component %s", ci, col.meta.name)
			}
		}
		if err := enc.End(); err != nil {
			return errors.Wrapf(err, "chunk %d components", ci)
		}
		if err := enc.End(); err != nil {
			return errors.Wrapf(err, "chunk %d", ci)
		}
	}
	return enc.End()
}
