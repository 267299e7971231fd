package kura

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ArchetypeField names a field of an archetype record.
type ArchetypeField uint8

const (
	FieldDescription ArchetypeField = iota // "description"
	FieldTags                              // "tags"
	FieldChunkSets                         // "chunk_sets"
)

func (f ArchetypeField) String() string {
	switch f {
	case FieldDescription:
		return "description"
	case FieldTags:
		return "tags"
	case FieldChunkSets:
		return "chunk_sets"
	}
	return "unknown"
}

// ChunkField names a field of a chunk record.
type ChunkField uint8

const (
	FieldEntities   ChunkField = iota // "entities"
	FieldComponents                   // "components"
)

func (f ChunkField) String() string {
	switch f {
	case FieldEntities:
		return "entities"
	case FieldComponents:
		return "components"
	}
	return "unknown"
}

// Decoder is implemented by codecs that can feed a stream to Deserialize.
//
// Deserialize pulls the stream one record at a time. Sequence methods
// (NextArchetype, NextChunkset, NextChunk) report whether another element
// follows; field methods report which field comes next in the current record
// and false at its end. A decoder must skip whatever part of the previous
// element the engine did not read before advancing.
//
// Decoders must not produce more values than they are asked for; extra tag
// buffers or component columns are skipped, never stored.
type Decoder interface {
	// NextArchetype advances to the next archetype record.
	NextArchetype() (bool, error)
	// NextArchetypeField returns the next field of the current archetype.
	NextArchetypeField() (ArchetypeField, bool, error)
	// DecodeArchetypeDescription reads the description field, resolving
	// types through types.
	DecodeArchetypeDescription(types *TypeRegistry) (*ArchetypeDescription, error)
	// DecodeTags appends the next tag buffer of the tags field to out. It
	// is called once per tag type, in the order of the description the
	// decoder returned, and returns false when the stream holds no further
	// buffer.
	DecodeTags(id TagTypeID, meta *TagMeta, out *TagStorage) (bool, error)
	// NextChunkset advances to the next chunk set of the chunk_sets field.
	NextChunkset() (bool, error)
	// NextChunk advances to the next chunk of the current chunk set.
	NextChunk() (bool, error)
	// NextChunkField returns the next field of the current chunk.
	NextChunkField() (ChunkField, bool, error)
	// DecodeEntities reads the entities field and returns fresh entities
	// allocated from alloc, one per stream entity, in stream order.
	DecodeEntities(alloc *EntityAllocator) ([]Entity, error)
	// DecodeComponents reads the next column of the components field into
	// the ranges handed out by cur. It is called once per component type, in
	// the order of the description the decoder returned, and returns false
	// when the stream holds no further column; the remaining component types
	// are then left at their zero value.
	DecodeComponents(id ComponentTypeID, meta *ComponentMeta, cur *SlotCursor) (bool, error)
}

// Deserialize rebuilds archetypes, chunksets, chunks and entities from dec
// into w. Archetypes and chunksets already present are reused when the
// stream's descriptions and tag values are equal to theirs.
//
// On error, everything committed before the failing record stays valid and
// the failing record's remaining data is abandoned. The returned error is a
// *DecodeError.
//
// Parameters:
//   - w: The World to reconstruct into. It must not be used by anything else
//     until Deserialize returns.
//   - dec: The stream to read.
func Deserialize(w *World, dec Decoder) error {
	if w.decoding {
		return decodeError(ErrReentrant, "world", -1, nil)
	}
	w.decoding = true
	defer func() { w.decoding = false }()

	r := &reconstruction{w: w, dec: dec, arch: -1}
	for {
		ok, err := dec.NextArchetype()
		if err != nil {
			return r.fail(decodeError(ErrCodec, "archetypes", -1, err))
		}
		if !ok {
			break
		}
		r.arch = -1
		if err := r.archetype(); err != nil {
			return r.fail(err)
		}
		r.archetypes++
	}
	w.log.WithFields(logrus.Fields{
		"archetypes": r.archetypes,
		"chunksets":  r.chunksets,
		"chunks":     r.chunks,
		"entities":   r.entities,
	}).Info("reconstruction complete")
	return nil
}

// reconstruction is the state of one Deserialize call.
type reconstruction struct {
	w   *World
	dec Decoder

	arch int // archetype of the current record, -1 until resolved

	archetypes int
	chunksets  int
	chunks     int
	entities   int
}

func (r *reconstruction) fail(err *DecodeError) error {
	r.w.log.WithFields(logrus.Fields{
		"op":        err.Op,
		"archetype": err.Archetype,
		"entities":  r.entities,
	}).WithError(err).Error("reconstruction aborted")
	return err
}

func (r *reconstruction) codecErr(op string, err error) *DecodeError {
	if errors.Is(err, ErrUnknownType) {
		return decodeError(ErrUnknownType, op, r.arch, err)
	}
	return decodeError(ErrCodec, op, r.arch, err)
}

// archetype runs Description, Tags and ChunkSets for one archetype record.
func (r *reconstruction) archetype() *DecodeError {
	var (
		a        *Archetype
		desc     *ArchetypeDescription // as declared by the stream
		mapping  ChunksetMap
		haveTags bool
		haveSets bool
	)
	for {
		f, ok, err := r.dec.NextArchetypeField()
		if err != nil {
			return r.codecErr("archetype", err)
		}
		if !ok {
			break
		}
		switch f {
		case FieldDescription:
			if a != nil {
				return decodeError(ErrProtocolOrder, "description", r.arch, errors.New("duplicate field"))
			}
			var err error
			desc, err = r.dec.DecodeArchetypeDescription(r.w.types)
			if err != nil {
				return r.codecErr("description", err)
			}
			r.arch = r.w.storage.FindOrCreate(desc)
			a = r.w.storage.archetypes[r.arch]
		case FieldTags:
			if a == nil {
				return decodeError(ErrMissingField, "tags", r.arch, errors.New("expected description before tags"))
			}
			if haveTags {
				return decodeError(ErrProtocolOrder, "tags", r.arch, errors.New("duplicate field"))
			}
			if haveSets {
				return decodeError(ErrProtocolOrder, "tags", r.arch, errors.New("tags after chunk_sets"))
			}
			mapping, err = r.tags(a, desc)
			if err != nil {
				return r.tagsErr(err)
			}
			haveTags = true
		case FieldChunkSets:
			if a == nil {
				return decodeError(ErrMissingField, "chunk_sets", r.arch, errors.New("expected description before chunk_sets"))
			}
			if !haveTags {
				return decodeError(ErrMissingField, "chunk_sets", r.arch, errors.New("expected tags before chunk_sets"))
			}
			if haveSets {
				return decodeError(ErrProtocolOrder, "chunk_sets", r.arch, errors.New("duplicate field"))
			}
			haveSets = true
			if err := r.chunkSets(a, desc, mapping); err != nil {
				return err
			}
		default:
			return decodeError(ErrProtocolOrder, "archetype", r.arch, errors.Errorf("unknown field %d", f))
		}
	}
	if a == nil {
		return decodeError(ErrMissingField, "archetype", r.arch, errors.New("record has no description"))
	}
	return nil
}

func (r *reconstruction) tagsErr(err error) *DecodeError {
	if errors.Is(err, ErrTagLengthMismatch) {
		return decodeError(ErrTagLengthMismatch, "tags", r.arch, err)
	}
	return r.codecErr("tags", err)
}

// tags decodes one buffer per tag type, in stream order, and partitions the
// decoded tuples into chunksets. Buffers are handed to partitionTags in the
// archetype's order. Decoded values are dropped if the codec fails.
func (r *reconstruction) tags(a *Archetype, desc *ArchetypeDescription) (ChunksetMap, error) {
	decoded := make([]*TagStorage, 0, len(desc.tags))
	for _, tt := range desc.tags {
		s := NewTagStorage(tt.Meta)
		ok, err := r.dec.DecodeTags(tt.ID, tt.Meta, s)
		if err != nil {
			s.dropAll()
			for _, d := range decoded {
				d.dropAll()
			}
			return nil, errors.Wrapf(err, "tag %s", tt.Meta.name)
		}
		if !ok {
			s.dropAll()
			break
		}
		decoded = append(decoded, s)
	}
	if len(decoded) == len(a.desc.tags) {
		ordered := make([]*TagStorage, len(decoded))
		for i, s := range decoded {
			ordered[a.desc.TagIndex(desc.tags[i].ID)] = s
		}
		decoded = ordered
	}
	before := len(a.chunksets)
	mapping, err := a.partitionTags(decoded)
	if err != nil {
		return nil, err
	}
	r.chunksets += len(a.chunksets) - before
	return mapping, nil
}

// chunkSets walks the chunk_sets field, translating every stream chunk set
// index through mapping.
func (r *reconstruction) chunkSets(a *Archetype, desc *ArchetypeDescription, mapping ChunksetMap) *DecodeError {
	for i := 0; ; i++ {
		ok, err := r.dec.NextChunkset()
		if err != nil {
			return r.codecErr("chunk_sets", err)
		}
		if !ok {
			return nil
		}
		set, ok := mapping.Lookup(i)
		if !ok {
			return decodeError(ErrUnmappedChunkset, "chunk_sets", r.arch, errors.Errorf("index %d, %d tag tuples decoded", i, len(mapping)))
		}
		for {
			ok, err := r.dec.NextChunk()
			if err != nil {
				return r.codecErr("chunks", err)
			}
			if !ok {
				break
			}
			if err := r.chunk(a, desc, set); err != nil {
				return err
			}
			r.chunks++
		}
	}
}

// chunk decodes one chunk record: entities first, then components laid out
// by the entities' allocation plan. Whatever happens, every column the plan
// touched ends as long as the chunk's entity list.
func (r *reconstruction) chunk(a *Archetype, desc *ArchetypeDescription, set int) *DecodeError {
	var (
		plan      []ChunkRange
		haveEnts  bool
		haveComps bool
	)
	defer func() {
		if haveEnts && !haveComps {
			r.pad(a, set, plan, nil)
		}
	}()
	for {
		f, ok, err := r.dec.NextChunkField()
		if err != nil {
			return r.codecErr("chunk", err)
		}
		if !ok {
			return nil
		}
		switch f {
		case FieldEntities:
			if haveEnts {
				return decodeError(ErrProtocolOrder, "entities", r.arch, errors.New("duplicate field"))
			}
			ents, err := r.dec.DecodeEntities(r.w.entities)
			if err != nil {
				return r.codecErr("entities", err)
			}
			plan = a.AppendEntities(set, ents)
			haveEnts = true
			r.entities += len(ents)
		case FieldComponents:
			if !haveEnts {
				return decodeError(ErrProtocolOrder, "components", r.arch, errors.New("expected entities before components"))
			}
			if haveComps {
				return decodeError(ErrProtocolOrder, "components", r.arch, errors.New("duplicate field"))
			}
			haveComps = true
			if err := r.components(a, desc, set, plan); err != nil {
				return err
			}
		default:
			return decodeError(ErrProtocolOrder, "chunk", r.arch, errors.Errorf("unknown field %d", f))
		}
	}
}

// components decodes the component columns for plan in stream order, each
// into the archetype column of the same type.
func (r *reconstruction) components(a *Archetype, desc *ArchetypeDescription, set int, plan []ChunkRange) *DecodeError {
	done := make([]bool, len(a.desc.components))
	for _, st := range desc.components {
		idx := a.desc.ComponentIndex(st.ID)
		ct := a.desc.components[idx]
		done[idx] = true
		cur := newSlotCursor(a, set, plan, ct)
		ok, err := r.dec.DecodeComponents(ct.ID, ct.Meta, cur)
		if err != nil {
			_ = cur.finish()
			r.pad(a, set, plan, done)
			return r.codecErr("components", errors.Wrapf(err, "component %s", ct.Meta.name))
		}
		if !ok {
			_ = cur.finish()
			r.pad(a, set, plan, done)
			return nil
		}
		if err := cur.finish(); err != nil {
			r.pad(a, set, plan, done)
			kind := ErrUncommittedRange
			if !errors.Is(err, ErrUncommittedRange) {
				kind = ErrProtocolOrder
			}
			return decodeError(kind, "components", r.arch, err)
		}
	}
	return nil
}

// pad reserves zeroed slots for plan in every component column not marked
// in done. A nil done pads every column.
func (r *reconstruction) pad(a *Archetype, set int, plan []ChunkRange, done []bool) {
	for i, ct := range a.desc.components {
		if done != nil && done[i] {
			continue
		}
		newSlotCursor(a, set, plan, ct).pad()
	}
}
