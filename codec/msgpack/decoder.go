package msgpack

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"

	"github.com/edwinsyarief/kura"
)

// Nesting levels of the stream, outermost first.
const (
	levelArchetypes = iota
	levelArchetypeFields
	levelFieldItems // tag buffers or chunk sets
	levelChunks
	levelChunkFields
	levelComponents
)

// frame is an open container whose remaining elements have not been read.
type frame struct {
	level int
	left  uint32
	pairs bool // map: every element is a key and a value
}

// Decoder reads a MessagePack stream for kura.Deserialize. Entities in the
// stream are replaced by freshly allocated ones; Remapped reports the
// correspondence.
type Decoder struct {
	r       *msgp.Reader
	remap   map[kura.Entity]kura.Entity
	stack   []frame
	buf     []byte
	started bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:     msgp.NewReader(r),
		remap: make(map[kura.Entity]kura.Entity),
	}
}

// Remapped returns, for every entity read so far, the entity allocated for
// it.
func (d *Decoder) Remapped() map[kura.Entity]kura.Entity {
	return d.remap
}

// unwind skips what remains of every container nested deeper than level.
func (d *Decoder) unwind(level int) error {
	for len(d.stack) > 0 {
		f := d.stack[len(d.stack)-1]
		if f.level <= level {
			return nil
		}
		n := f.left
		if f.pairs {
			n *= 2
		}
		for ; n > 0; n-- {
			if err := d.r.Skip(); err != nil {
				return err
			}
		}
		d.stack = d.stack[:len(d.stack)-1]
	}
	return nil
}

// take claims the next element of the innermost container at level. It pops
// the container and returns false when it is exhausted.
func (d *Decoder) take(level int) (bool, error) {
	if err := d.unwind(level); err != nil {
		return false, err
	}
	if len(d.stack) == 0 || d.stack[len(d.stack)-1].level != level {
		return false, errors.Errorf("msgpack: no open container at level %d", level)
	}
	top := &d.stack[len(d.stack)-1]
	if top.left == 0 {
		d.stack = d.stack[:len(d.stack)-1]
		return false, nil
	}
	top.left--
	return true, nil
}

func (d *Decoder) pushArray(level int) error {
	n, err := d.r.ReadArrayHeader()
	if err != nil {
		return err
	}
	d.stack = append(d.stack, frame{level: level, left: n})
	return nil
}

func (d *Decoder) pushMap(level int) error {
	n, err := d.r.ReadMapHeader()
	if err != nil {
		return err
	}
	d.stack = append(d.stack, frame{level: level, left: n, pairs: true})
	return nil
}

func (d *Decoder) NextArchetype() (bool, error) {
	if !d.started {
		d.started = true
		if err := d.pushArray(levelArchetypes); err != nil {
			if errors.Is(err, io.EOF) {
				d.stack = append(d.stack, frame{level: levelArchetypes})
			} else {
				return false, errors.Wrap(err, "msgpack: archetypes")
			}
		}
	}
	ok, err := d.take(levelArchetypes)
	if !ok || err != nil {
		return false, err
	}
	return true, errors.Wrap(d.pushMap(levelArchetypeFields), "msgpack: archetype")
}

func (d *Decoder) NextArchetypeField() (kura.ArchetypeField, bool, error) {
	for {
		ok, err := d.take(levelArchetypeFields)
		if !ok || err != nil {
			return 0, false, err
		}
		key, err := d.r.ReadString()
		if err != nil {
			return 0, false, errors.Wrap(err, "msgpack: archetype field")
		}
		switch key {
		case keyDescription:
			return kura.FieldDescription, true, nil
		case keyTags:
			return kura.FieldTags, true, errors.Wrap(d.pushArray(levelFieldItems), "msgpack: tags")
		case keyChunkSets:
			return kura.FieldChunkSets, true, errors.Wrap(d.pushArray(levelFieldItems), "msgpack: chunk_sets")
		}
		if err := d.r.Skip(); err != nil {
			return 0, false, err
		}
	}
}

type typeRef struct {
	name     string
	encoding string
	size     uintptr
}

func (d *Decoder) readTypes() ([]typeRef, error) {
	n, err := d.r.ReadArrayHeader()
	if err != nil {
		return nil, err
	}
	refs := make([]typeRef, n)
	for i := range refs {
		fields, err := d.r.ReadMapHeader()
		if err != nil {
			return nil, err
		}
		for ; fields > 0; fields-- {
			key, err := d.r.ReadString()
			if err != nil {
				return nil, err
			}
			switch key {
			case keyName:
				refs[i].name, err = d.r.ReadString()
			case keySize:
				var sz uint64
				sz, err = d.r.ReadUint64()
				refs[i].size = uintptr(sz)
			case keyEncoding:
				refs[i].encoding, err = d.r.ReadString()
			default:
				err = d.r.Skip()
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return refs, nil
}

func (d *Decoder) DecodeArchetypeDescription(types *kura.TypeRegistry) (*kura.ArchetypeDescription, error) {
	fields, err := d.r.ReadMapHeader()
	if err != nil {
		return nil, errors.Wrap(err, "msgpack: description")
	}
	var comps, tags []typeRef
	for ; fields > 0; fields-- {
		key, err := d.r.ReadString()
		if err != nil {
			return nil, errors.Wrap(err, "msgpack: description")
		}
		switch key {
		case keyComponents:
			comps, err = d.readTypes()
		case keyTags:
			tags, err = d.readTypes()
		default:
			err = d.r.Skip()
		}
		if err != nil {
			return nil, errors.Wrapf(err, "msgpack: description %s", key)
		}
	}
	desc := kura.NewArchetypeDescription()
	for _, c := range comps {
		id, meta, err := types.ResolveComponent(c.name, c.size, c.encoding)
		if err != nil {
			return nil, err
		}
		desc.WithComponent(id, meta)
	}
	for _, t := range tags {
		id, meta, err := types.ResolveTag(t.name, t.size, t.encoding)
		if err != nil {
			return nil, err
		}
		desc.WithTag(id, meta)
	}
	return desc, nil
}

func (d *Decoder) DecodeTags(_ kura.TagTypeID, meta *kura.TagMeta, out *kura.TagStorage) (bool, error) {
	ok, err := d.take(levelFieldItems)
	if !ok || err != nil {
		return false, err
	}
	n, err := d.r.ReadArrayHeader()
	if err != nil {
		return false, errors.Wrap(err, "msgpack: tag buffer")
	}
	codec := meta.Codec()
	for i := uint32(0); i < n; i++ {
		d.buf, err = d.r.ReadBytes(d.buf[:0])
		if err != nil {
			return false, errors.Wrapf(err, "msgpack: tag value %d", i)
		}
		if err := codec.DecodeValue(out.Push(), d.buf); err != nil {
			return false, errors.Wrapf(err, "msgpack: tag value %d", i)
		}
	}
	return true, nil
}

func (d *Decoder) NextChunkset() (bool, error) {
	ok, err := d.take(levelFieldItems)
	if !ok || err != nil {
		return false, err
	}
	return true, errors.Wrap(d.pushArray(levelChunks), "msgpack: chunk set")
}

func (d *Decoder) NextChunk() (bool, error) {
	ok, err := d.take(levelChunks)
	if !ok || err != nil {
		return false, err
	}
	return true, errors.Wrap(d.pushMap(levelChunkFields), "msgpack: chunk")
}

func (d *Decoder) NextChunkField() (kura.ChunkField, bool, error) {
	for {
		ok, err := d.take(levelChunkFields)
		if !ok || err != nil {
			return 0, false, err
		}
		key, err := d.r.ReadString()
		if err != nil {
			return 0, false, errors.Wrap(err, "msgpack: chunk field")
		}
		switch key {
		case keyEntities:
			return kura.FieldEntities, true, nil
		case keyComponents:
			return kura.FieldComponents, true, errors.Wrap(d.pushArray(levelComponents), "msgpack: components")
		}
		if err := d.r.Skip(); err != nil {
			return 0, false, err
		}
	}
}

func (d *Decoder) DecodeEntities(alloc *kura.EntityAllocator) ([]kura.Entity, error) {
	n, err := d.r.ReadArrayHeader()
	if err != nil {
		return nil, errors.Wrap(err, "msgpack: entities")
	}
	ents := make([]kura.Entity, n)
	for i := range ents {
		v, err := d.r.ReadUint64()
		if err != nil {
			return nil, errors.Wrapf(err, "msgpack: entity %d", i)
		}
		ents[i] = alloc.Allocate()
		d.remap[unpackEntity(v)] = ents[i]
	}
	return ents, nil
}

func (d *Decoder) DecodeComponents(_ kura.ComponentTypeID, meta *kura.ComponentMeta, cur *kura.SlotCursor) (bool, error) {
	ok, err := d.take(levelComponents)
	if !ok || err != nil {
		return false, err
	}
	left, err := d.r.ReadArrayHeader()
	if err != nil {
		return false, errors.Wrap(err, "msgpack: component column")
	}
	codec := meta.Codec()
	for r, ok := cur.Next(); ok; r, ok = cur.Next() {
		if uint32(r.Len()) > left {
			// short column: the cursor reports the uninitialized range
			break
		}
		for i := 0; i < r.Len(); i++ {
			d.buf, err = d.r.ReadBytes(d.buf[:0])
			if err != nil {
				return false, errors.Wrap(err, "msgpack: component value")
			}
			if err := codec.DecodeValue(r.At(i), d.buf); err != nil {
				return false, errors.Wrap(err, "msgpack: component value")
			}
		}
		left -= uint32(r.Len())
		cur.Commit()
	}
	for ; left > 0; left-- {
		if err := d.r.Skip(); err != nil {
			return false, err
		}
	}
	return true, nil
}

var _ kura.Decoder = (*Decoder)(nil)
