package msgpack

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tinylib/msgp/msgp"

	"github.com/edwinsyarief/kura"
)

// Encoder writes a World as a MessagePack stream. It implements
// kura.Encoder; call Flush once kura.Serialize returns.
type Encoder struct {
	w   *msgp.Writer
	buf []byte
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: msgp.NewWriter(w)}
}

// Flush writes buffered data to the underlying writer.
func (e *Encoder) Flush() error {
	return e.w.Flush()
}

func (e *Encoder) BeginArchetypes(n int) error {
	return e.w.WriteArrayHeader(uint32(n))
}

func (e *Encoder) BeginArchetype() error {
	return e.w.WriteMapHeader(3)
}

func (e *Encoder) EncodeArchetypeDescription(desc *kura.ArchetypeDescription) error {
	if err := e.w.WriteString(keyDescription); err != nil {
		return err
	}
	if err := e.w.WriteMapHeader(2); err != nil {
		return err
	}
	if err := e.w.WriteString(keyComponents); err != nil {
		return err
	}
	comps := desc.Components()
	if err := e.w.WriteArrayHeader(uint32(len(comps))); err != nil {
		return err
	}
	for _, c := range comps {
		if err := e.writeType(c.Meta.Name(), c.Meta.Size(), c.Meta.Codec().Encoding()); err != nil {
			return err
		}
	}
	if err := e.w.WriteString(keyTags); err != nil {
		return err
	}
	tags := desc.Tags()
	if err := e.w.WriteArrayHeader(uint32(len(tags))); err != nil {
		return err
	}
	for _, t := range tags {
		if err := e.writeType(t.Meta.Name(), t.Meta.Size(), t.Meta.Codec().Encoding()); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeType(name string, size uintptr, encoding string) error {
	if err := e.w.WriteMapHeader(3); err != nil {
		return err
	}
	if err := e.w.WriteString(keyName); err != nil {
		return err
	}
	if err := e.w.WriteString(name); err != nil {
		return err
	}
	if err := e.w.WriteString(keySize); err != nil {
		return err
	}
	if err := e.w.WriteUint64(uint64(size)); err != nil {
		return err
	}
	if err := e.w.WriteString(keyEncoding); err != nil {
		return err
	}
	return e.w.WriteString(encoding)
}

func (e *Encoder) BeginTags(n int) error {
	if err := e.w.WriteString(keyTags); err != nil {
		return err
	}
	return e.w.WriteArrayHeader(uint32(n))
}

func (e *Encoder) EncodeTags(_ kura.TagTypeID, meta *kura.TagMeta, values *kura.TagStorage) error {
	if err := e.w.WriteArrayHeader(uint32(values.Len())); err != nil {
		return err
	}
	codec := meta.Codec()
	for i := 0; i < values.Len(); i++ {
		var err error
		e.buf, err = codec.AppendValue(e.buf[:0], values.Get(i))
		if err != nil {
			return errors.Wrapf(err, "tag value %d", i)
		}
		if err := e.w.WriteBytes(e.buf); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) BeginChunksets(n int) error {
	if err := e.w.WriteString(keyChunkSets); err != nil {
		return err
	}
	return e.w.WriteArrayHeader(uint32(n))
}

func (e *Encoder) BeginChunks(n int) error {
	return e.w.WriteArrayHeader(uint32(n))
}

func (e *Encoder) BeginChunk() error {
	return e.w.WriteMapHeader(2)
}

func (e *Encoder) EncodeEntities(entities []kura.Entity) error {
	if err := e.w.WriteString(keyEntities); err != nil {
		return err
	}
	if err := e.w.WriteArrayHeader(uint32(len(entities))); err != nil {
		return err
	}
	for _, ent := range entities {
		if err := e.w.WriteUint64(packEntity(ent)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) BeginComponents(n int) error {
	if err := e.w.WriteString(keyComponents); err != nil {
		return err
	}
	return e.w.WriteArrayHeader(uint32(n))
}

func (e *Encoder) EncodeComponents(_ kura.ComponentTypeID, meta *kura.ComponentMeta, col *kura.ComponentColumn) error {
	if err := e.w.WriteArrayHeader(uint32(col.Len())); err != nil {
		return err
	}
	codec := meta.Codec()
	for i := 0; i < col.Len(); i++ {
		var err error
		e.buf, err = codec.AppendValue(e.buf[:0], col.Get(i))
		if err != nil {
			return errors.Wrapf(err, "component value %d", i)
		}
		if err := e.w.WriteBytes(e.buf); err != nil {
			return err
		}
	}
	return nil
}

// End is a no-op: MessagePack containers are length-prefixed.
func (e *Encoder) End() error { return nil }

var _ kura.Encoder = (*Encoder)(nil)
