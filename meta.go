package kura

import (
	"bytes"
	"fmt"
	"reflect"
	"unsafe"

	gojson "github.com/goccy/go-json"
)

// Dropper is implemented by component and tag types that hold resources which
// must be released when a stored value is discarded. The storage engine calls
// Drop through the type's meta before zeroing the value's memory.
type Dropper interface {
	Drop()
}

// ValueCodec turns one stored value into bytes and back. Codecs that write a
// self-describing stream use the codec carried by each meta, so the storage
// engine never needs to know the concrete Go type behind a column.
type ValueCodec interface {
	// Encoding is the stable name written into archetype descriptions.
	Encoding() string
	// AppendValue appends the encoded form of the value at p to dst.
	AppendValue(dst []byte, p unsafe.Pointer) ([]byte, error)
	// DecodeValue initializes the value at p from data.
	DecodeValue(p unsafe.Pointer, data []byte) error
}

const (
	// EncodingRaw stores the value's memory verbatim. Only pointer-free
	// layouts use it.
	EncodingRaw = "raw"
	// EncodingJSON stores the value as JSON.
	EncodingJSON = "json"
)

var dropperType = reflect.TypeFor[Dropper]()

// typeInfo is the layout and behaviour shared by component and tag metas.
type typeInfo struct {
	typ    reflect.Type
	codec  ValueCodec
	equals func(a, b unsafe.Pointer) bool
	name   string
	size   uintptr
	align  uintptr
	drops  bool // the type implements Dropper
}

func newTypeInfo(t reflect.Type, name string) typeInfo {
	if name == "" {
		name = t.String()
	}
	ti := typeInfo{
		typ:   t,
		name:  name,
		size:  t.Size(),
		align: uintptr(t.Align()),
		drops: reflect.PointerTo(t).Implements(dropperType),
	}
	switch {
	case pointerFree(t):
		spans := valueSpans(t, 0, nil)
		ti.equals = func(a, b unsafe.Pointer) bool {
			for _, s := range spans {
				if !bytes.Equal(unsafe.Slice((*byte)(unsafe.Add(a, s.off)), s.size), unsafe.Slice((*byte)(unsafe.Add(b, s.off)), s.size)) {
					return false
				}
			}
			return true
		}
	case t.Comparable() && !holdsInterface(t):
		ti.equals = func(a, b unsafe.Pointer) bool {
			return reflect.NewAt(t, a).Elem().Equal(reflect.NewAt(t, b).Elem())
		}
	default:
		ti.equals = func(a, b unsafe.Pointer) bool {
			return reflect.DeepEqual(reflect.NewAt(t, a).Interface(), reflect.NewAt(t, b).Interface())
		}
	}
	if pointerFree(t) {
		ti.codec = rawCodec{size: ti.size}
	} else {
		ti.codec = jsonCodec{typ: t}
	}
	return ti
}

// Type returns the Go type stored under this meta.
func (ti *typeInfo) Type() reflect.Type { return ti.typ }

// Name returns the stable name used by self-describing codecs.
func (ti *typeInfo) Name() string { return ti.name }

// Size returns the size in bytes of one value.
func (ti *typeInfo) Size() uintptr { return ti.size }

// Align returns the alignment in bytes of one value.
func (ti *typeInfo) Align() uintptr { return ti.align }

// Codec returns the value codec used to persist values of this type.
func (ti *typeInfo) Codec() ValueCodec { return ti.codec }

// Equals reports whether the values at a and b are equal.
func (ti *typeInfo) Equals(a, b unsafe.Pointer) bool { return ti.equals(a, b) }

// Drop releases the value at p. Types implementing Dropper are notified
// first; the memory is then reset to the zero value so no references are
// retained by the discarded slot.
func (ti *typeInfo) Drop(p unsafe.Pointer) {
	v := reflect.NewAt(ti.typ, p)
	if ti.drops {
		v.Interface().(Dropper).Drop()
	}
	v.Elem().SetZero()
}

// ComponentMeta describes a component type the storage engine keeps as opaque
// columns of values.
type ComponentMeta struct {
	typeInfo
}

// TagMeta describes a tag type. Tags partition an archetype's entities into
// chunksets, so Equals must be a proper equivalence over stored values.
//
// Pointer-free types compare field by field on their bits: a NaN tag matches
// itself, and 0.0 and -0.0 are different tags. Other types compare with ==,
// or reflect.DeepEqual when they hold interfaces, so a float field next to a
// pointer or string never matches when it is NaN.
type TagMeta struct {
	typeInfo
}

// NewComponentMeta builds the meta for component type T. An empty name
// defaults to the Go type name.
func NewComponentMeta[T any](name string) *ComponentMeta {
	return &ComponentMeta{typeInfo: newTypeInfo(reflect.TypeFor[T](), name)}
}

// NewTagMeta builds the meta for tag type T. An empty name defaults to the Go
// type name.
func NewTagMeta[T any](name string) *TagMeta {
	return &TagMeta{typeInfo: newTypeInfo(reflect.TypeFor[T](), name)}
}

// NewTagMetaFunc builds the meta for tag type T with a caller supplied
// equality, for types whose natural comparison does not define the intended
// partitioning. Types that hold floats and pointers and must group NaN
// values need one.
func NewTagMetaFunc[T any](name string, eq func(a, b *T) bool) *TagMeta {
	m := NewTagMeta[T](name)
	m.equals = func(a, b unsafe.Pointer) bool { return eq((*T)(a), (*T)(b)) }
	return m
}

// NewOpaqueComponentMeta builds a layout-only meta of size bytes. It lets
// tools move raw-encoded data around without linking the Go types behind it.
func NewOpaqueComponentMeta(name string, size uintptr) *ComponentMeta {
	return &ComponentMeta{typeInfo: newTypeInfo(reflect.ArrayOf(int(size), reflect.TypeFor[byte]()), name)}
}

// NewOpaqueTagMeta is the tag counterpart of NewOpaqueComponentMeta.
// Equality compares bytes.
func NewOpaqueTagMeta(name string, size uintptr) *TagMeta {
	return &TagMeta{typeInfo: newTypeInfo(reflect.ArrayOf(int(size), reflect.TypeFor[byte]()), name)}
}

// pointerFree reports whether values of t contain no pointers, which makes
// their memory safe to persist byte for byte.
func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// span is a byte range of a value that holds data rather than padding.
type span struct {
	off, size uintptr
}

// valueSpans lists the data ranges of pointer-free type t placed at off,
// merging adjacent ones.
func valueSpans(t reflect.Type, off uintptr, out []span) []span {
	switch t.Kind() {
	case reflect.Array:
		elem := valueSpans(t.Elem(), 0, nil)
		if len(elem) == 1 && elem[0].size == t.Elem().Size() {
			return appendSpan(out, off, t.Size())
		}
		for i := 0; i < t.Len(); i++ {
			out = valueSpans(t.Elem(), off+uintptr(i)*t.Elem().Size(), out)
		}
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			out = valueSpans(f.Type, off+f.Offset, out)
		}
	default:
		out = appendSpan(out, off, t.Size())
	}
	return out
}

func appendSpan(out []span, off, size uintptr) []span {
	if size == 0 {
		return out
	}
	if n := len(out); n > 0 && out[n-1].off+out[n-1].size == off {
		out[n-1].size += size
		return out
	}
	return append(out, span{off: off, size: size})
}

// holdsInterface reports whether t stores an interface value inline, which
// makes == panic on non-comparable dynamic values.
func holdsInterface(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Array:
		return holdsInterface(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsInterface(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

type rawCodec struct {
	size uintptr
}

func (rawCodec) Encoding() string { return EncodingRaw }

func (c rawCodec) AppendValue(dst []byte, p unsafe.Pointer) ([]byte, error) {
	return append(dst, unsafe.Slice((*byte)(p), c.size)...), nil
}

func (c rawCodec) DecodeValue(p unsafe.Pointer, data []byte) error {
	if uintptr(len(data)) != c.size {
		return fmt.Errorf("raw value: expected %d bytes, got %d", c.size, len(data))
	}
	copy(unsafe.Slice((*byte)(p), c.size), data)
	return nil
}

type jsonCodec struct {
	typ reflect.Type
}

func (jsonCodec) Encoding() string { return EncodingJSON }

func (c jsonCodec) AppendValue(dst []byte, p unsafe.Pointer) ([]byte, error) {
	b, err := gojson.Marshal(reflect.NewAt(c.typ, p).Interface())
	if err != nil {
		return nil, err
	}
	return append(dst, b...), nil
}

func (c jsonCodec) DecodeValue(p unsafe.Pointer, data []byte) error {
	return gojson.Unmarshal(data, reflect.NewAt(c.typ, p).Interface())
}
