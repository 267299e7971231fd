package kura

import (
	"reflect"
	"unsafe"
)

// TagStorage is an append-only columnar buffer of one tag type's values. A
// chunkset keeps one storage per declared tag type holding its single tag
// value; codecs fill transient storages with decoded candidates.
//
// Values live in a slice of the tag's Go type so the garbage collector sees
// typed memory; raw access hands out pointers into that slice.
type TagStorage struct {
	meta *TagMeta
	data reflect.Value // []T
}

// NewTagStorage creates an empty storage for values described by meta.
func NewTagStorage(meta *TagMeta) *TagStorage {
	return &TagStorage{
		meta: meta,
		data: reflect.MakeSlice(reflect.SliceOf(meta.typ), 0, 1),
	}
}

// Meta returns the tag meta of the stored values.
func (s *TagStorage) Meta() *TagMeta { return s.meta }

// Len returns the number of stored values.
func (s *TagStorage) Len() int { return s.data.Len() }

// Push appends a zero value and returns a pointer to it for the caller to
// initialize. The pointer is valid until the next Push or PushRaw.
func (s *TagStorage) Push() unsafe.Pointer {
	s.data = reflect.Append(s.data, reflect.Zero(s.meta.typ))
	return s.Get(s.data.Len() - 1)
}

// PushRaw appends a bit copy of the value at src. Ownership of any resources
// the value references moves to the storage; the caller must not drop src
// afterwards.
func (s *TagStorage) PushRaw(src unsafe.Pointer) {
	s.data = reflect.Append(s.data, reflect.NewAt(s.meta.typ, src).Elem())
}

// Get returns a pointer to value i.
func (s *TagStorage) Get(i int) unsafe.Pointer {
	return s.data.Index(i).Addr().UnsafePointer()
}

// Raw returns the base pointer, stride and length of the stored values.
func (s *TagStorage) Raw() (ptr unsafe.Pointer, stride uintptr, n int) {
	n = s.data.Len()
	if n == 0 {
		return nil, s.meta.size, 0
	}
	return s.Get(0), s.meta.size, n
}

// dropAll runs the tag's destructor on every stored value and then discards
// the buffer.
func (s *TagStorage) dropAll() {
	for i := 0; i < s.data.Len(); i++ {
		s.meta.Drop(s.Get(i))
	}
	s.forget()
}

// forget discards the buffer without running destructors. Every value must
// already have been dropped or relocated.
func (s *TagStorage) forget() {
	s.data = reflect.MakeSlice(reflect.SliceOf(s.meta.typ), 0, 0)
}

// PushTag appends v to s. It panics if T is not the storage's tag type.
func PushTag[T any](s *TagStorage, v T) {
	if reflect.TypeFor[T]() != s.meta.typ {
		panic("kura: tag type mismatch: " + reflect.TypeFor[T]().String() + " pushed into " + s.meta.typ.String())
	}
	*(*T)(s.Push()) = v
}

// TagAt returns a typed pointer to value i of s.
func TagAt[T any](s *TagStorage, i int) *T {
	if reflect.TypeFor[T]() != s.meta.typ {
		panic("kura: tag type mismatch: " + reflect.TypeFor[T]().String() + " read from " + s.meta.typ.String())
	}
	return (*T)(s.Get(i))
}
