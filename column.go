package kura

import (
	"fmt"
	"reflect"
	"unsafe"
)

// ComponentColumn is the fixed-capacity columnar array of one component type
// inside one chunk. Its backing array is allocated once, at the chunk's
// capacity, with the component's Go type; growing the column only moves its
// length.
type ComponentColumn struct {
	meta *ComponentMeta
	data reflect.Value // []T, len == cap == chunk capacity
	base unsafe.Pointer
	len  int
}

func newComponentColumn(meta *ComponentMeta, capacity int) *ComponentColumn {
	data := reflect.MakeSlice(reflect.SliceOf(meta.typ), capacity, capacity)
	return &ComponentColumn{
		meta: meta,
		data: data,
		base: data.UnsafePointer(),
	}
}

// Meta returns the component meta of the column.
func (c *ComponentColumn) Meta() *ComponentMeta { return c.meta }

// Len returns the number of reserved values.
func (c *ComponentColumn) Len() int { return c.len }

// Cap returns the column's fixed capacity.
func (c *ComponentColumn) Cap() int { return c.data.Len() }

// Get returns a pointer to value i.
func (c *ComponentColumn) Get(i int) unsafe.Pointer {
	if i < 0 || i >= c.len {
		panic(fmt.Sprintf("kura: component index %d out of range [0, %d)", i, c.len))
	}
	return unsafe.Add(c.base, uintptr(i)*c.meta.size)
}

// reserve grows the column by n values and returns a pointer to the first
// one. The values are zeroed memory the caller is expected to initialize.
func (c *ComponentColumn) reserve(n int) unsafe.Pointer {
	if c.len+n > c.data.Len() {
		panic(fmt.Sprintf("kura: component column %s overflow: %d + %d > %d", c.meta.name, c.len, n, c.data.Len()))
	}
	p := unsafe.Add(c.base, uintptr(c.len)*c.meta.size)
	c.len += n
	return p
}

// Column returns the reserved values of c as a []T. It panics if T is not the
// column's component type.
func Column[T any](c *ComponentColumn) []T {
	if reflect.TypeFor[T]() != c.meta.typ {
		panic("kura: component type mismatch: " + reflect.TypeFor[T]().String() + " read from " + c.meta.typ.String())
	}
	if c.len == 0 {
		return nil
	}
	return unsafe.Slice((*T)(c.base), c.len)
}
