package kura

import (
	"fmt"
	"reflect"
	"unsafe"

	"github.com/pkg/errors"
)

// SlotRange is a run of freshly reserved component slots in one column.
// The slots hold zeroed memory until the codec initializes them.
type SlotRange struct {
	ptr   unsafe.Pointer
	meta  *ComponentMeta
	count int
}

// Ptr returns a pointer to the first slot.
func (r SlotRange) Ptr() unsafe.Pointer { return r.ptr }

// Len returns the number of slots.
func (r SlotRange) Len() int { return r.count }

// Stride returns the distance in bytes between consecutive slots.
func (r SlotRange) Stride() uintptr { return r.meta.size }

// Meta returns the component meta of the slots.
func (r SlotRange) Meta() *ComponentMeta { return r.meta }

// At returns a pointer to slot i.
func (r SlotRange) At(i int) unsafe.Pointer {
	if i < 0 || i >= r.count {
		panic(fmt.Sprintf("kura: slot %d out of range [0, %d)", i, r.count))
	}
	return unsafe.Add(r.ptr, uintptr(i)*r.meta.size)
}

// clear resets every slot of the range to the zero value.
func (r SlotRange) clear() {
	for i := 0; i < r.count; i++ {
		reflect.NewAt(r.meta.typ, r.At(i)).Elem().SetZero()
	}
}

// Slots returns the range as a []T. It panics if T is not the range's
// component type.
func Slots[T any](r SlotRange) []T {
	if reflect.TypeFor[T]() != r.meta.typ {
		panic("kura: component type mismatch: " + reflect.TypeFor[T]().String() + " written to " + r.meta.typ.String())
	}
	if r.count == 0 {
		return nil
	}
	return unsafe.Slice((*T)(r.ptr), r.count)
}

// SlotCursor hands a codec the slot ranges of one component type for one
// allocation plan, one range at a time. Each range returned by Next must be
// fully initialized and then committed before Next is called again.
//
//	for r, ok := cur.Next(); ok; r, ok = cur.Next() {
//	    for i := 0; i < r.Len(); i++ {
//	        // initialize r.At(i)
//	    }
//	    cur.Commit()
//	}
type SlotCursor struct {
	arch      *Archetype
	meta      *ComponentMeta
	err       error
	plan      []ChunkRange
	cur       SlotRange
	set       int
	next      int // next plan entry
	committed int
	comp      ComponentTypeID
	open      bool
}

func newSlotCursor(a *Archetype, set int, plan []ChunkRange, ct ComponentType) *SlotCursor {
	return &SlotCursor{arch: a, set: set, plan: plan, comp: ct.ID, meta: ct.Meta}
}

// Next reserves and returns the next slot range. It returns false when the
// plan is exhausted, or when the previous range was not committed, in which
// case the cursor stops handing out ranges.
func (c *SlotCursor) Next() (SlotRange, bool) {
	if c.err != nil {
		return SlotRange{}, false
	}
	if c.open {
		c.err = errors.Wrapf(ErrUncommittedRange, "next range requested before committing %d slots", c.cur.count)
		return SlotRange{}, false
	}
	if c.next >= len(c.plan) {
		return SlotRange{}, false
	}
	p := c.plan[c.next]
	r, err := c.arch.ReserveComponentSlots(c.set, p.Chunk, c.comp, p.Count)
	if err != nil {
		c.err = err
		return SlotRange{}, false
	}
	c.next++
	c.cur = r
	c.open = true
	return r, true
}

// Commit marks the range returned by the last Next as initialized.
func (c *SlotCursor) Commit() {
	if !c.open {
		panic("kura: commit without an open slot range")
	}
	c.open = false
	c.committed++
}

// Remaining returns the number of plan ranges not yet handed out.
func (c *SlotCursor) Remaining() int {
	return len(c.plan) - c.next
}

// pad reserves every range not yet handed out and leaves it zeroed.
func (c *SlotCursor) pad() {
	ci := c.arch.desc.ComponentIndex(c.comp)
	cs := c.arch.chunksets[c.set]
	for ; c.next < len(c.plan); c.next++ {
		p := c.plan[c.next]
		cs.chunks[p.Chunk].columns[ci].reserve(p.Count)
	}
}

// finish closes the cursor after the codec returned. An open range is reset
// to zero values and ranges never handed out are reserved zeroed, so the
// column ends as long as the entity list. Either case is reported as
// ErrUncommittedRange.
func (c *SlotCursor) finish() error {
	if c.open {
		c.cur.clear()
		c.open = false
	}
	if c.err != nil && !errors.Is(c.err, ErrUncommittedRange) {
		return c.err
	}
	c.pad()
	if c.err != nil {
		return c.err
	}
	if n := len(c.plan) - c.committed; n > 0 {
		return errors.Wrapf(ErrUncommittedRange, "component %s: %d of %d ranges uninitialized", c.meta.name, n, len(c.plan))
	}
	return nil
}
