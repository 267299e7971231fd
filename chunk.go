package kura

// Chunk holds fixed-capacity storage for the entities of one chunkset: the
// ordered entity list plus one column per component type, in description
// order. Once a chunk record is complete every column has as many values as
// the chunk has entities.
type Chunk struct {
	entities []Entity // len = count, cap = capacity
	columns  []*ComponentColumn
}

func newChunk(desc *ArchetypeDescription, capacity int) *Chunk {
	c := &Chunk{
		entities: make([]Entity, 0, capacity),
		columns:  make([]*ComponentColumn, len(desc.components)),
	}
	for i, ct := range desc.components {
		c.columns[i] = newComponentColumn(ct.Meta, capacity)
	}
	return c
}

// Len returns the number of entities in the chunk.
func (c *Chunk) Len() int { return len(c.entities) }

// Capacity returns the maximum number of entities the chunk can hold.
func (c *Chunk) Capacity() int { return cap(c.entities) }

// Free returns the number of unused entity slots.
func (c *Chunk) Free() int { return cap(c.entities) - len(c.entities) }

// IsFull reports whether the chunk has no free slot.
func (c *Chunk) IsFull() bool { return len(c.entities) == cap(c.entities) }

// Entities returns the chunk's entities. The slice is owned by the chunk.
func (c *Chunk) Entities() []Entity { return c.entities }

// Columns returns the component columns in description order.
func (c *Chunk) Columns() []*ComponentColumn { return c.columns }

// Column returns the column at description index i.
func (c *Chunk) Column(i int) *ComponentColumn { return c.columns[i] }

// appendEntities places as many of es as fit and returns how many it took.
func (c *Chunk) appendEntities(es []Entity) int {
	n := min(c.Free(), len(es))
	c.entities = append(c.entities, es[:n]...)
	return n
}
