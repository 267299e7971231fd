package kura

import (
	"strings"
)

// ComponentType pairs a component id with its meta.
type ComponentType struct {
	Meta *ComponentMeta
	ID   ComponentTypeID
}

// TagType pairs a tag id with its meta.
type TagType struct {
	Meta *TagMeta
	ID   TagTypeID
}

// ArchetypeDescription is the structural key of an archetype: an ordered list
// of component types and an ordered list of tag types. Two descriptions are
// equal when they declare the same type sets, whatever the declaration order.
type ArchetypeDescription struct {
	components []ComponentType
	tags       []TagType
	compMask   bitmask256
	tagMask    bitmask256
}

// NewArchetypeDescription returns an empty description.
func NewArchetypeDescription() *ArchetypeDescription {
	return &ArchetypeDescription{}
}

// WithComponent appends a component type. Declaring a type twice has no
// effect.
func (d *ArchetypeDescription) WithComponent(id ComponentTypeID, meta *ComponentMeta) *ArchetypeDescription {
	if d.compMask.containsBit(uint8(id)) {
		return d
	}
	d.compMask.set(uint8(id))
	d.components = append(d.components, ComponentType{ID: id, Meta: meta})
	return d
}

// WithTag appends a tag type. Declaring a type twice has no effect.
func (d *ArchetypeDescription) WithTag(id TagTypeID, meta *TagMeta) *ArchetypeDescription {
	if d.tagMask.containsBit(uint8(id)) {
		return d
	}
	d.tagMask.set(uint8(id))
	d.tags = append(d.tags, TagType{ID: id, Meta: meta})
	return d
}

// Components returns the component types in declaration order.
func (d *ArchetypeDescription) Components() []ComponentType { return d.components }

// Tags returns the tag types in declaration order.
func (d *ArchetypeDescription) Tags() []TagType { return d.tags }

// Equal reports whether d and o declare the same component and tag type sets.
func (d *ArchetypeDescription) Equal(o *ArchetypeDescription) bool {
	return d.compMask == o.compMask && d.tagMask == o.tagMask
}

// HasComponent reports whether the description declares component id.
func (d *ArchetypeDescription) HasComponent(id ComponentTypeID) bool {
	return d.compMask.containsBit(uint8(id))
}

// ComponentIndex returns the declaration index of component id, or -1.
func (d *ArchetypeDescription) ComponentIndex(id ComponentTypeID) int {
	if !d.compMask.containsBit(uint8(id)) {
		return -1
	}
	for i, c := range d.components {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// TagIndex returns the declaration index of tag id, or -1.
func (d *ArchetypeDescription) TagIndex(id TagTypeID) int {
	if !d.tagMask.containsBit(uint8(id)) {
		return -1
	}
	for i, t := range d.tags {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (d *ArchetypeDescription) String() string {
	var sb strings.Builder
	sb.WriteString("components=[")
	for i, c := range d.components {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(c.Meta.Name())
	}
	sb.WriteString("] tags=[")
	for i, t := range d.tags {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Meta.Name())
	}
	sb.WriteByte(']')
	return sb.String()
}
