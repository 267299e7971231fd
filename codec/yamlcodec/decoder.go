// Package yamlcodec implements the kura stream codec on YAML documents.
//
// A document is a sequence of archetype mappings:
//
//	- description:
//	    components: [{name: position, size: 8, encoding: raw}]
//	    tags: [team]
//	  tags:
//	    - [red, blue]
//	  chunk_sets:
//	    - - entities: [[0, 1], [1, 1]]
//	        components:
//	          - [{x: 1, y: 2}, {x: 3, y: 4}]
//
// Types may be given by name alone, which skips the size and encoding
// checks. Values are decoded straight into their Go types, and entities are
// [index, generation] pairs. Record fields may appear in any order; the
// engine rejects orders it cannot reconstruct.
package yamlcodec

import (
	"io"
	"reflect"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/edwinsyarief/kura"
)

// Decoder reads a YAML document for kura.Deserialize. The whole document is
// parsed up front.
type Decoder struct {
	remap       map[kura.Entity]kura.Entity
	archs       []*yaml.Node
	fields      []*yaml.Node // key, value pairs of the current archetype
	value       *yaml.Node   // value of the current archetype field
	items       []*yaml.Node // tag buffers or chunk sets
	chunks      []*yaml.Node
	chunkFields []*yaml.Node
	chunkValue  *yaml.Node
	comps       []*yaml.Node
	ai, fi, ii  int
	ci, cfi, mi int
}

// NewDecoder parses the document read from r.
func NewDecoder(r io.Reader) (*Decoder, error) {
	d := &Decoder{remap: make(map[kura.Entity]kura.Entity)}
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return d, nil
		}
		return nil, errors.Wrap(err, "yaml: parse")
	}
	root := &doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return d, nil
		}
		root = root.Content[0]
	}
	if isNull(root) {
		return d, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, errors.Errorf("yaml: line %d: expected a sequence of archetypes", root.Line)
	}
	d.archs = root.Content
	return d, nil
}

// Remapped returns, for every entity read so far, the entity allocated for
// it.
func (d *Decoder) Remapped() map[kura.Entity]kura.Entity {
	return d.remap
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// sequence returns the elements of a sequence node; null counts as empty.
func sequence(n *yaml.Node, what string) ([]*yaml.Node, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, errors.Errorf("yaml: line %d: %s must be a sequence", n.Line, what)
	}
	return n.Content, nil
}

func mapping(n *yaml.Node, what string) ([]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errors.Errorf("yaml: line %d: %s must be a mapping", n.Line, what)
	}
	return n.Content, nil
}

func (d *Decoder) NextArchetype() (bool, error) {
	if d.ai >= len(d.archs) {
		return false, nil
	}
	n := d.archs[d.ai]
	d.ai++
	fields, err := mapping(n, "archetype")
	if err != nil {
		return false, err
	}
	d.fields, d.fi = fields, 0
	return true, nil
}

func (d *Decoder) NextArchetypeField() (kura.ArchetypeField, bool, error) {
	for d.fi+1 < len(d.fields) {
		key, val := d.fields[d.fi], d.fields[d.fi+1]
		d.fi += 2
		switch key.Value {
		case "description":
			d.value = val
			return kura.FieldDescription, true, nil
		case "tags":
			items, err := sequence(val, "tags")
			if err != nil {
				return 0, false, err
			}
			d.items, d.ii = items, 0
			return kura.FieldTags, true, nil
		case "chunk_sets":
			items, err := sequence(val, "chunk_sets")
			if err != nil {
				return 0, false, err
			}
			d.items, d.ii = items, 0
			return kura.FieldChunkSets, true, nil
		}
	}
	return 0, false, nil
}

// typeRef is one entry of a description: a bare name or a mapping with name,
// size and encoding.
type typeRef struct {
	Name     string `yaml:"name"`
	Encoding string `yaml:"encoding,omitempty"`
	Size     uint64 `yaml:"size,omitempty"`
}

func (t *typeRef) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		t.Name = n.Value
		return nil
	}
	type plain typeRef
	return n.Decode((*plain)(t))
}

type descriptionDoc struct {
	Components []typeRef `yaml:"components"`
	Tags       []typeRef `yaml:"tags"`
}

func (d *Decoder) DecodeArchetypeDescription(types *kura.TypeRegistry) (*kura.ArchetypeDescription, error) {
	var doc descriptionDoc
	if err := d.value.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "yaml: description")
	}
	desc := kura.NewArchetypeDescription()
	for _, c := range doc.Components {
		id, meta, err := types.ResolveComponent(c.Name, uintptr(c.Size), c.Encoding)
		if err != nil {
			return nil, err
		}
		desc.WithComponent(id, meta)
	}
	for _, t := range doc.Tags {
		id, meta, err := types.ResolveTag(t.Name, uintptr(t.Size), t.Encoding)
		if err != nil {
			return nil, err
		}
		desc.WithTag(id, meta)
	}
	return desc, nil
}

func (d *Decoder) DecodeTags(_ kura.TagTypeID, meta *kura.TagMeta, out *kura.TagStorage) (bool, error) {
	if d.ii >= len(d.items) {
		return false, nil
	}
	buf := d.items[d.ii]
	d.ii++
	values, err := sequence(buf, "tag buffer")
	if err != nil {
		return false, err
	}
	for _, v := range values {
		if err := v.Decode(reflect.NewAt(meta.Type(), out.Push()).Interface()); err != nil {
			return false, errors.Wrapf(err, "yaml: tag %s", meta.Name())
		}
	}
	return true, nil
}

func (d *Decoder) NextChunkset() (bool, error) {
	if d.ii >= len(d.items) {
		return false, nil
	}
	set := d.items[d.ii]
	d.ii++
	chunks, err := sequence(set, "chunk set")
	if err != nil {
		return false, err
	}
	d.chunks, d.ci = chunks, 0
	return true, nil
}

func (d *Decoder) NextChunk() (bool, error) {
	if d.ci >= len(d.chunks) {
		return false, nil
	}
	c := d.chunks[d.ci]
	d.ci++
	fields, err := mapping(c, "chunk")
	if err != nil {
		return false, err
	}
	d.chunkFields, d.cfi = fields, 0
	return true, nil
}

func (d *Decoder) NextChunkField() (kura.ChunkField, bool, error) {
	for d.cfi+1 < len(d.chunkFields) {
		key, val := d.chunkFields[d.cfi], d.chunkFields[d.cfi+1]
		d.cfi += 2
		switch key.Value {
		case "entities":
			d.chunkValue = val
			return kura.FieldEntities, true, nil
		case "components":
			comps, err := sequence(val, "components")
			if err != nil {
				return 0, false, err
			}
			d.comps, d.mi = comps, 0
			return kura.FieldComponents, true, nil
		}
	}
	return 0, false, nil
}

func (d *Decoder) DecodeEntities(alloc *kura.EntityAllocator) ([]kura.Entity, error) {
	nodes, err := sequence(d.chunkValue, "entities")
	if err != nil {
		return nil, err
	}
	ents := make([]kura.Entity, len(nodes))
	for i, n := range nodes {
		var old kura.Entity
		if n.Kind == yaml.ScalarNode {
			err = n.Decode(&old.Index)
		} else {
			var pair []uint32
			err = n.Decode(&pair)
			if err == nil && len(pair) != 2 {
				err = errors.Errorf("line %d: expected [index, generation]", n.Line)
			}
			if err == nil {
				old = kura.Entity{Index: pair[0], Generation: pair[1]}
			}
		}
		if err != nil {
			return nil, errors.Wrapf(err, "yaml: entity %d", i)
		}
		ents[i] = alloc.Allocate()
		d.remap[old] = ents[i]
	}
	return ents, nil
}

func (d *Decoder) DecodeComponents(_ kura.ComponentTypeID, meta *kura.ComponentMeta, cur *kura.SlotCursor) (bool, error) {
	if d.mi >= len(d.comps) {
		return false, nil
	}
	col := d.comps[d.mi]
	d.mi++
	values, err := sequence(col, "component column")
	if err != nil {
		return false, err
	}
	for r, ok := cur.Next(); ok; r, ok = cur.Next() {
		if len(values) < r.Len() {
			break
		}
		for i := 0; i < r.Len(); i++ {
			if err := values[i].Decode(reflect.NewAt(meta.Type(), r.At(i)).Interface()); err != nil {
				return false, errors.Wrapf(err, "yaml: component %s", meta.Name())
			}
		}
		values = values[r.Len():]
		cur.Commit()
	}
	return true, nil
}

var _ kura.Decoder = (*Decoder)(nil)
