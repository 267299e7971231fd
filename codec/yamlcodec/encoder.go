package yamlcodec

import (
	"io"
	"reflect"
	"strconv"
	"unsafe"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/edwinsyarief/kura"
)

// Encoder builds a YAML document from kura.Serialize calls and writes it on
// Flush.
type Encoder struct {
	w     io.Writer
	root  *yaml.Node
	stack []*yaml.Node
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Flush writes the document built so far.
func (e *Encoder) Flush() error {
	if e.root == nil {
		return errors.New("yaml: nothing encoded")
	}
	enc := yaml.NewEncoder(e.w)
	enc.SetIndent(2)
	if err := enc.Encode(e.root); err != nil {
		return err
	}
	return enc.Close()
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}

func intNode(v uint64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(v, 10)}
}

func seq(flow bool) *yaml.Node {
	n := &yaml.Node{Kind: yaml.SequenceNode}
	if flow {
		n.Style = yaml.FlowStyle
	}
	return n
}

// add appends n to the innermost open node, under key when it is a mapping.
func (e *Encoder) add(key string, n *yaml.Node) error {
	if len(e.stack) == 0 {
		return errors.New("yaml: no open node")
	}
	top := e.stack[len(e.stack)-1]
	if top.Kind == yaml.MappingNode {
		top.Content = append(top.Content, scalar(key), n)
	} else {
		top.Content = append(top.Content, n)
	}
	return nil
}

func (e *Encoder) open(key string, n *yaml.Node) error {
	if err := e.add(key, n); err != nil {
		return err
	}
	e.stack = append(e.stack, n)
	return nil
}

func valueNode(t reflect.Type, p unsafe.Pointer) (*yaml.Node, error) {
	var n yaml.Node
	if err := n.Encode(reflect.NewAt(t, p).Elem().Interface()); err != nil {
		return nil, err
	}
	return &n, nil
}

func typeNode(name string, size uintptr, encoding string) *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle, Content: []*yaml.Node{
		scalar("name"), scalar(name),
		scalar("size"), intNode(uint64(size)),
		scalar("encoding"), scalar(encoding),
	}}
}

func (e *Encoder) BeginArchetypes(int) error {
	e.root = seq(false)
	e.stack = append(e.stack[:0], e.root)
	return nil
}

func (e *Encoder) BeginArchetype() error {
	return e.open("", &yaml.Node{Kind: yaml.MappingNode})
}

func (e *Encoder) EncodeArchetypeDescription(desc *kura.ArchetypeDescription) error {
	comps := seq(false)
	for _, c := range desc.Components() {
		comps.Content = append(comps.Content, typeNode(c.Meta.Name(), c.Meta.Size(), c.Meta.Codec().Encoding()))
	}
	tags := seq(false)
	for _, t := range desc.Tags() {
		tags.Content = append(tags.Content, typeNode(t.Meta.Name(), t.Meta.Size(), t.Meta.Codec().Encoding()))
	}
	return e.add("description", &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		scalar("components"), comps,
		scalar("tags"), tags,
	}})
}

func (e *Encoder) BeginTags(int) error {
	return e.open("tags", seq(false))
}

func (e *Encoder) EncodeTags(_ kura.TagTypeID, meta *kura.TagMeta, values *kura.TagStorage) error {
	buf := seq(true)
	for i := 0; i < values.Len(); i++ {
		n, err := valueNode(meta.Type(), values.Get(i))
		if err != nil {
			return errors.Wrapf(err, "tag %s value %d", meta.Name(), i)
		}
		buf.Content = append(buf.Content, n)
	}
	return e.add("", buf)
}

func (e *Encoder) BeginChunksets(int) error {
	return e.open("chunk_sets", seq(false))
}

func (e *Encoder) BeginChunks(int) error {
	return e.open("", seq(false))
}

func (e *Encoder) BeginChunk() error {
	return e.open("", &yaml.Node{Kind: yaml.MappingNode})
}

func (e *Encoder) EncodeEntities(entities []kura.Entity) error {
	n := seq(true)
	for _, ent := range entities {
		pair := seq(true)
		pair.Content = append(pair.Content, intNode(uint64(ent.Index)), intNode(uint64(ent.Generation)))
		n.Content = append(n.Content, pair)
	}
	return e.add("entities", n)
}

func (e *Encoder) BeginComponents(int) error {
	return e.open("components", seq(false))
}

func (e *Encoder) EncodeComponents(_ kura.ComponentTypeID, meta *kura.ComponentMeta, col *kura.ComponentColumn) error {
	n := seq(false)
	for i := 0; i < col.Len(); i++ {
		v, err := valueNode(meta.Type(), col.Get(i))
		if err != nil {
			return errors.Wrapf(err, "component %s value %d", meta.Name(), i)
		}
		n.Content = append(n.Content, v)
	}
	return e.add("", n)
}

func (e *Encoder) End() error {
	if len(e.stack) == 0 {
		return errors.New("yaml: unbalanced End")
	}
	e.stack = e.stack[:len(e.stack)-1]
	return nil
}

var _ kura.Encoder = (*Encoder)(nil)
