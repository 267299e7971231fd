package kura_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwinsyarief/kura"
)

const redBlue = `
- description:
    components: [position]
    tags: [team]
  tags:
    - [red, blue]
  chunk_sets:
    - - entities: [[0, 1], [1, 1]]
        components:
          - [{x: 1, y: 2}, {x: 3, y: 4}]
    - - entities: [[2, 1]]
        components:
          - [{x: 5, y: 6}]
`

const greenRed = `
- description:
    components: [{name: position, size: 8, encoding: raw}]
    tags: [team]
  tags:
    - [green, red]
  chunk_sets:
    - - entities: [[0, 1]]
        components:
          - [{x: 7, y: 7}]
    - - entities: [[1, 1]]
        components:
          - [{x: 8, y: 8}]
`

func TestDeserializeRedBlue(t *testing.T) {
	w := newWorld(t)
	_, err := decodeYAML(t, w, redBlue)
	require.NoError(t, err)

	require.Equal(t, 1, w.Storage().Len())
	a := w.Storage().Archetype(0)
	require.Len(t, a.Chunksets(), 2)
	assert.Equal(t, 2, a.Chunkset(0).Len())
	assert.Equal(t, 1, a.Chunkset(1).Len())

	ents := kura.NewFilter[position](w).Entities()
	require.Equal(t, []kura.Entity{{Index: 0, Generation: 1}, {Index: 1, Generation: 1}, {Index: 2, Generation: 1}}, ents)
	want := []struct {
		pos  position
		team team
	}{
		{position{1, 2}, "red"},
		{position{3, 4}, "red"},
		{position{5, 6}, "blue"},
	}
	for i, e := range ents {
		assert.Equal(t, want[i].pos, *kura.GetComponent[position](w, e), "entity %s", e)
		assert.Equal(t, want[i].team, *kura.GetTag[team](w, e), "entity %s", e)
	}
}

func TestDeserializeReusesChunksets(t *testing.T) {
	w := newWorld(t)
	_, err := decodeYAML(t, w, redBlue)
	require.NoError(t, err)

	dec, err := decodeYAML(t, w, greenRed)
	require.NoError(t, err)

	require.Equal(t, 1, w.Storage().Len(), "equal descriptions share an archetype")
	a := w.Storage().Archetype(0)
	require.Len(t, a.Chunksets(), 3)
	assert.Equal(t, 3, a.Chunkset(0).Len(), "red tuple reuses chunkset 0")
	assert.Equal(t, 1, a.Chunkset(1).Len())
	assert.Equal(t, 1, a.Chunkset(2).Len())
	assert.Equal(t, team("green"), *kura.TagAt[team](a.Chunkset(2).Tags()[0], 0))

	red := a.Chunkset(0).Chunk(0)
	assert.Equal(t, 3, red.Len())
	assert.Equal(t, []position{{1, 2}, {3, 4}, {8, 8}}, kura.Column[position](red.Column(0)))

	moved := dec.Remapped()[kura.Entity{Index: 1, Generation: 1}]
	assert.Equal(t, kura.Entity{Index: 4, Generation: 1}, moved)
	assert.Equal(t, team("red"), *kura.GetTag[team](w, moved))
	assert.Equal(t, 5, w.Len())
}

func TestDeserializeProtocolErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{
			name: "tags before description",
			doc: `
- tags:
    - [red]
  description:
    components: [position]
    tags: [team]
`,
			want: kura.ErrMissingField,
		},
		{
			name: "chunk sets before tags",
			doc: `
- description:
    components: [position]
    tags: [team]
  chunk_sets: []
  tags:
    - [red]
`,
			want: kura.ErrMissingField,
		},
		{
			name: "components before entities",
			doc: `
- description:
    components: [position]
    tags: [team]
  tags:
    - [red]
  chunk_sets:
    - - components:
          - [{x: 1, y: 2}]
        entities: [[0, 1]]
`,
			want: kura.ErrProtocolOrder,
		},
		{
			name: "unmapped chunk set",
			doc: `
- description:
    components: [position]
    tags: [team]
  tags:
    - [red]
  chunk_sets:
    - []
    - []
`,
			want: kura.ErrUnmappedChunkset,
		},
		{
			name: "tag buffers differ in length",
			doc: `
- description:
    components: [position]
    tags: [team, level]
  tags:
    - [red, blue]
    - [1]
  chunk_sets: []
`,
			want: kura.ErrTagLengthMismatch,
		},
		{
			name: "unknown component",
			doc: `
- description:
    components: [mass]
`,
			want: kura.ErrUnknownType,
		},
		{
			name: "layout mismatch",
			doc: `
- description:
    components: [{name: position, size: 12}]
`,
			want: kura.ErrUnknownType,
		},
		{
			name: "record without description",
			doc:  "- {}\n",
			want: kura.ErrMissingField,
		},
		{
			name: "malformed description",
			doc:  "- description: 5\n",
			want: kura.ErrCodec,
		},
		{
			name: "malformed entity",
			doc: `
- description:
    components: [position]
  tags: []
  chunk_sets:
    - - entities: [[0]]
`,
			want: kura.ErrCodec,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			_, err := decodeYAML(t, w, tt.doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var de *kura.DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.want, de.Kind)
		})
	}
}

func TestDeserializeDuplicateFields(t *testing.T) {
	D, T, C := kura.FieldDescription, kura.FieldTags, kura.FieldChunkSets
	tests := []struct {
		name   string
		fields []kura.ArchetypeField
		want   error
	}{
		{"description twice", []kura.ArchetypeField{D, D}, kura.ErrProtocolOrder},
		{"tags twice", []kura.ArchetypeField{D, T, T}, kura.ErrProtocolOrder},
		{"tags after chunk sets", []kura.ArchetypeField{D, T, C, T}, kura.ErrProtocolOrder},
		{"chunk sets twice", []kura.ArchetypeField{D, T, C, C}, kura.ErrProtocolOrder},
		{"complete", []kura.ArchetypeField{D, T, C}, nil},
		{"description only", []kura.ArchetypeField{D}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorld(t)
			id, _ := kura.ComponentID[position](w.Types())
			desc := kura.NewArchetypeDescription().WithComponent(id, w.Types().Component(id))
			err := kura.Deserialize(w, &scripted{desc: desc, fields: tt.fields, archs: 1})
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

// handle is a tag that counts its drops.
type handle struct {
	drops *int
}

func (h *handle) Drop() { *h.drops++ }

func TestDeserializeDropsAbandonedTagBuffer(t *testing.T) {
	w := newWorld(t)
	drops := 0
	pos, _ := kura.ComponentID[position](w.Types())
	hid := kura.RegisterTag[handle](w.Types(), "handle")
	desc := kura.NewArchetypeDescription().
		WithComponent(pos, w.Types().Component(pos)).
		WithTag(hid, w.Types().Tag(hid))

	dec := &scripted{
		desc:   desc,
		fields: []kura.ArchetypeField{kura.FieldDescription, kura.FieldTags},
		archs:  1,
		partial: func(out *kura.TagStorage) {
			kura.PushTag(out, handle{drops: &drops})
		},
	}
	require.NoError(t, kura.Deserialize(w, dec))
	assert.Equal(t, 1, drops, "values written before the buffer was abandoned are dropped")
	assert.Empty(t, w.Storage().Archetype(0).Chunksets())
}

func TestDeserializeReorderedComponents(t *testing.T) {
	const positionFirst = `
- description:
    components: [position, velocity]
  tags: []
  chunk_sets:
    - - entities: [[0, 1]]
        components:
          - [{x: 1, y: 2}]
          - [{dx: 3, dy: 4}]
`
	const velocityFirst = `
- description:
    components: [velocity, position]
  tags: []
  chunk_sets:
    - - entities: [[0, 1]]
        components:
          - [{dx: 30, dy: 40}]
          - [{x: 10, y: 20}]
`
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			src := newWorld(t)
			_, err := decodeYAML(t, src, velocityFirst)
			require.NoError(t, err)
			data, err := c.encode(src)
			require.NoError(t, err)

			w := newWorld(t)
			_, err = decodeYAML(t, w, positionFirst)
			require.NoError(t, err)
			require.NoError(t, c.decode(w, data))

			require.Equal(t, 1, w.Storage().Len(), "declaration order does not split archetypes")
			chunk := w.Storage().Archetype(0).Chunkset(0).Chunk(0)
			require.Equal(t, 2, chunk.Len())
			assert.Equal(t, []position{{1, 2}, {10, 20}}, kura.Column[position](chunk.Column(0)))
			assert.Equal(t, []velocity{{3, 4}, {30, 40}}, kura.Column[velocity](chunk.Column(1)))

			e := chunk.Entities()[1]
			assert.Equal(t, position{10, 20}, *kura.GetComponent[position](w, e))
			assert.Equal(t, velocity{30, 40}, *kura.GetComponent[velocity](w, e))
		})
	}
}

func TestDeserializeReorderedTags(t *testing.T) {
	w := newWorld(t)
	_, err := decodeYAML(t, w, `
- description:
    components: [position]
    tags: [team, level]
  tags:
    - [red]
    - [2]
  chunk_sets:
    - - entities: [[0, 1]]
        components:
          - [{x: 1, y: 1}]
`)
	require.NoError(t, err)

	_, err = decodeYAML(t, w, `
- description:
    components: [position]
    tags: [level, team]
  tags:
    - [2, 3]
    - [red, red]
  chunk_sets:
    - - entities: [[0, 1]]
        components:
          - [{x: 2, y: 2}]
    - - entities: [[1, 1]]
        components:
          - [{x: 3, y: 3}]
`)
	require.NoError(t, err)

	require.Equal(t, 1, w.Storage().Len())
	a := w.Storage().Archetype(0)
	require.Len(t, a.Chunksets(), 2, "level 2 red matches the existing chunkset")
	assert.Equal(t, 2, a.Chunkset(0).Len())
	assert.Equal(t, 1, a.Chunkset(1).Len())
	assert.Equal(t, team("red"), *kura.TagAt[team](a.Chunkset(1).Tags()[0], 0))
	assert.Equal(t, level(3), *kura.TagAt[level](a.Chunkset(1).Tags()[1], 0))

	e := a.Chunkset(1).Chunk(0).Entities()[0]
	assert.Equal(t, position{3, 3}, *kura.GetComponent[position](w, e))
	assert.Equal(t, team("red"), *kura.GetTag[team](w, e))
	assert.Equal(t, level(3), *kura.GetTag[level](w, e))
}

func TestDeserializeKeepsCommittedRecords(t *testing.T) {
	w := newWorld(t)
	_, err := decodeYAML(t, w, redBlue+"- {}\n")
	assert.ErrorIs(t, err, kura.ErrMissingField)

	var de *kura.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "archetype", de.Op)
	assert.Equal(t, 3, w.Len())
	for _, e := range kura.NewFilter[position](w).Entities() {
		assert.True(t, w.IsValid(e))
	}
}

func TestDeserializePadsMissingComponents(t *testing.T) {
	w := newWorld(t)
	_, err := decodeYAML(t, w, `
- description:
    components: [position, velocity]
  tags: []
  chunk_sets:
    - - entities: [[0, 1], [1, 1]]
      - entities: [[2, 1]]
        components:
          - [{x: 1, y: 1}]
`)
	require.NoError(t, err)

	a := w.Storage().Archetype(0)
	require.Len(t, a.Chunksets(), 1)
	c := a.Chunkset(0).Chunk(0)
	require.Equal(t, 3, c.Len())
	assert.Equal(t, []position{{}, {}, {1, 1}}, kura.Column[position](c.Column(0)))
	assert.Equal(t, []velocity{{}, {}, {}}, kura.Column[velocity](c.Column(1)))
}

func TestDeserializeShortColumn(t *testing.T) {
	w := newWorld(t)
	_, err := decodeYAML(t, w, `
- description:
    components: [position, velocity]
  tags: []
  chunk_sets:
    - - entities: [[0, 1], [1, 1]]
        components:
          - [{x: 1, y: 1}]
`)
	assert.ErrorIs(t, err, kura.ErrUncommittedRange)

	c := w.Storage().Archetype(0).Chunkset(0).Chunk(0)
	assert.Equal(t, 2, c.Column(0).Len())
	assert.Equal(t, 2, c.Column(1).Len())
	assert.Equal(t, []position{{}, {}}, kura.Column[position](c.Column(0)))
	assert.Equal(t, 2, w.Len())
}

func TestDeserializeBadComponentValue(t *testing.T) {
	w := newWorld(t)
	_, err := decodeYAML(t, w, `
- description:
    components: [position, velocity]
  tags: []
  chunk_sets:
    - - entities: [[0, 1]]
        components:
          - [{x: abc}]
`)
	assert.ErrorIs(t, err, kura.ErrCodec)
	c := w.Storage().Archetype(0).Chunkset(0).Chunk(0)
	assert.Equal(t, 1, c.Column(0).Len())
	assert.Equal(t, 1, c.Column(1).Len())
}

func TestDeserializeEmpty(t *testing.T) {
	for _, doc := range []string{"", "[]\n", "~\n"} {
		w := newWorld(t)
		_, err := decodeYAML(t, w, doc)
		require.NoError(t, err, "document %q", doc)
		assert.Zero(t, w.Storage().Len())
	}
}

func TestDeserializeReentrant(t *testing.T) {
	w := newWorld(t)
	var inner error
	kura.Subscribe(w.Events(), func(kura.ArchetypeCreated) {
		inner = kura.Deserialize(w, &scripted{})
	})
	_, err := decodeYAML(t, w, redBlue)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, kura.ErrReentrant)

	assert.NoError(t, kura.Deserialize(w, &scripted{}), "guard is released once decoding returns")
}

func TestDeserializeBlocksInsertion(t *testing.T) {
	w := newWorld(t)
	b := kura.NewBuilder[velocity](w)
	panicked := 0
	kura.Subscribe(w.Events(), func(kura.ChunksetCreated) {
		assert.Panics(t, func() { b.NewEntity() })
		panicked++
	})
	_, err := decodeYAML(t, w, redBlue)
	require.NoError(t, err)
	assert.Equal(t, 2, panicked)
	assert.NotPanics(t, func() { b.NewEntity() })
}

func TestDeserializeLogs(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	w := kura.NewWorld(kura.WithLogger(log.WithField("component", "kura")))
	register(w)

	_, err := decodeYAML(t, w, redBlue)
	require.NoError(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "reconstruction complete", entry.Message)
	assert.Equal(t, 3, entry.Data["entities"])
	assert.Equal(t, 2, entry.Data["chunksets"])

	hook.Reset()
	_, err = decodeYAML(t, w, "- {}\n")
	require.Error(t, err)
	entry = hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "reconstruction aborted", entry.Message)
}
