package kura_test

import (
	"bytes"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/codec/msgpack"
	"github.com/edwinsyarief/kura/codec/yamlcodec"
)

type codec struct {
	encode func(w *kura.World) ([]byte, error)
	decode func(w *kura.World, data []byte) error
}

var codecs = map[string]codec{
	"msgpack": {
		encode: func(w *kura.World) ([]byte, error) {
			var buf bytes.Buffer
			enc := msgpack.NewEncoder(&buf)
			if err := kura.Serialize(w, enc); err != nil {
				return nil, err
			}
			err := enc.Flush()
			return buf.Bytes(), err
		},
		decode: func(w *kura.World, data []byte) error {
			return kura.Deserialize(w, msgpack.NewDecoder(bytes.NewReader(data)))
		},
	},
	"yaml": {
		encode: func(w *kura.World) ([]byte, error) {
			var buf bytes.Buffer
			enc := yamlcodec.NewEncoder(&buf)
			if err := kura.Serialize(w, enc); err != nil {
				return nil, err
			}
			err := enc.Flush()
			return buf.Bytes(), err
		},
		decode: func(w *kura.World, data []byte) error {
			dec, err := yamlcodec.NewDecoder(bytes.NewReader(data))
			if err != nil {
				return err
			}
			return kura.Deserialize(w, dec)
		},
	},
}

func positions(w *kura.World) []position {
	var out []position
	f := kura.NewFilter[position](w)
	for f.Next() {
		out = append(out, *f.Get())
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			src := newWorld(t, kura.WithChunkCapacity(2))
			populate(src)
			data, err := c.encode(src)
			require.NoError(t, err)

			dst := newWorld(t, kura.WithChunkCapacity(2))
			require.NoError(t, c.decode(dst, data))

			assert.Equal(t, summary(t, src), summary(t, dst))
			assert.Equal(t, positions(src), positions(dst))
			assert.Equal(t, src.Len(), dst.Len())
			for _, e := range kura.NewFilter[velocity](dst).Entities() {
				assert.Equal(t, velocity{DX: 3, DY: 4}, *kura.GetComponent[velocity](dst, e))
			}

			// decoding the same stream again only adds entities
			require.NoError(t, c.decode(dst, data))
			assert.Equal(t, 2*src.Len(), dst.Len())
			assert.Equal(t, src.Storage().Len(), dst.Storage().Len())
			for i, a := range dst.Storage().Archetypes() {
				assert.Len(t, a.Chunksets(), len(src.Storage().Archetype(i).Chunksets()))
			}
		})
	}
}

func TestRoundTripEmptyWorld(t *testing.T) {
	for name, c := range codecs {
		t.Run(name, func(t *testing.T) {
			data, err := c.encode(newWorld(t))
			require.NoError(t, err)
			dst := newWorld(t)
			require.NoError(t, c.decode(dst, data))
			assert.Zero(t, dst.Storage().Len())
		})
	}
}

func TestRoundTripMsgpackRemap(t *testing.T) {
	src := newWorld(t)
	src.Entities().AllocateN(10) // offset the source ids
	populate(src)
	data, err := codecs["msgpack"].encode(src)
	require.NoError(t, err)

	dst := newWorld(t)
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	require.NoError(t, kura.Deserialize(dst, dec))

	remap := dec.Remapped()
	require.Len(t, remap, src.Len())
	for old, fresh := range remap {
		if p := kura.GetComponent[position](src, old); p != nil {
			assert.Equal(t, *p, *kura.GetComponent[position](dst, fresh))
		}
	}
}

func TestRoundTripOpaque(t *testing.T) {
	src := newWorld(t)
	kura.NewBuilder[position](src, kura.Tag(src, level(4))).NewEntitiesWithValueSet(3, position{X: 1, Y: 2})
	data, err := codecs["msgpack"].encode(src)
	require.NoError(t, err)

	// a world that knows none of the types still holds the raw data
	opaque := kura.NewWorld(kura.WithLogger(src.Logger()))
	opaque.Types().SetAllowOpaque(true)
	require.NoError(t, codecs["msgpack"].decode(opaque, data))
	assert.Equal(t, 3, opaque.Len())

	again, err := codecs["msgpack"].encode(opaque)
	require.NoError(t, err)
	dst := newWorld(t)
	require.NoError(t, codecs["msgpack"].decode(dst, again))
	assert.Equal(t, positions(src), positions(dst))
	for _, e := range kura.NewFilter[position](dst).Entities() {
		assert.Equal(t, level(4), *kura.GetTag[level](dst, e))
	}
}

func TestSummaryGolden(t *testing.T) {
	src := newWorld(t, kura.WithChunkCapacity(2))
	populate(src)
	data, err := codecs["yaml"].encode(src)
	require.NoError(t, err)
	dst := newWorld(t, kura.WithChunkCapacity(2))
	require.NoError(t, codecs["yaml"].decode(dst, data))

	var buf bytes.Buffer
	require.NoError(t, kura.WriteSummary(&buf, dst))
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "summary", buf.Bytes())
}
