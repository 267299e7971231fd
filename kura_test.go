package kura_test

import (
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/codec/yamlcodec"
)

type position struct {
	X, Y float32
}

type velocity struct {
	DX, DY float32
}

type team string

type level uint8

func newWorld(tb testing.TB, opts ...kura.Option) *kura.World {
	tb.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	w := kura.NewWorld(append([]kura.Option{kura.WithLogger(log.WithField("component", "kura"))}, opts...)...)
	register(w)
	return w
}

func register(w *kura.World) {
	kura.RegisterComponent[position](w.Types(), "position")
	kura.RegisterComponent[velocity](w.Types(), "velocity")
	kura.RegisterTag[team](w.Types(), "team")
	kura.RegisterTag[level](w.Types(), "level")
}

func decodeYAML(t *testing.T, w *kura.World, doc string) (*yamlcodec.Decoder, error) {
	t.Helper()
	dec, err := yamlcodec.NewDecoder(strings.NewReader(doc))
	require.NoError(t, err)
	return dec, kura.Deserialize(w, dec)
}

// populate fills w with three archetypes: position tagged by team, position
// tagged by team and level, and untagged velocity.
func populate(w *kura.World) {
	kura.NewBuilder[position](w, kura.Tag(w, team("red"))).NewEntitiesWithValueSet(3, position{X: 1, Y: 2})
	kura.NewBuilder[position](w, kura.Tag(w, team("blue"))).NewEntities(1)
	kura.NewBuilder[position](w, kura.Tag(w, team("red")), kura.Tag(w, level(2))).NewEntitiesWithValueSet(2, position{X: 5, Y: 6})
	kura.NewBuilder[velocity](w).NewEntitiesWithValueSet(2, velocity{DX: 3, DY: 4})
}

func summary(t *testing.T, w *kura.World) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, kura.WriteSummary(&sb, w))
	return sb.String()
}

// scripted replays a fixed sequence of archetype fields over a single
// description, with no tags or chunks. A non-nil partial writes into the
// first tag buffer before DecodeTags reports that there is none.
type scripted struct {
	desc    *kura.ArchetypeDescription
	fields  []kura.ArchetypeField
	archs   int
	partial func(out *kura.TagStorage)
}

func (s *scripted) NextArchetype() (bool, error) {
	if s.archs == 0 {
		return false, nil
	}
	s.archs--
	return true, nil
}

func (s *scripted) NextArchetypeField() (kura.ArchetypeField, bool, error) {
	if len(s.fields) == 0 {
		return 0, false, nil
	}
	f := s.fields[0]
	s.fields = s.fields[1:]
	return f, true, nil
}

func (s *scripted) DecodeArchetypeDescription(*kura.TypeRegistry) (*kura.ArchetypeDescription, error) {
	return s.desc, nil
}

func (s *scripted) DecodeTags(_ kura.TagTypeID, _ *kura.TagMeta, out *kura.TagStorage) (bool, error) {
	if s.partial != nil {
		s.partial(out)
		s.partial = nil
	}
	return false, nil
}

func (s *scripted) NextChunkset() (bool, error) { return false, nil }

func (s *scripted) NextChunk() (bool, error) { return false, nil }

func (s *scripted) NextChunkField() (kura.ChunkField, bool, error) { return 0, false, nil }

func (s *scripted) DecodeEntities(*kura.EntityAllocator) ([]kura.Entity, error) { return nil, nil }

func (s *scripted) DecodeComponents(kura.ComponentTypeID, *kura.ComponentMeta, *kura.SlotCursor) (bool, error) {
	return false, nil
}

var _ kura.Decoder = (*scripted)(nil)
