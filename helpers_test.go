package kura

import (
	"io"

	"github.com/sirupsen/logrus"
)

type testPosition struct {
	X, Y float32
}

type testTeam string

// tracked counts how often stored copies of it are dropped.
type tracked struct {
	drops *int
	ID    int
}

func (t *tracked) Drop() { *t.drops++ }

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log.WithField("component", "kura")
}

// trackedArchetype returns a world holding one archetype with a position
// component and the given tags, tracked first.
func trackedArchetype(opts ...Option) (*World, *Archetype) {
	w := NewWorld(append([]Option{WithLogger(quietLogger())}, opts...)...)
	cid := RegisterComponent[testPosition](w.types, "position")
	tid := RegisterTag[tracked](w.types, "tracked")
	desc := NewArchetypeDescription().
		WithComponent(cid, w.types.Component(cid)).
		WithTag(tid, w.types.Tag(tid))
	return w, w.storage.Archetype(w.storage.FindOrCreate(desc))
}

func trackedBuffer(a *Archetype, drops *int, ids ...int) *TagStorage {
	s := NewTagStorage(a.desc.tags[0].Meta)
	for _, id := range ids {
		PushTag(s, tracked{ID: id, drops: drops})
	}
	return s
}

func positionArchetype(w *World) *Archetype {
	cid := RegisterComponent[testPosition](w.types, "position")
	desc := NewArchetypeDescription().WithComponent(cid, w.types.Component(cid))
	return w.storage.Archetype(w.storage.FindOrCreate(desc))
}
