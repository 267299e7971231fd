package kura

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionTagsNewTuples(t *testing.T) {
	drops := 0
	_, a := trackedArchetype()
	buf := trackedBuffer(a, &drops, 1, 2)

	m, err := a.partitionTags([]*TagStorage{buf})
	require.NoError(t, err)
	assert.Equal(t, ChunksetMap{0, 1}, m)
	assert.Zero(t, drops, "relocated values must not be dropped")
	assert.Zero(t, buf.Len())
	require.Len(t, a.Chunksets(), 2)
	assert.Equal(t, 2, TagAt[tracked](a.Chunkset(1).Tags()[0], 0).ID)
}

func TestPartitionTagsMatches(t *testing.T) {
	drops := 0
	_, a := trackedArchetype()
	_, err := a.partitionTags([]*TagStorage{trackedBuffer(a, &drops, 1, 2)})
	require.NoError(t, err)

	// 2 of 3 candidates match: 2 drops, 1 relocation
	m, err := a.partitionTags([]*TagStorage{trackedBuffer(a, &drops, 2, 3, 1)})
	require.NoError(t, err)
	assert.Equal(t, ChunksetMap{1, 2, 0}, m)
	assert.Equal(t, 2, drops)
	require.Len(t, a.Chunksets(), 3)
	got := TagAt[tracked](a.Chunkset(2).Tags()[0], 0)
	assert.Equal(t, 3, got.ID)
	assert.Same(t, &drops, got.drops)
}

func TestPartitionTagsSameBatch(t *testing.T) {
	drops := 0
	_, a := trackedArchetype()
	m, err := a.partitionTags([]*TagStorage{trackedBuffer(a, &drops, 5, 5, 6, 5)})
	require.NoError(t, err)
	assert.Equal(t, ChunksetMap{0, 0, 1, 0}, m)
	assert.Equal(t, 2, drops)
	assert.Len(t, a.Chunksets(), 2)
}

// badge is a second tag type with its own drop counter.
type badge struct {
	drops *int
	ID    int
}

func (b *badge) Drop() { *b.drops++ }

func TestPartitionTagsDropsPerTagType(t *testing.T) {
	var trackedDrops, badgeDrops int
	w, _ := trackedArchetype()
	pos, _ := ComponentID[testPosition](w.types)
	tid, _ := TagID[tracked](w.types)
	bid := RegisterTag[badge](w.types, "badge")
	desc := NewArchetypeDescription().
		WithComponent(pos, w.types.Component(pos)).
		WithTag(tid, w.types.Tag(tid)).
		WithTag(bid, w.types.Tag(bid))
	a := w.storage.Archetype(w.storage.FindOrCreate(desc))

	badges := func(ids ...int) *TagStorage {
		s := NewTagStorage(w.types.Tag(bid))
		for _, id := range ids {
			PushTag(s, badge{ID: id, drops: &badgeDrops})
		}
		return s
	}

	m, err := a.partitionTags([]*TagStorage{trackedBuffer(a, &trackedDrops, 1, 2), badges(10, 20)})
	require.NoError(t, err)
	assert.Equal(t, ChunksetMap{0, 1}, m)
	require.Zero(t, trackedDrops)
	require.Zero(t, badgeDrops)

	// (1,10) and (2,20) match, (1,20) only matches on the first type
	first, second := trackedBuffer(a, &trackedDrops, 1, 2, 1), badges(10, 20, 20)
	m, err = a.partitionTags([]*TagStorage{first, second})
	require.NoError(t, err)
	assert.Equal(t, ChunksetMap{0, 1, 2}, m)
	assert.Equal(t, 2, trackedDrops)
	assert.Equal(t, 2, badgeDrops)
	assert.Zero(t, first.Len())
	assert.Zero(t, second.Len())

	require.Len(t, a.Chunksets(), 3)
	tags := a.Chunkset(2).Tags()
	assert.Equal(t, 1, TagAt[tracked](tags[0], 0).ID)
	assert.Equal(t, 20, TagAt[badge](tags[1], 0).ID)
}

func TestPartitionTagsLengthMismatch(t *testing.T) {
	drops := 0
	w, a := trackedArchetype()
	team := RegisterTag[testTeam](w.types, "team")
	pos, _ := ComponentID[testPosition](w.types)
	tid, _ := TagID[tracked](w.types)
	desc := NewArchetypeDescription().
		WithComponent(pos, w.types.Component(pos)).
		WithTag(tid, w.types.Tag(tid)).
		WithTag(team, w.types.Tag(team))
	two := w.storage.Archetype(w.storage.FindOrCreate(desc))
	require.NotSame(t, a, two)

	teams := NewTagStorage(w.types.Tag(team))
	PushTag(teams, testTeam("red"))
	_, err := two.partitionTags([]*TagStorage{trackedBuffer(two, &drops, 1, 2), teams})
	assert.ErrorIs(t, err, ErrTagLengthMismatch)
	assert.Equal(t, 2, drops, "every decoded value is dropped")
	assert.Zero(t, teams.Len())
	assert.Empty(t, two.Chunksets())

	// fewer buffers than tag types
	drops = 0
	_, err = two.partitionTags([]*TagStorage{trackedBuffer(two, &drops, 1, 2, 3)})
	assert.ErrorIs(t, err, ErrTagLengthMismatch)
	assert.Equal(t, 3, drops)
	assert.Empty(t, two.Chunksets())
}

func TestPartitionTagsEmpty(t *testing.T) {
	_, a := trackedArchetype()
	m, err := a.partitionTags(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
	assert.Empty(t, a.Chunksets())
}

func TestPartitionTagsUntagged(t *testing.T) {
	w := NewWorld(WithLogger(quietLogger()))
	a := positionArchetype(w)
	m, err := a.partitionTags(nil)
	require.NoError(t, err)
	assert.Equal(t, ChunksetMap{0}, m)
	m, err = a.partitionTags(nil)
	require.NoError(t, err)
	assert.Equal(t, ChunksetMap{0}, m)
	assert.Len(t, a.Chunksets(), 1)

	set, ok := m.Lookup(0)
	assert.True(t, ok)
	assert.Zero(t, set)
	_, ok = m.Lookup(1)
	assert.False(t, ok)
	_, ok = m.Lookup(-1)
	assert.False(t, ok)
}
