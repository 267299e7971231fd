package kura

import (
	"fmt"

	"github.com/pkg/errors"
)

// ChunksetMap translates the index of a decoded tag tuple to the chunkset
// that holds that tuple.
type ChunksetMap []int

// Lookup returns the chunkset of decoded tuple i.
func (m ChunksetMap) Lookup(i int) (int, bool) {
	if i < 0 || i >= len(m) {
		return 0, false
	}
	return m[i], true
}

// tagFate records what happened to one decoded tag tuple.
type tagFate uint8

const (
	fatePending   tagFate = iota
	fateConsumed          // equal to an existing tuple, dropped
	fateRelocated         // bit-copied into a new chunkset, not dropped
)

// partitionTags attributes decoded tag tuples to chunksets. decoded holds one
// buffer per declared tag type, in description order; candidate i is the
// tuple of the i-th value of every buffer. The number of candidates is the
// length of the first buffer.
//
// A candidate equal to an existing chunkset's tuple is dropped; otherwise its
// values move into a new chunkset. Chunksets created for earlier candidates
// take part in the scan, so equal candidates of one batch share a chunkset.
// The decoded buffers are emptied in both cases.
//
// An archetype without tag types maps candidate 0 to its only chunkset.
func (a *Archetype) partitionTags(decoded []*TagStorage) (ChunksetMap, error) {
	if len(a.desc.tags) == 0 {
		for _, s := range decoded {
			s.dropAll()
		}
		if len(a.chunksets) == 0 {
			a.allocChunkset(nil)
		}
		return ChunksetMap{0}, nil
	}

	n := 0
	if len(decoded) > 0 {
		n = decoded[0].Len()
	}
	mismatch := n > 0 && len(decoded) != len(a.desc.tags)
	for _, s := range decoded {
		if s.Len() != n {
			mismatch = true
		}
	}
	if mismatch {
		lens := make([]int, len(decoded))
		for i, s := range decoded {
			lens[i] = s.Len()
			s.dropAll()
		}
		return nil, errors.Wrapf(ErrTagLengthMismatch, "%d tag types, buffer lengths %v", len(a.desc.tags), lens)
	}

	fates := make([]tagFate, n)
	mapping := make(ChunksetMap, n)
	for i := 0; i < n; i++ {
		match := -1
		for ci, cs := range a.chunksets {
			if cs.matches(decoded, i) {
				match = ci
				break
			}
		}
		if match >= 0 {
			for _, s := range decoded {
				s.meta.Drop(s.Get(i))
			}
			fates[i] = fateConsumed
			mapping[i] = match
			continue
		}
		mapping[i] = a.allocChunkset(func(tags []*TagStorage) {
			for t, s := range decoded {
				tags[t].PushRaw(s.Get(i))
			}
		})
		fates[i] = fateRelocated
	}
	for i, f := range fates {
		if f == fatePending {
			panic(fmt.Sprintf("kura: tag tuple %d of archetype %d was neither dropped nor relocated", i, a.index))
		}
	}
	for _, s := range decoded {
		s.forget()
	}
	return mapping, nil
}
