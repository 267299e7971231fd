// Package msgpack implements the kura stream codec on MessagePack.
//
// A stream is an array of archetype records. Each record is a map with the
// keys "description", "tags" and "chunk_sets"; each chunk is a map with the
// keys "entities" and "components". Type descriptions carry the type name,
// its size and its value encoding, so a stream can be opened with opaque
// types. Values are stored as binary blobs produced by each type's
// kura.ValueCodec, and entities as (index<<32 | generation) integers.
package msgpack

import "github.com/edwinsyarief/kura"

const (
	keyDescription = "description"
	keyTags        = "tags"
	keyChunkSets   = "chunk_sets"
	keyEntities    = "entities"
	keyComponents  = "components"
	keyName        = "name"
	keySize        = "size"
	keyEncoding    = "encoding"
)

func packEntity(e kura.Entity) uint64 {
	return uint64(e.Index)<<32 | uint64(e.Generation)
}

func unpackEntity(v uint64) kura.Entity {
	return kura.Entity{Index: uint32(v >> 32), Generation: uint32(v)}
}
