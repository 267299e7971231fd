package kura

// bitmask256 represents a set of up to 256 type IDs. Archetype descriptions
// keep one for their component types and one for their tag types, so
// structural equality is a comparison of two small arrays regardless of the
// order in which types were declared.
type bitmask256 [4]uint64

// set enables the bit corresponding to the given type ID.
func (m *bitmask256) set(bit uint8) {
	i := bit >> 6 // (bit / 64) to find the uint64 index
	o := bit & 63 // (bit % 64) to find the bit offset
	m[i] |= uint64(1) << uint64(o)
}

// containsBit checks if a specific bit is set in the mask.
func (m bitmask256) containsBit(bit uint8) bool {
	i := bit >> 6
	o := bit & 63
	return (m[i] & (uint64(1) << uint64(o))) != 0
}
