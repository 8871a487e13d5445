package ir

import (
	"math/bits"
)

// Log2Ceil returns the number of bits needed to index n elements. It is 0
// for n <= 1.
func Log2Ceil(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// AlignBitBoundary rounds v up to a multiple of 1<<b.
func AlignBitBoundary(v, b int) int {
	mask := 1<<uint(b) - 1
	return (v + mask) &^ mask
}

// MemoryMapOffsets places every memory mapped instance of a, in visitation
// order, at the first offset aligned to its own footprint. It returns the
// offsets indexed by InstanceID (-1 for unmapped instances) and the total
// extent of the map.
func MemoryMapOffsets(a *Accelerator) ([]int, int) {
	offs := make([]int, len(a.instances))
	cursor := 0
	for i := range offs {
		offs[i] = -1
	}
	for _, id := range a.order {
		d := a.Decl(a.instances[id])
		if !d.IsMemoryMapped {
			continue
		}
		cursor = AlignBitBoundary(cursor, d.MemoryMapBits)
		offs[id] = cursor
		cursor += d.MemoryMapWords()
	}
	return offs, cursor
}
