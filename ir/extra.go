package ir

import (
	"encoding/binary"
)

// ExtraInt reads the idx-th 32 bit slot of an extra data window.
func ExtraInt(data []byte, idx int) int {
	return int(int32(binary.LittleEndian.Uint32(data[4*idx:])))
}

func SetExtraInt(data []byte, idx int, v int) {
	binary.LittleEndian.PutUint32(data[4*idx:], uint32(int32(v)))
}
