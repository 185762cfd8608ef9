// Package pcm implements the sample-level transformations of the playback
// pipeline: software volume, cross-fade mixing, and the export shaping that
// adapts PCM to a device's expected layout (channel reorder, endian
// reverse, 24 bit packing, DSD packing, DoP).
//
// All functions operate on raw byte slices in the platform byte order; the
// audio format tells them how to interpret the bytes.
package pcm

import "encoding/binary"

// VolumeOne is the fixed-point unity scale of the software volume.
const VolumeOne = 1024

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func clamp8(v int32) int8 {
	if v > 127 {
		return 127
	}
	if v < -128 {
		return -128
	}
	return int8(v)
}

func clamp24(v int64) int32 {
	const max = 1<<23 - 1
	const min = -(1 << 23)
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return int32(v)
}

func clamp32(v int64) int32 {
	const max = 1<<31 - 1
	const min = -(1 << 31)
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return int32(v)
}

func getS16(b []byte) int16  { return int16(binary.NativeEndian.Uint16(b)) }
func putS16(b []byte, v int16) { binary.NativeEndian.PutUint16(b, uint16(v)) }

func getS32(b []byte) int32  { return int32(binary.NativeEndian.Uint32(b)) }
func putS32(b []byte, v int32) { binary.NativeEndian.PutUint32(b, uint32(v)) }
