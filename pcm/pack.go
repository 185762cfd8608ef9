package pcm

import "encoding/binary"

var isBigEndian = binary.NativeEndian.Uint16([]byte{0x01, 0x02}) == 0x0102

// Shift8 shifts S24-in-32 samples up by 8 bits in place, so the 24 payload
// bits occupy the high bits of the 32 bit word.
func Shift8(buf []byte) {
	for i := 0; i+4 <= len(buf); i += 4 {
		putS32(buf[i:], getS32(buf[i:])<<8)
	}
}

// Pack24 packs S24-in-32 samples into 3-byte samples in platform byte
// order. dst must hold len(src)/4*3 bytes.
func Pack24(dst, src []byte) {
	j := 0
	for i := 0; i+4 <= len(src); i += 4 {
		v := uint32(getS32(src[i:]))
		if isBigEndian {
			dst[j] = byte(v >> 16)
			dst[j+1] = byte(v >> 8)
			dst[j+2] = byte(v)
		} else {
			dst[j] = byte(v)
			dst[j+1] = byte(v >> 8)
			dst[j+2] = byte(v >> 16)
		}
		j += 3
	}
}

// ReverseEndian swaps the byte order of each sample in place. Identity for
// sampleSize 1.
func ReverseEndian(buf []byte, sampleSize int) {
	if sampleSize <= 1 {
		return
	}
	for i := 0; i+sampleSize <= len(buf); i += sampleSize {
		for a, b := i, i+sampleSize-1; a < b; a, b = a+1, b-1 {
			buf[a], buf[b] = buf[b], buf[a]
		}
	}
}
