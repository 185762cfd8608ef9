package pcm

import (
	"fmt"
	"math"

	"github.com/pipelined/phonod"
)

// Mix blends src into dst in place: dst = dst*portion + src*(1-portion).
// portion 1.0 keeps dst untouched, 0.0 replaces it with src. The slices may
// have different lengths; mixing covers the shorter one and the rest of dst
// stays as it is. Used by the cross-fade.
func Mix(dst, src []byte, format phonod.SampleFormat, portion float32) error {
	if portion >= 1 {
		return nil
	}
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	p := float64(portion)
	q := 1 - p
	switch format {
	case phonod.SampleFormatS8:
		for i := 0; i < n; i++ {
			v := int32(float64(int8(dst[i]))*p + float64(int8(src[i]))*q)
			dst[i] = byte(clamp8(v))
		}
	case phonod.SampleFormatS16:
		for i := 0; i+2 <= n; i += 2 {
			v := int32(float64(getS16(dst[i:]))*p + float64(getS16(src[i:]))*q)
			putS16(dst[i:], clamp16(v))
		}
	case phonod.SampleFormatS24P32:
		for i := 0; i+4 <= n; i += 4 {
			v := int64(float64(getS32(dst[i:]))*p + float64(getS32(src[i:]))*q)
			putS32(dst[i:], clamp24(v))
		}
	case phonod.SampleFormatS32:
		for i := 0; i+4 <= n; i += 4 {
			v := int64(float64(getS32(dst[i:]))*p + float64(getS32(src[i:]))*q)
			putS32(dst[i:], clamp32(v))
		}
	case phonod.SampleFormatFloat:
		for i := 0; i+4 <= n; i += 4 {
			a := math.Float32frombits(uint32(getS32(dst[i:])))
			b := math.Float32frombits(uint32(getS32(src[i:])))
			v := a*float32(p) + b*float32(q)
			putS32(dst[i:], int32(math.Float32bits(v)))
		}
	default:
		return fmt.Errorf("pcm: mix not implemented for format %v", format)
	}
	return nil
}
