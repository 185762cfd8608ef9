package pcm

import (
	"fmt"
	"math"

	"github.com/pipelined/phonod"
)

// Volume scales samples in place by a fixed-point factor where VolumeOne is
// unity. Factors above unity are allowed (replay gain preamp) and clamp at
// full scale. DSD cannot be scaled.
func Volume(buf []byte, format phonod.SampleFormat, scale int) error {
	if scale == VolumeOne {
		return nil
	}
	s := int64(scale)
	switch format {
	case phonod.SampleFormatS8:
		for i := range buf {
			v := int32(int64(int8(buf[i])) * s >> 10)
			buf[i] = byte(clamp8(v))
		}
	case phonod.SampleFormatS16:
		for i := 0; i+2 <= len(buf); i += 2 {
			v := int32(int64(getS16(buf[i:])) * s >> 10)
			putS16(buf[i:], clamp16(v))
		}
	case phonod.SampleFormatS24P32:
		for i := 0; i+4 <= len(buf); i += 4 {
			v := int64(getS32(buf[i:])) * s >> 10
			putS32(buf[i:], clamp24(v))
		}
	case phonod.SampleFormatS32:
		for i := 0; i+4 <= len(buf); i += 4 {
			v := int64(getS32(buf[i:])) * s >> 10
			putS32(buf[i:], clamp32(v))
		}
	case phonod.SampleFormatFloat:
		f := float32(scale) / VolumeOne
		for i := 0; i+4 <= len(buf); i += 4 {
			v := math.Float32frombits(uint32(getS32(buf[i:])))
			putS32(buf[i:], int32(math.Float32bits(v*f)))
		}
	default:
		return fmt.Errorf("pcm: volume not implemented for format %v", format)
	}
	return nil
}

// FloatToScale converts a linear factor (1.0 = unity) to the fixed-point
// volume scale.
func FloatToScale(f float64) int {
	return int(f*VolumeOne + 0.5)
}
