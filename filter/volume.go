package filter

import (
	"sync/atomic"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/pcm"
)

// PreparedVolume builds software volume filters. The software mixer of an
// output holds on to the open filter to drive its level.
type PreparedVolume struct{}

// Open binds the filter to an input format at full volume.
func (PreparedVolume) Open(in phonod.AudioFormat) (Filter, error) {
	v := &Volume{format: in}
	v.scale.Store(pcm.VolumeOne)
	v.volume.Store(100)
	return v, nil
}

// Volume is the software volume stage: 0..100 mapped onto a fixed-point
// scale. SetVolume may be called from any goroutine while the output worker
// is filtering.
type Volume struct {
	format phonod.AudioFormat
	scale  atomic.Int32
	volume atomic.Int32

	buf []byte
}

// OutFormat returns the unchanged input format.
func (f *Volume) OutFormat() phonod.AudioFormat { return f.format }

// SetVolume sets the level in percent.
func (f *Volume) SetVolume(v int) {
	if v < 0 {
		v = 0
	} else if v > 100 {
		v = 100
	}
	f.volume.Store(int32(v))
	f.scale.Store(int32(v * pcm.VolumeOne / 100))
}

// GetVolume returns the level in percent.
func (f *Volume) GetVolume() int {
	return int(f.volume.Load())
}

// Filter scales a copy of the block.
func (f *Volume) Filter(src []byte) ([]byte, error) {
	scale := int(f.scale.Load())
	if scale == pcm.VolumeOne {
		return src, nil
	}
	if cap(f.buf) < len(src) {
		f.buf = make([]byte, len(src))
	}
	dst := f.buf[:len(src)]
	copy(dst, src)
	if err := pcm.Volume(dst, f.format.Format, scale); err != nil {
		return nil, err
	}
	return dst, nil
}

// Reset keeps the level across seeks.
func (f *Volume) Reset() {}

// Close releases nothing.
func (f *Volume) Close() {}
