package filter

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pipelined/phonod"
)

// PreparedConvert converts PCM to a configured output format. Attributes
// left zero in OutFormat keep the input's value, so a convert filter may
// change only the rate, only the sample format, or nothing at all.
type PreparedConvert struct {
	OutFormat phonod.AudioFormat
}

// Open binds the conversion to an input format. When input and output
// formats are equal the returned filter passes data through unchanged.
func (p PreparedConvert) Open(in phonod.AudioFormat) (Filter, error) {
	if !in.Valid() {
		return nil, fmt.Errorf("filter: convert: invalid input format %v", in)
	}
	out := p.OutFormat
	if out.SampleRate == 0 {
		out.SampleRate = in.SampleRate
	}
	if out.Format == phonod.SampleFormatUndefined {
		out.Format = in.Format
	}
	if out.Channels == 0 {
		out.Channels = in.Channels
	}
	if !out.Valid() {
		return nil, fmt.Errorf("filter: convert: invalid output format %v", out)
	}
	if in == out {
		return &passThrough{format: in}, nil
	}
	if in.Format == phonod.SampleFormatDSD || out.Format == phonod.SampleFormatDSD {
		return nil, fmt.Errorf("filter: convert: cannot convert %v to %v", in, out)
	}
	c := &convert{in: in, out: out}
	c.resampler.init(in.SampleRate, out.SampleRate, out.Channels)
	return c, nil
}

type passThrough struct {
	format phonod.AudioFormat
}

func (f *passThrough) OutFormat() phonod.AudioFormat  { return f.format }
func (f *passThrough) Filter(src []byte) ([]byte, error) { return src, nil }
func (f *passThrough) Reset()                         {}
func (f *passThrough) Close()                         {}

// convert decodes to planar float64, mixes channels, resamples and encodes
// into the output format.
type convert struct {
	in  phonod.AudioFormat
	out phonod.AudioFormat

	resampler resampler
	planar    [][]float64
	buf       []byte
}

func (c *convert) OutFormat() phonod.AudioFormat { return c.out }

func (c *convert) Filter(src []byte) ([]byte, error) {
	frames := len(src) / c.in.FrameSize()
	planar := c.decode(src, frames)
	planar = mixChannels(planar, c.out.Channels)
	if c.in.SampleRate != c.out.SampleRate {
		planar = c.resampler.resample(planar)
	}
	return c.encode(planar), nil
}

// Reset discards the resampler history.
func (c *convert) Reset() {
	c.resampler.reset()
}

func (c *convert) Close() {}

// decode reads interleaved samples into the reusable planar buffer, scaled
// to [-1, 1].
func (c *convert) decode(src []byte, frames int) [][]float64 {
	ch := c.in.Channels
	if len(c.planar) != ch {
		c.planar = make([][]float64, ch)
	}
	for i := range c.planar {
		if cap(c.planar[i]) < frames {
			c.planar[i] = make([]float64, frames)
		}
		c.planar[i] = c.planar[i][:frames]
	}
	ss := c.in.Format.SampleSize()
	for f := 0; f < frames; f++ {
		base := f * ss * ch
		for i := 0; i < ch; i++ {
			c.planar[i][f] = decodeSample(src[base+i*ss:], c.in.Format)
		}
	}
	return c.planar
}

func (c *convert) encode(planar [][]float64) []byte {
	if len(planar) == 0 {
		return nil
	}
	frames := len(planar[0])
	ss := c.out.Format.SampleSize()
	n := frames * ss * c.out.Channels
	if cap(c.buf) < n {
		c.buf = make([]byte, n)
	}
	dst := c.buf[:n]
	for f := 0; f < frames; f++ {
		base := f * ss * c.out.Channels
		for i := 0; i < c.out.Channels; i++ {
			encodeSample(dst[base+i*ss:], planar[i][f], c.out.Format)
		}
	}
	return dst
}

func decodeSample(b []byte, format phonod.SampleFormat) float64 {
	switch format {
	case phonod.SampleFormatS8:
		return float64(int8(b[0])) / math.MaxInt8
	case phonod.SampleFormatS16:
		return float64(int16(binary.NativeEndian.Uint16(b))) / math.MaxInt16
	case phonod.SampleFormatS24P32:
		return float64(int32(binary.NativeEndian.Uint32(b))) / (1<<23 - 1)
	case phonod.SampleFormatS32:
		return float64(int32(binary.NativeEndian.Uint32(b))) / math.MaxInt32
	case phonod.SampleFormatFloat:
		return float64(math.Float32frombits(binary.NativeEndian.Uint32(b)))
	default:
		return 0
	}
}

func encodeSample(b []byte, v float64, format phonod.SampleFormat) {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	switch format {
	case phonod.SampleFormatS8:
		b[0] = byte(int8(v * math.MaxInt8))
	case phonod.SampleFormatS16:
		binary.NativeEndian.PutUint16(b, uint16(int16(v*math.MaxInt16)))
	case phonod.SampleFormatS24P32:
		binary.NativeEndian.PutUint32(b, uint32(int32(v*(1<<23-1))))
	case phonod.SampleFormatS32:
		binary.NativeEndian.PutUint32(b, uint32(int32(v*math.MaxInt32)))
	case phonod.SampleFormatFloat:
		binary.NativeEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

// mixChannels adapts the channel count: mono to stereo duplicates, stereo
// to mono averages, other combinations copy what maps and zero-fill the
// rest.
func mixChannels(planar [][]float64, out int) [][]float64 {
	in := len(planar)
	if in == out {
		return planar
	}
	frames := 0
	if in > 0 {
		frames = len(planar[0])
	}
	mixed := make([][]float64, out)
	switch {
	case in == 1 && out == 2:
		mixed[0] = planar[0]
		mixed[1] = planar[0]
	case in == 2 && out == 1:
		mixed[0] = make([]float64, frames)
		for f := 0; f < frames; f++ {
			mixed[0][f] = (planar[0][f] + planar[1][f]) / 2
		}
	default:
		for i := 0; i < out; i++ {
			if i < in {
				mixed[i] = planar[i]
			} else {
				mixed[i] = make([]float64, frames)
			}
		}
	}
	return mixed
}

// resampler performs linear-interpolation rate conversion with history
// carried between calls, so block boundaries stay continuous.
type resampler struct {
	inRate  int
	outRate int

	// pos is the fractional read position relative to the previous call's
	// last frame; last holds that frame per channel.
	pos     float64
	last    []float64
	hasLast bool
	out     [][]float64
}

func (r *resampler) init(inRate, outRate, channels int) {
	r.inRate = inRate
	r.outRate = outRate
	r.last = make([]float64, channels)
}

func (r *resampler) reset() {
	r.pos = 0
	r.hasLast = false
}

func (r *resampler) resample(planar [][]float64) [][]float64 {
	if r.inRate == r.outRate {
		return planar
	}
	ch := len(planar)
	frames := 0
	if ch > 0 {
		frames = len(planar[0])
	}
	if frames == 0 {
		return planar
	}
	step := float64(r.inRate) / float64(r.outRate)

	// positions are relative to this block; the history frame, when
	// present, sits at virtual index -1
	p := 0.0
	if r.hasLast {
		p = r.pos - 1
	}

	if len(r.out) != ch {
		r.out = make([][]float64, ch)
	}
	for i := range r.out {
		r.out[i] = r.out[i][:0]
	}

	end := float64(frames-1) + 1e-9
	for ; p <= end; p += step {
		i0 := int(math.Floor(p))
		frac := p - float64(i0)
		for c := 0; c < ch; c++ {
			var s0 float64
			if i0 < 0 {
				s0 = r.last[c]
			} else {
				s0 = planar[c][i0]
			}
			s1 := s0
			if i0+1 < frames {
				s1 = planar[c][i0+1]
			}
			r.out[c] = append(r.out[c], s0+(s1-s0)*frac)
		}
	}

	for c := 0; c < ch; c++ {
		r.last[c] = planar[c][frames-1]
	}
	r.hasLast = true
	r.pos = p - float64(frames-1)
	return r.out
}
