package pcm

import "github.com/pipelined/phonod"

// ExportParams selects the export effects a device needs. Any combination
// may be enabled; the DSD modes are mutually exclusive by configuration.
type ExportParams struct {
	// AlsaChannelOrder rearranges 5.1/7.1 frames to the ALSA layout.
	AlsaChannelOrder bool
	// DsdU16 packs DSD-U8 into 16 bit words.
	DsdU16 bool
	// DsdU32 packs DSD-U8 into 32 bit words.
	DsdU32 bool
	// DoP encodes DSD inside 24 bit PCM with marker bytes.
	DoP bool
	// Shift8 moves S24-in-32 payload to the high bits.
	Shift8 bool
	// Pack24 packs S24-in-32 into 3-byte samples.
	Pack24 bool
	// ReverseEndian swaps the byte order of the final samples.
	ReverseEndian bool
}

// CalcOutputSampleRate maps the source rate to the rate the device must be
// configured with.
func (p ExportParams) CalcOutputSampleRate(rate int) int {
	switch {
	case p.DsdU16:
		return rate / 2
	case p.DsdU32:
		return rate / 4
	case p.DoP:
		return rate / 2
	default:
		return rate
	}
}

// CalcInputSampleRate inverts CalcOutputSampleRate for the driver's rate
// configuration step.
func (p ExportParams) CalcInputSampleRate(rate int) int {
	switch {
	case p.DsdU16:
		return rate * 2
	case p.DsdU32:
		return rate * 4
	case p.DoP:
		return rate * 2
	default:
		return rate
	}
}

// Export is the final PCM shaping stage of one output. It is bound to one
// input format per Open; Export never mutates its input, and the returned
// slice stays valid until the next call.
type Export struct {
	channels int

	alsaChannelOrder bool
	dsdU16           bool
	dsdU32           bool
	dop              bool
	shift8           bool
	pack24           bool
	// reverseEndian is the sample size to swap, 0 when off.
	reverseEndian int

	sampleSize int
	buf        []byte
	packBuf    []byte
}

// Open binds the export to an input format and activates the effects that
// apply to it.
func (e *Export) Open(format phonod.SampleFormat, channels int, params ExportParams) {
	e.channels = channels
	e.sampleSize = format.SampleSize()

	dsd := format == phonod.SampleFormatDSD
	e.dsdU16 = dsd && params.DsdU16
	e.dsdU32 = dsd && params.DsdU32 && !e.dsdU16
	e.dop = dsd && params.DoP && !e.dsdU16 && !e.dsdU32

	s24 := format == phonod.SampleFormatS24P32
	e.shift8 = s24 && params.Shift8
	e.pack24 = s24 && params.Pack24

	e.alsaChannelOrder = params.AlsaChannelOrder &&
		(e.sampleSize == 2 || e.sampleSize == 4)

	e.reverseEndian = 0
	if params.ReverseEndian {
		size := e.sampleSize
		switch {
		case e.pack24:
			size = 3
		case e.dsdU16:
			size = 2
		case e.dsdU32, e.dop:
			size = 4
		}
		if size > 1 {
			e.reverseEndian = size
		}
	}
}

// own copies src into the reusable buffer unless it already lives there.
func (e *Export) own(src []byte, owned bool) []byte {
	if owned {
		return src
	}
	if cap(e.buf) < len(src) {
		e.buf = make([]byte, len(src))
	}
	dst := e.buf[:len(src)]
	copy(dst, src)
	return dst
}

func (e *Export) grow(n int) []byte {
	if cap(e.buf) < n {
		e.buf = make([]byte, n)
	}
	return e.buf[:n]
}

// Export applies the configured effects. When no effect applies the input
// is returned unchanged; otherwise the result lives in internal buffers
// that are reused by the next call.
func (e *Export) Export(src []byte) []byte {
	owned := false

	if e.alsaChannelOrder {
		src = e.own(src, owned)
		owned = true
		ToAlsaChannelOrder(src, e.sampleSize, e.channels)
	}

	switch {
	case e.dsdU16:
		n := len(src) / (e.channels * 2) * (e.channels * 2)
		dst := e.grow(n)
		DsdToU16(dst, src[:n], e.channels)
		src = dst
		owned = true
	case e.dsdU32:
		n := len(src) / (e.channels * 4) * (e.channels * 4)
		dst := e.grow(n)
		DsdToU32(dst, src[:n], e.channels)
		src = dst
		owned = true
	case e.dop:
		n := len(src) / (e.channels * 2) * (e.channels * 2)
		if cap(e.packBuf) < n*2 {
			e.packBuf = make([]byte, n*2)
		}
		dst := e.packBuf[:n*2]
		DsdToDoP(dst, src[:n], e.channels)
		src = dst
		owned = true
	}

	switch {
	case e.shift8:
		src = e.own(src, owned)
		owned = true
		Shift8(src)
	case e.pack24:
		n := len(src) / 4
		if cap(e.packBuf) < n*3 {
			e.packBuf = make([]byte, n*3)
		}
		dst := e.packBuf[:n*3]
		Pack24(dst, src)
		src = dst
		owned = true
	}

	if e.reverseEndian > 0 {
		src = e.own(src, owned)
		ReverseEndian(src, e.reverseEndian)
	}
	return src
}
