// Package phonod holds the shared vocabulary of the playback core: audio
// formats, tags, replay gain and songs. All pipeline packages depend on it
// and it depends on nothing but the standard library and rs/xid (song ids).
package phonod

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SampleFormat enumerates the PCM sample encodings the pipeline can carry.
type SampleFormat uint8

const (
	// SampleFormatUndefined marks a format that was not negotiated yet.
	SampleFormatUndefined SampleFormat = iota
	// SampleFormatS8 is signed 8 bit.
	SampleFormatS8
	// SampleFormatS16 is signed 16 bit in native endian.
	SampleFormatS16
	// SampleFormatS24P32 is signed 24 bit padded to 32 bit, low 24 bits used.
	SampleFormatS24P32
	// SampleFormatS32 is signed 32 bit.
	SampleFormatS32
	// SampleFormatFloat is 32 bit float in the range [-1.0, 1.0].
	SampleFormatFloat
	// SampleFormatDSD is 1 bit direct stream digital, 8 samples per byte.
	SampleFormatDSD
)

// SampleSize returns the size of one sample in bytes.
func (f SampleFormat) SampleSize() int {
	switch f {
	case SampleFormatS8, SampleFormatDSD:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS24P32, SampleFormatS32, SampleFormatFloat:
		return 4
	default:
		return 0
	}
}

func (f SampleFormat) String() string {
	switch f {
	case SampleFormatS8:
		return "8"
	case SampleFormatS16:
		return "16"
	case SampleFormatS24P32:
		return "24"
	case SampleFormatS32:
		return "32"
	case SampleFormatFloat:
		return "f"
	case SampleFormatDSD:
		return "dsd"
	default:
		return "?"
	}
}

// MaxChannels is the highest channel count a format may declare.
const MaxChannels = 8

// AudioFormat describes a PCM stream: rate, sample encoding and channels.
type AudioFormat struct {
	SampleRate int
	Format     SampleFormat
	Channels   int
}

// Defined reports whether the format was negotiated.
func (af AudioFormat) Defined() bool {
	return af.Format != SampleFormatUndefined
}

// Valid reports whether all three attributes are in range.
func (af AudioFormat) Valid() bool {
	return af.SampleRate > 0 && af.SampleRate <= 768000 &&
		af.Format != SampleFormatUndefined &&
		af.Channels >= 1 && af.Channels <= MaxChannels
}

// FrameSize returns the size of one frame (one sample per channel) in bytes.
func (af AudioFormat) FrameSize() int {
	return af.Format.SampleSize() * af.Channels
}

// ByteRate returns the stream rate in bytes per second.
func (af AudioFormat) ByteRate() int {
	return af.SampleRate * af.FrameSize()
}

// SizeToTime converts a byte count to stream duration.
func (af AudioFormat) SizeToTime(size int) time.Duration {
	br := af.ByteRate()
	if br == 0 {
		return 0
	}
	return time.Duration(float64(size) / float64(br) * float64(time.Second))
}

// TimeToSize converts a duration to a byte count, rounded down to whole
// frames.
func (af AudioFormat) TimeToSize(d time.Duration) int {
	fs := af.FrameSize()
	if fs == 0 {
		return 0
	}
	frames := int(float64(d) / float64(time.Second) * float64(af.SampleRate))
	return frames * fs
}

func (af AudioFormat) String() string {
	return fmt.Sprintf("%d:%v:%d", af.SampleRate, af.Format, af.Channels)
}

// ErrBadAudioFormat is returned by ParseAudioFormat for malformed input.
var ErrBadAudioFormat = errors.New("malformed audio format")

// ParseAudioFormat parses the "rate:bits:channels" notation, e.g.
// "44100:16:2" or "352800:dsd:2".
func ParseAudioFormat(s string) (AudioFormat, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return AudioFormat{}, fmt.Errorf("%w: %q", ErrBadAudioFormat, s)
	}
	rate, err := strconv.Atoi(parts[0])
	if err != nil {
		return AudioFormat{}, fmt.Errorf("%w: bad rate %q", ErrBadAudioFormat, parts[0])
	}
	var format SampleFormat
	switch parts[1] {
	case "8":
		format = SampleFormatS8
	case "16":
		format = SampleFormatS16
	case "24":
		format = SampleFormatS24P32
	case "32":
		format = SampleFormatS32
	case "f":
		format = SampleFormatFloat
	case "dsd":
		format = SampleFormatDSD
	default:
		return AudioFormat{}, fmt.Errorf("%w: bad sample format %q", ErrBadAudioFormat, parts[1])
	}
	channels, err := strconv.Atoi(parts[2])
	if err != nil {
		return AudioFormat{}, fmt.Errorf("%w: bad channels %q", ErrBadAudioFormat, parts[2])
	}
	af := AudioFormat{SampleRate: rate, Format: format, Channels: channels}
	if !af.Valid() {
		return AudioFormat{}, fmt.Errorf("%w: %q out of range", ErrBadAudioFormat, s)
	}
	return af, nil
}
