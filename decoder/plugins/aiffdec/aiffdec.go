// Package aiffdec decodes AIFF files with go-audio/aiff.
package aiffdec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/decoder"
	"github.com/pipelined/phonod/input"
)

const readFrames = 2048

func init() {
	decoder.Register(decoder.Plugin{
		Name:      "aiff",
		Suffixes:  []string{"aif", "aiff"},
		MIMETypes: []string{"audio/aiff", "audio/x-aiff"},
		Decode:    decode,
	})
}

func decode(c decoder.Client, s input.Stream) error {
	d := aiff.NewDecoder(decoder.StreamReader(s))
	d.ReadInfo()
	if !d.IsValidFile() {
		return errors.New("aiffdec: not a valid aiff file")
	}

	var format phonod.SampleFormat
	switch d.BitDepth {
	case 8:
		format = phonod.SampleFormatS8
	case 16:
		format = phonod.SampleFormatS16
	case 24:
		format = phonod.SampleFormatS24P32
	case 32:
		format = phonod.SampleFormatS32
	default:
		return fmt.Errorf("aiffdec: unsupported bit depth %d", d.BitDepth)
	}
	af := phonod.AudioFormat{
		SampleRate: d.SampleRate,
		Format:     format,
		Channels:   int(d.NumChans),
	}
	if !af.Valid() {
		return fmt.Errorf("aiffdec: unplayable format %v", af)
	}

	dur, err := d.Duration()
	if err != nil {
		dur = 0
	}
	if err := c.Ready(af, s.Seekable(), dur); err != nil {
		return err
	}
	bitRate := af.ByteRate() * 8 / 1000

	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: af.Channels,
			SampleRate:  af.SampleRate,
		},
		Data:           make([]int, readFrames*af.Channels),
		SourceBitDepth: int(d.BitDepth),
	}
	out := make([]byte, readFrames*af.FrameSize())

	for {
		switch c.GetCommand() {
		case decoder.CommandStop:
			return nil
		case decoder.CommandSeek:
			target := c.SeekTime()
			if err := seek(d, s, target, af, ib); err != nil {
				c.SeekError()
			} else {
				c.CommandFinished()
			}
			continue
		}

		ib.Data = ib.Data[:readFrames*af.Channels]
		n, err := d.PCMBuffer(ib)
		if err != nil {
			return fmt.Errorf("aiffdec: %w", err)
		}
		if n == 0 {
			return nil
		}
		block := encode(ib.Data[:n], out, af.Format)
		if cmd := c.SubmitData(block, bitRate); cmd == decoder.CommandStop {
			return nil
		}
	}
}

// seek re-opens the stream and decodes forward to the target.
func seek(d *aiff.Decoder, s input.Stream, target time.Duration,
	af phonod.AudioFormat, ib *audio.IntBuffer) error {
	if !s.Seekable() {
		return input.ErrNotSeekable
	}
	if err := s.Seek(0); err != nil {
		return err
	}
	*d = *aiff.NewDecoder(decoder.StreamReader(s))
	d.ReadInfo()
	if !d.IsValidFile() {
		return errors.New("aiffdec: re-open failed")
	}
	skip := int(target.Seconds() * float64(af.SampleRate))
	for skip > 0 {
		want := readFrames
		if want > skip {
			want = skip
		}
		ib.Data = ib.Data[:want*af.Channels]
		n, err := d.PCMBuffer(ib)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		skip -= n / af.Channels
	}
	return nil
}

func encode(data []int, out []byte, format phonod.SampleFormat) []byte {
	ss := format.SampleSize()
	block := out[:len(data)*ss]
	for i, v := range data {
		switch format {
		case phonod.SampleFormatS8:
			block[i] = byte(int8(v))
		case phonod.SampleFormatS16:
			binary.NativeEndian.PutUint16(block[i*2:], uint16(int16(v)))
		case phonod.SampleFormatS24P32, phonod.SampleFormatS32:
			binary.NativeEndian.PutUint32(block[i*4:], uint32(int32(v)))
		}
	}
	return block
}
