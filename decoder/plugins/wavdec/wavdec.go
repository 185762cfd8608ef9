// Package wavdec decodes RIFF/WAVE files with go-audio/wav.
package wavdec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/decoder"
	"github.com/pipelined/phonod/input"
)

const readFrames = 2048

func init() {
	decoder.Register(decoder.Plugin{
		Name:      "wav",
		Suffixes:  []string{"wav", "wave"},
		MIMETypes: []string{"audio/wav", "audio/x-wav", "audio/wave"},
		Decode:    decode,
	})
}

func decode(c decoder.Client, s input.Stream) error {
	d := wav.NewDecoder(decoder.StreamReader(s))
	if !d.IsValidFile() {
		return errors.New("wavdec: not a valid wav file")
	}

	format, err := sampleFormat(int(d.BitDepth))
	if err != nil {
		return err
	}
	af := phonod.AudioFormat{
		SampleRate: int(d.SampleRate),
		Format:     format,
		Channels:   int(d.NumChans),
	}
	if !af.Valid() {
		return fmt.Errorf("wavdec: unplayable format %v", af)
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
		Format:         d.Format(),
		Data:           make([]int, readFrames*af.Channels),
		SourceBitDepth: int(d.BitDepth),
	}
	out := make([]byte, readFrames*af.FrameSize())
	pos := time.Duration(0)

	for {
		switch c.GetCommand() {
		case decoder.CommandStop:
			return nil
		case decoder.CommandSeek:
			target := c.SeekTime()
			if err := seek(d, s, target, af); err != nil {
				c.SeekError()
			} else {
				pos = target
				c.CommandFinished()
			}
			continue
		}

		ib.Data = ib.Data[:readFrames*af.Channels]
		n, err := d.PCMBuffer(ib)
		if err != nil {
			return fmt.Errorf("wavdec: %w", err)
		}
		if n == 0 {
			return nil
		}
		block := encode(ib.Data[:n], out, af.Format)
		pos += af.SizeToTime(len(block))
		if cmd := c.SubmitData(block, bitRate); cmd == decoder.CommandStop {
			return nil
		}
	}
}

// seek re-opens the stream and decodes forward; go-audio's decoder has no
// sample-accurate seek of its own.
func seek(d *wav.Decoder, s input.Stream, target time.Duration, af phonod.AudioFormat) error {
	if !s.Seekable() {
		return input.ErrNotSeekable
	}
	if err := s.Seek(0); err != nil {
		return err
	}
	*d = *wav.NewDecoder(decoder.StreamReader(s))
	if !d.IsValidFile() {
		return errors.New("wavdec: re-open failed")
	}
	skip := af.TimeToSize(target) / af.FrameSize()
	ib := &audio.IntBuffer{
		Format:         d.Format(),
		Data:           make([]int, readFrames*af.Channels),
		SourceBitDepth: int(d.BitDepth),
	}
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

func sampleFormat(bitDepth int) (phonod.SampleFormat, error) {
	switch bitDepth {
	case 8:
		return phonod.SampleFormatS8, nil
	case 16:
		return phonod.SampleFormatS16, nil
	case 24:
		return phonod.SampleFormatS24P32, nil
	case 32:
		return phonod.SampleFormatS32, nil
	default:
		return phonod.SampleFormatUndefined, fmt.Errorf("wavdec: unsupported bit depth %d", bitDepth)
	}
}

// encode writes the int samples of the decoded buffer into the wire layout
// of the negotiated sample format.
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
