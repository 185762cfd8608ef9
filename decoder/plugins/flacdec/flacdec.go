// Package flacdec decodes FLAC with mewkiz/flac, frame by frame.
package flacdec

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/mewkiz/flac"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/decoder"
	"github.com/pipelined/phonod/input"
)

func init() {
	decoder.Register(decoder.Plugin{
		Name:      "flac",
		Suffixes:  []string{"flac"},
		MIMETypes: []string{"audio/flac", "audio/x-flac"},
		Decode:    decode,
	})
}

func decode(c decoder.Client, s input.Stream) error {
	var (
		stream *flac.Stream
		err    error
	)
	seekable := s.Seekable()
	if seekable {
		stream, err = flac.NewSeek(decoder.StreamReader(s))
	} else {
		stream, err = flac.New(decoder.StreamReader(s))
	}
	if err != nil {
		return fmt.Errorf("flacdec: %w", err)
	}

	info := stream.Info
	var format phonod.SampleFormat
	switch {
	case info.BitsPerSample <= 8:
		format = phonod.SampleFormatS8
	case info.BitsPerSample <= 16:
		format = phonod.SampleFormatS16
	case info.BitsPerSample <= 24:
		format = phonod.SampleFormatS24P32
	default:
		format = phonod.SampleFormatS32
	}
	af := phonod.AudioFormat{
		SampleRate: int(info.SampleRate),
		Format:     format,
		Channels:   int(info.NChannels),
	}
	if !af.Valid() {
		return fmt.Errorf("flacdec: unplayable format %v", af)
	}

	var total time.Duration
	if info.NSamples > 0 {
		total = time.Duration(float64(info.NSamples) / float64(info.SampleRate) * float64(time.Second))
	}
	if err := c.Ready(af, seekable, total); err != nil {
		return err
	}

	// average compressed rate; flac does not carry a nominal bit rate
	bitRate := 0
	if total > 0 && s.Size() > 0 {
		bitRate = int(float64(s.Size()) * 8 / total.Seconds() / 1000)
	}

	shift := uint(0)
	if format == phonod.SampleFormatS16 && info.BitsPerSample < 16 {
		shift = 16 - uint(info.BitsPerSample)
	}

	var out []byte
	for {
		switch c.GetCommand() {
		case decoder.CommandStop:
			return nil
		case decoder.CommandSeek:
			sample := uint64(c.SeekTime().Seconds() * float64(info.SampleRate))
			if _, err := stream.Seek(sample); err != nil {
				c.SeekError()
			} else {
				c.CommandFinished()
			}
			continue
		}

		frame, err := stream.ParseNext()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("flacdec: %w", err)
		}

		frames := len(frame.Subframes[0].Samples)
		need := frames * af.FrameSize()
		if cap(out) < need {
			out = make([]byte, need)
		}
		block := out[:need]
		ss := af.Format.SampleSize()
		for i := 0; i < frames; i++ {
			for ch := 0; ch < af.Channels; ch++ {
				v := frame.Subframes[ch].Samples[i] << shift
				o := (i*af.Channels + ch) * ss
				switch af.Format {
				case phonod.SampleFormatS8:
					block[o] = byte(int8(v))
				case phonod.SampleFormatS16:
					binary.NativeEndian.PutUint16(block[o:], uint16(int16(v)))
				case phonod.SampleFormatS24P32, phonod.SampleFormatS32:
					binary.NativeEndian.PutUint32(block[o:], uint32(v))
				}
			}
		}
		if cmd := c.SubmitData(block, bitRate); cmd == decoder.CommandStop {
			return nil
		}
	}
}
