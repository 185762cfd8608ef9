// Package mp3dec decodes MPEG audio with hajimehoshi/go-mp3. The library
// always emits signed 16 bit stereo at the source rate.
package mp3dec

import (
	"fmt"
	"io"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/decoder"
	"github.com/pipelined/phonod/input"
)

const readSize = 8192

func init() {
	decoder.Register(decoder.Plugin{
		Name:      "mp3",
		Suffixes:  []string{"mp3"},
		MIMETypes: []string{"audio/mpeg", "audio/mp3"},
		Decode:    decode,
	})
}

func decode(c decoder.Client, s input.Stream) error {
	d, err := mp3.NewDecoder(decoder.StreamReader(s))
	if err != nil {
		return fmt.Errorf("mp3dec: %w", err)
	}

	af := phonod.AudioFormat{
		SampleRate: d.SampleRate(),
		Format:     phonod.SampleFormatS16,
		Channels:   2,
	}

	var total time.Duration
	if d.Length() > 0 {
		total = af.SizeToTime(int(d.Length()))
	}
	if err := c.Ready(af, s.Seekable(), total); err != nil {
		return err
	}

	// estimate the compressed bit rate from stream size and play time
	bitRate := 0
	if total > 0 && s.Size() > 0 {
		bitRate = int(float64(s.Size()) * 8 / total.Seconds() / 1000)
	}

	buf := make([]byte, readSize)
	for {
		switch c.GetCommand() {
		case decoder.CommandStop:
			return nil
		case decoder.CommandSeek:
			offset := int64(af.TimeToSize(c.SeekTime()))
			if _, err := d.Seek(offset, io.SeekStart); err != nil {
				c.SeekError()
			} else {
				c.CommandFinished()
			}
			continue
		}

		n, err := d.Read(buf)
		if n > 0 {
			if cmd := c.SubmitData(buf[:n], bitRate); cmd == decoder.CommandStop {
				return nil
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("mp3dec: %w", err)
		}
	}
}
