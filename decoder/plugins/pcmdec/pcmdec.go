// Package pcmdec plays headerless PCM. The format defaults to CD audio
// (44100:16:2) and may be overridden by the audio/x-raw-pcm MIME
// parameters, e.g. "audio/x-raw-pcm;rate=48000;channels=1".
package pcmdec

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/decoder"
	"github.com/pipelined/phonod/input"
)

const readSize = 8192

func init() {
	decoder.Register(decoder.Plugin{
		Name:      "pcm",
		Suffixes:  []string{"pcm", "raw"},
		MIMETypes: []string{"audio/x-raw-pcm", "audio/L16"},
		Decode:    decode,
	})
}

func decode(c decoder.Client, s input.Stream) error {
	af := parseFormat(s.MIME())
	if !af.Valid() {
		return fmt.Errorf("pcmdec: invalid format %v", af)
	}

	var total time.Duration
	if s.Size() > 0 {
		total = af.SizeToTime(int(s.Size()))
	}
	if err := c.Ready(af, s.Seekable(), total); err != nil {
		return err
	}
	bitRate := af.ByteRate() * 8 / 1000

	buf := make([]byte, readSize/af.FrameSize()*af.FrameSize())
	for {
		switch c.GetCommand() {
		case decoder.CommandStop:
			return nil
		case decoder.CommandSeek:
			offset := int64(af.TimeToSize(c.SeekTime()))
			if err := s.Seek(offset); err != nil {
				c.SeekError()
			} else {
				c.CommandFinished()
			}
			continue
		}

		n, err := io.ReadFull(s, buf)
		if n > 0 {
			// trim to whole frames; a trailing partial frame is dropped
			n = n / af.FrameSize() * af.FrameSize()
			if cmd := c.SubmitData(buf[:n], bitRate); cmd == decoder.CommandStop {
				return nil
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("pcmdec: %w", err)
		}
	}
}

// parseFormat reads rate/channels parameters off the MIME type.
func parseFormat(mime string) phonod.AudioFormat {
	af := phonod.AudioFormat{
		SampleRate: 44100,
		Format:     phonod.SampleFormatS16,
		Channels:   2,
	}
	for _, part := range strings.Split(mime, ";")[1:] {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "rate":
			if v, err := strconv.Atoi(kv[1]); err == nil {
				af.SampleRate = v
			}
		case "channels":
			if v, err := strconv.Atoi(kv[1]); err == nil {
				af.Channels = v
			}
		}
	}
	return af
}
