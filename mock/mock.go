// Package mock provides fake pipeline plugins for tests: a deterministic
// decoder plugin and a recording output driver with scriptable failures.
package mock

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/decoder"
	"github.com/pipelined/phonod/input"
)

const blockFrames = 1024

// RegisterDecoder registers the mock decoder plugin; call it once from
// TestMain or an init in the test package. Files with the ".mock" suffix
// describe the generated signal as key=value lines:
//
//	frames=44100
//	rate=44100
//	channels=2
//	value=1000
//
// Every generated sample of the song carries the constant value, so tests
// can tell songs apart byte for byte.
func RegisterDecoder() {
	registerOnce.Do(func() {
		decoder.Register(decoder.Plugin{
			Name:     "mock",
			Suffixes: []string{"mock"},
			Decode:   decodeMock,
		})
	})
}

var registerOnce sync.Once

type mockParams struct {
	frames   int
	rate     int
	channels int
	value    int16
}

func parseParams(s input.Stream) (mockParams, error) {
	p := mockParams{frames: 44100, rate: 44100, channels: 2, value: 1}
	scanner := bufio.NewScanner(s)
	for scanner.Scan() {
		kv := strings.SplitN(strings.TrimSpace(scanner.Text()), "=", 2)
		if len(kv) != 2 {
			continue
		}
		v, err := strconv.Atoi(kv[1])
		if err != nil {
			return p, fmt.Errorf("mock: bad %s: %w", kv[0], err)
		}
		switch kv[0] {
		case "frames":
			p.frames = v
		case "rate":
			p.rate = v
		case "channels":
			p.channels = v
		case "value":
			p.value = int16(v)
		}
	}
	return p, scanner.Err()
}

func decodeMock(c decoder.Client, s input.Stream) error {
	p, err := parseParams(s)
	if err != nil {
		return err
	}
	af := phonod.AudioFormat{
		SampleRate: p.rate,
		Format:     phonod.SampleFormatS16,
		Channels:   p.channels,
	}
	total := time.Duration(float64(p.frames) / float64(p.rate) * float64(time.Second))
	if err := c.Ready(af, true, total); err != nil {
		return err
	}

	block := make([]byte, blockFrames*af.FrameSize())
	for i := range block {
		if i%2 == 0 {
			binary.NativeEndian.PutUint16(block[i:], uint16(p.value))
		}
	}

	pos := 0
	for pos < p.frames {
		switch c.GetCommand() {
		case decoder.CommandStop:
			return nil
		case decoder.CommandSeek:
			pos = int(c.SeekTime().Seconds() * float64(p.rate))
			if pos > p.frames {
				pos = p.frames
			}
			c.CommandFinished()
			continue
		}

		n := blockFrames
		if n > p.frames-pos {
			n = p.frames - pos
		}
		if cmd := c.SubmitData(block[:n*af.FrameSize()], 1411); cmd == decoder.CommandStop {
			return nil
		}
		pos += n
	}
	return nil
}
