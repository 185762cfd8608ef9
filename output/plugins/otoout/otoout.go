// Package otoout plays through the platform audio device using
// ebitengine/oto. The driver forces signed 16 bit output; the filter chain
// upstream converts whatever the pipeline carries.
package otoout

import (
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/output"
)

func init() {
	output.Register("oto", func(cfg config.Output) (output.Driver, error) {
		return &driver{}, nil
	})
}

// otoContext is created once per process; oto does not support multiple
// contexts.
var otoContext = struct {
	sync.Mutex
	ctx    *oto.Context
	rate   int
	numCh  int
}{}

type driver struct {
	mu     sync.Mutex
	player *oto.Player
	pr     *io.PipeReader
	pw     *io.PipeWriter
}

func (d *driver) Enable() error { return nil }
func (d *driver) Disable()      {}

func (d *driver) Open(f *phonod.AudioFormat) error {
	f.Format = phonod.SampleFormatS16

	otoContext.Lock()
	defer otoContext.Unlock()
	if otoContext.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   f.SampleRate,
			ChannelCount: f.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			return fmt.Errorf("otoout: %w", err)
		}
		<-ready
		otoContext.ctx = ctx
		otoContext.rate = f.SampleRate
		otoContext.numCh = f.Channels
	} else {
		// the context format is fixed for the process lifetime; steer
		// the chain towards it
		f.SampleRate = otoContext.rate
		f.Channels = otoContext.numCh
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pr, d.pw = io.Pipe()
	d.player = otoContext.ctx.NewPlayer(d.pr)
	d.player.Play()
	return nil
}

func (d *driver) Close() {
	d.mu.Lock()
	player := d.player
	pw := d.pw
	pr := d.pr
	d.player = nil
	d.pw = nil
	d.pr = nil
	d.mu.Unlock()

	if pw != nil {
		pw.Close()
	}
	if player != nil {
		player.Close()
	}
	if pr != nil {
		pr.Close()
	}
}

// Play hands bytes to the device through the pipe; the blocking write is
// the natural pacing.
func (d *driver) Play(p []byte) (int, error) {
	d.mu.Lock()
	pw := d.pw
	d.mu.Unlock()
	if pw == nil {
		return 0, fmt.Errorf("otoout: not open")
	}
	return pw.Write(p)
}

func (d *driver) Cancel() {
	// drop the device-side buffer by replacing the pipe
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return
	}
	d.player.Pause()
	old := d.pr
	d.pw.Close()
	d.player.Close()
	d.pr, d.pw = io.Pipe()
	d.player = otoContext.ctx.NewPlayer(d.pr)
	d.player.Play()
	old.Close()
}

func (d *driver) Pause() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Pause()
	}
	return true
}

func (d *driver) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player != nil {
		d.player.Play()
	}
}
