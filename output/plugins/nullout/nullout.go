// Package nullout discards audio. By default it consumes at real-time
// pace so transport behavior stays observable; device "nosync" drops the
// pacing for tests and benchmarks.
package nullout

import (
	"sync"
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/output"
)

func init() {
	output.Register("null", func(cfg config.Output) (output.Driver, error) {
		return &driver{sync: cfg.Device != "nosync"}, nil
	})
}

type driver struct {
	sync bool

	mu      sync.Mutex
	format  phonod.AudioFormat
	started time.Time
	played  int
}

func (d *driver) Enable() error { return nil }
func (d *driver) Disable()      {}

func (d *driver) Open(f *phonod.AudioFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.format = *f
	d.started = time.Now()
	d.played = 0
	return nil
}

func (d *driver) Close() {}

// Delay paces the worker so bytes drain at the stream rate.
func (d *driver) Delay() time.Duration {
	if !d.sync {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	ahead := d.format.SizeToTime(d.played) - time.Since(d.started)
	if ahead > 10*time.Millisecond {
		return 10 * time.Millisecond
	}
	return 0
}

func (d *driver) Play(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.played += len(p)
	return len(p), nil
}

func (d *driver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = time.Now()
	d.played = 0
}

func (d *driver) Pause() bool { return true }
