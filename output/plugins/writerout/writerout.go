// Package writerout streams raw PCM bytes to a file or FIFO path, the
// building block for piping audio into other processes.
package writerout

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/output"
)

func init() {
	output.Register("writer", func(cfg config.Output) (output.Driver, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("writerout: output %q needs a path", cfg.Name)
		}
		return &driver{path: cfg.Path}, nil
	})
}

// NewWithWriter builds a driver over an arbitrary writer; tests and
// embedders use it instead of the path-based factory.
func NewWithWriter(w io.Writer) output.Driver {
	return &driver{w: w}
}

type driver struct {
	path string

	mu sync.Mutex
	w  io.Writer
	f  *os.File
}

func (d *driver) Enable() error { return nil }
func (d *driver) Disable()      {}

func (d *driver) Open(f *phonod.AudioFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.path == "" {
		// writer was injected
		return nil
	}
	file, err := os.OpenFile(d.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("writerout: %w", err)
	}
	d.f = file
	d.w = file
	return nil
}

func (d *driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f != nil {
		d.f.Close()
		d.f = nil
		d.w = nil
	}
}

func (d *driver) Play(p []byte) (int, error) {
	d.mu.Lock()
	w := d.w
	d.mu.Unlock()
	if w == nil {
		return 0, fmt.Errorf("writerout: not open")
	}
	return w.Write(p)
}

func (d *driver) Cancel() {}
