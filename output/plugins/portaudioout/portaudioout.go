// Package portaudioout plays through the default portaudio device. The
// driver forces signed 16 bit output and writes whole period buffers.
package portaudioout

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/output"
)

const defaultPeriod = 125 * time.Millisecond

func init() {
	output.Register("portaudio", func(cfg config.Output) (output.Driver, error) {
		period := cfg.PeriodTime.Std()
		if period <= 0 {
			period = defaultPeriod
		}
		return &driver{period: period}, nil
	})
}

type driver struct {
	period time.Duration

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	pending []int16
	frames  int
	numCh   int
}

// Enable initializes the portaudio library; it is the shared resource of
// all opens.
func (d *driver) Enable() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudioout: %w", err)
	}
	return nil
}

func (d *driver) Disable() {
	portaudio.Terminate()
}

func (d *driver) Open(f *phonod.AudioFormat) error {
	f.Format = phonod.SampleFormatS16

	d.mu.Lock()
	defer d.mu.Unlock()
	d.numCh = f.Channels
	d.frames = int(float64(f.SampleRate) * d.period.Seconds())
	d.buf = make([]int16, d.frames*d.numCh)
	d.pending = d.pending[:0]

	stream, err := portaudio.OpenDefaultStream(0, d.numCh, float64(f.SampleRate), d.frames, &d.buf)
	if err != nil {
		return fmt.Errorf("portaudioout: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("portaudioout: %w", err)
	}
	d.stream = stream
	return nil
}

func (d *driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return
	}
	d.stream.Stop()
	d.stream.Close()
	d.stream = nil
}

// Play accumulates samples and writes whole period buffers to the stream.
func (d *driver) Play(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return 0, fmt.Errorf("portaudioout: not open")
	}
	for i := 0; i+2 <= len(p); i += 2 {
		d.pending = append(d.pending, int16(uint16(p[i])|uint16(p[i+1])<<8))
	}
	for len(d.pending) >= len(d.buf) {
		copy(d.buf, d.pending[:len(d.buf)])
		d.pending = d.pending[:copy(d.pending, d.pending[len(d.buf):])]
		if err := d.stream.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				// xrun; the recover hook restarts the stream
				return len(p), err
			}
			return len(p), fmt.Errorf("portaudioout: %w", err)
		}
	}
	return len(p), nil
}

// Recover restarts the stream after an underflow.
func (d *driver) Recover(err error) error {
	if err != portaudio.OutputUnderflowed {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		return err
	}
	d.stream.Stop()
	return d.stream.Start()
}

func (d *driver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = d.pending[:0]
	if d.stream != nil {
		d.stream.Abort()
		d.stream.Start()
	}
}

func (d *driver) Pause() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		d.stream.Stop()
	}
	return true
}

func (d *driver) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		d.stream.Start()
	}
}

func (d *driver) Drain() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil || len(d.pending) == 0 {
		return nil
	}
	// pad the tail to one period with silence
	for i := range d.buf {
		if i < len(d.pending) {
			d.buf[i] = d.pending[i]
		} else {
			d.buf[i] = 0
		}
	}
	d.pending = d.pending[:0]
	return d.stream.Write()
}
