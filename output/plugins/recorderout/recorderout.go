// Package recorderout encodes what is being played into an mp3 file,
// the "record what you hear" sink.
package recorderout

import (
	"fmt"
	"os"
	"sync"

	"github.com/viert/lame"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/output"
)

const defaultBitRate = 192

func init() {
	output.Register("recorder", func(cfg config.Output) (output.Driver, error) {
		if cfg.Path == "" {
			return nil, fmt.Errorf("recorderout: output %q needs a path", cfg.Name)
		}
		bitRate := cfg.BitRate
		if bitRate <= 0 {
			bitRate = defaultBitRate
		}
		return &driver{path: cfg.Path, bitRate: bitRate}, nil
	})
}

type driver struct {
	path    string
	bitRate int

	mu sync.Mutex
	f  *os.File
	wr *lame.LameWriter
}

func (d *driver) Enable() error { return nil }
func (d *driver) Disable()      {}

func (d *driver) Open(f *phonod.AudioFormat) error {
	f.Format = phonod.SampleFormatS16
	if f.Channels > 2 {
		f.Channels = 2
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	file, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("recorderout: %w", err)
	}

	wr := lame.NewWriter(file)
	wr.Encoder.SetBitrate(d.bitRate)
	wr.Encoder.SetQuality(2)
	wr.Encoder.SetNumChannels(f.Channels)
	wr.Encoder.SetInSamplerate(f.SampleRate)
	if f.Channels == 2 {
		wr.Encoder.SetMode(lame.JOINT_STEREO)
	} else {
		wr.Encoder.SetMode(lame.MONO)
	}
	wr.Encoder.InitParams()

	d.f = file
	d.wr = wr
	return nil
}

func (d *driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.wr != nil {
		d.wr.Close()
		d.wr = nil
	}
	if d.f != nil {
		d.f.Close()
		d.f = nil
	}
}

func (d *driver) Play(p []byte) (int, error) {
	d.mu.Lock()
	wr := d.wr
	d.mu.Unlock()
	if wr == nil {
		return 0, fmt.Errorf("recorderout: not open")
	}
	return wr.Write(p)
}

func (d *driver) Cancel() {}

// SendTag starts nothing new; the encoder stream is continuous. Tags are
// accepted so the worker does not warn.
func (d *driver) SendTag(t *phonod.Tag) error { return nil }
