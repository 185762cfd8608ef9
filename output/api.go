// Package output owns the consumer half of the playback pipeline: one
// worker goroutine per configured sink applying the output's filter chain
// and PCM export before handing bytes to a driver, and the group that fans
// chunks out to all enabled outputs and reclaims them after the slowest
// one.
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/config"
)

// Driver is the device half of an output, implemented by the plugins. All
// methods are called from the output's worker goroutine only.
type Driver interface {
	// Enable allocates resources shared across opens; called once when
	// the output is enabled.
	Enable() error
	// Disable undoes Enable.
	Disable()
	// Open prepares the device for the given format. The driver may
	// adjust the format to the closest one it supports.
	Open(f *phonod.AudioFormat) error
	// Close stops the device.
	Close()
	// Play writes PCM and returns how many bytes it consumed; partial
	// writes are fine.
	Play(p []byte) (int, error)
	// Cancel drops whatever the device has buffered, best effort.
	Cancel()
}

// Delayer is implemented by drivers that want the worker to pace itself
// before the next Play.
type Delayer interface {
	Delay() time.Duration
}

// Pauser is implemented by drivers with a cheaper idle mode than Close.
// Pause reports whether the device stayed open; false makes the worker
// close it instead.
type Pauser interface {
	Pause() bool
}

// Resumer is implemented by drivers that need an explicit kick when a
// paused device starts playing again.
type Resumer interface {
	Resume()
}

// Drainer is implemented by drivers that can wait for their buffer to hit
// the speaker, used at the natural end of playback.
type Drainer interface {
	Drain() error
}

// TagSender is implemented by drivers that forward tags (e.g. streaming
// encoders).
type TagSender interface {
	SendTag(t *phonod.Tag) error
}

// Recoverer is implemented by drivers that can recover from an xrun
// without a full reopen; the worker calls it before retrying Play.
type Recoverer interface {
	Recover(err error) error
}

// Factory builds a driver from one audio_outputs entry.
type Factory func(cfg config.Output) (Driver, error)

var registry = struct {
	sync.Mutex
	factories map[string]Factory
}{factories: map[string]Factory{}}

// Register adds a driver factory; bundled plugins register from init.
func Register(name string, f Factory) {
	registry.Lock()
	defer registry.Unlock()
	registry.factories[name] = f
}

// NewDriver instantiates the driver for an output config entry.
func NewDriver(cfg config.Output) (Driver, error) {
	registry.Lock()
	f, ok := registry.factories[cfg.Type]
	registry.Unlock()
	if !ok {
		return nil, fmt.Errorf("output: unknown output type %q", cfg.Type)
	}
	return f(cfg)
}
