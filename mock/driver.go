package mock

import (
	"errors"
	"sync"

	"github.com/pipelined/phonod"
)

// ErrScripted is the failure injected by scriptable driver errors.
var ErrScripted = errors.New("mock: scripted failure")

// Driver is a recording output driver. Zero value is usable; failures are
// scripted through the exported fields before the output opens.
type Driver struct {
	// FailOpen makes Open fail.
	FailOpen bool
	// FailOnPlay makes the Nth and every later Play call fail (1-based)
	// until ClearFailures; 0 disables.
	FailOnPlay int
	// ChunkBytes bounds how much one Play call consumes; 0 means all,
	// useful to exercise partial-write loops.
	ChunkBytes int

	mu       sync.Mutex
	enabled  bool
	open     bool
	paused   bool
	format   phonod.AudioFormat
	played   []byte
	plays    int
	canceled int
	recovers int
}

func (d *Driver) Enable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = true
	return nil
}

func (d *Driver) Disable() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = false
}

func (d *Driver) Open(f *phonod.AudioFormat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailOpen {
		return ErrScripted
	}
	d.format = *f
	d.open = true
	d.paused = false
	return nil
}

func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
}

func (d *Driver) Play(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plays++
	if d.FailOnPlay > 0 && d.plays >= d.FailOnPlay {
		return 0, ErrScripted
	}
	n := len(p)
	if d.ChunkBytes > 0 && n > d.ChunkBytes {
		n = d.ChunkBytes
	}
	d.played = append(d.played, p[:n]...)
	return n, nil
}

func (d *Driver) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.canceled++
}

func (d *Driver) Pause() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = true
	return true
}

func (d *Driver) Resume() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paused = false
}

// Played returns a copy of everything written so far.
func (d *Driver) Played() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.played...)
}

// PlayedBytes returns the written byte count.
func (d *Driver) PlayedBytes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.played)
}

// Plays returns the number of Play calls.
func (d *Driver) Plays() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.plays
}

// Format returns the format of the last Open.
func (d *Driver) Format() phonod.AudioFormat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.format
}

// IsOpen reports the device state.
func (d *Driver) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// IsPaused reports the pause state.
func (d *Driver) IsPaused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

// Cancels returns the number of Cancel calls.
func (d *Driver) Cancels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canceled
}

// ClearFailures resets the scripted failure switches.
func (d *Driver) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FailOpen = false
	d.FailOnPlay = 0
}
