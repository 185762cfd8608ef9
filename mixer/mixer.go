// Package mixer abstracts volume control of one output. A software mixer
// drives the output's volume filter; hardware mixers would talk to the
// device instead. The output group aggregates mixer levels across outputs.
package mixer

import (
	"errors"
	"sync"
)

// ErrClosed is returned by volume operations on a closed mixer.
var ErrClosed = errors.New("mixer: not open")

// Mixer controls the volume of one output.
type Mixer interface {
	// Open prepares the mixer; volume operations fail before Open.
	Open() error
	// Close releases the mixer.
	Close()
	// GetVolume returns the level 0..100.
	GetVolume() (int, error)
	// SetVolume sets the level 0..100.
	SetVolume(v int) error
	// IsHardware reports whether the level lives in the device rather
	// than in the PCM path.
	IsHardware() bool
}

// VolumeControl is the software volume stage a software mixer drives; the
// filter.Volume type implements it.
type VolumeControl interface {
	SetVolume(v int)
	GetVolume() int
}

// Software scales PCM in the output's filter chain. The filter is attached
// when the output opens and detached when it closes; the level lives in
// the mixer and stays settable even while the output is closed, so volume
// survives reopen.
type Software struct {
	mu     sync.Mutex
	volume int
	ctl    VolumeControl
}

// NewSoftware creates a software mixer at full volume.
func NewSoftware() *Software {
	return &Software{volume: 100}
}

// SetFilter attaches or detaches the volume filter; nil detaches. The
// stored level is pushed into a newly attached filter.
func (m *Software) SetFilter(ctl VolumeControl) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctl = ctl
	if ctl != nil {
		ctl.SetVolume(m.volume)
	}
}

// Open is part of the Mixer contract; the software level needs no device.
func (m *Software) Open() error { return nil }

// Close keeps the level; the attached filter is detached by the output.
func (m *Software) Close() {}

// GetVolume returns the stored level.
func (m *Software) GetVolume() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume, nil
}

// SetVolume stores the level and pushes it into the attached filter.
func (m *Software) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return errors.New("mixer: volume out of range")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.volume = v
	if m.ctl != nil {
		m.ctl.SetVolume(v)
	}
	return nil
}

// IsHardware reports false; the level lives in the PCM path.
func (m *Software) IsHardware() bool { return false }

// Null accepts volume writes and reports the stored value without touching
// any audio; outputs configured with mixer_type "null" use it.
type Null struct {
	mu     sync.Mutex
	open   bool
	volume int
}

// NewNull creates a null mixer at full volume.
func NewNull() *Null {
	return &Null{volume: 100}
}

// Open marks the mixer usable.
func (m *Null) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = true
	return nil
}

// Close blocks further volume operations.
func (m *Null) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
}

// GetVolume returns the stored level.
func (m *Null) GetVolume() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return -1, ErrClosed
	}
	return m.volume, nil
}

// SetVolume stores the level.
func (m *Null) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return errors.New("mixer: volume out of range")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrClosed
	}
	m.volume = v
	return nil
}

// IsHardware reports true; the null mixer stands in for a device level.
func (m *Null) IsHardware() bool { return true }
