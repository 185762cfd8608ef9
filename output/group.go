package output

import (
	"errors"
	"fmt"
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
)

// ErrAllOutputsFailed is returned by Open when no output could be opened.
var ErrAllOutputsFailed = errors.New("output: all outputs failed")

// Group broadcasts chunks from the player's output pipe to every enabled,
// non-failed output, reference-counting each chunk and returning it to the
// pool after the slowest consumer released it.
type Group struct {
	outputs []*Output
	pool    *buffer.Pool

	// notify wakes the player when an output consumed a chunk; it is
	// called without any lock held.
	notify func()
}

// NewGroup builds a group over the given outputs.
func NewGroup(pool *buffer.Pool, outputs ...*Output) *Group {
	g := &Group{outputs: outputs, pool: pool}
	for _, o := range outputs {
		o.release = g.release
	}
	return g
}

// SetNotify installs the player wakeup invoked after chunk consumption.
func (g *Group) SetNotify(fn func()) {
	g.notify = fn
}

// Outputs returns the group members.
func (g *Group) Outputs() []*Output { return g.outputs }

// Find returns the output with the given name, nil when unknown.
func (g *Group) Find(name string) *Output {
	for _, o := range g.outputs {
		if o.Name == name {
			return o
		}
	}
	return nil
}

// release drops one fan-out reference; the last holder frees the chunk.
func (g *Group) release(c *buffer.Chunk) {
	if !c.Unref() {
		return
	}
	g.pool.Release(c)
	if g.notify != nil {
		g.notify()
	}
}

// EnableDisable commits the enabled toggles: enabled outputs get their
// shared resources, disabled ones are shut.
func (g *Group) EnableDisable() {
	for _, o := range g.outputs {
		if o.Enabled() {
			o.lockCommand(CommandEnable)
		} else {
			o.lockCommand(CommandDisable)
		}
	}
}

// Open opens every enabled output for the given pipeline format. Outputs
// in their failure-retry window are skipped. At least one output must end
// up open.
func (g *Group) Open(in phonod.AudioFormat) error {
	if !in.Valid() {
		return fmt.Errorf("output: invalid format %v", in)
	}
	opened := 0
	for _, o := range g.outputs {
		if !o.Enabled() {
			continue
		}
		o.mu.Lock()
		retrying := !o.failedAt.IsZero() && o.now().Sub(o.failedAt) < reopenAfter
		sameFormat := o.open && o.inFormat == in
		o.inFormat = in
		o.mu.Unlock()
		if retrying {
			continue
		}
		if sameFormat {
			// already open; just make sure it is not paused
			o.lockCommand(CommandOpen)
			opened++
			continue
		}
		if o.State() == StateOpen || o.State() == StatePaused {
			o.lockCommand(CommandClose)
		}
		o.lockCommand(CommandOpen)
		if s := o.State(); s == StateOpen || s == StatePaused {
			opened++
		}
	}
	if opened == 0 {
		return ErrAllOutputsFailed
	}
	return nil
}

// Update retries enabled outputs whose failure window elapsed; the player
// calls it on transport changes. It reports whether any output is open.
func (g *Group) Update(in phonod.AudioFormat) bool {
	anyOpen := false
	for _, o := range g.outputs {
		if !o.Enabled() {
			continue
		}
		o.mu.Lock()
		failed := !o.failedAt.IsZero()
		expired := failed && o.now().Sub(o.failedAt) >= reopenAfter
		if in.Valid() {
			o.inFormat = in
		}
		o.mu.Unlock()
		if failed && expired && in.Valid() {
			o.mu.Lock()
			o.failedAt = time.Time{}
			o.mu.Unlock()
			o.lockCommand(CommandOpen)
		}
		if s := o.State(); s == StateOpen || s == StatePaused {
			anyOpen = true
		}
	}
	return anyOpen
}

// Play fans one chunk out to every playing output. The chunk must come
// from the group's pool; ownership transfers to the group.
func (g *Group) Play(c *buffer.Chunk) error {
	var targets []*Output
	for _, o := range g.outputs {
		if s := o.State(); s == StateOpen || s == StatePaused {
			targets = append(targets, o)
		}
	}
	if len(targets) == 0 {
		g.pool.Release(c)
		return ErrAllOutputsFailed
	}
	c.SetRefs(len(targets))
	for _, o := range targets {
		o.enqueue(c)
	}
	return nil
}

// Queued returns the deepest output backlog in chunks; the player paces
// itself on it.
func (g *Group) Queued() int {
	max := 0
	for _, o := range g.outputs {
		if n := o.Queued(); n > max {
			max = n
		}
	}
	return max
}

// Pause idles every open output; always_on semantics live in Stop.
func (g *Group) Pause() {
	for _, o := range g.outputs {
		if o.State() == StateOpen {
			o.lockCommand(CommandPause)
		}
	}
}

// Stop ends playback: always_on outputs pause to keep their mixers alive,
// the rest close.
func (g *Group) Stop() {
	for _, o := range g.outputs {
		switch o.State() {
		case StateOpen:
			if o.cfg.AlwaysOn {
				o.lockCommand(CommandPause)
			} else {
				o.lockCommand(CommandClose)
			}
		case StatePaused:
			if !o.cfg.AlwaysOn {
				o.lockCommand(CommandClose)
			}
		}
	}
}

// Close shuts every output unconditionally.
func (g *Group) Close() {
	for _, o := range g.outputs {
		if s := o.State(); s == StateOpen || s == StatePaused {
			o.lockCommand(CommandClose)
		}
	}
}

// Kill terminates all worker goroutines; the daemon calls it on exit.
func (g *Group) Kill() {
	for _, o := range g.outputs {
		o.mu.Lock()
		running := o.workerRunning
		o.mu.Unlock()
		if running {
			o.lockCommand(CommandKill)
		}
	}
}

// Drain waits until every open output played its buffer out.
func (g *Group) Drain() {
	for _, o := range g.outputs {
		if o.State() == StateOpen {
			o.lockCommand(CommandDrain)
		}
	}
}

// Cancel drops queued chunks and device buffers on every output; part of
// the seek protocol.
func (g *Group) Cancel() {
	for _, o := range g.outputs {
		if s := o.State(); s == StateOpen || s == StatePaused {
			o.lockCommand(CommandCancel)
		}
	}
}

// Volume averages the mixer levels of enabled outputs, -1 when no mixer is
// available.
func (g *Group) Volume() int {
	total := 0
	n := 0
	for _, o := range g.outputs {
		if !o.Enabled() || o.Mixer() == nil {
			continue
		}
		v, err := o.Mixer().GetVolume()
		if err != nil {
			continue
		}
		total += v
		n++
	}
	if n == 0 {
		return -1
	}
	return total / n
}

// SetVolume fans the level out to every enabled output's mixer.
func (g *Group) SetVolume(v int) error {
	if v < 0 || v > 100 {
		return fmt.Errorf("output: volume %d out of range", v)
	}
	ok := false
	var firstErr error
	for _, o := range g.outputs {
		if !o.Enabled() || o.Mixer() == nil {
			continue
		}
		if err := o.Mixer().SetVolume(v); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ok = true
	}
	if !ok && firstErr != nil {
		return firstErr
	}
	return nil
}
