package decoder

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/log"
	"github.com/pipelined/phonod/pipe"
)

// ErrSeekFailed is returned by Seek when the plugin reported a seek error.
var ErrSeekFailed = errors.New("decoder: seek failed")

// ErrNotSeekable is returned by Seek for forward-only songs.
var ErrNotSeekable = errors.New("decoder: song is not seekable")

// Control is the shared state between the player and the decoder worker:
// the command slot, the produced stream's properties and the one-shot error
// slot. One worker goroutine runs per song; Start spawns it and Stop joins
// it.
type Control struct {
	mu   sync.Mutex
	// cond wakes the worker: a command was posted or the player consumed
	// chunks.
	cond *sync.Cond
	// clientCond wakes the player: the command slot was consumed or the
	// worker changed state.
	clientCond *sync.Cond

	command Command
	state   State

	song      *phonod.Song
	startTime time.Duration
	seekTime  time.Duration
	seekErr   bool

	pipe *pipe.Pipe
	pool *buffer.Pool
	// threshold is the pipe size at which the producer parks.
	threshold int

	format    phonod.AudioFormat
	seekable  bool
	totalTime time.Duration

	err     error
	errKind phonod.ErrorKind

	// notify wakes the consumer side (the player worker) outside this
	// control's own condition variables.
	notify func()

	done chan struct{}
	log  *logrus.Logger
}

// SetNotify installs the consumer wakeup invoked whenever the worker
// produced a chunk or changed state. Must be set before Start.
func (dc *Control) SetNotify(fn func()) {
	dc.mu.Lock()
	dc.notify = fn
	dc.mu.Unlock()
}

// NewControl creates a decoder control producing into chunks of the given
// pool. threshold bounds the decoder pipe length.
func NewControl(pool *buffer.Pool, threshold int) *Control {
	dc := &Control{
		pool:      pool,
		threshold: threshold,
		state:     StateStop,
		log:       log.GetLogger(),
	}
	dc.cond = sync.NewCond(&dc.mu)
	dc.clientCond = sync.NewCond(&dc.mu)
	return dc
}

// Start spawns a worker decoding song into p, beginning at startAt. It
// returns once the worker consumed the start command, i.e. the stream and
// plugin are open or the error slot is set.
func (dc *Control) Start(song *phonod.Song, startAt time.Duration, p *pipe.Pipe) {
	dc.mu.Lock()
	if dc.state != StateStop && dc.state != StateError {
		dc.mu.Unlock()
		panic("decoder: Start while worker is running")
	}
	dc.song = song
	dc.startTime = startAt
	dc.pipe = p
	dc.command = CommandStart
	dc.state = StateStart
	dc.err = nil
	dc.errKind = phonod.ErrorNone
	dc.seekErr = false
	dc.done = make(chan struct{})
	go dc.run()
	for dc.command == CommandStart {
		dc.clientCond.Wait()
	}
	dc.mu.Unlock()
}

// Stop terminates the worker and joins it; a worker that already finished
// is still joined so no goroutine outlives the call.
func (dc *Control) Stop() {
	dc.mu.Lock()
	done := dc.done
	if dc.state != StateStop && dc.state != StateError {
		dc.command = CommandStop
		dc.cond.Broadcast()
	}
	dc.mu.Unlock()
	if done != nil {
		<-done
	}
	dc.mu.Lock()
	dc.command = CommandNone
	if dc.state != StateError {
		dc.state = StateStop
	}
	dc.mu.Unlock()
}

// Seek asks the worker to reposition to t and waits for the outcome. On
// success the worker has already dropped the pre-seek chunks from the pipe.
func (dc *Control) Seek(t time.Duration) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.state != StateDecode && dc.state != StateStart {
		return ErrSeekFailed
	}
	if !dc.seekable {
		return ErrNotSeekable
	}
	dc.seekErr = false
	dc.seekTime = t
	dc.command = CommandSeek
	dc.cond.Broadcast()
	for dc.command == CommandSeek && dc.state != StateStop && dc.state != StateError {
		dc.clientCond.Wait()
	}
	if dc.seekErr {
		return ErrSeekFailed
	}
	if dc.state == StateError {
		return dc.err
	}
	return nil
}

// Signal wakes a worker parked on backpressure; the player calls it after
// consuming chunks from the pipe.
func (dc *Control) Signal() {
	dc.mu.Lock()
	dc.cond.Broadcast()
	dc.mu.Unlock()
}

// State returns the worker state.
func (dc *Control) State() State {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.state
}

// Song returns the song the worker is (or was last) decoding.
func (dc *Control) Song() *phonod.Song {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.song
}

// Error returns the one-shot error slot; reading it does not clear it, the
// next Start does.
func (dc *Control) Error() (phonod.ErrorKind, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.errKind, dc.err
}

// ReadyInfo returns the published stream properties; valid once the state
// reached StateDecode.
func (dc *Control) ReadyInfo() (phonod.AudioFormat, bool, time.Duration) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.format, dc.seekable, dc.totalTime
}

// WaitDecodeStarted blocks until the worker published the stream format or
// died; it reports whether decoding really started. A song that already
// decoded to its end after publishing its format counts as started.
func (dc *Control) WaitDecodeStarted() bool {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for dc.state == StateStart {
		dc.clientCond.Wait()
	}
	return dc.state == StateDecode || (dc.state == StateStop && dc.format.Valid())
}

// setError records a failure and wakes the player; the worker exits right
// after.
func (dc *Control) setError(kind phonod.ErrorKind, err error) {
	dc.mu.Lock()
	dc.errKind = kind
	dc.err = err
	dc.state = StateError
	if dc.command == CommandStart || dc.command == CommandSeek {
		dc.command = CommandNone
	}
	dc.clientCond.Broadcast()
	notify := dc.notify
	dc.mu.Unlock()
	if notify != nil {
		notify()
	}
}
