package player

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/log"
	"github.com/pipelined/phonod/output"
)

// State is the transport state clients observe.
type State uint8

const (
	// StateStop means nothing is playing.
	StateStop State = iota
	// StatePause means a song is loaded but the outputs idle.
	StatePause
	// StatePlay means chunks flow to the outputs.
	StatePlay
)

func (s State) String() string {
	switch s {
	case StatePlay:
		return "play"
	case StatePause:
		return "pause"
	default:
		return "stop"
	}
}

// command is the request slot between clients and the worker.
type command uint8

const (
	cmdNone command = iota
	cmdExit
	cmdPlay
	cmdStop
	cmdPause
	cmdSeek
	cmdQueue
	cmdCancel
	cmdRefresh
	cmdUpdateAudio
	cmdCloseAudio
)

// ErrNotPlaying is returned by Seek while stopped.
var ErrNotPlaying = errors.New("player: not playing")

// Status is the read-only snapshot exposed to clients.
type Status struct {
	State        State
	Elapsed      time.Duration
	Total        time.Duration
	BitRate      int
	Format       phonod.AudioFormat
	CrossFade    time.Duration
	MixRampDb    float64
	MixRampDelay time.Duration
	ErrorKind    phonod.ErrorKind
	Error        string
	CurrentSong  string
	NextSong     string
}

// Options tunes the control at construction.
type Options struct {
	// BufferedBeforePlay is the number of chunks prebuffered before the
	// outputs start.
	BufferedBeforePlay int
	// PipeThreshold bounds the decoder pipe; defaults to half the pool.
	PipeThreshold int
	// CrossFade is the initial transition tuning.
	CrossFade CrossFadeSettings
}

// Control is the serialized command channel between clients and the player
// worker. Every public command takes the lock, stores the request, signals
// the worker and waits for completion; errors from the worker stay
// latched in the status snapshot until ClearError; reading does not clear them.
type Control struct {
	mu sync.Mutex
	// cond wakes the worker: a command was posted, a chunk was produced
	// or an output consumed one.
	cond *sync.Cond
	// clientCond wakes command senders when the slot was consumed.
	clientCond *sync.Cond

	listener Listener
	outputs  *output.Group
	pool     *buffer.Pool

	bufferedBeforePlay int
	pipeThreshold      int
	crossFade          CrossFadeSettings

	command command
	state   State

	errKind phonod.ErrorKind
	err     error

	// command arguments
	playSong  *phonod.Song
	queueSong *phonod.Song
	seekTime  time.Duration
	pauseFlag *bool
	seekErr   error

	// status maintained by the worker
	elapsed     time.Duration
	total       time.Duration
	bitRate     int
	format      phonod.AudioFormat
	currentSong *phonod.Song
	nextSong    *phonod.Song

	done chan struct{}
	log  *logrus.Logger
}

// NewControl builds the control and starts the long-lived player worker.
func NewControl(pool *buffer.Pool, outputs *output.Group, listener Listener, opts Options) *Control {
	if listener == nil {
		listener = NullListener{}
	}
	if opts.BufferedBeforePlay <= 0 {
		opts.BufferedBeforePlay = 32
	}
	if opts.PipeThreshold <= 0 {
		opts.PipeThreshold = pool.Capacity() / 2
	}
	if opts.BufferedBeforePlay > opts.PipeThreshold {
		opts.BufferedBeforePlay = opts.PipeThreshold
	}

	pc := &Control{
		listener:           listener,
		outputs:            outputs,
		pool:               pool,
		bufferedBeforePlay: opts.BufferedBeforePlay,
		pipeThreshold:      opts.PipeThreshold,
		crossFade:          opts.CrossFade,
		state:              StateStop,
		done:               make(chan struct{}),
		log:                log.GetLogger(),
	}
	pc.cond = sync.NewCond(&pc.mu)
	pc.clientCond = sync.NewCond(&pc.mu)
	outputs.SetNotify(pc.Signal)
	go pc.run()
	return pc
}

// Signal wakes the worker; the decoder and the outputs use it as their
// progress notification.
func (pc *Control) Signal() {
	pc.mu.Lock()
	pc.cond.Broadcast()
	pc.mu.Unlock()
}

// synchronousCommand posts one command and waits for the worker to consume
// it. The lock must be held.
func (pc *Control) synchronousCommand(cmd command) {
	for pc.command != cmdNone {
		pc.clientCond.Wait()
	}
	pc.command = cmd
	pc.cond.Broadcast()
	for pc.command != cmdNone {
		pc.clientCond.Wait()
	}
}

// commandFinished consumes the slot; the worker calls it with the lock
// held.
func (pc *Control) commandFinished() {
	pc.command = cmdNone
	pc.clientCond.Broadcast()
}

// Play starts playing a song, replacing whatever plays now.
func (pc *Control) Play(song *phonod.Song) {
	pc.mu.Lock()
	pc.playSong = song
	pc.seekTime = 0
	pc.synchronousCommand(cmdPlay)
	pc.mu.Unlock()
	pc.listener.OnIdle(IdlePlayer)
}

// Queue arms the next song for a gapless transition.
func (pc *Control) Queue(song *phonod.Song) {
	pc.mu.Lock()
	pc.queueSong = song
	pc.synchronousCommand(cmdQueue)
	pc.mu.Unlock()
}

// Cancel disarms the queued song; if it is already being pre-decoded the
// pre-decode is abandoned.
func (pc *Control) Cancel() {
	pc.mu.Lock()
	pc.synchronousCommand(cmdCancel)
	pc.mu.Unlock()
}

// Stop ends playback.
func (pc *Control) Stop() {
	pc.mu.Lock()
	pc.synchronousCommand(cmdStop)
	pc.mu.Unlock()
	pc.listener.OnIdle(IdlePlayer)
}

// Pause toggles pause while playing.
func (pc *Control) Pause() {
	pc.mu.Lock()
	pc.pauseFlag = nil
	pc.synchronousCommand(cmdPause)
	pc.mu.Unlock()
	pc.listener.OnIdle(IdlePlayer)
}

// SetPause forces the pause state while playing.
func (pc *Control) SetPause(paused bool) {
	pc.mu.Lock()
	pc.pauseFlag = &paused
	pc.synchronousCommand(cmdPause)
	pc.mu.Unlock()
	pc.listener.OnIdle(IdlePlayer)
}

// Seek repositions the current song. It is synchronous: when it returns,
// stale chunks are gone and the next audible sample is at t.
func (pc *Control) Seek(t time.Duration) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.state == StateStop {
		return ErrNotPlaying
	}
	pc.seekTime = t
	pc.seekErr = nil
	pc.synchronousCommand(cmdSeek)
	return pc.seekErr
}

// Refresh asks the worker to publish a fresh snapshot and returns it.
func (pc *Control) Refresh() Status {
	pc.mu.Lock()
	pc.synchronousCommand(cmdRefresh)
	st := pc.statusLocked()
	pc.mu.Unlock()
	return st
}

// Status returns the last published snapshot without waking the worker.
func (pc *Control) Status() Status {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.statusLocked()
}

func (pc *Control) statusLocked() Status {
	st := Status{
		State:        pc.state,
		Elapsed:      pc.elapsed,
		Total:        pc.total,
		BitRate:      pc.bitRate,
		Format:       pc.format,
		CrossFade:    pc.crossFade.Duration,
		MixRampDb:    pc.crossFade.MixRampDb,
		MixRampDelay: pc.crossFade.MixRampDelay,
		ErrorKind:    pc.errKind,
	}
	if pc.err != nil {
		st.Error = pc.err.Error()
	}
	if pc.currentSong != nil {
		st.CurrentSong = pc.currentSong.ID
	}
	if pc.nextSong != nil {
		st.NextSong = pc.nextSong.ID
	}
	return st
}

// ClearError drops the latched error.
func (pc *Control) ClearError() {
	pc.mu.Lock()
	pc.err = nil
	pc.errKind = phonod.ErrorNone
	pc.mu.Unlock()
}

// UpdateAudio commits changed output enable flags to the output workers.
func (pc *Control) UpdateAudio() {
	pc.mu.Lock()
	pc.synchronousCommand(cmdUpdateAudio)
	pc.mu.Unlock()
}

// CloseAudio closes all outputs; only meaningful while stopped.
func (pc *Control) CloseAudio() {
	pc.mu.Lock()
	pc.synchronousCommand(cmdCloseAudio)
	pc.mu.Unlock()
}

// Exit stops playback, terminates the worker and joins it.
func (pc *Control) Exit() {
	pc.mu.Lock()
	pc.synchronousCommand(cmdExit)
	pc.mu.Unlock()
	<-pc.done
}

// SetCrossFade changes the fade duration.
func (pc *Control) SetCrossFade(d time.Duration) {
	pc.mu.Lock()
	if d < 0 {
		d = 0
	}
	pc.crossFade.Duration = d
	pc.mu.Unlock()
	pc.listener.OnIdle(IdleOptions)
}

// SetMixRamp changes the mixramp tuning.
func (pc *Control) SetMixRamp(db float64, delay time.Duration) {
	pc.mu.Lock()
	pc.crossFade.MixRampDb = db
	pc.crossFade.MixRampDelay = delay
	pc.mu.Unlock()
	pc.listener.OnIdle(IdleOptions)
}

// Volume reads the aggregated output volume.
func (pc *Control) Volume() int {
	return pc.outputs.Volume()
}

// SetVolume fans the volume out to the outputs.
func (pc *Control) SetVolume(v int) error {
	if err := pc.outputs.SetVolume(v); err != nil {
		return err
	}
	pc.listener.OnIdle(IdleMixer)
	return nil
}

// setError latches a failure for the next status reader; the lock must be
// held.
func (pc *Control) setErrorLocked(kind phonod.ErrorKind, err error) {
	if kind == phonod.ErrorCanceled {
		// cancellation unwinds internal state only
		return
	}
	pc.errKind = kind
	pc.err = err
}

// helper used by the worker to run group operations unlocked.
func (pc *Control) unlocked(fn func()) {
	pc.mu.Unlock()
	fn()
	pc.mu.Lock()
}
