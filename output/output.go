package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/log"
	"github.com/pipelined/phonod/mixer"
	"github.com/pipelined/phonod/pcm"
	"github.com/pipelined/phonod/pipe"
)

// reopenAfter is how long a failed output is skipped before the next
// transport change may try it again.
const reopenAfter = 10 * time.Second

// playRetries bounds Recover attempts before the output fails.
const playRetries = 3

// Command is the request slot of one output worker.
type Command uint8

const (
	// CommandNone means nothing pending.
	CommandNone Command = iota
	// CommandEnable lets the driver allocate shared resources.
	CommandEnable
	// CommandDisable undoes enable (closing first if open).
	CommandDisable
	// CommandOpen opens the device, or unpauses a paused one.
	CommandOpen
	// CommandClose closes the device.
	CommandClose
	// CommandPause moves an open device to its idle mode.
	CommandPause
	// CommandDrain plays the queued chunks, then waits for the device
	// buffer to play out.
	CommandDrain
	// CommandCancel drops queued chunks and the device buffer.
	CommandCancel
	// CommandKill terminates the worker goroutine.
	CommandKill
)

// State is the client-visible output state.
type State uint8

const (
	// StateClosed means the device is not open.
	StateClosed State = iota
	// StateOpen means chunks are being played.
	StateOpen
	// StatePaused means the device idles but stays open.
	StatePaused
	// StateFailed means open or play failed; retried after a delay.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StatePaused:
		return "paused"
	case StateFailed:
		return "failed"
	default:
		return "closed"
	}
}

// Output is one configured sink: a driver, a mixer, a filter chain and a
// dedicated worker goroutine.
type Output struct {
	// Name identifies the output to clients and logs.
	Name string

	cfg    config.Output
	driver Driver
	mixer  mixer.Mixer

	// configuredFormat pins the device format when set.
	configuredFormat phonod.AudioFormat
	replayGainCfg    phonod.ReplayGainConfig

	mu sync.Mutex
	// cond wakes the worker: command posted or chunk queued.
	cond *sync.Cond
	// clientCond wakes command senders when the slot was consumed.
	clientCond *sync.Cond

	command       Command
	enabled       bool
	reallyEnabled bool
	open          bool
	pause         bool
	failedAt      time.Time
	workerRunning bool

	// inFormat is the pipeline format the output was opened with.
	inFormat phonod.AudioFormat
	// outFormat is what the driver negotiated.
	outFormat phonod.AudioFormat

	// queue holds refcounted chunks fanned out by the group.
	queue *pipe.Pipe
	// release returns a consumed chunk to the group.
	release func(*buffer.Chunk)

	source source
	export pcm.Export

	// now is the monotonic clock, replaceable by tests.
	now func() time.Time

	log *logrus.Entry
}

// New builds an output from its config entry. The worker is started by the
// first Enable.
func New(cfg config.Output, globalFormat phonod.AudioFormat, rg phonod.ReplayGainConfig) (*Output, error) {
	driver, err := NewDriver(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithDriver(cfg, driver, globalFormat, rg)
}

// NewWithDriver builds an output around an existing driver; tests inject
// fakes through it.
func NewWithDriver(cfg config.Output, driver Driver, globalFormat phonod.AudioFormat, rg phonod.ReplayGainConfig) (*Output, error) {
	o := &Output{
		Name:          cfg.Name,
		cfg:           cfg,
		driver:        driver,
		enabled:       true,
		replayGainCfg: rg,
		queue:         pipe.New(),
		now:           time.Now,
		log:           log.GetLogger().WithField("output", cfg.Name),
	}
	o.cond = sync.NewCond(&o.mu)
	o.clientCond = sync.NewCond(&o.mu)

	o.configuredFormat = globalFormat
	if cfg.Format != "" {
		af, err := phonod.ParseAudioFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		o.configuredFormat = af
	}

	switch cfg.MixerType {
	case "", "none":
		o.mixer = nil
	case "software":
		o.mixer = mixer.NewSoftware()
	case "null":
		o.mixer = mixer.NewNull()
	default:
		return nil, fmt.Errorf("output: unknown mixer_type %q", cfg.MixerType)
	}
	return o, nil
}

// SetClock replaces the monotonic clock behind the failure-retry window;
// tests use it to elapse the reopen delay instantly.
func (o *Output) SetClock(now func() time.Time) {
	o.mu.Lock()
	o.now = now
	o.mu.Unlock()
}

// Mixer returns the output's mixer, nil when volume is uncontrolled.
func (o *Output) Mixer() mixer.Mixer { return o.mixer }

// State returns the client-visible state.
func (o *Output) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stateLocked()
}

func (o *Output) stateLocked() State {
	switch {
	case !o.failedAt.IsZero():
		return StateFailed
	case o.open && o.pause:
		return StatePaused
	case o.open:
		return StateOpen
	default:
		return StateClosed
	}
}

// Enabled reports the user-facing enable toggle.
func (o *Output) Enabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.enabled
}

// SetEnabled flips the toggle; EnableDisable on the group commits it.
func (o *Output) SetEnabled(v bool) {
	o.mu.Lock()
	o.enabled = v
	o.mu.Unlock()
}

// exportParams derives the export configuration from the output config.
func (o *Output) exportParams() pcm.ExportParams {
	return pcm.ExportParams{
		DoP: o.cfg.DoP,
	}
}

// command posting -------------------------------------------------------

// lockCommand posts a command and waits for the worker to consume it. The
// worker is started lazily on the first command.
func (o *Output) lockCommand(cmd Command) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startWorkerLocked()
	for o.command != CommandNone {
		o.clientCond.Wait()
	}
	o.command = cmd
	o.cond.Broadcast()
	for o.command != CommandNone {
		o.clientCond.Wait()
	}
}

func (o *Output) startWorkerLocked() {
	if o.workerRunning {
		return
	}
	o.workerRunning = true
	go o.work()
}

// commandFinished consumes the slot; the worker calls it with the lock
// held.
func (o *Output) commandFinished() {
	o.command = CommandNone
	o.clientCond.Broadcast()
}

// enqueue appends a refcounted chunk to the worker's queue.
func (o *Output) enqueue(c *buffer.Chunk) {
	o.mu.Lock()
	o.queue.Push(c)
	o.cond.Broadcast()
	o.mu.Unlock()
}

// Queued returns the worker's backlog in chunks.
func (o *Output) Queued() int {
	return o.queue.Size()
}
