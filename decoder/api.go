// Package decoder runs the producer half of the playback pipeline: a worker
// goroutine that owns the active input stream and a decoder plugin, decodes
// to PCM and pushes chunks into the decoder pipe. The player drives it
// through the Control and consumes the pipe.
package decoder

import (
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/input"
)

// Command is the pending request in the control's command slot. The worker
// polls it at least once per decoded block, so Stop and Seek preempt
// cooperatively.
type Command uint8

const (
	// CommandNone means keep decoding.
	CommandNone Command = iota
	// CommandStart asks the worker to decode the control's song.
	CommandStart
	// CommandStop terminates the worker.
	CommandStop
	// CommandSeek repositions to the control's seek time.
	CommandSeek
)

// State describes what the worker is doing.
type State uint8

const (
	// StateStop means no worker is running.
	StateStop State = iota
	// StateStart means the worker is opening the stream and plugin.
	StateStart
	// StateDecode means chunks are being produced.
	StateDecode
	// StateError means the worker died; the error slot holds the cause.
	StateError
)

// Client is the callback surface a plugin drives while decoding. The
// bridge behind it owns chunk allocation, time stamping and backpressure.
type Client interface {
	// Ready publishes the decoded stream's format, seekability and total
	// time. Must be called once before the first SubmitData.
	Ready(format phonod.AudioFormat, seekable bool, total time.Duration) error

	// GetCommand returns the pending command without consuming it.
	GetCommand() Command
	// CommandFinished consumes the pending command after the plugin
	// honored it (start acknowledged, seek done).
	CommandFinished()
	// SeekTime returns the target of the pending seek command.
	SeekTime() time.Duration
	// SeekError consumes a pending seek the plugin could not perform.
	SeekError()

	// SubmitData hands decoded PCM to the pipeline and returns the next
	// pending command. bitRate is the source bit rate in kbit/s.
	SubmitData(data []byte, bitRate int) Command
	// SubmitTag hands a mid-stream tag change to the pipeline.
	SubmitTag(tag *phonod.Tag) Command
	// SubmitReplayGain installs the replay gain snapshot for following
	// chunks.
	SubmitReplayGain(info *phonod.ReplayGainInfo)
}

// Plugin is one decoder: a name, the inputs it claims, and the decode
// entry point that drives a Client until EOF, error or command.
type Plugin struct {
	Name      string
	Suffixes  []string
	MIMETypes []string
	Decode    func(Client, input.Stream) error
}
