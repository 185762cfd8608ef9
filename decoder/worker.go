package decoder

import (
	"fmt"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/input"
)

// run is the decoder worker goroutine: open the stream, pick a plugin, let
// it decode through the bridge, and publish the outcome.
func (dc *Control) run() {
	dc.mu.Lock()
	song := dc.song
	start := dc.startTime
	done := dc.done
	dc.mu.Unlock()
	defer close(done)

	logger := dc.log.WithField("song", song.URI)
	logger.Debug("decoder: starting")

	stream, err := input.Open(song.URI)
	if err != nil {
		logger.WithError(err).Error("decoder: open failed")
		dc.setError(phonod.ErrorInput, err)
		return
	}
	defer stream.Close()

	plugin := ForStream(stream)
	if plugin == nil {
		dc.setError(phonod.ErrorDecoder,
			fmt.Errorf("decoder: no plugin for %q (%s)", song.URI, stream.MIME()))
		return
	}
	logger = logger.WithField("plugin", plugin.Name)

	b := newBridge(dc, song)

	dc.mu.Lock()
	// the stream is open, consume the start command; a non-zero start
	// position becomes the initial seek the plugin honors before its
	// first decode loop. A stop that arrived meanwhile stays pending for
	// the plugin's first command poll.
	if dc.command == CommandStart {
		dc.command = CommandNone
		if start > 0 {
			dc.command = CommandSeek
			dc.seekTime = start
		}
	}
	dc.clientCond.Broadcast()
	dc.mu.Unlock()

	err = plugin.Decode(b, stream)
	b.flush()

	dc.mu.Lock()
	stopped := dc.command == CommandStop
	dc.mu.Unlock()

	if err != nil && !stopped {
		logger.WithError(err).Error("decoder: decode failed")
		dc.setError(phonod.ErrorDecoder, err)
		return
	}

	logger.Debug("decoder: finished")
	dc.mu.Lock()
	dc.state = StateStop
	dc.command = CommandNone
	dc.clientCond.Broadcast()
	dc.mu.Unlock()
	b.notifyPlayer()
}
