package player

import (
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/decoder"
	"github.com/pipelined/phonod/pcm"
	"github.com/pipelined/phonod/pipe"
)

// outputQueueChunks bounds how far the player runs ahead of the outputs;
// beyond it the worker waits for a release notification.
const outputQueueChunks = 16

// player is the worker-side state behind a Control: the transport state
// machine, the two pipes and the cross-fade bookkeeping. All methods run
// on the worker goroutine with the control lock held; they release it
// around blocking calls.
type player struct {
	pc *Control
	dc *decoder.Control

	// pipe carries the current song's chunks.
	pipe *pipe.Pipe
	// nextPipe carries the pre-decoded next song during a transition.
	nextPipe *pipe.Pipe

	song   *phonod.Song
	queued *phonod.Song

	playing         bool
	paused          bool
	buffering       bool
	decoderStarting bool
	nextDecoding    bool
	underrun        bool

	format phonod.AudioFormat

	// xfadeChunks is the fade window; -1 means not computed yet.
	xfadeChunks int
	// xfadePos counts fade chunks already emitted.
	xfadePos int
	// xfadeCollapsed marks a mixramp window that collapsed to zero; the
	// configured abort policy applies at the border.
	xfadeCollapsed bool
}

// run is the player worker goroutine behind a Control.
func (pc *Control) run() {
	defer close(pc.done)

	p := &player{
		pc:          pc,
		dc:          decoder.NewControl(pc.pool, pc.pipeThreshold),
		xfadeChunks: -1,
	}
	p.dc.SetNotify(pc.Signal)

	pc.mu.Lock()
	for {
		switch pc.command {
		case cmdExit:
			p.stop()
			pc.commandFinished()
			pc.mu.Unlock()
			return

		case cmdPlay:
			song := pc.playSong
			pc.playSong = nil
			p.stop()
			p.start(song, pc.seekTime)
			pc.commandFinished()

		case cmdStop:
			p.stop()
			pc.commandFinished()

		case cmdPause:
			p.processPause()
			pc.commandFinished()

		case cmdSeek:
			p.seek(pc.seekTime)
			pc.commandFinished()

		case cmdQueue:
			p.queued = pc.queueSong
			pc.queueSong = nil
			pc.nextSong = p.queued
			pc.commandFinished()

		case cmdCancel:
			if p.nextDecoding {
				p.stopNextDecode()
			}
			p.queued = nil
			pc.nextSong = nil
			pc.commandFinished()

		case cmdRefresh:
			// status fields are maintained continuously; the command
			// only serializes the read against the worker
			pc.commandFinished()

		case cmdUpdateAudio:
			format := p.format
			pc.unlocked(func() {
				pc.outputs.EnableDisable()
				pc.outputs.Update(format)
			})
			pc.commandFinished()

		case cmdCloseAudio:
			if !p.playing {
				pc.unlocked(pc.outputs.Close)
			}
			pc.commandFinished()

		case cmdNone:
			if p.playing && !p.paused {
				if !p.step() {
					pc.cond.Wait()
				}
			} else {
				pc.cond.Wait()
			}
		}
	}
}

// start spawns the decoder for a song and enters the buffering phase.
func (p *player) start(song *phonod.Song, at time.Duration) {
	pc := p.pc
	p.pipe = pipe.New()
	p.song = song
	p.playing = true
	p.paused = false
	p.buffering = true
	p.decoderStarting = true
	p.underrun = false
	p.xfadeChunks = -1
	p.xfadePos = 0
	p.xfadeCollapsed = false

	pc.currentSong = song
	pc.state = StatePlay
	pc.elapsed = at
	pc.bitRate = 0
	pc.total = song.Duration

	dc, pp := p.dc, p.pipe
	pc.unlocked(func() { dc.Start(song, at, pp) })
}

// stop tears playback down: decoder joined, pipes cleared, outputs
// stopped. Chunks in flight return to the pool.
func (p *player) stop() {
	pc := p.pc
	pc.unlocked(p.dc.Stop)
	if p.nextPipe != nil {
		p.nextPipe.Clear(pc.pool)
		p.nextPipe = nil
	}
	if p.pipe != nil {
		p.pipe.Clear(pc.pool)
		p.pipe = nil
	}
	if p.playing {
		pc.unlocked(func() {
			pc.outputs.Cancel()
			pc.outputs.Stop()
		})
	}
	p.playing = false
	p.paused = false
	p.buffering = false
	p.decoderStarting = false
	p.nextDecoding = false
	p.underrun = false
	p.song = nil
	pc.currentSong = nil
	pc.state = StateStop
	pc.bitRate = 0
}

// processPause toggles or forces pause while playing.
func (p *player) processPause() {
	pc := p.pc
	if !p.playing {
		return
	}
	target := !p.paused
	if pc.pauseFlag != nil {
		target = *pc.pauseFlag
		pc.pauseFlag = nil
	}
	if target == p.paused {
		return
	}
	p.paused = target
	if p.paused {
		pc.state = StatePause
		pc.unlocked(pc.outputs.Pause)
		return
	}
	pc.state = StatePlay
	format := p.format
	var err error
	pc.unlocked(func() { err = pc.outputs.Open(format) })
	if err != nil {
		pc.setErrorLocked(phonod.ErrorOutput, err)
		p.stop()
	}
}

// seek implements the synchronous seek sub-protocol: abandon a pre-decode,
// reposition the decoder (restarting it when it cannot seek), cancel the
// outputs and rebase elapsed time.
func (p *player) seek(t time.Duration) {
	pc := p.pc
	if !p.playing || p.song == nil {
		pc.seekErr = ErrNotPlaying
		return
	}

	if p.nextDecoding {
		p.stopNextDecode()
	}

	restart := false
	if p.dc.State() == decoder.StateDecode || p.dc.State() == decoder.StateStart {
		var err error
		pc.unlocked(func() { err = p.dc.Seek(t) })
		if err != nil {
			restart = true
		}
	} else {
		restart = true
	}

	if restart {
		pc.unlocked(p.dc.Stop)
		p.pipe.Clear(pc.pool)
		p.pipe = pipe.New()
		song, at, pp := p.song, t, p.pipe
		pc.unlocked(func() { p.dc.Start(song, at, pp) })
		p.decoderStarting = true
	}

	pc.unlocked(pc.outputs.Cancel)
	p.buffering = true
	pc.elapsed = t
	if p.paused {
		pc.state = StatePause
	}
}

// stopNextDecode abandons the pre-decode of the queued song; the song
// itself stays armed.
func (p *player) stopNextDecode() {
	pc := p.pc
	pc.unlocked(p.dc.Stop)
	if p.nextPipe != nil {
		p.nextPipe.Clear(pc.pool)
		p.nextPipe = nil
	}
	p.nextDecoding = false
	p.xfadeChunks = -1
	p.xfadePos = 0
	p.xfadeCollapsed = false
}

// step performs one pipeline iteration and reports whether progress was
// made; no progress sends the worker to sleep until the next signal.
func (p *player) step() bool {
	pc := p.pc

	if p.decoderStarting {
		return p.checkStartup()
	}

	// a dead current decoder latches its error and advances
	if !p.nextDecoding && p.dc.State() == decoder.StateError {
		kind, err := p.dc.Error()
		pc.setErrorLocked(kind, err)
		if p.queued != nil {
			song := p.queued
			p.queued = nil
			pc.nextSong = nil
			p.softStop()
			p.start(song, 0)
			return true
		}
		p.stop()
		return true
	}

	if p.buffering {
		if p.pipe.Size() < pc.bufferedBeforePlay && p.dc.State() == decoder.StateDecode {
			return false
		}
		p.buffering = false
		return true
	}

	// the current song is fully decoded; pre-decode the queued one
	if !p.nextDecoding && p.queued != nil && p.dc.State() == decoder.StateStop {
		p.nextPipe = pipe.New()
		p.nextDecoding = true
		next, np := p.queued, p.nextPipe
		pc.unlocked(func() { p.dc.Start(next, 0, np) })
		return true
	}

	// fade window once the next song's format is known
	if p.nextDecoding && p.xfadeChunks < 0 {
		if st := p.dc.State(); st == decoder.StateDecode || st == decoder.StateStop {
			nextFormat, _, _ := p.dc.ReadyInfo()
			if nextFormat.Valid() {
				p.xfadeChunks, p.xfadeCollapsed = crossFadeChunks(pc.crossFade,
					p.format, nextFormat,
					songMixRamp(p.song), songMixRamp(p.queued), pc.pool.Capacity())
				p.xfadePos = 0
			}
		}
	}

	if pc.outputs.Queued() >= outputQueueChunks {
		return false
	}

	c := p.pipe.Shift()
	if c == nil {
		return p.pipeDrained()
	}
	p.dc.Signal()

	// collapsed mixramp window with the cut policy: the outgoing song's
	// final chunk is dropped instead of faded
	if p.nextDecoding && p.xfadeCollapsed &&
		pc.crossFade.Abort == config.MixRampAbortCut && p.pipe.Empty() {
		pc.pool.Release(c)
		return true
	}

	// cross-fade: pair the tail of the current song with the head of the
	// next one
	if p.nextDecoding && p.xfadeChunks > 0 && p.pipe.Size() < p.xfadeChunks {
		if other := p.nextPipe.Shift(); other != nil {
			ratio := mixRatio(p.xfadePos, p.xfadeChunks)
			p.xfadePos++
			if err := pcm.Mix(c.Bytes(), other.Bytes(), p.format.Format, ratio); err != nil {
				pc.log.WithError(err).Warn("player: cross-fade mix failed")
			}
			pc.pool.Release(other)
		}
	}

	return p.playChunk(c)
}

// checkStartup waits for the decoder to publish the stream format, then
// opens the outputs.
func (p *player) checkStartup() bool {
	pc := p.pc
	switch p.dc.State() {
	case decoder.StateStart:
		return false
	case decoder.StateError:
		kind, err := p.dc.Error()
		pc.setErrorLocked(kind, err)
		if p.queued != nil {
			song := p.queued
			p.queued = nil
			pc.nextSong = nil
			p.softStop()
			p.start(song, 0)
			return true
		}
		p.stop()
		return true
	}

	format, _, total := p.dc.ReadyInfo()
	if !format.Valid() {
		// the song ended before publishing anything playable
		p.stop()
		return true
	}
	p.format = format
	pc.format = format
	if total > 0 {
		pc.total = total
	}
	p.decoderStarting = false

	var err error
	pc.unlocked(func() { err = pc.outputs.Open(format) })
	if err != nil {
		pc.setErrorLocked(phonod.ErrorOutput, err)
		p.stop()
	}
	return true
}

// pipeDrained handles an empty current pipe: underrun, song border or end
// of playback.
func (p *player) pipeDrained() bool {
	pc := p.pc

	if p.nextDecoding {
		switch p.dc.State() {
		case decoder.StateStart:
			// the next song is not ready yet
			return false
		case decoder.StateError:
			kind, err := p.dc.Error()
			pc.setErrorLocked(kind, err)
			p.queued = nil
			pc.nextSong = nil
			p.stopNextDecode()
			p.finishPlayback()
			return true
		default:
			return p.songBorder()
		}
	}

	if p.dc.State() == decoder.StateDecode {
		// underrun: the decoder is behind; idle the outputs until the
		// pipe refills instead of letting the devices xrun
		if !p.underrun && pc.outputs.Queued() == 0 {
			p.underrun = true
			pc.unlocked(pc.outputs.Pause)
		}
		return false
	}

	if p.queued != nil {
		// pre-decode starts on the next iteration
		return true
	}

	p.finishPlayback()
	return true
}

// finishPlayback ends playback at the natural end of the last song: the
// outputs drain instead of dropping their buffers.
func (p *player) finishPlayback() {
	pc := p.pc
	pc.unlocked(func() {
		pc.outputs.Drain()
		pc.outputs.Stop()
	})
	pc.unlocked(p.dc.Stop)
	if p.pipe != nil {
		p.pipe.Clear(pc.pool)
		p.pipe = nil
	}
	p.playing = false
	p.paused = false
	p.song = nil
	pc.currentSong = nil
	pc.state = StateStop
	pc.unlocked(func() { pc.listener.OnIdle(IdlePlayer) })
}

// songBorder promotes the pre-decoded next song to current with no gap.
func (p *player) songBorder() bool {
	pc := p.pc

	p.pipe = p.nextPipe
	p.nextPipe = nil
	p.nextDecoding = false
	p.song = p.queued
	p.queued = nil
	p.xfadeChunks = -1
	p.xfadePos = 0
	p.xfadeCollapsed = false

	pc.currentSong = p.song
	pc.nextSong = nil
	pc.elapsed = 0
	pc.bitRate = 0

	format, _, total := p.dc.ReadyInfo()
	pc.total = total
	if format.Valid() && format != p.format {
		p.format = format
		pc.format = format
		var err error
		pc.unlocked(func() { err = pc.outputs.Open(format) })
		if err != nil {
			pc.setErrorLocked(phonod.ErrorOutput, err)
			p.stop()
			return true
		}
	}

	pc.unlocked(func() { pc.listener.OnIdle(IdlePlayer) })
	return true
}

// playChunk hands one chunk to the output group and updates the status
// snapshot; tag chunks fire the player idle event at the chunk boundary.
func (p *player) playChunk(c *buffer.Chunk) bool {
	pc := p.pc

	if p.underrun {
		// the pipe refilled; wake the idled outputs back up
		p.underrun = false
		format := p.format
		var err error
		pc.unlocked(func() { err = pc.outputs.Open(format) })
		if err != nil {
			pc.setErrorLocked(phonod.ErrorOutput, err)
			pc.pool.Release(c)
			p.stop()
			return true
		}
	}

	if c.Time != buffer.TimeUnknown && c.Time > pc.elapsed {
		pc.elapsed = c.Time
	}
	if c.BitRate > 0 && c.BitRate != pc.bitRate {
		pc.bitRate = c.BitRate
		c.BitRateChanged = true
	}
	// tag and bit-rate changes reach clients aligned with the chunk they
	// annotate
	notify := c.Tag != nil || c.BitRateChanged

	var err error
	pc.unlocked(func() {
		err = pc.outputs.Play(c)
		if notify {
			pc.listener.OnIdle(IdlePlayer)
		}
	})
	if err != nil {
		pc.setErrorLocked(phonod.ErrorOutput, err)
		p.stop()
	}
	return true
}

// songMixRamp returns a song's mixramp thresholds, unset when untagged.
func songMixRamp(s *phonod.Song) phonod.MixRamp {
	if s == nil || s.Tag == nil {
		return phonod.NewMixRamp()
	}
	return s.Tag.MixRamp
}

// softStop clears pipeline state between songs without touching the
// outputs; used when the transport continues immediately.
func (p *player) softStop() {
	pc := p.pc
	pc.unlocked(p.dc.Stop)
	if p.nextPipe != nil {
		p.nextPipe.Clear(pc.pool)
		p.nextPipe = nil
	}
	if p.pipe != nil {
		p.pipe.Clear(pc.pool)
		p.pipe = nil
	}
	p.nextDecoding = false
}
