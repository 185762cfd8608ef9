package output

import (
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/mixer"
)

// work is the output worker goroutine. It waits for a command or a queued
// chunk; driver calls run with the mutex released so a blocked device
// never stalls command posting.
func (o *Output) work() {
	o.mu.Lock()
	for {
		switch o.command {
		case CommandKill:
			o.closeLocked(false)
			o.disableLocked()
			o.workerRunning = false
			o.commandFinished()
			o.mu.Unlock()
			return

		case CommandEnable:
			o.enableLocked()
			o.commandFinished()

		case CommandDisable:
			o.closeLocked(false)
			o.disableLocked()
			o.commandFinished()

		case CommandOpen:
			if o.open && o.pause {
				o.unpauseLocked()
			} else {
				o.openLocked()
			}
			o.commandFinished()

		case CommandClose:
			o.closeLocked(false)
			o.commandFinished()

		case CommandPause:
			if o.open {
				o.pauseLocked()
			}
			o.commandFinished()

		case CommandDrain:
			// queued chunks play out before the device buffer drains
			for o.open && !o.pause && o.queue.Peek() != nil {
				o.playLocked()
			}
			if o.open {
				o.mu.Unlock()
				if d, ok := o.driver.(Drainer); ok {
					if err := d.Drain(); err != nil {
						o.log.WithError(err).Warn("drain failed")
					}
				}
				o.mu.Lock()
			}
			o.commandFinished()

		case CommandCancel:
			o.cancelLocked()
			o.commandFinished()

		case CommandNone:
			if o.open && !o.pause && o.queue.Peek() != nil {
				o.playLocked()
				continue
			}
			o.cond.Wait()
		}
	}
}

// enableLocked lets the driver allocate shared resources.
func (o *Output) enableLocked() {
	if o.reallyEnabled {
		return
	}
	o.mu.Unlock()
	err := o.driver.Enable()
	o.mu.Lock()
	if err != nil {
		o.log.WithError(err).Error("enable failed")
		o.failedAt = o.now()
		return
	}
	o.reallyEnabled = true
}

func (o *Output) disableLocked() {
	if !o.reallyEnabled {
		return
	}
	o.reallyEnabled = false
	o.mu.Unlock()
	o.driver.Disable()
	o.mu.Lock()
}

// openLocked negotiates the device format and builds the filter chain and
// export; failures move the output to failed with the current time.
func (o *Output) openLocked() {
	if o.open && !o.pause {
		return
	}
	o.failedAt = time.Time{}
	o.enableLocked()
	if !o.reallyEnabled {
		return
	}

	in := o.inFormat
	if err := o.source.open(in, o.configuredFormat, o.replayGainCfg); err != nil {
		o.log.WithError(err).Error("open filter failed")
		o.failedAt = o.now()
		return
	}

	// the driver sees the rate and sample format the export will emit
	chainOut := o.source.outFormat()
	params := o.exportParams()
	want := chainOut
	want.SampleRate = params.CalcOutputSampleRate(want.SampleRate)
	if params.DoP && chainOut.Format == phonod.SampleFormatDSD {
		want.Format = phonod.SampleFormatS24P32
	}

	o.mu.Unlock()
	err := o.driver.Open(&want)
	o.mu.Lock()
	if err != nil {
		o.source.close()
		o.log.WithError(err).Error("open failed")
		o.failedAt = o.now()
		return
	}

	// the driver may have adjusted the format; rebuild the chain towards
	// what it really accepted
	if chainOut.Format != phonod.SampleFormatDSD {
		chainWant := want
		chainWant.SampleRate = params.CalcInputSampleRate(want.SampleRate)
		if chainWant != chainOut {
			o.source.close()
			if err := o.source.open(in, chainWant, o.replayGainCfg); err != nil {
				o.mu.Unlock()
				o.driver.Close()
				o.mu.Lock()
				o.log.WithError(err).Error("open filter failed")
				o.failedAt = o.now()
				return
			}
			chainOut = o.source.outFormat()
		}
	}

	o.export.Open(chainOut.Format, chainOut.Channels, params)
	o.outFormat = want
	o.open = true
	o.pause = false

	if m, ok := o.mixer.(*mixer.Software); ok {
		m.SetFilter(o.source.volume)
	}
	if o.mixer != nil {
		if err := o.mixer.Open(); err != nil {
			o.log.WithError(err).Warn("mixer open failed")
		}
	}

	o.log.WithField("format", want.String()).Debug("opened")
}

// closeLocked closes the device and tears down the chain; drain selects
// between letting the buffer play out and dropping it.
func (o *Output) closeLocked(drain bool) {
	if !o.open {
		return
	}
	o.open = false
	o.pause = false

	// drop whatever is still queued
	for c := o.queue.Shift(); c != nil; c = o.queue.Shift() {
		o.releaseChunk(c)
	}

	o.mu.Unlock()
	if drain {
		if d, ok := o.driver.(Drainer); ok {
			d.Drain()
		}
	} else {
		o.driver.Cancel()
	}
	o.driver.Close()
	o.mu.Lock()

	if m, ok := o.mixer.(*mixer.Software); ok {
		m.SetFilter(nil)
	}
	if o.mixer != nil {
		o.mixer.Close()
	}
	o.source.close()
	o.log.Debug("closed")
}

// pauseLocked idles the device; drivers without a pause mode get closed.
func (o *Output) pauseLocked() {
	p, ok := o.driver.(Pauser)
	if !ok {
		o.closeLocked(false)
		return
	}
	o.mu.Unlock()
	kept := p.Pause()
	o.mu.Lock()
	if !kept {
		o.closeLocked(false)
		return
	}
	o.pause = true
	o.log.Debug("paused")
}

func (o *Output) unpauseLocked() {
	o.pause = false
	if r, ok := o.driver.(Resumer); ok {
		o.mu.Unlock()
		r.Resume()
		o.mu.Lock()
	}
	o.log.Debug("resumed")
}

// cancelLocked drops queued chunks and the device buffer and resets filter
// state, so post-seek chunks start clean.
func (o *Output) cancelLocked() {
	for c := o.queue.Shift(); c != nil; c = o.queue.Shift() {
		o.releaseChunk(c)
	}
	o.source.reset()
	if o.open {
		o.mu.Unlock()
		o.driver.Cancel()
		o.mu.Lock()
	}
}

// playLocked plays the head chunk; called with the lock held, the lock is
// released around filtering and driver writes.
func (o *Output) playLocked() {
	c := o.queue.Shift()
	if c == nil {
		return
	}

	o.mu.Unlock()
	err := o.playChunk(c)
	o.mu.Lock()

	o.releaseChunk(c)
	if err != nil {
		o.log.WithError(err).Error("play failed")
		o.closeLocked(false)
		o.failedAt = o.now()
	}
}

// playChunk filters, exports and writes one chunk, honoring partial writes
// and the xrun recovery hook. Runs unlocked.
func (o *Output) playChunk(c *buffer.Chunk) error {
	if c.Tag != nil && o.cfg.SendTags() {
		if ts, ok := o.driver.(TagSender); ok {
			if err := ts.SendTag(c.Tag); err != nil {
				o.log.WithError(err).Warn("send tag failed")
			}
		}
	}
	if c.Empty() {
		return nil
	}

	data, err := o.source.filter(c)
	if err != nil {
		return err
	}
	data = o.export.Export(data)

	retries := playRetries
	for len(data) > 0 {
		// a posted command other than a drain takes priority over
		// finishing this chunk
		o.mu.Lock()
		interrupted := (o.command != CommandNone && o.command != CommandDrain) || !o.open
		o.mu.Unlock()
		if interrupted {
			return nil
		}

		if d, ok := o.driver.(Delayer); ok {
			if delay := d.Delay(); delay > 0 {
				time.Sleep(delay)
				continue
			}
		}

		n, err := o.driver.Play(data)
		if err != nil {
			r, ok := o.driver.(Recoverer)
			if !ok || retries == 0 {
				return err
			}
			retries--
			if rerr := r.Recover(err); rerr != nil {
				return rerr
			}
			continue
		}
		data = data[n:]
	}
	return nil
}

// releaseChunk drops this output's reference; the last holder returns the
// chunk to the pool through the group callback.
func (o *Output) releaseChunk(c *buffer.Chunk) {
	if o.release != nil {
		o.release(c)
	}
}
