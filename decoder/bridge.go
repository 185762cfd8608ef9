package decoder

import (
	"sync/atomic"
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
)

// replayGainSerials hands out process-wide snapshot serials; zero stays
// reserved for "no snapshot".
var replayGainSerials atomic.Uint32

// bridge is the Client implementation behind a worker: it owns the chunk
// being filled, stamps time, carries tag and replay gain metadata, and
// parks on backpressure.
type bridge struct {
	dc   *Control
	song *phonod.Song

	format phonod.AudioFormat
	ready  bool

	chunk *buffer.Chunk
	// time is the song position of the next submitted byte.
	time time.Duration

	pendingTag *phonod.Tag
	rg         phonod.ReplayGainInfo
	rgSerial   uint32
}

func newBridge(dc *Control, song *phonod.Song) *bridge {
	b := &bridge{
		dc:   dc,
		song: song,
		rg:   phonod.UndefinedReplayGainInfo(),
	}
	if song.Tag != nil {
		b.pendingTag = song.Tag
	}
	if song.ReplayGain != nil {
		b.rg = *song.ReplayGain
		b.rgSerial = replayGainSerials.Add(1)
	}
	return b
}

// Ready publishes the stream properties and moves the control to decoding.
func (b *bridge) Ready(format phonod.AudioFormat, seekable bool, total time.Duration) error {
	dc := b.dc
	b.format = format
	b.ready = true

	dc.mu.Lock()
	dc.format = format
	dc.seekable = seekable
	dc.totalTime = total
	if total == 0 && b.song.Duration > 0 {
		dc.totalTime = b.song.Duration
	}
	dc.state = StateDecode
	dc.clientCond.Broadcast()
	dc.mu.Unlock()
	b.notifyPlayer()
	return nil
}

// GetCommand returns the pending command without consuming it.
func (b *bridge) GetCommand() Command {
	dc := b.dc
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.command
}

// SeekTime returns the pending seek target.
func (b *bridge) SeekTime() time.Duration {
	dc := b.dc
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.seekTime
}

// CommandFinished consumes the pending command. Consuming a seek drops the
// partial chunk and rebases the time stamp.
func (b *bridge) CommandFinished() {
	dc := b.dc
	dc.mu.Lock()
	cmd := dc.command
	dc.command = CommandNone
	if cmd == CommandSeek {
		b.time = dc.seekTime
		if b.chunk != nil {
			dc.pool.Release(b.chunk)
			b.chunk = nil
		}
		// every chunk in the pipe predates the seek; dropping them here,
		// on the producer side, means consumers only ever observe
		// post-seek chunks once Seek returned
		dc.pipe.Clear(dc.pool)
	}
	dc.clientCond.Broadcast()
	dc.mu.Unlock()
}

// SeekError consumes a pending seek the plugin could not perform.
func (b *bridge) SeekError() {
	dc := b.dc
	dc.mu.Lock()
	if dc.command == CommandSeek {
		dc.seekErr = true
		dc.command = CommandNone
		dc.clientCond.Broadcast()
	}
	dc.mu.Unlock()
}

// SubmitData copies decoded PCM into chunks and pushes them as they fill.
// It returns the pending command so the plugin can preempt; the data
// submitted so far stays in the pipeline.
func (b *bridge) SubmitData(data []byte, bitRate int) Command {
	if !b.ready {
		panic("decoder: SubmitData before Ready")
	}
	for len(data) > 0 {
		if b.chunk == nil {
			c, cmd := b.allocate()
			if cmd != CommandNone {
				return cmd
			}
			b.chunk = c
			b.decorate(c)
		}
		w := b.chunk.Write(b.format, b.time, bitRate)
		if w == nil {
			b.push()
			continue
		}
		n := copy(w, data)
		full := b.chunk.Expand(b.format, n)
		data = data[n:]
		b.time += b.format.SizeToTime(n)
		if full {
			b.push()
		}
	}
	return b.GetCommand()
}

// SubmitTag flushes the running chunk so the tag lands exactly on the next
// chunk boundary.
func (b *bridge) SubmitTag(tag *phonod.Tag) Command {
	b.flush()
	b.pendingTag = tag
	return b.GetCommand()
}

// SubmitReplayGain installs a new snapshot for the chunks that follow.
func (b *bridge) SubmitReplayGain(info *phonod.ReplayGainInfo) {
	if info == nil {
		b.rg = phonod.UndefinedReplayGainInfo()
		b.rgSerial = 0
		return
	}
	b.rg = *info
	b.rgSerial = replayGainSerials.Add(1)
}

// decorate stamps a fresh chunk with the pending tag and the replay gain
// snapshot.
func (b *bridge) decorate(c *buffer.Chunk) {
	if b.pendingTag != nil {
		c.Tag = b.pendingTag
		b.pendingTag = nil
	}
	c.ReplayGain = b.rg
	c.ReplayGainSerial = b.rgSerial
}

// allocate gets a chunk, parking while the pool is exhausted or the pipe
// is at its threshold. A pending command aborts the wait.
func (b *bridge) allocate() (*buffer.Chunk, Command) {
	dc := b.dc
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for {
		if dc.command != CommandNone {
			return nil, dc.command
		}
		if dc.pipe.Size() < dc.threshold {
			if c := dc.pool.Allocate(); c != nil {
				return c, CommandNone
			}
		}
		dc.cond.Wait()
	}
}

// push moves the running chunk into the pipe and wakes the player.
func (b *bridge) push() {
	c := b.chunk
	b.chunk = nil
	if c == nil {
		return
	}
	if c.Empty() {
		b.dc.pool.Release(c)
		return
	}
	b.dc.pipe.Push(c)
	b.notifyPlayer()
}

// flush pushes a partially filled chunk, e.g. at EOF or before a tag.
func (b *bridge) flush() {
	b.push()
}

func (b *bridge) notifyPlayer() {
	b.dc.mu.Lock()
	notify := b.dc.notify
	b.dc.mu.Unlock()
	if notify != nil {
		notify()
	}
}
