package buffer

import (
	"sync/atomic"
	"time"

	"github.com/pipelined/phonod"
)

// ChunkSize is the payload capacity of one chunk in bytes.
const ChunkSize = 4096

// IgnoreReplayGain is a magic replay gain serial carried by synthesized
// silence chunks so they do not disturb the replay gain filter state.
const IgnoreReplayGain = ^uint32(0)

// TimeUnknown marks a chunk without a position in the song timeline.
const TimeUnknown = time.Duration(-1)

// Chunk is one unit of PCM exchanged between pipeline stages. A chunk is
// owned by exactly one component at a time: pool, decoder, decoder pipe,
// player, output pipe, outputs (shared, refcounted), pool again.
type Chunk struct {
	// next links chunks inside a pipe or the pool free list.
	next *Chunk

	// Other is mixed into this chunk during a cross-fade.
	Other *Chunk
	// MixRatio is the cross-fade ratio: 1.0 plays 100% of this chunk,
	// 0.0 plays 100% of Other.
	MixRatio float32

	// Length is the number of payload bytes written so far.
	Length int
	// BitRate is the source bit rate in kbit/s at this position.
	BitRate int
	// Time is the position of the first frame within the song.
	Time time.Duration
	// Tag appears at song boundaries and annotates this chunk and the
	// following ones.
	Tag *phonod.Tag
	// BitRateChanged marks a bit rate jump against the previous chunk.
	BitRateChanged bool
	// Silence marks a chunk of synthesized silence. The player does not
	// produce such chunks; an underrun pauses the outputs instead.
	Silence bool

	// ReplayGain is valid while ReplayGainSerial is not zero.
	ReplayGain phonod.ReplayGainInfo
	// ReplayGainSerial changes whenever the snapshot changes; zero means
	// no snapshot, IgnoreReplayGain leaves the filter untouched.
	ReplayGainSerial uint32

	// Format is the audio format of the payload, set by the first Write.
	Format phonod.AudioFormat

	refs  int32
	owner *Pool
	freed bool

	data [ChunkSize]byte
}

// Next returns the chunk linked after this one. The link field is shared by
// the pool free list and the pipe chain; the current owner maintains it.
func (c *Chunk) Next() *Chunk { return c.next }

// SetNext links another chunk after this one.
func (c *Chunk) SetNext(n *Chunk) { c.next = n }

// Empty reports whether the chunk carries neither payload nor a tag.
func (c *Chunk) Empty() bool {
	return c.Length == 0 && c.Tag == nil
}

// Bytes returns the written payload.
func (c *Chunk) Bytes() []byte {
	return c.data[:c.Length]
}

// Write prepares appending to the chunk. It records the audio format and,
// for the first write, the time stamp and bit rate, and returns the
// writable tail. It returns nil when the chunk is full.
//
// The format must stay the same for the life cycle of the chunk.
func (c *Chunk) Write(af phonod.AudioFormat, t time.Duration, bitRate int) []byte {
	if c.Length == 0 {
		// the first write on an empty chunk determines the stamp
		c.Time = t
		c.BitRate = bitRate
		c.Format = af
	}
	frameSize := af.FrameSize()
	free := (ChunkSize - c.Length) / frameSize * frameSize
	if free == 0 {
		return nil
	}
	return c.data[c.Length : c.Length+free]
}

// Expand grows the chunk after the caller wrote n bytes into the buffer
// returned by Write. It reports whether the chunk is now full.
func (c *Chunk) Expand(af phonod.AudioFormat, n int) bool {
	frameSize := af.FrameSize()
	c.Length += n
	return ChunkSize-c.Length < frameSize
}

// SetRefs arms the fan-out reference count before the chunk is handed to
// multiple outputs.
func (c *Chunk) SetRefs(n int) {
	atomic.StoreInt32(&c.refs, int32(n))
}

// Unref drops one fan-out reference and reports whether this was the last
// holder.
func (c *Chunk) Unref() bool {
	return atomic.AddInt32(&c.refs, -1) == 0
}

// reset clears all metadata so the chunk can be reused.
func (c *Chunk) reset() {
	c.Other = nil
	c.MixRatio = 0
	c.Length = 0
	c.BitRate = 0
	c.Time = TimeUnknown
	c.Tag = nil
	c.BitRateChanged = false
	c.Silence = false
	c.ReplayGain = phonod.UndefinedReplayGainInfo()
	c.ReplayGainSerial = 0
	c.Format = phonod.AudioFormat{}
	atomic.StoreInt32(&c.refs, 0)
}
