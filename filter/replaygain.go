package filter

import (
	"sync"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/pcm"
)

// PreparedReplayGain builds replay gain filters bound to the daemon's
// replay gain policy.
type PreparedReplayGain struct {
	Config phonod.ReplayGainConfig
}

// Open binds the filter to an input format.
func (p PreparedReplayGain) Open(in phonod.AudioFormat) (Filter, error) {
	return &ReplayGain{
		format: in,
		cfg:    p.Config,
		mode:   p.Config.Mode,
		scale:  pcm.VolumeOne,
	}, nil
}

// ReplayGain applies the linear scale derived from the current song's gain
// snapshot. The output source updates it whenever a chunk carries a new
// snapshot serial.
type ReplayGain struct {
	format phonod.AudioFormat
	cfg    phonod.ReplayGainConfig

	mu     sync.Mutex
	mode   phonod.ReplayGainMode
	serial uint32
	scale  int

	buf []byte
}

// OutFormat returns the unchanged input format.
func (f *ReplayGain) OutFormat() phonod.AudioFormat { return f.format }

// SetMode switches the replay gain mode and forces a recalculation on the
// next Update.
func (f *ReplayGain) SetMode(mode phonod.ReplayGainMode) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mode == f.mode {
		return
	}
	f.mode = mode
	f.serial = 0
}

// Update recomputes the scale when the chunk's snapshot serial changed.
// Serial zero means no snapshot (treated as an untagged song).
func (f *ReplayGain) Update(serial uint32, info phonod.ReplayGainInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if serial != 0 && serial == f.serial {
		return
	}
	f.serial = serial
	if f.mode == phonod.ReplayGainOff {
		f.scale = pcm.VolumeOne
		return
	}
	f.scale = pcm.FloatToScale(info.Tuple(f.mode).Scale(f.cfg))
}

func (f *ReplayGain) currentScale() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scale
}

// Filter scales a copy of the block by the current gain.
func (f *ReplayGain) Filter(src []byte) ([]byte, error) {
	scale := f.currentScale()
	if scale == pcm.VolumeOne {
		return src, nil
	}
	if cap(f.buf) < len(src) {
		f.buf = make([]byte, len(src))
	}
	dst := f.buf[:len(src)]
	copy(dst, src)
	if err := pcm.Volume(dst, f.format.Format, scale); err != nil {
		return nil, err
	}
	return dst, nil
}

// Reset keeps the scale; gain is per song, not per position.
func (f *ReplayGain) Reset() {}

// Close releases nothing; present to satisfy the Filter contract.
func (f *ReplayGain) Close() {}
