package player

import (
	"math"
	"time"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/config"
)

// CrossFadeSettings is the tuning the control carries for song
// transitions.
type CrossFadeSettings struct {
	// Duration of the fade; zero disables cross-fading.
	Duration time.Duration
	// MixRampDb is the threshold enabling mixramp-aligned fades; zero
	// disables mixramp handling.
	MixRampDb float64
	// MixRampDelay is the overlap used when mixramp tags align.
	MixRampDelay time.Duration
	// Abort picks the behavior when the mixramp window collapses.
	Abort config.MixRampAbort
}

// crossFadeChunks computes how many trailing chunks of the outgoing song
// overlap the incoming one, and whether a mixramp window collapsed to
// nothing.
//
// A fixed duration translates to chunks at the stream's byte rate. When
// mixramp is enabled and both songs carry usable thresholds, the mixramp
// delay takes over. A collapsed window yields no fade; the abort policy
// then decides at the border between the plain gapless transition and the
// abrupt cut. A fade is never attempted across differing audio formats,
// and it never claims more than half the chunk pool.
func crossFadeChunks(s CrossFadeSettings, af, otherAf phonod.AudioFormat,
	out phonod.MixRamp, in phonod.MixRamp, poolChunks int) (chunks int, collapsed bool) {

	if s.Duration <= 0 {
		return 0, false
	}
	if af != otherAf {
		// a lossy convert would be needed; skip the fade
		return 0, false
	}

	duration := s.Duration
	if s.MixRampDb != 0 && out.HasEnd() && in.HasStart() {
		// the fade window is usable when the outgoing song is already
		// below the threshold where the incoming one starts
		if in.Start > s.MixRampDb || out.End > in.Start {
			return 0, true
		}
		duration = s.MixRampDelay
		if duration <= 0 {
			return 0, true
		}
	}

	chunks = int(math.Ceil(float64(af.TimeToSize(duration)) / float64(buffer.ChunkSize)))
	if max := poolChunks / 2; chunks > max {
		chunks = max
	}
	return chunks, false
}

// mixRatio returns the gain of the outgoing song for chunk i of n in the
// fade window: a linear ramp from 1 down to 0.
func mixRatio(i, n int) float32 {
	if n <= 1 {
		return 0
	}
	return 1 - float32(i)/float32(n)
}
