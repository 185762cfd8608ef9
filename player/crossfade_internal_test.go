package player

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/phonod"
)

var xfadeFormat = phonod.AudioFormat{
	SampleRate: 44100,
	Format:     phonod.SampleFormatS16,
	Channels:   2,
}

func TestCrossFadeChunksDuration(t *testing.T) {
	s := CrossFadeSettings{Duration: time.Second}
	chunks, collapsed := crossFadeChunks(s, xfadeFormat, xfadeFormat,
		phonod.NewMixRamp(), phonod.NewMixRamp(), 1024)
	assert.False(t, collapsed)
	// one second of 44100:16:2 is 176400 bytes
	assert.Equal(t, 44, chunks)
}

func TestCrossFadeDisabled(t *testing.T) {
	chunks, collapsed := crossFadeChunks(CrossFadeSettings{}, xfadeFormat, xfadeFormat,
		phonod.NewMixRamp(), phonod.NewMixRamp(), 1024)
	assert.Equal(t, 0, chunks)
	assert.False(t, collapsed)
}

func TestCrossFadeFormatMismatch(t *testing.T) {
	other := xfadeFormat
	other.SampleRate = 48000
	chunks, _ := crossFadeChunks(CrossFadeSettings{Duration: time.Second},
		xfadeFormat, other, phonod.NewMixRamp(), phonod.NewMixRamp(), 1024)
	assert.Equal(t, 0, chunks)
}

func TestCrossFadePoolCap(t *testing.T) {
	s := CrossFadeSettings{Duration: time.Minute}
	chunks, _ := crossFadeChunks(s, xfadeFormat, xfadeFormat,
		phonod.NewMixRamp(), phonod.NewMixRamp(), 32)
	assert.Equal(t, 16, chunks)
}

func TestCrossFadeMixRampDelay(t *testing.T) {
	s := CrossFadeSettings{
		Duration:     10 * time.Second,
		MixRampDb:    -17,
		MixRampDelay: time.Second,
	}
	out := phonod.MixRamp{Start: math.NaN(), End: -20}
	in := phonod.MixRamp{Start: -18, End: math.NaN()}
	chunks, collapsed := crossFadeChunks(s, xfadeFormat, xfadeFormat, out, in, 1024)
	assert.False(t, collapsed)
	// the mixramp delay overrides the fixed duration
	assert.Equal(t, 44, chunks)
}

func TestCrossFadeMixRampCollapses(t *testing.T) {
	s := CrossFadeSettings{
		Duration:  10 * time.Second,
		MixRampDb: -17,
	}
	// zero delay collapses the window
	out := phonod.MixRamp{Start: math.NaN(), End: -20}
	in := phonod.MixRamp{Start: -18, End: math.NaN()}
	chunks, collapsed := crossFadeChunks(s, xfadeFormat, xfadeFormat, out, in, 1024)
	assert.Equal(t, 0, chunks)
	assert.True(t, collapsed)

	// an incoming song starting above the mixramp threshold collapses too
	s.MixRampDelay = time.Second
	loudIn := phonod.MixRamp{Start: -10, End: math.NaN()}
	chunks, collapsed = crossFadeChunks(s, xfadeFormat, xfadeFormat, out, loudIn, 1024)
	assert.Equal(t, 0, chunks)
	assert.True(t, collapsed)
}

func TestMixRatioRamp(t *testing.T) {
	assert.Equal(t, float32(1), mixRatio(0, 4))
	assert.Equal(t, float32(0.5), mixRatio(2, 4))
	assert.Equal(t, float32(0), mixRatio(4, 4))
	assert.Equal(t, float32(0), mixRatio(0, 1))
}
