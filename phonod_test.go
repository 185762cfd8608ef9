package phonod_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod"
)

func TestAudioFormatSizes(t *testing.T) {
	af := phonod.AudioFormat{SampleRate: 44100, Format: phonod.SampleFormatS16, Channels: 2}
	assert.True(t, af.Valid())
	assert.Equal(t, 4, af.FrameSize())
	assert.Equal(t, 176400, af.ByteRate())
	assert.Equal(t, time.Second, af.SizeToTime(176400))
	assert.Equal(t, 176400, af.TimeToSize(time.Second))
}

func TestAudioFormatRoundTrip(t *testing.T) {
	cases := []string{"44100:16:2", "48000:24:2", "8000:8:1", "192000:32:8", "352800:dsd:2", "96000:f:2"}
	for _, s := range cases {
		af, err := phonod.ParseAudioFormat(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, af.String())
	}
}

func TestAudioFormatRejects(t *testing.T) {
	cases := []string{"", "44100:16", "0:16:2", "44100:17:2", "44100:16:0", "44100:16:9", "x:16:2"}
	for _, s := range cases {
		_, err := phonod.ParseAudioFormat(s)
		assert.Error(t, err, s)
	}
}

func TestReplayGainScale(t *testing.T) {
	cfg := phonod.ReplayGainConfig{Mode: phonod.ReplayGainTrack, Limit: true}

	// -6 dB halves roughly
	tup := phonod.ReplayGainTuple{Gain: -6.02, Peak: 0.5}
	assert.InDelta(t, 0.5, tup.Scale(cfg), 0.01)

	// the peak limit caps positive gain
	loud := phonod.ReplayGainTuple{Gain: 12, Peak: 0.9}
	assert.InDelta(t, 1.0/0.9, loud.Scale(cfg), 0.001)

	// no limit lets it through
	cfg.Limit = false
	assert.InDelta(t, 3.98, loud.Scale(cfg), 0.01)

	// missing tags use the missing preamp
	cfg.MissingPreamp = -6.02
	missing := phonod.UndefinedReplayGainTuple()
	assert.InDelta(t, 0.5, missing.Scale(cfg), 0.01)
}

func TestReplayGainTupleSelection(t *testing.T) {
	info := phonod.UndefinedReplayGainInfo()
	info.Track = phonod.ReplayGainTuple{Gain: -3, Peak: 1}
	assert.Equal(t, info.Track, info.Tuple(phonod.ReplayGainTrack))
	// album falls back to track when absent
	assert.Equal(t, info.Track, info.Tuple(phonod.ReplayGainAlbum))

	info.Album = phonod.ReplayGainTuple{Gain: -9, Peak: 1}
	assert.Equal(t, info.Album, info.Tuple(phonod.ReplayGainAlbum))
}

func TestMixRamp(t *testing.T) {
	m := phonod.NewMixRamp()
	assert.False(t, m.HasStart())
	assert.False(t, m.HasEnd())
	m.Start = -17
	assert.True(t, m.HasStart())
}

func TestSongIDs(t *testing.T) {
	a := phonod.NewSong("/music/a.flac")
	b := phonod.NewSong("/music/a.flac")
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, a.Equals(a))
	assert.False(t, a.Equals(b))
	assert.False(t, a.Equals(nil))
}
