package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.AudioBufferSize)
	assert.Equal(t, 32, cfg.BufferedBeforePlay)
	assert.Equal(t, 1024, cfg.PoolChunks())
	require.Len(t, cfg.Outputs, 1)
	assert.Equal(t, "null", cfg.Outputs[0].Type)
	assert.Equal(t, phonod.ReplayGainOff, cfg.ReplayGainConfig().Mode)
	assert.True(t, cfg.ReplayGainConfig().Limit)
}

func TestParseFull(t *testing.T) {
	cfg, err := config.Parse([]byte(`
audio_buffer_size: 8
buffered_before_play: 16
audio_output_format: "48000:24:2"
replay_gain:
  mode: album
  preamp: 3.5
  missing_preamp: -6
  limit: false
crossfade_seconds: 5
mixramp_db: -17
mixramp_delay_seconds: 2
mixramp_abort: cut
audio_outputs:
  - name: speakers
    type: oto
    mixer_type: software
    always_on: true
    buffer_time: 500ms
    period_time: 0.125
  - name: dump
    type: writer
    path: /tmp/out.pcm
    tags: false
`))
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.PoolChunks())
	assert.Equal(t, 5*time.Second, cfg.CrossFade())
	assert.Equal(t, 2*time.Second, cfg.MixRampDelay())
	assert.Equal(t, config.MixRampAbortCut, cfg.MixRampAbort)

	af := cfg.OutputFormat()
	assert.Equal(t, 48000, af.SampleRate)
	assert.Equal(t, phonod.SampleFormatS24P32, af.Format)

	rg := cfg.ReplayGainConfig()
	assert.Equal(t, phonod.ReplayGainAlbum, rg.Mode)
	assert.Equal(t, 3.5, rg.Preamp)
	assert.False(t, rg.Limit)

	require.Len(t, cfg.Outputs, 2)
	assert.True(t, cfg.Outputs[0].AlwaysOn)
	assert.Equal(t, 500*time.Millisecond, cfg.Outputs[0].BufferTime.Std())
	assert.Equal(t, 125*time.Millisecond, cfg.Outputs[0].PeriodTime.Std())
	assert.True(t, cfg.Outputs[0].SendTags())
	assert.False(t, cfg.Outputs[1].SendTags())
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"bad format":        "audio_output_format: \"44100:17:2\"\n",
		"bad mode":          "replay_gain:\n  mode: loud\n",
		"negative fade":     "crossfade_seconds: -1\n",
		"unnamed output":    "audio_outputs:\n  - type: null\n",
		"duplicate outputs": "audio_outputs:\n  - name: a\n    type: null\n  - name: a\n    type: null\n",
		"zero buffer":       "audio_buffer_size: 0\n",
		"bad mixramp abort": "mixramp_abort: maybe\n",
		"prebuffer too big": "audio_buffer_size: 1\nbuffered_before_play: 4096\n",
	}
	for name, body := range cases {
		_, err := config.Parse([]byte(body))
		assert.Error(t, err, name)
	}
}
