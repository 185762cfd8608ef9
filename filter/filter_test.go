package filter_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/filter"
)

var s16Stereo = phonod.AudioFormat{
	SampleRate: 44100,
	Format:     phonod.SampleFormatS16,
	Channels:   2,
}

func s16Bytes(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.NativeEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestConvertPassThrough(t *testing.T) {
	f, err := filter.PreparedConvert{OutFormat: s16Stereo}.Open(s16Stereo)
	require.NoError(t, err)
	defer f.Close()

	src := s16Bytes(1, 2, 3, 4)
	out, err := f.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)
	assert.Equal(t, s16Stereo, f.OutFormat())
}

func TestConvertDefaultsKeepInput(t *testing.T) {
	// an all-zero output format converts nothing
	f, err := filter.PreparedConvert{}.Open(s16Stereo)
	require.NoError(t, err)
	assert.Equal(t, s16Stereo, f.OutFormat())
}

func TestConvertSampleFormat(t *testing.T) {
	out := s16Stereo
	out.Format = phonod.SampleFormatS32
	f, err := filter.PreparedConvert{OutFormat: out}.Open(s16Stereo)
	require.NoError(t, err)

	res, err := f.Filter(s16Bytes(0, 16384, -16384, 0))
	require.NoError(t, err)
	require.Equal(t, 16, len(res))

	v := int32(binary.NativeEndian.Uint32(res[4:]))
	// half scale within rounding of the float64 detour
	assert.InDelta(t, 1<<30, v, 1<<17)
}

func TestConvertMonoToStereo(t *testing.T) {
	in := phonod.AudioFormat{SampleRate: 44100, Format: phonod.SampleFormatS16, Channels: 1}
	f, err := filter.PreparedConvert{OutFormat: s16Stereo}.Open(in)
	require.NoError(t, err)

	res, err := f.Filter(s16Bytes(100, -100))
	require.NoError(t, err)
	require.Equal(t, 8, len(res))
	assert.Equal(t, binary.NativeEndian.Uint16(res[0:]), binary.NativeEndian.Uint16(res[2:]))
	assert.Equal(t, binary.NativeEndian.Uint16(res[4:]), binary.NativeEndian.Uint16(res[6:]))
}

func TestConvertResampleLength(t *testing.T) {
	out := s16Stereo
	out.SampleRate = 22050
	f, err := filter.PreparedConvert{OutFormat: out}.Open(s16Stereo)
	require.NoError(t, err)

	// 1000 frames in, roughly 500 out across several calls
	totalOut := 0
	for i := 0; i < 10; i++ {
		res, err := f.Filter(make([]byte, 100*4))
		require.NoError(t, err)
		totalOut += len(res) / 4
	}
	assert.InDelta(t, 500, totalOut, 2)
}

func TestConvertResetDiscardsHistory(t *testing.T) {
	out := s16Stereo
	out.SampleRate = 48000
	f, err := filter.PreparedConvert{OutFormat: out}.Open(s16Stereo)
	require.NoError(t, err)

	_, err = f.Filter(make([]byte, 64*4))
	require.NoError(t, err)
	f.Reset()
	res, err := f.Filter(make([]byte, 64*4))
	require.NoError(t, err)
	assert.NotEmpty(t, res)
}

func TestConvertDSDRejected(t *testing.T) {
	in := phonod.AudioFormat{SampleRate: 352800, Format: phonod.SampleFormatDSD, Channels: 2}
	_, err := filter.PreparedConvert{OutFormat: s16Stereo}.Open(in)
	assert.Error(t, err)
}

func TestVolumeFilter(t *testing.T) {
	f, err := filter.PreparedVolume{}.Open(s16Stereo)
	require.NoError(t, err)
	v := f.(*filter.Volume)
	assert.Equal(t, 100, v.GetVolume())

	src := s16Bytes(1000, -1000)
	out, err := f.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)

	v.SetVolume(50)
	out, err = f.Filter(src)
	require.NoError(t, err)
	got := int16(binary.NativeEndian.Uint16(out[0:]))
	assert.InDelta(t, 500, got, 5)
	// source stays untouched
	assert.Equal(t, s16Bytes(1000, -1000), src)
}

func TestVolumeClamps(t *testing.T) {
	f, _ := filter.PreparedVolume{}.Open(s16Stereo)
	v := f.(*filter.Volume)
	v.SetVolume(250)
	assert.Equal(t, 100, v.GetVolume())
	v.SetVolume(-5)
	assert.Equal(t, 0, v.GetVolume())
}

func TestReplayGainFilter(t *testing.T) {
	cfg := phonod.ReplayGainConfig{Mode: phonod.ReplayGainTrack, Limit: true}
	f, err := filter.PreparedReplayGain{Config: cfg}.Open(s16Stereo)
	require.NoError(t, err)
	rg := f.(*filter.ReplayGain)

	info := phonod.UndefinedReplayGainInfo()
	info.Track = phonod.ReplayGainTuple{Gain: -6.0, Peak: 1.0}
	rg.Update(1, info)

	src := s16Bytes(10000, -10000)
	out, err := rg.Filter(src)
	require.NoError(t, err)
	got := int16(binary.NativeEndian.Uint16(out[0:]))
	// -6 dB is very close to half scale
	assert.InDelta(t, 5012, got, 60)
}

func TestReplayGainOffIsUnity(t *testing.T) {
	cfg := phonod.ReplayGainConfig{Mode: phonod.ReplayGainOff}
	f, _ := filter.PreparedReplayGain{Config: cfg}.Open(s16Stereo)
	rg := f.(*filter.ReplayGain)
	rg.Update(7, phonod.UndefinedReplayGainInfo())

	src := s16Bytes(1234)
	out, err := rg.Filter(src)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestChainThreadsBuffers(t *testing.T) {
	conv, err := filter.PreparedConvert{OutFormat: s16Stereo}.Open(s16Stereo)
	require.NoError(t, err)
	vol, err := filter.PreparedVolume{}.Open(s16Stereo)
	require.NoError(t, err)
	vol.(*filter.Volume).SetVolume(0)

	chain := filter.NewChain(s16Stereo, conv, vol)
	assert.Equal(t, s16Stereo, chain.OutFormat())

	out, err := chain.Filter(s16Bytes(1000, 2000))
	require.NoError(t, err)
	assert.Equal(t, s16Bytes(0, 0), out)
}
