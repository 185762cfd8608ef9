package pcm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/pcm"
)

func TestVolumeUnity(t *testing.T) {
	buf := s16Bytes(100, -100, 32767, -32768)
	want := s16Bytes(100, -100, 32767, -32768)
	require.NoError(t, pcm.Volume(buf, phonod.SampleFormatS16, pcm.VolumeOne))
	assert.Equal(t, want, buf)
}

func TestVolumeZero(t *testing.T) {
	buf := s16Bytes(100, -100, 32767, -32768)
	require.NoError(t, pcm.Volume(buf, phonod.SampleFormatS16, 0))
	assert.Equal(t, s16Bytes(0, 0, 0, 0), buf)
}

func TestVolumeHalf(t *testing.T) {
	buf := s16Bytes(1000, -1000)
	require.NoError(t, pcm.Volume(buf, phonod.SampleFormatS16, pcm.VolumeOne/2))
	assert.Equal(t, s16Bytes(500, -500), buf)
}

func TestVolumeClamp(t *testing.T) {
	buf := s16Bytes(32000, -32000)
	require.NoError(t, pcm.Volume(buf, phonod.SampleFormatS16, pcm.VolumeOne*2))
	assert.Equal(t, s16Bytes(32767, -32768), buf)
}

func TestVolumeS32(t *testing.T) {
	buf := s32Bytes(1 << 20)
	require.NoError(t, pcm.Volume(buf, phonod.SampleFormatS32, pcm.VolumeOne/4))
	assert.Equal(t, s32Bytes(1<<18), buf)
}

func TestVolumeDSDUnsupported(t *testing.T) {
	buf := []byte{0x69, 0x69}
	assert.Error(t, pcm.Volume(buf, phonod.SampleFormatDSD, pcm.VolumeOne/2))
}

func TestFloatToScale(t *testing.T) {
	assert.Equal(t, pcm.VolumeOne, pcm.FloatToScale(1.0))
	assert.Equal(t, pcm.VolumeOne/2, pcm.FloatToScale(0.5))
	assert.Equal(t, 0, pcm.FloatToScale(0))
}

func TestMixPortions(t *testing.T) {
	dst := s16Bytes(1000, 1000)
	src := s16Bytes(0, 2000)
	require.NoError(t, pcm.Mix(dst, src, phonod.SampleFormatS16, 0.5))
	assert.Equal(t, s16Bytes(500, 1500), dst)
}

func TestMixFullPortionKeepsDst(t *testing.T) {
	dst := s16Bytes(123, -456)
	src := s16Bytes(1, 1)
	require.NoError(t, pcm.Mix(dst, src, phonod.SampleFormatS16, 1.0))
	assert.Equal(t, s16Bytes(123, -456), dst)
}

func TestMixZeroPortionTakesSrc(t *testing.T) {
	dst := s16Bytes(123, -456)
	src := s16Bytes(7, 8)
	require.NoError(t, pcm.Mix(dst, src, phonod.SampleFormatS16, 0))
	assert.Equal(t, s16Bytes(7, 8), dst)
}

func TestMixShorterSrc(t *testing.T) {
	dst := s16Bytes(100, 200, 300)
	src := s16Bytes(0)
	require.NoError(t, pcm.Mix(dst, src, phonod.SampleFormatS16, 0))
	assert.Equal(t, s16Bytes(0, 200, 300), dst)
}
