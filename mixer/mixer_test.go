package mixer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod/mixer"
)

type fakeControl struct {
	volume int
}

func (f *fakeControl) SetVolume(v int) { f.volume = v }
func (f *fakeControl) GetVolume() int  { return f.volume }

func TestSoftwareMixer(t *testing.T) {
	m := mixer.NewSoftware()
	assert.False(t, m.IsHardware())

	// the level is settable before any filter is attached
	require.NoError(t, m.SetVolume(40))
	v, err := m.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, 40, v)

	// attaching pushes the stored level into the filter
	ctl := &fakeControl{volume: 100}
	m.SetFilter(ctl)
	assert.Equal(t, 40, ctl.volume)

	require.NoError(t, m.SetVolume(70))
	assert.Equal(t, 70, ctl.volume)

	// detaching keeps the level for the next open
	m.SetFilter(nil)
	require.NoError(t, m.SetVolume(10))
	v, _ = m.GetVolume()
	assert.Equal(t, 10, v)

	assert.Error(t, m.SetVolume(101))
	assert.Error(t, m.SetVolume(-1))
}

func TestNullMixer(t *testing.T) {
	m := mixer.NewNull()
	assert.True(t, m.IsHardware())

	// closed null mixers refuse volume operations
	_, err := m.GetVolume()
	assert.ErrorIs(t, err, mixer.ErrClosed)
	assert.ErrorIs(t, m.SetVolume(50), mixer.ErrClosed)

	require.NoError(t, m.Open())
	require.NoError(t, m.SetVolume(50))
	v, err := m.GetVolume()
	require.NoError(t, err)
	assert.Equal(t, 50, v)

	m.Close()
	_, err = m.GetVolume()
	assert.Error(t, err)
}
