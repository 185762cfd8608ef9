package player_test

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/config"
	"github.com/pipelined/phonod/mock"
	"github.com/pipelined/phonod/output"
	"github.com/pipelined/phonod/player"
)

func TestMain(m *testing.M) {
	mock.RegisterDecoder()
	os.Exit(m.Run())
}

type recordingListener struct {
	mu    sync.Mutex
	masks []player.IdleMask
}

func (l *recordingListener) OnIdle(mask player.IdleMask) {
	l.mu.Lock()
	l.masks = append(l.masks, mask)
	l.mu.Unlock()
}

func (l *recordingListener) count(mask player.IdleMask) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.masks {
		if m&mask != 0 {
			n++
		}
	}
	return n
}

type fixture struct {
	pc      *player.Control
	pool    *buffer.Pool
	group   *output.Group
	drivers []*mock.Driver
}

func newFixture(t *testing.T, listener player.Listener, numOutputs int) *fixture {
	t.Helper()
	pool := buffer.NewPool(128)
	f := &fixture{pool: pool}
	outs := make([]*output.Output, numOutputs)
	for i := range outs {
		d := &mock.Driver{}
		o, err := output.NewWithDriver(
			config.Output{Name: fmt.Sprintf("out%d", i), Type: "mock", MixerType: "software"},
			d, phonod.AudioFormat{}, phonod.ReplayGainConfig{})
		require.NoError(t, err)
		f.drivers = append(f.drivers, d)
		outs[i] = o
	}
	f.group = output.NewGroup(pool, outs...)
	f.group.EnableDisable()
	f.pc = player.NewControl(pool, f.group, listener, player.Options{
		BufferedBeforePlay: 4,
	})
	// tests register their leak check with t.Cleanup before calling this,
	// so it runs after this teardown
	t.Cleanup(func() {
		f.pc.Exit()
		f.group.Kill()
	})
	return f
}

func mockSong(t *testing.T, frames, rate int, value int16) *phonod.Song {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("song-%d.mock", value))
	body := fmt.Sprintf("frames=%d\nrate=%d\nchannels=2\nvalue=%d\n", frames, rate, value)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	song := phonod.NewSong(path)
	song.Duration = time.Duration(float64(frames) / float64(rate) * float64(time.Second))
	return song
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached in time")
		}
		time.Sleep(time.Millisecond)
	}
}

// Scenario: two one-second songs at the same format enqueued back to back
// with cross-fade 0. The output byte stream is their exact concatenation:
// no inserted silence, no dropped samples.
func TestGaplessTransition(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t, nil, 1)
	a := mockSong(t, 44100, 44100, 1000)
	b := mockSong(t, 44100, 44100, 2000)

	// arm the next song before starting so the transition is in place even
	// for a song that decodes instantly
	f.pc.Queue(b)
	f.pc.Play(a)
	waitFor(t, func() bool { return f.pc.Status().State == player.StateStop })

	played := f.drivers[0].Played()
	perSong := 44100 * 4
	require.Equal(t, 2*perSong, len(played))

	for i := 0; i < perSong; i += 2 {
		require.Equal(t, uint16(1000), binary.NativeEndian.Uint16(played[i:]), "offset %d", i)
	}
	for i := perSong; i < 2*perSong; i += 2 {
		require.Equal(t, uint16(2000), binary.NativeEndian.Uint16(played[i:]), "offset %d", i)
	}

	// every chunk returned to the pool
	waitFor(t, func() bool { return f.pool.NumFree() == f.pool.Capacity() })
}

func TestPlayStatus(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t, nil, 1)
	song := mockSong(t, 441000, 44100, 5)

	f.pc.Play(song)
	waitFor(t, func() bool { return f.drivers[0].PlayedBytes() > 0 })

	st := f.pc.Refresh()
	assert.Equal(t, player.StatePlay, st.State)
	assert.Equal(t, song.ID, st.CurrentSong)
	assert.Equal(t, 44100, st.Format.SampleRate)
	assert.InDelta(t, 10.0, st.Total.Seconds(), 0.1)
	assert.Equal(t, phonod.ErrorNone, st.ErrorKind)

	f.pc.Stop()
	assert.Equal(t, player.StateStop, f.pc.Status().State)
	waitFor(t, func() bool { return f.pool.NumFree() == f.pool.Capacity() })
}

func TestElapsedMonotonic(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t, nil, 1)
	f.pc.Play(mockSong(t, 441000, 44100, 5))

	last := time.Duration(0)
	for i := 0; i < 50; i++ {
		st := f.pc.Refresh()
		if st.State != player.StatePlay {
			break
		}
		assert.GreaterOrEqual(t, st.Elapsed, last)
		last = st.Elapsed
		time.Sleep(2 * time.Millisecond)
	}
	f.pc.Stop()
}

func TestPauseResume(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t, nil, 1)
	f.pc.Play(mockSong(t, 441000, 44100, 5))
	waitFor(t, func() bool { return f.drivers[0].PlayedBytes() > 0 })

	f.pc.Pause()
	assert.Equal(t, player.StatePause, f.pc.Status().State)
	waitFor(t, func() bool { return f.drivers[0].IsPaused() })

	f.pc.Pause()
	assert.Equal(t, player.StatePlay, f.pc.Status().State)
	waitFor(t, func() bool { return !f.drivers[0].IsPaused() })

	f.pc.SetPause(true)
	assert.Equal(t, player.StatePause, f.pc.Status().State)
	f.pc.SetPause(true)
	assert.Equal(t, player.StatePause, f.pc.Status().State)

	f.pc.Stop()
}

func TestSeek(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t, nil, 1)
	song := mockSong(t, 441000, 44100, 5)

	assert.ErrorIs(t, f.pc.Seek(time.Second), player.ErrNotPlaying)

	f.pc.Play(song)
	waitFor(t, func() bool { return f.drivers[0].PlayedBytes() > 0 })

	require.NoError(t, f.pc.Seek(5*time.Second))
	st := f.pc.Refresh()
	assert.GreaterOrEqual(t, st.Elapsed, 5*time.Second)

	// the device buffer was dropped as part of the protocol
	assert.GreaterOrEqual(t, f.drivers[0].Cancels(), 1)

	waitFor(t, func() bool { return f.pc.Status().State == player.StateStop })
	waitFor(t, func() bool { return f.pool.NumFree() == f.pool.Capacity() })
}

func TestDecoderErrorAdvances(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t, nil, 1)
	bad := &phonod.Song{ID: "bad", URI: "/does/not/exist.mock"}
	good := mockSong(t, 4410, 44100, 9)

	f.pc.Queue(good)
	f.pc.Play(bad)

	// the error latches and the transport advances to the queued song
	waitFor(t, func() bool { return f.drivers[0].PlayedBytes() > 0 })
	st := f.pc.Status()
	assert.Equal(t, phonod.ErrorInput, st.ErrorKind)
	assert.NotEmpty(t, st.Error)

	waitFor(t, func() bool { return f.pc.Status().State == player.StateStop })
	f.pc.ClearError()
	assert.Equal(t, phonod.ErrorNone, f.pc.Status().ErrorKind)
}

func TestCancelDisarmsNextSong(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	f := newFixture(t, nil, 1)
	f.pc.Play(mockSong(t, 441000, 44100, 5))
	f.pc.Queue(mockSong(t, 4410, 44100, 6))
	assert.NotEmpty(t, f.pc.Status().NextSong)

	f.pc.Cancel()
	assert.Empty(t, f.pc.Status().NextSong)

	f.pc.Stop()
}

func TestCrossFadeMixesTail(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := buffer.NewPool(128)
	d := &mock.Driver{}
	o, err := output.NewWithDriver(
		config.Output{Name: "out", Type: "mock", MixerType: "none"},
		d, phonod.AudioFormat{}, phonod.ReplayGainConfig{})
	require.NoError(t, err)
	g := output.NewGroup(pool, o)
	g.EnableDisable()
	pc := player.NewControl(pool, g, nil, player.Options{
		BufferedBeforePlay: 4,
		CrossFade: player.CrossFadeSettings{
			Duration: 200 * time.Millisecond,
		},
	})
	defer func() {
		pc.Exit()
		g.Kill()
	}()

	a := mockSong(t, 44100, 44100, 1000)
	b := mockSong(t, 44100, 44100, 2000)
	pc.Queue(b)
	pc.Play(a)
	waitFor(t, func() bool { return pc.Status().State == player.StateStop })

	played := d.Played()
	perSong := 44100 * 4
	// the fade overlaps the songs, so the stream is shorter than the sum
	require.Less(t, len(played), 2*perSong)
	require.Greater(t, len(played), perSong)

	// mixed samples sit strictly between the two source levels
	mixed := 0
	for i := 0; i < len(played); i += 2 {
		v := binary.NativeEndian.Uint16(played[i:])
		if v > 1000 && v < 2000 {
			mixed++
		}
	}
	assert.Greater(t, mixed, 0)

	waitFor(t, func() bool { return pool.NumFree() == pool.Capacity() })
}

func TestListenerEvents(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	l := &recordingListener{}
	f := newFixture(t, l, 1)
	f.pc.Play(mockSong(t, 4410, 44100, 3))
	waitFor(t, func() bool { return f.pc.Status().State == player.StateStop })
	assert.Greater(t, l.count(player.IdlePlayer), 0)

	require.NoError(t, f.pc.SetVolume(30))
	assert.Equal(t, 1, l.count(player.IdleMixer))
	assert.Equal(t, 30, f.pc.Volume())

	f.pc.SetCrossFade(2 * time.Second)
	assert.Equal(t, 1, l.count(player.IdleOptions))
	assert.Equal(t, 2*time.Second, f.pc.Status().CrossFade)
}

func TestOutputFailureLatches(t *testing.T) {
	defer goleak.VerifyNone(t)

	pool := buffer.NewPool(64)
	d := &mock.Driver{FailOpen: true}
	o, err := output.NewWithDriver(
		config.Output{Name: "broken", Type: "mock", MixerType: "none"},
		d, phonod.AudioFormat{}, phonod.ReplayGainConfig{})
	require.NoError(t, err)
	g := output.NewGroup(pool, o)
	g.EnableDisable()
	pc := player.NewControl(pool, g, nil, player.Options{BufferedBeforePlay: 4})
	defer func() {
		pc.Exit()
		g.Kill()
	}()

	pc.Play(mockSong(t, 4410, 44100, 1))
	waitFor(t, func() bool { return pc.Status().ErrorKind == phonod.ErrorOutput })
	assert.Equal(t, player.StateStop, pc.Status().State)
	waitFor(t, func() bool { return pool.NumFree() == pool.Capacity() })
}
