package pipe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/pipe"
)

var testFormat = phonod.AudioFormat{
	SampleRate: 44100,
	Format:     phonod.SampleFormatS16,
	Channels:   2,
}

func TestPipeOrder(t *testing.T) {
	pool := buffer.NewPool(16)
	p := pipe.New()

	pushed := make([]*buffer.Chunk, 0, 16)
	for i := 0; i < 16; i++ {
		c := pool.Allocate()
		require.NotNil(t, c)
		c.Write(testFormat, 0, 0)
		c.Expand(testFormat, 4)
		p.Push(c)
		pushed = append(pushed, c)
	}
	assert.Equal(t, 16, p.Size())

	for i := 0; i < 16; i++ {
		c := p.Shift()
		assert.Same(t, pushed[i], c)
		pool.Release(c)
	}
	assert.True(t, p.Empty())
	assert.Nil(t, p.Shift())
}

func TestPipeInterleaved(t *testing.T) {
	pool := buffer.NewPool(8)
	p := pipe.New()

	var pushed, shifted []*buffer.Chunk
	for i := 0; i < 8; i++ {
		c := pool.Allocate()
		p.Push(c)
		pushed = append(pushed, c)
		if i%2 == 1 {
			shifted = append(shifted, p.Shift())
		}
	}
	for !p.Empty() {
		shifted = append(shifted, p.Shift())
	}
	assert.Equal(t, pushed, shifted)
}

func TestPipePeek(t *testing.T) {
	pool := buffer.NewPool(2)
	p := pipe.New()

	assert.Nil(t, p.Peek())
	c := pool.Allocate()
	p.Push(c)
	assert.Same(t, c, p.Peek())
	assert.Equal(t, 1, p.Size())
}

func TestPipeClear(t *testing.T) {
	pool := buffer.NewPool(4)
	p := pipe.New()
	for i := 0; i < 4; i++ {
		p.Push(pool.Allocate())
	}
	require.Equal(t, 0, pool.NumFree())

	p.Clear(pool)
	assert.True(t, p.Empty())
	assert.Equal(t, 4, pool.NumFree())
}

func TestPipeFormatChangePanics(t *testing.T) {
	pool := buffer.NewPool(2)
	p := pipe.New()

	c := pool.Allocate()
	c.Write(testFormat, 0, 0)
	c.Expand(testFormat, 4)
	p.Push(c)

	other := pool.Allocate()
	otherFormat := testFormat
	otherFormat.SampleRate = 48000
	other.Write(otherFormat, 0, 0)
	other.Expand(otherFormat, 4)
	assert.Panics(t, func() { p.Push(other) })
}

func TestPipeClearAllowsNewFormat(t *testing.T) {
	pool := buffer.NewPool(2)
	p := pipe.New()

	c := pool.Allocate()
	c.Write(testFormat, 0, 0)
	c.Expand(testFormat, 4)
	p.Push(c)
	p.Clear(pool)

	other := pool.Allocate()
	otherFormat := testFormat
	otherFormat.SampleRate = 48000
	other.Write(otherFormat, 0, 0)
	other.Expand(otherFormat, 4)
	assert.NotPanics(t, func() { p.Push(other) })
}
