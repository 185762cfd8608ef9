package buffer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
)

var testFormat = phonod.AudioFormat{
	SampleRate: 44100,
	Format:     phonod.SampleFormatS16,
	Channels:   2,
}

func TestPoolConservation(t *testing.T) {
	p := buffer.NewPool(8)
	assert.Equal(t, 8, p.Capacity())
	assert.Equal(t, 8, p.NumFree())

	allocated := make([]*buffer.Chunk, 0, 8)
	for i := 0; i < 5; i++ {
		c := p.Allocate()
		require.NotNil(t, c)
		allocated = append(allocated, c)
		assert.Equal(t, p.Capacity(), p.NumFree()+len(allocated))
	}
	for _, c := range allocated {
		p.Release(c)
	}
	assert.Equal(t, 8, p.NumFree())
}

func TestPoolExhaustion(t *testing.T) {
	p := buffer.NewPool(2)
	c1 := p.Allocate()
	c2 := p.Allocate()
	require.NotNil(t, c1)
	require.NotNil(t, c2)
	// allocation never blocks, it just yields nothing
	assert.Nil(t, p.Allocate())
	p.Release(c1)
	assert.NotNil(t, p.Allocate())
}

func TestPoolDoubleFree(t *testing.T) {
	p := buffer.NewPool(2)
	c := p.Allocate()
	p.Release(c)
	assert.Panics(t, func() { p.Release(c) })
}

func TestPoolForeignChunk(t *testing.T) {
	p1 := buffer.NewPool(1)
	p2 := buffer.NewPool(1)
	c := p1.Allocate()
	assert.Panics(t, func() { p2.Release(c) })
}

func TestChunkWriteExpand(t *testing.T) {
	p := buffer.NewPool(1)
	c := p.Allocate()

	buf := c.Write(testFormat, time.Second, 320)
	require.NotNil(t, buf)
	assert.Equal(t, buffer.ChunkSize, len(buf))
	assert.Equal(t, time.Second, c.Time)
	assert.Equal(t, 320, c.BitRate)

	full := c.Expand(testFormat, len(buf))
	assert.True(t, full)
	assert.Nil(t, c.Write(testFormat, time.Second, 320))
	assert.Equal(t, buffer.ChunkSize, len(c.Bytes()))
}

func TestChunkWritePartial(t *testing.T) {
	p := buffer.NewPool(1)
	c := p.Allocate()

	buf := c.Write(testFormat, 0, 0)
	full := c.Expand(testFormat, 100)
	assert.False(t, full)

	buf = c.Write(testFormat, time.Second, 128)
	require.NotNil(t, buf)
	assert.Equal(t, buffer.ChunkSize-100, len(buf))
	// the stamp of the first write wins
	assert.Equal(t, time.Duration(0), c.Time)
}

func TestChunkReleaseResets(t *testing.T) {
	p := buffer.NewPool(1)
	c := p.Allocate()
	c.Write(testFormat, time.Second, 320)
	c.Expand(testFormat, 64)
	c.Tag = phonod.NewTag()
	c.Silence = true
	p.Release(c)

	c = p.Allocate()
	assert.True(t, c.Empty())
	assert.Nil(t, c.Tag)
	assert.False(t, c.Silence)
	assert.Equal(t, buffer.TimeUnknown, c.Time)
}

func TestChunkReleaseOther(t *testing.T) {
	p := buffer.NewPool(2)
	c := p.Allocate()
	c.Other = p.Allocate()
	require.Equal(t, 0, p.NumFree())
	p.Release(c)
	assert.Equal(t, 2, p.NumFree())
}

func TestChunkRefs(t *testing.T) {
	p := buffer.NewPool(1)
	c := p.Allocate()
	c.SetRefs(3)
	assert.False(t, c.Unref())
	assert.False(t, c.Unref())
	assert.True(t, c.Unref())
}
