// Package pipe provides the chunk FIFO between exactly one producer and one
// consumer of the playback pipeline. The pipe itself carries no condition
// variables; producer and consumer coordinate through their own, kept next
// to the pipe.
package pipe

import (
	"sync"

	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
)

// Pipe is a singly linked FIFO of chunks guarded by one mutex.
// Invariants: empty iff head is nil; tail points at the most recently
// enqueued chunk; size equals the length of the chain; all chunks in one
// pipe share one audio format.
type Pipe struct {
	mu   sync.Mutex
	head *buffer.Chunk
	tail *buffer.Chunk
	size int

	format phonod.AudioFormat
}

// New creates an empty pipe.
func New() *Pipe {
	return &Pipe{}
}

// Push appends a chunk to the tail.
func (p *Pipe) Push(c *buffer.Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.Format.Defined() {
		if p.format.Defined() && p.format != c.Format {
			panic("pipe: audio format changed mid-pipe")
		}
		p.format = c.Format
	}

	if p.tail == nil {
		p.head = c
	} else {
		p.tail.SetNext(c)
	}
	p.tail = c
	p.size++
}

// Peek returns the head chunk without removing it, nil when empty.
func (p *Pipe) Peek() *buffer.Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.head
}

// Shift detaches and returns the head chunk, nil when empty.
func (p *Pipe) Shift() *buffer.Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.head
	if c == nil {
		return nil
	}
	p.head = c.Next()
	c.SetNext(nil)
	if p.head == nil {
		p.tail = nil
	}
	p.size--
	return c
}

// Clear returns all chunks to the pool and forgets the pipe's format, so
// chunks of a different format may follow (part of the seek and cancel
// protocols).
func (p *Pipe) Clear(pool *buffer.Pool) {
	p.mu.Lock()
	head := p.head
	p.head = nil
	p.tail = nil
	p.size = 0
	p.format = phonod.AudioFormat{}
	p.mu.Unlock()

	for head != nil {
		c := head
		head = c.Next()
		c.SetNext(nil)
		pool.Release(c)
	}
}

// Size returns the number of chunks currently queued.
func (p *Pipe) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// Empty reports whether the pipe holds no chunks.
func (p *Pipe) Empty() bool {
	return p.Size() == 0
}
