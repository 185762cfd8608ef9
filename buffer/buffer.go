// Package buffer provides the chunk pool of the playback pipeline: a fixed
// number of fixed-size PCM chunks with a free list. Allocation never blocks;
// exhaustion is the pipeline's backpressure signal and the decoder yields
// until the player makes progress.
package buffer

import "sync"

// Pool is a fixed-capacity chunk allocator. It is safe for use from any
// goroutine. Invariant: free + in-flight = capacity.
type Pool struct {
	mu     sync.Mutex
	chunks []Chunk
	free   *Chunk
	nFree  int
}

// NewPool preallocates n chunks.
func NewPool(n int) *Pool {
	if n < 1 {
		panic("buffer: pool capacity must be positive")
	}
	p := &Pool{chunks: make([]Chunk, n)}
	for i := range p.chunks {
		c := &p.chunks[i]
		c.owner = p
		c.reset()
		c.freed = true
		c.next = p.free
		p.free = c
	}
	p.nFree = n
	return p
}

// Capacity returns the total number of chunks.
func (p *Pool) Capacity() int {
	return len(p.chunks)
}

// NumFree returns the current free list length.
func (p *Pool) NumFree() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nFree
}

// Allocate takes a chunk off the free list. It returns nil when the pool is
// exhausted; the caller must back off and retry after the consumer returned
// some chunks.
func (p *Pool) Allocate() *Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.free
	if c == nil {
		return nil
	}
	p.free = c.next
	p.nFree--
	c.next = nil
	c.freed = false
	return c
}

// Release resets a chunk and returns it to the free list. If the chunk
// carries a cross-fade partner, the partner is returned as well. Releasing
// a chunk twice or a chunk owned by another pool panics.
func (p *Pool) Release(c *Chunk) {
	if c.owner != p {
		panic("buffer: chunk released to foreign pool")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for c != nil {
		if c.freed {
			panic("buffer: chunk released twice")
		}
		other := c.Other
		c.reset()
		c.freed = true
		c.next = p.free
		p.free = c
		p.nFree++
		c = other
	}
}
