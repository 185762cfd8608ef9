// Package filter provides the composable PCM transformers applied by each
// output: format conversion, replay gain and software volume. A prepared
// filter is a factory; opening it against an input format produces a
// concrete filter bound to that format.
package filter

import "github.com/pipelined/phonod"

// Filter is one open PCM transformer. Filter may return more or fewer bytes
// than it consumed; the returned slice remains valid until the next call.
type Filter interface {
	// OutFormat returns the format of the data Filter returns.
	OutFormat() phonod.AudioFormat
	// Filter transforms one block. It must not mutate src.
	Filter(src []byte) ([]byte, error)
	// Reset discards internal state such as resampler history; required
	// after seek and cancel.
	Reset()
	// Close releases the filter's resources.
	Close()
}

// Prepared is a filter factory bound to its configuration but not yet to an
// input format.
type Prepared interface {
	Open(in phonod.AudioFormat) (Filter, error)
}

// Chain applies filters left to right, threading the buffer returned by
// step k into step k+1.
type Chain struct {
	filters []Filter
	out     phonod.AudioFormat
}

// NewChain builds a chain from already open filters. The chain's output
// format is the last filter's; an empty chain passes data through.
func NewChain(in phonod.AudioFormat, filters ...Filter) *Chain {
	out := in
	if len(filters) > 0 {
		out = filters[len(filters)-1].OutFormat()
	}
	return &Chain{filters: filters, out: out}
}

// OutFormat returns the format of the chain's output.
func (c *Chain) OutFormat() phonod.AudioFormat { return c.out }

// Filter runs the block through every filter in order.
func (c *Chain) Filter(src []byte) ([]byte, error) {
	var err error
	for _, f := range c.filters {
		if src, err = f.Filter(src); err != nil {
			return nil, err
		}
	}
	return src, nil
}

// Reset resets every filter in the chain.
func (c *Chain) Reset() {
	for _, f := range c.filters {
		f.Reset()
	}
}

// Close closes every filter in the chain.
func (c *Chain) Close() {
	for _, f := range c.filters {
		f.Close()
	}
}
