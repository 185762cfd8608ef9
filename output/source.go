package output

import (
	"github.com/pipelined/phonod"
	"github.com/pipelined/phonod/buffer"
	"github.com/pipelined/phonod/filter"
)

// source turns queued chunks into driver-ready bytes: replay gain keyed on
// the chunk's snapshot serial, then software volume, then the convert
// chain. PCM export runs after it, inside the worker.
type source struct {
	inFormat phonod.AudioFormat

	replayGain *filter.ReplayGain
	volume     *filter.Volume
	chain      *filter.Chain
}

// open builds the filter chain for an input format, converting towards
// wantFormat (fields left zero follow the input).
func (s *source) open(in phonod.AudioFormat, wantFormat phonod.AudioFormat,
	rg phonod.ReplayGainConfig) error {

	rgFilter, err := filter.PreparedReplayGain{Config: rg}.Open(in)
	if err != nil {
		return err
	}
	volFilter, err := filter.PreparedVolume{}.Open(in)
	if err != nil {
		return err
	}
	convFilter, err := filter.PreparedConvert{OutFormat: wantFormat}.Open(in)
	if err != nil {
		return err
	}

	s.inFormat = in
	s.replayGain = rgFilter.(*filter.ReplayGain)
	s.volume = volFilter.(*filter.Volume)
	s.chain = filter.NewChain(in, rgFilter, volFilter, convFilter)
	return nil
}

// outFormat returns the format the chain produces.
func (s *source) outFormat() phonod.AudioFormat {
	return s.chain.OutFormat()
}

// filter produces the bytes for one chunk.
func (s *source) filter(c *buffer.Chunk) ([]byte, error) {
	// silence chunks carry the IgnoreReplayGain serial and leave the
	// filter's scale untouched
	if c.ReplayGainSerial != buffer.IgnoreReplayGain {
		s.replayGain.Update(c.ReplayGainSerial, c.ReplayGain)
	}
	return s.chain.Filter(c.Bytes())
}

// reset discards resampler history after cancel.
func (s *source) reset() {
	if s.chain != nil {
		s.chain.Reset()
	}
}

// close tears the chain down.
func (s *source) close() {
	if s.chain != nil {
		s.chain.Close()
		s.chain = nil
		s.replayGain = nil
		s.volume = nil
	}
}
