package decoder

import (
	"fmt"
	"io"

	"github.com/pipelined/phonod/input"
)

// StreamReader adapts an input.Stream to io.ReadSeeker for decoder
// libraries that want one. Seeking on a forward-only stream fails with
// input.ErrNotSeekable.
func StreamReader(s input.Stream) io.ReadSeeker {
	return &streamReader{s: s}
}

type streamReader struct {
	s   input.Stream
	pos int64
}

func (r *streamReader) Read(p []byte) (int, error) {
	n, err := r.s.Read(p)
	r.pos += int64(n)
	return n, err
}

func (r *streamReader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		size := r.s.Size()
		if size == input.SizeUnknown {
			return 0, fmt.Errorf("decoder: seek from end of unbounded stream")
		}
		abs = size + offset
	default:
		return 0, fmt.Errorf("decoder: bad seek whence %d", whence)
	}
	if abs == r.pos {
		return abs, nil
	}
	if err := r.s.Seek(abs); err != nil {
		return 0, err
	}
	r.pos = abs
	return abs, nil
}
