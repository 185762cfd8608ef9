// Package input abstracts the byte sources the decoder reads from: local
// files, in-memory blobs and http(s) resources. Streams are sequential
// readers with optional seeking; the decoder worker owns exactly one open
// stream at a time.
package input

import (
	"errors"
	"fmt"
	"strings"
)

// SizeUnknown is returned by Size for unbounded streams.
const SizeUnknown = int64(-1)

// Stream is one open input source.
type Stream interface {
	// URI returns the location the stream was opened from.
	URI() string
	// MIME returns the detected content type, empty when unknown.
	MIME() string
	// Size returns the total size in bytes, SizeUnknown for live sources.
	Size() int64
	// Seekable reports whether Seek may be used.
	Seekable() bool
	// Read fills p and returns the number of bytes read; io.EOF at the
	// end of the stream.
	Read(p []byte) (int, error)
	// Seek repositions the stream to an absolute offset.
	Seek(offset int64) error
	// Close releases the stream.
	Close() error
}

// ErrNotSeekable is returned by Seek on forward-only streams.
var ErrNotSeekable = errors.New("input: stream is not seekable")

// Open opens the right stream kind for a URI: http(s) URLs go through the
// http stream, everything else is treated as a local path.
func Open(uri string) (Stream, error) {
	switch {
	case strings.HasPrefix(uri, "http://"), strings.HasPrefix(uri, "https://"):
		return OpenHTTP(uri)
	case strings.Contains(uri, "://"):
		return nil, fmt.Errorf("input: unsupported scheme in %q", uri)
	default:
		return OpenFile(uri)
	}
}
