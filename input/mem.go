package input

import (
	"bytes"
	"io"
)

// memStream serves a byte slice; used by tests and archive entries that
// were already extracted to memory.
type memStream struct {
	uri    string
	mime   string
	reader *bytes.Reader
}

// OpenMem wraps a byte slice as a seekable stream.
func OpenMem(uri, mime string, data []byte) Stream {
	return &memStream{uri: uri, mime: mime, reader: bytes.NewReader(data)}
}

func (s *memStream) URI() string    { return s.uri }
func (s *memStream) MIME() string   { return s.mime }
func (s *memStream) Size() int64    { return int64(s.reader.Size()) }
func (s *memStream) Seekable() bool { return true }

func (s *memStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *memStream) Seek(offset int64) error {
	_, err := s.reader.Seek(offset, io.SeekStart)
	return err
}

func (s *memStream) Close() error { return nil }
