package input

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// suffix to MIME map for the formats the bundled decoder plugins accept.
// Content sniffing is left to the decoder plugins themselves; the suffix is
// only a routing hint.
var suffixMIME = map[string]string{
	".wav":  "audio/wav",
	".wave": "audio/wav",
	".aif":  "audio/aiff",
	".aiff": "audio/aiff",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".pcm":  "audio/x-raw-pcm",
	".raw":  "audio/x-raw-pcm",
}

// fileStream reads a local file.
type fileStream struct {
	uri  string
	mime string
	size int64
	f    *os.File
}

// OpenFile opens a local file as a stream.
func OpenFile(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("input: %w", err)
	}
	return &fileStream{
		uri:  path,
		mime: suffixMIME[strings.ToLower(filepath.Ext(path))],
		size: fi.Size(),
		f:    f,
	}, nil
}

func (s *fileStream) URI() string    { return s.uri }
func (s *fileStream) MIME() string   { return s.mime }
func (s *fileStream) Size() int64    { return s.size }
func (s *fileStream) Seekable() bool { return true }

func (s *fileStream) Read(p []byte) (int, error) {
	return s.f.Read(p)
}

func (s *fileStream) Seek(offset int64) error {
	_, err := s.f.Seek(offset, io.SeekStart)
	return err
}

func (s *fileStream) Close() error {
	return s.f.Close()
}
