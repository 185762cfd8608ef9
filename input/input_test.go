package input_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/phonod/input"
)

func TestFileStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFFdata"), 0o644))

	s, err := input.OpenFile(path)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, path, s.URI())
	assert.Equal(t, "audio/wav", s.MIME())
	assert.Equal(t, int64(8), s.Size())
	assert.True(t, s.Seekable())

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(buf[:n]))

	require.NoError(t, s.Seek(4))
	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "data", string(buf[:n]))
}

func TestFileStreamMissing(t *testing.T) {
	_, err := input.OpenFile("/does/not/exist.flac")
	assert.Error(t, err)
}

func TestMemStream(t *testing.T) {
	s := input.OpenMem("mem://x", "audio/flac", []byte{1, 2, 3, 4})
	assert.Equal(t, int64(4), s.Size())
	assert.Equal(t, "audio/flac", s.MIME())

	buf := make([]byte, 8)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = s.Read(buf)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, s.Seek(2))
	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, buf[:n])
}

func TestOpenRoutes(t *testing.T) {
	_, err := input.Open("gopher://example.com/song")
	assert.Error(t, err)
}
