package input

import (
	"fmt"
	"io"
	"net/http"
	"sync"
)

// httpBufferSize is the prefetch ring capacity; reads from the decoder are
// served from here while a goroutine keeps pulling from the response body.
const httpBufferSize = 512 * 1024

// httpStream reads an http(s) resource through a prefetch ring so short
// network stalls do not starve the decoder. Go's blocking reads in a
// goroutine stand in for the readiness-loop driven transfer of the async
// stream design; the decoder-facing semantics are identical.
type httpStream struct {
	uri    string
	mime   string
	size   int64
	ranges bool

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	start  int
	length int
	eof    bool
	err    error
	closed bool
	// gen invalidates a superseded prefetch goroutine after Seek
	gen int

	body io.ReadCloser
}

// OpenHTTP issues a GET and starts the prefetch. Seek is supported when the
// server advertises byte ranges.
func OpenHTTP(uri string) (Stream, error) {
	resp, err := http.Get(uri)
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("input: %s: unexpected status %s", uri, resp.Status)
	}

	s := &httpStream{
		uri:    uri,
		mime:   resp.Header.Get("Content-Type"),
		size:   SizeUnknown,
		ranges: resp.Header.Get("Accept-Ranges") == "bytes",
		buf:    make([]byte, httpBufferSize),
		body:   resp.Body,
	}
	if resp.ContentLength >= 0 {
		s.size = resp.ContentLength
	}
	s.cond = sync.NewCond(&s.mu)
	go s.fill(resp.Body, 0)
	return s, nil
}

// fill pulls from the response body into the ring until EOF, error, close
// or until a Seek supersedes it; it parks while the ring is full.
func (s *httpStream) fill(body io.ReadCloser, gen int) {
	chunk := make([]byte, 16*1024)
	for {
		n, err := body.Read(chunk)

		s.mu.Lock()
		for s.length+n > len(s.buf) && !s.closed && s.gen == gen {
			s.cond.Wait()
		}
		if s.closed || s.gen != gen {
			s.mu.Unlock()
			return
		}
		for i := 0; i < n; i++ {
			s.buf[(s.start+s.length+i)%len(s.buf)] = chunk[i]
		}
		s.length += n
		if err != nil {
			if err == io.EOF {
				s.eof = true
			} else {
				s.err = err
			}
			s.cond.Broadcast()
			s.mu.Unlock()
			return
		}
		s.cond.Broadcast()
		s.mu.Unlock()
	}
}

func (s *httpStream) URI() string    { return s.uri }
func (s *httpStream) MIME() string   { return s.mime }
func (s *httpStream) Size() int64    { return s.size }
func (s *httpStream) Seekable() bool { return s.ranges }

func (s *httpStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.length == 0 && !s.eof && s.err == nil && !s.closed {
		s.cond.Wait()
	}
	if s.closed {
		return 0, io.ErrClosedPipe
	}
	if s.length == 0 {
		if s.err != nil {
			return 0, s.err
		}
		return 0, io.EOF
	}
	n := len(p)
	if n > s.length {
		n = s.length
	}
	for i := 0; i < n; i++ {
		p[i] = s.buf[(s.start+i)%len(s.buf)]
	}
	s.start = (s.start + n) % len(s.buf)
	s.length -= n
	s.cond.Broadcast()
	return n, nil
}

// Seek re-requests the resource from the target offset with a Range header
// and restarts the prefetch.
func (s *httpStream) Seek(offset int64) error {
	if !s.ranges {
		return ErrNotSeekable
	}

	req, err := http.NewRequest(http.MethodGet, s.uri, nil)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if resp.StatusCode != http.StatusPartialContent {
		resp.Body.Close()
		return fmt.Errorf("input: %s: range request refused (%s)", s.uri, resp.Status)
	}

	s.mu.Lock()
	// supersede the old prefetch and reset the ring
	s.gen++
	gen := s.gen
	s.cond.Broadcast()
	oldBody := s.body
	s.body = resp.Body
	s.start = 0
	s.length = 0
	s.eof = false
	s.err = nil
	s.mu.Unlock()

	oldBody.Close()
	go s.fill(resp.Body, gen)
	return nil
}

func (s *httpStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	body := s.body
	s.mu.Unlock()
	return body.Close()
}
