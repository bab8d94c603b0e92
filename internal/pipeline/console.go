package pipeline

import (
	"bytes"
	"io"
	"sync"
)

// SyncWriter serializes writes from concurrent entries onto one writer.
type SyncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSyncWriter wraps w.
func NewSyncWriter(w io.Writer) *SyncWriter { return &SyncWriter{w: w} }

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// prefixWriter emits complete lines prefixed with a tag. Partial lines are
// held until the next newline or Flush.
type prefixWriter struct {
	w      io.Writer
	prefix []byte
	buf    bytes.Buffer
}

func newPrefixWriter(w io.Writer, prefix string) *prefixWriter {
	return &prefixWriter{w: w, prefix: []byte(prefix)}
}

func (p *prefixWriter) Write(b []byte) (int, error) {
	p.buf.Write(b)
	for {
		line, err := p.buf.ReadBytes('\n')
		if err != nil {
			// no newline yet: put the partial line back
			rest := append([]byte(nil), line...)
			p.buf.Reset()
			p.buf.Write(rest)
			break
		}
		if werr := p.emit(line); werr != nil {
			return len(b), werr
		}
	}
	return len(b), nil
}

// Flush writes any pending partial line.
func (p *prefixWriter) Flush() error {
	if p.buf.Len() == 0 {
		return nil
	}
	line := append(p.buf.Bytes(), '\n')
	p.buf.Reset()
	return p.emit(line)
}

func (p *prefixWriter) emit(line []byte) error {
	out := make([]byte, 0, len(p.prefix)+len(line))
	out = append(out, p.prefix...)
	out = append(out, line...)
	_, err := p.w.Write(out)
	return err
}
