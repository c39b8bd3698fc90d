package storage

import (
	"bytes"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

// MemorySink collects a container in memory. Bytes is only valid after
// Commit.
type MemorySink struct {
	buf       bytes.Buffer
	committed bool
	aborted   bool
}

// NewMemorySink returns an empty in-memory sink
func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(p []byte) (int, error) {
	if s.committed || s.aborted {
		return 0, errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	return s.buf.Write(p)
}

// Commit seals the buffer
func (s *MemorySink) Commit() error {
	if s.committed || s.aborted {
		return errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	s.committed = true
	return nil
}

// Abort drops the buffer
func (s *MemorySink) Abort() error {
	s.aborted = true
	s.buf.Reset()
	return nil
}

// Committed reports whether the sink holds a complete container
func (s *MemorySink) Committed() bool { return s.committed }

// Bytes returns the committed container, nil before Commit
func (s *MemorySink) Bytes() []byte {
	if !s.committed {
		return nil
	}
	return s.buf.Bytes()
}

// MemorySource serves a container held in memory
type MemorySource struct {
	*bytes.Reader
}

// NewMemorySource wraps data, which must not change while the source is used
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{Reader: bytes.NewReader(data)}
}

// Close is a no-op
func (s *MemorySource) Close() error { return nil }
