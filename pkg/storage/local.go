package storage

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"golang.org/x/exp/mmap"

	"github.com/ajitpratap0/parcel/pkg/errors"
)

// LocalSink stages a container in a pending file next to its target and
// moves it into place on Commit
type LocalSink struct {
	path      string
	overwrite bool
	pending   *renameio.PendingFile
	buf       *bufio.Writer
	done      bool
}

// CreateLocal stages a container for path. Without overwrite an existing
// file is a conflict, checked here and again on Commit.
func CreateLocal(path string, overwrite bool) (*LocalSink, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, conflict(path)
		}
	}
	dir := filepath.Dir(path)
	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(dir), renameio.WithPermissions(0o644))
	if err != nil {
		return nil, fileError(err, "failed to create container file", path)
	}
	return &LocalSink{
		path:      path,
		overwrite: overwrite,
		pending:   pending,
		buf:       bufio.NewWriterSize(pending, 1<<20),
	}, nil
}

func (s *LocalSink) Write(p []byte) (int, error) {
	if s.done {
		return 0, errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	return s.buf.Write(p)
}

// Commit syncs the staged file and moves it to its final path
func (s *LocalSink) Commit() error {
	if s.done {
		return errors.New(errors.ErrorTypeClosed, "sink is finished")
	}
	s.done = true
	defer s.pending.Cleanup() //nolint:errcheck
	if err := s.buf.Flush(); err != nil {
		return fileError(err, "failed to flush container", s.path)
	}

	if s.overwrite {
		if err := s.pending.CloseAtomicallyReplace(); err != nil {
			return fileError(err, "failed to move container into place", s.path)
		}
		return nil
	}
	if err := s.pending.Sync(); err != nil {
		return fileError(err, "failed to sync container", s.path)
	}
	// Link fails when the target exists, which closes the race left open by
	// the check in CreateLocal
	err := os.Link(s.pending.Name(), s.path)
	if os.IsExist(err) {
		return conflict(s.path)
	}
	if err != nil {
		return fileError(err, "failed to move container into place", s.path)
	}
	return nil
}

// Abort removes the staged file
func (s *LocalSink) Abort() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.pending.Cleanup()
}

// LocalSource reads a container through a read-only memory map
type LocalSource struct {
	r *mmap.ReaderAt
}

// OpenLocal maps the file at path
func OpenLocal(path string) (*LocalSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fileError(err, "failed to open container", path)
	}
	return &LocalSource{r: r}, nil
}

func (s *LocalSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }

// Size returns the file length
func (s *LocalSource) Size() int64 { return int64(s.r.Len()) }

// Close unmaps the file
func (s *LocalSource) Close() error { return s.r.Close() }
