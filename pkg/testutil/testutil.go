// Package testutil provides helpers shared by parcel's tests
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a logger that writes to the test output
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext returns a context that is cancelled after 30 seconds or when
// the test ends, whichever comes first
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TempPath returns a path named name inside a fresh temporary directory.
// Nothing is created at the path itself.
func TempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// FlipByte inverts the bits of the byte at offset in the file at path.
// A negative offset counts back from the end of the file.
func FlipByte(t *testing.T, path string, offset int64) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if offset < 0 {
		offset += int64(len(data))
	}
	require.True(t, offset >= 0 && offset < int64(len(data)), "offset %d outside a %d byte file", offset, len(data))
	data[offset] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// DirEntries lists the names in dir
func DirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}
