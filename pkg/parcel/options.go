package parcel

import (
	"maps"

	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/config"
	"github.com/ajitpratap0/parcel/pkg/container"
	"github.com/ajitpratap0/parcel/pkg/storage"
)

// Option adjusts a Write or Read call
type Option func(*settings)

type settings struct {
	writer  container.WriterOptions
	reader  container.ReaderOptions
	storage storage.Options
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// WithConfig applies every writer, reader and storage setting from cfg.
// Options after it override individual values.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) {
		columns := s.reader.Columns
		s.writer = cfg.WriterOptions(s.writer.Logger)
		s.reader = cfg.ReaderOptions(columns, s.reader.Logger)
		s.storage = cfg.StorageOptions(s.storage.Logger)
	}
}

// WithCompression sets the chunk codec and level
func WithCompression(algo compression.Algorithm, level compression.Level) Option {
	return func(s *settings) {
		s.writer.Compression = algo
		s.writer.Level = level
	}
}

// WithRowGroupRows sets how many rows go into each row group
func WithRowGroupRows(n int) Option {
	return func(s *settings) { s.writer.RowGroupRows = n }
}

// WithConcurrency bounds the chunks encoded at once
func WithConcurrency(n int) Option {
	return func(s *settings) { s.writer.Concurrency = n }
}

// WithMetadata stores key/value pairs in the footer
func WithMetadata(kv map[string]string) Option {
	kv = maps.Clone(kv)
	return func(s *settings) { s.writer.Metadata = kv }
}

// WithOverwrite lets WriteFile replace an existing container
func WithOverwrite(overwrite bool) Option {
	return func(s *settings) { s.storage.Overwrite = overwrite }
}

// WithColumns projects reads onto the given dotted field paths
func WithColumns(paths ...string) Option {
	return func(s *settings) { s.reader.Columns = paths }
}

// WithoutChecksums skips chunk checksum verification on read
func WithoutChecksums() Option {
	return func(s *settings) { s.reader.SkipChecksums = true }
}

// WithLogger routes writer, reader and storage logs to l
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.writer.Logger = l
		s.reader.Logger = l
		s.storage.Logger = l
	}
}
