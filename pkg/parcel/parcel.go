// Package parcel is the public entry point for writing and reading parcel
// containers.
//
// Write and Read work on any container.Sink and container.Source. WriteFile,
// ReadFile and OpenFile resolve a location first, so the same calls work for
// local paths, s3://bucket/key and gs://bucket/key:
//
//	err := parcel.WriteFile(ctx, "orgs.parcel", schema, records,
//		parcel.WithCompression(compression.Zstd, compression.Default),
//		parcel.WithOverwrite(true))
//
//	records, err := parcel.ReadFile(ctx, "orgs.parcel",
//		parcel.WithColumns("name", "country"))
//
// A failed write always aborts its sink, so no partial container is ever
// visible at the target location.
package parcel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/container"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/logger"
	"github.com/ajitpratap0/parcel/pkg/metrics"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/observability"
	"github.com/ajitpratap0/parcel/pkg/schema"
	"github.com/ajitpratap0/parcel/pkg/storage"
)

// Write encodes records into a sealed container on sink. On any error the
// sink is aborted.
func Write(ctx context.Context, sink container.Sink, s *schema.Schema, records []models.Record, opts ...Option) (err error) {
	st := newSettings(opts)
	_, span := observability.StartSpan(ctx, "parcel.Write",
		attribute.Int("parcel.rows", len(records)),
		attribute.String("parcel.compression", string(st.writer.Compression)))
	defer func() {
		countError("write", err)
		span.End(err)
	}()
	return write(sink, s, records, st, span)
}

func write(sink container.Sink, s *schema.Schema, records []models.Record, st *settings, span *observability.Span) error {
	w, err := container.OpenWriter(sink, s, st.writer)
	if err != nil {
		if aerr := sink.Abort(); aerr != nil {
			logOr(st.writer.Logger).Warn("failed to abort container output", zap.Error(aerr))
		}
		return err
	}
	if err := w.Append(records...); err != nil {
		_ = w.Abort()
		return err
	}
	if err := w.Close(); err != nil {
		_ = w.Abort()
		return err
	}
	metrics.RowsWritten.WithLabelValues(string(w.Compression())).Add(float64(len(records)))
	span.SetAttribute("parcel.row_groups", w.NumRowGroups())
	return nil
}

// WriteFile writes records to a container at location. Without
// WithOverwrite an existing container is a conflict.
func WriteFile(ctx context.Context, location string, s *schema.Schema, records []models.Record, opts ...Option) (err error) {
	st := newSettings(opts)
	ctx, span := observability.StartSpan(ctx, "parcel.Write",
		attribute.String("parcel.location", location),
		attribute.Int("parcel.rows", len(records)),
		attribute.String("parcel.compression", string(st.writer.Compression)))
	defer func() {
		countError("write", err)
		span.End(err)
	}()

	ctx = logger.ContextWithFile(ctx, location)
	if st.writer.Logger == nil {
		st.writer.Logger = logger.WithContext(ctx)
	}
	sink, err := storage.Create(ctx, location, st.storage)
	if err != nil {
		return err
	}
	return write(sink, s, records, st, span)
}

// Read decodes every record from a sealed container, projected onto
// projection when it is not empty
func Read(ctx context.Context, src container.Source, projection ...string) ([]models.Record, error) {
	return read(ctx, src, "", newSettings([]Option{WithColumns(projection...)}))
}

// ReadFile decodes every record of the container at location
func ReadFile(ctx context.Context, location string, opts ...Option) ([]models.Record, error) {
	st := newSettings(opts)
	f, err := openFile(ctx, location, st)
	if err != nil {
		countError("read", err)
		return nil, err
	}
	defer f.Close()
	return read(ctx, f.src, location, st)
}

func read(ctx context.Context, src container.Source, location string, st *settings) (records []models.Record, err error) {
	_, span := observability.StartSpan(ctx, "parcel.Read",
		attribute.Int("parcel.columns", len(st.reader.Columns)))
	if location != "" {
		span.SetAttribute("parcel.location", location)
	}
	defer func() {
		countError("read", err)
		span.End(err)
	}()

	r, err := container.OpenReader(src, st.reader)
	if err != nil {
		return nil, err
	}
	span.SetAttribute("parcel.row_groups", r.NumRowGroups())
	span.SetAttribute("parcel.compression", string(r.Footer().Compression))
	records, err = r.ReadAll()
	if err != nil {
		return nil, err
	}
	span.SetAttribute("parcel.rows", len(records))
	return records, nil
}

// File is an open container at a storage location. It embeds the reader so
// callers can stream row groups instead of reading everything at once.
type File struct {
	*container.Reader
	src      storage.Source
	location string
}

// OpenFile opens the container at location for reading
func OpenFile(ctx context.Context, location string, opts ...Option) (*File, error) {
	f, err := openFile(ctx, location, newSettings(opts))
	if err != nil {
		countError("read", err)
	}
	return f, err
}

func openFile(ctx context.Context, location string, st *settings) (*File, error) {
	ctx = logger.ContextWithFile(ctx, location)
	if st.reader.Logger == nil {
		st.reader.Logger = logger.WithContext(ctx)
	}
	src, err := storage.Open(ctx, location, st.storage)
	if err != nil {
		return nil, err
	}
	r, err := container.OpenReader(src, st.reader)
	if err != nil {
		_ = src.Close()
		return nil, err
	}
	return &File{Reader: r, src: src, location: location}, nil
}

// Location returns the location the file was opened from
func (f *File) Location() string { return f.location }

// Size returns the container length in bytes
func (f *File) Size() int64 { return f.src.Size() }

// Close releases the underlying source
func (f *File) Close() error { return f.src.Close() }

func countError(operation string, err error) {
	if err == nil {
		return
	}
	metrics.Errors.WithLabelValues(operation, string(errors.TypeOf(err))).Inc()
}

func logOr(l *zap.Logger) *zap.Logger {
	if l == nil {
		return logger.Get()
	}
	return l
}
