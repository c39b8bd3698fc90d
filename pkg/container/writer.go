package container

import (
	"io"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/columnar"
	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/logger"
	"github.com/ajitpratap0/parcel/pkg/metrics"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// DefaultRowGroupRows is the row group size used when none is configured
const DefaultRowGroupRows = 10000

// Sink receives the bytes of one container. Commit makes the output visible;
// Abort discards it. Exactly one of them is called.
type Sink interface {
	io.Writer
	Commit() error
	Abort() error
}

// WriterOptions configures a Writer
type WriterOptions struct {
	// RowGroupRows is the number of buffered rows that triggers a flush
	RowGroupRows int
	Compression  compression.Algorithm
	Level        compression.Level
	// Concurrency bounds the chunks compressed at once per row group
	Concurrency int
	CreatedBy   string
	Metadata    map[string]string
	Logger      *zap.Logger
}

type writerState int

const (
	stateOpen writerState = iota
	stateClosed
	stateAborted
)

func (s writerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateClosed:
		return "closed"
	default:
		return "aborted"
	}
}

// Writer appends records to a container. A Writer is not safe for concurrent
// use.
type Writer struct {
	sink    Sink
	enc     *columnar.Encoder
	opts    WriterOptions
	log     *zap.Logger
	state   writerState
	offset  int64
	pending []models.Record
	footer  Footer
}

// OpenWriter validates s and writes the container header to sink. Nothing
// touches the sink when the schema or options are invalid.
func OpenWriter(sink Sink, s *schema.Schema, opts WriterOptions) (*Writer, error) {
	if opts.RowGroupRows < 0 {
		return nil, errors.Newf(errors.ErrorTypeConfig, "row group rows must not be negative, got %d", opts.RowGroupRows)
	}
	if opts.RowGroupRows == 0 {
		opts.RowGroupRows = DefaultRowGroupRows
	}
	if opts.CreatedBy == "" {
		opts.CreatedBy = DefaultCreatedBy
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}

	enc, err := columnar.NewEncoder(s, columnar.Options{
		Compression: opts.Compression,
		Level:       opts.Level,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	w := &Writer{
		sink: sink,
		enc:  enc,
		opts: opts,
		log:  opts.Logger.With(zap.String("schema", s.Name)),
		footer: Footer{
			Version:     FormatVersion,
			CreatedBy:   opts.CreatedBy,
			Compression: enc.Compression(),
			Schema:      s.Clone(),
			KeyValue:    opts.Metadata,
		},
	}
	if err := w.write([]byte(Magic)); err != nil {
		w.fail(err)
		return nil, err
	}
	return w, nil
}

// Schema returns the schema the writer encodes
func (w *Writer) Schema() *schema.Schema { return w.enc.Schema() }

// Compression returns the codec every chunk is compressed with
func (w *Writer) Compression() compression.Algorithm { return w.enc.Compression() }

// NumRowGroups returns the row groups flushed so far
func (w *Writer) NumRowGroups() int { return len(w.footer.RowGroups) }

// NumRows returns the rows accepted so far, buffered ones included
func (w *Writer) NumRows() int64 { return w.footer.NumRows + int64(len(w.pending)) }

// Append validates the whole batch, then buffers it. A batch with any invalid
// record is rejected as a unit and leaves the writer usable.
func (w *Writer) Append(records ...models.Record) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := models.ValidateAll(records, w.enc.Schema(), w.NumRows()); err != nil {
		return err
	}
	for len(records) > 0 {
		room := w.opts.RowGroupRows - len(w.pending)
		if room > len(records) {
			room = len(records)
		}
		w.pending = append(w.pending, records[:room]...)
		records = records[room:]
		if len(w.pending) >= w.opts.RowGroupRows {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// AppendRowGroup writes a group encoded elsewhere, after any buffered rows.
// The group must carry the writer's schema and compression.
func (w *Writer) AppendRowGroup(g *columnar.EncodedRowGroup) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if !schema.Equal(g.Schema, w.enc.Schema()) {
		return errors.New(errors.ErrorTypeSchema, "row group schema differs from the writer schema")
	}
	if g.Compression != w.enc.Compression() {
		return errors.Newf(errors.ErrorTypeConfig, "row group compressed with %s, writer uses %s",
			g.Compression, w.enc.Compression())
	}
	if err := w.flush(); err != nil {
		return err
	}
	return w.writeGroup(g)
}

// Close flushes buffered rows, writes the footer and commits the sink
func (w *Writer) Close() error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := w.flush(); err != nil {
		return err
	}

	footer, err := encodeFooter(&w.footer)
	if err != nil {
		w.fail(err)
		return err
	}
	buf := appendTrailer(footer, uint32(len(footer)), xxhash.Sum64(footer))
	if err := w.write(buf); err != nil {
		w.fail(err)
		return err
	}
	if err := w.sink.Commit(); err != nil {
		w.state = stateAborted
		w.log.Warn("failed to commit container", zap.Error(err))
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to commit container")
	}

	w.state = stateClosed
	w.log.Debug("container sealed",
		zap.Int64("rows", w.footer.NumRows),
		zap.Int("row_groups", len(w.footer.RowGroups)),
		zap.Int64("bytes", w.offset))
	return nil
}

// Abort discards everything written. It is a no-op on an aborted writer.
func (w *Writer) Abort() error {
	switch w.state {
	case stateAborted:
		return nil
	case stateClosed:
		return errors.New(errors.ErrorTypeClosed, "writer is already closed")
	}
	w.state = stateAborted
	w.pending = nil
	if err := w.sink.Abort(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to abort container output")
	}
	return nil
}

func (w *Writer) checkOpen() error {
	if w.state != stateOpen {
		return errors.Newf(errors.ErrorTypeClosed, "writer is %s", w.state)
	}
	return nil
}

func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	timer := metrics.NewTimer("encode")
	g, err := w.enc.EncodeValidated(w.pending)
	if err != nil {
		w.fail(err)
		return err
	}
	metrics.EncodeDuration.WithLabelValues(string(g.Compression)).Observe(timer.Stop().Seconds())
	w.pending = w.pending[:0]
	return w.writeGroup(g)
}

func (w *Writer) writeGroup(g *columnar.EncodedRowGroup) error {
	info := RowGroupInfo{
		Offset:  w.offset,
		NumRows: g.NumRows,
		Columns: make([]columnar.ChunkInfo, len(g.Chunks)),
	}
	for i, c := range g.Chunks {
		ci := c.Info
		ci.Offset = w.offset
		if err := w.write(c.Data); err != nil {
			w.fail(err)
			return err
		}
		info.Columns[i] = ci
	}
	info.Length = w.offset - info.Offset

	w.footer.RowGroups = append(w.footer.RowGroups, info)
	w.footer.NumRows += g.NumRows
	metrics.RowGroupsWritten.WithLabelValues(string(g.Compression)).Inc()
	w.log.Debug("row group flushed",
		zap.Int("row_group", len(w.footer.RowGroups)-1),
		zap.Int64("rows", g.NumRows),
		zap.Int64("bytes", info.Length))
	return nil
}

func (w *Writer) write(p []byte) error {
	n, err := w.sink.Write(p)
	w.offset += int64(n)
	metrics.BytesWritten.Add(float64(n))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write container").WithDetail("offset", w.offset)
	}
	return nil
}

// fail aborts the sink after an unrecoverable error
func (w *Writer) fail(cause error) {
	w.log.Warn("aborting container", zap.Error(cause))
	w.state = stateAborted
	w.pending = nil
	if err := w.sink.Abort(); err != nil {
		w.log.Warn("failed to abort container output", zap.Error(err))
	}
}
