package container

import (
	"encoding/binary"
	"io"
	"iter"

	"github.com/cespare/xxhash/v2"
	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/columnar"
	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/logger"
	"github.com/ajitpratap0/parcel/pkg/metrics"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// Source gives random access to a sealed container
type Source interface {
	io.ReaderAt
	Size() int64
}

// ReaderOptions configures a Reader
type ReaderOptions struct {
	// Columns projects the stored schema; empty reads every field
	Columns []string
	// SkipChecksums disables chunk checksum verification
	SkipChecksums bool
	Logger        *zap.Logger
}

// Reader decodes row groups from a sealed container. Its methods only read
// shared state, so one Reader may serve several goroutines.
type Reader struct {
	src       Source
	footer    *Footer
	projected *schema.Schema
	leaves    []schema.Leaf
	// chunkIndex maps each projected leaf to its column position in the file
	chunkIndex []int
	comp       compression.Compressor
	verify     bool
	log        *zap.Logger
}

// OpenReader parses and validates the footer, then projects the stored
// schema. An unknown projection path fails here, before any row is read.
func OpenReader(src Source, opts ReaderOptions) (*Reader, error) {
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}
	footer, err := ReadFooter(src)
	if err != nil {
		return nil, err
	}

	projected, err := schema.Project(footer.Schema, opts.Columns)
	if err != nil {
		return nil, err
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: footer.Compression})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "footer names an unusable compression")
	}

	position := make(map[string]int)
	for i, l := range footer.Schema.Leaves() {
		position[l.Path] = i
	}
	leaves := projected.Leaves()
	index := make([]int, len(leaves))
	for i, l := range leaves {
		index[i] = position[l.Path]
	}

	return &Reader{
		src:        src,
		footer:     footer,
		projected:  projected,
		leaves:     leaves,
		chunkIndex: index,
		comp:       comp,
		verify:     !opts.SkipChecksums,
		log:        opts.Logger,
	}, nil
}

// ReadFooter reads and validates the footer of a container
func ReadFooter(src Source) (*Footer, error) {
	size := src.Size()
	if size < int64(headerSize+trailerSize) {
		return nil, corruptf("file too small to be a container").WithDetail("size", size)
	}

	head := make([]byte, headerSize)
	if err := readAt(src, head, 0); err != nil {
		return nil, err
	}
	if string(head) != Magic {
		return nil, corruptf("missing header magic")
	}

	trailer := make([]byte, trailerSize)
	if err := readAt(src, trailer, size-int64(trailerSize)); err != nil {
		return nil, err
	}
	if string(trailer[12:]) != Magic {
		return nil, corruptf("missing trailer magic, the file may be truncated")
	}
	footerLen := int64(binary.LittleEndian.Uint32(trailer[0:4]))
	checksum := binary.LittleEndian.Uint64(trailer[4:12])
	footerStart := size - int64(trailerSize) - footerLen
	if footerLen == 0 || footerStart < int64(headerSize) {
		return nil, corruptf("footer length %d out of range", footerLen)
	}

	raw := make([]byte, footerLen)
	if err := readAt(src, raw, footerStart); err != nil {
		return nil, err
	}
	if xxhash.Sum64(raw) != checksum {
		return nil, corruptf("footer checksum mismatch")
	}

	var footer Footer
	if err := gojson.Unmarshal(raw, &footer); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "failed to decode footer")
	}
	if err := footer.validate(footerStart); err != nil {
		return nil, err
	}
	return &footer, nil
}

// Schema returns the projected schema records are assembled with
func (r *Reader) Schema() *schema.Schema { return r.projected }

// FileSchema returns the schema stored in the footer
func (r *Reader) FileSchema() *schema.Schema { return r.footer.Schema }

// Footer returns the parsed footer
func (r *Reader) Footer() *Footer { return r.footer }

// NumRows returns the total row count of the file
func (r *Reader) NumRows() int64 { return r.footer.NumRows }

// NumRowGroups returns the number of row groups in the file
func (r *Reader) NumRowGroups() int { return len(r.footer.RowGroups) }

// Metadata returns a copy of the footer's key/value metadata
func (r *Reader) Metadata() map[string]string {
	out := make(map[string]string, len(r.footer.KeyValue))
	for k, v := range r.footer.KeyValue {
		out[k] = v
	}
	return out
}

// ReadRowGroup decodes the projected columns of row group i
func (r *Reader) ReadRowGroup(i int) ([]models.Record, error) {
	if i < 0 || i >= len(r.footer.RowGroups) {
		return nil, errors.Newf(errors.ErrorTypeInternal, "row group %d out of range [0, %d)", i, len(r.footer.RowGroups))
	}
	rg := r.footer.RowGroups[i]

	infos := make([]columnar.ChunkInfo, len(r.leaves))
	chunks := make([][]byte, len(r.leaves))
	for j, col := range r.chunkIndex {
		info := rg.Columns[col]
		data := make([]byte, info.Length)
		if err := readAt(r.src, data, info.Offset); err != nil {
			return nil, err.WithDetail("row_group", i)
		}
		infos[j] = info
		chunks[j] = data
	}

	records, err := columnar.DecodeRowGroup(r.projected, infos, chunks, rg.NumRows, r.comp, r.verify)
	if err != nil {
		r.log.Warn("failed to decode row group", zap.Int("row_group", i), zap.Error(err))
		if e, ok := err.(*errors.Error); ok {
			return nil, e.WithDetail("row_group", i)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeCorruptColumnData, "failed to decode row group").
			WithDetail("row_group", i)
	}
	metrics.RowGroupsRead.Inc()
	metrics.RowsRead.Add(float64(len(records)))
	return records, nil
}

// Records iterates every row of the file lazily, one row group at a time.
// Iteration stops after the first error.
func (r *Reader) Records() iter.Seq2[models.Record, error] {
	return func(yield func(models.Record, error) bool) {
		for i := range r.footer.RowGroups {
			records, err := r.ReadRowGroup(i)
			if err != nil {
				yield(models.Record{}, err)
				return
			}
			for _, rec := range records {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// ReadAll decodes every row group in order
func (r *Reader) ReadAll() ([]models.Record, error) {
	out := make([]models.Record, 0, r.footer.NumRows)
	for i := range r.footer.RowGroups {
		records, err := r.ReadRowGroup(i)
		if err != nil {
			return nil, err
		}
		out = append(out, records...)
	}
	return out, nil
}

// readAttempts bounds the reads of one range while the source keeps
// reporting retryable failures
const readAttempts = 3

func readAt(src Source, p []byte, off int64) *errors.Error {
	var err error
	for attempt := 0; attempt < readAttempts; attempt++ {
		var n int
		n, err = src.ReadAt(p, off)
		if n == len(p) {
			return nil
		}
		if err == nil || err == io.EOF || err == io.ErrUnexpectedEOF {
			return corruptf("unexpected end of container").WithDetail("offset", off)
		}
		if !errors.IsRetryable(err) {
			break
		}
	}
	return errors.Wrap(err, errors.ErrorTypeFile, "failed to read container").WithDetail("offset", off)
}
