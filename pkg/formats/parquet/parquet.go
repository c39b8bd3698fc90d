// Package parquet exports parcel records to Apache Parquet files and imports
// them back, going through Arrow record batches.
package parquet

import (
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/formats/arrowconv"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// DefaultRowGroupRows bounds each Parquet row group
const DefaultRowGroupRows = 10000

// readBatchRows is the number of rows decoded per Arrow batch on import
const readBatchRows = 1024

// Options configures a Parquet export
type Options struct {
	Compression  compression.Algorithm
	RowGroupRows int
}

func codecFor(algo compression.Algorithm) compress.Compression {
	switch algo {
	case compression.None:
		return compress.Codecs.Uncompressed
	case compression.Gzip:
		return compress.Codecs.Gzip
	case compression.Zstd:
		return compress.Codecs.Zstd
	case compression.LZ4:
		return compress.Codecs.Lz4Raw
	default:
		// Parquet has no S2 codec; snappy reads the same data shape
		return compress.Codecs.Snappy
	}
}

// Write encodes records, which must be valid for s, as a Parquet file. The
// Arrow schema is stored in the file so enums and narrow integers survive
// an import.
func Write(w io.Writer, s *schema.Schema, records []models.Record, opts Options) error {
	as, err := arrowconv.ToArrowSchema(s)
	if err != nil {
		return err
	}
	if err := models.ValidateAll(records, s, 0); err != nil {
		return err
	}
	rows := opts.RowGroupRows
	if rows <= 0 {
		rows = DefaultRowGroupRows
	}

	mem := memory.NewGoAllocator()
	props := parquet.NewWriterProperties(
		parquet.WithCompression(codecFor(opts.Compression)),
		parquet.WithMaxRowGroupLength(int64(rows)),
		parquet.WithAllocator(mem),
		parquet.WithCreatedBy("parcel"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithStoreSchema(),
		pqarrow.WithAllocator(mem),
	)
	fw, err := pqarrow.NewFileWriter(as, w, props, arrowProps)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create Parquet writer")
	}

	for start := 0; start < len(records); start += rows {
		end := min(start+rows, len(records))
		rec, err := arrowconv.ToArrow(mem, as, s, records[start:end])
		if err != nil {
			_ = fw.Close()
			return err
		}
		werr := fw.Write(rec)
		rec.Release()
		if werr != nil {
			_ = fw.Close()
			return errors.Wrap(werr, errors.ErrorTypeFile, "failed to write Parquet row group")
		}
	}
	if err := fw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Parquet writer")
	}
	return nil
}

// Read decodes a Parquet file into its schema and records
func Read(ctx context.Context, r parquet.ReaderAtSeeker) (*schema.Schema, []models.Record, error) {
	fr, err := file.NewParquetReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "failed to open Parquet file")
	}
	defer fr.Close()

	mem := memory.NewGoAllocator()
	ar, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{BatchSize: readBatchRows}, mem)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "failed to create Arrow reader")
	}
	as, err := ar.Schema()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "failed to read Parquet schema")
	}
	s, err := arrowconv.FromArrowSchema(as)
	if err != nil {
		return nil, nil, err
	}

	tbl, err := ar.ReadTable(ctx)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptColumnData, "failed to read Parquet data")
	}
	defer tbl.Release()

	records := make([]models.Record, 0, tbl.NumRows())
	tr := array.NewTableReader(tbl, readBatchRows)
	defer tr.Release()
	for tr.Next() {
		batch, err := arrowconv.FromArrow(s, tr.Record())
		if err != nil {
			return nil, nil, err
		}
		records = append(records, batch...)
	}
	if err := tr.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptColumnData, "failed to iterate Parquet data")
	}
	if err := models.ValidateAll(records, s, 0); err != nil {
		return nil, nil, err
	}
	return s, records, nil
}
