// Package formats moves parcel records in and out of other file formats:
// Avro object container files, Parquet, and Arrow IPC streams.
package formats

import (
	"context"
	"io"
	"strings"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/formats/arrowipc"
	"github.com/ajitpratap0/parcel/pkg/formats/avro"
	"github.com/ajitpratap0/parcel/pkg/formats/parquet"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// Format names an interchange format
type Format string

const (
	Avro    Format = "avro"
	Parquet Format = "parquet"
	Arrow   Format = "arrow"
)

// All lists every supported format
var All = []Format{Avro, Parquet, Arrow}

// ParseFormat resolves a format name, case-insensitively
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(name))
	for _, known := range All {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeConfig, "unknown format %q", name).WithDetail("format", name)
}

// Input is what an import reads from. Parquet needs random access; the
// stream formats only read sequentially.
type Input interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// ExportOptions tune an export
type ExportOptions struct {
	Compression compression.Algorithm
	// RowGroupRows bounds Parquet row groups and Arrow batches
	RowGroupRows int
}

// Export writes records, which must be valid for s, to w in format
func Export(w io.Writer, format Format, s *schema.Schema, records []models.Record, opts ExportOptions) error {
	switch format {
	case Avro:
		return avro.Write(w, s, records, avro.Options{Compression: opts.Compression})
	case Parquet:
		return parquet.Write(w, s, records, parquet.Options{
			Compression:  opts.Compression,
			RowGroupRows: opts.RowGroupRows,
		})
	case Arrow:
		return arrowipc.Write(w, s, records, arrowipc.Options{
			Compression: opts.Compression,
			BatchRows:   opts.RowGroupRows,
		})
	}
	_, err := ParseFormat(string(format))
	return err
}

// Import reads a schema and its records from in
func Import(ctx context.Context, in Input, format Format) (*schema.Schema, []models.Record, error) {
	switch format {
	case Avro:
		return avro.Read(in)
	case Parquet:
		return parquet.Read(ctx, in)
	case Arrow:
		return arrowipc.Read(in)
	}
	_, err := ParseFormat(string(format))
	return nil, nil, err
}
