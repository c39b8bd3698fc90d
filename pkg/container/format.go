// Package container persists row groups in a sealed, self-describing file.
//
// # Layout
//
//	"PCL1"                       4-byte header magic
//	[row group column chunks]... chunks of every row group, back to back
//	footer                       JSON: schema, compression, chunk locations
//	footer length   uint32 LE    \
//	footer xxhash64 uint64 LE     | 16-byte trailer
//	"PCL1"                       /
//
// A reader locates everything from the trailer, so a file is only valid once
// Close has written the footer. A truncated or partially written file fails
// with a corrupt_container error before any row is read.
package container

import (
	"encoding/binary"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/parcel/pkg/columnar"
	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

const (
	// Magic opens and closes every container
	Magic = "PCL1"
	// FormatVersion is written into every footer
	FormatVersion = 1

	headerSize  = len(Magic)
	trailerSize = 4 + 8 + len(Magic)
)

// DefaultCreatedBy is recorded in footers when the writer names nobody else
const DefaultCreatedBy = "parcel"

// Footer describes the contents of a sealed container
type Footer struct {
	Version     int                   `json:"version"`
	CreatedBy   string                `json:"created_by"`
	Compression compression.Algorithm `json:"compression"`
	Schema      *schema.Schema        `json:"schema"`
	RowGroups   []RowGroupInfo        `json:"row_groups"`
	NumRows     int64                 `json:"num_rows"`
	KeyValue    map[string]string     `json:"key_value,omitempty"`
}

// RowGroupInfo locates one row group and its column chunks. Chunk offsets
// are absolute file offsets.
type RowGroupInfo struct {
	Offset  int64                `json:"offset"`
	Length  int64                `json:"length"`
	NumRows int64                `json:"num_rows"`
	Columns []columnar.ChunkInfo `json:"columns"`
}

func encodeFooter(f *Footer) ([]byte, error) {
	data, err := gojson.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode footer")
	}
	return data, nil
}

func appendTrailer(buf []byte, footerLen uint32, checksum uint64) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, footerLen)
	buf = binary.LittleEndian.AppendUint64(buf, checksum)
	return append(buf, Magic...)
}

// validate checks that the footer is internally consistent and that every
// chunk lies inside the data region [headerSize, dataEnd)
func (f *Footer) validate(dataEnd int64) error {
	if f.Version != FormatVersion {
		return corruptf("unsupported format version %d", f.Version)
	}
	if f.Schema == nil {
		return corruptf("footer has no schema")
	}
	if err := schema.Validate(f.Schema); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCorruptContainer, "footer schema is invalid")
	}
	if _, err := compression.ParseAlgorithm(string(f.Compression)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeCorruptContainer, "footer names an unknown compression")
	}

	leaves := f.Schema.Leaves()
	var rows int64
	next := int64(headerSize)
	for i, rg := range f.RowGroups {
		if rg.NumRows < 0 || rg.Offset != next || rg.Length < 0 || rg.Offset+rg.Length > dataEnd {
			return corruptf("row group out of bounds").WithDetail("row_group", i)
		}
		if len(rg.Columns) != len(leaves) {
			return corruptf("row group has %d columns, schema has %d leaves", len(rg.Columns), len(leaves)).
				WithDetail("row_group", i)
		}
		chunkAt := rg.Offset
		for j, c := range rg.Columns {
			if c.Path != leaves[j].Path {
				return corruptf("column %q out of schema order", c.Path).WithDetail("row_group", i)
			}
			if c.Offset != chunkAt || c.Length < 0 || c.NumValues < rg.NumRows || c.UncompressedLength < 0 {
				return corruptf("column chunk %q out of bounds", c.Path).WithDetail("row_group", i)
			}
			if c.NumValues > columnar.MaxEntries(leaves[j], c.UncompressedLength) {
				return corruptf("column chunk %q claims more entries than it can hold", c.Path).
					WithDetail("row_group", i).WithDetail("num_values", c.NumValues)
			}
			if leaves[j].MaxRep == 0 && c.NumValues != rg.NumRows {
				return corruptf("column chunk %q entry count differs from the row count", c.Path).
					WithDetail("row_group", i)
			}
			chunkAt += c.Length
		}
		if chunkAt != rg.Offset+rg.Length {
			return corruptf("row group length does not cover its chunks").WithDetail("row_group", i)
		}
		next = chunkAt
		rows += rg.NumRows
	}
	if next != dataEnd {
		return corruptf("unaccounted bytes before the footer")
	}
	if rows != f.NumRows {
		return corruptf("row groups hold %d rows, footer claims %d", rows, f.NumRows)
	}
	return nil
}

func corruptf(format string, args ...interface{}) *errors.Error {
	return errors.Newf(errors.ErrorTypeCorruptContainer, format, args...)
}
