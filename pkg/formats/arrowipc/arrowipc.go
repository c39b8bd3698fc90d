// Package arrowipc exports parcel records as an Arrow IPC stream and imports
// them back.
package arrowipc

import (
	"io"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/formats/arrowconv"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// DefaultBatchRows bounds each record batch in the stream
const DefaultBatchRows = 10000

// Options configures an IPC export
type Options struct {
	// Compression applies IPC body compression; only zstd and lz4 exist in
	// the IPC format, anything else writes uncompressed buffers
	Compression compression.Algorithm
	BatchRows   int
}

// Write encodes records, which must be valid for s, as an IPC stream
func Write(w io.Writer, s *schema.Schema, records []models.Record, opts Options) error {
	as, err := arrowconv.ToArrowSchema(s)
	if err != nil {
		return err
	}
	if err := models.ValidateAll(records, s, 0); err != nil {
		return err
	}
	rows := opts.BatchRows
	if rows <= 0 {
		rows = DefaultBatchRows
	}

	mem := memory.NewGoAllocator()
	ipcOpts := []ipc.Option{ipc.WithSchema(as), ipc.WithAllocator(mem)}
	switch opts.Compression {
	case compression.Zstd:
		ipcOpts = append(ipcOpts, ipc.WithZstd())
	case compression.LZ4:
		ipcOpts = append(ipcOpts, ipc.WithLZ4())
	}
	iw := ipc.NewWriter(w, ipcOpts...)

	for start := 0; start < len(records); start += rows {
		end := min(start+rows, len(records))
		rec, err := arrowconv.ToArrow(mem, as, s, records[start:end])
		if err != nil {
			_ = iw.Close()
			return err
		}
		werr := iw.Write(rec)
		rec.Release()
		if werr != nil {
			_ = iw.Close()
			return errors.Wrap(werr, errors.ErrorTypeFile, "failed to write Arrow batch")
		}
	}
	if err := iw.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close Arrow stream")
	}
	return nil
}

// Read decodes an IPC stream into its schema and records
func Read(r io.Reader) (*schema.Schema, []models.Record, error) {
	ir, err := ipc.NewReader(r, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptContainer, "failed to open Arrow stream")
	}
	defer ir.Release()

	s, err := arrowconv.FromArrowSchema(ir.Schema())
	if err != nil {
		return nil, nil, err
	}
	var records []models.Record
	for ir.Next() {
		batch, err := arrowconv.FromArrow(s, ir.Record())
		if err != nil {
			return nil, nil, err
		}
		records = append(records, batch...)
	}
	if err := ir.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeCorruptColumnData, "failed to read Arrow batch")
	}
	if err := models.ValidateAll(records, s, 0); err != nil {
		return nil, nil, err
	}
	return s, records, nil
}
