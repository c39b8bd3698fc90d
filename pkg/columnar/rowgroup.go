package columnar

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

// Options configures row group encoding
type Options struct {
	Compression compression.Algorithm
	Level       compression.Level
	// Concurrency bounds the chunks compressed at once, 0 means GOMAXPROCS
	Concurrency int
}

// EncodedRowGroup is a shredded, compressed batch of rows. Chunk offsets are
// relative to the start of the group until a container places it.
type EncodedRowGroup struct {
	Schema      *schema.Schema
	Compression compression.Algorithm
	NumRows     int64
	Chunks      []*EncodedChunk
}

// Size returns the total encoded byte length of the group
func (g *EncodedRowGroup) Size() int64 {
	var n int64
	for _, c := range g.Chunks {
		n += c.Info.Length
	}
	return n
}

// Encoder turns record batches into row groups. It is safe for concurrent
// use, so independent batches may be encoded in parallel.
type Encoder struct {
	schema      *schema.Schema
	comp        compression.Compressor
	concurrency int
}

// NewEncoder validates s and prepares the configured compressor
func NewEncoder(s *schema.Schema, opts Options) (*Encoder, error) {
	if err := schema.Validate(s); err != nil {
		return nil, err
	}
	comp, err := compression.NewCompressor(&compression.Config{Algorithm: opts.Compression, Level: opts.Level})
	if err != nil {
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &Encoder{schema: s, comp: comp, concurrency: concurrency}, nil
}

// Schema returns the schema the encoder writes
func (e *Encoder) Schema() *schema.Schema { return e.schema }

// Compression returns the algorithm applied to every chunk
func (e *Encoder) Compression() compression.Algorithm { return e.comp.Algorithm() }

// Encode validates records and encodes them as one row group
func (e *Encoder) Encode(records []models.Record) (*EncodedRowGroup, error) {
	if err := models.ValidateAll(records, e.schema, 0); err != nil {
		return nil, err
	}
	return e.EncodeValidated(records)
}

// EncodeValidated encodes records that have already passed validation
func (e *Encoder) EncodeValidated(records []models.Record) (*EncodedRowGroup, error) {
	cols := Shred(e.schema, records)
	chunks := make([]*EncodedChunk, len(cols))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, col := range cols {
		g.Go(func() error {
			c, err := EncodeChunk(col, e.comp)
			if err != nil {
				return err
			}
			chunks[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var offset int64
	for _, c := range chunks {
		c.Info.Offset = offset
		offset += c.Info.Length
	}
	return &EncodedRowGroup{
		Schema:      e.schema,
		Compression: e.comp.Algorithm(),
		NumRows:     int64(len(records)),
		Chunks:      chunks,
	}, nil
}

// EncodeRowGroup is a one-shot NewEncoder plus Encode
func EncodeRowGroup(s *schema.Schema, records []models.Record, opts Options) (*EncodedRowGroup, error) {
	enc, err := NewEncoder(s, opts)
	if err != nil {
		return nil, err
	}
	return enc.Encode(records)
}

// DecodeRowGroup decompresses the chunks of a projected row group and
// assembles its records. chunks and infos follow the leaf order of s.
func DecodeRowGroup(s *schema.Schema, infos []ChunkInfo, chunks [][]byte, numRows int64, comp compression.Compressor, verify bool) ([]models.Record, error) {
	leaves := s.Leaves()
	if len(infos) != len(leaves) || len(chunks) != len(leaves) {
		return nil, errors.Newf(errors.ErrorTypeCorruptColumnData,
			"expected %d chunks, got %d", len(leaves), len(chunks))
	}

	cols := make([]*Column, len(leaves))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range leaves {
		g.Go(func() error {
			c, err := DecodeChunk(leaves[i], infos[i], chunks[i], comp, verify)
			if err != nil {
				return err
			}
			cols[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Assemble(s, cols, numRows)
}
