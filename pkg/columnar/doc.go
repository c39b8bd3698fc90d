// Package columnar shreds nested records into per-leaf column streams and
// assembles them back.
//
// # Overview
//
// Every leaf of a schema becomes one Column holding a sequence of
// (repetition level, definition level, value) triples:
//
//   - the definition level counts how many optional or repeated fields on the
//     path to the leaf are present, so a missing value records how far down
//     the path the data reached
//   - the repetition level names the repeated field on the path that started
//     a new element, with 0 meaning a new row
//
// Values are stored only where the definition level reaches its maximum. An
// absent optional field or an empty list still emits one triple per leaf
// beneath it, so no leaf stream ever loses track of a row.
//
// # Chunks and Row Groups
//
// A row group is a batch of rows shredded together. Each of its columns is
// serialized into a chunk:
//
//	[levels: RLE runs of (uvarint count, uvarint level)]
//	[values: plain or dictionary encoded]
//
// then compressed with the configured algorithm and checksummed with
// xxhash64. Chunks of one row group compress concurrently.
//
// # Usage Example
//
//	enc, err := columnar.NewEncoder(s, columnar.Options{Compression: compression.Zstd})
//	group, err := enc.Encode(records)
//
//	cols := columnar.Shred(s, records)
//	back, err := columnar.Assemble(s, cols, int64(len(records)))
package columnar
