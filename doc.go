// Package parcel is a columnar container engine for nested records.
//
// Records conforming to a schema of nested, optional and repeated fields are
// shredded into one column per leaf. Each value carries a repetition level
// and a definition level, so the original nesting can be rebuilt from the
// columns alone. Columns are grouped into row groups, compressed, checksummed
// and indexed by a footer that also stores the schema.
//
// # Layout
//
//	"PCL1" | row group 0 chunks | row group 1 chunks | ... | footer | footer length | checksum | "PCL1"
//
// A reader seeks to the trailer, loads the footer and decodes only the chunks
// of the projected columns.
//
// # Packages
//
//   - pkg/schema: field trees, leaf paths, levels and projection
//   - pkg/models: typed records and validation
//   - pkg/columnar: shredding, chunk encoding and record assembly
//   - pkg/container: the file layout, writer sessions and readers
//   - pkg/storage: local files, S3 and GCS behind one Sink and Source pair
//   - pkg/parcel: the one-call Write and Read API with metrics and tracing
//   - pkg/formats: Avro, Parquet and Arrow IPC export and import
//
// # Quick Start
//
//	s := schema.New("Organization",
//	    schema.RequiredOf("name", schema.TypeString),
//	    schema.RecordList("attributes",
//	        schema.RequiredOf("id", schema.TypeString),
//	        schema.RequiredOf("size", schema.TypeInt16),
//	    ),
//	)
//	err := parcel.WriteFile(ctx, "orgs.parcel", s, records, parcel.WithCompression(compression.Zstd, compression.Default))
//
//	names, err := parcel.ReadFile(ctx, "orgs.parcel", parcel.WithColumns("name"))
//
// The parcel command wraps the same API: write, cat, schema, inspect,
// verify, export and import.
package parcel
