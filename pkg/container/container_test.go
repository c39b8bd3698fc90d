package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/cespare/xxhash/v2"
	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/parcel/pkg/columnar"
	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
	"github.com/ajitpratap0/parcel/pkg/storage"
)

func orgSchema() *schema.Schema {
	return schema.New("Organization",
		schema.RequiredOf("name", schema.TypeString),
		schema.RequiredOf("category", schema.TypeString),
		schema.RequiredOf("country", schema.TypeString),
		schema.Enum("organizationType", schema.Required, "FOO", "BAR"),
		schema.RecordList("attributes",
			schema.RequiredOf("id", schema.TypeString),
			schema.RequiredOf("quantity", schema.TypeInt8),
			schema.RequiredOf("amount", schema.TypeInt8),
			schema.RequiredOf("active", schema.TypeBoolean),
			schema.RequiredOf("percent", schema.TypeFloat64),
			schema.RequiredOf("size", schema.TypeInt16),
		),
	)
}

func attr(quantity int64) models.Record {
	return models.NewRecord(
		models.F("id", models.String("123")),
		models.F("quantity", models.Int8(quantity)),
		models.F("amount", models.Int8(10)),
		models.F("active", models.Bool(true)),
		models.F("percent", models.Float64(12.34)),
		models.F("size", models.Int16(25)),
	)
}

func org(name, category, country string, attrs ...models.Record) models.Record {
	return models.NewRecord(
		models.F("name", models.String(name)),
		models.F("category", models.String(category)),
		models.F("country", models.String(country)),
		models.F("organizationType", models.Enum("FOO")),
		models.F("attributes", models.RecordList(attrs...)),
	)
}

func sixOrgs() []models.Record {
	return []models.Record{
		org("A", "A1", "USA", attr(5)),
		org("B", "B1", "BSA", attr(5)),
		org("C", "C1", "CSA", attr(5)),
		org("D", "D1", "DSA", attr(5)),
		org("E", "E1", "ESA", attr(5)),
		org("F", "F1", "FSA", attr(5)),
	}
}

func manyOrgs(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		attrs := make([]models.Record, i%4)
		for j := range attrs {
			attrs[j] = attr(int64(j))
		}
		out[i] = org(fmt.Sprintf("org-%d", i), "cat", []string{"USA", "FSA"}[i%2], attrs...)
	}
	return out
}

func writeContainer(t *testing.T, s *schema.Schema, records []models.Record, opts WriterOptions) []byte {
	t.Helper()
	sink := storage.NewMemorySink()
	w, err := OpenWriter(sink, s, opts)
	require.NoError(t, err)
	require.NoError(t, w.Append(records...))
	require.NoError(t, w.Close())
	return sink.Bytes()
}

func TestSixOrganizations(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{Compression: compression.Snappy})

	r, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), r.NumRows())
	all, err := r.ReadAll()
	require.NoError(t, err)
	require.True(t, models.RecordsEqual(sixOrgs(), all))

	p, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{
		Columns: []string{"name", "category", "country", "organizationType"},
	})
	require.NoError(t, err)
	projected, err := p.ReadAll()
	require.NoError(t, err)
	require.Len(t, projected, 6)
	for i, rec := range projected {
		assert.Equal(t, []string{"name", "category", "country", "organizationType"}, rec.Names())
		_, ok := rec.Get("attributes")
		assert.False(t, ok)
		name, _ := rec.Get("name")
		assert.Equal(t, string(rune('A'+i)), name.Str())
		typ, _ := rec.Get("organizationType")
		assert.Equal(t, models.KindEnum, typ.Kind())
		assert.Equal(t, "FOO", typ.Str())
	}
}

func TestRoundTripCodecs(t *testing.T) {
	records := manyOrgs(250)
	for _, algo := range compression.Algorithms {
		t.Run(string(algo), func(t *testing.T) {
			data := writeContainer(t, orgSchema(), records, WriterOptions{Compression: algo, RowGroupRows: 64})

			r, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{})
			require.NoError(t, err)
			assert.Equal(t, 4, r.NumRowGroups())
			assert.Equal(t, algo, r.Footer().Compression)

			var got []models.Record
			for rec, err := range r.Records() {
				require.NoError(t, err)
				got = append(got, rec)
			}
			assert.True(t, models.RecordsEqual(records, got))
		})
	}
}

func TestEmptyContainer(t *testing.T) {
	data := writeContainer(t, orgSchema(), nil, WriterOptions{})
	r, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, r.NumRowGroups())
	all, err := r.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestMetadataAndSchema(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{
		CreatedBy: "parcel test",
		Metadata:  map[string]string{"source": "demo"},
	})
	r, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{Columns: []string{"attributes.size"}})
	require.NoError(t, err)

	assert.Equal(t, "parcel test", r.Footer().CreatedBy)
	md := r.Metadata()
	assert.Equal(t, "demo", md["source"])
	md["source"] = "changed"
	assert.Equal(t, "demo", r.Metadata()["source"])

	assert.True(t, schema.Equal(orgSchema(), r.FileSchema()))
	require.Len(t, r.Schema().Fields, 1)
	assert.Len(t, r.Schema().Fields[0].Children, 1)
}

func TestUnknownProjection(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{})
	_, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{Columns: []string{"attributes.color"}})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnknownField))
}

func TestAppendRejectsBatch(t *testing.T) {
	sink := storage.NewMemorySink()
	w, err := OpenWriter(sink, orgSchema(), WriterOptions{RowGroupRows: 2})
	require.NoError(t, err)

	require.NoError(t, w.Append(sixOrgs()[:1]...))
	err = w.Append(org("X", "X1", "XSA", attr(5)), org("Y", "Y1", "YSA", attr(200)))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValue))
	row, ok := errors.DetailOf(err, "row")
	require.True(t, ok)
	assert.Equal(t, int64(2), row)
	assert.Equal(t, int64(1), w.NumRows(), "rejected batch leaves nothing buffered")

	require.NoError(t, w.Append(sixOrgs()[1:]...))
	require.NoError(t, w.Close())

	r, err := OpenReader(storage.NewMemorySource(sink.Bytes()), ReaderOptions{})
	require.NoError(t, err)
	all, err := r.ReadAll()
	require.NoError(t, err)
	assert.True(t, models.RecordsEqual(sixOrgs(), all))
}

func TestWriterStates(t *testing.T) {
	sink := storage.NewMemorySink()
	w, err := OpenWriter(sink, orgSchema(), WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, errors.IsType(w.Append(sixOrgs()...), errors.ErrorTypeClosed))
	assert.True(t, errors.IsType(w.Close(), errors.ErrorTypeClosed))
	assert.True(t, errors.IsType(w.Abort(), errors.ErrorTypeClosed))

	aborted := storage.NewMemorySink()
	w, err = OpenWriter(aborted, orgSchema(), WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.Append(sixOrgs()...))
	require.NoError(t, w.Abort())
	require.NoError(t, w.Abort())
	assert.False(t, aborted.Committed())
	assert.True(t, errors.IsType(w.Append(sixOrgs()...), errors.ErrorTypeClosed))
	assert.True(t, errors.IsType(w.Close(), errors.ErrorTypeClosed))
}

func TestOpenWriterValidatesFirst(t *testing.T) {
	sink := storage.NewMemorySink()
	_, err := OpenWriter(sink, schema.New("bad", schema.RequiredOf("a", schema.TypeInt8), schema.RequiredOf("a", schema.TypeInt8)), WriterOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSchema))

	_, err = OpenWriter(sink, orgSchema(), WriterOptions{Compression: "brotli"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	require.NoError(t, sink.Commit())
	assert.Empty(t, sink.Bytes(), "nothing was written before validation passed")
}

func TestAppendRowGroup(t *testing.T) {
	s := orgSchema()
	enc, err := columnar.NewEncoder(s, columnar.Options{Compression: compression.LZ4})
	require.NoError(t, err)

	records := manyOrgs(30)
	var g errgroup.Group
	groups := make([]*columnar.EncodedRowGroup, 3)
	for i := range groups {
		g.Go(func() error {
			var err error
			groups[i], err = enc.Encode(records[i*10 : (i+1)*10])
			return err
		})
	}
	require.NoError(t, g.Wait())

	sink := storage.NewMemorySink()
	w, err := OpenWriter(sink, s, WriterOptions{Compression: compression.LZ4})
	require.NoError(t, err)
	for _, grp := range groups {
		require.NoError(t, w.AppendRowGroup(grp))
	}

	snappyGroup, err := columnar.EncodeRowGroup(s, records[:1], columnar.Options{Compression: compression.Snappy})
	require.NoError(t, err)
	assert.True(t, errors.IsType(w.AppendRowGroup(snappyGroup), errors.ErrorTypeConfig))

	other := schema.New("Other", schema.RequiredOf("x", schema.TypeInt8))
	otherGroup, err := columnar.EncodeRowGroup(other, []models.Record{models.NewRecord(models.F("x", models.Int8(1)))}, columnar.Options{Compression: compression.LZ4})
	require.NoError(t, err)
	assert.True(t, errors.IsType(w.AppendRowGroup(otherGroup), errors.ErrorTypeSchema))

	require.NoError(t, w.Close())

	r, err := OpenReader(storage.NewMemorySource(sink.Bytes()), ReaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, r.NumRowGroups())
	all, err := r.ReadAll()
	require.NoError(t, err)
	assert.True(t, models.RecordsEqual(records, all))
}

func TestCorruptContainer(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{})

	tests := []struct {
		name string
		data func() []byte
	}{
		{"truncated last byte", func() []byte { return data[:len(data)-1] }},
		{"too small", func() []byte { return data[:10] }},
		{"bad header", func() []byte {
			d := append([]byte(nil), data...)
			d[0] = 'X'
			return d
		}},
		{"footer checksum", func() []byte {
			d := append([]byte(nil), data...)
			d[len(d)-trailerSize-2] ^= 0x01
			return d
		}},
		{"footer length", func() []byte {
			d := append([]byte(nil), data...)
			d[len(d)-trailerSize+3] = 0xff
			return d
		}},
		{"inflated counts", func() []byte {
			return rewriteFooter(t, data, func(f *Footer) {
				f.NumRows = 0
				for i := range f.RowGroups {
					f.RowGroups[i].NumRows = 1 << 60
					f.NumRows += 1 << 60
					for j := range f.RowGroups[i].Columns {
						f.RowGroups[i].Columns[j].NumValues = 1 << 60
					}
				}
			})
		}},
		{"inflated repeated column", func() []byte {
			return rewriteFooter(t, data, func(f *Footer) {
				f.RowGroups[0].Columns[4].NumValues = 1 << 40
			})
		}},
		{"scalar column entries differ from rows", func() []byte {
			return rewriteFooter(t, data, func(f *Footer) {
				f.RowGroups[0].Columns[0].NumValues++
			})
		}},
		{"negative row count", func() []byte {
			return rewriteFooter(t, data, func(f *Footer) {
				f.RowGroups[0].NumRows = -1
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenReader(storage.NewMemorySource(tt.data()), ReaderOptions{})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeCorruptContainer), "got %v", err)
		})
	}
}

// rewriteFooter edits the footer of a container and reseals it with a fresh
// length and checksum
func rewriteFooter(t *testing.T, data []byte, edit func(*Footer)) []byte {
	t.Helper()
	end := len(data) - trailerSize
	footerLen := int(binary.LittleEndian.Uint32(data[end : end+4]))
	var f Footer
	require.NoError(t, gojson.Unmarshal(data[end-footerLen:end], &f))
	edit(&f)
	raw, err := encodeFooter(&f)
	require.NoError(t, err)

	out := append([]byte(nil), data[:end-footerLen]...)
	out = append(out, raw...)
	return appendTrailer(out, uint32(len(raw)), xxhash.Sum64(raw))
}

func TestForgedEntryCountFailsCleanly(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{Compression: compression.Zstd})
	d := rewriteFooter(t, data, func(f *Footer) {
		f.RowGroups[0].Columns[4].NumValues++
	})

	r, err := OpenReader(storage.NewMemorySource(d), ReaderOptions{})
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		_, err = r.ReadAll()
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCorruptColumnData), "got %v", err)
}

func TestCorruptChunk(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{Compression: compression.Zstd})
	r, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{})
	require.NoError(t, err)
	col := r.Footer().RowGroups[0].Columns[0]

	d := append([]byte(nil), data...)
	d[col.Offset] ^= 0xff
	r, err = OpenReader(storage.NewMemorySource(d), ReaderOptions{})
	require.NoError(t, err, "footer is intact")

	_, err = r.ReadRowGroup(0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCorruptColumnData))
	rg, ok := errors.DetailOf(err, "row_group")
	require.True(t, ok)
	assert.Equal(t, 0, rg)

	// a projection that skips the damaged column still reads
	p, err := OpenReader(storage.NewMemorySource(d), ReaderOptions{Columns: []string{"country"}})
	require.NoError(t, err)
	_, err = p.ReadAll()
	require.NoError(t, err)

	for _, err := range r.Records() {
		require.Error(t, err)
	}
}

func TestConcurrentReaders(t *testing.T) {
	records := manyOrgs(500)
	data := writeContainer(t, orgSchema(), records, WriterOptions{RowGroupRows: 50, Compression: compression.Zstd})
	src := storage.NewMemorySource(data)

	shared, err := OpenReader(src, ReaderOptions{})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			r, err := OpenReader(src, ReaderOptions{})
			if err != nil {
				return err
			}
			all, err := r.ReadAll()
			if err != nil {
				return err
			}
			if !models.RecordsEqual(records, all) {
				return fmt.Errorf("reader %d saw different records", i)
			}
			return nil
		})
		g.Go(func() error {
			rg := i % shared.NumRowGroups()
			got, err := shared.ReadRowGroup(rg)
			if err != nil {
				return err
			}
			if !models.RecordsEqual(records[rg*50:(rg+1)*50], got) {
				return fmt.Errorf("row group %d differs", rg)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestReadRowGroupOutOfRange(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{})
	r, err := OpenReader(storage.NewMemorySource(data), ReaderOptions{})
	require.NoError(t, err)
	_, err = r.ReadRowGroup(1)
	assert.Error(t, err)
	_, err = r.ReadRowGroup(-1)
	assert.Error(t, err)
}

// flakySource fails its first reads with err before serving data
type flakySource struct {
	*storage.MemorySource
	failures atomic.Int32
	err      error
}

func (f *flakySource) ReadAt(p []byte, off int64) (int, error) {
	if f.failures.Add(-1) >= 0 {
		return 0, f.err
	}
	return f.MemorySource.ReadAt(p, off)
}

func TestReaderRetriesStorageErrors(t *testing.T) {
	data := writeContainer(t, orgSchema(), sixOrgs(), WriterOptions{})

	src := &flakySource{
		MemorySource: storage.NewMemorySource(data),
		err:          errors.New(errors.ErrorTypeFile, "connection reset"),
	}
	src.failures.Store(readAttempts - 1)
	r, err := OpenReader(src, ReaderOptions{})
	require.NoError(t, err)
	all, err := r.ReadAll()
	require.NoError(t, err)
	assert.True(t, models.RecordsEqual(sixOrgs(), all))

	src.failures.Store(readAttempts)
	_, err = OpenReader(src, ReaderOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	// other failures are not retried
	plain := &flakySource{MemorySource: storage.NewMemorySource(data), err: io.ErrClosedPipe}
	plain.failures.Store(1)
	_, err = OpenReader(plain, ReaderOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
