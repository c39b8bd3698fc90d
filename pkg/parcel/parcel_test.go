package parcel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/parcel/internal/sample"
	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/config"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/metrics"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/observability"
	"github.com/ajitpratap0/parcel/pkg/storage"
	parceltest "github.com/ajitpratap0/parcel/pkg/testutil"
)

func TestOrganizationsExample(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.parcel")
	orgs := sample.Organizations()
	records := sample.Records(orgs)

	require.NoError(t, WriteFile(ctx, path, sample.Schema(), records, WithOverwrite(true)))

	all, err := ReadFile(ctx, path)
	require.NoError(t, err)
	assert.True(t, models.RecordsEqual(records, all))
	back, err := sample.FromRecords(all)
	require.NoError(t, err)
	assert.Equal(t, orgs, back)

	projected, err := ReadFile(ctx, path, WithColumns(sample.ProjectedColumns...))
	require.NoError(t, err)
	require.Len(t, projected, 6)
	for i, r := range projected {
		assert.Equal(t, sample.ProjectedColumns, r.Names())
		name, _ := r.Get("name")
		assert.Equal(t, orgs[i].Name, name.Str())
		_, ok := r.Get("attributes")
		assert.False(t, ok)
	}
}

func TestWriteFileRejectsOutOfRangeWithoutOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parcel")
	orgs := sample.Organizations()
	records := sample.Records(orgs)
	bad := models.NewRecord(
		models.F("name", models.String("Z")),
		models.F("category", models.String("Z1")),
		models.F("country", models.String("ZSA")),
		models.F("organizationType", models.Enum("FOO")),
		models.F("attributes", models.RecordList(models.NewRecord(
			models.F("id", models.String("1")),
			models.F("quantity", models.Int8(128)),
			models.F("amount", models.Int8(1)),
			models.F("active", models.Bool(false)),
			models.F("percent", models.Float64(0)),
			models.F("size", models.Int16(1)),
		))),
	)
	records = append(records, bad)

	before := testutil.ToFloat64(metrics.Errors.WithLabelValues("write", string(errors.ErrorTypeValue)))
	err := WriteFile(context.Background(), path, sample.Schema(), records)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValue))
	row, _ := errors.DetailOf(err, "row")
	assert.Equal(t, int64(6), row)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Errors.WithLabelValues("write", string(errors.ErrorTypeValue))))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no container may be left behind")
	assert.Empty(t, parceltest.DirEntries(t, filepath.Dir(path)))
}

func TestWriteFileConflict(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.parcel")
	records := sample.Records(sample.Organizations())

	require.NoError(t, WriteFile(ctx, path, sample.Schema(), records))
	err := WriteFile(ctx, path, sample.Schema(), records)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConflict))
	require.NoError(t, WriteFile(ctx, path, sample.Schema(), records[:2], WithOverwrite(true)))

	got, err := ReadFile(ctx, path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestWriteAbortsSinkOnInvalidSchema(t *testing.T) {
	sink := storage.NewMemorySink()
	err := Write(context.Background(), sink, nil, nil)
	require.Error(t, err)
	assert.False(t, sink.Committed())
	_, werr := sink.Write([]byte("x"))
	assert.Error(t, werr, "aborted sink must refuse writes")
}

func TestWriteReadMemory(t *testing.T) {
	ctx := context.Background()
	records := sample.Records(sample.Organizations())
	sink := storage.NewMemorySink()

	before := testutil.ToFloat64(metrics.RowsWritten.WithLabelValues(string(compression.Zstd)))
	require.NoError(t, Write(ctx, sink, sample.Schema(), records,
		WithCompression(compression.Zstd, compression.Best),
		WithRowGroupRows(4),
		WithMetadata(map[string]string{"origin": "test"})))
	assert.Equal(t, before+6, testutil.ToFloat64(metrics.RowsWritten.WithLabelValues(string(compression.Zstd))))

	got, err := Read(ctx, storage.NewMemorySource(sink.Bytes()), "country")
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, []string{"country"}, got[0].Names())
}

func TestWithMetadataCopiesTheMap(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orgs.parcel")
	meta := map[string]string{"origin": "test"}
	opt := WithMetadata(meta)
	meta["origin"] = "changed"
	meta["extra"] = "x"

	require.NoError(t, WriteFile(ctx, path, sample.Schema(), sample.Records(sample.Organizations()), opt))
	f, err := OpenFile(ctx, path)
	require.NoError(t, err)
	defer f.Close()
	got := f.Metadata()
	assert.Equal(t, "test", got["origin"])
	assert.NotContains(t, got, "extra")
}

func TestWithConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Writer.Compression = "lz4"
	cfg.Writer.RowGroupRows = 2
	cfg.Reader.VerifyChecksums = false

	s := newSettings([]Option{WithColumns("name"), WithConfig(cfg), WithRowGroupRows(3)})
	assert.Equal(t, compression.LZ4, s.writer.Compression)
	assert.Equal(t, 3, s.writer.RowGroupRows)
	assert.True(t, s.reader.SkipChecksums)
	assert.Equal(t, []string{"name"}, s.reader.Columns)
}

func TestOpenFileStreamsRowGroups(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out.parcel")
	records := sample.Records(sample.Organizations())
	require.NoError(t, WriteFile(ctx, path, sample.Schema(), records, WithRowGroupRows(4)))

	f, err := OpenFile(ctx, path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, path, f.Location())
	assert.Equal(t, 2, f.NumRowGroups())
	assert.Greater(t, f.Size(), int64(0))
	var n int
	for r, err := range f.Records() {
		require.NoError(t, err)
		assert.True(t, r.Equal(records[n]))
		n++
	}
	assert.Equal(t, 6, n)
}

func TestSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	observability.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx := context.Background()
	sink := storage.NewMemorySink()
	require.NoError(t, Write(ctx, sink, sample.Schema(), sample.Records(sample.Organizations())))
	_, err := Read(ctx, storage.NewMemorySource(sink.Bytes()), "bogus")
	require.Error(t, err)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "parcel.Write", spans[0].Name())
	assert.Equal(t, "parcel.Read", spans[1].Name())
	assert.Equal(t, "Error", spans[1].Status().Code.String())
}

func TestReadFileDetectsCorruptChunk(t *testing.T) {
	ctx := parceltest.TestContext(t)
	path := parceltest.TempPath(t, "orgs.parcel")
	log := parceltest.TestLogger(t)
	require.NoError(t, WriteFile(ctx, path, sample.Schema(), sample.Records(sample.Organizations()), WithLogger(log)))

	// the first chunk starts right after the magic
	parceltest.FlipByte(t, path, 4)

	_, err := ReadFile(ctx, path, WithLogger(log))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCorruptColumnData))
	path0, _ := errors.DetailOf(err, "path")
	assert.Equal(t, "name", path0)

	// projecting away the damaged column still reads
	got, err := ReadFile(ctx, path, WithLogger(log), WithColumns("country"))
	require.NoError(t, err)
	assert.Len(t, got, 6)

	// a damaged trailer is a container error
	parceltest.FlipByte(t, path, -1)
	_, err = ReadFile(ctx, path, WithLogger(log))
	assert.True(t, errors.IsType(err, errors.ErrorTypeCorruptContainer))
}
