package formats

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parcel/internal/sample"
	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

func TestExportImportEveryFormat(t *testing.T) {
	records := sample.Records(sample.Organizations())
	for _, f := range All {
		t.Run(string(f), func(t *testing.T) {
			algo := compression.Zstd
			if f == Avro {
				algo = compression.Snappy
			}
			var buf bytes.Buffer
			require.NoError(t, Export(&buf, f, sample.Schema(), records, ExportOptions{
				Compression:  algo,
				RowGroupRows: 4,
			}))
			s, back, err := Import(context.Background(), bytes.NewReader(buf.Bytes()), f)
			require.NoError(t, err)
			assert.True(t, schema.Equal(sample.Schema(), s))
			assert.True(t, models.RecordsEqual(records, back))
		})
	}
}

func TestExportAvroRejectsZstd(t *testing.T) {
	err := Export(&bytes.Buffer{}, Avro, sample.Schema(), sample.Records(sample.Organizations()),
		ExportOptions{Compression: compression.Zstd})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("Parquet")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)

	_, err = ParseFormat("orc")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	err = Export(&bytes.Buffer{}, Format("csv"), sample.Schema(), nil, ExportOptions{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
