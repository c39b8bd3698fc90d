package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parcel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
writer:
  row_group_rows: 500
  compression: zstd
  level: 9
storage:
  overwrite: true
  s3:
    region: eu-west-1
tracing:
  enabled: true
  batch_timeout: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Writer.RowGroupRows)
	assert.Equal(t, "zstd", cfg.Writer.Compression)
	assert.Equal(t, 9, cfg.Writer.Level)
	assert.True(t, cfg.Storage.Overwrite)
	assert.Equal(t, "eu-west-1", cfg.Storage.S3.Region)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Tracing.BatchTimeout)

	// untouched keys keep their defaults
	assert.True(t, cfg.Reader.VerifyChecksums)
	assert.Equal(t, 8, cfg.Storage.S3.PartSizeMB)
	assert.Equal(t, "parcel", cfg.Tracing.ServiceName)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PARCEL_WRITER_COMPRESSION", "lz4")
	t.Setenv("PARCEL_READER_VERIFY_CHECKSUMS", "false")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "lz4", cfg.Writer.Compression)
	assert.False(t, cfg.Reader.VerifyChecksums)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Load(writeFile(t, "writer:\n  compression: brotli\n"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"zero row group", func(c *Config) { c.Writer.RowGroupRows = 0 }, "writer.row_group_rows"},
		{"level too high", func(c *Config) { c.Writer.Level = 12 }, "writer.level"},
		{"negative writer concurrency", func(c *Config) { c.Writer.Concurrency = -1 }, "writer.concurrency"},
		{"negative reader concurrency", func(c *Config) { c.Reader.Concurrency = -2 }, "reader.concurrency"},
		{"tiny part size", func(c *Config) { c.Storage.S3.PartSizeMB = 1 }, "storage.s3.part_size_mb"},
		{"sampling rate", func(c *Config) { c.Tracing.SamplingRate = 1.5 }, "tracing.sampling_rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			key, ok := errors.DetailOf(err, "key")
			require.True(t, ok)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestOptionsBuilders(t *testing.T) {
	cfg := Default()
	cfg.Writer.Compression = "GZIP"
	cfg.Reader.VerifyChecksums = false
	cfg.Storage.Overwrite = true
	l := zap.NewNop()

	w := cfg.WriterOptions(l)
	assert.Equal(t, compression.Gzip, w.Compression)
	assert.Equal(t, compression.Default, w.Level)
	assert.Equal(t, cfg.Writer.RowGroupRows, w.RowGroupRows)
	assert.Same(t, l, w.Logger)

	r := cfg.ReaderOptions([]string{"name"}, l)
	assert.True(t, r.SkipChecksums)
	assert.Equal(t, []string{"name"}, r.Columns)

	s := cfg.StorageOptions(l)
	assert.True(t, s.Overwrite)
	assert.Same(t, l, s.Logger)
	assert.Nil(t, cfg.Storage.Logger, "StorageOptions must not mutate the config")
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Setenv("PARCEL_TEST_BUCKET_REGION", "us-east-2")
	path := writeFile(t, "storage:\n  s3:\n    region: ${PARCEL_TEST_BUCKET_REGION}\n")

	var cfg Config
	require.NoError(t, LoadYAML(path, &cfg))
	assert.Equal(t, "us-east-2", cfg.Storage.S3.Region)
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Writer.Compression = "s2"
	cfg.Metrics.TextfilePath = "/var/lib/node_exporter/parcel.prom"

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, Save(path, cfg))

	var back Config
	require.NoError(t, LoadYAML(path, &back))
	assert.Equal(t, cfg.Writer, back.Writer)
	assert.Equal(t, cfg.Metrics, back.Metrics)
	assert.Equal(t, cfg.Tracing.BatchTimeout, back.Tracing.BatchTimeout)
}

func TestLoadBindsFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("compression", "snappy", "")
	fs.Int("row-group-rows", 10000, "")
	require.NoError(t, fs.Parse([]string{"--compression=gzip"}))

	path := writeFile(t, "writer:\n  compression: zstd\n  row_group_rows: 77\n")
	cfg, err := Load(path,
		BindFlag("writer.compression", fs.Lookup("compression")),
		BindFlag("writer.row_group_rows", fs.Lookup("row-group-rows")))
	require.NoError(t, err)
	assert.Equal(t, "gzip", cfg.Writer.Compression, "a set flag beats the file")
	assert.Equal(t, 77, cfg.Writer.RowGroupRows, "an unset flag leaves the file value")

	_, err = Load("", BindFlag("writer.level", nil))
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
