package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/parcel/internal/sample"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "parcel v"+version)
	assert.Contains(t, out, "PCL1 v1")
}

func TestDemo(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "", "demo", "--dir", dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "organizations.parcel"))
	require.NoError(t, err)

	sections := strings.Split(out, "# projected columns\n")
	require.Len(t, sections, 2)
	full := strings.Split(strings.TrimSpace(strings.TrimPrefix(sections[0], "# all columns\n")), "\n")
	projected := strings.Split(strings.TrimSpace(sections[1]), "\n")
	require.Len(t, full, len(sample.Organizations()))
	require.Len(t, projected, len(sample.Organizations()))
	assert.Contains(t, full[0], `"attributes"`)
	assert.NotContains(t, projected[0], `"attributes"`)
	assert.Contains(t, projected[0], `"name":"A"`)

	// demo replaces its own output
	_, err = run(t, "", "demo", "--dir", dir)
	require.NoError(t, err)
}

func TestWriteCatSchemaVerify(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "orgs.parcel")
	_, err := run(t, "", "demo", "--dir", dir)
	require.NoError(t, err)
	require.NoError(t, os.Rename(filepath.Join(dir, "organizations.parcel"), src))

	schemaJSON, err := run(t, "", "schema", "--json", src)
	require.NoError(t, err)
	schemaPath := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(schemaJSON), 0o600))

	lines, err := run(t, "", "cat", src)
	require.NoError(t, err)

	dst := filepath.Join(dir, "copy.parcel")
	_, err = run(t, lines, "write", schemaPath, dst, "--row-group-rows", "2", "--compression", "zstd")
	require.NoError(t, err)

	copied, err := run(t, "", "cat", dst)
	require.NoError(t, err)
	assert.Equal(t, lines, copied)

	limited, err := run(t, "", "cat", "--columns", "name", "-n", "2", dst)
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"A\"}\n{\"name\":\"B\"}\n", limited)

	out, err := run(t, "", "verify", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "OK: 6 rows in 3 row groups")

	out, err = run(t, "", "inspect", "--chunks", dst)
	require.NoError(t, err)
	assert.Contains(t, out, "Compression:  zstd")
	assert.Contains(t, out, "Row groups:   3")
	assert.Contains(t, out, "attributes.percent")

	// the target exists and overwrite is off
	_, err = run(t, lines, "write", schemaPath, dst)
	assert.Error(t, err)
}

func TestWriteRejectsInvalidLine(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "", "demo", "--dir", dir)
	require.NoError(t, err)
	schemaJSON, err := run(t, "", "schema", "--json", filepath.Join(dir, "organizations.parcel"))
	require.NoError(t, err)
	schemaPath := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schemaPath, []byte(schemaJSON), 0o600))

	dst := filepath.Join(dir, "bad.parcel")
	_, err = run(t, `{"name":"A"}`+"\n", "write", schemaPath, dst)
	require.Error(t, err)
	_, statErr := os.Stat(dst)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "", "demo", "--dir", dir)
	require.NoError(t, err)
	src := filepath.Join(dir, "organizations.parcel")
	want, err := run(t, "", "cat", "--columns", "name,category,country", src)
	require.NoError(t, err)

	for _, format := range []string{"avro", "parquet", "arrow"} {
		t.Run(format, func(t *testing.T) {
			exported := filepath.Join(dir, "orgs."+format)
			_, err := run(t, "", "export", "-f", format, "--columns", "name,category,country", src, exported)
			require.NoError(t, err)

			back := filepath.Join(dir, format+".parcel")
			_, err = run(t, "", "import", "-f", format, exported, back)
			require.NoError(t, err)

			got, err := run(t, "", "cat", back)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "parcel.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("writer:\n  compression: lz4\n  row_group_rows: 4\n"), 0o600))

	_, err := run(t, "", "demo", "--dir", dir, "--config", cfgPath)
	require.NoError(t, err)
	out, err := run(t, "", "inspect", filepath.Join(dir, "organizations.parcel"))
	require.NoError(t, err)
	assert.Contains(t, out, "Compression:  lz4")
	assert.Contains(t, out, "Row groups:   2")

	_, err = run(t, "", "version", "--compression", "brotli")
	assert.Error(t, err)
}

func TestMetricsFile(t *testing.T) {
	dir := t.TempDir()
	prom := filepath.Join(dir, "parcel.prom")
	_, err := run(t, "", "demo", "--dir", dir, "--metrics-file", prom)
	require.NoError(t, err)

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), "parcel_rows_written_total")
	assert.Contains(t, string(data), "parcel_process_resident_bytes")
}

func TestMetricsFileWrittenOnFailure(t *testing.T) {
	dir := t.TempDir()
	prom := filepath.Join(dir, "parcel.prom")
	_, err := run(t, "", "cat", filepath.Join(dir, "missing.parcel"), "--metrics-file", prom)
	require.Error(t, err)

	data, err := os.ReadFile(prom)
	require.NoError(t, err, "a failed command still flushes metrics")
	assert.Contains(t, string(data), "parcel_process_resident_bytes")
}

func TestConfigInit(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "parcel.yaml")
	out, err := run(t, "", "config", "init", cfgPath, "--compression", "lz4", "--row-group-rows", "4")
	require.NoError(t, err)
	assert.Equal(t, cfgPath, strings.TrimSpace(out))

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "compression: lz4")

	// the written file drives later runs
	_, err = run(t, "", "demo", "--dir", dir, "--config", cfgPath)
	require.NoError(t, err)
	out, err = run(t, "", "inspect", filepath.Join(dir, "organizations.parcel"))
	require.NoError(t, err)
	assert.Contains(t, out, "Compression:  lz4")
	assert.Contains(t, out, "Row groups:   2")

	_, err = run(t, "", "config", "init", cfgPath)
	assert.Error(t, err, "an existing file is not replaced")
	_, err = run(t, "", "config", "init", cfgPath, "--overwrite")
	require.NoError(t, err)
}
