package main

import (
	"bytes"
	"os"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/compression"
	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/formats"
	"github.com/ajitpratap0/parcel/pkg/formats/avro"
	"github.com/ajitpratap0/parcel/pkg/parcel"
)

func newExportCmd(a *app) *cobra.Command {
	var format string
	var columns []string
	cmd := &cobra.Command{
		Use:   "export LOCATION OUTPUT",
		Short: "Convert a container to Avro, Parquet or Arrow IPC",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fm, err := formats.ParseFormat(format)
			if err != nil {
				return err
			}
			algo, err := compression.ParseAlgorithm(a.cfg.Writer.Compression)
			if err != nil {
				return err
			}
			if fm == formats.Avro {
				if _, err := avro.CodecName(algo); err != nil {
					a.log.Warn("Avro has no such codec, exporting with snappy",
						zap.String("compression", string(algo)))
					algo = compression.Snappy
				}
			}
			if !a.cfg.Storage.Overwrite {
				if _, err := os.Stat(args[1]); err == nil {
					return errors.New(errors.ErrorTypeConflict, "output already exists").
						WithDetail("path", args[1])
				}
			}

			f, err := parcel.OpenFile(cmd.Context(), args[0], a.options(parcel.WithColumns(columns...))...)
			if err != nil {
				return err
			}
			defer f.Close()
			records, err := f.ReadAll()
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := formats.Export(&buf, fm, f.Schema(), records, formats.ExportOptions{
				Compression:  algo,
				RowGroupRows: a.cfg.Writer.RowGroupRows,
			}); err != nil {
				return err
			}
			if err := renameio.WriteFile(args[1], buf.Bytes(), 0o644); err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to write export").
					WithDetail("path", args[1])
			}
			a.log.Info("exported container",
				zap.String("format", string(fm)),
				zap.String("output", args[1]),
				zap.Int("records", len(records)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(formats.Parquet), "Output format (avro, parquet, arrow)")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Field paths to export (default all)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "import INPUT LOCATION",
		Short: "Convert an Avro, Parquet or Arrow IPC file to a container",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fm, err := formats.ParseFormat(format)
			if err != nil {
				return err
			}
			in, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").
					WithDetail("path", args[0])
			}
			defer in.Close()

			s, records, err := formats.Import(cmd.Context(), in, fm)
			if err != nil {
				return err
			}
			meta := map[string]string{"parcel.imported.format": string(fm)}
			if err := parcel.WriteFile(cmd.Context(), args[1], s, records,
				a.options(parcel.WithMetadata(meta))...); err != nil {
				return err
			}
			a.log.Info("imported file",
				zap.String("format", string(fm)),
				zap.String("location", args[1]),
				zap.Int("records", len(records)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(formats.Parquet), "Input format (avro, parquet, arrow)")
	return cmd
}
