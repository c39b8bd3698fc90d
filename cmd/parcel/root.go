package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/config"
	"github.com/ajitpratap0/parcel/pkg/logger"
	"github.com/ajitpratap0/parcel/pkg/metrics"
	"github.com/ajitpratap0/parcel/pkg/observability"
	"github.com/ajitpratap0/parcel/pkg/parcel"
)

// app carries the state every subcommand shares once the root has loaded the
// configuration
type app struct {
	cfgPath  string
	cfg      *config.Config
	log      *zap.Logger
	shutdown func(context.Context) error
}

// flagBindings maps configuration keys to the persistent flags overriding them
var flagBindings = map[string]string{
	"log.level":               "log-level",
	"writer.compression":      "compression",
	"writer.row_group_rows":   "row-group-rows",
	"storage.overwrite":       "overwrite",
	"reader.verify_checksums": "verify-checksums",
	"metrics.textfile_path":   "metrics-file",
	"tracing.enabled":         "trace",
}

func newRootCmd() *cobra.Command {
	a := &app{}
	defaults := config.Default()

	root := &cobra.Command{
		Use:   "parcel",
		Short: "parcel - nested columnar container files",
		Long: `parcel stores nested records in a columnar container: records are shredded
into per-leaf column chunks with repetition and definition levels, grouped
into row groups and indexed by a checksummed footer. Reads can project any
subset of fields without touching the other columns.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "Path to a YAML configuration file")
	pf.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	pf.String("compression", defaults.Writer.Compression, "Chunk codec (none, gzip, snappy, lz4, zstd, s2)")
	pf.Int("row-group-rows", defaults.Writer.RowGroupRows, "Rows per row group")
	pf.Bool("overwrite", defaults.Storage.Overwrite, "Replace existing containers")
	pf.Bool("verify-checksums", defaults.Reader.VerifyChecksums, "Verify chunk checksums on read")
	pf.String("metrics-file", defaults.Metrics.TextfilePath, "Write Prometheus metrics to this file on exit")
	pf.Bool("trace", defaults.Tracing.Enabled, "Export OpenTelemetry spans")

	root.AddCommand(
		newVersionCmd(),
		newDemoCmd(a),
		newWriteCmd(a),
		newCatCmd(a),
		newSchemaCmd(a),
		newInspectCmd(a),
		newVerifyCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newConfigCmd(a),
	)
	a.flushOnExit(root)
	return root
}

// flushOnExit runs teardown after every runnable command, failed runs
// included
func (a *app) flushOnExit(cmd *cobra.Command) {
	if run := cmd.Run; run != nil {
		cmd.Run = nil
		cmd.RunE = func(c *cobra.Command, args []string) error {
			run(c, args)
			return nil
		}
	}
	if run := cmd.RunE; run != nil {
		cmd.RunE = func(c *cobra.Command, args []string) (err error) {
			defer func() {
				if ferr := a.teardown(c.Context()); err == nil {
					err = ferr
				}
			}()
			return run(c, args)
		}
	}
	for _, sub := range cmd.Commands() {
		a.flushOnExit(sub)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	// Load .env file if it exists
	_ = godotenv.Load()

	opts := make([]config.LoadOption, 0, len(flagBindings))
	for key, name := range flagBindings {
		opts = append(opts, config.BindFlag(key, cmd.Flags().Lookup(name)))
	}
	cfg, err := config.Load(a.cfgPath, opts...)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	shutdown, err := observability.InitTracing(cfg.Tracing)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.shutdown = shutdown
	a.log = logger.With(zap.String("component", "parcel-cli"), zap.String("command", cmd.Name()))
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.log.Warn("failed to flush spans", zap.Error(err))
		}
	}
	if a.cfg != nil && a.cfg.Metrics.TextfilePath != "" {
		if err := metrics.SampleProcess(); err != nil {
			a.log.Warn("failed to sample process usage", zap.Error(err))
		}
		if err := metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
			return err
		}
	}
	_ = logger.Sync()
	return nil
}

// options turns the loaded configuration into parcel call options
func (a *app) options(extra ...parcel.Option) []parcel.Option {
	return append([]parcel.Option{parcel.WithLogger(a.log), parcel.WithConfig(a.cfg)}, extra...)
}
