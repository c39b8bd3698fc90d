package main

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/logger"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/parcel"
)

func newVerifyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify LOCATION",
		Short: "Decode every row group and check chunk checksums",
		Long: `verify reads every column chunk of every row group, checks its checksum,
decodes it and validates the reassembled records against the footer schema.
Row groups are checked in parallel up to reader.concurrency.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parcel.OpenFile(cmd.Context(), args[0], a.options()...)
			if err != nil {
				return err
			}
			defer f.Close()
			if !a.cfg.Reader.VerifyChecksums {
				a.log.Warn("checksum verification is disabled, only decoding is checked")
			}

			limit := a.cfg.Reader.Concurrency
			if limit <= 0 {
				limit = runtime.GOMAXPROCS(0)
			}
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(limit)

			var rows atomic.Int64
			for i := 0; i < f.NumRowGroups(); i++ {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					records, err := f.ReadRowGroup(i)
					if err != nil {
						rgCtx := logger.ContextWithRowGroup(logger.ContextWithFile(ctx, args[0]), i)
						logger.WithContext(rgCtx).Warn("row group failed verification", zap.Error(err))
						return err
					}
					if err := models.ValidateAll(records, f.Schema(), 0); err != nil {
						return err
					}
					rows.Add(int64(len(records)))
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				a.log.Error("verification failed", zap.String("location", args[0]), zap.Error(err))
				return err
			}
			if rows.Load() != f.NumRows() {
				return errors.Newf(errors.ErrorTypeCorruptContainer, "footer declares %d rows but row groups hold %d",
					f.NumRows(), rows.Load())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d rows in %d row groups\n", rows.Load(), f.NumRowGroups())
			return nil
		},
	}
	return cmd
}
