package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/internal/sample"
	"github.com/ajitpratap0/parcel/pkg/parcel"
)

func newDemoCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write the sample organizations and read them back",
		Long: `demo writes six sample organizations to organizations.parcel, replacing any
previous file, then prints the full read followed by a projection of the
name, category, country and organizationType columns.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			location := filepath.Join(dir, "organizations.parcel")

			orgs := sample.Organizations()
			if err := parcel.WriteFile(ctx, location, sample.Schema(), sample.Records(orgs),
				a.options(parcel.WithOverwrite(true))...); err != nil {
				return err
			}
			a.log.Info("wrote sample container", zap.String("location", location), zap.Int("records", len(orgs)))

			all, err := parcel.ReadFile(ctx, location, a.options()...)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "# all columns")
			if err := printRecords(out, all); err != nil {
				return err
			}

			projected, err := parcel.ReadFile(ctx, location, a.options(parcel.WithColumns(sample.ProjectedColumns...))...)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "# projected columns")
			return printRecords(out, projected)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write organizations.parcel into")
	return cmd
}
