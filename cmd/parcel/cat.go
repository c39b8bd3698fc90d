package main

import (
	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/parcel/pkg/parcel"
)

func newCatCmd(a *app) *cobra.Command {
	var columns []string
	var limit int
	cmd := &cobra.Command{
		Use:   "cat LOCATION",
		Short: "Print records as JSON lines",
		Long: `cat streams a container one row group at a time and prints each record as a
JSON object. --columns projects dotted field paths; a record path selects
every column beneath it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parcel.OpenFile(cmd.Context(), args[0], a.options(parcel.WithColumns(columns...))...)
			if err != nil {
				return err
			}
			defer f.Close()

			enc := gojson.NewEncoder(cmd.OutOrStdout())
			n := 0
			for rec, err := range f.Records() {
				if err != nil {
					return err
				}
				if limit > 0 && n >= limit {
					break
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
				n++
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Field paths to read (default all)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Stop after this many records (0 for all)")
	return cmd
}
