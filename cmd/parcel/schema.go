package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/parcel/pkg/parcel"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

func newSchemaCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "schema LOCATION",
		Short: "Print the schema stored in a container footer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parcel.OpenFile(cmd.Context(), args[0], a.options()...)
			if err != nil {
				return err
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, f.FileSchema().String())
				return nil
			}
			b, err := schema.MarshalIndent(f.FileSchema())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the schema as JSON, usable with write")
	return cmd
}
