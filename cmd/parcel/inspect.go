package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/parcel/pkg/parcel"
)

func newInspectCmd(a *app) *cobra.Command {
	var chunks bool
	cmd := &cobra.Command{
		Use:   "inspect LOCATION",
		Short: "Describe a container's footer, row groups and column sizes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parcel.OpenFile(cmd.Context(), args[0], a.options()...)
			if err != nil {
				return err
			}
			defer f.Close()

			ft := f.Footer()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Location:     %s\n", f.Location())
			fmt.Fprintf(out, "Size:         %s\n", humanize.Bytes(uint64(f.Size())))
			fmt.Fprintf(out, "Version:      %d\n", ft.Version)
			fmt.Fprintf(out, "Created by:   %s\n", ft.CreatedBy)
			fmt.Fprintf(out, "Compression:  %s\n", ft.Compression)
			fmt.Fprintf(out, "Rows:         %s\n", humanize.Comma(ft.NumRows))
			fmt.Fprintf(out, "Row groups:   %d\n", len(ft.RowGroups))

			keys := make([]string, 0, len(ft.KeyValue))
			for k := range ft.KeyValue {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "Metadata:     %s=%s\n", k, ft.KeyValue[k])
			}

			type colStats struct {
				compressed, uncompressed, values int64
			}
			stats := make(map[string]*colStats)
			var order []string
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			if chunks {
				fmt.Fprintln(tw, "\nGROUP\tCOLUMN\tOFFSET\tSIZE\tRAW\tVALUES\tCHECKSUM")
			}
			for i, rg := range ft.RowGroups {
				for _, c := range rg.Columns {
					st, ok := stats[c.Path]
					if !ok {
						st = &colStats{}
						stats[c.Path] = st
						order = append(order, c.Path)
					}
					st.compressed += c.Length
					st.uncompressed += c.UncompressedLength
					st.values += c.NumValues
					if chunks {
						fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t%016x\n", i, c.Path, c.Offset,
							humanize.Bytes(uint64(c.Length)), humanize.Bytes(uint64(c.UncompressedLength)),
							humanize.Comma(c.NumValues), c.Checksum)
					}
				}
			}

			fmt.Fprintln(tw, "\nCOLUMN\tSIZE\tRAW\tRATIO\tVALUES")
			for _, path := range order {
				st := stats[path]
				ratio := 0.0
				if st.compressed > 0 {
					ratio = float64(st.uncompressed) / float64(st.compressed)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2fx\t%s\n", path,
					humanize.Bytes(uint64(st.compressed)), humanize.Bytes(uint64(st.uncompressed)),
					ratio, humanize.Comma(st.values))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&chunks, "chunks", false, "List every column chunk")
	return cmd
}
