package main

import (
	"bufio"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/errors"
	"github.com/ajitpratap0/parcel/pkg/models"
	"github.com/ajitpratap0/parcel/pkg/parcel"
	"github.com/ajitpratap0/parcel/pkg/schema"
)

const maxLineBytes = 16 << 20

func newWriteCmd(a *app) *cobra.Command {
	var input string
	var meta map[string]string
	cmd := &cobra.Command{
		Use:   "write SCHEMA LOCATION",
		Short: "Write JSON lines to a container",
		Long: `write reads one JSON object per line, types each against the schema file
(the JSON form printed by "parcel schema --json") and writes them as a single
container. Nothing is written if any record is invalid.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, errors.ErrorTypeFile, "failed to read schema file").
					WithDetail("path", args[0])
			}
			s, err := schema.Parse(raw)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return errors.Wrap(err, errors.ErrorTypeFile, "failed to open input").
						WithDetail("path", input)
				}
				defer f.Close()
				in = f
			}
			records, err := decodeLines(in, s)
			if err != nil {
				return err
			}

			if err := parcel.WriteFile(cmd.Context(), args[1], s, records,
				a.options(parcel.WithMetadata(meta))...); err != nil {
				return err
			}
			a.log.Info("wrote container", zap.String("location", args[1]), zap.Int("records", len(records)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "-", "JSON lines file, - for stdin")
	cmd.Flags().StringToStringVar(&meta, "meta", nil, "Key=value pairs stored in the footer")
	return cmd
}

// decodeLines types every non-empty line of r as a record of s
func decodeLines(r io.Reader, s *schema.Schema) ([]models.Record, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	var records []models.Record
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		rec, err := models.DecodeJSON(s, sc.Bytes())
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				return nil, e.WithDetail("line", line)
			}
			return nil, err
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read input")
	}
	return records, nil
}
