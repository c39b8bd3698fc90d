package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/parcel/pkg/config"
	"github.com/ajitpratap0/parcel/pkg/errors"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage parcel configuration files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [PATH]",
		Short: "Write the effective configuration as YAML",
		Long: `Write the configuration parcel would run with, defaults merged with any
--config file, PARCEL_ environment variables and flags, to PATH
(parcel.yaml by default).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "parcel.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if !a.cfg.Storage.Overwrite {
				if _, err := os.Stat(path); err == nil {
					return errors.New(errors.ErrorTypeConflict, "config file already exists").
						WithDetail("path", path)
				}
			}
			if err := config.Save(path, a.cfg); err != nil {
				return err
			}
			a.log.Info("wrote config file", zap.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}
