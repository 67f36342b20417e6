package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/oshokin/rpm-stager/internal/config"
	"github.com/oshokin/rpm-stager/internal/logger"
)

var (
	// force overwrites an existing configuration file.
	force bool

	// initConfigCmd writes the built-in description for editing.
	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the built-in configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists, use --force to overwrite", path)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("check %s: %w", path, err)
				}
			}

			if err := config.Save(path, config.Default()); err != nil {
				return err
			}

			logger.InfoKV(context.Background(), "Configuration written", "path", path)

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	initConfigCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	rootCmd.AddCommand(initConfigCmd)
}
