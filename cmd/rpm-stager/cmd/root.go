package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/rpm-stager/internal/logger"
	"github.com/oshokin/rpm-stager/internal/service/packager"
	"github.com/oshokin/rpm-stager/internal/version"
)

var (
	// configPath to the configuration YAML file. Empty selects the built-in description.
	configPath string

	// softwareVersion substituted for @SOFTWARE_VERSION@.
	softwareVersion string

	// stagingRoot overrides the staging root of the configuration.
	stagingRoot string

	// skipArchive and skipRPM disable the external tool steps.
	skipArchive bool
	skipRPM     bool

	// strict fails the run on placeholders left after substitution.
	strict bool

	// verbose streams the output of external tools.
	verbose bool

	// logLevel is one of debug, info, warn or error.
	logLevel string

	// rootCmd stages the package tree and builds the archive and RPM.
	rootCmd = &cobra.Command{
		Use:   "rpm-stager [version] [rpm-version]",
		Short: "Stage an RPM-installable tree and package it",
		Long: "rpm-stager renders @TOKEN@ templates and copies static files into a staging tree,\n" +
			"then archives the tree with tar and hands the archive to the RPM generation tool.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := newOptions(args)
			options.SkipArchive = skipArchive
			options.SkipRPM = skipRPM

			return packager.Run(ctx, options)
		},
	}
)

// newOptions fills the flags shared by every staging command.
func newOptions(args []string) *packager.Options {
	return &packager.Options{
		ConfigPath:      configPath,
		Version:         args[0],
		RPMVersion:      args[1],
		SoftwareVersion: softwareVersion,
		StagingRoot:     stagingRoot,
		Strict:          strict,
		Verbose:         verbose,
	}
}

// Execute runs the rpm-stager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		logger.Error(context.Background(), err)
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file, built-in description when empty")
	flags.StringVarP(&softwareVersion, "software-version", "s", "", "value of @SOFTWARE_VERSION@")
	flags.StringVarP(&stagingRoot, "staging-root", "o", "", "directory the installable tree is built in")
	flags.BoolVar(&strict, "strict", false, "fail when placeholders remain after substitution")
	flags.BoolVarP(&verbose, "verbose", "v", false, "stream output of external tools")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.Flags().BoolVar(&skipArchive, "skip-archive", false, "do not run the tar step")
	rootCmd.Flags().BoolVar(&skipRPM, "skip-rpm", false, "do not run the RPM generation step")
}
