package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/rpm-stager/internal/service/packager"
)

var (
	// exitCode makes drift a failure.
	exitCode bool

	// diffCmd compares the staging tree with a fresh rendering.
	diffCmd = &cobra.Command{
		Use:   "diff [version] [rpm-version]",
		Short: "Show how the staging tree differs from what a build would write",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := newOptions(args)
			options.FailOnDrift = exitCode

			return packager.RunDiff(ctx, options, cmd.OutOrStdout())
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	diffCmd.Flags().BoolVar(&exitCode, "exit-code", false, "exit with non-zero status when anything differs")

	rootCmd.AddCommand(diffCmd)
}
