package packager

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/rpm-stager/internal/config"
	"github.com/oshokin/rpm-stager/internal/logger"
	"github.com/oshokin/rpm-stager/internal/process"
)

// ErrDrift is returned by RunDiff when FailOnDrift is set and the tree is out of date.
var ErrDrift = errors.New("staging tree differs from rendered output")

// Options contains inputs for the CLI entry points.
type Options struct {
	// ConfigPath is the YAML configuration; empty selects the built-in one.
	ConfigPath string
	// Version is the package version.
	Version string
	// RPMVersion is the RPM release version.
	RPMVersion string
	// SoftwareVersion overrides package.software_version when not empty.
	SoftwareVersion string
	// StagingRoot overrides staging_root when not empty.
	StagingRoot string
	// SkipArchive disables the tar step.
	SkipArchive bool
	// SkipRPM disables the RPM step.
	SkipRPM bool
	// Strict fails on placeholders left after substitution.
	Strict bool
	// Verbose streams external tool output.
	Verbose bool
	// FailOnDrift makes RunDiff return ErrDrift when anything differs.
	FailOnDrift bool
	// Runner replaces the os/exec runner, mostly for tests.
	Runner process.Runner
}

// Run stages the package described by opts.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "rpm-stager")

	pkg, err := newFromOptions(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	result, err := pkg.Build(ctx, Release{Version: opts.Version, RPMVersion: opts.RPMVersion})
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Staging completed",
		"staging_root", result.StagingRoot,
		"templates", len(result.Templates),
		"statics", len(result.Statics),
		"archive", result.Archive,
		"rpm", result.RPM,
	)

	return nil
}

// RunDiff prints how the staging tree differs from a fresh build to w.
func RunDiff(ctx context.Context, opts *Options, w io.Writer) error {
	ctx = logger.WithName(ctx, "rpm-stager")

	pkg, err := newFromOptions(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	drifts, err := pkg.Diff(ctx, Release{Version: opts.Version, RPMVersion: opts.RPMVersion}, w)
	if err != nil {
		return err
	}

	if len(drifts) > 0 && opts.FailOnDrift {
		return fmt.Errorf("%d file(s): %w", len(drifts), ErrDrift)
	}

	return nil
}

// newFromOptions loads the configuration, applies overrides and builds a Packager.
func newFromOptions(opts *Options) (*Packager, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.SoftwareVersion != "" {
		cfg.Package.SoftwareVersion = opts.SoftwareVersion
	}

	if opts.StagingRoot != "" {
		cfg.StagingRoot = opts.StagingRoot
	}

	runner := opts.Runner
	if runner == nil {
		runner = process.NewExecRunner(process.WithVerbose(opts.Verbose))
	}

	return New(cfg,
		WithRunner(runner),
		WithStrict(opts.Strict),
		WithSkipArchive(opts.SkipArchive),
		WithSkipRPM(opts.SkipRPM),
	)
}
