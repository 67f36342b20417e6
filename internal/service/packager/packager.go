package packager

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	goversion "github.com/hashicorp/go-version"

	"github.com/oshokin/rpm-stager/internal/config"
	"github.com/oshokin/rpm-stager/internal/domain/manifest"
	"github.com/oshokin/rpm-stager/internal/domain/substitution"
	"github.com/oshokin/rpm-stager/internal/failure"
	"github.com/oshokin/rpm-stager/internal/logger"
	"github.com/oshokin/rpm-stager/internal/process"
	"github.com/oshokin/rpm-stager/internal/repository/staging"
)

// Release is the caller-supplied version pair of one build.
type Release struct {
	// Version is the package version substituted for @V@.
	Version string
	// RPMVersion is the RPM release substituted for @RV@.
	RPMVersion string
}

// Validate checks that both parts are usable in an RPM file name.
func (r Release) Validate() error {
	if _, err := goversion.NewVersion(r.Version); err != nil {
		return failure.InvalidConfig("version %q: %w", r.Version, err)
	}

	if strings.Contains(r.Version, "-") {
		return failure.InvalidConfig("version %q must not contain '-'", r.Version)
	}

	if strings.TrimSpace(r.RPMVersion) == "" {
		return failure.InvalidConfig("rpm version must be provided")
	}

	if strings.ContainsAny(r.RPMVersion, "-/") || strings.ContainsFunc(r.RPMVersion, invalidReleaseRune) {
		return failure.InvalidConfig(
			"rpm version %q must not contain '-', '/', whitespace or control characters", r.RPMVersion)
	}

	return nil
}

func invalidReleaseRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}

// Result summarizes a successful build.
type Result struct {
	// StagingRoot is the root of the populated tree.
	StagingRoot string
	// Templates are the rendered files, in manifest order.
	Templates []string
	// Statics are the copied files, in manifest order.
	Statics []string
	// Archive is the tarball path, empty when the step was skipped.
	Archive string
	// RPM reports whether the RPM tool ran.
	RPM bool
}

// Packager stages one package. It keeps a private copy of its configuration
// and holds no state between builds.
type Packager struct {
	// cfg is the validated configuration.
	cfg *config.Config
	// runner executes the external tools.
	runner process.Runner
	// strict turns leftover placeholders into errors.
	strict bool
	// skipArchive disables the tar step.
	skipArchive bool
	// skipRPM disables the RPM step.
	skipRPM bool
}

// Option configures a Packager.
type Option func(*Packager)

// WithRunner sets the external process runner.
func WithRunner(r process.Runner) Option {
	return func(p *Packager) {
		if r != nil {
			p.runner = r
		}
	}
}

// WithStrict fails the build when rendered output still contains placeholders.
func WithStrict(strict bool) Option {
	return func(p *Packager) {
		p.strict = strict
	}
}

// WithSkipArchive disables the tar step.
func WithSkipArchive(skip bool) Option {
	return func(p *Packager) {
		p.skipArchive = skip
	}
}

// WithSkipRPM disables the RPM step.
func WithSkipRPM(skip bool) Option {
	return func(p *Packager) {
		p.skipRPM = skip
	}
}

// New validates cfg and returns a Packager using a copy of it.
// Without WithRunner the tools run through process.NewExecRunner.
func New(cfg *config.Config, opts ...Option) (*Packager, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	p := &Packager{
		cfg: cfg.Clone(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.runner == nil {
		p.runner = process.NewExecRunner()
	}

	return p, nil
}

// Table builds the substitution table for release.
func (p *Packager) Table(release Release) (*substitution.Table, error) {
	if err := release.Validate(); err != nil {
		return nil, err
	}

	return substitution.Build(substitution.Inputs{
		Name:                p.cfg.Package.Name,
		Version:             release.Version,
		RPMVersion:          release.RPMVersion,
		SystemExec:          p.cfg.Package.SystemExec,
		AppVersion:          p.cfg.Package.AppVersion,
		SoftwareVersion:     p.cfg.Package.SoftwareVersion,
		SystemdDependencies: p.cfg.Systemd.Dependencies,
		SystemdConfPath:     p.cfg.Systemd.ConfPath,
		SystemdPreExec:      p.cfg.Systemd.PreExec,
		SystemdCommonJSON:   p.cfg.Systemd.CommonJSON,
		SystemdAlias:        p.cfg.Systemd.Alias,
		Extra:               p.cfg.Tokens,
	})
}

// item is one manifest entry with its source and resolved destination.
type item struct {
	entry       manifest.Entry
	source      string
	destination string
}

// plan resolves every destination and rejects collisions.
func (p *Packager) plan(ctx context.Context, table *substitution.Table) (templates, statics []item, err error) {
	seen := make(map[string]string, len(p.cfg.Templates)+len(p.cfg.Statics))

	resolve := func(entries []manifest.Entry) ([]item, error) {
		items := make([]item, 0, len(entries))

		for _, entry := range entries {
			destination := filepath.ToSlash(filepath.Clean(table.Resolve(entry.Destination)))

			if prev, ok := seen[destination]; ok {
				return nil, failure.InvalidConfig("%s and %s both resolve to %s", prev, entry.Source, destination)
			}

			seen[destination] = entry.Source

			if err := p.checkResolved(ctx, entry.Source, destination); err != nil {
				return nil, err
			}

			items = append(items, item{
				entry:       entry,
				source:      filepath.Join(p.cfg.SourceDir, filepath.FromSlash(entry.Source)),
				destination: destination,
			})
		}

		return items, nil
	}

	if templates, err = resolve(p.cfg.Templates); err != nil {
		return nil, nil, err
	}

	if statics, err = resolve(p.cfg.Statics); err != nil {
		return nil, nil, err
	}

	return templates, statics, nil
}

// checkResolved warns about placeholders left in s, rendered from source,
// or fails in strict mode.
func (p *Packager) checkResolved(ctx context.Context, source, s string) error {
	leftovers := substitution.Unresolved(s)
	if len(leftovers) == 0 {
		return nil
	}

	if p.strict {
		return failure.New(failure.KindUnresolvedToken, "check placeholders", source,
			fmt.Errorf("unresolved %s", strings.Join(leftovers, ", ")))
	}

	logger.WarnKV(ctx, "Placeholders left unresolved", "source", source, "tokens", leftovers)

	return nil
}

// newTree returns the staging tree of the configuration.
func (p *Packager) newTree() *staging.Tree {
	return staging.NewTree(p.cfg.StagingRoot)
}
