package packager

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oshokin/rpm-stager/internal/failure"
	"github.com/oshokin/rpm-stager/internal/logger"
	"github.com/oshokin/rpm-stager/internal/process"
	"github.com/oshokin/rpm-stager/internal/repository/staging"
)

// Build populates the staging tree for release and runs the archive and RPM steps.
func (p *Packager) Build(ctx context.Context, release Release) (*Result, error) {
	ctx = logger.WithKV(ctx, "package", p.cfg.Package.Name, "version", release.Version, "rpm_version", release.RPMVersion)

	table, err := p.Table(release)
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Substitution table built", "tokens", table.Len())

	templates, statics, err := p.plan(ctx, table)
	if err != nil {
		return nil, err
	}

	tree := p.newTree()

	lock, err := tree.Lock(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logger.WarnKV(ctx, "Unable to release staging lock", "error", releaseErr)
		}
	}()

	result := &Result{
		StagingRoot: tree.Root(),
		Templates:   make([]string, 0, len(templates)),
		Statics:     make([]string, 0, len(statics)),
	}

	logger.InfoKV(ctx, "Rendering templates", "count", len(templates), "staging_root", tree.Root())

	for _, it := range templates {
		verify := func(contents []byte) error {
			return p.checkResolved(ctx, it.entry.Source, string(contents))
		}

		target, _, renderErr := tree.RenderTemplate(it.source, it.entry, table, verify)
		if renderErr != nil {
			return nil, fmt.Errorf("render %s: %w", it.entry.Source, renderErr)
		}

		logger.DebugKV(ctx, "Rendered template", "source", it.source, "target", target)

		result.Templates = append(result.Templates, target)
	}

	logger.InfoKV(ctx, "Copying static files", "count", len(statics))

	for _, it := range statics {
		target, copyErr := tree.CopyStatic(it.source, it.entry, table)
		if copyErr != nil {
			return nil, fmt.Errorf("stage %s: %w", it.entry.Source, copyErr)
		}

		logger.DebugKV(ctx, "Copied static file", "source", it.source, "target", target)

		result.Statics = append(result.Statics, target)
	}

	archive := table.Resolve(p.cfg.Archive.Output)

	if p.archiveEnabled() {
		if err = p.runner.Run(ctx, p.archiveCommand(tree, archive)); err != nil {
			return nil, fmt.Errorf("archive staging tree: %w", err)
		}

		result.Archive = archive

		logger.InfoKV(ctx, "Staging tree archived", "archive", archive)
	} else {
		logger.Info(ctx, "Archive step skipped")
	}

	if !p.rpmEnabled() {
		logger.Info(ctx, "RPM step skipped")

		return result, nil
	}

	cmd, err := p.rpmCommand(archive, table.Resolve)
	if err != nil {
		return nil, err
	}

	if err = p.runner.Run(ctx, cmd); err != nil {
		return nil, fmt.Errorf("generate rpm: %w", err)
	}

	result.RPM = true

	logger.Info(ctx, "RPM generated")

	return result, nil
}

func (p *Packager) archiveEnabled() bool {
	return !p.skipArchive && p.cfg.Archive.Tool != ""
}

func (p *Packager) rpmEnabled() bool {
	return !p.skipRPM && p.cfg.RPM.Tool != ""
}

// archiveCommand builds "tar --exclude=<lock> -czf <archive> -C <root> <paths...>".
// The lock marker is held while tar runs and must not end up in the payload.
func (p *Packager) archiveCommand(tree *staging.Tree, archive string) process.Command {
	args := []string{"--exclude=" + staging.LockFilename, "-czf", archive, "-C", tree.Root()}
	for _, path := range p.cfg.Archive.Paths {
		args = append(args, filepath.FromSlash(path))
	}

	return process.Command{
		Name: p.cfg.Archive.Tool,
		Args: args,
	}
}

// rpmCommand builds "<tool> <archive> [--extra <file>]... [args...]".
// Every extra must exist before the tool is started.
func (p *Packager) rpmCommand(archive string, resolve func(string) string) (process.Command, error) {
	// The tool may run elsewhere, so paths relative to here must be made absolute.
	locate := func(path string) (string, error) {
		if p.cfg.RPM.WorkDir == "" {
			return path, nil
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return "", failure.New(failure.KindFilesystem, "resolve path", path, err)
		}

		return abs, nil
	}

	archivePath, err := locate(archive)
	if err != nil {
		return process.Command{}, err
	}

	args := []string{archivePath}

	for _, extra := range p.cfg.RPM.Extras {
		path := filepath.Join(p.cfg.SourceDir, filepath.FromSlash(resolve(extra)))
		if _, err = staging.RequireFile("check rpm extra", path); err != nil {
			return process.Command{}, err
		}

		if path, err = locate(path); err != nil {
			return process.Command{}, err
		}

		args = append(args, "--extra", path)
	}

	for _, arg := range p.cfg.RPM.Args {
		args = append(args, resolve(arg))
	}

	return process.Command{
		Name: p.cfg.RPM.Tool,
		Args: args,
		Dir:  p.cfg.RPM.WorkDir,
	}, nil
}
