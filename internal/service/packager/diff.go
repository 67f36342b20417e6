package packager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/oshokin/rpm-stager/internal/failure"
	"github.com/oshokin/rpm-stager/internal/logger"
	"github.com/oshokin/rpm-stager/internal/repository/staging"
)

// DriftStatus tells how a staged file differs from what a build would produce.
type DriftStatus string

const (
	// DriftMissing means the staged file does not exist.
	DriftMissing DriftStatus = "missing"
	// DriftChanged means the staged file has different content.
	DriftChanged DriftStatus = "changed"
)

// diffContext is the number of unchanged lines around each hunk.
const diffContext = 3

// Drift is one staged file out of date.
type Drift struct {
	// Path is the staged file.
	Path string
	// Source is the manifest source it comes from.
	Source string
	// Status tells how it differs.
	Status DriftStatus
}

// Diff compares the staging tree with what Build would write for release,
// printing unified diffs of templates to w. The tree is not modified and no
// external tool runs.
func (p *Packager) Diff(ctx context.Context, release Release, w io.Writer) ([]Drift, error) {
	ctx = logger.WithKV(ctx, "package", p.cfg.Package.Name, "version", release.Version, "rpm_version", release.RPMVersion)

	table, err := p.Table(release)
	if err != nil {
		return nil, err
	}

	templates, statics, err := p.plan(ctx, table)
	if err != nil {
		return nil, err
	}

	tree := p.newTree()

	var drifts []Drift

	for _, it := range templates {
		want, renderErr := staging.Render(it.source, table)
		if renderErr != nil {
			return nil, renderErr
		}

		if err = p.checkResolved(ctx, it.entry.Source, string(want)); err != nil {
			return nil, err
		}

		target, pathErr := tree.Path(it.destination)
		if pathErr != nil {
			return nil, pathErr
		}

		got, readErr := os.ReadFile(target)

		status, ok := compare(readErr, func() bool { return bytes.Equal(got, want) })
		if !ok {
			return nil, failure.New(failure.KindFilesystem, "read staged file", target, readErr)
		}

		if status == "" {
			continue
		}

		drifts = append(drifts, Drift{Path: target, Source: it.entry.Source, Status: status})

		if err = writeUnifiedDiff(w, target, string(got), string(want)); err != nil {
			return nil, err
		}
	}

	for _, it := range statics {
		want, sumErr := staging.Checksum(it.source)
		if sumErr != nil {
			return nil, sumErr
		}

		target, pathErr := tree.Path(it.destination)
		if pathErr != nil {
			return nil, pathErr
		}

		got, sumErr := staging.Checksum(target)

		status, ok := compare(sumErr, func() bool { return bytes.Equal(got, want) })
		if !ok {
			return nil, sumErr
		}

		if status == "" {
			continue
		}

		drifts = append(drifts, Drift{Path: target, Source: it.entry.Source, Status: status})

		if _, err = fmt.Fprintf(w, "Binary files %s and %s differ (%s)\n", it.source, target, status); err != nil {
			return nil, err
		}
	}

	logger.InfoKV(ctx, "Staging tree compared", "drifted", len(drifts))

	return drifts, nil
}

// compare maps a read error and an equality check to a drift status.
// It returns false when the read error is not a missing file.
func compare(readErr error, equal func() bool) (DriftStatus, bool) {
	switch {
	case errors.Is(readErr, fs.ErrNotExist):
		return DriftMissing, true
	case readErr != nil:
		return "", false
	case equal():
		return "", true
	default:
		return DriftChanged, true
	}
}

// writeUnifiedDiff prints the changes turning got into want.
func writeUnifiedDiff(w io.Writer, target, got, want string) error {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(got),
		FromFile: target + " (staged)",
		B:        difflib.SplitLines(want),
		ToFile:   target + " (rendered)",
		Context:  diffContext,
	}

	return difflib.WriteUnifiedDiff(w, diff)
}
