package staging

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"

	"github.com/oshokin/rpm-stager/internal/domain/manifest"
	"github.com/oshokin/rpm-stager/internal/domain/substitution"
	"github.com/oshokin/rpm-stager/internal/failure"
)

const (
	// DefaultFileMode is used for rendered templates without an explicit mode.
	DefaultFileMode fs.FileMode = 0o644

	// DefaultDirMode is used for every directory created in the tree.
	DefaultDirMode fs.FileMode = 0o755
)

var (
	errOutsideRoot = errors.New("path escapes the staging root")
	errIsDirectory = errors.New("is a directory")
)

// Tree is a staging directory.
type Tree struct {
	// root is the directory the installable layout is built in.
	root string
}

// NewTree returns a Tree rooted at root. Nothing is created on disk.
func NewTree(root string) *Tree {
	return &Tree{
		root: filepath.Clean(root),
	}
}

// Root returns the root directory of the tree.
func (t *Tree) Root() string {
	return t.root
}

// Path maps a slash-separated destination to a filesystem path under the root.
func (t *Tree) Path(destination string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(destination, `\`, "/"))
	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", failure.New(failure.KindInvalidConfig, "resolve destination", destination, errOutsideRoot)
	}

	return filepath.Join(t.root, filepath.FromSlash(cleaned)), nil
}

// Render reads source and substitutes placeholders in its content.
func Render(source string, table *substitution.Table) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(source))
	if err != nil {
		return nil, classify("read template", source, err)
	}

	return []byte(table.Resolve(string(contents))), nil
}

// Verifier inspects rendered content before it is written.
type Verifier func(contents []byte) error

// RenderTemplate renders source into destination, resolved against the tree.
// The source is read and verified before anything is created, so a missing
// template or a rejected rendering leaves no output. verify may be nil.
func (t *Tree) RenderTemplate(
	source string,
	entry manifest.Entry,
	table *substitution.Table,
	verify Verifier,
) (string, []byte, error) {
	target, err := t.Path(table.Resolve(entry.Destination))
	if err != nil {
		return "", nil, err
	}

	contents, err := Render(source, table)
	if err != nil {
		return "", nil, err
	}

	if verify != nil {
		if err = verify(contents); err != nil {
			return "", nil, err
		}
	}

	if err = MakeDirs(filepath.Dir(target)); err != nil {
		return "", nil, err
	}

	mode := entry.Mode.Perm(DefaultFileMode)
	if err = os.WriteFile(target, contents, mode); err != nil {
		return "", nil, failure.New(failure.KindFilesystem, "write template", target, err)
	}

	// WriteFile keeps the mode of a file left by a previous run.
	if entry.Mode != 0 {
		if err = os.Chmod(target, mode); err != nil {
			return "", nil, failure.New(failure.KindFilesystem, "chmod", target, err)
		}
	}

	return target, contents, nil
}

// CopyStatic copies source verbatim to destination, resolved against the tree,
// replacing any previous copy.
func (t *Tree) CopyStatic(source string, entry manifest.Entry, table *substitution.Table) (string, error) {
	target, err := t.Path(table.Resolve(entry.Destination))
	if err != nil {
		return "", err
	}

	info, err := RequireFile("copy static file", source)
	if err != nil {
		return "", err
	}

	if err = MakeDirs(filepath.Dir(target)); err != nil {
		return "", err
	}

	// A read-only copy from a previous run would make the overwrite fail.
	if err = os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", failure.New(failure.KindFilesystem, "remove previous copy", target, err)
	}

	opts := copy.Options{
		Sync: true,
	}
	if err = copy.Copy(source, target, opts); err != nil {
		return "", classify("copy static file", source, err)
	}

	if entry.Mode != 0 {
		if err = os.Chmod(target, entry.Mode.Perm(info.Mode())); err != nil {
			return "", failure.New(failure.KindFilesystem, "chmod", target, err)
		}
	}

	return target, nil
}

// RequireFile checks that path exists and is not a directory.
func RequireFile(op, path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, classify(op, path, err)
	}

	if info.IsDir() {
		return nil, failure.New(failure.KindFilesystem, op, path, errIsDirectory)
	}

	return info, nil
}

// MakeDirs creates dir and its parents. An existing directory is not an error.
func MakeDirs(dir string) error {
	if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
		return failure.New(failure.KindFilesystem, "create directory", dir, err)
	}

	return nil
}

// classify turns a not-exist error into KindMissingFile and anything else into KindFilesystem.
func classify(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return failure.New(failure.KindMissingFile, op, path, err)
	}

	return failure.New(failure.KindFilesystem, op, path, err)
}
