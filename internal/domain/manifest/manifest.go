package manifest

import (
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/rpm-stager/internal/failure"
)

// FileMode is a permission set written as an octal string in YAML ("0755").
// The zero value means "keep the default".
type FileMode fs.FileMode

// Perm returns the permission bits, or fallback for the zero value.
func (m FileMode) Perm(fallback fs.FileMode) fs.FileMode {
	if m == 0 {
		return fallback
	}

	return fs.FileMode(m).Perm()
}

// String renders the mode as a four-digit octal number.
func (m FileMode) String() string {
	return fmt.Sprintf("%04o", uint32(m))
}

// MarshalYAML implements yaml.Marshaler.
func (m FileMode) MarshalYAML() (any, error) {
	return m.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *FileMode) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}

	value, err := strconv.ParseUint(strings.TrimPrefix(raw, "0o"), 8, 32)
	if err != nil {
		return fmt.Errorf("file mode %q: %w", raw, err)
	}

	if value&^uint64(fs.ModePerm) != 0 {
		return fmt.Errorf("file mode %q: only permission bits are allowed", raw)
	}

	*m = FileMode(value)

	return nil
}

// Entry maps a source file to a destination inside the staging tree.
// Destination may contain placeholders.
type Entry struct {
	// Source is the path of the input file relative to the source directory.
	Source string `yaml:"source"`
	// Destination is the slash-separated path inside the staging root.
	Destination string `yaml:"destination"`
	// Mode optionally overrides the permissions of the written file.
	Mode FileMode `yaml:"mode,omitempty"`
}

// Manifest lists the rendered templates and verbatim static files.
type Manifest struct {
	Templates []Entry
	Statics   []Entry
}

// Validate checks that every entry has a source and a relative destination.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Source) == "" {
		return failure.InvalidConfig("entry for %q has no source", e.Destination)
	}

	if strings.TrimSpace(e.Destination) == "" {
		return failure.InvalidConfig("entry for %q has no destination", e.Source)
	}

	if path.IsAbs(e.Destination) || strings.HasPrefix(e.Destination, `\`) {
		return failure.InvalidConfig("destination %q must be relative to the staging root", e.Destination)
	}

	return nil
}

// Validate checks every entry of the manifest.
func (m Manifest) Validate() error {
	if len(m.Templates) == 0 && len(m.Statics) == 0 {
		return failure.InvalidConfig("manifest is empty")
	}

	for _, e := range m.Templates {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	for _, e := range m.Statics {
		if err := e.Validate(); err != nil {
			return err
		}
	}

	return nil
}
