package config

import (
	"fmt"
	"maps"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/rpm-stager/internal/domain/manifest"
	"github.com/oshokin/rpm-stager/internal/failure"
)

// Config describes how to stage one package.
type Config struct {
	// Package holds the identity of the staged package.
	Package Package `yaml:"package"`
	// Systemd holds the values substituted into the systemd unit templates.
	Systemd Systemd `yaml:"systemd"`
	// Tokens declares additional @TOKEN@ placeholders.
	Tokens map[string]string `yaml:"tokens,omitempty"`
	// SourceDir is the directory template and static sources are relative to.
	SourceDir string `yaml:"source_dir"`
	// StagingRoot is the directory the installable tree is built in.
	StagingRoot string `yaml:"staging_root"`
	// Templates are rendered with placeholder substitution.
	Templates []manifest.Entry `yaml:"templates"`
	// Statics are copied verbatim.
	Statics []manifest.Entry `yaml:"statics"`
	// Archive configures the tarball step.
	Archive Archive `yaml:"archive"`
	// RPM configures the RPM generation step.
	RPM RPM `yaml:"rpm"`
}

// Package identifies the staged package.
type Package struct {
	// Name is the short package name substituted for @NAME@.
	Name string `yaml:"name"`
	// SystemExec is the installed executable name substituted for @SYSTEM_EXEC@.
	SystemExec string `yaml:"system_exec"`
	// AppVersion is substituted for @APP_VERSION@.
	AppVersion string `yaml:"app_version"`
	// SoftwareVersion is substituted for @SOFTWARE_VERSION@. Required at build time.
	SoftwareVersion string `yaml:"software_version"`
}

// Systemd holds the systemd related placeholder values.
type Systemd struct {
	Dependencies string `yaml:"dependencies"`
	ConfPath     string `yaml:"conf_path"`
	PreExec      string `yaml:"preexec"`
	CommonJSON   string `yaml:"common_json"`
	Alias        string `yaml:"alias"`
}

// Archive configures the external tar step.
type Archive struct {
	// Tool is the tar executable. Empty disables the step.
	Tool string `yaml:"tool"`
	// Output is the archive path, relative to the working directory. May contain placeholders.
	Output string `yaml:"output"`
	// Paths are the staging root entries put into the archive.
	Paths []string `yaml:"paths"`
}

// RPM configures the external RPM generation step.
type RPM struct {
	// Tool is the RPM generator. Empty disables the step.
	Tool string `yaml:"tool"`
	// Extras are scriptlet files handed to the tool. May contain placeholders.
	Extras []string `yaml:"extras,omitempty"`
	// Args are appended to the tool command line. May contain placeholders.
	Args []string `yaml:"args,omitempty"`
	// WorkDir is the directory the tool runs in. Defaults to the working directory.
	WorkDir string `yaml:"workdir,omitempty"`
}

const (
	// DefaultConfigFilename is the filename init-config writes by default.
	DefaultConfigFilename = "rpm-stager.yaml"

	// DefaultFilePermissions is the permission set of written config files.
	DefaultFilePermissions = 0o644

	// DefaultArchiveTool is the tar executable of the built-in configuration.
	DefaultArchiveTool = "tar"

	// DefaultRPMTool is the RPM generator of the built-in configuration, run from the working directory.
	DefaultRPMTool = "./tar2rpm.sh"

	// DefaultArchiveOutput is the archive name used when a loaded file leaves it unset.
	DefaultArchiveOutput = "pa-@NAME@-@V@-@RV@.tgz"

	// DefaultArchivePath is the staging root entry archived when a loaded file leaves it unset.
	DefaultArchivePath = "opt"
)

// Default returns the built-in configuration staging the pa-wsgo service.
func Default() *Config {
	const installDir = "opt/pacbio/pa-@NAME@-@V@"

	return &Config{
		Package: Package{
			Name:       "wsgo",
			SystemExec: "pa-wsgo",
			AppVersion: "QAPP_VERSIONQ",
		},
		Systemd: Systemd{
			CommonJSON: "/etc/pacbio/pa-common.json",
			Alias:      "pacbio-pa-wsgo",
		},
		SourceDir:   ".",
		StagingRoot: ".",
		Templates: []manifest.Entry{
			{
				Source:      "rpm/systemd/pacbio-pa-X.conf.in",
				Destination: installDir + "/systemd/pacbio-pa-@NAME@.conf",
			},
			{
				Source:      "rpm/systemd/pacbio-pa-X.service.in",
				Destination: installDir + "/systemd/pacbio-pa-@NAME@-@V@.service",
			},
			{
				Source:      "rpm/systemd/precheck-pa-wsgo.sh.in",
				Destination: installDir + "/bin/precheck-pa-@NAME@.sh",
				Mode:        0o755,
			},
		},
		Statics: []manifest.Entry{
			{
				Source:      "bin/pawsgo",
				Destination: installDir + "/bin/pa-wsgo",
			},
		},
		Archive: Archive{
			Tool:   DefaultArchiveTool,
			Output: DefaultArchiveOutput,
			Paths:  []string{DefaultArchivePath},
		},
		RPM: RPM{
			Tool:   DefaultRPMTool,
			Extras: []string{"rpm/extras/postinstall.sh", "rpm/extras/preuninstall.sh"},
		},
	}
}

// Load reads configuration from path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()

		return cfg, Validate(cfg)
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, failure.New(failure.KindInvalidConfig, "decode configuration", path, err)
	}

	applyDefaults(&cfg)

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return failure.InvalidConfig("configuration is not set")
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return failure.New(failure.KindFilesystem, "write configuration", path, err)
	}

	return nil
}

// Validate checks required fields and the manifest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return failure.InvalidConfig("configuration is not set")
	}

	if strings.TrimSpace(cfg.Package.Name) == "" {
		return failure.InvalidConfig("package name must be provided")
	}

	if err := cfg.Manifest().Validate(); err != nil {
		return err
	}

	if (cfg.Archive.Tool != "" || cfg.RPM.Tool != "") && cfg.Archive.Output == "" {
		return failure.InvalidConfig("archive output must be provided")
	}

	if cfg.Archive.Tool != "" {
		for _, p := range cfg.Archive.Paths {
			if p == "" || path.IsAbs(p) {
				return failure.InvalidConfig("archive path %q must be relative to the staging root", p)
			}
		}
	}

	return nil
}

// Manifest returns the template and static entries.
func (c *Config) Manifest() manifest.Manifest {
	return manifest.Manifest{
		Templates: c.Templates,
		Statics:   c.Statics,
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	cloned := *c
	cloned.Tokens = maps.Clone(c.Tokens)
	cloned.Templates = slices.Clone(c.Templates)
	cloned.Statics = slices.Clone(c.Statics)
	cloned.Archive.Paths = slices.Clone(c.Archive.Paths)
	cloned.RPM.Extras = slices.Clone(c.RPM.Extras)
	cloned.RPM.Args = slices.Clone(c.RPM.Args)

	return &cloned
}

// applyDefaults fills the unset directory and archive settings of a loaded file.
// Tools are left alone: an empty tool disables its step.
func applyDefaults(cfg *Config) {
	if cfg.SourceDir == "" {
		cfg.SourceDir = "."
	}

	if cfg.StagingRoot == "" {
		cfg.StagingRoot = "."
	}

	if cfg.Archive.Output == "" {
		cfg.Archive.Output = DefaultArchiveOutput
	}

	if len(cfg.Archive.Paths) == 0 {
		cfg.Archive.Paths = []string{DefaultArchivePath}
	}
}
