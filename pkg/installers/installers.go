// Package installers implements the closed set of installation backends.
//
// Each backend is a plain value describing what to install. A Runner turns
// a backend into files on disk: it leaves the target directory holding a
// usable installation on success and may leave garbage behind on failure,
// which the caller discards.
package installers

import (
	"fmt"
	"sort"

	"github.com/arthur-debert/ozy/pkg/errors"
)

// Kind is the config `type` tag selecting a backend
type Kind string

// Known backends
const (
	KindSingleBinaryZip Kind = "single_binary_zip"
	KindTarball         Kind = "tarball"
	KindShell           Kind = "shell_install"
	KindSingleFile      Kind = "single_file"
	KindPip             Kind = "pip"
	KindConda           Kind = "conda"
	KindZip             Kind = "zip"
)

// Kinds lists every supported tag
var Kinds = []Kind{
	KindSingleBinaryZip,
	KindTarball,
	KindShell,
	KindSingleFile,
	KindPip,
	KindConda,
	KindZip,
}

// ParseKind maps a config tag to a Kind
func ParseKind(tag string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == tag {
			return k, true
		}
	}
	return "", false
}

// DefaultCondaBin is used when an app does not name its package manager
const DefaultCondaBin = "conda"

// Installer is one of the backend values in this package. The set is
// closed: Runner.Install switches over every implementation.
type Installer interface {
	Kind() Kind
	// Describe is a stable summary derived from the backend's content
	Describe() string
	sealed()
}

// Download holds the fields shared by the URL-driven backends
type Download struct {
	Name    string
	Version string
	URL     string
	// SHA256 is an optional hex digest checked after download
	SHA256 string
}

// SingleFile downloads one file and makes it executable
type SingleFile struct{ Download }

// SingleBinaryZip extracts the only entry of a zip archive
type SingleBinaryZip struct{ Download }

// Tarball unpacks a compressed tar archive
type Tarball struct{ Download }

// Zip unpacks a zip archive with its directory structure
type Zip struct {
	Download
	ExecutablePath string
}

// Shell runs a downloaded installer script with INSTALL_DIR set
type Shell struct {
	Download
	ExtraPath string
	Args      []string
}

// PackageEnv creates a package-manager environment holding one package
type PackageEnv struct {
	Name     string
	Package  string
	Version  string
	Channels []string
	CondaBin string
	// Env applies to the environment-creation subprocess only
	Env map[string]string
}

// Conda installs Package=Version into a fresh environment, or freezes it
// into a single binary when PyInstaller is set.
type Conda struct {
	PackageEnv
	PyInstaller    bool
	ExecutablePath string
}

// Pip creates an environment holding pip, then pip-installs Package==Version
type Pip struct{ PackageEnv }

func (*SingleFile) Kind() Kind      { return KindSingleFile }
func (*SingleBinaryZip) Kind() Kind { return KindSingleBinaryZip }
func (*Tarball) Kind() Kind         { return KindTarball }
func (*Zip) Kind() Kind             { return KindZip }
func (*Shell) Kind() Kind           { return KindShell }
func (*Conda) Kind() Kind           { return KindConda }
func (*Pip) Kind() Kind             { return KindPip }

func (i *SingleFile) Describe() string {
	return fmt.Sprintf("file installer for %s v.%s", i.Name, i.Version)
}

func (i *SingleBinaryZip) Describe() string {
	return fmt.Sprintf("single binary zip installer for %s v.%s", i.Name, i.Version)
}

func (i *Tarball) Describe() string {
	return fmt.Sprintf("tarball installer for %s v.%s", i.Name, i.Version)
}

func (i *Zip) Describe() string {
	return fmt.Sprintf("zip installer for %s v.%s", i.Name, i.Version)
}

func (i *Shell) Describe() string {
	return fmt.Sprintf("shell installer for %s v.%s", i.Name, i.Version)
}

func (i *Conda) Describe() string {
	return fmt.Sprintf("conda installer for %s=%s", i.Package, i.Version)
}

func (i *Pip) Describe() string {
	return fmt.Sprintf("pip installer for %s=%s", i.Package, i.Version)
}

func (*SingleFile) sealed()      {}
func (*SingleBinaryZip) sealed() {}
func (*Tarball) sealed()         {}
func (*Zip) sealed()             {}
func (*Shell) sealed()           {}
func (*Conda) sealed()           {}
func (*Pip) sealed()             {}

// Options carries the app-level values a backend may need besides its own keys
type Options struct {
	Name           string
	Version        string
	ExecutablePath string
}

// New builds the backend for kind from an app's resolved mapping. Each
// backend validates its required keys and fills in defaults.
func New(kind Kind, opts Options, mapping map[string]interface{}) (Installer, error) {
	switch kind {
	case KindSingleFile, KindSingleBinaryZip, KindTarball, KindZip, KindShell:
		dl, err := downloadFields(opts, mapping)
		if err != nil {
			return nil, err
		}
		switch kind {
		case KindSingleFile:
			return &SingleFile{Download: dl}, nil
		case KindSingleBinaryZip:
			return &SingleBinaryZip{Download: dl}, nil
		case KindTarball:
			return &Tarball{Download: dl}, nil
		case KindZip:
			return &Zip{Download: dl, ExecutablePath: opts.ExecutablePath}, nil
		}
		extraPath, _, err := optionalString(opts.Name, mapping, "extra_path_during_install")
		if err != nil {
			return nil, err
		}
		args, err := optionalStrings(opts.Name, mapping, "shell_args")
		if err != nil {
			return nil, err
		}
		return &Shell{Download: dl, ExtraPath: extraPath, Args: args}, nil

	case KindConda, KindPip:
		env, err := packageEnvFields(opts, mapping)
		if err != nil {
			return nil, err
		}
		if kind == KindPip {
			return &Pip{PackageEnv: env}, nil
		}
		pyinstaller, err := optionalBool(opts.Name, mapping, "pyinstaller", false)
		if err != nil {
			return nil, err
		}
		return &Conda{PackageEnv: env, PyInstaller: pyinstaller, ExecutablePath: opts.ExecutablePath}, nil
	}

	return nil, errors.Newf(errors.ErrSchema, "app type %s not yet supported", kind)
}

func downloadFields(opts Options, mapping map[string]interface{}) (Download, error) {
	url, err := requiredString(opts.Name, mapping, "url")
	if err != nil {
		return Download{}, err
	}
	sum, _, err := optionalString(opts.Name, mapping, "sha256")
	if err != nil {
		return Download{}, err
	}
	return Download{Name: opts.Name, Version: opts.Version, URL: url, SHA256: sum}, nil
}

func packageEnvFields(opts Options, mapping map[string]interface{}) (PackageEnv, error) {
	pkg, err := requiredString(opts.Name, mapping, "package")
	if err != nil {
		return PackageEnv{}, err
	}
	channels, err := optionalStrings(opts.Name, mapping, "channels")
	if err != nil {
		return PackageEnv{}, err
	}
	condaBin, ok, err := optionalString(opts.Name, mapping, "conda_bin")
	if err != nil {
		return PackageEnv{}, err
	}
	if !ok {
		condaBin = DefaultCondaBin
	}
	env, err := optionalStringMap(opts.Name, mapping, "env")
	if err != nil {
		return PackageEnv{}, err
	}
	return PackageEnv{
		Name:     opts.Name,
		Package:  pkg,
		Version:  opts.Version,
		Channels: channels,
		CondaBin: condaBin,
		Env:      env,
	}, nil
}

func schemaError(app, key, expected string) error {
	return errors.Newf(errors.ErrSchema, "expected %s %s in config for %s", expected, key, app).
		WithDetail("app", app).
		WithDetail("key", key)
}

func requiredString(app string, mapping map[string]interface{}, key string) (string, error) {
	s, ok := mapping[key].(string)
	if !ok {
		return "", schemaError(app, key, "a string")
	}
	return s, nil
}

func optionalString(app string, mapping map[string]interface{}, key string) (string, bool, error) {
	raw, present := mapping[key]
	if !present || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, schemaError(app, key, "a string")
	}
	return s, true, nil
}

func optionalBool(app string, mapping map[string]interface{}, key string, def bool) (bool, error) {
	raw, present := mapping[key]
	if !present || raw == nil {
		return def, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, schemaError(app, key, "a boolean")
	}
	return b, nil
}

func optionalStrings(app string, mapping map[string]interface{}, key string) ([]string, error) {
	raw, present := mapping[key]
	if !present || raw == nil {
		return []string{}, nil
	}
	seq, ok := raw.([]interface{})
	if !ok {
		return nil, schemaError(app, key, "a list of strings")
	}
	out := make([]string, 0, len(seq))
	for _, item := range seq {
		s, ok := item.(string)
		if !ok {
			return nil, schemaError(app, key, "a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalStringMap(app string, mapping map[string]interface{}, key string) (map[string]string, error) {
	raw, present := mapping[key]
	if !present || raw == nil {
		return map[string]string{}, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, schemaError(app, key, "a mapping of strings")
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return nil, schemaError(app, key+"."+k, "a string")
		}
		out[k] = s
	}
	return out, nil
}

// envPairs renders a map as sorted KEY=VALUE entries
func envPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+env[k])
	}
	return pairs
}
