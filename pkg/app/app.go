// Package app resolves one entry of the apps section into an immutable
// Descriptor: the pinned version, publication mode, executable location
// and installer backend of a single tool.
package app

import (
	"context"
	"fmt"
	"strconv"

	"github.com/arthur-debert/ozy/pkg/config"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/installers"
	"github.com/cespare/xxhash/v2"
)

// App entry keys read by the resolver itself
const (
	KeyVersion        = "version"
	KeyType           = "type"
	KeyRelocatable    = "relocatable"
	KeyExecutablePath = "executable_path"
	KeyPostInstall    = "post_install"
)

// Descriptor is a fully resolved app. Build it with Resolve and treat it as
// read-only.
type Descriptor struct {
	Name    string
	Version string
	// Relocatable installs are renamed into place; others are symlinked
	// from the published path to the staging directory
	Relocatable bool
	// ExecutablePath is relative to the install directory
	ExecutablePath string
	Installer      installers.Installer
	PostInstall    []installers.Step
}

// Resolve builds the descriptor for apps.<name> in cfg, expanding its
// template and placeholders against facts.
func Resolve(name string, cfg config.Config, facts config.HostFacts) (*Descriptor, error) {
	apps, err := cfg.Apps()
	if err != nil {
		return nil, err
	}

	raw, ok := apps[name]
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "could not find app %s in config", name).
			WithDetail("app", name)
	}
	entry, ok := raw.(map[string]interface{})
	if !ok {
		if raw != nil {
			return nil, errors.Newf(errors.ErrSchema, "expected a mapping for app %s", name).
				WithDetail("app", name)
		}
		entry = map[string]interface{}{}
	}

	mapping, err := config.ApplyTemplate(entry, cfg.Templates())
	if err != nil {
		return nil, errors.Wrapf(err, errors.GetErrorCode(err), "while resolving app %s", name)
	}
	config.Substitute(mapping, facts)

	version, ok := mapping[KeyVersion].(string)
	if !ok {
		return nil, errors.Newf(errors.ErrSchema, "expected a string version in config for %s", name).
			WithDetail("app", name)
	}

	relocatable := true
	if v, present := mapping[KeyRelocatable]; present && v != nil {
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Newf(errors.ErrSchema, "expected a boolean relocatable in config for %s", name).
				WithDetail("app", name)
		}
		relocatable = b
	}

	tag, ok := mapping[KeyType].(string)
	if !ok {
		return nil, errors.Newf(errors.ErrSchema, "expected a type field for app %s that contains a string", name).
			WithDetail("app", name)
	}
	kind, ok := installers.ParseKind(tag)
	if !ok {
		return nil, errors.Newf(errors.ErrSchema, "app type %s not yet supported", tag).
			WithDetail("app", name).
			WithDetail("type", tag)
	}

	exePath := name
	if v, present := mapping[KeyExecutablePath]; present && v != nil {
		s, ok := v.(string)
		if !ok {
			return nil, errors.Newf(errors.ErrSchema, "expected a string executable_path in config for %s", name).
				WithDetail("app", name)
		}
		exePath = s
	}

	inst, err := installers.New(kind, installers.Options{
		Name:           name,
		Version:        version,
		ExecutablePath: exePath,
	}, mapping)
	if err != nil {
		return nil, err
	}

	steps, err := installers.ParsePostInstall(name, mapping[KeyPostInstall])
	if err != nil {
		return nil, err
	}

	return &Descriptor{
		Name:           name,
		Version:        version,
		Relocatable:    relocatable,
		ExecutablePath: exePath,
		Installer:      inst,
		PostInstall:    steps,
	}, nil
}

// String is the one-line summary shown by info
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s %s: %s", d.Name, d.Version, d.Installer.Describe())
}

// Equal compares the identity fields. Post-install steps are not part of
// an app's identity.
func (d *Descriptor) Equal(other *Descriptor) bool {
	if d == nil || other == nil {
		return d == other
	}
	return d.Name == other.Name &&
		d.Version == other.Version &&
		d.Relocatable == other.Relocatable &&
		d.ExecutablePath == other.ExecutablePath &&
		d.Installer.Describe() == other.Installer.Describe()
}

// Hash is consistent with Equal
func (d *Descriptor) Hash() uint64 {
	h := xxhash.New()
	for _, field := range []string{
		d.Name,
		d.Version,
		strconv.FormatBool(d.Relocatable),
		d.ExecutablePath,
		d.Installer.Describe(),
	} {
		_, _ = h.WriteString(strconv.Itoa(len(field)))
		_, _ = h.WriteString(":")
		_, _ = h.WriteString(field)
	}
	return h.Sum64()
}

// Build installs the app into dir and runs its post-install steps there
func (d *Descriptor) Build(ctx context.Context, runner *installers.Runner, dir string) error {
	if err := runner.Install(ctx, d.Installer, dir); err != nil {
		return err
	}
	return runner.RunSteps(ctx, dir, d.PostInstall)
}

// Skipped records an app left out of a bulk operation
type Skipped struct {
	Name string
	Err  error
}

// ResolveAll resolves every app in cfg in name order. Apps that fail to
// resolve are returned in skipped instead of aborting the whole batch.
func ResolveAll(cfg config.Config, facts config.HostFacts) ([]*Descriptor, []Skipped, error) {
	names, err := cfg.AppNames()
	if err != nil {
		return nil, nil, err
	}

	var resolved []*Descriptor
	var skipped []Skipped
	for _, name := range names {
		d, err := Resolve(name, cfg, facts)
		if err != nil {
			skipped = append(skipped, Skipped{Name: name, Err: err})
			continue
		}
		resolved = append(resolved, d)
	}
	return resolved, skipped, nil
}
