// Package config resolves ozy's layered YAML configuration.
//
// A base document is loaded first, then every `.ozy.yaml` found in the
// ancestors of the working directory is merged on top of it, root first,
// so the override closest to the working directory is applied last.
// Template expansion and variable substitution are scoped to a single app
// and live in template.go; loading never resolves placeholders.
package config

import (
	"sort"
	"time"

	"github.com/arthur-debert/ozy/pkg/errors"
)

// Recognised top-level keys
const (
	KeyName        = "name"
	KeyOzyVersion  = "ozy_version"
	KeyOzyDownload = "ozy_download"
	KeyUpdateEvery = "ozy_update_every"
	KeyTemplates   = "templates"
	KeyApps        = "apps"
)

// Config is a merged configuration tree. Nested mappings are always
// map[string]interface{}.
type Config map[string]interface{}

// String returns a top-level string value
func (c Config) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Name returns the team config name, if any
func (c Config) Name() (string, bool) {
	return c.String(KeyName)
}

// Apps returns the apps section
func (c Config) Apps() (map[string]interface{}, error) {
	apps, ok := c[KeyApps].(map[string]interface{})
	if !ok {
		return nil, errors.New(errors.ErrSchema, "expected a mapping-type apps section in the YAML")
	}
	return apps, nil
}

// AppNames returns the app names in sorted order
func (c Config) AppNames() ([]string, error) {
	apps, err := c.Apps()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Templates returns the templates section, or an empty mapping
func (c Config) Templates() map[string]interface{} {
	if templates, ok := c[KeyTemplates].(map[string]interface{}); ok {
		return templates
	}
	return map[string]interface{}{}
}

// UpdateInterval returns ozy_update_every as a duration. The second value
// is false when the key is absent, not a whole number of seconds, or not
// positive; any of those leaves automatic updates off.
func (c Config) UpdateInterval() (time.Duration, bool) {
	var secs int64
	switch v := c[KeyUpdateEvery].(type) {
	case int:
		secs = int64(v)
	case int64:
		secs = v
	case uint64:
		secs = int64(v)
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		secs = int64(v)
	default:
		return 0, false
	}
	if secs <= 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}
