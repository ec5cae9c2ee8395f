package config

import (
	"os"
	"path/filepath"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/logging"
	"github.com/knadh/koanf/maps"
	"gopkg.in/yaml.v3"
)

// LocalConfigFile is the per-directory override document
const LocalConfigFile = ".ozy.yaml"

// Parse decodes a YAML document into a Config. An empty document yields
// an empty Config; a document whose root is not a mapping is a parse error.
func Parse(data []byte, source string) (Config, error) {
	var root interface{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrapf(err, errors.ErrParse, "while parsing %s", source)
	}

	switch doc := root.(type) {
	case nil:
		return Config{}, nil
	case map[string]interface{}:
		maps.IntfaceKeysToStrings(doc)
		return Config(doc), nil
	case map[interface{}]interface{}:
		wrapped := map[string]interface{}{"root": doc}
		maps.IntfaceKeysToStrings(wrapped)
		return Config(wrapped["root"].(map[string]interface{})), nil
	default:
		return nil, errors.Newf(errors.ErrParse, "while parsing %s: expected a mapping at the document root", source)
	}
}

// ParseFile reads and parses one document
func ParseFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIO, "while reading %s", path)
	}
	return Parse(data, path)
}

// Merge returns base with override applied on top. Nested mappings present
// in both are merged recursively; every other value in override replaces
// the one in base. Neither input is modified and the result shares no
// mutable state with them.
func Merge(base, override Config) Config {
	result := map[string]interface{}{}
	if len(base) > 0 {
		result = maps.Copy(base)
	}
	if len(override) > 0 {
		maps.Merge(maps.Copy(override), result)
	}
	return Config(result)
}

// Load reads basePath and merges every ancestor override of cwd onto it.
// An empty cwd means the process working directory.
func Load(basePath, cwd string) (Config, error) {
	logger := logging.GetLogger("config")

	cfg, err := ParseFile(basePath)
	if err != nil {
		return nil, err
	}

	overrides, err := LocalOverrides(cwd)
	if err != nil {
		return nil, err
	}
	for _, path := range overrides {
		logger.Debug().Str("path", path).Msg("Applying local override")
		override, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		cfg = Merge(cfg, override)
	}

	return cfg, nil
}

// LocalOverrides lists the existing override files in the ancestors of
// cwd (cwd included), ordered from the filesystem root down.
func LocalOverrides(cwd string) ([]string, error) {
	if cwd == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrIO, "while determining the working directory")
		}
		cwd = wd
	}
	abs, err := filepath.Abs(cwd)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrIO, "while resolving %s", cwd)
	}

	var ancestors []string
	for dir := abs; ; dir = filepath.Dir(dir) {
		ancestors = append(ancestors, dir)
		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	var found []string
	for i := len(ancestors) - 1; i >= 0; i-- {
		candidate := filepath.Join(ancestors[i], LocalConfigFile)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
	}
	return found, nil
}
