package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvTeamURL overrides the persisted team config URL
const EnvTeamURL = "OZY_URL"

// UserConfig holds the user-scoped settings
type UserConfig struct {
	// URL is the team configuration the base config is refreshed from
	URL string `koanf:"url" yaml:"url"`
}

// LoadUser reads the user config at path through the same layering as the
// base config: the user document, then ancestor overrides of cwd, then the
// OZY_URL environment variable. A missing user document is not an error.
func LoadUser(path, cwd string) (UserConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{"url": ""}, "."), nil); err != nil {
		return UserConfig{}, errors.Wrap(err, errors.ErrInternal, "while loading user config defaults")
	}

	sources := []string{}
	if _, err := os.Stat(path); err == nil {
		sources = append(sources, path)
	}
	overrides, err := LocalOverrides(cwd)
	if err != nil {
		return UserConfig{}, err
	}
	sources = append(sources, overrides...)

	for _, src := range sources {
		if err := k.Load(file.Provider(src), yaml.Parser()); err != nil {
			return UserConfig{}, errors.Wrapf(err, errors.ErrParse, "while parsing %s", src)
		}
	}

	err = k.Load(env.ProviderWithValue("OZY_", ".", func(key, value string) (string, interface{}) {
		if key != EnvTeamURL || value == "" {
			return "", nil
		}
		return "url", value
	}), nil)
	if err != nil {
		return UserConfig{}, errors.Wrap(err, errors.ErrInternal, "while reading environment overrides")
	}

	var conf UserConfig
	if err := k.Unmarshal("", &conf); err != nil {
		return UserConfig{}, errors.Wrap(err, errors.ErrSchema, "while decoding user config")
	}
	conf.URL = strings.TrimSpace(conf.URL)
	return conf, nil
}

// SaveUser writes the user config, replacing any existing document
func SaveUser(path string, conf UserConfig) error {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]interface{}{"url": conf.URL}, "."), nil); err != nil {
		return errors.Wrap(err, errors.ErrInternal, "while preparing user config")
	}
	data, err := k.Marshal(yaml.Parser())
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "while encoding user config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while creating %s", filepath.Dir(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while writing %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, errors.ErrIO, "while replacing %s", path)
	}
	return nil
}
