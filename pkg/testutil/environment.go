// pkg/testutil/environment.go
// DEPENDENCIES: paths
// PURPOSE: Isolated HOME trees with the ozy layout and config files

package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/arthur-debert/ozy/pkg/paths"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// Env is an isolated HOME for one test
type Env struct {
	Home  string
	Paths paths.Paths

	t *testing.T
}

// NewEnv creates a temp HOME, points HOME at it and creates the managed
// directories.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	home := t.TempDir()
	t.Setenv(paths.EnvHome, home)
	t.Setenv("OZY_URL", "")

	p, err := paths.New(home)
	require.NoError(t, err)
	require.NoError(t, p.EnsureDirs())

	return &Env{Home: home, Paths: p, t: t}
}

// WriteBaseConfig marshals doc into the base config
func (e *Env) WriteBaseConfig(doc map[string]interface{}) string {
	e.t.Helper()
	return e.writeYAML(e.Paths.BaseConfigPath(), doc)
}

// WriteUserConfig records url as the saved team config URL
func (e *Env) WriteUserConfig(url string) string {
	e.t.Helper()
	return e.writeYAML(e.Paths.UserConfigPath(), map[string]interface{}{"url": url})
}

// WriteLocalOverride writes a .ozy.yaml in dir
func (e *Env) WriteLocalOverride(dir string, doc map[string]interface{}) string {
	e.t.Helper()
	return e.writeYAML(filepath.Join(dir, paths.LocalConfigFile), doc)
}

// WriteFile writes content at path, creating parents
func (e *Env) WriteFile(path, content string, mode os.FileMode) string {
	e.t.Helper()
	require.NoError(e.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(e.t, os.WriteFile(path, []byte(content), mode))
	return path
}

func (e *Env) writeYAML(path string, doc map[string]interface{}) string {
	e.t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(e.t, err)
	return e.WriteFile(path, string(data), 0644)
}

// ReadFile returns the content at path, failing the test if unreadable
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
