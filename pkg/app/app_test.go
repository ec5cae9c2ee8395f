// pkg/app/app_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test descriptor resolution, its failure points and equality/hash agreement

package app_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/arthur-debert/ozy/pkg/app"
	"github.com/arthur-debert/ozy/pkg/config"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/installers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linuxAmd64 = config.HostFacts{OS: "linux", Machine: "x86_64"}

func cfgWithApps(apps map[string]interface{}) config.Config {
	return config.Config{
		"templates": map[string]interface{}{
			"base": map[string]interface{}{
				"type": "tarball",
				"url":  "http://{ozy_os}-{ozy_arch}.tar.gz",
			},
		},
		"apps": apps,
	}
}

func TestResolveTemplateScenario(t *testing.T) {
	cfg := cfgWithApps(map[string]interface{}{
		"bar": map[string]interface{}{"template": "base", "version": "2.0"},
	})

	d, err := app.Resolve("bar", cfg, linuxAmd64)
	require.NoError(t, err)

	tarball, ok := d.Installer.(*installers.Tarball)
	require.True(t, ok)
	assert.Equal(t, "http://linux-amd64.tar.gz", tarball.URL)
	assert.Equal(t, "2.0", d.Version)
	assert.True(t, d.Relocatable)
	assert.Equal(t, "bar", d.ExecutablePath)
	assert.Equal(t, "bar 2.0: tarball installer for bar v.2.0", d.String())
}

func TestResolveSubstitutesAppKeys(t *testing.T) {
	cfg := cfgWithApps(map[string]interface{}{
		"terraform": map[string]interface{}{
			"type":            "single_binary_zip",
			"version":         "1.5.7",
			"url":             "https://releases/terraform_{version}_{ozy_os}_{ozy_arch}.zip",
			"executable_path": "bin/{unknown}",
			"relocatable":     false,
			"post_install":    "chmod +x terraform",
		},
	})

	d, err := app.Resolve("terraform", cfg, linuxAmd64)
	require.NoError(t, err)

	zip := d.Installer.(*installers.SingleBinaryZip)
	assert.Equal(t, "https://releases/terraform_1.5.7_linux_amd64.zip", zip.URL)
	assert.Equal(t, "bin/{unknown}", d.ExecutablePath)
	assert.False(t, d.Relocatable)
	require.Len(t, d.PostInstall, 1)
}

func TestResolveDoesNotMutateConfig(t *testing.T) {
	cfg := cfgWithApps(map[string]interface{}{
		"bar": map[string]interface{}{"template": "base", "version": "2.0"},
	})

	_, err := app.Resolve("bar", cfg, linuxAmd64)
	require.NoError(t, err)

	base := cfg.Templates()["base"].(map[string]interface{})
	assert.Equal(t, "http://{ozy_os}-{ozy_arch}.tar.gz", base["url"])
	assert.NotContains(t, base, "version")
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name    string
		entry   interface{}
		code    errors.ErrorCode
		message string
	}{
		{
			name:    "missing version",
			entry:   map[string]interface{}{"type": "single_file", "url": "u"},
			code:    errors.ErrSchema,
			message: "expected a string version in config for tool",
		},
		{
			name:    "numeric version",
			entry:   map[string]interface{}{"type": "single_file", "url": "u", "version": 1.2},
			code:    errors.ErrSchema,
			message: "expected a string version in config for tool",
		},
		{
			name:    "unknown type",
			entry:   map[string]interface{}{"type": "docker", "version": "1"},
			code:    errors.ErrSchema,
			message: "app type docker not yet supported",
		},
		{
			name:    "missing type",
			entry:   map[string]interface{}{"version": "1"},
			code:    errors.ErrSchema,
			message: "expected a type field for app tool that contains a string",
		},
		{
			name:    "missing url",
			entry:   map[string]interface{}{"type": "tarball", "version": "1"},
			code:    errors.ErrSchema,
			message: "expected a string url in config for tool",
		},
		{
			name:    "missing template",
			entry:   map[string]interface{}{"template": "nope", "version": "1"},
			code:    errors.ErrNotFound,
			message: "while resolving app tool: could not find template nope",
		},
		{
			name:    "not a mapping",
			entry:   "single_file",
			code:    errors.ErrSchema,
			message: "expected a mapping for app tool",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := cfgWithApps(map[string]interface{}{"tool": tt.entry})
			_, err := app.Resolve("tool", cfg, linuxAmd64)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetErrorCode(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestResolveUnknownApp(t *testing.T) {
	_, err := app.Resolve("ghost", cfgWithApps(map[string]interface{}{}), linuxAmd64)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))

	_, err = app.Resolve("ghost", config.Config{}, linuxAmd64)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrSchema))
}

func TestResolveAllSkipsBrokenApps(t *testing.T) {
	cfg := cfgWithApps(map[string]interface{}{
		"good":   map[string]interface{}{"type": "single_file", "url": "u", "version": "1"},
		"broken": map[string]interface{}{"type": "single_file"},
		"also":   map[string]interface{}{"template": "base", "version": "3"},
	})

	resolved, skipped, err := app.ResolveAll(cfg, linuxAmd64)
	require.NoError(t, err)

	require.Len(t, resolved, 2)
	assert.Equal(t, "also", resolved[0].Name)
	assert.Equal(t, "good", resolved[1].Name)
	require.Len(t, skipped, 1)
	assert.Equal(t, "broken", skipped[0].Name)
	assert.True(t, errors.IsErrorCode(skipped[0].Err, errors.ErrSchema))
}

func randomWord(r *rand.Rand) string {
	const letters = "abcxyz.-_019"
	n := 1 + r.Intn(6)
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[r.Intn(len(letters))]
	}
	return string(b)
}

func descriptorFrom(t *testing.T, name, version, exe, url string, relocatable bool) *app.Descriptor {
	t.Helper()
	cfg := config.Config{"apps": map[string]interface{}{
		name: map[string]interface{}{
			"type":            "single_file",
			"version":         version,
			"url":             url,
			"relocatable":     relocatable,
			"executable_path": exe,
		},
	}}
	d, err := app.Resolve(name, cfg, linuxAmd64)
	require.NoError(t, err)
	return d
}

func TestEqualAndHashAgree(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		name, version, exe, url := randomWord(r), randomWord(r), randomWord(r), randomWord(r)
		relocatable := r.Intn(2) == 0

		a := descriptorFrom(t, name, version, exe, url, relocatable)
		b := descriptorFrom(t, name, version, exe, url, relocatable)
		require.True(t, a.Equal(b), "iteration %d", i)
		require.Equal(t, a.Hash(), b.Hash(), "iteration %d", i)

		// Same identity from a different url: describe() ignores the url
		c := descriptorFrom(t, name, version, exe, url+"-mirror", relocatable)
		require.True(t, a.Equal(c))
		require.Equal(t, a.Hash(), c.Hash())

		other := descriptorFrom(t, name, version+"x", exe, url, relocatable)
		require.False(t, a.Equal(other), "iteration %d", i)
		if a.Hash() == other.Hash() {
			t.Logf("hash collision at iteration %d", i)
		}
	}
}

func TestHashSeparatesFieldBoundaries(t *testing.T) {
	a := descriptorFrom(t, "ab", "c", "x", "u", true)
	b := descriptorFrom(t, "a", "bc", "x", "u", true)
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Hash(), b.Hash(), fmt.Sprintf("%s vs %s", a, b))
}

func TestEqualNil(t *testing.T) {
	var nilDesc *app.Descriptor
	a := descriptorFrom(t, "a", "1", "a", "u", true)
	assert.False(t, a.Equal(nil))
	assert.True(t, nilDesc.Equal(nil))
}
