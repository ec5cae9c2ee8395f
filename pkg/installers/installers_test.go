// pkg/installers/installers_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test backend construction, key validation and post-install parsing

package installers_test

import (
	"testing"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/installers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func opts(name, version string) installers.Options {
	return installers.Options{Name: name, Version: version, ExecutablePath: name}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		kind    installers.Kind
		mapping map[string]interface{}
		want    string
	}{
		{installers.KindSingleFile, map[string]interface{}{"url": "u"}, "file installer for tool v.1.2"},
		{installers.KindSingleBinaryZip, map[string]interface{}{"url": "u"}, "single binary zip installer for tool v.1.2"},
		{installers.KindTarball, map[string]interface{}{"url": "u"}, "tarball installer for tool v.1.2"},
		{installers.KindZip, map[string]interface{}{"url": "u"}, "zip installer for tool v.1.2"},
		{installers.KindShell, map[string]interface{}{"url": "u"}, "shell installer for tool v.1.2"},
		{installers.KindConda, map[string]interface{}{"package": "conda-package"}, "conda installer for conda-package=1.2"},
		{installers.KindPip, map[string]interface{}{"package": "pip-package"}, "pip installer for pip-package=1.2"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			inst, err := installers.New(tt.kind, opts("tool", "1.2"), tt.mapping)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, inst.Kind())
			assert.Equal(t, tt.want, inst.Describe())
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range installers.Kinds {
		got, ok := installers.ParseKind(string(k))
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}

	_, ok := installers.ParseKind("docker")
	assert.False(t, ok)
}

func TestNewDefaults(t *testing.T) {
	inst, err := installers.New(installers.KindConda, opts("tool", "3"), map[string]interface{}{"package": "pkg"})
	require.NoError(t, err)
	conda := inst.(*installers.Conda)
	assert.Equal(t, installers.DefaultCondaBin, conda.CondaBin)
	assert.Empty(t, conda.Channels)
	assert.Empty(t, conda.Env)
	assert.False(t, conda.PyInstaller)

	inst, err = installers.New(installers.KindShell, opts("tool", "3"), map[string]interface{}{"url": "u"})
	require.NoError(t, err)
	sh := inst.(*installers.Shell)
	assert.Empty(t, sh.ExtraPath)
	assert.NotNil(t, sh.Args)
	assert.Empty(t, sh.Args)
}

func TestNewReadsOptionalKeys(t *testing.T) {
	inst, err := installers.New(installers.KindConda, opts("tool", "3"), map[string]interface{}{
		"package":     "pkg",
		"channels":    []interface{}{"conda-forge", "bioconda"},
		"conda_bin":   "micromamba",
		"pyinstaller": true,
		"env":         map[string]interface{}{"FOO": "bar"},
	})
	require.NoError(t, err)
	conda := inst.(*installers.Conda)
	assert.Equal(t, []string{"conda-forge", "bioconda"}, conda.Channels)
	assert.Equal(t, "micromamba", conda.CondaBin)
	assert.True(t, conda.PyInstaller)
	assert.Equal(t, map[string]string{"FOO": "bar"}, conda.Env)
	assert.Equal(t, "tool", conda.ExecutablePath)

	inst, err = installers.New(installers.KindShell, opts("tool", "3"), map[string]interface{}{
		"url":                       "u",
		"sha256":                    "abc",
		"extra_path_during_install": "/opt/bin",
		"shell_args":                []interface{}{"-s", "--", "-y"},
	})
	require.NoError(t, err)
	sh := inst.(*installers.Shell)
	assert.Equal(t, "abc", sh.SHA256)
	assert.Equal(t, "/opt/bin", sh.ExtraPath)
	assert.Equal(t, []string{"-s", "--", "-y"}, sh.Args)
}

func TestNewRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name    string
		kind    installers.Kind
		mapping map[string]interface{}
		message string
	}{
		{"missing url", installers.KindSingleFile, map[string]interface{}{}, "expected a string url in config for tool"},
		{"url not string", installers.KindTarball, map[string]interface{}{"url": 3}, "expected a string url in config for tool"},
		{"missing package", installers.KindPip, map[string]interface{}{}, "expected a string package in config for tool"},
		{"channels not list", installers.KindConda, map[string]interface{}{"package": "p", "channels": "c"}, "expected a list of strings channels in config for tool"},
		{"pyinstaller not bool", installers.KindConda, map[string]interface{}{"package": "p", "pyinstaller": "yes"}, "expected a boolean pyinstaller in config for tool"},
		{"shell args not strings", installers.KindShell, map[string]interface{}{"url": "u", "shell_args": []interface{}{1}}, "expected a list of strings shell_args in config for tool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := installers.New(tt.kind, opts("tool", "1"), tt.mapping)
			require.Error(t, err)
			assert.Equal(t, errors.ErrSchema, errors.GetErrorCode(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestNewUnsupportedKind(t *testing.T) {
	_, err := installers.New(installers.Kind("docker"), opts("tool", "1"), map[string]interface{}{})
	require.Error(t, err)
	assert.Equal(t, "app type docker not yet supported", err.Error())
}

func TestParsePostInstall(t *testing.T) {
	steps, err := installers.ParsePostInstall("tool", nil)
	require.NoError(t, err)
	assert.Empty(t, steps)

	steps, err = installers.ParsePostInstall("tool", "chmod +x 'bin/my tool'")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "chmod +x 'bin/my tool'", steps[0].Line)

	steps, err = installers.ParsePostInstall("tool", []interface{}{
		"touch a",
		[]interface{}{"touch", "b c"},
	})
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "touch a", steps[0].String())
	assert.Equal(t, []string{"touch", "b c"}, steps[1].Argv)
}

func TestParsePostInstallRejects(t *testing.T) {
	bad := []interface{}{
		42,
		"",
		"echo 'unterminated",
		[]interface{}{42},
		[]interface{}{[]interface{}{}},
		[]interface{}{[]interface{}{"ok", 3}},
	}
	for _, raw := range bad {
		_, err := installers.ParsePostInstall("tool", raw)
		require.Error(t, err, "%v", raw)
		assert.True(t, errors.IsErrorCode(err, errors.ErrSchema), "%v", raw)
	}
}
