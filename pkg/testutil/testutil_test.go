// pkg/testutil/testutil_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: httptest, temp filesystem
// PURPOSE: Test the shared fixtures themselves

package testutil_test

import (
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/paths"
	"github.com/arthur-debert/ozy/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvIsolatesHome(t *testing.T) {
	env := testutil.NewEnv(t)

	assert.Equal(t, env.Home, os.Getenv("HOME"))
	assert.True(t, paths.IsDir(env.Paths.BinDir()))
	assert.True(t, paths.IsDir(env.Paths.CacheDir()))

	env.WriteUserConfig("https://example.com/team.yaml")
	assert.Contains(t, testutil.ReadFile(t, env.Paths.UserConfigPath()), "url: https://example.com/team.yaml")
}

func TestFileServer(t *testing.T) {
	srv := testutil.NewFileServer(t, map[string][]byte{"/a": []byte("alpha")})

	resp, err := http.Get(srv.URLFor("/a"))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "alpha", string(body))

	resp, err = http.Get(srv.URLFor("/missing"))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 1, srv.Hits("/a"))
}

func TestAssertErrorCode(t *testing.T) {
	inner := errors.New(errors.ErrNotFound, "could not find app x in config")
	err := errors.Wrap(inner, errors.ErrExec, "outer")
	testutil.AssertErrorCode(t, err, errors.ErrNotFound)
	testutil.AssertErrorCode(t, err, errors.ErrExec)
}

func TestChecksum(t *testing.T) {
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", testutil.Checksum([]byte("hello")))
}
