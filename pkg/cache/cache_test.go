//go:build unix

// pkg/cache/cache_test.go
// TEST TYPE: Integration Test
// DEPENDENCIES: Temp filesystem, flock
// PURPOSE: Test publication, rollback and single-builder concurrency of the install cache

package cache_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arthur-debert/ozy/pkg/app"
	"github.com/arthur-debert/ozy/pkg/cache"
	"github.com/arthur-debert/ozy/pkg/config"
	"github.com/arthur-debert/ozy/pkg/errors"
	"github.com/arthur-debert/ozy/pkg/installers"
	"github.com/arthur-debert/ozy/pkg/lock"
	"github.com/arthur-debert/ozy/pkg/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var linuxAmd64 = config.HostFacts{OS: "linux", Machine: "x86_64"}

func newPaths(t *testing.T) paths.Paths {
	t.Helper()
	p, err := paths.New(t.TempDir())
	require.NoError(t, err)
	return p
}

func resolve(t *testing.T, name string, entry map[string]interface{}) *app.Descriptor {
	t.Helper()
	d, err := app.Resolve(name, config.Config{"apps": map[string]interface{}{name: entry}}, linuxAmd64)
	require.NoError(t, err)
	return d
}

// syncBuffer is a bytes.Buffer safe for concurrent writers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// countingBuild writes the executable and counts invocations
func countingBuild(calls *int32, delay time.Duration) cache.BuildFunc {
	return func(_ context.Context, d *app.Descriptor, dir string) error {
		atomic.AddInt32(calls, 1)
		time.Sleep(delay)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, d.ExecutablePath), []byte("#!/bin/sh\n"), 0755)
	}
}

func toolDescriptor(t *testing.T, version string) *app.Descriptor {
	return resolve(t, "tool", map[string]interface{}{"type": "single_file", "url": "http://x/tool", "version": version})
}

func TestConcurrentCallersBuildOnce(t *testing.T) {
	p := newPaths(t)
	var calls int32
	engine := &cache.Engine{Paths: p, Build: countingBuild(&calls, 50*time.Millisecond), Stderr: &syncBuffer{}}
	d := toolDescriptor(t, "1.0")

	const callers = 8
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			return engine.EnsureInstalled(context.Background(), d)
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, engine.IsInstalled(d))
	assert.FileExists(t, engine.ExecutablePath(d))
}

func TestDistinctVersionsDoNotShareALock(t *testing.T) {
	p := newPaths(t)
	var calls int32
	engine := &cache.Engine{Paths: p, Build: countingBuild(&calls, 0), Stderr: &syncBuffer{}}

	require.NoError(t, os.MkdirAll(p.AppCacheDir("tool"), 0755))
	held, err := lock.Acquire(p.InstallLockPath("tool", "1.0"))
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	done := make(chan error, 1)
	go func() { done <- engine.EnsureInstalled(context.Background(), toolDescriptor(t, "2.0")) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("install of 2.0 blocked on the 1.0 lock")
	}
}

func TestFastPathSkipsBuild(t *testing.T) {
	p := newPaths(t)
	d := toolDescriptor(t, "1.0")
	require.NoError(t, os.MkdirAll(p.InstallPath("tool", "1.0"), 0755))

	var calls int32
	engine := &cache.Engine{Paths: p, Build: countingBuild(&calls, 0)}
	require.NoError(t, engine.EnsureInstalled(context.Background(), d))

	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.NoFileExists(t, p.InstallLockPath("tool", "1.0"))
}

func TestContentionNotice(t *testing.T) {
	p := newPaths(t)
	require.NoError(t, os.MkdirAll(p.AppCacheDir("tool"), 0755))
	held, err := lock.Acquire(p.InstallLockPath("tool", "1.0"))
	require.NoError(t, err)

	var calls int32
	out := &syncBuffer{}
	engine := &cache.Engine{Paths: p, Build: countingBuild(&calls, 0), Stderr: out}

	done := make(chan error, 1)
	go func() { done <- engine.EnsureInstalled(context.Background(), toolDescriptor(t, "1.0")) }()

	require.Eventually(t, func() bool {
		return out.String() != ""
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Waiting for concurrent install of tool v.1.0 to complete...\n", out.String())

	require.NoError(t, held.Release())
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFailureRollsBackWholeApp(t *testing.T) {
	p := newPaths(t)
	older := p.InstallPath("tool", "0.9")
	require.NoError(t, os.MkdirAll(older, 0755))

	engine := &cache.Engine{
		Paths: p,
		Build: func(_ context.Context, _ *app.Descriptor, dir string) error {
			require.NoError(t, os.MkdirAll(dir, 0755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "partial"), nil, 0644))
			return errors.New(errors.ErrInstall, "backend exploded")
		},
	}

	err := engine.EnsureInstalled(context.Background(), toolDescriptor(t, "1.0"))
	require.Error(t, err)
	assert.Equal(t, "while installing tool v.1.0: backend exploded", err.Error())
	assert.True(t, errors.IsErrorCode(err, errors.ErrInstall))

	assert.NoDirExists(t, p.InstallPath("tool", "1.0"))
	assert.NoDirExists(t, p.StagingPath("tool", "1.0"))
	assert.NoDirExists(t, older)
	assert.NoDirExists(t, p.AppCacheDir("tool"))
}

func TestRollbackDoesNotLetTwoBuildsOverlap(t *testing.T) {
	p := newPaths(t)
	d := toolDescriptor(t, "1.0")

	var calls, running, maxRunning int32
	build := func(_ context.Context, d *app.Descriptor, dir string) error {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		for {
			seen := atomic.LoadInt32(&maxRunning)
			if n <= seen || atomic.CompareAndSwapInt32(&maxRunning, seen, n) {
				break
			}
		}

		if atomic.AddInt32(&calls, 1) == 1 {
			time.Sleep(200 * time.Millisecond)
			return errors.New(errors.ErrInstall, "first build fails")
		}
		time.Sleep(300 * time.Millisecond)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, d.ExecutablePath), []byte("#!/bin/sh\n"), 0755)
	}
	engine := &cache.Engine{Paths: p, Build: build, Stderr: &syncBuffer{}}

	first := make(chan error, 1)
	go func() { first <- engine.EnsureInstalled(context.Background(), d) }()

	var g errgroup.Group
	time.Sleep(50 * time.Millisecond)
	g.Go(func() error { return engine.EnsureInstalled(context.Background(), d) })
	time.Sleep(250 * time.Millisecond)
	g.Go(func() error { return engine.EnsureInstalled(context.Background(), d) })

	assert.Error(t, <-first)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.True(t, engine.IsInstalled(d))
}

func TestStaleStagingIsDiscarded(t *testing.T) {
	p := newPaths(t)
	staging := p.StagingPath("tool", "1.0")
	require.NoError(t, os.MkdirAll(staging, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(staging, "leftover"), nil, 0644))

	var calls int32
	engine := &cache.Engine{Paths: p, Build: countingBuild(&calls, 0)}
	d := toolDescriptor(t, "1.0")
	require.NoError(t, engine.EnsureInstalled(context.Background(), d))

	assert.NoFileExists(t, filepath.Join(p.InstallPath("tool", "1.0"), "leftover"))
}

// memFetcher serves fixed bytes for every URL
type memFetcher struct{ body []byte }

func (f memFetcher) FetchVerified(_ context.Context, _, dest, _ string) error {
	return os.WriteFile(dest, f.body, 0644)
}

func realEngine(t *testing.T, p paths.Paths) *cache.Engine {
	runner := &installers.Runner{
		Fetcher: memFetcher{body: []byte("#!/bin/sh\necho hi\n")},
		Stderr:  &syncBuffer{},
		TempDir: t.TempDir(),
	}
	engine := cache.New(p, runner)
	engine.Stderr = &syncBuffer{}
	return engine
}

func TestSingleFileScenario(t *testing.T) {
	p := newPaths(t)
	engine := realEngine(t, p)
	d := resolve(t, "foo", map[string]interface{}{
		"type":    "single_file",
		"version": "1.2.3",
		"url":     "http://x/foo-{version}",
	})

	require.NoError(t, engine.EnsureInstalled(context.Background(), d))

	exe := filepath.Join(p.CacheDir(), "foo", "1.2.3", "foo")
	info, err := os.Stat(exe)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0100)
	assert.Equal(t, exe, engine.ExecutablePath(d))
	assert.NoDirExists(t, filepath.Join(p.InternalInstallDir(), "foo", "1.2.3"))

	published, err := os.Lstat(p.InstallPath("foo", "1.2.3"))
	require.NoError(t, err)
	assert.True(t, published.IsDir())
}

func TestNonRelocatableIsLinked(t *testing.T) {
	p := newPaths(t)
	engine := realEngine(t, p)
	d := resolve(t, "foo", map[string]interface{}{
		"type":        "single_file",
		"version":     "1.2.3",
		"url":         "http://x/foo",
		"relocatable": false,
	})

	require.NoError(t, engine.EnsureInstalled(context.Background(), d))

	published := p.InstallPath("foo", "1.2.3")
	info, err := os.Lstat(published)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	target, err := os.Readlink(published)
	require.NoError(t, err)
	assert.Equal(t, p.StagingPath("foo", "1.2.3"), target)
	assert.FileExists(t, filepath.Join(p.StagingPath("foo", "1.2.3"), "foo"))
	assert.True(t, engine.IsInstalled(d))
}

func TestPostInstallRunsBeforePublish(t *testing.T) {
	p := newPaths(t)
	engine := realEngine(t, p)
	d := resolve(t, "foo", map[string]interface{}{
		"type":         "single_file",
		"version":      "1.0",
		"url":          "http://x/foo",
		"post_install": []interface{}{"touch marker", []interface{}{"sh", "-c", "exit 0"}},
	})

	require.NoError(t, engine.EnsureInstalled(context.Background(), d))
	assert.FileExists(t, filepath.Join(p.InstallPath("foo", "1.0"), "marker"))
}

func TestFailingPostInstallIsRolledBack(t *testing.T) {
	p := newPaths(t)
	engine := realEngine(t, p)
	d := resolve(t, "foo", map[string]interface{}{
		"type":         "single_file",
		"version":      "1.0",
		"url":          "http://x/foo",
		"post_install": "false",
	})

	err := engine.EnsureInstalled(context.Background(), d)
	require.Error(t, err)
	assert.NoDirExists(t, p.InstallPath("foo", "1.0"))
	assert.NoDirExists(t, p.StagingPath("foo", "1.0"))
}
