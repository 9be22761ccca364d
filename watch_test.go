package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/cpsc/config"
)

func TestIsSourceChange(t *testing.T) {
	tests := []struct {
		ev       fsnotify.Event
		expected bool
	}{
		{fsnotify.Event{Name: "a.cps", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "a.cps", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "a.cps", Op: fsnotify.Remove}, true},
		{fsnotify.Event{Name: "a.cps", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: "a.cps.swp", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: config.File, Op: fsnotify.Write}, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.expected, isSourceChange(tc.ev), tc.ev.String())
	}
}

func TestWatchDirs(t *testing.T) {
	dirs := watchDirs([]string{"a/x.cps", "b/y.cps", "a/z.cps"})
	assert.Equal(t, []string{"a", "b"}, dirs)
}

func TestWatchRebuilds(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"main.cps": "(fn main (ret) (ret _ 1))",
	})
	cfg := config.Default()
	cfg.Emit = config.EmitNone
	b := newBuild(t, dir, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	results := make(chan error, 8)
	done := make(chan error, 1)
	go func() {
		done <- watch(ctx, []string{dir}, b, func(_ context.Context, _ string, err error) {
			results <- err
		})
	}()

	next := func() error {
		select {
		case err := <-results:
			return err
		case <-time.After(5 * time.Second):
			require.FailNow(t, "no rebuild")
			return nil
		}
	}

	require.NoError(t, next(), "initial build")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.cps"), []byte("(fn"), 0644))
	var diag *diagnostics
	require.ErrorAs(t, next(), &diag, "new files are picked up")
	assert.Len(t, b.files, 2)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "watch did not stop")
	}
}
