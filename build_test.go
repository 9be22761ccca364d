package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thiremani/cpsc/config"
)

func writeSources(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
	}
	return dir
}

func newBuild(t *testing.T, dir string, cfg *config.Config) *build {
	t.Helper()
	files, _, name, err := sourceFiles([]string{dir})
	require.NoError(t, err)
	return &build{cfg: cfg, name: name, files: files, cache: artifactCache{dir: t.TempDir()}}
}

func TestSourceFiles(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"b.cps":     "",
		"a.cps":     "",
		"notes.txt": "",
	})

	files, gotDir, name, err := sourceFiles([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cps"), filepath.Join(dir, "b.cps")}, files)
	assert.Equal(t, dir, gotDir)
	assert.Equal(t, filepath.Base(dir), name)

	single := filepath.Join(dir, "b.cps")
	files, gotDir, name, err = sourceFiles([]string{single})
	require.NoError(t, err)
	assert.Equal(t, []string{single}, files)
	assert.Equal(t, dir, gotDir)
	assert.Equal(t, "b", name)

	_, _, _, err = sourceFiles([]string{t.TempDir()})
	assert.ErrorContains(t, err, "no .cps files")

	_, _, _, err = sourceFiles([]string{filepath.Join(dir, "missing.cps")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfig("", dir)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg, "no file means defaults")

	require.NoError(t, os.WriteFile(filepath.Join(dir, config.File), []byte("entry: start\n"), 0644))
	cfg, err = loadConfig("", dir)
	require.NoError(t, err)
	assert.Equal(t, "start", cfg.Entry)

	_, err = loadConfig(filepath.Join(dir, "other.yaml"), dir)
	assert.ErrorIs(t, err, os.ErrNotExist, "an explicit path must exist")
}

func TestBuildDump(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"main.cps": "(fn main (ret) (add ret 2 3))",
	})
	cfg := config.Default()
	cfg.Emit = config.EmitNone
	b := newBuild(t, dir, cfg)
	var out bytes.Buffer
	b.dump = &out

	path, err := b.run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Contains(t, out.String(), "main")
	assert.Contains(t, out.String(), "5")
	assert.NotContains(t, out.String(), "add")
}

func TestBuildEmitsAndCaches(t *testing.T) {
	dir := writeSources(t, map[string]string{
		"main.cps": "(extern sqrt (fn f64 (f64)) pure)\n",
		"prog.cps": "(fn main (ret) (sqrt ret 2.25))\n",
	})
	b := newBuild(t, dir, config.Default())
	ctx := context.Background()

	path, err := b.run(ctx)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "define double @main()")
	assert.Contains(t, string(data), "ret double 1.500000e+00", "pure call folded by the math bridge")

	// unchanged sources hit the cache
	require.NoError(t, os.WriteFile(path, []byte("; cached"), 0644))
	again, err := b.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, again)
	data, err = os.ReadFile(again)
	require.NoError(t, err)
	assert.Equal(t, "; cached", string(data))
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		entry string
		diag  bool
		err   string
	}{
		{"parse error", "(fn main (ret) (add ret 1 2)", "main", true, "main.cps:1:"},
		{"unbound name", "(fn main (ret) (frobnicate ret 1))", "main", true, "unbound name frobnicate"},
		{"missing entry", "(fn main (ret) (ret _ 1))", "start", false, `entry label "start" is not defined`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSources(t, map[string]string{"main.cps": tt.src})
			cfg := config.Default()
			cfg.Entry = tt.entry
			b := newBuild(t, dir, cfg)

			path, err := b.run(context.Background())
			require.Error(t, err)
			assert.Empty(t, path)
			assert.ErrorContains(t, err, tt.err)
			var diag *diagnostics
			assert.Equal(t, tt.diag, errors.As(err, &diag))

			entries, err := os.ReadDir(b.cache.dir)
			require.NoError(t, err)
			for _, e := range entries {
				assert.False(t, isHashDir(e.Name()), "failed builds write no artifacts")
			}
		})
	}
}

func TestBuildLoweringErrorShowsSource(t *testing.T) {
	src := "(fn main (ret) (ret _ (type i32)))"
	dir := writeSources(t, map[string]string{"main.cps": src})
	b := newBuild(t, dir, config.Default())

	_, err := b.run(context.Background())
	var diag *diagnostics
	require.ErrorAs(t, err, &diag)
	require.NotNil(t, diag.sm)
	assert.Contains(t, err.Error(), "values of type type only exist at compile time")
	assert.Contains(t, err.Error(), "    "+src+"\n", "the offending line is quoted")
	assert.Contains(t, err.Error(), "^")
}
