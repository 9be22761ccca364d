package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/thiremani/cpsc/config"
)

const (
	IR_SUFFIX  = ".ll"
	HASH_FILE  = ".hash"
	LOCK_FILE  = ".lock"
	KEEP_DIRS  = 5
	MIN_AGE    = 7 * 24 * 60 * 60
	CACHE_ENV  = "CPSCACHE"
	CACHE_NAME = "cpsc"
)

// defaultCache gets env variable CPSCACHE
// if it is not set returns the default value for windows, mac, linux
func defaultCache() string {
	if env := os.Getenv(CACHE_ENV); env != "" {
		return env
	}

	homeDir, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LocalAppData"); localAppData != "" {
			return filepath.Join(localAppData, CACHE_NAME)
		}
		return filepath.Join(homeDir, "AppData", "Local", CACHE_NAME)
	case "darwin":
		return filepath.Join(homeDir, "Library", "Caches", CACHE_NAME)
	default: // Linux and others
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, CACHE_NAME)
		}
		return filepath.Join(homeDir, ".cache", CACHE_NAME)
	}
}

// isHashDir returns true if name is an 8-char hex string (matches sourceHash format).
func isHashDir(name string) bool {
	if len(name) != 8 {
		return false
	}
	_, err := hex.DecodeString(name)
	return err == nil
}

// sourceHash hashes the sources together with every setting that changes
// the emitted IR. Returns short hash (8 chars for directory name) and full
// hash (for collision check).
func sourceHash(srcs []source, cfg *config.Config) (shortHash, fullHash string) {
	h := sha256.New()
	for _, s := range []string{
		Version, runtime.GOOS, runtime.GOARCH, cfg.Entry,
		strconv.Itoa(cfg.MaxRecursions), strconv.Itoa(cfg.MaxStackDepth),
	} {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	for _, lib := range cfg.Libraries {
		h.Write([]byte(lib))
		h.Write([]byte{0})
	}
	for _, src := range srcs {
		h.Write([]byte(src.file))
		h.Write([]byte{0})
		h.Write([]byte(src.text))
		h.Write([]byte{0})
	}
	fullHash = hex.EncodeToString(h.Sum(nil))
	return fullHash[:8], fullHash
}

// artifactCache stores emitted IR under <dir>/<short hash>/<name>.ll.
// A file lock serializes concurrent compilers sharing the directory.
type artifactCache struct {
	dir string
}

func (ac artifactCache) lock() (*flock.Flock, error) {
	if err := os.MkdirAll(ac.dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	lock := flock.New(filepath.Join(ac.dir, LOCK_FILE))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire cache lock: %w", err)
	}
	return lock, nil
}

func (ac artifactCache) path(shortHash, name string) string {
	return filepath.Join(ac.dir, shortHash, name+IR_SUFFIX)
}

// lookup returns the artifact for fullHash if a previous compile finished
// writing it.
func (ac artifactCache) lookup(shortHash, fullHash, name string) (string, bool, error) {
	lock, err := ac.lock()
	if err != nil {
		return "", false, err
	}
	defer lock.Unlock()

	// Verify full hash to detect collisions
	stored, err := os.ReadFile(filepath.Join(ac.dir, shortHash, HASH_FILE))
	if err != nil || string(stored) != fullHash {
		return "", false, nil
	}
	path := ac.path(shortHash, name)
	if _, err := os.Stat(path); err != nil {
		return "", false, nil
	}
	return path, true, nil
}

// store writes ir and marks the directory complete.
func (ac artifactCache) store(shortHash, fullHash, name, ir string) (string, error) {
	lock, err := ac.lock()
	if err != nil {
		return "", err
	}
	defer lock.Unlock()

	dir := filepath.Join(ac.dir, shortHash)
	// Hash collision or stale contents - rebuild
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear %s: %w", dir, err)
	}
	cleanupOldArtifacts(ac.dir, KEEP_DIRS, MIN_AGE)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	path := ac.path(shortHash, name)
	if err := os.WriteFile(path, []byte(ir), 0644); err != nil {
		return "", fmt.Errorf("write IR to %s: %w", path, err)
	}
	// Store full hash after the IR is written (acts as completion marker)
	if err := os.WriteFile(filepath.Join(dir, HASH_FILE), []byte(fullHash), 0644); err != nil {
		return "", fmt.Errorf("write hash file: %w", err)
	}
	return path, nil
}

// cleanupOldArtifacts removes old hash directories.
// Only deletes directories older than minAge AND keeps at least 'keep' most recent.
// This prevents deleting artifacts that may still be read by concurrent processes.
func cleanupOldArtifacts(cacheDir string, keep int, minAge int64) {
	entries, err := os.ReadDir(cacheDir)
	if err != nil || len(entries) <= keep {
		return
	}

	type dirInfo struct {
		name  string
		mtime int64
	}
	var dirs []dirInfo
	for _, e := range entries {
		if e.IsDir() && isHashDir(e.Name()) {
			if info, err := e.Info(); err == nil {
				dirs = append(dirs, dirInfo{e.Name(), info.ModTime().Unix()})
			}
		}
	}

	if len(dirs) <= keep {
		return
	}

	// Sort by mtime ascending (oldest first), remove oldest if older than minAge
	cutoff := time.Now().Unix() - minAge
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].mtime < dirs[j].mtime })
	for i := 0; i < len(dirs)-keep; i++ {
		if dirs[i].mtime < cutoff {
			path := filepath.Join(cacheDir, dirs[i].name)
			if err := os.RemoveAll(path); err != nil {
				fmt.Printf("warning: failed to remove old artifact %s: %v\n", path, err)
			}
		}
	}
}
