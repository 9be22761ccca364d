package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"goa.design/clue/log"
)

// settle is how long the watcher waits after the last change before
// rebuilding, so that editors writing a file in several steps trigger one
// build.
const settle = 100 * time.Millisecond

// reportFunc receives the outcome of every build.
type reportFunc func(ctx context.Context, path string, err error)

// watch builds once and then again whenever a source file next to the
// watched ones changes. The file list is expanded from args on every
// rebuild so new files are picked up. It returns when ctx is done.
func watch(ctx context.Context, args []string, b *build, report reportFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range watchDirs(b.files) {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		log.Debugf(ctx, "watching %s", dir)
	}

	path, err := b.run(ctx)
	report(ctx, path, err)

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !isSourceChange(ev) {
				continue
			}
			log.Debugf(ctx, "changed %s", ev.Name)
			pending = time.After(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error(ctx, err, log.KV{K: "msg", V: "watch error"})
		case <-pending:
			pending = nil
			files, _, _, err := sourceFiles(args)
			if err != nil {
				report(ctx, "", err)
				continue
			}
			b.files = files
			path, err := b.run(ctx)
			report(ctx, path, err)
		}
	}
}

func watchDirs(files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		dir := filepath.Dir(f)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func isSourceChange(ev fsnotify.Event) bool {
	if filepath.Ext(ev.Name) != CPS_SUFFIX {
		return false
	}
	return ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
