package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"goa.design/clue/log"

	"github.com/thiremani/cpsc/config"
)

func main() {
	var (
		configF  = flag.String("config", "", "Config file (default: "+config.File+" in the source directory)")
		entryF   = flag.String("entry", "", "Entry label (overrides entry in the config file)")
		emitF    = flag.String("emit", "", "Output: llvm or none (overrides emit in the config file)")
		cacheF   = flag.String("cache", "", "Artifact directory (default: $"+CACHE_ENV+" or the OS cache dir)")
		dumpF    = flag.Bool("dump", false, "Print the specialized graph")
		watchF   = flag.Bool("watch", false, "Rebuild when a source file changes")
		dbgF     = flag.Bool("debug", false, "Enable debug logs")
		versionF = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: cpsc [flags] [dir|file.cps...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionF {
		printVersion()
		return
	}

	ctx := logContext(config.Log{Format: config.FormatAuto, Debug: *dbgF})

	files, dir, name, err := sourceFiles(flag.Args())
	if err != nil {
		log.Fatal(ctx, err)
	}
	cfg, err := loadConfig(*configF, dir)
	if err != nil {
		log.Fatal(ctx, err)
	}
	if *entryF != "" {
		cfg.Entry = *entryF
	}
	if *emitF != "" {
		cfg.Emit = *emitF
	}
	if *cacheF != "" {
		cfg.CacheDir = *cacheF
	}
	cfg.Log.Debug = cfg.Log.Debug || *dbgF
	if err := cfg.Validate(Version); err != nil {
		log.Fatal(ctx, err)
	}
	ctx = logContext(cfg.Log)
	log.Debugf(ctx, "debug logs enabled")

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCache()
	}
	log.Print(ctx, log.KV{K: "cache", V: cacheDir}, log.KV{K: "files", V: len(files)})

	b := &build{cfg: cfg, name: name, files: files, cache: artifactCache{dir: cacheDir}}
	if *dumpF {
		b.dump = os.Stdout
	}

	if *watchF {
		ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		if err := watch(ctx, flag.Args(), b, report); err != nil {
			log.Fatal(ctx, err)
		}
		return
	}

	path, err := b.run(ctx)
	report(ctx, path, err)
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads path, or the config file in dir if path is empty and
// one exists, or falls back to the defaults.
func loadConfig(path, dir string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.Load(filepath.Join(dir, config.File))
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// logContext returns a context carrying a logger configured by l.
func logContext(l config.Log) context.Context {
	format := log.FormatJSON
	switch l.Format {
	case config.FormatTerminal:
		format = log.FormatTerminal
	case config.FormatAuto:
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if l.Debug {
		ctx = log.Context(ctx, log.WithDebug())
	}
	return ctx
}

// report prints compile errors with their source lines to stderr and logs
// everything else.
func report(ctx context.Context, path string, err error) {
	var diag *diagnostics
	switch {
	case errors.As(err, &diag):
		fmt.Fprintln(os.Stderr, diag.Error())
	case err != nil:
		log.Error(ctx, err)
	case path != "":
		fmt.Println(path)
	}
}
