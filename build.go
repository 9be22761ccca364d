package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"goa.design/clue/log"
	"tinygo.org/x/go-llvm"

	"github.com/thiremani/cpsc/compiler"
	"github.com/thiremani/cpsc/config"
	"github.com/thiremani/cpsc/expand"
	"github.com/thiremani/cpsc/ffi"
	"github.com/thiremani/cpsc/ir"
	"github.com/thiremani/cpsc/lexer"
	"github.com/thiremani/cpsc/parser"
	"github.com/thiremani/cpsc/specializer"
	"github.com/thiremani/cpsc/symbol"
	"github.com/thiremani/cpsc/token"
	"github.com/thiremani/cpsc/types"
)

const CPS_SUFFIX = ".cps"

type source struct {
	file string
	text string
}

// diagnostics are the compile errors of one build, rendered against the
// sources they point into.
type diagnostics struct {
	errs []*token.CompileError
	sm   *token.SourceMap
}

func (d *diagnostics) Error() string {
	var sb strings.Builder
	for _, e := range d.errs {
		sb.WriteString(e.Format(d.sm))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// sourceFiles expands the command line into .cps files. With no arguments
// the current directory is used. dir is where the config file is looked
// up and name is the artifact name.
func sourceFiles(args []string) (files []string, dir, name string, err error) {
	if len(args) == 0 {
		if args, err = cwdArgs(); err != nil {
			return nil, "", "", err
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, "", "", err
		}
		if !info.IsDir() {
			files = append(files, arg)
			if dir == "" {
				dir = filepath.Dir(arg)
				name = strings.TrimSuffix(filepath.Base(arg), CPS_SUFFIX)
			}
			continue
		}
		if dir == "" {
			dir = arg
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, "", "", err
			}
			name = filepath.Base(abs)
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*"+CPS_SUFFIX))
		if err != nil {
			return nil, "", "", err
		}
		sort.Strings(matches)
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, "", "", fmt.Errorf("no %s files in %s", CPS_SUFFIX, strings.Join(args, " "))
	}
	return files, dir, name, nil
}

func cwdArgs() ([]string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}
	return []string{cwd}, nil
}

func readSources(files []string) ([]source, error) {
	srcs := make([]source, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		srcs = append(srcs, source{file: file, text: string(data)})
	}
	return srcs, nil
}

// build compiles one set of source files into one artifact.
type build struct {
	cfg   *config.Config
	name  string
	files []string
	cache artifactCache
	// dump receives the specialized graph when set.
	dump io.Writer
}

// run compiles the sources and returns the path of the emitted IR, or ""
// when nothing is emitted. Compile errors are returned as *diagnostics.
func (b *build) run(ctx context.Context) (string, error) {
	srcs, err := readSources(b.files)
	if err != nil {
		return "", err
	}
	shortHash, fullHash := sourceHash(srcs, b.cfg)
	emit := b.cfg.Emit == config.EmitLLVM
	if emit && b.dump == nil {
		path, ok, err := b.cache.lookup(shortHash, fullHash, b.name)
		if err != nil {
			return "", err
		}
		if ok {
			log.Info(ctx, log.KV{K: "cached", V: path})
			return path, nil
		}
	}

	a, entry, sm, err := b.specialize(ctx, srcs)
	if err != nil {
		return "", err
	}
	if b.dump != nil {
		if err := a.Stream(b.dump, entry); err != nil {
			return "", fmt.Errorf("dump graph: %w", err)
		}
	}
	if !emit {
		return "", nil
	}

	out, err := lower(ctx, b.name, a, entry, sm)
	if err != nil {
		return "", err
	}
	path, err := b.cache.store(shortHash, fullHash, b.name, out)
	if err != nil {
		return "", err
	}
	log.Info(ctx, log.KV{K: "wrote", V: path})
	return path, nil
}

// specialize parses and expands every source into one arena and types the
// configured entry label. The source map is returned for later diagnostics.
func (b *build) specialize(ctx context.Context, srcs []source) (*ir.Arena, ir.LabelID, *token.SourceMap, error) {
	sm := token.NewSourceMap()
	a := ir.NewArena(types.NewTable(), symbol.NewTable())
	e := expand.New(a)
	var errs []*token.CompileError
	for _, src := range srcs {
		sm.Add(src.file, src.text)
		cp := parser.NewCodeParser(src.file, lexer.New(src.file, src.text))
		program := cp.Parse()
		if len(cp.Errors()) > 0 {
			errs = append(errs, cp.Errors()...)
			continue
		}
		e.Expand(program)
	}
	errs = append(errs, e.Errors...)
	if len(errs) > 0 {
		return nil, ir.LabelID{}, nil, &diagnostics{errs: errs, sm: sm}
	}

	entry, ok := e.Label(b.cfg.Entry)
	if !ok {
		return nil, ir.LabelID{}, nil, fmt.Errorf("entry label %q is not defined", b.cfg.Entry)
	}

	bridge, closeBridge, err := openBridge(b.cfg.Libraries)
	if err != nil {
		return nil, ir.LabelID{}, nil, err
	}
	defer closeBridge()

	opts := b.cfg.SpecializerOptions()
	opts.Bridge = bridge
	log.Debugf(ctx, "specializing %s from %d files", b.cfg.Entry, len(srcs))
	res, err := specializer.New(a, e.Globals(), opts).Specialize(ctx, entry)
	if err != nil {
		var ce *token.CompileError
		if errors.As(err, &ce) {
			return nil, ir.LabelID{}, nil, &diagnostics{errs: []*token.CompileError{ce}, sm: sm}
		}
		return nil, ir.LabelID{}, nil, err
	}
	return a, res.Entry, sm, nil
}

// openBridge chains the built-in math functions with the configured shared
// libraries.
func openBridge(libs []string) (ffi.Bridge, func(), error) {
	chain := ffi.Chain{ffi.Math()}
	if len(libs) == 0 {
		return chain, func() {}, nil
	}
	dyn, err := ffi.OpenDynamic(libs...)
	if err != nil {
		return nil, nil, err
	}
	return append(chain, dyn), func() { dyn.Close() }, nil
}

// lower emits the typed graph rooted at entry as LLVM IR text.
func lower(ctx context.Context, name string, a *ir.Arena, entry ir.LabelID, sm *token.SourceMap) (string, error) {
	llctx := llvm.NewContext()
	defer llctx.Dispose()
	c := compiler.NewCompiler(llctx, name, a)
	defer c.Dispose()
	if err := c.Compile(ctx, entry); err != nil {
		var ce *token.CompileError
		if errors.As(err, &ce) {
			return "", &diagnostics{errs: []*token.CompileError{ce}, sm: sm}
		}
		return "", err
	}
	out := c.GenerateIR()
	if err := c.Verify(); err != nil {
		return "", fmt.Errorf("invalid module %s: %w", name, err)
	}
	return out, nil
}
