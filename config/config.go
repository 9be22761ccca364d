// Package config loads compiler settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/thiremani/cpsc/specializer"
)

// File is the name looked up in the source directory when no -config flag
// is given.
const File = "cpsc.yaml"

const (
	EmitLLVM = "llvm"
	EmitNone = "none"
)

const (
	FormatAuto     = "auto"
	FormatTerminal = "terminal"
	FormatJSON     = "json"
)

type Log struct {
	Format string `yaml:"format"`
	Debug  bool   `yaml:"debug"`
}

type Config struct {
	Entry         string `yaml:"entry"`
	MaxRecursions int    `yaml:"max_recursions"`
	MaxStackDepth int    `yaml:"max_stack_depth"`
	Emit          string `yaml:"emit"`
	CacheDir      string `yaml:"cache_dir"`
	// Toolchain is a semver constraint the running compiler must satisfy.
	Toolchain string `yaml:"toolchain"`
	// Libraries are shared objects searched for pure extern functions
	// called with constant arguments.
	Libraries []string `yaml:"libraries"`
	Log       Log      `yaml:"log"`
}

func Default() *Config {
	return &Config{
		Entry:         "main",
		MaxRecursions: specializer.DefaultMaxRecursions,
		MaxStackDepth: specializer.DefaultMaxStackDepth,
		Emit:          EmitLLVM,
		Log:           Log{Format: FormatAuto},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings. version is the running compiler version;
// development builds ("dev") satisfy any toolchain constraint.
func (c *Config) Validate(version string) error {
	var errs []error
	if strings.TrimSpace(c.Entry) == "" {
		errs = append(errs, errors.New("entry must not be empty"))
	}
	if c.MaxRecursions < 1 {
		errs = append(errs, fmt.Errorf("max_recursions must be positive, got %d", c.MaxRecursions))
	}
	if c.MaxStackDepth < 1 {
		errs = append(errs, fmt.Errorf("max_stack_depth must be positive, got %d", c.MaxStackDepth))
	}
	switch c.Emit {
	case EmitLLVM, EmitNone:
	default:
		errs = append(errs, fmt.Errorf("unknown emit target %q", c.Emit))
	}
	switch c.Log.Format {
	case FormatAuto, FormatTerminal, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if err := checkToolchain(c.Toolchain, version); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func checkToolchain(constraint, version string) error {
	if constraint == "" {
		return nil
	}
	con, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid toolchain constraint %q: %w", constraint, err)
	}
	if version == "dev" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid compiler version %q: %w", version, err)
	}
	if ok, reasons := con.Validate(v); !ok {
		return fmt.Errorf("compiler %s does not satisfy toolchain %s: %w", v, constraint, errors.Join(reasons...))
	}
	return nil
}

// SpecializerOptions maps the limits onto specializer options. The bridge
// is left to the caller.
func (c *Config) SpecializerOptions() specializer.Options {
	return specializer.Options{
		MaxRecursions: c.MaxRecursions,
		MaxStackDepth: c.MaxStackDepth,
	}
}
