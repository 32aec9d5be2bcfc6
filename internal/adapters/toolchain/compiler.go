// Package toolchain builds a single source file into a throwaway executable.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/corey/cpbench/internal/adapters/logging"
	"github.com/corey/cpbench/internal/domain/fault"
)

// Defaults for the compiler command.
const (
	DefaultCompiler = "g++"
	DefaultFlags    = "-std=c++17 -O2"
)

// CompileError reports a non-zero compiler exit. Diagnostics is the
// compiler's stderr, verbatim.
type CompileError struct {
	Diagnostics string
	ExitCode    int
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compilation failed (exit %d)", e.ExitCode)
}

// Kind implements the fault classification.
func (e *CompileError) Kind() fault.Kind { return fault.CompileError }

// Binary is a compiled executable owned by one run.
type Binary struct {
	Path string
}

// Remove deletes the executable. Calling it more than once is harmless.
func (b *Binary) Remove() error {
	if b == nil || b.Path == "" {
		return nil
	}
	err := os.Remove(b.Path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Compiler invokes an external compiler.
type Compiler struct {
	path   string
	flags  []string
	tmpDir string
	log    *logging.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCompiler sets the compiler executable.
func WithCompiler(path string) Option {
	return func(c *Compiler) {
		if path != "" {
			c.path = path
		}
	}
}

// WithFlags sets the flags passed before -o. The string is split on spaces.
func WithFlags(flags string) Option {
	return func(c *Compiler) { c.flags = strings.Fields(flags) }
}

// WithTempDir sets where binaries are placed (default os.TempDir()).
func WithTempDir(dir string) Option {
	return func(c *Compiler) { c.tmpDir = dir }
}

// WithLogger sets the logger.
func WithLogger(log *logging.Logger) Option {
	return func(c *Compiler) { c.log = log }
}

// New creates a Compiler with g++ -std=c++17 -O2 unless overridden.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		path:  DefaultCompiler,
		flags: strings.Fields(DefaultFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Command returns the compiler and its flags, for display.
func (c *Compiler) Command() string {
	return strings.Join(append([]string{c.path}, c.flags...), " ")
}

// Compile builds source into a fresh temporary binary. The command runs in
// the source's directory. A non-zero exit yields *CompileError; failing to
// start the compiler at all is returned as a plain error.
func (c *Compiler) Compile(ctx context.Context, source string) (*Binary, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, fmt.Errorf("resolve source: %w", err)
	}

	out := c.tempPath()
	args := append(append([]string{}, c.flags...), "-o", out, abs)

	cmd := exec.CommandContext(ctx, c.path, args...)
	cmd.Dir = filepath.Dir(abs)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			_ = os.Remove(out)
			c.log.Debug("compile failed", "source", abs, "exit", exitErr.ExitCode(), "elapsed", elapsed)
			return nil, &CompileError{Diagnostics: stderr.String(), ExitCode: exitErr.ExitCode()}
		}
		if ctx.Err() != nil {
			_ = os.Remove(out)
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run compiler %s: %w", c.path, err)
	}

	c.log.Debug("compiled", "source", abs, "binary", out, "elapsed", elapsed)
	return &Binary{Path: out}, nil
}

func (c *Compiler) tempPath() string {
	dir := c.tmpDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := fmt.Sprintf("cpbench-%d-%d", os.Getpid(), time.Now().UnixNano())
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(dir, name)
}
