// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmake

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/defaults"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
)

// Install targets.
const (
	TargetInstall      = "install"
	TargetInstallStrip = "install/strip"
)

// Executor runs an external command in dir.
type Executor interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecExecutor runs commands with os/exec and logs their output line by line.
type ExecExecutor struct {
	// Env is appended to the current environment.
	Env []string
}

// Run implements Executor.
func (e ExecExecutor) Run(ctx context.Context, dir, name string, args ...string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, err)
	}

	tail := newLogWriter(name)
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), e.Env...)
	cmd.Stdout = tail
	cmd.Stderr = tail

	err = cmd.Run()
	tail.Flush()
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			return &ExitError{Command: name, Code: exitErr.ExitCode(), Tail: tail.Tail()}
		}
		return err
	}
	return nil
}

// ExitError reports a command that exited non-zero together with the last
// lines it printed.
type ExitError struct {
	Command string
	Code    int
	Tail    []string
}

func (e *ExitError) Error() string {
	return e.Command + " exited with code " + strconv.Itoa(e.Code)
}

const tailLines = 20

// logWriter forwards complete output lines to slog and remembers the last
// few for error reports.
type logWriter struct {
	mu      sync.Mutex
	command string
	buf     bytes.Buffer
	tail    []string
}

func newLogWriter(command string) *logWriter {
	return &logWriter{command: command}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

func (w *logWriter) emit(line string) {
	if line == "" {
		return
	}
	slog.Debug(w.command, "output", line)
	w.tail = append(w.tail, line)
	if len(w.tail) > tailLines {
		w.tail = w.tail[len(w.tail)-tailLines:]
	}
}

// Flush emits a trailing line without newline.
func (w *logWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.emit(w.buf.String())
	w.buf.Reset()
}

// Tail returns the last lines written.
func (w *logWriter) Tail() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.tail...)
}

// Runner drives the configure, build and install steps of a CMake project.
type Runner struct {
	exec      Executor
	cmake     string
	generator string
	jobs      int
	sourceDir string
	buildDir  string
	buildType string
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithExecutor replaces the command executor.
func WithExecutor(e Executor) RunnerOption {
	return func(r *Runner) {
		r.exec = e
	}
}

// WithCMake sets the cmake binary.
func WithCMake(path string) RunnerOption {
	return func(r *Runner) {
		r.cmake = path
	}
}

// WithGenerator selects a CMake generator, e.g. "Ninja".
func WithGenerator(g string) RunnerOption {
	return func(r *Runner) {
		r.generator = g
	}
}

// WithJobs sets the build parallelism. Zero leaves it to the generator.
func WithJobs(n int) RunnerOption {
	return func(r *Runner) {
		r.jobs = n
	}
}

// WithBuildType passes --config to multi-config generators.
func WithBuildType(bt string) RunnerOption {
	return func(r *Runner) {
		r.buildType = bt
	}
}

// NewRunner returns a Runner for the project in sourceDir built in buildDir.
func NewRunner(sourceDir, buildDir string, opts ...RunnerOption) *Runner {
	r := &Runner{
		exec:      ExecExecutor{},
		cmake:     "cmake",
		sourceDir: sourceDir,
		buildDir:  buildDir,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConfigureArgs returns the cmake arguments of the configure step.
func (r *Runner) ConfigureArgs(defs Definitions) []string {
	args := []string{"-S", r.sourceDir, "-B", r.buildDir}
	if r.generator != "" {
		args = append(args, "-G", r.generator)
	}
	return append(args, defs.Args()...)
}

// BuildArgs returns the cmake arguments that build target. An empty target
// builds the default target.
func (r *Runner) BuildArgs(target string) []string {
	args := []string{"--build", r.buildDir}
	if target != "" {
		args = append(args, "--target", target)
	}
	if r.buildType != "" {
		args = append(args, "--config", r.buildType)
	}
	if r.jobs > 0 {
		args = append(args, "--parallel", strconv.Itoa(r.jobs))
	}
	return args
}

// Configure generates the build tree.
func (r *Runner) Configure(ctx context.Context, defs Definitions) error {
	if err := os.MkdirAll(r.buildDir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeConfiguration, fmt.Sprintf("failed to create build directory %s", r.buildDir), err)
	}
	if err := r.run(ctx, defaults.ConfigureTimeout, r.ConfigureArgs(defs)); err != nil {
		return errors.WrapWithContext(errors.ErrCodeConfiguration, "cmake configure failed", err, failureContext(err))
	}
	return nil
}

// Build compiles the default target.
func (r *Runner) Build(ctx context.Context) error {
	if err := r.run(ctx, defaults.CompileTimeout, r.BuildArgs("")); err != nil {
		return errors.WrapWithContext(errors.ErrCodeCompile, "cmake build failed", err, failureContext(err))
	}
	return nil
}

// Install runs the install target, stripping binaries when strip is set.
func (r *Runner) Install(ctx context.Context, strip bool) error {
	target := TargetInstall
	if strip {
		target = TargetInstallStrip
	}
	if err := r.run(ctx, defaults.InstallTimeout, r.BuildArgs(target)); err != nil {
		return errors.WrapWithContext(errors.ErrCodePackaging, fmt.Sprintf("cmake %s failed", target), err,
			mergeContext(failureContext(err), map[string]any{"target": target}))
	}
	return nil
}

func (r *Runner) run(ctx context.Context, timeout time.Duration, args []string) error {
	ctx, cancel := defaults.WithOptionalTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	slog.Info("running cmake", "args", args)
	err := r.exec.Run(ctx, r.buildDir, r.cmake, args...)
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", err, ctx.Err())
	}
	slog.Debug("cmake finished", "duration", time.Since(start).String(), "error", err)
	return err
}

func failureContext(err error) map[string]any {
	var exitErr *ExitError
	if stderrors.As(err, &exitErr) {
		return map[string]any{"exitCode": exitErr.Code, "output": exitErr.Tail}
	}
	return nil
}

func mergeContext(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}
