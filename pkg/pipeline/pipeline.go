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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/cmake"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/oci"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/packager"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/patch"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/source"
)

// Fetcher retrieves the SDK sources for a version below destDir.
type Fetcher interface {
	Fetch(ctx context.Context, version, destDir string) (*source.Result, error)
}

// Dependencies resolves installed dependency packages.
type Dependencies interface {
	cmake.Dependencies
	Check(reqs []recipe.DependencySpec) error
}

// Pipeline runs the recipe phases. It holds collaborators only; all build
// progress lives in State.
type Pipeline struct {
	fetcher     Fetcher
	deps        Dependencies
	executor    cmake.Executor
	generator   string
	jobs        int
	toolVersion string
	persist     bool

	publishTarget *oci.Reference
	plainHTTP     bool
	insecureTLS   bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFetcher sets the source fetcher.
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// WithDependencies sets the installed dependency tree.
func WithDependencies(d Dependencies) Option {
	return func(p *Pipeline) {
		p.deps = d
	}
}

// WithExecutor replaces the command executor used for cmake.
func WithExecutor(e cmake.Executor) Option {
	return func(p *Pipeline) {
		p.executor = e
	}
}

// WithGenerator selects the CMake generator.
func WithGenerator(g string) Option {
	return func(p *Pipeline) {
		p.generator = g
	}
}

// WithJobs sets the build parallelism.
func WithJobs(n int) Option {
	return func(p *Pipeline) {
		p.jobs = n
	}
}

// WithToolVersion records the tool version in exported metadata.
func WithToolVersion(v string) Option {
	return func(p *Pipeline) {
		p.toolVersion = v
	}
}

// WithPersistence toggles saving the state after every phase. On by default.
func WithPersistence(enabled bool) Option {
	return func(p *Pipeline) {
		p.persist = enabled
	}
}

// WithPublishTarget makes Run publish the exported package to ref.
func WithPublishTarget(ref *oci.Reference, plainHTTP, insecureTLS bool) Option {
	return func(p *Pipeline) {
		p.publishTarget = ref
		p.plainHTTP = plainHTTP
		p.insecureTLS = insecureTLS
	}
}

// New returns a Pipeline. Without WithFetcher it downloads from the public
// release archive.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{persist: true}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = source.NewFetcher()
	}
	return p
}

// phase runs fn on a copy of st when st is at one of the from stages and
// returns the copy advanced to the to stage.
func (p *Pipeline) phase(ctx context.Context, name string, st *State, from []Stage, to Stage, fn func(context.Context, *State) error) (*State, error) {
	start := time.Now()
	logger := slog.With("phase", name, "buildID", st.BuildID)

	fail := func(err error) (*State, error) {
		code := errors.CodeOf(err)
		phaseFailures.WithLabelValues(name, string(code)).Inc()
		logger.Error("phase failed", "stage", st.Stage, "code", code, "error", err,
			"duration", time.Since(start).String())
		return st, errors.WrapWithContext(code, fmt.Sprintf("%s phase failed", name), err,
			map[string]any{"phase": name, "stage": st.Stage.String()})
	}

	if !slices.Contains(from, st.Stage) {
		return fail(errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s cannot run at stage %s, expected %v", name, st.Stage, from),
			map[string]any{"stage": st.Stage.String()}))
	}
	if err := ctx.Err(); err != nil {
		return fail(errors.Wrap(errors.ErrCodeTimeout, "context done", err))
	}

	logger.Info("phase started", "stage", st.Stage)

	next := st.clone()
	if err := fn(ctx, next); err != nil {
		return fail(err)
	}
	next.Stage = to

	if p.persist && next.Paths.Workspace != "" {
		if err := SaveState(next); err != nil {
			return fail(err)
		}
	}

	elapsed := time.Since(start)
	phaseDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	logger.Info("phase completed", "stage", next.Stage, "duration", elapsed.String())
	return next, nil
}

// Declare validates the configuration, pins its requirements and, when a
// dependency tree is configured, checks that they are installed.
func (p *Pipeline) Declare(ctx context.Context, st *State) (*State, error) {
	return p.phase(ctx, "declare", st, []Stage{StageNew}, StageDeclared, func(_ context.Context, next *State) error {
		cfg := next.RecipeConfig()
		if err := cfg.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidRequest, "invalid recipe configuration", err)
		}
		next.Requirements = cfg.Requirements()
		for _, req := range next.Requirements {
			slog.Debug("requirement declared", "reference", req.Reference())
		}
		if p.deps != nil {
			return p.deps.Check(next.Requirements)
		}
		return nil
	})
}

// Fetch downloads and unpacks the SDK sources into the workspace.
func (p *Pipeline) Fetch(ctx context.Context, st *State) (*State, error) {
	return p.phase(ctx, "fetch", st, []Stage{StageDeclared}, StageFetched, func(ctx context.Context, next *State) error {
		res, err := p.fetcher.Fetch(ctx, next.Config.Version, next.Paths.Workspace)
		if err != nil {
			return err
		}
		next.Source = res
		next.Paths.Source = res.SourcePath
		return nil
	})
}

// Configure pins the C++ standard and applies the platform option overrides.
func (p *Pipeline) Configure(ctx context.Context, st *State) (*State, error) {
	return p.phase(ctx, "configure", st, []Stage{StageFetched}, StageConfigured, func(_ context.Context, next *State) error {
		resolved, overrides := next.RecipeConfig().Resolve()
		for _, o := range overrides {
			slog.Info("dependency option overridden", "package", o.Package, "option", o.Option, "value", o.Value)
		}
		next.Config = resolved.Spec()
		next.Overrides = overrides
		return nil
	})
}

// Patch applies the patch tiers matching the settings to the source tree.
func (p *Pipeline) Patch(ctx context.Context, st *State) (*State, error) {
	return p.phase(ctx, "patch", st, []Stage{StageConfigured}, StagePatched, p.applyPatches)
}

func (p *Pipeline) applyPatches(ctx context.Context, next *State) error {
	next.AppliedPatches = nil
	if next.Paths.Patches == "" {
		return nil
	}
	set, err := patch.Discover(next.Paths.Patches, next.Config.Settings)
	if err != nil {
		return err
	}
	applied, err := patch.ApplyAll(ctx, next.Paths.Source, set)
	patchesApplied.Add(float64(len(applied)))
	if err != nil {
		return err
	}
	next.AppliedPatches = applied
	return nil
}

// Build configures and compiles the SDK. A Configured state is patched first.
func (p *Pipeline) Build(ctx context.Context, st *State) (*State, error) {
	if st.Stage == StageConfigured {
		patched, err := p.Patch(ctx, st)
		if err != nil {
			return st, err
		}
		st = patched
	}
	return p.phase(ctx, "build", st, []Stage{StagePatched}, StageBuilt, func(ctx context.Context, next *State) error {
		cfg := next.RecipeConfig()
		runner, defs, err := p.configureCMake(ctx, cfg, next)
		if err != nil {
			return err
		}
		next.Definitions = defs
		return runner.Build(ctx)
	})
}

// Package reconfigures the build tree, installs it into the package folder
// and copies the test headers.
func (p *Pipeline) Package(ctx context.Context, st *State) (*State, error) {
	return p.phase(ctx, "package", st, []Stage{StageBuilt}, StagePackaged, func(ctx context.Context, next *State) error {
		cfg := next.RecipeConfig()
		runner, _, err := p.configureCMake(ctx, cfg, next)
		if err != nil {
			return err
		}
		layout, err := packager.Package(ctx, cfg, runner, next.Paths.Source, next.Paths.Package)
		if err != nil {
			return err
		}
		next.Layout = layout
		return nil
	})
}

// Export writes the consumer metadata into the package folder.
func (p *Pipeline) Export(ctx context.Context, st *State) (*State, error) {
	return p.phase(ctx, "export", st, []Stage{StagePackaged}, StageExported, func(ctx context.Context, next *State) error {
		info, err := packager.Export(ctx, next.RecipeConfig(), next.Paths.Package, p.toolVersion)
		if err != nil {
			return err
		}
		next.Info = info
		return nil
	})
}

// Publish pushes the exported package folder to the configured OCI target.
// A package is published at most once.
func (p *Pipeline) Publish(ctx context.Context, st *State) (*State, error) {
	return p.phase(ctx, "publish", st, []Stage{StageExported}, StageExported, func(ctx context.Context, next *State) error {
		if p.publishTarget == nil {
			return errors.New(errors.ErrCodeInvalidRequest, "no publish target configured")
		}
		if next.Published != nil {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest, "package already published",
				map[string]any{"reference": next.Published.Reference})
		}
		cfg := next.RecipeConfig()
		res, err := oci.Publish(ctx, oci.OutputConfig{
			SourceDir:   next.Paths.Package,
			OutputDir:   filepath.Join(next.Paths.Workspace, StateDirName),
			Reference:   p.publishTarget,
			Title:       packager.ConsumerName,
			Version:     cfg.Version(),
			PlainHTTP:   p.plainHTTP,
			InsecureTLS: p.insecureTLS,
			Annotations: map[string]string{
				oci.AnnotationPackageReference: cfg.Reference(),
				oci.AnnotationPackageSettings:  cfg.Settings().String(),
			},
		})
		if err != nil {
			return err
		}
		next.Published = res
		return nil
	})
}

// Run advances st through every remaining phase up to Exported, then
// publishes when a target is configured.
func (p *Pipeline) Run(ctx context.Context, st *State) (*State, error) {
	return p.RunUntil(ctx, st, StageExported)
}

// RunUntil advances st through the phases until it reaches target. Reaching
// StageExported also publishes when a target is configured.
func (p *Pipeline) RunUntil(ctx context.Context, st *State, target Stage) (*State, error) {
	if target.Index() < 0 {
		return st, errors.New(errors.ErrCodeInvalidRequest, fmt.Sprintf("unknown stage %q", target))
	}

	steps := map[Stage]func(context.Context, *State) (*State, error){
		StageNew:        p.Declare,
		StageDeclared:   p.Fetch,
		StageFetched:    p.Configure,
		StageConfigured: p.Patch,
		StagePatched:    p.Build,
		StageBuilt:      p.Package,
		StagePackaged:   p.Export,
	}

	var err error
	for !st.Stage.Reached(target) {
		step, ok := steps[st.Stage]
		if !ok {
			return st, errors.New(errors.ErrCodeInternal, fmt.Sprintf("no phase follows stage %s", st.Stage))
		}
		if st, err = step(ctx, st); err != nil {
			return st, err
		}
	}

	if target == StageExported && p.publishTarget != nil && st.Published == nil {
		return p.Publish(ctx, st)
	}
	return st, nil
}

func (p *Pipeline) configureCMake(ctx context.Context, cfg *recipe.Config, st *State) (*cmake.Runner, cmake.Definitions, error) {
	if p.deps == nil {
		return nil, nil, errors.New(errors.ErrCodeConfiguration, "a dependency tree is required to configure the build")
	}
	defs, err := cmake.BuildDefinitions(cfg, p.deps, st.Paths.Package)
	if err != nil {
		return nil, nil, err
	}
	runner := p.Runner(cfg, st)
	if err := runner.Configure(ctx, defs); err != nil {
		return nil, nil, err
	}
	return runner, defs, nil
}

// Runner returns the cmake runner for the directories in st.
func (p *Pipeline) Runner(cfg *recipe.Config, st *State) *cmake.Runner {
	opts := []cmake.RunnerOption{
		cmake.WithGenerator(p.generator),
		cmake.WithJobs(p.jobs),
		cmake.WithBuildType(string(cfg.Settings().BuildType)),
	}
	if p.executor != nil {
		opts = append(opts, cmake.WithExecutor(p.executor))
	}
	return cmake.NewRunner(st.Paths.Source, st.Paths.Build, opts...)
}
