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
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/cmake"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/deps"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/header"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/packager"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/source"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func linePatch(from, to string) string {
	return "diff --git a/CMakeLists.txt b/CMakeLists.txt\n" +
		"--- a/CMakeLists.txt\n" +
		"+++ b/CMakeLists.txt\n" +
		"@@ -1,2 +1,2 @@\n" +
		" project(AlexaClientSDK)\n" +
		"-" + from + "\n" +
		"+" + to + "\n"
}

// fakeFetcher lays out a minimal SDK checkout.
type fakeFetcher struct {
	calls int
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, version, destDir string) (*source.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	src := filepath.Join(destDir, source.SourceSubfolder)
	if err := os.MkdirAll(src, 0o755); err != nil {
		return nil, err
	}
	files := map[string]string{
		"CMakeLists.txt": "project(AlexaClientSDK)\nset(STAGE 0)\n",
		filepath.Join(packager.TestHeaders[0].Src, "MockDirectiveSequencer.h"): "// mock\n",
		filepath.Join(packager.TestHeaders[1].Src, "MockSetting.h"):            "// mock\n",
	}
	for name, body := range files {
		p := filepath.Join(src, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			return nil, err
		}
	}
	return &source.Result{URL: "https://example.invalid/v" + version + ".tar.gz", SourcePath: src}, nil
}

// fakeExecutor records cmake invocations and populates the install prefix.
type fakeExecutor struct {
	mu         sync.Mutex
	calls      [][]string
	packageDir string
	fail       func(args []string) error
}

func (f *fakeExecutor) Run(_ context.Context, _, _ string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, args)
	if f.fail != nil {
		if err := f.fail(args); err != nil {
			return err
		}
	}
	if i := slices.Index(args, "--target"); i >= 0 && strings.HasPrefix(args[i+1], "install") {
		for _, lib := range []string{"libAVSCommon.so", "libACL.so", "libAVSCommon.a"} {
			p := filepath.Join(f.packageDir, "lib", lib)
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(p, []byte("elf"), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fakeExecutor) targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, args := range f.calls {
		switch {
		case args[0] == "-S":
			out = append(out, "configure")
		case slices.Contains(args, "--target"):
			out = append(out, args[slices.Index(args, "--target")+1])
		default:
			out = append(out, "build")
		}
	}
	return out
}

func depsTree(t *testing.T) *deps.Tree {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"sqlite3", "opus", "libcurl", "webvtt", "openssl"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, name, "include"), 0o755))
	}
	writeFile(t, filepath.Join(root, "openssl", "lib", "libcrypto.so.3"), "")
	writeFile(t, filepath.Join(root, "openssl", "lib", "libcrypto.so"), "")

	tree, err := deps.Discover(root, []string{"sqlite3", "opus", "libcurl", "webvtt", "openssl"})
	require.NoError(t, err)
	return tree
}

func linuxConfig(opts ...recipe.Option) *recipe.Config {
	base := []recipe.Option{
		recipe.WithSettings(recipe.Settings{
			OS:        recipe.OSLinux,
			Arch:      recipe.ArchX86_64,
			Compiler:  "gcc",
			BuildType: recipe.BuildTypeRelease,
		}),
	}
	return recipe.NewConfig(append(base, opts...)...)
}

type fixture struct {
	workspace string
	patches   string
	fetcher   *fakeFetcher
	executor  *fakeExecutor
	pipeline  *Pipeline
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ws := t.TempDir()
	f := &fixture{
		workspace: ws,
		patches:   filepath.Join(ws, "patches"),
		fetcher:   &fakeFetcher{},
		executor:  &fakeExecutor{packageDir: filepath.Join(ws, "package")},
	}
	base := []Option{
		WithFetcher(f.fetcher),
		WithDependencies(depsTree(t)),
		WithExecutor(f.executor),
		WithToolVersion("v0.0.0-test"),
	}
	f.pipeline = New(append(base, opts...)...)
	return f
}

func TestStage_Order(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, StageNew.Index())
	assert.Equal(t, 7, StageExported.Index())
	assert.Equal(t, -1, Stage("Bogus").Index())
	assert.True(t, StageBuilt.Reached(StagePatched))
	assert.True(t, StageBuilt.Reached(StageBuilt))
	assert.False(t, StageFetched.Reached(StageBuilt))
	assert.False(t, Stage("Bogus").Reached(StageNew))
}

func TestRun_LinuxRelease(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "0001-common.patch"), linePatch("set(STAGE 0)", "set(STAGE 1)"))
	writeFile(t, filepath.Join(f.patches, "Linux", "0001-linux.patch"), linePatch("set(STAGE 1)", "set(STAGE 2)"))
	writeFile(t, filepath.Join(f.patches, "Linux", "x86_64", "0001-both.patch"), linePatch("set(STAGE 2)", "set(STAGE 3)"))
	writeFile(t, filepath.Join(f.patches, "Macos", "0001-macos.patch"), "not applied")

	start := NewState(linuxConfig(recipe.WithOption(recipe.OptWithCaptions, false)), f.workspace, f.patches)
	st, err := f.pipeline.Run(context.Background(), start)
	require.NoError(t, err)

	assert.Equal(t, StageNew, start.Stage, "input state must not change")
	assert.Equal(t, StageExported, st.Stage)
	assert.Equal(t, start.BuildID, st.BuildID)
	assert.Equal(t, 1, f.fetcher.calls)

	assert.Equal(t, []string{
		"0001-common.patch",
		filepath.Join("Linux", "0001-linux.patch"),
		filepath.Join("Linux", "x86_64", "0001-both.patch"),
	}, st.AppliedPatches)
	assert.Contains(t, readFile(t, filepath.Join(st.Paths.Source, "CMakeLists.txt")), "set(STAGE 3)")

	assert.Equal(t, []string{"configure", "build", "configure", cmake.TargetInstallStrip}, f.executor.targets())

	assert.Equal(t, "11", st.Config.Settings.CppStd)
	assert.Equal(t, "True", st.Config.DependencyOptions["sqlite3:shared"])
	assert.Equal(t, "OFF", st.Definitions["CAPTIONS"])
	assert.NotContains(t, st.Definitions, "LIBWEBVTT_LIB_PATH")
	assert.Equal(t, "libcrypto.so", filepath.Base(st.Definitions["CRYPTO_LIBRARY"]))

	refs := make([]string, 0, len(st.Requirements))
	for _, r := range st.Requirements {
		refs = append(refs, r.Name)
	}
	assert.Equal(t, []string{"sqlite3", "opus", "libcurl"}, refs)

	require.NotNil(t, st.Layout)
	assert.Equal(t, cmake.TargetInstallStrip, st.Layout.InstallTarget)
	require.NotNil(t, st.Info)
	assert.Equal(t, []string{"ACL", "AVSCommon"}, st.Info.Libs)
	assert.FileExists(t, filepath.Join(st.Paths.Package, packager.InfoFileName))
	assert.FileExists(t, filepath.Join(st.Paths.Package, "include", "AVSCommon", "SDKInterfaces", "test", "MockDirectiveSequencer.h"))

	loaded, err := LoadState(f.workspace)
	require.NoError(t, err)
	assert.Equal(t, StageExported, loaded.Stage)
	assert.Equal(t, st.BuildID, loaded.BuildID)
	assert.Equal(t, header.KindBuildState, loaded.Kind)
	assert.Equal(t, st.AppliedPatches, loaded.AppliedPatches)
}

func TestRun_DebugUsesPlainInstall(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	cfg := linuxConfig().With(recipe.WithSettings(recipe.Settings{
		OS: recipe.OSLinux, Arch: recipe.ArchArmv8, Compiler: "gcc", BuildType: recipe.BuildTypeDebug,
	}))
	st, err := f.pipeline.Run(context.Background(), NewState(cfg, f.workspace, ""))
	require.NoError(t, err)

	assert.Equal(t, cmake.TargetInstall, st.Layout.InstallTarget)
	assert.Contains(t, f.executor.targets(), cmake.TargetInstall)
	assert.NotContains(t, f.executor.targets(), cmake.TargetInstallStrip)
	assert.Empty(t, st.AppliedPatches)
}

func TestRunUntil_Resumes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	st, err := f.pipeline.RunUntil(context.Background(), NewState(linuxConfig(), f.workspace, ""), StageConfigured)
	require.NoError(t, err)
	assert.Equal(t, StageConfigured, st.Stage)
	assert.Empty(t, f.executor.targets())

	loaded, err := LoadState(f.workspace)
	require.NoError(t, err)
	assert.Equal(t, StageConfigured, loaded.Stage)

	st, err = f.pipeline.Build(context.Background(), loaded)
	require.NoError(t, err)
	assert.Equal(t, StageBuilt, st.Stage)
	assert.Equal(t, []string{"configure", "build"}, f.executor.targets())
	assert.Equal(t, 1, f.fetcher.calls)
}

func TestPhase_WrongStage(t *testing.T) {
	f := newFixture(t, WithPersistence(false))
	st := NewState(linuxConfig(), f.workspace, "")

	before := testutil.ToFloat64(phaseFailures.WithLabelValues("fetch", string(errors.ErrCodeInvalidRequest)))

	out, err := f.pipeline.Fetch(context.Background(), st)
	require.Error(t, err)
	assert.Same(t, st, out)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
	assert.Contains(t, err.Error(), "fetch phase failed")
	assert.Equal(t, 0, f.fetcher.calls)

	var se *errors.StructuredError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "fetch", se.Context["phase"])

	after := testutil.ToFloat64(phaseFailures.WithLabelValues("fetch", string(errors.ErrCodeInvalidRequest)))
	assert.InDelta(t, 1, after-before, 0.001)
	assert.NoFileExists(t, StateFile(f.workspace))
}

func TestPhase_NoReentry(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	st, err := f.pipeline.Declare(context.Background(), NewState(linuxConfig(), f.workspace, ""))
	require.NoError(t, err)

	_, err = f.pipeline.Declare(context.Background(), st)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func TestDeclare_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid version", func(t *testing.T) {
		f := newFixture(t)
		st := NewState(linuxConfig(recipe.WithVersion("not-a-version")), f.workspace, "")
		out, err := f.pipeline.Declare(context.Background(), st)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
		assert.Equal(t, StageNew, out.Stage)
	})

	t.Run("missing dependency", func(t *testing.T) {
		f := newFixture(t, WithDependencies(deps.NewTree(nil)))
		_, err := f.pipeline.Declare(context.Background(), NewState(linuxConfig(), f.workspace, ""))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
		assert.Contains(t, err.Error(), "sqlite3/3.37.2")
	})
}

func TestFetch_KeepsRetrievalCode(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.fetcher.err = errors.New(errors.ErrCodeRetrieval, "download failed")

	st, err := f.pipeline.Declare(context.Background(), NewState(linuxConfig(), f.workspace, ""))
	require.NoError(t, err)

	out, err := f.pipeline.Fetch(context.Background(), st)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRetrieval))
	assert.Equal(t, StageDeclared, out.Stage)
}

func TestBuild_PatchConflictAborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	writeFile(t, filepath.Join(f.patches, "0001-bad.patch"), linePatch("set(STAGE 9)", "set(STAGE 10)"))

	st, err := f.pipeline.RunUntil(context.Background(), NewState(linuxConfig(), f.workspace, f.patches), StageConfigured)
	require.NoError(t, err)

	out, err := f.pipeline.Build(context.Background(), st)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePatch))
	assert.Equal(t, StageConfigured, out.Stage)
	assert.Empty(t, f.executor.targets())
}

func TestBuild_CompileFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.executor.fail = func(args []string) error {
		if args[0] == "--build" {
			return &cmake.ExitError{Command: "cmake", Code: 2}
		}
		return nil
	}

	_, err := f.pipeline.Run(context.Background(), NewState(linuxConfig(), f.workspace, ""))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeCompile))

	loaded, err := LoadState(f.workspace)
	require.NoError(t, err)
	assert.Equal(t, StagePatched, loaded.Stage)
}

func TestBuild_RequiresDependencies(t *testing.T) {
	t.Parallel()

	ws := t.TempDir()
	p := New(WithFetcher(&fakeFetcher{}), WithExecutor(&fakeExecutor{}), WithPersistence(false))
	_, err := p.Run(context.Background(), NewState(linuxConfig(), ws, ""))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfiguration))
}

func TestPublish_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	st := NewState(linuxConfig(), f.workspace, "")

	_, err := f.pipeline.Publish(context.Background(), st)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))

	st, err = f.pipeline.Run(context.Background(), st)
	require.NoError(t, err)

	_, err = f.pipeline.Publish(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no publish target configured")
}

func TestLoadState_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadState(t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeNotFound))

	ws := t.TempDir()
	writeFile(t, StateFile(ws), "kind: PackageInfo\napiVersion: "+header.APIVersion+"\nstage: New\n")
	_, err = LoadState(ws)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidRequest))
}

func TestWriteMetrics(t *testing.T) {
	f := newFixture(t, WithPersistence(false))
	_, err := f.pipeline.Declare(context.Background(), NewState(linuxConfig(), f.workspace, ""))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "avsrecipe.prom")
	require.NoError(t, WriteMetrics(path))

	body := readFile(t, path)
	assert.Contains(t, body, "avsrecipe_phase_duration_seconds_bucket")
	assert.Contains(t, body, `phase="declare"`)
}
