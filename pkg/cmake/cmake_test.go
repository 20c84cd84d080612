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
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/deps"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
)

func settings(target recipe.OS, bt recipe.BuildType) recipe.Settings {
	return recipe.Settings{OS: target, Arch: recipe.ArchX86_64, Compiler: recipe.DefaultCompiler(target), BuildType: bt}
}

// depsTree lays out openssl and webvtt under a temp dir.
func depsTree(t *testing.T, cryptoFiles ...string) *deps.Tree {
	t.Helper()
	root := t.TempDir()
	if len(cryptoFiles) == 0 {
		cryptoFiles = []string{"libcrypto.so.1.1", "libcrypto.so", "libcrypto.a.bak"}
	}
	for _, f := range cryptoFiles {
		p := filepath.Join(root, "openssl", "lib", f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, nil, 0o600))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "webvtt", "lib"), 0o755))

	tree, err := deps.Discover(root, []string{"openssl", "webvtt"})
	require.NoError(t, err)
	return tree
}

func TestBuildDefinitions_LinuxWithoutCaptions(t *testing.T) {
	t.Parallel()

	cfg := recipe.NewConfig(
		recipe.WithVersion("1.26.0"),
		recipe.WithSettings(settings(recipe.OSLinux, recipe.BuildTypeRelease)),
		recipe.WithOption(recipe.OptWithCaptions, false),
	)
	tree := depsTree(t)
	ossl, err := tree.Get("openssl")
	require.NoError(t, err)

	defs, err := BuildDefinitions(cfg, tree, "/pkg")
	require.NoError(t, err)

	expect := map[string]string{
		"OPUS":                            On,
		"ENABLE_ALL_ENDPOINT_CONTROLLERS": On,
		"METRICS":                         On,
		"ACSDK_EMIT_SENSITIVE_LOGS":       Off,
		"ACSDK_LATENCY_LOG":               Off,
		"BUILD_TESTING":                   Off,
		"CAPTIONS":                        Off,
		"ACSDK_ENABLE_CURL_HTTP_VERSION_2_PRIOR_KNOWLEDGE": Off,
		"RAPIDJSON_MEM_OPTIMIZATION":                       Off,
		"CRYPTO_LIBRARY":                                   filepath.Join(ossl.LibPaths[0], "libcrypto.so"),
		"CRYPTO_INCLUDE_DIR":                               ossl.IncludePaths[0],
		"CMAKE_BUILD_TYPE":                                 "Release",
		"CMAKE_INSTALL_PREFIX":                             "/pkg",
		"CMAKE_CXX_STANDARD":                               "11",
	}
	for k, v := range expect {
		assert.Equal(t, v, defs[k], k)
	}

	for _, k := range []string{"LIBWEBVTT_LIB_PATH", "LIBWEBVTT_INCLUDE_DIR", "FILE_SYSTEM_UTILS", "ANDROID"} {
		assert.NotContains(t, defs, k)
	}
	assert.Contains(t, defs["CMAKE_PREFIX_PATH"], ossl.RootPath)
	assert.NotContains(t, recipeRefs(cfg), "webvtt/1.0@aac/stable")
}

func recipeRefs(cfg *recipe.Config) []string {
	var out []string
	for _, r := range cfg.Requirements() {
		out = append(out, r.Reference())
	}
	return out
}

func TestBuildDefinitions_Captions(t *testing.T) {
	t.Parallel()

	cfg := recipe.NewConfig(recipe.WithSettings(settings(recipe.OSLinux, recipe.BuildTypeDebug)))
	tree := depsTree(t)
	vtt, err := tree.Get("webvtt")
	require.NoError(t, err)

	defs, err := BuildDefinitions(cfg, tree, "/pkg")
	require.NoError(t, err)
	assert.Equal(t, On, defs["CAPTIONS"])
	assert.Equal(t, filepath.Join(vtt.RootPath, "lib", "libwebvtt.a"), defs["LIBWEBVTT_LIB_PATH"])
	assert.Equal(t, filepath.Join(vtt.RootPath, "include"), defs["LIBWEBVTT_INCLUDE_DIR"])
	assert.Equal(t, "Debug", defs["CMAKE_BUILD_TYPE"])
}

func TestBuildDefinitions_Platforms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		os          recipe.OS
		wantFSUtils bool
		wantAndroid bool
	}{
		{recipe.OSLinux, false, false},
		{recipe.OSMacos, false, false},
		{recipe.OSNeutrino, true, false},
		{recipe.OSAndroid, false, true},
		{recipe.OSWindows, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.os), func(t *testing.T) {
			t.Parallel()
			cfg := recipe.NewConfig(recipe.WithSettings(settings(tt.os, recipe.BuildTypeRelease)))
			defs, err := BuildDefinitions(cfg, depsTree(t), "/pkg")
			require.NoError(t, err)

			v, ok := defs["FILE_SYSTEM_UTILS"]
			assert.Equal(t, tt.wantFSUtils, ok)
			if ok {
				assert.Equal(t, Off, v)
			}
			v, ok = defs["ANDROID"]
			assert.Equal(t, tt.wantAndroid, ok)
			if ok {
				assert.Equal(t, Off, v)
			}
		})
	}
}

func TestBuildDefinitions_ShortestCryptoName(t *testing.T) {
	t.Parallel()

	tree := depsTree(t, "libcrypto.so.3", "libcrypto.dylib", "libcrypto.a")
	ossl, err := tree.Get("openssl")
	require.NoError(t, err)

	cfg := recipe.NewConfig(recipe.WithSettings(settings(recipe.OSLinux, recipe.BuildTypeRelease)))
	defs, err := BuildDefinitions(cfg, tree, "/pkg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ossl.LibPaths[0], "libcrypto.a"), defs["CRYPTO_LIBRARY"])
}

func TestBuildDefinitions_Errors(t *testing.T) {
	t.Parallel()

	cfg := recipe.NewConfig(recipe.WithSettings(settings(recipe.OSLinux, recipe.BuildTypeRelease)))

	t.Run("no openssl", func(t *testing.T) {
		t.Parallel()
		tree := deps.NewTree(map[string]deps.Info{"webvtt": {RootPath: "/x"}})
		_, err := BuildDefinitions(cfg, tree, "/pkg")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConfiguration))
	})

	t.Run("no crypto library", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		tree := deps.NewTree(map[string]deps.Info{
			"openssl": {RootPath: dir, LibPaths: []string{dir}, IncludePaths: []string{dir}},
			"webvtt":  {RootPath: "/x"},
		})
		_, err := BuildDefinitions(cfg, tree, "/pkg")
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeConfiguration, errors.CodeOf(err))
	})

	t.Run("captions without webvtt", func(t *testing.T) {
		t.Parallel()
		tree := depsTree(t)
		only := deps.NewTree(map[string]deps.Info{"openssl": mustGet(t, tree, "openssl")})
		_, err := BuildDefinitions(cfg, only, "/pkg")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeConfiguration))

		_, err = BuildDefinitions(cfg.With(recipe.WithOption(recipe.OptWithCaptions, false)), only, "/pkg")
		assert.NoError(t, err)
	})
}

func mustGet(t *testing.T, tree *deps.Tree, name string) deps.Info {
	t.Helper()
	info, err := tree.Get(name)
	require.NoError(t, err)
	return info
}

func TestDefinitions_Args(t *testing.T) {
	t.Parallel()

	d := Definitions{"B": "2", "A": "1"}
	assert.Equal(t, []string{"-DA=1", "-DB=2"}, d.Args())
}

type call struct {
	dir  string
	name string
	args []string
}

type fakeExecutor struct {
	mu    sync.Mutex
	calls []call
	fail  func(args []string) error
}

func (f *fakeExecutor) Run(_ context.Context, dir, name string, args ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{dir: dir, name: name, args: args})
	if f.fail != nil {
		return f.fail(args)
	}
	return nil
}

func TestRunner(t *testing.T) {
	t.Parallel()

	build := filepath.Join(t.TempDir(), "build")
	fx := &fakeExecutor{}
	r := NewRunner("/src", build, WithExecutor(fx), WithGenerator("Ninja"), WithJobs(8), WithBuildType("Release"))

	require.NoError(t, r.Configure(t.Context(), Definitions{"OPUS": On}))
	assert.DirExists(t, build)
	require.NoError(t, r.Build(t.Context()))
	require.NoError(t, r.Install(t.Context(), true))
	require.NoError(t, r.Install(t.Context(), false))

	require.Len(t, fx.calls, 4)
	assert.Equal(t, []string{"-S", "/src", "-B", build, "-G", "Ninja", "-DOPUS=ON"}, fx.calls[0].args)
	assert.Equal(t, []string{"--build", build, "--config", "Release", "--parallel", "8"}, fx.calls[1].args)
	assert.Equal(t, []string{"--build", build, "--target", "install/strip", "--config", "Release", "--parallel", "8"}, fx.calls[2].args)
	assert.Equal(t, "install", fx.calls[3].args[3])
	for _, c := range fx.calls {
		assert.Equal(t, "cmake", c.name)
		assert.Equal(t, build, c.dir)
	}
}

func TestRunner_ErrorCodes(t *testing.T) {
	t.Parallel()

	fx := &fakeExecutor{fail: func([]string) error {
		return &ExitError{Command: "cmake", Code: 2, Tail: []string{"error: boom"}}
	}}
	r := NewRunner("/src", filepath.Join(t.TempDir(), "build"), WithExecutor(fx))

	err := r.Configure(t.Context(), nil)
	assert.Equal(t, errors.ErrCodeConfiguration, errors.CodeOf(err))
	err = r.Build(t.Context())
	assert.Equal(t, errors.ErrCodeCompile, errors.CodeOf(err))
	err = r.Install(t.Context(), false)
	assert.Equal(t, errors.ErrCodePackaging, errors.CodeOf(err))

	var se *errors.StructuredError
	require.True(t, stderrors.As(err, &se))
	assert.Equal(t, 2, se.Context["exitCode"])
	assert.Equal(t, "install", se.Context["target"])
}

func TestLogWriter(t *testing.T) {
	t.Parallel()

	w := newLogWriter("cmake")
	for i := range 25 {
		_, err := w.Write([]byte("line " + strings.Repeat("x", i%3) + "\n"))
		require.NoError(t, err)
	}
	_, err := w.Write([]byte("partial"))
	require.NoError(t, err)
	w.Flush()

	tail := w.Tail()
	assert.Len(t, tail, tailLines)
	assert.Equal(t, "partial", tail[len(tail)-1])
}

func TestExecExecutor_MissingBinary(t *testing.T) {
	t.Parallel()

	err := ExecExecutor{}.Run(t.Context(), t.TempDir(), "definitely-not-a-real-cmake-binary")
	assert.Error(t, err)
}
