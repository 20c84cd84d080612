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

// Package recipe holds the build configuration of the AVS Device SDK package.
//
// A Config bundles the package version, the user/channel namespace, the build
// Settings (os, compiler, arch, build type), the recipe's own Options and the
// options forwarded to dependency packages. Configs are immutable: derive
// modified copies with With, and the pinned platform view with Resolve.
//
//	cfg := recipe.NewConfig(
//	    recipe.WithVersion("1.26.0"),
//	    recipe.WithSettings(recipe.Settings{OS: recipe.OSAndroid, Arch: recipe.ArchArmv8,
//	        Compiler: "clang", BuildType: recipe.BuildTypeRelease}),
//	    recipe.WithOption(recipe.OptWithCaptions, false),
//	)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	resolved, overrides := cfg.Resolve() // openssl:shared=False on Android
//
// # Requirements
//
// DeclareRequirements lists the packages the build needs. sqlite3 and opus are
// pinned to a recipe revision, libcurl and webvtt are taken from the active
// user/channel and webvtt is only required when captions are enabled.
//
// # Platform overrides
//
// Dependency options that depend on the target platform live in a lookup
// table keyed by (OS, Arch) where empty fields act as wildcards. Matching
// entries apply from least to most specific, so an OS entry wins over the
// catch-all entry.
package recipe
