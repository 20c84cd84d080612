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

// Package cmake translates the recipe configuration into CMake cache
// definitions and drives cmake through configure, build and install.
//
// BuildDefinitions maps each recipe option to an ON/OFF variable, adds the
// fixed and platform specific variables, locates libcrypto in the OpenSSL
// package (the shortest matching file name wins) and, with captions
// enabled, points the SDK at the webvtt package.
//
// Runner invokes cmake through an Executor. The default ExecExecutor uses
// os/exec and logs each output line at debug level; failures carry the exit
// code and the last lines of output in the error context.
package cmake
