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

// Package cli implements the avsrecipe command line.
//
// # Commands
//
//	requirements  List the required packages (sqlite3, opus, libcurl, webvtt)
//	options       Show resolved settings and options, including platform overrides
//	definitions   Show the CMake definitions of the configure step
//	source        Download and unpack the SDK sources into the workspace
//	build         Patch, configure and compile
//	package       Install into the package folder and copy the test headers
//	info          Export package-info.yaml, pkg-config and CMake metadata
//	create        Run every phase; --publish pushes the package as an OCI artifact
//	version       Show the tool version
//
// source, build, package, info and create share one workspace. Each saves
// the build state in <workspace>/.avsrecipe/state.yaml and resumes a saved
// build for the same package, settings and options. --fresh starts over.
//
// # Configuration
//
// The configuration starts from the host settings, then applies the
// --profile file, then the flags:
//
//	avsrecipe --profile android.yaml create --arch armv8 -o with_captions=False \
//	    --deps-root /opt/avs-deps --publish oci://ghcr.io/acme/avs-device-sdk
//
// Every flag can also be set through an AVSRECIPE_* environment variable,
// e.g. AVSRECIPE_OS=Linux or AVSRECIPE_DEPS_ROOT=/opt/avs-deps.
// LOG_LEVEL sets the log level.
//
// # Output
//
// Results are written to stdout or --output as YAML (default), JSON or a
// flattened table (--format). Logs are JSON on stderr.
//
// # Exit Codes
//
//	0  Success
//	1  Failure (invalid input, phase failure)
//	2  Canceled or timed out
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/avs-device-sdk-recipe/pkg/cli.version=1.0.0'"
package cli
