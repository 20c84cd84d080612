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

package cli

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/serializer"
)

// outputFlags select where and how command results are written.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"O"},
			Usage:   "Output file path (default: stdout)",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"t"},
			Value:   string(serializer.FormatYAML),
			Usage:   fmt.Sprintf("Output format (supported values: %s)", strings.Join(serializer.SupportedFormats(), ", ")),
			Sources: envVars("FORMAT"),
		},
	}
}

// configFlags select the package configuration.
func configFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "version",
			Usage:   fmt.Sprintf("SDK release version (default: %s)", recipe.DefaultVersion),
			Sources: envVars("VERSION"),
		},
		&cli.StringFlag{
			Name:    "os",
			Usage:   fmt.Sprintf("Target OS (supported values: %s)", strings.Join(recipe.SupportedOSes(), ", ")),
			Sources: envVars("OS"),
		},
		&cli.StringFlag{
			Name:    "arch",
			Usage:   fmt.Sprintf("Target architecture (supported values: %s)", strings.Join(recipe.SupportedArchs(), ", ")),
			Sources: envVars("ARCH"),
		},
		&cli.StringFlag{
			Name:    "compiler",
			Usage:   "Compiler (default: the target OS's conventional compiler)",
			Sources: envVars("COMPILER"),
		},
		&cli.StringFlag{
			Name:    "compiler-version",
			Usage:   "Compiler version",
			Sources: envVars("COMPILER_VERSION"),
		},
		&cli.StringFlag{
			Name:    "build-type",
			Usage:   fmt.Sprintf("Build type (supported values: %s)", strings.Join(recipe.SupportedBuildTypes(), ", ")),
			Sources: envVars("BUILD_TYPE"),
		},
		&cli.StringFlag{
			Name:    "user",
			Usage:   fmt.Sprintf("Package user (default: %s)", recipe.DefaultUser),
			Sources: envVars("USER"),
		},
		&cli.StringFlag{
			Name:    "channel",
			Usage:   fmt.Sprintf("Package channel (default: %s)", recipe.DefaultChannel),
			Sources: envVars("CHANNEL"),
		},
		&cli.StringSliceFlag{
			Name:    "option",
			Aliases: []string{"o"},
			Usage: fmt.Sprintf(`Recipe or dependency option as name=value or package:name=value (repeatable).
	Recipe options: %s`, strings.Join(recipe.OptionNames(), ", ")),
			Sources: envVars("OPTIONS"),
		},
	}
}

// depsFlags locate the installed dependency packages.
func depsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "deps-root",
			Usage:   "Directory holding one <name>/{lib,include} tree per dependency",
			Sources: envVars("DEPS_ROOT"),
		},
		&cli.StringFlag{
			Name:    "deps-file",
			Usage:   "YAML or JSON file describing the dependency trees (takes precedence over --deps-root)",
			Sources: envVars("DEPS_FILE"),
		},
	}
}

// workspaceFlags configure the directories and tools the pipeline uses.
func workspaceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "workspace",
			Aliases: []string{"w"},
			Value:   "avs-build",
			Usage:   "Working directory for sources, build tree, package and state",
			Sources: envVars("WORKSPACE"),
		},
		&cli.StringFlag{
			Name:    "patches",
			Usage:   "Patch directory with optional {os}, {arch} and {os}/{arch} tiers",
			Sources: envVars("PATCHES"),
		},
		&cli.StringFlag{
			Name:    "source-url",
			Usage:   "Base URL of the release archives",
			Sources: envVars("SOURCE_URL"),
		},
		&cli.StringFlag{
			Name:    "source-sha256",
			Usage:   "Expected sha256 digest of the release archive",
			Sources: envVars("SOURCE_SHA256"),
		},
		&cli.StringFlag{
			Name:    "cache-dir",
			Usage:   "Download cache directory (default: XDG cache)",
			Sources: envVars("CACHE_DIR"),
		},
		&cli.IntFlag{
			Name:    "jobs",
			Aliases: []string{"j"},
			Usage:   "Build parallelism (0 lets the generator decide)",
			Sources: envVars("JOBS"),
		},
		&cli.StringFlag{
			Name:    "generator",
			Aliases: []string{"G"},
			Usage:   "CMake generator, e.g. Ninja",
			Sources: envVars("GENERATOR"),
		},
		&cli.StringFlag{
			Name:    "metrics-file",
			Usage:   "Write phase metrics in node-exporter textfile format to this path",
			Sources: envVars("METRICS_FILE"),
		},
		&cli.BoolFlag{
			Name:  "fresh",
			Usage: "Ignore the state saved in the workspace and start a new build",
		},
	}
}

// publishFlags configure OCI publication.
func publishFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "publish",
			Usage:   "Push the package to an OCI registry (oci://registry/repository[:tag], tag defaults to the SDK version)",
			Sources: envVars("PUBLISH"),
		},
		&cli.BoolFlag{
			Name:    "plain-http",
			Usage:   "Use HTTP instead of HTTPS for the registry",
			Sources: envVars("PLAIN_HTTP"),
		},
		&cli.BoolFlag{
			Name:    "insecure-tls",
			Usage:   "Skip TLS certificate verification for the registry",
			Sources: envVars("INSECURE_TLS"),
		},
	}
}

func flags(groups ...[]cli.Flag) []cli.Flag {
	var out []cli.Flag
	for _, g := range groups {
		out = append(out, g...)
	}
	return append(out, outputFlags()...)
}

// parseOutputFormat returns the validated --format value.
func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(cmd.String("format"))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q, supported values: %v", f, serializer.SupportedFormats())
	}
	return f, nil
}
