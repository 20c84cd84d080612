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
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/cmake"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/pipeline"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
)

type requirementsOutput struct {
	Package  string                  `json:"package" yaml:"package"`
	Requires []string                `json:"requires" yaml:"requires"`
	Details  []recipe.DependencySpec `json:"details" yaml:"details"`
}

func requirementsCmd() *cli.Command {
	return &cli.Command{
		Name:  "requirements",
		Usage: "List the packages the SDK build requires",
		Description: `Prints the pinned sqlite3 and opus packages, libcurl from the active
user/channel and, when captions are enabled, webvtt.`,
		Flags: flags(configFlags()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			reqs := cfg.Requirements()
			out := requirementsOutput{Package: cfg.Reference(), Details: reqs}
			for _, r := range reqs {
				out.Requires = append(out.Requires, r.Reference())
			}
			return writeOutput(ctx, cmd, out)
		},
	}
}

type optionsOutput struct {
	Package           string                   `json:"package" yaml:"package"`
	Settings          recipe.Settings          `json:"settings" yaml:"settings"`
	Options           recipe.Options           `json:"options" yaml:"options"`
	DependencyOptions recipe.DependencyOptions `json:"dependencyOptions" yaml:"dependencyOptions"`
	Overrides         []recipe.OptionOverride  `json:"overrides,omitempty" yaml:"overrides,omitempty"`
}

func optionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "options",
		Usage: "Show the resolved settings and options, including platform overrides",
		Flags: flags(configFlags()),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			resolved, overrides := cfg.Resolve()
			return writeOutput(ctx, cmd, optionsOutput{
				Package:           resolved.Reference(),
				Settings:          resolved.Settings(),
				Options:           resolved.Options(),
				DependencyOptions: resolved.DependencyOptions(),
				Overrides:         overrides,
			})
		},
	}
}

func definitionsCmd() *cli.Command {
	return &cli.Command{
		Name:  "definitions",
		Usage: "Show the CMake definitions the configure step passes",
		Flags: flags(configFlags(), depsFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Value:   "avs-build",
				Usage:   "Working directory; the install prefix is <workspace>/package",
				Sources: envVars("WORKSPACE"),
			},
			&cli.BoolFlag{
				Name:  "args",
				Usage: "Print -D arguments, one per line, instead of a document",
			},
		}),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			tree, err := loadDependencies(cmd, cfg)
			if err != nil {
				return err
			}
			if tree == nil {
				return errors.New(errors.ErrCodeInvalidRequest, "--deps-file or --deps-root is required")
			}
			resolved, _ := cfg.Resolve()
			prefix, err := filepath.Abs(pipeline.NewPaths(cmd.String("workspace"), "").Package)
			if err != nil {
				return err
			}
			defs, err := cmake.BuildDefinitions(resolved, tree, prefix)
			if err != nil {
				return err
			}
			if cmd.Bool("args") {
				for _, a := range defs.Args() {
					if _, err := fmt.Fprintln(cmd.Root().Writer, a); err != nil {
						return err
					}
				}
				return nil
			}
			return writeOutput(ctx, cmd, defs)
		},
	}
}

// stageCmd builds a command that advances the saved build to target and
// writes the part of the state selected by result.
func stageCmd(name, usage, description string, target pipeline.Stage, publish bool, result func(*pipeline.State) any) *cli.Command {
	groups := [][]cli.Flag{configFlags(), depsFlags(), workspaceFlags()}
	if publish {
		groups = append(groups, publishFlags())
	}
	return &cli.Command{
		Name:        name,
		Usage:       usage,
		Description: description,
		Flags:       flags(groups...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			p, err := newPipeline(cmd, cfg, publish)
			if err != nil {
				return err
			}
			st, err := loadOrNewState(cmd, cfg)
			if err != nil {
				return err
			}

			defer writeMetrics(cmd)
			st, err = p.RunUntil(ctx, st, target)
			if err != nil {
				return err
			}
			return writeOutput(ctx, cmd, result(st))
		},
	}
}

func sourceCmd() *cli.Command {
	return stageCmd("source", "Download and unpack the SDK sources",
		`Downloads {source-url}/v{version}.tar.gz into the download cache, verifies
--source-sha256 when given and unpacks it as <workspace>/source_subfolder.`,
		pipeline.StageFetched, false,
		func(st *pipeline.State) any { return st.Source })
}

type buildOutput struct {
	BuildID        string            `json:"buildID" yaml:"buildID"`
	Stage          pipeline.Stage    `json:"stage" yaml:"stage"`
	AppliedPatches []string          `json:"appliedPatches" yaml:"appliedPatches"`
	Definitions    cmake.Definitions `json:"definitions" yaml:"definitions"`
}

func buildCmd() *cli.Command {
	return stageCmd("build", "Patch, configure and compile the SDK",
		`Runs the earlier phases as needed, applies the patch tiers in order
(common, {os}, {arch}, {os}/{arch}), configures with CMake and compiles.`,
		pipeline.StageBuilt, false,
		func(st *pipeline.State) any {
			return buildOutput{
				BuildID:        st.BuildID,
				Stage:          st.Stage,
				AppliedPatches: st.AppliedPatches,
				Definitions:    st.Definitions,
			}
		})
}

func packageCmd() *cli.Command {
	return stageCmd("package", "Install the build into the package folder",
		`Reconfigures the build tree, runs the install target (install/strip for
Release builds) into <workspace>/package and copies the test headers.`,
		pipeline.StagePackaged, false,
		func(st *pipeline.State) any { return st.Layout })
}

func infoCmd() *cli.Command {
	return stageCmd("info", "Export and show the package metadata",
		`Writes package-info.yaml, the pkg-config file, the CMake find module and
checksums.txt into the package folder.`,
		pipeline.StageExported, false,
		func(st *pipeline.State) any { return st.Info })
}

func createCmd() *cli.Command {
	return stageCmd("create", "Run every phase and optionally publish the package",
		`Runs requirements, source, configure, build, package and package info in
order. With --publish the package folder is pushed as an OCI artifact.`,
		pipeline.StageExported, true,
		func(st *pipeline.State) any { return st })
}

type versionOutput struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show the tool version",
		Flags: outputFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return writeOutput(ctx, cmd, versionOutput{Name: name, Version: version, Commit: commit, Date: date})
		},
	}
}
