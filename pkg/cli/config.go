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
	"log/slog"
	"maps"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/deps"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/oci"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/pipeline"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/serializer"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/source"
)

// buildConfig assembles the package configuration from the host defaults,
// the --profile file and the configuration flags, in that order.
func buildConfig(cmd *cli.Command) (*recipe.Config, error) {
	cfg := recipe.NewConfig()

	if path := cmd.String("profile"); path != "" {
		profile, err := recipe.LoadProfile(path)
		if err != nil {
			return nil, err
		}
		opts, err := profile.ConfigOptions(cfg.Settings())
		if err != nil {
			return nil, fmt.Errorf("invalid profile %s: %w", path, err)
		}
		cfg = cfg.With(opts...)
		slog.Debug("profile loaded", "path", path, "reference", cfg.Reference())
	}

	var opts []recipe.Option
	if v := cmd.String("version"); v != "" {
		opts = append(opts, recipe.WithVersion(v))
	}
	if cmd.IsSet("user") || cmd.IsSet("channel") {
		user, channel := cfg.User(), cfg.Channel()
		if cmd.IsSet("user") {
			user = cmd.String("user")
		}
		if cmd.IsSet("channel") {
			channel = cmd.String("channel")
		}
		opts = append(opts, recipe.WithUserChannel(user, channel))
	}

	settings, err := recipe.ProfileSettings{
		OS:              cmd.String("os"),
		Compiler:        cmd.String("compiler"),
		CompilerVersion: cmd.String("compiler-version"),
		Arch:            cmd.String("arch"),
		BuildType:       cmd.String("build-type"),
	}.Apply(cfg.Settings())
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	opts = append(opts, recipe.WithSettings(settings))

	assigned, err := recipe.ParseAssignments(cmd.StringSlice("option"))
	if err != nil {
		return nil, fmt.Errorf("invalid --option: %w", err)
	}
	opts = append(opts, assigned...)

	cfg = cfg.With(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDependencies resolves the dependency tree from --deps-file or
// --deps-root. It returns nil when neither is given.
func loadDependencies(cmd *cli.Command, cfg *recipe.Config) (*deps.Tree, error) {
	if path := cmd.String("deps-file"); path != "" {
		return deps.Load(path)
	}
	root := cmd.String("deps-root")
	if root == "" {
		return nil, nil
	}
	names := []string{recipe.OpenSSLName}
	for _, req := range cfg.Requirements() {
		names = append(names, req.Name)
	}
	return deps.Discover(root, names)
}

func newFetcher(cmd *cli.Command) (*source.Fetcher, error) {
	var opts []source.Option
	if u := cmd.String("source-url"); u != "" {
		opts = append(opts, source.WithBaseURL(u))
	}
	if dir := cmd.String("cache-dir"); dir != "" {
		opts = append(opts, source.WithCacheDir(dir))
	}
	if s := cmd.String("source-sha256"); s != "" {
		d, err := source.ParseDigest(s)
		if err != nil {
			return nil, fmt.Errorf("invalid --source-sha256: %w", err)
		}
		opts = append(opts, source.WithDigest(d))
	}
	return source.NewFetcher(opts...), nil
}

// newPipeline wires the pipeline collaborators from the command flags.
func newPipeline(cmd *cli.Command, cfg *recipe.Config, publish bool) (*pipeline.Pipeline, error) {
	fetcher, err := newFetcher(cmd)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithFetcher(fetcher),
		pipeline.WithGenerator(cmd.String("generator")),
		pipeline.WithJobs(cmd.Int("jobs")),
		pipeline.WithToolVersion(version),
	}

	tree, err := loadDependencies(cmd, cfg)
	if err != nil {
		return nil, err
	}
	if tree != nil {
		opts = append(opts, pipeline.WithDependencies(tree))
	}

	if target := cmd.String("publish"); publish && target != "" {
		ref, err := oci.ParseReference(target)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithPublishTarget(ref, cmd.Bool("plain-http"), cmd.Bool("insecure-tls")))
	}

	return pipeline.New(opts...), nil
}

// loadOrNewState resumes the build saved in the workspace when it is for the
// same package, settings and options as cfg. Otherwise it starts a new build.
func loadOrNewState(cmd *cli.Command, cfg *recipe.Config) (*pipeline.State, error) {
	workspace := cmd.String("workspace")
	fresh := pipeline.NewState(cfg, workspace, cmd.String("patches"))

	if cmd.Bool("fresh") {
		return fresh, nil
	}
	if _, err := os.Stat(pipeline.StateFile(workspace)); err != nil {
		return fresh, nil
	}

	st, err := pipeline.LoadState(workspace)
	if err != nil {
		return nil, err
	}
	if !sameBuild(st.RecipeConfig(), cfg) {
		slog.Info("saved state is for a different configuration, starting a new build",
			"saved", st.RecipeConfig().Reference(),
			"requested", cfg.Reference())
		return fresh, nil
	}
	slog.Info("resuming build", "buildID", st.BuildID, "stage", st.Stage)
	return st, nil
}

// sameBuild compares two configs after platform resolution, since the saved
// config is resolved once the build reaches Configured.
func sameBuild(a, b *recipe.Config) bool {
	ar, _ := a.Resolve()
	br, _ := b.Resolve()
	return ar.Reference() == br.Reference() &&
		ar.Settings().String() == br.Settings().String() &&
		ar.Options() == br.Options() &&
		maps.Equal(ar.DependencyOptions(), br.DependencyOptions())
}

// writeMetrics dumps the pipeline metrics when --metrics-file is set.
func writeMetrics(cmd *cli.Command) {
	path := cmd.String("metrics-file")
	if path == "" {
		return
	}
	if err := pipeline.WriteMetrics(path); err != nil {
		slog.Warn("failed to write metrics", "path", path, "error", err)
	}
}

// writeOutput serializes v to --output in --format.
func writeOutput(ctx context.Context, cmd *cli.Command, v any) error {
	format, err := parseOutputFormat(cmd)
	if err != nil {
		return err
	}
	w := serializer.NewFileWriterOrStdout(format, cmd.String("output"))
	defer func() {
		if err := w.Close(); err != nil {
			slog.Warn("failed to close output", "error", err)
		}
	}()
	return w.Serialize(ctx, v)
}
