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
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/logging"
)

const (
	name           = "avsrecipe"
	versionDefault = "dev"
	envPrefix      = "AVSRECIPE_"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitCanceled = 2
)

func envVars(key string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + key)
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: "Fetch, patch, build and package the AVS Device SDK",
		Description: fmt.Sprintf(`avsrecipe builds the AVS Device SDK (%s) the way its package recipe does:
the sources are fetched for a pinned version, patched per platform, configured
with CMake from the recipe options and installed into a package folder with
pkg-config and CMake metadata.

Version: %s
Commit:  %s
Built:   %s`, "AlexaClientSDK", version, commit, date),
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars(logging.EnvLogLevel, envPrefix+"LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "profile",
				Usage:   "YAML or JSON build profile; flags override its values",
				Sources: envVars("PROFILE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetDefaultStructuredLoggerWithLevel(name, version, cmd.String("log-level"))
			slog.Debug("starting",
				"name", name,
				"version", version,
				"commit", commit,
				"date", date)
			return ctx, nil
		},
		Commands: []*cli.Command{
			requirementsCmd(),
			optionsCmd(),
			definitionsCmd(),
			sourceCmd(),
			buildCmd(),
			packageCmd(),
			infoCmd(),
			createCmd(),
			versionCmd(),
		},
	}
}

// Execute runs the command line and exits the process with its status.
func Execute() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	code := run(ctx, os.Args, os.Stderr)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	err := newRootCmd().Run(ctx, args)
	if err == nil {
		return exitOK
	}
	fmt.Fprintln(stderr, err)
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return exitCanceled
	}
	return exitError
}
