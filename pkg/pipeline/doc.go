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

// Package pipeline orchestrates the recipe phases for one SDK package.
//
// A build moves through a fixed sequence of stages:
//
//	New -> Declared -> Fetched -> Configured -> Patched -> Built -> Packaged -> Exported
//
// Each phase takes the current State, checks that it is at the stage the
// phase starts from, does its work and returns a new State at the next stage.
// The input State is never modified, so a failed phase leaves the caller with
// the last good state. Phases never re-enter an earlier stage and never retry;
// a phase called at the wrong stage fails with INVALID_REQUEST.
//
//	p := pipeline.New(
//	    pipeline.WithFetcher(source.NewFetcher()),
//	    pipeline.WithDependencies(tree),
//	)
//	st := pipeline.NewState(cfg, "/work", "/work/patches")
//	st, err := p.Run(ctx, st)
//
// Build accepts a Configured state and applies the patches itself. Publish
// runs after Export when a publish target is configured.
//
// When the state has a workspace, every successful phase persists the state
// to <workspace>/.avsrecipe/state.yaml so a later invocation can resume with
// LoadState. Phase durations and failures are recorded as Prometheus metrics
// that WriteMetrics dumps in the node-exporter textfile format.
package pipeline
