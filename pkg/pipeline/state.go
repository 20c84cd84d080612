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
	"fmt"
	"maps"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/cmake"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/header"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/oci"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/packager"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/serializer"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/source"
)

// Stage is a point in the build sequence.
type Stage string

const (
	StageNew        Stage = "New"
	StageDeclared   Stage = "Declared"
	StageFetched    Stage = "Fetched"
	StageConfigured Stage = "Configured"
	StagePatched    Stage = "Patched"
	StageBuilt      Stage = "Built"
	StagePackaged   Stage = "Packaged"
	StageExported   Stage = "Exported"
)

var stageOrder = []Stage{
	StageNew, StageDeclared, StageFetched, StageConfigured,
	StagePatched, StageBuilt, StagePackaged, StageExported,
}

// Index returns the position of s in the build sequence, or -1.
func (s Stage) Index() int {
	return slices.Index(stageOrder, s)
}

// Reached reports whether s is at or past other.
func (s Stage) Reached(other Stage) bool {
	i := s.Index()
	return i >= 0 && i >= other.Index()
}

func (s Stage) String() string {
	return string(s)
}

const (
	// StateDirName holds tool state inside the workspace.
	StateDirName = ".avsrecipe"
	// StateFileName is the persisted state document.
	StateFileName = "state.yaml"
)

// Paths are the directories a build works in.
type Paths struct {
	Workspace string `json:"workspace" yaml:"workspace"`
	Source    string `json:"source" yaml:"source"`
	Build     string `json:"build" yaml:"build"`
	Package   string `json:"package" yaml:"package"`
	Patches   string `json:"patches,omitempty" yaml:"patches,omitempty"`
}

// NewPaths lays out the source, build and package directories below workspace.
func NewPaths(workspace, patches string) Paths {
	return Paths{
		Workspace: workspace,
		Source:    filepath.Join(workspace, source.SourceSubfolder),
		Build:     filepath.Join(workspace, "build"),
		Package:   filepath.Join(workspace, "package"),
		Patches:   patches,
	}
}

// StateFile returns the persisted state path for workspace.
func StateFile(workspace string) string {
	return filepath.Join(workspace, StateDirName, StateFileName)
}

// State is the value threaded through the phases.
type State struct {
	header.Header `json:",inline" yaml:",inline"`

	Stage          Stage                   `json:"stage" yaml:"stage"`
	BuildID        string                  `json:"buildID" yaml:"buildID"`
	Config         recipe.ConfigSpec       `json:"config" yaml:"config"`
	Paths          Paths                   `json:"paths" yaml:"paths"`
	Requirements   []recipe.DependencySpec `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Overrides      []recipe.OptionOverride `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Source         *source.Result          `json:"source,omitempty" yaml:"source,omitempty"`
	Definitions    cmake.Definitions       `json:"definitions,omitempty" yaml:"definitions,omitempty"`
	AppliedPatches []string                `json:"appliedPatches,omitempty" yaml:"appliedPatches,omitempty"`
	Layout         *packager.Layout        `json:"layout,omitempty" yaml:"layout,omitempty"`
	Info           *packager.Info          `json:"info,omitempty" yaml:"info,omitempty"`
	Published      *oci.PublishResult      `json:"published,omitempty" yaml:"published,omitempty"`
}

// NewState returns a State at StageNew for cfg with a fresh build ID.
func NewState(cfg *recipe.Config, workspace, patches string) *State {
	st := &State{
		Stage:   StageNew,
		BuildID: uuid.NewString(),
		Config:  cfg.Spec(),
		Paths:   NewPaths(workspace, patches),
	}
	st.Init(header.KindBuildState, "")
	return st
}

// RecipeConfig rebuilds the recipe configuration carried by the state.
func (s *State) RecipeConfig() *recipe.Config {
	return recipe.FromSpec(s.Config)
}

// clone returns a copy of s whose fields can be replaced without touching s.
func (s *State) clone() *State {
	next := *s
	next.Metadata = maps.Clone(s.Metadata)
	return &next
}

// SaveState writes st to its workspace state file.
func SaveState(st *State) error {
	if st.Paths.Workspace == "" {
		return errors.New(errors.ErrCodeInvalidRequest, "state has no workspace")
	}
	path := StateFile(st.Paths.Workspace)
	if err := serializer.WriteFile(path, serializer.FormatYAML, st); err != nil {
		return errors.WrapWithContext(errors.ErrCodeInternal, "failed to save build state", err,
			map[string]any{"path": path})
	}
	return nil
}

// LoadState reads the state persisted in workspace.
func LoadState(workspace string) (*State, error) {
	path := StateFile(workspace)
	st, err := serializer.FromFile[State](path)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeNotFound, "failed to load build state", err,
			map[string]any{"path": path})
	}
	if st.Kind != header.KindBuildState {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("%s is a %q document, not %q", path, st.Kind, header.KindBuildState),
			map[string]any{"path": path})
	}
	if st.Stage.Index() < 0 {
		return nil, errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("unknown stage %q", st.Stage), map[string]any{"path": path})
	}
	return st, nil
}
