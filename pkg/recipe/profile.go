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

package recipe

import (
	"fmt"
	"slices"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/header"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/serializer"
)

// ProfileSettings holds the settings a profile may pin. Empty fields keep
// the defaults.
type ProfileSettings struct {
	OS              string `json:"os,omitempty" yaml:"os,omitempty"`
	Compiler        string `json:"compiler,omitempty" yaml:"compiler,omitempty"`
	CompilerVersion string `json:"compiler_version,omitempty" yaml:"compiler_version,omitempty"`
	Arch            string `json:"arch,omitempty" yaml:"arch,omitempty"`
	BuildType       string `json:"build_type,omitempty" yaml:"build_type,omitempty"`
}

// Profile is a reusable build configuration loaded from YAML or JSON.
//
//	kind: Profile
//	apiVersion: avsrecipe.nvidia.com/v1alpha1
//	version: 1.26.0
//	settings:
//	  os: Android
//	  arch: armv8
//	options:
//	  with_captions: "False"
//	  openssl:shared: "True"
type Profile struct {
	header.Header `json:",inline" yaml:",inline"`

	Version  string            `json:"version,omitempty" yaml:"version,omitempty"`
	User     string            `json:"user,omitempty" yaml:"user,omitempty"`
	Channel  string            `json:"channel,omitempty" yaml:"channel,omitempty"`
	Settings ProfileSettings   `json:"settings,omitempty" yaml:"settings,omitempty"`
	Options  map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// LoadProfile reads a profile from a YAML or JSON file.
func LoadProfile(path string) (*Profile, error) {
	p, err := serializer.FromFile[Profile](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", path, err)
	}
	if p.Kind != "" && p.Kind != header.KindProfile {
		return nil, fmt.Errorf("profile %s has kind %q, expected %q", path, p.Kind, header.KindProfile)
	}
	return p, nil
}

// ConfigOptions converts the profile into config options applied on top of
// base settings. Settings left empty in the profile keep the base values.
func (p *Profile) ConfigOptions(base Settings) ([]Option, error) {
	var opts []Option
	if p.Version != "" {
		opts = append(opts, WithVersion(p.Version))
	}
	if p.User != "" || p.Channel != "" {
		opts = append(opts, WithUserChannel(p.User, p.Channel))
	}

	s, err := p.Settings.Apply(base)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithSettings(s))

	assignments := make([]string, 0, len(p.Options))
	for k, v := range p.Options {
		assignments = append(assignments, k+"="+v)
	}
	slices.Sort(assignments)
	optionOpts, err := ParseAssignments(assignments)
	if err != nil {
		return nil, fmt.Errorf("invalid profile options: %w", err)
	}
	return append(opts, optionOpts...), nil
}

// Apply overlays the non-empty profile settings onto base. Changing the OS
// without naming a compiler switches to that OS's default compiler.
func (ps ProfileSettings) Apply(base Settings) (Settings, error) {
	s := base
	if ps.OS != "" {
		os, err := ParseOS(ps.OS)
		if err != nil {
			return s, err
		}
		if os != s.OS && ps.Compiler == "" {
			s.Compiler = DefaultCompiler(os)
			s.CompilerVersion = ""
		}
		s.OS = os
	}
	if ps.Arch != "" {
		a, err := ParseArch(ps.Arch)
		if err != nil {
			return s, err
		}
		s.Arch = a
	}
	if ps.BuildType != "" {
		b, err := ParseBuildType(ps.BuildType)
		if err != nil {
			return s, err
		}
		s.BuildType = b
	}
	if ps.Compiler != "" {
		s.Compiler = ps.Compiler
	}
	if ps.CompilerVersion != "" {
		s.CompilerVersion = ps.CompilerVersion
	}
	return s, nil
}
