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
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// OS is the target operating system setting.
type OS string

// Supported target operating systems.
const (
	OSLinux    OS = "Linux"
	OSAndroid  OS = "Android"
	OSMacos    OS = "Macos"
	OSNeutrino OS = "Neutrino"
	OSWindows  OS = "Windows"
	OSiOS      OS = "iOS"
)

var supportedOSes = []OS{OSAndroid, OSLinux, OSMacos, OSNeutrino, OSWindows, OSiOS}

// ParseOS parses an operating system name case-insensitively into its canonical form.
func ParseOS(s string) (OS, error) {
	for _, os := range supportedOSes {
		if strings.EqualFold(strings.TrimSpace(s), string(os)) {
			return os, nil
		}
	}
	return "", fmt.Errorf("invalid os: %q, supported values: %v", s, SupportedOSes())
}

// SupportedOSes returns all supported operating systems sorted alphabetically.
func SupportedOSes() []string {
	out := make([]string, 0, len(supportedOSes))
	for _, os := range supportedOSes {
		out = append(out, string(os))
	}
	return out
}

// Arch is the target architecture setting.
type Arch string

// Supported target architectures.
const (
	ArchX86_64  Arch = "x86_64"
	ArchX86     Arch = "x86"
	ArchArmv7   Arch = "armv7"
	ArchArmv7hf Arch = "armv7hf"
	ArchArmv8   Arch = "armv8"
)

var supportedArchs = []Arch{ArchArmv7, ArchArmv7hf, ArchArmv8, ArchX86, ArchX86_64}

// ParseArch parses an architecture name into its canonical form.
func ParseArch(s string) (Arch, error) {
	for _, a := range supportedArchs {
		if strings.EqualFold(strings.TrimSpace(s), string(a)) {
			return a, nil
		}
	}
	return "", fmt.Errorf("invalid arch: %q, supported values: %v", s, SupportedArchs())
}

// SupportedArchs returns all supported architectures sorted alphabetically.
func SupportedArchs() []string {
	out := make([]string, 0, len(supportedArchs))
	for _, a := range supportedArchs {
		out = append(out, string(a))
	}
	return out
}

// BuildType is the CMake build type setting.
type BuildType string

// Supported build types.
const (
	BuildTypeRelease        BuildType = "Release"
	BuildTypeDebug          BuildType = "Debug"
	BuildTypeRelWithDebInfo BuildType = "RelWithDebInfo"
	BuildTypeMinSizeRel     BuildType = "MinSizeRel"
)

var supportedBuildTypes = []BuildType{BuildTypeDebug, BuildTypeMinSizeRel, BuildTypeRelWithDebInfo, BuildTypeRelease}

// ParseBuildType parses a build type name into its canonical form.
func ParseBuildType(s string) (BuildType, error) {
	for _, b := range supportedBuildTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(b)) {
			return b, nil
		}
	}
	return "", fmt.Errorf("invalid build type: %q, supported values: %v", s, SupportedBuildTypes())
}

// SupportedBuildTypes returns all supported build types sorted alphabetically.
func SupportedBuildTypes() []string {
	out := make([]string, 0, len(supportedBuildTypes))
	for _, b := range supportedBuildTypes {
		out = append(out, string(b))
	}
	return out
}

// Settings is the (os, compiler, arch, build_type) tuple a package is built for.
type Settings struct {
	OS              OS        `json:"os" yaml:"os"`
	Compiler        string    `json:"compiler" yaml:"compiler"`
	CompilerVersion string    `json:"compiler_version,omitempty" yaml:"compiler_version,omitempty"`
	CppStd          string    `json:"cppstd,omitempty" yaml:"cppstd,omitempty"`
	Arch            Arch      `json:"arch" yaml:"arch"`
	BuildType       BuildType `json:"build_type" yaml:"build_type"`
}

// Validate checks that every setting holds a supported value.
func (s Settings) Validate() error {
	var errs []error
	if _, err := ParseOS(string(s.OS)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseArch(string(s.Arch)); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseBuildType(string(s.BuildType)); err != nil {
		errs = append(errs, err)
	}
	if strings.TrimSpace(s.Compiler) == "" {
		errs = append(errs, errors.New("compiler is required"))
	}
	return errors.Join(errs...)
}

// String renders the settings as a compact platform label, e.g. "Linux-x86_64-gcc-Release".
func (s Settings) String() string {
	return fmt.Sprintf("%s-%s-%s-%s", s.OS, s.Arch, s.Compiler, s.BuildType)
}

// HostSettings returns Release settings for the machine the tool runs on,
// falling back to Linux/x86_64 for hosts without a mapping.
func HostSettings() Settings {
	s := Settings{
		OS:        OSLinux,
		Arch:      ArchX86_64,
		BuildType: BuildTypeRelease,
	}

	switch runtime.GOOS {
	case "darwin":
		s.OS = OSMacos
	case "windows":
		s.OS = OSWindows
	case "android":
		s.OS = OSAndroid
	}

	switch runtime.GOARCH {
	case "arm64":
		s.Arch = ArchArmv8
	case "arm":
		s.Arch = ArchArmv7
	case "386":
		s.Arch = ArchX86
	}

	s.Compiler = DefaultCompiler(s.OS)
	return s
}

// DefaultCompiler returns the toolchain conventionally used for an OS.
func DefaultCompiler(os OS) string {
	switch os {
	case OSMacos, OSiOS:
		return "apple-clang"
	case OSAndroid:
		return "clang"
	case OSNeutrino:
		return "qcc"
	case OSWindows:
		return "msvc"
	default:
		return "gcc"
	}
}
