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
	"testing"
)

func TestParseOS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    OS
		wantErr bool
	}{
		{"Linux", OSLinux, false},
		{"macos", OSMacos, false},
		{" ANDROID ", OSAndroid, false},
		{"neutrino", OSNeutrino, false},
		{"ios", OSiOS, false},
		{"solaris", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseOS(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOS(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseOS(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseArchAndBuildType(t *testing.T) {
	t.Parallel()

	if a, err := ParseArch("ARMV8"); err != nil || a != ArchArmv8 {
		t.Errorf("ParseArch(ARMV8) = %q, %v", a, err)
	}
	if _, err := ParseArch("mips"); err == nil {
		t.Error("ParseArch(mips) expected error")
	}
	if b, err := ParseBuildType("relwithdebinfo"); err != nil || b != BuildTypeRelWithDebInfo {
		t.Errorf("ParseBuildType(relwithdebinfo) = %q, %v", b, err)
	}
	if _, err := ParseBuildType("Fast"); err == nil {
		t.Error("ParseBuildType(Fast) expected error")
	}
}

func TestSettings_Validate(t *testing.T) {
	t.Parallel()

	valid := Settings{OS: OSLinux, Compiler: "gcc", Arch: ArchX86_64, BuildType: BuildTypeRelease}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"bad os", func(s *Settings) { s.OS = "Plan9" }},
		{"bad arch", func(s *Settings) { s.Arch = "sparc" }},
		{"bad build type", func(s *Settings) { s.BuildType = "Fast" }},
		{"no compiler", func(s *Settings) { s.Compiler = " " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid
			tt.mutate(&s)
			if err := s.Validate(); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestHostSettings(t *testing.T) {
	t.Parallel()

	s := HostSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("HostSettings() not valid: %v", err)
	}
	if s.BuildType != BuildTypeRelease {
		t.Errorf("BuildType = %q, want Release", s.BuildType)
	}
	if s.Compiler != DefaultCompiler(s.OS) {
		t.Errorf("Compiler = %q, want %q", s.Compiler, DefaultCompiler(s.OS))
	}
}

func TestSettings_String(t *testing.T) {
	t.Parallel()

	s := Settings{OS: OSNeutrino, Compiler: "qcc", Arch: ArchArmv7, BuildType: BuildTypeDebug}
	if got, want := s.String(), "Neutrino-armv7-qcc-Debug"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
