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
	"slices"
)

// CppStd is the C++ standard the SDK is compiled with.
const CppStd = "11"

// OptionOverride forces a dependency option for a platform.
type OptionOverride struct {
	Package string `json:"package" yaml:"package"`
	Option  string `json:"option" yaml:"option"`
	Value   string `json:"value" yaml:"value"`
}

// Platform selects settings by OS and Arch. Empty fields match anything.
type Platform struct {
	OS   OS
	Arch Arch
}

// Matches reports whether s falls under the platform.
func (p Platform) Matches(s Settings) bool {
	return (p.OS == "" || p.OS == s.OS) && (p.Arch == "" || p.Arch == s.Arch)
}

// Specificity counts the non-wildcard fields.
func (p Platform) Specificity() int {
	n := 0
	if p.OS != "" {
		n++
	}
	if p.Arch != "" {
		n++
	}
	return n
}

type platformOverride struct {
	platform  Platform
	overrides []OptionOverride
}

var platformOverrides = []platformOverride{
	{
		platform:  Platform{},
		overrides: []OptionOverride{{Package: "sqlite3", Option: "shared", Value: FormatBool(true)}},
	},
	{
		// Shared sqlite3 collides with the CoreData framework's sqlite symbols.
		platform:  Platform{OS: OSMacos},
		overrides: []OptionOverride{{Package: "sqlite3", Option: "shared", Value: FormatBool(false)}},
	},
	{
		// Android does not support versioned shared libraries.
		platform:  Platform{OS: OSAndroid},
		overrides: []OptionOverride{{Package: OpenSSLName, Option: "shared", Value: FormatBool(false)}},
	},
}

// PlatformOverrides returns the overrides matching s, ordered from least
// to most specific platform. Later entries win when applied in order.
func PlatformOverrides(s Settings) []OptionOverride {
	matched := make([]platformOverride, 0, len(platformOverrides))
	for _, po := range platformOverrides {
		if po.platform.Matches(s) {
			matched = append(matched, po)
		}
	}
	slices.SortStableFunc(matched, func(a, b platformOverride) int {
		return a.platform.Specificity() - b.platform.Specificity()
	})

	var out []OptionOverride
	for _, po := range matched {
		out = append(out, po.overrides...)
	}
	return out
}

// ResolvePlatformOptions applies the platform overrides for s to deps and
// returns the resulting options together with the overrides applied.
// deps is not modified.
func ResolvePlatformOptions(s Settings, deps DependencyOptions) (DependencyOptions, []OptionOverride) {
	out := deps.Clone()
	overrides := PlatformOverrides(s)
	for _, o := range overrides {
		out[dependencyKey(o.Package, o.Option)] = o.Value
	}
	return out, overrides
}
