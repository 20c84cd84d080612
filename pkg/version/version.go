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

package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error types for version parsing failures
var (
	ErrEmptyVersion      = errors.New("version string is empty")
	ErrTooManyComponents = errors.New("version has more than 3 components")
	ErrNonNumeric        = errors.New("version component is not numeric")
	ErrNegativeComponent = errors.New("version component cannot be negative")
	ErrNotRelease        = errors.New("release version must be MAJOR.MINOR.PATCH")
)

// Version represents a semantic version number with Major, Minor, and Patch components.
// It supports flexible precision (1, 2, or 3 components) and preserves additional
// version metadata such as pre-release suffixes (e.g., "-rc1").
type Version struct {
	Major int `json:"major,omitempty" yaml:"major,omitempty"`
	Minor int `json:"minor,omitempty" yaml:"minor,omitempty"`
	Patch int `json:"patch,omitempty" yaml:"patch,omitempty"`

	// Precision indicates how many components are significant (1, 2, or 3)
	Precision int `json:"precision,omitempty" yaml:"precision,omitempty"`

	// Extras stores additional version metadata like "-rc1" or "+build.5"
	Extras string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// NewVersion creates a new Version with all three components significant.
func NewVersion(major, minor, patch int) Version {
	return Version{
		Major:     major,
		Minor:     minor,
		Patch:     patch,
		Precision: 3,
	}
}

// String returns the string representation of the Version respecting its precision.
// Extras are not included.
func (v Version) String() string {
	switch v.Precision {
	case 1:
		return fmt.Sprintf("%d", v.Major)
	case 2:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
}

// Tag returns the upstream release tag for the version, e.g. "v1.26.0".
func (v Version) Tag() string {
	return "v" + v.String() + v.Extras
}

// ParseVersion parses a version string into a Version struct.
// Supported formats: "1", "1.2", "1.2.3", "v1.2.3", "1.2.3-suffix", "1.2.3+metadata".
// The "v" prefix is optional and stripped if present.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, ErrEmptyVersion
	}

	s = strings.TrimPrefix(s, "v")
	var v Version

	// Extras start at the first '-' or '+' that follows a digit, so "-1"
	// is still reported as a negative component.
	mainPart := s
	for i, ch := range s {
		if (ch == '-' || ch == '+') && i > 0 {
			prevCh := s[i-1]
			if prevCh >= '0' && prevCh <= '9' {
				mainPart = s[:i]
				v.Extras = s[i:]
				break
			}
		}
	}

	parts := strings.Split(mainPart, ".")
	if len(parts) > 3 {
		return Version{}, ErrTooManyComponents
	}

	for i, part := range parts {
		if part == "" {
			return Version{}, fmt.Errorf("%w: empty component", ErrNonNumeric)
		}
		num, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrNonNumeric, part)
		}
		if num < 0 {
			return Version{}, fmt.Errorf("%w: %d", ErrNegativeComponent, num)
		}

		switch i {
		case 0:
			v.Major = num
		case 1:
			v.Minor = num
		case 2:
			v.Patch = num
		}
	}

	v.Precision = len(parts)
	return v, nil
}

// ParseRelease parses an upstream release version. All three components are
// required; a pre-release suffix is allowed.
func ParseRelease(s string) (Version, error) {
	v, err := ParseVersion(s)
	if err != nil {
		return Version{}, err
	}
	if v.Precision != 3 {
		return Version{}, fmt.Errorf("%w: %q", ErrNotRelease, s)
	}
	return v, nil
}

// MustParseVersion parses a version string and panics if parsing fails.
// Only use this for hardcoded strings or in tests.
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(fmt.Sprintf("MustParseVersion: %v", err))
	}
	return v
}

// EqualsOrNewer returns true if v is equal to or newer than other.
// Comparison is performed up to the precision of v.
func (v Version) EqualsOrNewer(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	if v.Precision == 1 {
		return true
	}
	if v.Minor != other.Minor {
		return v.Minor > other.Minor
	}
	if v.Precision == 2 {
		return true
	}
	return v.Patch >= other.Patch
}

// IsValid returns true if the version has valid values.
func (v Version) IsValid() bool {
	if v.Major < 0 || v.Minor < 0 || v.Patch < 0 {
		return false
	}
	return v.Precision >= 1 && v.Precision <= 3
}
