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
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr error
	}{
		{in: "1.26.0", want: Version{Major: 1, Minor: 26, Patch: 0, Precision: 3}},
		{in: "v1.26.0", want: Version{Major: 1, Minor: 26, Patch: 0, Precision: 3}},
		{in: "1.26", want: Version{Major: 1, Minor: 26, Precision: 2}},
		{in: "1", want: Version{Major: 1, Precision: 1}},
		{in: "1.26.0-rc1", want: Version{Major: 1, Minor: 26, Precision: 3, Extras: "-rc1"}},
		{in: "", wantErr: ErrEmptyVersion},
		{in: "1.2.3.4", wantErr: ErrTooManyComponents},
		{in: "1.x.0", wantErr: ErrNonNumeric},
		{in: "1..0", wantErr: ErrNonNumeric},
		{in: "-1.0.0", wantErr: ErrNegativeComponent},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseVersion(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseVersion(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseVersion(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseRelease(t *testing.T) {
	if _, err := ParseRelease("1.26"); !errors.Is(err, ErrNotRelease) {
		t.Errorf("expected ErrNotRelease, got %v", err)
	}
	v, err := ParseRelease("1.26.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Tag() != "v1.26.0" {
		t.Errorf("Tag() = %q", v.Tag())
	}
}

func TestEqualsOrNewer(t *testing.T) {
	tests := []struct {
		v, other string
		want     bool
	}{
		{"1.26.0", "1.26.0", true},
		{"1.26.1", "1.26.0", true},
		{"1.25.9", "1.26.0", false},
		{"2.0.0", "1.99.99", true},
		{"1.26", "1.26.7", true},
		{"1", "1.99.0", true},
	}

	for _, tt := range tests {
		t.Run(tt.v+">="+tt.other, func(t *testing.T) {
			got := MustParseVersion(tt.v).EqualsOrNewer(MustParseVersion(tt.other))
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	if !NewVersion(1, 26, 0).IsValid() {
		t.Error("expected valid")
	}
	if (Version{Major: 1}).IsValid() {
		t.Error("zero precision should be invalid")
	}
}
