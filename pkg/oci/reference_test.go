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

package oci

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantReg  string
		wantRepo string
		wantTag  string
		wantErr  bool
	}{
		{
			name:     "with tag",
			input:    "oci://ghcr.io/acme/avs-device-sdk:1.26.0",
			wantReg:  "ghcr.io",
			wantRepo: "acme/avs-device-sdk",
			wantTag:  "1.26.0",
		},
		{
			name:     "without tag",
			input:    "oci://ghcr.io/acme/avs-device-sdk",
			wantReg:  "ghcr.io",
			wantRepo: "acme/avs-device-sdk",
		},
		{
			name:     "port and tag",
			input:    "oci://localhost:5000/test/sdk:v1",
			wantReg:  "localhost:5000",
			wantRepo: "test/sdk",
			wantTag:  "v1",
		},
		{
			name:     "nested repository",
			input:    "oci://ghcr.io/org/team/project/sdk:latest",
			wantReg:  "ghcr.io",
			wantRepo: "org/team/project/sdk",
			wantTag:  "latest",
		},
		{name: "missing scheme", input: "ghcr.io/acme/sdk:1", wantErr: true},
		{name: "local path", input: "./out", wantErr: true},
		{name: "empty reference", input: "oci://", wantErr: true},
		{name: "uppercase", input: "oci://ghcr.io/ACME/Sdk:v1", wantErr: true},
		{
			name:    "digest",
			input:   "oci://ghcr.io/acme/sdk@sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref, err := ParseReference(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantReg, ref.Registry)
			assert.Equal(t, tt.wantRepo, ref.Repository)
			assert.Equal(t, tt.wantTag, ref.Tag)
		})
	}
}

func TestReference_Strings(t *testing.T) {
	ref := &Reference{Registry: "ghcr.io", Repository: "acme/sdk"}
	assert.Equal(t, "oci://ghcr.io/acme/sdk", ref.String())
	assert.Equal(t, "ghcr.io/acme/sdk", ref.ImageReference())

	tagged := ref.WithTag("1.26.0")
	assert.Equal(t, "oci://ghcr.io/acme/sdk:1.26.0", tagged.String())
	assert.Equal(t, "ghcr.io/acme/sdk:1.26.0", tagged.ImageReference())
	assert.Empty(t, ref.Tag, "WithTag must not mutate the receiver")
}

func TestValidateRegistryReference(t *testing.T) {
	tests := []struct {
		name       string
		registry   string
		repository string
		wantErr    bool
	}{
		{"ghcr", "ghcr.io", "acme/sdk", false},
		{"localhost with port", "localhost:5000", "test/repo", false},
		{"https prefix", "https://ghcr.io", "acme/sdk", false},
		{"port and nested repo", "registry.example.com:5000", "org/team/project", false},
		{"spaces in registry", "invalid registry", "test/repo", true},
		{"uppercase repository", "ghcr.io", "ACME/Sdk", true},
		{"digest marker", "ghcr.io", "test/repo@latest", true},
		{"tag in repository", "ghcr.io", "test/repo:v1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidateRegistryReference(tt.registry, tt.repository)
			assert.Equal(t, tt.wantErr, err != nil, "err = %v", err)
		})
	}
}

func TestPublish_Validation(t *testing.T) {
	_, err := Publish(context.Background(), OutputConfig{SourceDir: t.TempDir(), OutputDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidRequest))

	_, err = Publish(context.Background(), OutputConfig{
		SourceDir: t.TempDir(),
		OutputDir: t.TempDir(),
		Reference: &Reference{Registry: "ghcr.io", Repository: "acme/sdk"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag is required")
}

func TestDefaultAnnotations(t *testing.T) {
	a := DefaultAnnotations("AlexaClientSDK", "1.26.0")
	assert.Equal(t, "AlexaClientSDK", a["org.opencontainers.image.title"])
	assert.Equal(t, "1.26.0", a["org.opencontainers.image.version"])
	assert.Equal(t, "https://github.com/alexa/avs-device-sdk", a["org.opencontainers.image.source"])
}
