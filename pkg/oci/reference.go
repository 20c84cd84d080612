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
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"strings"

	"github.com/distribution/reference"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/defaults"
	apperrors "github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
)

// URIScheme prefixes publish targets (e.g., "oci://ghcr.io/org/avs-device-sdk:1.26.0").
const URIScheme = "oci://"

// Annotation keys attached to published packages besides the OCI pre-defined ones.
const (
	AnnotationPackageReference = "com.nvidia.avsrecipe.reference"
	AnnotationPackageSettings  = "com.nvidia.avsrecipe.settings"
)

// Reference is a parsed publish target.
type Reference struct {
	// Registry is the registry host (e.g., "ghcr.io", "localhost:5000").
	Registry string
	// Repository is the repository path (e.g., "nvidia/avs-device-sdk").
	Repository string
	// Tag is empty when the target carried none; callers apply a default.
	Tag string
}

// ParseReference parses an oci://registry/repository[:tag] publish target.
func ParseReference(target string) (*Reference, error) {
	if !strings.HasPrefix(target, URIScheme) {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			fmt.Sprintf("publish target must start with %s", URIScheme),
			map[string]any{"target": target})
	}

	ref, err := reference.ParseNormalizedNamed(strings.TrimPrefix(target, URIScheme))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "invalid OCI reference", err)
	}
	if _, ok := ref.(reference.Digested); ok {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			"digest references cannot be published to", map[string]any{"target": target})
	}

	registry := reference.Domain(ref)
	repository := reference.Path(ref)

	var tag string
	if tagged, ok := ref.(reference.Tagged); ok {
		tag = tagged.Tag()
	}

	if err := ValidateRegistryReference(registry, repository); err != nil {
		return nil, err
	}

	return &Reference{
		Registry:   registry,
		Repository: repository,
		Tag:        tag,
	}, nil
}

// ValidateRegistryReference checks that registry/repository forms a valid,
// untagged repository name. A leading http:// or https:// on the registry is ignored.
func ValidateRegistryReference(registry, repository string) error {
	name := fmt.Sprintf("%s/%s", stripProtocol(registry), repository)
	named, err := reference.ParseNormalizedNamed(name)
	if err != nil {
		return apperrors.WrapWithContext(apperrors.ErrCodeInvalidRequest, "invalid registry reference", err,
			map[string]any{"registry": registry, "repository": repository})
	}
	if !reference.IsNameOnly(named) {
		return apperrors.NewWithContext(apperrors.ErrCodeInvalidRequest,
			"repository must not carry a tag or digest",
			map[string]any{"registry": registry, "repository": repository})
	}
	return nil
}

// String returns "oci://registry/repository[:tag]".
func (r *Reference) String() string {
	return URIScheme + r.ImageReference()
}

// ImageReference returns the reference without the oci:// scheme.
func (r *Reference) ImageReference() string {
	if r.Tag == "" {
		return fmt.Sprintf("%s/%s", r.Registry, r.Repository)
	}
	return fmt.Sprintf("%s/%s:%s", r.Registry, r.Repository, r.Tag)
}

// WithTag returns a copy of the reference with the given tag.
func (r *Reference) WithTag(tag string) *Reference {
	return &Reference{
		Registry:   r.Registry,
		Repository: r.Repository,
		Tag:        tag,
	}
}

// OutputConfig configures Publish.
type OutputConfig struct {
	// SourceDir is the package directory to publish.
	SourceDir string
	// OutputDir receives the local OCI image layout.
	OutputDir string
	// Reference is the publish target. An empty tag falls back to Version.
	Reference *Reference
	// Title is the org.opencontainers.image.title annotation.
	Title string
	// Version is the org.opencontainers.image.version annotation.
	Version string
	// PlainHTTP uses HTTP instead of HTTPS for the registry connection.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
	// Annotations are merged over the default annotations.
	Annotations map[string]string
}

// PublishResult contains the result of a successful package and push.
type PublishResult struct {
	// Digest is the digest of the pushed manifest.
	Digest string `json:"digest" yaml:"digest"`
	// Reference is registry/repository:tag.
	Reference string `json:"reference" yaml:"reference"`
	// StorePath is the local OCI image layout directory.
	StorePath string `json:"storePath" yaml:"storePath"`
}

// DefaultAnnotations returns the manifest annotations describing an SDK package.
func DefaultAnnotations(title, version string) map[string]string {
	return map[string]string{
		"org.opencontainers.image.title":   title,
		"org.opencontainers.image.version": version,
		"org.opencontainers.image.vendor":  "NVIDIA",
		"org.opencontainers.image.source":  "https://github.com/alexa/avs-device-sdk",
	}
}

// Publish packages cfg.SourceDir into a local OCI layout and pushes it to
// cfg.Reference. The whole operation is bounded by defaults.OCIPushTimeout.
func Publish(ctx context.Context, cfg OutputConfig) (*PublishResult, error) {
	if cfg.Reference == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "OCI reference is required to publish")
	}

	ref := cfg.Reference
	if ref.Tag == "" {
		if cfg.Version == "" {
			return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "tag is required for OCI packaging")
		}
		ref = ref.WithTag(cfg.Version)
	}

	absSourceDir, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to resolve source directory", err)
	}
	absOutputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to resolve output directory", err)
	}

	ctx, cancel := defaults.WithOptionalTimeout(ctx, defaults.OCIPushTimeout)
	defer cancel()

	annotations := DefaultAnnotations(cfg.Title, cfg.Version)
	maps.Copy(annotations, cfg.Annotations)

	slog.Info("publishing package as OCI artifact",
		"registry", ref.Registry,
		"repository", ref.Repository,
		"tag", ref.Tag,
	)

	packaged, err := Package(ctx, PackageOptions{
		SourceDir:   absSourceDir,
		OutputDir:   absOutputDir,
		Registry:    ref.Registry,
		Repository:  ref.Repository,
		Tag:         ref.Tag,
		Annotations: annotations,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("OCI artifact packaged locally",
		"reference", packaged.Reference,
		"digest", packaged.Digest,
		"store_path", packaged.StorePath,
	)

	pushed, err := PushFromStore(ctx, packaged.StorePath, PushOptions{
		Registry:    ref.Registry,
		Repository:  ref.Repository,
		Tag:         ref.Tag,
		PlainHTTP:   cfg.PlainHTTP,
		InsecureTLS: cfg.InsecureTLS,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("OCI artifact pushed",
		"reference", pushed.Reference,
		"digest", pushed.Digest,
	)

	return &PublishResult{
		Digest:    pushed.Digest,
		Reference: pushed.Reference,
		StorePath: packaged.StorePath,
	}, nil
}
