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
	"crypto/tls"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	ociv1 "github.com/opencontainers/image-spec/specs-go/v1"
	oras "oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/file"
	"oras.land/oras-go/v2/content/oci"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/credentials"

	apperrors "github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
)

const (
	// ArtifactType is the media type of a published SDK package.
	ArtifactType = "application/vnd.nvidia.avsrecipe.package.v1"

	// LayoutDirName is the OCI image layout directory created under PackageOptions.OutputDir.
	LayoutDirName = "oci-layout"
)

// PackageOptions configures packaging a directory into a local OCI image layout.
type PackageOptions struct {
	// SourceDir is the package directory to archive as the artifact's single layer.
	SourceDir string
	// OutputDir receives the OCI image layout (OutputDir/oci-layout).
	OutputDir string
	// Registry is the target registry host; recorded in the result reference.
	Registry string
	// Repository is the target repository path.
	Repository string
	// Tag names the manifest in the layout and in the registry.
	Tag string
	// Annotations are manifest annotations.
	Annotations map[string]string
	// ReproducibleTimestamp pins org.opencontainers.image.created.
	ReproducibleTimestamp string
}

// PackageResult describes a locally packaged artifact.
type PackageResult struct {
	// Digest is the manifest digest.
	Digest string
	// Reference is registry/repository:tag.
	Reference string
	// StorePath is the OCI image layout directory.
	StorePath string
}

// PushOptions configures pushing a tagged manifest from a local layout.
type PushOptions struct {
	Registry   string
	Repository string
	Tag        string
	// PlainHTTP uses HTTP instead of HTTPS for the registry connection.
	PlainHTTP bool
	// InsecureTLS skips TLS certificate verification.
	InsecureTLS bool
}

// PushResult contains the result of a successful push.
type PushResult struct {
	// Digest is the digest of the pushed manifest.
	Digest string
	// Reference is registry/repository:tag.
	Reference string
}

// Package archives opts.SourceDir as a reproducible gzip tar layer, packs an
// OCI 1.1 manifest of ArtifactType around it and copies the tagged manifest
// into an OCI image layout under opts.OutputDir.
func Package(ctx context.Context, opts PackageOptions) (*PackageResult, error) {
	switch {
	case opts.Tag == "":
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "tag is required for OCI packaging")
	case opts.Registry == "":
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "registry is required for OCI packaging")
	case opts.Repository == "":
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "repository is required for OCI packaging")
	}

	refString, err := imageReference(opts.Registry, opts.Repository, opts.Tag)
	if err != nil {
		return nil, err
	}

	absSourceDir, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to resolve source directory", err)
	}
	info, err := os.Stat(absSourceDir)
	if err != nil || !info.IsDir() {
		return nil, apperrors.NewWithContext(apperrors.ErrCodeNotFound, "package directory does not exist",
			map[string]any{"dir": absSourceDir})
	}

	storePath := filepath.Join(opts.OutputDir, LayoutDirName)
	if err := os.MkdirAll(storePath, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create OCI layout directory", err)
	}

	fs, err := file.New(absSourceDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to create file store", err)
	}
	defer func() { _ = fs.Close() }()

	fs.TarReproducible = true

	layerDesc, err := fs.Add(ctx, ".", ociv1.MediaTypeImageLayerGzip, absSourceDir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to add package directory to store", err)
	}

	packOpts := oras.PackManifestOptions{
		Layers:              []ociv1.Descriptor{layerDesc},
		ManifestAnnotations: manifestAnnotations(opts.Annotations, opts.ReproducibleTimestamp),
	}

	manifestDesc, err := oras.PackManifest(ctx, fs, oras.PackManifestVersion1_1, ArtifactType, packOpts)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to pack manifest", err)
	}

	if tagErr := fs.Tag(ctx, manifestDesc, opts.Tag); tagErr != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to tag manifest in file store", tagErr)
	}

	layout, err := oci.New(storePath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to open OCI layout", err)
	}

	desc, err := oras.Copy(ctx, fs, opts.Tag, layout, opts.Tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to copy artifact into OCI layout", err)
	}

	slog.Debug("packaged OCI artifact",
		"reference", refString,
		"digest", desc.Digest.String(),
		"layer_size", layerDesc.Size,
	)

	return &PackageResult{
		Digest:    desc.Digest.String(),
		Reference: refString,
		StorePath: storePath,
	}, nil
}

// PushFromStore copies the manifest tagged opts.Tag from the OCI image layout
// at storePath to the remote registry.
func PushFromStore(ctx context.Context, storePath string, opts PushOptions) (*PushResult, error) {
	if opts.Tag == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidRequest, "tag is required to push OCI image")
	}

	refString, err := imageReference(opts.Registry, opts.Repository, opts.Tag)
	if err != nil {
		return nil, err
	}

	layout, err := oci.New(storePath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternal, "failed to open OCI layout", err)
	}

	repo, err := remote.NewRepository(fmt.Sprintf("%s/%s", stripProtocol(opts.Registry), opts.Repository))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidRequest, "failed to initialize remote repository", err)
	}
	repo.PlainHTTP = opts.PlainHTTP
	repo.Client = createAuthClient(opts.PlainHTTP, opts.InsecureTLS)

	desc, err := oras.Copy(ctx, layout, opts.Tag, repo, opts.Tag, oras.DefaultCopyOptions)
	if err != nil {
		return nil, apperrors.WrapWithContext(apperrors.ErrCodeInternal, "failed to push artifact to registry", err,
			map[string]any{"reference": refString})
	}

	return &PushResult{
		Digest:    desc.Digest.String(),
		Reference: refString,
	}, nil
}

// imageReference validates and renders registry/repository:tag.
func imageReference(registry, repository, tag string) (string, error) {
	if err := ValidateRegistryReference(registry, repository); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s:%s", stripProtocol(registry), repository, tag), nil
}

func manifestAnnotations(annotations map[string]string, created string) map[string]string {
	if len(annotations) == 0 && created == "" {
		return nil
	}
	out := make(map[string]string, len(annotations)+1)
	maps.Copy(out, annotations)
	if created != "" {
		out[ociv1.AnnotationCreated] = created
	}
	return out
}

// stripProtocol removes an http:// or https:// prefix from a registry host.
func stripProtocol(registry string) string {
	registry = strings.TrimPrefix(registry, "https://")
	registry = strings.TrimPrefix(registry, "http://")
	return registry
}

// createAuthClient builds a registry client that reads Docker credentials and
// optionally skips TLS verification.
func createAuthClient(plainHTTP, insecureTLS bool) *auth.Client {
	credStore, err := credentials.NewStoreFromDocker(credentials.StoreOptions{})
	if err != nil {
		slog.Debug("docker credential store unavailable", "error", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !plainHTTP && insecureTLS {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		} else {
			transport.TLSClientConfig.InsecureSkipVerify = true //nolint:gosec
		}
	}

	client := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	if credStore != nil {
		client.Credential = credentials.Credential(credStore)
	}
	return client
}
