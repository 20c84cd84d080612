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

// Package oci publishes a finished SDK package directory as an OCI artifact.
//
// Publication is two steps. Package archives the package directory as a
// single reproducible gzip tar layer, wraps it in an OCI 1.1 manifest of
// ArtifactType and stores it in a local OCI image layout. PushFromStore then
// copies the tagged manifest from that layout to a remote registry:
//
//	ref, err := oci.ParseReference("oci://ghcr.io/acme/avs-device-sdk:1.26.0")
//	if err != nil {
//	    return err
//	}
//	res, err := oci.Publish(ctx, oci.OutputConfig{
//	    SourceDir: "/work/package",
//	    OutputDir: "/work",
//	    Reference: ref,
//	    Title:     "AlexaClientSDK",
//	    Version:   "1.26.0",
//	})
//
// Registry credentials come from the Docker configuration
// (~/.docker/config.json) via the ORAS credentials package. PlainHTTP and
// InsecureTLS exist for local development registries.
//
// The artifact is not a runnable image; consumers that do not understand
// ArtifactType should treat it as an opaque blob.
package oci
