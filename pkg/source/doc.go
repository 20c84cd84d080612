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

// Package source retrieves and unpacks the AVS Device SDK source release.
//
// A Fetcher downloads the release tarball for a version from
// {baseURL}/v{version}.tar.gz into a download cache (the XDG cache directory
// by default), optionally verifies its sha256 digest, sniffs the archive type
// (gzip or xz compressed tar), extracts it and renames the release's
// top-level directory avs-device-sdk-{version} to source_subfolder:
//
//	f := source.NewFetcher(source.WithDigest(d))
//	res, err := f.Fetch(ctx, "1.26.0", workspace)
//	// res.SourcePath == workspace/source_subfolder
//
// Every failure is reported as a RETRIEVAL_ERROR structured error. Archive
// entries that would land outside the destination are rejected.
package source
