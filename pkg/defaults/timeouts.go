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

package defaults

import "time"

// Source retrieval timeouts.
const (
	// DownloadTimeout bounds the whole source archive download.
	// The SDK tarball is tens of megabytes; slow mirrors need headroom.
	DownloadTimeout = 15 * time.Minute

	// DownloadProgressInterval is how often download progress is logged.
	DownloadProgressInterval = 5 * time.Second

	// ExtractTimeout bounds archive extraction.
	ExtractTimeout = 5 * time.Minute
)

// Build tool timeouts. Zero means the phase is bounded only by the parent context.
const (
	// ConfigureTimeout bounds a single cmake configure run.
	ConfigureTimeout = 10 * time.Minute

	// CompileTimeout bounds the compile step. The SDK has no upper bound
	// on build time across toolchains, so only cancellation applies.
	CompileTimeout time.Duration = 0

	// InstallTimeout bounds the install (or install/strip) target.
	InstallTimeout = 30 * time.Minute
)

// HTTP client timeouts for outbound requests.
const (
	// HTTPConnectTimeout is the timeout for establishing connections.
	HTTPConnectTimeout = 10 * time.Second

	// HTTPTLSHandshakeTimeout is the timeout for TLS handshake.
	HTTPTLSHandshakeTimeout = 10 * time.Second

	// HTTPResponseHeaderTimeout is the timeout for reading response headers.
	HTTPResponseHeaderTimeout = 30 * time.Second

	// HTTPKeepAlive is the keep-alive duration for connections.
	HTTPKeepAlive = 30 * time.Second
)

// OCI publication timeouts.
const (
	// OCIPushTimeout bounds packaging and pushing the package artifact.
	OCIPushTimeout = 10 * time.Minute
)
