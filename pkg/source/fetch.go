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

package source

import (
	"context"
	_ "crypto/sha256"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cavaliergopher/grab/v3"
	"github.com/opencontainers/go-digest"
	"golang.org/x/time/rate"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/defaults"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
)

const (
	// DefaultBaseURL is where upstream publishes release archives.
	DefaultBaseURL = "https://github.com/alexa/avs-device-sdk/archive"

	// SourceSubfolder is the directory the extracted release is renamed to.
	SourceSubfolder = "source_subfolder"

	cacheSubdir = "avsrecipe/sources"
	userAgent   = "avsrecipe"
	pollPeriod  = 250 * time.Millisecond
)

// Result describes a fetched source tree.
type Result struct {
	URL        string        `json:"url" yaml:"url"`
	Archive    string        `json:"archive" yaml:"archive"`
	Digest     digest.Digest `json:"digest" yaml:"digest"`
	Cached     bool          `json:"cached" yaml:"cached"`
	SourcePath string        `json:"sourcePath" yaml:"sourcePath"`
}

// Fetcher downloads and extracts SDK release archives.
type Fetcher struct {
	baseURL          string
	cacheDir         string
	digest           digest.Digest
	client           *grab.Client
	progressInterval time.Duration
	timeout          time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBaseURL overrides the release archive location.
func WithBaseURL(u string) Option {
	return func(f *Fetcher) {
		f.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithCacheDir stores downloads in dir instead of the XDG cache directory.
func WithCacheDir(dir string) Option {
	return func(f *Fetcher) {
		f.cacheDir = dir
	}
}

// WithDigest requires the downloaded archive to match d.
func WithDigest(d digest.Digest) Option {
	return func(f *Fetcher) {
		f.digest = d
	}
}

// WithHTTPClient replaces the HTTP client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client.HTTPClient = c
	}
}

// WithProgressInterval sets how often download progress is logged.
func WithProgressInterval(d time.Duration) Option {
	return func(f *Fetcher) {
		f.progressInterval = d
	}
}

// WithTimeout bounds the download. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// NewFetcher returns a Fetcher with default settings and opts applied.
func NewFetcher(opts ...Option) *Fetcher {
	client := grab.NewClient()
	client.UserAgent = userAgent
	client.HTTPClient = newHTTPClient()

	f := &Fetcher{
		baseURL:          DefaultBaseURL,
		client:           client,
		progressInterval: defaults.DownloadProgressInterval,
		timeout:          defaults.DownloadTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   defaults.HTTPConnectTimeout,
		KeepAlive: defaults.HTTPKeepAlive,
	}).DialContext
	transport.TLSHandshakeTimeout = defaults.HTTPTLSHandshakeTimeout
	transport.ResponseHeaderTimeout = defaults.HTTPResponseHeaderTimeout
	return &http.Client{Transport: transport}
}

// ParseDigest accepts "sha256:<hex>" or a bare sha256 hex string.
func ParseDigest(s string) (digest.Digest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if !strings.Contains(s, ":") {
		s = string(digest.SHA256) + ":" + strings.ToLower(s)
	}
	d, err := digest.Parse(s)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidRequest, fmt.Sprintf("invalid digest %q", s), err)
	}
	return d, nil
}

// URL returns the archive URL for version.
func (f *Fetcher) URL(version string) string {
	return fmt.Sprintf("%s/v%s.tar.gz", f.baseURL, version)
}

// TopDir returns the directory name the release archive unpacks to.
func TopDir(version string) string {
	return fmt.Sprintf("%s-%s", recipe.PackageName, version)
}

func (f *Fetcher) archivePath(version string) (string, error) {
	name := fmt.Sprintf("%s-v%s.tar.gz", recipe.PackageName, version)
	if f.cacheDir != "" {
		if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
			return "", err
		}
		return filepath.Join(f.cacheDir, name), nil
	}
	return xdg.CacheFile(filepath.Join(cacheSubdir, name))
}

// Fetch downloads the release for version, extracts it below destDir and
// renames its top-level directory to source_subfolder. An existing
// source_subfolder is replaced.
func (f *Fetcher) Fetch(ctx context.Context, version, destDir string) (*Result, error) {
	res, err := f.Download(ctx, version)
	if err != nil {
		return nil, err
	}

	sourcePath, err := Unpack(ctx, res.Archive, destDir, TopDir(version))
	if err != nil {
		return nil, err
	}
	res.SourcePath = sourcePath
	return res, nil
}

// Download fetches the release archive into the cache and returns its
// location and digest. A cached archive is reused when it matches the
// expected digest, or unconditionally when none is configured.
func (f *Fetcher) Download(ctx context.Context, version string) (*Result, error) {
	url := f.URL(version)
	if f.digest != "" {
		if err := f.digest.Validate(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidRequest, fmt.Sprintf("invalid digest %q", f.digest), err)
		}
	}

	path, err := f.archivePath(version)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRetrieval, "failed to prepare download cache", err)
	}

	res := &Result{URL: url, Archive: path}

	if _, statErr := os.Stat(path); statErr == nil {
		d, digestErr := fileDigest(path, f.digestAlgorithm())
		if digestErr == nil && (f.digest == "" || d == f.digest) {
			slog.Info("using cached source archive", "path", path, "digest", d.String())
			res.Digest = d
			res.Cached = true
			return res, nil
		}
		slog.Warn("discarding cached source archive", "path", path, "digest", d.String(), "expected", f.digest.String())
		_ = os.Remove(path)
	}

	dlCtx, cancel := defaults.WithOptionalTimeout(ctx, f.timeout)
	defer cancel()

	partial := path + ".part"
	start := time.Now()
	slog.Info("downloading source archive", "url", url, "dest", path)
	if err := f.download(dlCtx, url, partial); err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeRetrieval, fmt.Sprintf("failed to download %s", url), err,
			map[string]any{"url": url})
	}

	d, err := fileDigest(partial, f.digestAlgorithm())
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRetrieval, "failed to hash downloaded archive", err)
	}
	if f.digest != "" && d != f.digest {
		_ = os.Remove(partial)
		return nil, errors.NewWithContext(errors.ErrCodeRetrieval,
			fmt.Sprintf("digest mismatch for %s: got %s, expected %s", url, d, f.digest),
			map[string]any{"url": url, "digest": d.String(), "expected": f.digest.String()})
	}

	if err := os.Rename(partial, path); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRetrieval, "failed to move archive into cache", err)
	}

	slog.Info("downloaded source archive", "url", url, "digest", d.String(), "duration", time.Since(start).String())
	res.Digest = d
	return res, nil
}

func (f *Fetcher) digestAlgorithm() digest.Algorithm {
	if f.digest != "" {
		return f.digest.Algorithm()
	}
	return digest.SHA256
}

func (f *Fetcher) download(ctx context.Context, url, dst string) error {
	req, err := grab.NewRequest(dst, url)
	if err != nil {
		return err
	}
	resp := f.client.Do(req.WithContext(ctx))

	progress := rate.Sometimes{Interval: f.progressInterval}
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			progress.Do(func() {
				slog.Info("download progress",
					"url", url,
					"bytes", resp.BytesComplete(),
					"size", resp.Size(),
					"percent", fmt.Sprintf("%.1f", 100*resp.Progress()))
			})
		case <-resp.Done:
			return resp.Err()
		}
	}
}

func fileDigest(path string, alg digest.Algorithm) (digest.Digest, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()
	return alg.FromReader(fh)
}
