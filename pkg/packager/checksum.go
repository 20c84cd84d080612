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

package packager

import (
	"context"
	_ "crypto/sha256"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"
)

// ChecksumFileName is the name of the checksum manifest in the package root.
const ChecksumFileName = "checksums.txt"

// GenerateChecksums writes a sha256sum compatible manifest of every regular
// file below packageDir, sorted by path, and returns its location.
func GenerateChecksums(ctx context.Context, packageDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	var files []string
	err := filepath.WalkDir(packageDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(packageDir, path)
		if err != nil {
			return err
		}
		if rel != ChecksumFileName {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to list package files: %w", err)
	}
	slices.Sort(files)

	sums := make([]digest.Digest, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := hashFile(filepath.Join(packageDir, rel))
			if err != nil {
				return fmt.Errorf("failed to read %s for checksum: %w", rel, err)
			}
			sums[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, rel := range files {
		fmt.Fprintf(&b, "%s  %s\n", sums[i].Encoded(), filepath.ToSlash(rel))
	}

	path := filepath.Join(packageDir, ChecksumFileName)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to write checksums: %w", err)
	}

	slog.Debug("checksums generated", "file_count", len(files), "path", path)
	return path, nil
}

func hashFile(path string) (digest.Digest, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer fh.Close()
	return digest.SHA256.FromReader(fh)
}
