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
	"archive/tar"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/defaults"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
)

const (
	mimeGzip = "application/gzip"
	mimeXz   = "application/x-xz"
	mimeTar  = "application/x-tar"
)

// Unpack extracts archive into a staging directory below destDir and moves
// its topDir to destDir/source_subfolder, replacing any previous tree.
// It returns the path of the source tree.
func Unpack(ctx context.Context, archive, destDir, topDir string) (string, error) {
	ctx, cancel := defaults.WithOptionalTimeout(ctx, defaults.ExtractTimeout)
	defer cancel()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeRetrieval, fmt.Sprintf("failed to create %s", destDir), err)
	}

	staging, err := os.MkdirTemp(destDir, ".extract-")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeRetrieval, "failed to create staging directory", err)
	}
	defer os.RemoveAll(staging)

	start := time.Now()
	if err := Extract(ctx, archive, staging); err != nil {
		return "", err
	}

	extracted := filepath.Join(staging, topDir)
	if st, statErr := os.Stat(extracted); statErr != nil || !st.IsDir() {
		return "", errors.NewWithContext(errors.ErrCodeRetrieval,
			fmt.Sprintf("archive %s has no top-level directory %s", archive, topDir),
			map[string]any{"archive": archive, "topDir": topDir})
	}

	target := filepath.Join(destDir, SourceSubfolder)
	if err := os.RemoveAll(target); err != nil {
		return "", errors.Wrap(errors.ErrCodeRetrieval, fmt.Sprintf("failed to remove stale %s", target), err)
	}
	if err := os.Rename(extracted, target); err != nil {
		return "", errors.Wrap(errors.ErrCodeRetrieval, fmt.Sprintf("failed to rename %s to %s", topDir, SourceSubfolder), err)
	}

	slog.Info("extracted source archive", "archive", archive, "path", target, "duration", time.Since(start).String())
	return target, nil
}

// Extract unpacks a tar archive, optionally gzip or xz compressed, into
// dest. The compression is detected from the file content.
func Extract(ctx context.Context, archive, dest string) error {
	mtype, err := mimetype.DetectFile(archive)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRetrieval, fmt.Sprintf("failed to inspect %s", archive), err)
	}

	fh, err := os.Open(archive)
	if err != nil {
		return errors.Wrap(errors.ErrCodeRetrieval, fmt.Sprintf("failed to open %s", archive), err)
	}
	defer fh.Close()

	var r io.Reader
	switch {
	case mtype.Is(mimeGzip):
		gz, gzErr := gzip.NewReader(fh)
		if gzErr != nil {
			return errors.Wrap(errors.ErrCodeRetrieval, "invalid gzip stream", gzErr)
		}
		defer gz.Close()
		r = gz
	case mtype.Is(mimeXz):
		xr, xzErr := xz.NewReader(fh)
		if xzErr != nil {
			return errors.Wrap(errors.ErrCodeRetrieval, "invalid xz stream", xzErr)
		}
		r = xr
	case mtype.Is(mimeTar):
		r = fh
	default:
		return errors.NewWithContext(errors.ErrCodeRetrieval,
			fmt.Sprintf("unsupported archive type %s", mtype.String()),
			map[string]any{"archive": archive, "mime": mtype.String()})
	}

	if err := extractTar(ctx, tar.NewReader(r), dest); err != nil {
		return errors.WrapWithContext(errors.ErrCodeRetrieval, fmt.Sprintf("failed to extract %s", archive), err,
			map[string]any{"archive": archive})
	}
	return nil
}

// extractTar writes every entry through an os.Root opened on dest, so an
// entry that resolves outside dest, including through a symlink created by
// an earlier entry, fails instead of being written.
func extractTar(ctx context.Context, tr *tar.Reader, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return err
	}
	defer root.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed archive: %w", err)
		}

		if !filepath.IsLocal(hdr.Name) {
			return fmt.Errorf("entry %q escapes the destination", hdr.Name)
		}
		name := filepath.Clean(hdr.Name)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := root.MkdirAll(name, 0o755); err != nil {
				return fmt.Errorf("entry %q: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			if err := writeFile(root, tr, name, hdr.FileInfo().Mode().Perm()); err != nil {
				return fmt.Errorf("entry %q: %w", hdr.Name, err)
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !filepath.IsLocal(filepath.Join(filepath.Dir(name), hdr.Linkname)) {
				return fmt.Errorf("symlink %q -> %q escapes the destination", hdr.Name, hdr.Linkname)
			}
			if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return fmt.Errorf("entry %q: %w", hdr.Name, err)
			}
			if err := root.Symlink(hdr.Linkname, name); err != nil {
				return fmt.Errorf("entry %q: %w", hdr.Name, err)
			}
		case tar.TypeLink:
			if !filepath.IsLocal(hdr.Linkname) {
				return fmt.Errorf("hard link %q -> %q escapes the destination", hdr.Name, hdr.Linkname)
			}
			if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
				return fmt.Errorf("entry %q: %w", hdr.Name, err)
			}
			if err := root.Link(filepath.Clean(hdr.Linkname), name); err != nil {
				return fmt.Errorf("entry %q: %w", hdr.Name, err)
			}
		case tar.TypeXGlobalHeader:
			// pax comment header written by git archive
		default:
			slog.Debug("skipping archive entry", "name", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

func writeFile(root *os.Root, r io.Reader, name string, perm os.FileMode) error {
	if err := root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	out, err := root.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
