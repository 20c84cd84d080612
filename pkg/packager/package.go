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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/cmake"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
)

// Installer runs the build system's install target.
type Installer interface {
	Install(ctx context.Context, strip bool) error
}

// HeaderCopy copies *.h files from a source-relative directory into a
// package-relative directory.
type HeaderCopy struct {
	Src string
	Dst string
}

// TestHeaders are the header sets the install rules leave out.
var TestHeaders = []HeaderCopy{
	{
		Src: filepath.Join("AVSCommon", "SDKInterfaces", "test", "AVSCommon", "SDKInterfaces"),
		Dst: filepath.Join("include", "AVSCommon", "SDKInterfaces", "test"),
	},
	{
		Src: filepath.Join("Settings", "test", "Settings"),
		Dst: filepath.Join("include", "AVSCommon", "SDKInterfaces", "test", "Settings"),
	},
}

// Layout describes a populated package folder.
type Layout struct {
	PackageDir    string   `json:"packageDir" yaml:"packageDir"`
	InstallTarget string   `json:"installTarget" yaml:"installTarget"`
	Headers       []string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Package installs the build into packageDir and copies the test headers
// from sourceDir. Release builds use the stripping install target.
func Package(ctx context.Context, cfg *recipe.Config, installer Installer, sourceDir, packageDir string) (*Layout, error) {
	strip := cfg.Settings().BuildType == recipe.BuildTypeRelease
	layout := &Layout{PackageDir: packageDir, InstallTarget: cmake.TargetInstall}

	if strip {
		layout.InstallTarget = cmake.TargetInstallStrip
		if err := os.MkdirAll(packageDir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodePackaging, fmt.Sprintf("failed to create package folder %s", packageDir), err)
		}
	}

	if err := installer.Install(ctx, strip); err != nil {
		return nil, err
	}

	for _, hc := range TestHeaders {
		copied, err := CopyHeaders(filepath.Join(sourceDir, hc.Src), filepath.Join(packageDir, hc.Dst))
		if err != nil {
			return nil, err
		}
		for _, c := range copied {
			layout.Headers = append(layout.Headers, filepath.Join(hc.Dst, c))
		}
	}

	slog.Info("package populated", "path", packageDir, "target", layout.InstallTarget, "headers", len(layout.Headers))
	return layout, nil
}

// CopyHeaders copies every *.h below src to the same relative path below dst
// and returns the copied relative paths. A missing or header-less src is an
// error.
func CopyHeaders(src, dst string) ([]string, error) {
	pkgErr := func(msg string, cause error) error {
		return errors.WrapWithContext(errors.ErrCodePackaging, msg, cause, map[string]any{"src": src, "dst": dst})
	}

	st, err := os.Stat(src)
	if err != nil {
		return nil, pkgErr(fmt.Sprintf("header source %s is missing", src), err)
	}
	if !st.IsDir() {
		return nil, pkgErr(fmt.Sprintf("header source %s is not a directory", src), fs.ErrInvalid)
	}

	var copied []string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".h") {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(dst, rel)); err != nil {
			return err
		}
		copied = append(copied, rel)
		return nil
	})
	if err != nil {
		return nil, pkgErr(fmt.Sprintf("failed to copy headers from %s", src), err)
	}
	if len(copied) == 0 {
		return nil, pkgErr(fmt.Sprintf("no headers found in %s", src), fs.ErrNotExist)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
