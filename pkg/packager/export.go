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
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/template"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/header"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/serializer"
)

const (
	// ConsumerName is the name downstream pkg-config and CMake lookups use.
	ConsumerName = "AlexaClientSDK"

	// InfoFileName is the package metadata file in the package root.
	InfoFileName = "package-info.yaml"
)

//go:embed templates/pkgconfig.pc.tmpl
var pkgConfigTemplate string

//go:embed templates/FindPackage.cmake.tmpl
var findPackageTemplate string

// Names holds the package name per consumer lookup mechanism.
type Names struct {
	PkgConfig        string `json:"pkg_config" yaml:"pkg_config"`
	CMakeFindPackage string `json:"cmake_find_package" yaml:"cmake_find_package"`
}

// Info is the metadata exported alongside the package.
type Info struct {
	header.Header `json:",inline" yaml:",inline"`

	Reference    string                  `json:"reference" yaml:"reference"`
	Version      string                  `json:"version" yaml:"version"`
	Names        Names                   `json:"names" yaml:"names"`
	Libs         []string                `json:"libs" yaml:"libs"`
	IncludeDirs  []string                `json:"includedirs" yaml:"includedirs"`
	LibDirs      []string                `json:"libdirs" yaml:"libdirs"`
	Settings     recipe.Settings         `json:"settings" yaml:"settings"`
	Options      recipe.Options          `json:"options" yaml:"options"`
	Requirements []recipe.DependencySpec `json:"requires" yaml:"requires"`
	Files        ExportedFiles           `json:"files" yaml:"files"`
}

// ExportedFiles lists the package-relative paths written by Export.
type ExportedFiles struct {
	Info      string `json:"info" yaml:"info"`
	PkgConfig string `json:"pkgConfig" yaml:"pkgConfig"`
	CMake     string `json:"cmake" yaml:"cmake"`
	Checksums string `json:"checksums" yaml:"checksums"`
}

// Export collects the package's libraries and writes the consumer metadata
// into packageDir. toolVersion is recorded in the metadata header.
func Export(ctx context.Context, cfg *recipe.Config, packageDir, toolVersion string) (*Info, error) {
	pkgErr := func(msg string, cause error) error {
		return errors.WrapWithContext(errors.ErrCodePackaging, msg, cause, map[string]any{"package": packageDir})
	}

	libs, err := CollectLibs(filepath.Join(packageDir, "lib"))
	if err != nil {
		return nil, pkgErr("failed to collect libraries", err)
	}

	info := &Info{
		Reference:    cfg.Reference(),
		Version:      cfg.Version(),
		Names:        Names{PkgConfig: ConsumerName, CMakeFindPackage: ConsumerName},
		Libs:         libs,
		IncludeDirs:  []string{"include"},
		LibDirs:      []string{"lib"},
		Settings:     cfg.Settings(),
		Options:      cfg.Options(),
		Requirements: cfg.Requirements(),
		Files: ExportedFiles{
			Info:      InfoFileName,
			PkgConfig: filepath.Join("lib", "pkgconfig", ConsumerName+".pc"),
			CMake:     filepath.Join("lib", "cmake", ConsumerName, "Find"+ConsumerName+".cmake"),
			Checksums: ChecksumFileName,
		},
	}
	info.Init(header.KindPackageInfo, toolVersion)

	if err := render(pkgConfigTemplate, filepath.Join(packageDir, info.Files.PkgConfig), info); err != nil {
		return nil, pkgErr("failed to write pkg-config file", err)
	}
	if err := render(findPackageTemplate, filepath.Join(packageDir, info.Files.CMake), info); err != nil {
		return nil, pkgErr("failed to write CMake find module", err)
	}
	if err := serializer.WriteFile(filepath.Join(packageDir, InfoFileName), serializer.FormatYAML, info); err != nil {
		return nil, pkgErr("failed to write package info", err)
	}
	if _, err := GenerateChecksums(ctx, packageDir); err != nil {
		return nil, pkgErr("failed to write checksums", err)
	}

	slog.Info("package info exported", "reference", info.Reference, "libs", len(libs))
	return info, nil
}

func render(text, path string, data any) error {
	tmpl, err := template.New(filepath.Base(path)).Parse(text)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
