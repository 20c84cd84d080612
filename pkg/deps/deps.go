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

// Package deps resolves the install trees of dependency packages that were
// built elsewhere. The recipe only reads them: library and include
// directories feed CMake definitions and nothing here builds a dependency.
//
// Trees come either from a deps file:
//
//	dependencies:
//	  openssl:
//	    version: 1.1.1t
//	    rootpath: openssl
//	    lib_paths: [openssl/lib]
//	    include_paths: [openssl/include]
//
// where relative paths resolve against the file's directory, or from the
// layout convention <root>/<name>/{lib,include}.
package deps

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/serializer"
)

// Info describes one installed dependency.
type Info struct {
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	Version      string   `json:"version,omitempty" yaml:"version,omitempty"`
	RootPath     string   `json:"rootpath" yaml:"rootpath"`
	LibPaths     []string `json:"lib_paths,omitempty" yaml:"lib_paths,omitempty"`
	IncludePaths []string `json:"include_paths,omitempty" yaml:"include_paths,omitempty"`
}

// File is the on-disk deps file format.
type File struct {
	Dependencies map[string]Info `json:"dependencies" yaml:"dependencies"`
}

// Tree is a set of resolved dependencies keyed by package name.
type Tree struct {
	infos map[string]Info
}

// NewTree returns a tree over the given infos. Info.Name is set from the key.
func NewTree(infos map[string]Info) *Tree {
	t := &Tree{infos: make(map[string]Info, len(infos))}
	for name, info := range infos {
		info.Name = name
		t.infos[name] = info
	}
	return t
}

// Load reads a deps file. Relative paths are resolved against its directory.
func Load(path string) (*Tree, error) {
	f, err := serializer.FromFile[File](path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, fmt.Sprintf("failed to read deps file %s", path), err)
	}

	base := filepath.Dir(path)
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}

	infos := make(map[string]Info, len(f.Dependencies))
	for name, info := range f.Dependencies {
		info.RootPath = abs(info.RootPath)
		for i := range info.LibPaths {
			info.LibPaths[i] = abs(info.LibPaths[i])
		}
		for i := range info.IncludePaths {
			info.IncludePaths[i] = abs(info.IncludePaths[i])
		}
		if len(info.LibPaths) == 0 && info.RootPath != "" {
			info.LibPaths = []string{filepath.Join(info.RootPath, "lib")}
		}
		if len(info.IncludePaths) == 0 && info.RootPath != "" {
			info.IncludePaths = []string{filepath.Join(info.RootPath, "include")}
		}
		infos[name] = info
	}

	slog.Debug("loaded deps file", "path", path, "count", len(infos))
	return NewTree(infos), nil
}

// Discover resolves the named packages under root using the
// <root>/<name>/{lib,include} convention. Names without a directory are skipped.
func Discover(root string, names []string) (*Tree, error) {
	infos := make(map[string]Info, len(names))
	for _, name := range names {
		dir := filepath.Join(root, name)
		st, err := os.Stat(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrap(errors.ErrCodeInternal, fmt.Sprintf("failed to stat %s", dir), err)
		}
		if !st.IsDir() {
			continue
		}
		infos[name] = Info{
			RootPath:     dir,
			LibPaths:     []string{filepath.Join(dir, "lib")},
			IncludePaths: []string{filepath.Join(dir, "include")},
		}
	}
	return NewTree(infos), nil
}

// Get returns the info for a package.
func (t *Tree) Get(name string) (Info, error) {
	info, ok := t.infos[name]
	if !ok {
		return Info{}, errors.NewWithContext(errors.ErrCodeNotFound,
			fmt.Sprintf("dependency %s is not installed", name),
			map[string]any{"dependency": name})
	}
	return info, nil
}

// Names returns the resolved package names sorted alphabetically.
func (t *Tree) Names() []string {
	names := make([]string, 0, len(t.infos))
	for n := range t.infos {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Check verifies that every requirement is present and, where the tree
// records a version, that it matches.
func (t *Tree) Check(reqs []recipe.DependencySpec) error {
	var missing []string
	for _, req := range reqs {
		info, ok := t.infos[req.Name]
		if !ok {
			missing = append(missing, req.Reference())
			continue
		}
		if info.Version != "" && info.Version != req.Version {
			return errors.NewWithContext(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("dependency %s is version %s, requirement is %s", req.Name, info.Version, req.Reference()),
				map[string]any{"dependency": req.Name})
		}
	}
	if len(missing) > 0 {
		return errors.NewWithContext(errors.ErrCodeNotFound,
			fmt.Sprintf("missing dependencies: %s", strings.Join(missing, ", ")),
			map[string]any{"missing": missing})
	}
	return nil
}

// FindLibrary returns the shortest-named file in the first library directory
// matching <stem>.*, e.g. libcrypto.so over libcrypto.so.1.1.
func (i Info) FindLibrary(stem string) (string, error) {
	if len(i.LibPaths) == 0 {
		return "", errors.NewWithContext(errors.ErrCodeNotFound,
			fmt.Sprintf("dependency %s has no library directory", i.Name),
			map[string]any{"dependency": i.Name})
	}
	return ShortestMatch(filepath.Join(i.LibPaths[0], stem+".*"))
}

// IncludeDir returns the first include directory.
func (i Info) IncludeDir() (string, error) {
	if len(i.IncludePaths) == 0 {
		return "", errors.NewWithContext(errors.ErrCodeNotFound,
			fmt.Sprintf("dependency %s has no include directory", i.Name),
			map[string]any{"dependency": i.Name})
	}
	return i.IncludePaths[0], nil
}

// ShortestMatch globs pattern and returns the match with the shortest
// path. Ties keep glob order, which is lexical.
func ShortestMatch(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidRequest, fmt.Sprintf("invalid pattern %s", pattern), err)
	}
	if len(matches) == 0 {
		return "", errors.NewWithContext(errors.ErrCodeNotFound,
			fmt.Sprintf("no file matches %s", pattern),
			map[string]any{"pattern": pattern})
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if len(m) < len(best) {
			best = m
		}
	}
	return best, nil
}
