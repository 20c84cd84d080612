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

// Package patch discovers and applies the source patches shipped with the
// recipe.
//
// Patches live in four tiers below the patches directory, applied in this
// order with files sorted by name inside each tier:
//
//	patches/*.patch
//	patches/{os}/*.patch
//	patches/{arch}/*.patch
//	patches/{os}/{arch}/*.patch
//
// Both git-style and traditional unified diffs are accepted. Each patch is
// applied in place and is all or nothing: sections are applied in order to
// an in-memory view of the tree, conflicts are detected before any file is
// written, and a failed write restores the files already written.
package patch

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
)

// Extension is the file suffix of patch files.
const Extension = ".patch"

// Tier is one directory of patches.
type Tier struct {
	// Dir is relative to the patches root; "." for the common tier.
	Dir   string   `json:"dir" yaml:"dir"`
	Files []string `json:"files,omitempty" yaml:"files,omitempty"`
}

// Set is the ordered list of tiers that apply to a platform.
type Set struct {
	Root  string `json:"root" yaml:"root"`
	Tiers []Tier `json:"tiers" yaml:"tiers"`
}

// Files returns every patch path in application order.
func (s Set) Files() []string {
	var out []string
	for _, t := range s.Tiers {
		for _, f := range t.Files {
			out = append(out, filepath.Join(s.Root, t.Dir, f))
		}
	}
	return out
}

// TierDirs returns the tier directories for s in application order.
func TierDirs(s recipe.Settings) []string {
	return []string{
		".",
		string(s.OS),
		string(s.Arch),
		filepath.Join(string(s.OS), string(s.Arch)),
	}
}

// Discover lists the patches under root that apply to s. A missing root or
// tier directory contributes no files.
func Discover(root string, s recipe.Settings) (Set, error) {
	set := Set{Root: root}
	for _, dir := range TierDirs(s) {
		files, err := listPatches(filepath.Join(root, dir))
		if err != nil {
			return Set{}, errors.WrapWithContext(errors.ErrCodePatch, fmt.Sprintf("failed to list patches in %s", dir), err,
				map[string]any{"dir": dir})
		}
		set.Tiers = append(set.Tiers, Tier{Dir: dir, Files: files})
	}
	return set, nil
}

func listPatches(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), Extension) {
			files = append(files, e.Name())
		}
	}
	slices.Sort(files)
	return files, nil
}

// ApplyAll applies every patch in set to the tree at sourceDir in order and
// returns the applied patch paths relative to the patches root. It stops at
// the first failure.
func ApplyAll(ctx context.Context, sourceDir string, set Set) ([]string, error) {
	var applied []string
	for _, t := range set.Tiers {
		for _, name := range t.Files {
			if err := ctx.Err(); err != nil {
				return applied, errors.Wrap(errors.ErrCodePatch, "patching canceled", err)
			}

			rel := filepath.Join(t.Dir, name)
			slog.Info("applying patch", "patch", rel)
			if err := ApplyFile(sourceDir, filepath.Join(set.Root, rel)); err != nil {
				return applied, err
			}
			applied = append(applied, rel)
		}
	}
	return applied, nil
}

// pending is the patched state of one file inside a single patch.
type pending struct {
	content []byte
	mode    os.FileMode
	removed bool
}

// overlay is the view of the source tree while one patch file is applied.
// Later sections of the same patch see the results of earlier ones.
type overlay struct {
	dir   string
	files map[string]*pending
	order []string
}

func newOverlay(dir string) *overlay {
	return &overlay{dir: dir, files: map[string]*pending{}}
}

func (o *overlay) exists(path string) bool {
	if p, ok := o.files[path]; ok {
		return !p.removed
	}
	_, err := os.Stat(path)
	return err == nil
}

func (o *overlay) read(path string) ([]byte, os.FileMode, error) {
	if p, ok := o.files[path]; ok {
		if p.removed {
			return nil, 0, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
		}
		return p.content, p.mode, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	in, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return in, st.Mode().Perm(), nil
}

func (o *overlay) set(path string, p *pending) {
	if _, ok := o.files[path]; !ok {
		o.order = append(o.order, path)
	}
	o.files[path] = p
}

// ApplyFile applies one patch file to the tree at sourceDir.
func ApplyFile(sourceDir, patchPath string) error {
	patchErr := func(msg string, cause error) error {
		return errors.WrapWithContext(errors.ErrCodePatch, fmt.Sprintf("%s: %s", filepath.Base(patchPath), msg), cause,
			map[string]any{"patch": patchPath})
	}

	fh, err := os.Open(patchPath)
	if err != nil {
		return patchErr("cannot open patch", err)
	}
	defer fh.Close()

	files, _, err := gitdiff.Parse(fh)
	if err != nil {
		return patchErr("cannot parse patch", err)
	}
	if len(files) == 0 {
		return patchErr("patch contains no changes", fs.ErrInvalid)
	}

	tree := newOverlay(sourceDir)
	for _, f := range files {
		if err := tree.apply(f); err != nil {
			return patchErr(describe(f), err)
		}
	}

	if err := tree.commit(); err != nil {
		return patchErr("cannot write patched files", err)
	}
	return nil
}

func describe(f *gitdiff.File) string {
	if f.NewName != "" {
		return f.NewName
	}
	return f.OldName
}

func (o *overlay) apply(f *gitdiff.File) error {
	switch {
	case f.IsNew:
		target, err := o.resolve(f.NewName, false)
		if err != nil {
			return err
		}
		if o.exists(target) {
			return fmt.Errorf("%s already exists", f.NewName)
		}
		var out bytes.Buffer
		if err := gitdiff.Apply(&out, bytes.NewReader(nil), f); err != nil {
			return err
		}
		o.set(target, &pending{content: out.Bytes(), mode: modeOr(f.NewMode, 0o644)})
		return nil

	case f.IsDelete:
		target, err := o.resolve(f.OldName, true)
		if err != nil {
			return err
		}
		o.set(target, &pending{removed: true})
		return nil
	}

	src, err := o.resolve(f.OldName, true)
	if err != nil {
		return err
	}
	target := src
	if f.IsRename || f.IsCopy {
		if target, err = o.resolve(f.NewName, false); err != nil {
			return err
		}
	}

	in, mode, err := o.read(src)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := gitdiff.Apply(&out, bytes.NewReader(in), f); err != nil {
		return err
	}
	o.set(target, &pending{content: out.Bytes(), mode: modeOr(f.NewMode, mode)})
	if f.IsRename && src != target {
		o.set(src, &pending{removed: true})
	}
	return nil
}

func modeOr(m, fallback os.FileMode) os.FileMode {
	if p := m.Perm(); p != 0 {
		return p
	}
	return fallback
}

// resolve maps a patch path onto the tree. Git patches arrive with the a/ and
// b/ prefixes already removed; traditional diffs may still carry a leading
// directory, which is dropped when the path does not exist as written.
func (o *overlay) resolve(name string, mustExist bool) (string, error) {
	name = filepath.FromSlash(name)
	candidates := []string{name}
	if _, rest, ok := strings.Cut(name, string(filepath.Separator)); ok {
		candidates = append(candidates, rest)
	}

	for _, c := range candidates {
		if !filepath.IsLocal(c) {
			return "", fmt.Errorf("path %q escapes the source tree", name)
		}
	}

	for _, c := range candidates {
		p := filepath.Join(o.dir, c)
		if o.exists(p) {
			return p, nil
		}
	}
	if mustExist {
		return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}

	// new file: drop a b/ prefix, otherwise keep the name as written
	if strings.HasPrefix(filepath.ToSlash(name), "b/") && len(candidates) > 1 {
		return filepath.Join(o.dir, candidates[1]), nil
	}
	return filepath.Join(o.dir, name), nil
}

// original is the on-disk state of a path before commit.
type original struct {
	path    string
	content []byte
	mode    os.FileMode
	existed bool
}

// absent reports whether err means path cannot exist, including a parent
// that is not a directory.
func absent(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist) || stderrors.Is(err, syscall.ENOTDIR)
}

func snapshot(path string) (original, error) {
	st, err := os.Stat(path)
	if absent(err) {
		return original{path: path}, nil
	}
	if err != nil {
		return original{}, err
	}
	in, err := os.ReadFile(path)
	if err != nil {
		return original{}, err
	}
	return original{path: path, content: in, mode: st.Mode().Perm(), existed: true}, nil
}

func (s original) restore() error {
	if !s.existed {
		if err := os.Remove(s.path); err != nil && !absent(err) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, s.content, s.mode); err != nil {
		return err
	}
	return os.Chmod(s.path, s.mode)
}

// commit writes the overlay to disk. When a write fails, the files already
// touched are restored to their snapshot.
func (o *overlay) commit() error {
	snapshots := make([]original, 0, len(o.order))
	for _, path := range o.order {
		s, err := snapshot(path)
		if err != nil {
			return err
		}
		snapshots = append(snapshots, s)
	}

	for i, path := range o.order {
		if err := write(path, o.files[path]); err != nil {
			for j := i; j >= 0; j-- {
				if rerr := snapshots[j].restore(); rerr != nil {
					slog.Error("failed to restore file after patch failure", "path", snapshots[j].path, "error", rerr)
				}
			}
			return err
		}
	}
	return nil
}

func write(path string, p *pending) error {
	if p.removed {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, p.content, p.mode); err != nil {
		return err
	}
	return os.Chmod(path, p.mode)
}
