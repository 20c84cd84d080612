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
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var libraryExtensions = []string{".so", ".lib", ".a", ".dylib", ".bc"}

// CollectLibs returns the link names of the libraries directly in libDir:
// files ending in .so, .a, .dylib, .lib or .bc, with the extension and,
// except for .lib, a leading "lib" removed. Versioned names such as
// libfoo.so.1 are skipped. The result is sorted and free of duplicates.
// A missing libDir yields no names.
func CollectLibs(libDir string) ([]string, error) {
	entries, err := os.ReadDir(libDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if !slices.Contains(libraryExtensions, ext) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ext)
		if ext != ".lib" {
			name = strings.TrimPrefix(name, "lib")
		}
		if name != "" {
			names = append(names, name)
		}
	}

	slices.Sort(names)
	return slices.Compact(names), nil
}
