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

// Package serializer provides utilities for serializing data to various formats.
//
// The package supports three output formats:
//   - JSON: Machine-readable structured data with proper indentation
//   - YAML: Human-readable configuration format (profiles, state, package info)
//   - Table: Human-readable tabular output with flattened keys
//
// Usage:
//
//	writer := serializer.NewFileWriterOrStdout(serializer.FormatYAML, path)
//	defer writer.Close()
//	if err := writer.Serialize(ctx, info); err != nil {
//		return err
//	}
//
// Reading a profile back:
//
//	p, err := serializer.FromFile[recipe.Profile]("profile.yaml")
package serializer

import "context"

// Serializer is an interface for serializing data.
// Implementations of this interface can serialize data to various formats
// such as JSON, YAML, or plain text.
type Serializer interface {
	Serialize(ctx context.Context, v any) error
}

// Closer is an optional interface that Serializers can implement
// if they need to release resources (e.g., close file handles).
type Closer interface {
	Close() error
}
