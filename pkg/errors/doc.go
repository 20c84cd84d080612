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

// Package errors provides structured error types for better observability
// and programmatic error handling across the recipe runner.
//
// Each pipeline phase reports failures with its own code so callers can tell a
// failed download apart from a patch conflict or a failed install:
//
//	RETRIEVAL_ERROR      source fetch or extraction failed
//	PATCH_ERROR          a patch could not be applied
//	CONFIGURATION_ERROR  a dependency path could not be resolved
//	COMPILE_ERROR        the build tool returned an error
//	PACKAGING_ERROR      install or header copy failed
//
// Example usage:
//
//	err := errors.WrapWithContext(
//	    errors.ErrCodePatch,
//	    "failed to apply patch",
//	    cause,
//	    map[string]any{
//	        "phase": "build",
//	        "patch": name,
//	    },
//	)
package errors
