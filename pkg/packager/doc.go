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

// Package packager turns an installed SDK build into a consumable package.
//
// Package runs the install step (install/strip for Release builds) into the
// package folder and copies the SDK's test interface headers, which the
// install rules omit, under include/AVSCommon/SDKInterfaces/test.
//
// Export then collects the library names from lib/, and writes the package
// metadata next to them:
//
//	package-info.yaml                                  names, libs, settings, options
//	lib/pkgconfig/AlexaClientSDK.pc                    pkg-config lookup
//	lib/cmake/AlexaClientSDK/FindAlexaClientSDK.cmake  CMake find_package lookup
//	checksums.txt                                      sha256 of every file
package packager
