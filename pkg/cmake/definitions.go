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

package cmake

import (
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/deps"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/errors"
	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/recipe"
)

// Boolean definition values.
const (
	On  = "ON"
	Off = "OFF"
)

// Definitions maps CMake cache variable names to values.
type Definitions map[string]string

// Keys returns the variable names sorted alphabetically.
func (d Definitions) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// Args renders the definitions as sorted -DNAME=VALUE arguments.
func (d Definitions) Args() []string {
	args := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		args = append(args, fmt.Sprintf("-D%s=%s", k, d[k]))
	}
	return args
}

// Dependencies resolves installed dependency packages.
type Dependencies interface {
	Get(name string) (deps.Info, error)
	Names() []string
}

func onOff(b bool) string {
	if b {
		return On
	}
	return Off
}

var optionDefinitions = []struct {
	option recipe.OptionName
	name   string
}{
	{recipe.OptWithOpus, "OPUS"},
	{recipe.OptWithEndpointControllers, "ENABLE_ALL_ENDPOINT_CONTROLLERS"},
	{recipe.OptWithMetrics, "METRICS"},
	{recipe.OptWithSensitiveLogs, "ACSDK_EMIT_SENSITIVE_LOGS"},
	{recipe.OptWithLatencyLogs, "ACSDK_LATENCY_LOG"},
	{recipe.OptBuildTesting, "BUILD_TESTING"},
	{recipe.OptWithCaptions, "CAPTIONS"},
	{recipe.OptWithCurlHTTPVersion2PriorKnowledge, "ACSDK_ENABLE_CURL_HTTP_VERSION_2_PRIOR_KNOWLEDGE"},
}

var fixedDefinitions = Definitions{
	"RAPIDJSON_MEM_OPTIMIZATION": Off,
}

var platformDefinitions = []struct {
	platform recipe.Platform
	defs     Definitions
}{
	{
		platform: recipe.Platform{OS: recipe.OSNeutrino},
		defs:     Definitions{"FILE_SYSTEM_UTILS": Off},
	},
	{
		// Intentionally OFF for Android targets.
		platform: recipe.Platform{OS: recipe.OSAndroid},
		defs:     Definitions{"ANDROID": Off},
	},
}

// PlatformDefinitions returns the definitions the platform table adds for s,
// applying less specific entries first.
func PlatformDefinitions(s recipe.Settings) Definitions {
	type match struct {
		specificity int
		defs        Definitions
	}
	var matched []match
	for _, pd := range platformDefinitions {
		if pd.platform.Matches(s) {
			matched = append(matched, match{pd.platform.Specificity(), pd.defs})
		}
	}
	slices.SortStableFunc(matched, func(a, b match) int { return a.specificity - b.specificity })

	out := Definitions{}
	for _, m := range matched {
		maps.Copy(out, m.defs)
	}
	return out
}

// BuildDefinitions translates cfg into the CMake definitions for the SDK.
// packageDir becomes the install prefix. OpenSSL must be resolvable through
// tree, and webvtt as well when captions are enabled.
func BuildDefinitions(cfg *recipe.Config, tree Dependencies, packageDir string) (Definitions, error) {
	configErr := func(msg string, cause error) error {
		return errors.WrapWithContext(errors.ErrCodeConfiguration, msg, cause, map[string]any{"settings": cfg.Settings().String()})
	}

	opts := cfg.Options()
	defs := Definitions{}
	for _, od := range optionDefinitions {
		v, err := opts.Get(od.option)
		if err != nil {
			return nil, configErr("unknown option", err)
		}
		defs[od.name] = onOff(v)
	}
	maps.Copy(defs, fixedDefinitions)

	if opts.WithCaptions {
		slog.Info("caption is enabled")
		webvtt, err := tree.Get(recipe.WebVTTName)
		if err != nil {
			return nil, configErr("captions require the webvtt package", err)
		}
		defs["LIBWEBVTT_LIB_PATH"] = filepath.Join(webvtt.RootPath, "lib", "libwebvtt.a")
		defs["LIBWEBVTT_INCLUDE_DIR"] = filepath.Join(webvtt.RootPath, "include")
	}

	maps.Copy(defs, PlatformDefinitions(cfg.Settings()))

	ossl, err := tree.Get(recipe.OpenSSLName)
	if err != nil {
		return nil, configErr("openssl package not found", err)
	}
	crypto, err := ossl.FindLibrary("libcrypto")
	if err != nil {
		return nil, configErr("no crypto library found", err)
	}
	include, err := ossl.IncludeDir()
	if err != nil {
		return nil, configErr("openssl has no include directory", err)
	}
	defs["CRYPTO_LIBRARY"] = crypto
	defs["CRYPTO_INCLUDE_DIR"] = include

	maps.Copy(defs, helperDefinitions(cfg, tree, packageDir))
	return defs, nil
}

func helperDefinitions(cfg *recipe.Config, tree Dependencies, packageDir string) Definitions {
	s := cfg.Settings()
	std := s.CppStd
	if std == "" {
		std = recipe.CppStd
	}

	defs := Definitions{
		"CMAKE_BUILD_TYPE":     string(s.BuildType),
		"CMAKE_INSTALL_PREFIX": packageDir,
		"CMAKE_CXX_STANDARD":   std,
	}

	var prefixes []string
	for _, name := range tree.Names() {
		if info, err := tree.Get(name); err == nil && info.RootPath != "" {
			prefixes = append(prefixes, info.RootPath)
		}
	}
	if len(prefixes) > 0 {
		defs["CMAKE_PREFIX_PATH"] = strings.Join(prefixes, ";")
	}
	return defs
}
