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

package recipe

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// OptionName identifies one of the recipe's own boolean options.
type OptionName string

// Recipe options.
const (
	OptWithOpus                           OptionName = "with_opus"
	OptWithEndpointControllers            OptionName = "with_endpoint_controllers"
	OptWithMetrics                        OptionName = "with_metrics"
	OptWithSensitiveLogs                  OptionName = "with_sensitive_logs"
	OptWithLatencyLogs                    OptionName = "with_latency_logs"
	OptBuildTesting                       OptionName = "build_testing"
	OptWithCurlHTTPVersion2PriorKnowledge OptionName = "with_curl_http_version_2_prior_knowledge"
	OptWithCaptions                       OptionName = "with_captions"
)

// Options holds the recipe's own options.
type Options struct {
	WithOpus                           bool `json:"with_opus" yaml:"with_opus"`
	WithEndpointControllers            bool `json:"with_endpoint_controllers" yaml:"with_endpoint_controllers"`
	WithMetrics                        bool `json:"with_metrics" yaml:"with_metrics"`
	WithSensitiveLogs                  bool `json:"with_sensitive_logs" yaml:"with_sensitive_logs"`
	WithLatencyLogs                    bool `json:"with_latency_logs" yaml:"with_latency_logs"`
	BuildTesting                       bool `json:"build_testing" yaml:"build_testing"`
	WithCurlHTTPVersion2PriorKnowledge bool `json:"with_curl_http_version_2_prior_knowledge" yaml:"with_curl_http_version_2_prior_knowledge"`
	WithCaptions                       bool `json:"with_captions" yaml:"with_captions"`
}

var optionFields = map[OptionName]func(*Options) *bool{
	OptWithOpus:                           func(o *Options) *bool { return &o.WithOpus },
	OptWithEndpointControllers:            func(o *Options) *bool { return &o.WithEndpointControllers },
	OptWithMetrics:                        func(o *Options) *bool { return &o.WithMetrics },
	OptWithSensitiveLogs:                  func(o *Options) *bool { return &o.WithSensitiveLogs },
	OptWithLatencyLogs:                    func(o *Options) *bool { return &o.WithLatencyLogs },
	OptBuildTesting:                       func(o *Options) *bool { return &o.BuildTesting },
	OptWithCurlHTTPVersion2PriorKnowledge: func(o *Options) *bool { return &o.WithCurlHTTPVersion2PriorKnowledge },
	OptWithCaptions:                       func(o *Options) *bool { return &o.WithCaptions },
}

// DefaultOptions returns the recipe's default option values.
func DefaultOptions() Options {
	return Options{
		WithOpus:                true,
		WithEndpointControllers: true,
		WithMetrics:             true,
		WithCaptions:            true,
	}
}

// OptionNames returns every recipe option name sorted alphabetically.
func OptionNames() []string {
	names := make([]string, 0, len(optionFields))
	for n := range optionFields {
		names = append(names, string(n))
	}
	slices.Sort(names)
	return names
}

// Get returns the value of the named option.
func (o Options) Get(name OptionName) (bool, error) {
	field, ok := optionFields[name]
	if !ok {
		return false, fmt.Errorf("unknown option %q, supported values: %v", name, OptionNames())
	}
	return *field(&o), nil
}

// With returns a copy of o with the named option set to value.
func (o Options) With(name OptionName, value bool) (Options, error) {
	field, ok := optionFields[name]
	if !ok {
		return o, fmt.Errorf("unknown option %q, supported values: %v", name, OptionNames())
	}
	*field(&o) = value
	return o, nil
}

// ParseBool parses the boolean spellings accepted in option assignments.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", s)
	}
}

// FormatBool renders a boolean the way dependency options are written ("True"/"False").
func FormatBool(b bool) string {
	return cases.Title(language.Und).String(strconv.FormatBool(b))
}

// NormalizeDependencyValue renders boolean spellings of a dependency option
// value as "True"/"False" and returns any other value trimmed.
func NormalizeDependencyValue(v string) string {
	if b, err := ParseBool(v); err == nil {
		return FormatBool(b)
	}
	return strings.TrimSpace(v)
}

// DependencyOptions holds options for dependency packages keyed "package:option".
type DependencyOptions map[string]string

// DefaultDependencyOptions returns the dependency option defaults of the recipe.
func DefaultDependencyOptions() DependencyOptions {
	return DependencyOptions{
		"libcurl:shared":           FormatBool(true),
		"libcurl:with_ssl":         "openssl",
		"libcurl:with_nghttp2":     FormatBool(true),
		"libnghttp2:shared":        FormatBool(true),
		"libnghttp2:with_app":      FormatBool(false),
		"openssl:shared":           FormatBool(true),
		"opus:shared":              FormatBool(false),
		"sqlite3:build_executable": FormatBool(false),
	}
}

func dependencyKey(pkg, option string) string {
	return pkg + ":" + option
}

// Get returns the value of a dependency option.
func (d DependencyOptions) Get(pkg, option string) (string, bool) {
	v, ok := d[dependencyKey(pkg, option)]
	return v, ok
}

// With returns a copy of d with the option set.
func (d DependencyOptions) With(pkg, option, value string) DependencyOptions {
	out := d.Clone()
	out[dependencyKey(pkg, option)] = NormalizeDependencyValue(value)
	return out
}

// Clone returns a deep copy of d. A nil receiver yields an empty map.
func (d DependencyOptions) Clone() DependencyOptions {
	out := make(DependencyOptions, len(d))
	maps.Copy(out, d)
	return out
}

// Keys returns the option keys sorted alphabetically.
func (d DependencyOptions) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// Assignment is a parsed "name=value" or "package:name=value" option assignment.
type Assignment struct {
	// Package is empty for the recipe's own options.
	Package string
	Name    string
	Value   string
}

// ParseAssignment parses an option assignment such as "with_captions=False"
// or "openssl:shared=True".
func ParseAssignment(s string) (Assignment, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("invalid option %q, expected name=value", s)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" || value == "" {
		return Assignment{}, fmt.Errorf("invalid option %q, expected name=value", s)
	}

	if pkg, name, ok := strings.Cut(key, ":"); ok {
		if pkg == "" || name == "" {
			return Assignment{}, fmt.Errorf("invalid dependency option %q, expected package:name=value", s)
		}
		return Assignment{Package: pkg, Name: name, Value: value}, nil
	}
	return Assignment{Name: key, Value: value}, nil
}
