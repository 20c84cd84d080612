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
	"errors"
	"fmt"
	"strings"

	"github.com/NVIDIA/avs-device-sdk-recipe/pkg/version"
)

const (
	// PackageName is the name the SDK package is published under.
	PackageName = "avs-device-sdk"

	// DefaultVersion is the SDK release built when none is given.
	DefaultVersion = "1.26.0"

	// DefaultUser and DefaultChannel namespace the libcurl and webvtt requirements.
	DefaultUser    = "aac"
	DefaultChannel = "stable"
)

// Config is the immutable recipe configuration for one invocation.
// Use NewConfig to construct and With to derive modified copies.
type Config struct {
	name       string
	version    string
	user       string
	channel    string
	settings   Settings
	options    Options
	depOptions DependencyOptions
}

// Getter methods for read-only access

// Name returns the package name.
func (c *Config) Name() string {
	return c.name
}

// Version returns the SDK release version.
func (c *Config) Version() string {
	return c.version
}

// User returns the package namespace user.
func (c *Config) User() string {
	return c.user
}

// Channel returns the package namespace channel.
func (c *Config) Channel() string {
	return c.channel
}

// Settings returns the build settings.
func (c *Config) Settings() Settings {
	return c.settings
}

// Options returns the recipe options.
func (c *Config) Options() Options {
	return c.options
}

// DependencyOptions returns a copy of the dependency options.
func (c *Config) DependencyOptions() DependencyOptions {
	return c.depOptions.Clone()
}

// Requirements returns the packages required by this configuration.
func (c *Config) Requirements() []DependencySpec {
	return DeclareRequirements(c)
}

// Reference renders the package reference, e.g. avs-device-sdk/1.26.0@aac/stable.
func (c *Config) Reference() string {
	return DependencySpec{Name: c.name, Version: c.version, User: c.user, Channel: c.channel}.Reference()
}

// Validate checks that the configuration describes a buildable package.
func (c *Config) Validate() error {
	var errs []error
	if _, err := version.ParseRelease(c.version); err != nil {
		errs = append(errs, fmt.Errorf("invalid version %q: %w", c.version, err))
	}
	if strings.ContainsAny(c.user, "/@#") || strings.ContainsAny(c.channel, "/@#") {
		errs = append(errs, fmt.Errorf("invalid user/channel %q/%q", c.user, c.channel))
	}
	if (c.user == "") != (c.channel == "") {
		errs = append(errs, errors.New("user and channel must be set together"))
	}
	if err := c.settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// With returns a copy of c with opts applied. c is not modified.
func (c *Config) With(opts ...Option) *Config {
	out := &Config{
		name:       c.name,
		version:    c.version,
		user:       c.user,
		channel:    c.channel,
		settings:   c.settings,
		options:    c.options,
		depOptions: c.depOptions.Clone(),
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// Resolve returns a copy of c with the C++ standard pinned and the platform
// dependency option overrides applied, along with the overrides used.
func (c *Config) Resolve() (*Config, []OptionOverride) {
	deps, overrides := ResolvePlatformOptions(c.settings, c.depOptions)
	out := c.With(WithDependencyOptions(deps))
	out.settings.CppStd = CppStd
	return out, overrides
}

// Option configures a Config.
type Option func(*Config)

// WithVersion sets the SDK release version. A leading "v" is dropped.
func WithVersion(v string) Option {
	return func(c *Config) {
		c.version = strings.TrimPrefix(strings.TrimSpace(v), "v")
	}
}

// WithUserChannel sets the package namespace.
func WithUserChannel(user, channel string) Option {
	return func(c *Config) {
		c.user = user
		c.channel = channel
	}
}

// WithSettings replaces the build settings.
func WithSettings(s Settings) Option {
	return func(c *Config) {
		c.settings = s
	}
}

// WithOptions replaces the recipe options.
func WithOptions(o Options) Option {
	return func(c *Config) {
		c.options = o
	}
}

// WithOption sets a single recipe option. Unknown names are ignored;
// use ParseAssignments to validate user input.
func WithOption(name OptionName, value bool) Option {
	return func(c *Config) {
		if o, err := c.options.With(name, value); err == nil {
			c.options = o
		}
	}
}

// WithDependencyOptions merges deps into the dependency options.
func WithDependencyOptions(deps DependencyOptions) Option {
	return func(c *Config) {
		for k, v := range deps {
			c.depOptions[k] = NormalizeDependencyValue(v)
		}
	}
}

// WithDependencyOption sets a single dependency option.
func WithDependencyOption(pkg, option, value string) Option {
	return func(c *Config) {
		c.depOptions[dependencyKey(pkg, option)] = NormalizeDependencyValue(value)
	}
}

// ParseAssignments converts "name=value" and "package:name=value" strings
// into config options, rejecting unknown recipe options and bad booleans.
func ParseAssignments(assignments []string) ([]Option, error) {
	opts := make([]Option, 0, len(assignments))
	for _, s := range assignments {
		a, err := ParseAssignment(s)
		if err != nil {
			return nil, err
		}

		if a.Package != "" {
			opts = append(opts, WithDependencyOption(a.Package, a.Name, NormalizeDependencyValue(a.Value)))
			continue
		}

		name := OptionName(a.Name)
		if _, ok := optionFields[name]; !ok {
			return nil, fmt.Errorf("unknown option %q, supported values: %v", a.Name, OptionNames())
		}
		b, err := ParseBool(a.Value)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", a.Name, err)
		}
		opts = append(opts, WithOption(name, b))
	}
	return opts, nil
}

// NewConfig returns a Config with default values and opts applied.
func NewConfig(opts ...Option) *Config {
	c := &Config{
		name:       PackageName,
		version:    DefaultVersion,
		user:       DefaultUser,
		channel:    DefaultChannel,
		settings:   HostSettings(),
		options:    DefaultOptions(),
		depOptions: DefaultDependencyOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConfigSpec is the serializable form of a Config.
type ConfigSpec struct {
	Name              string            `json:"name" yaml:"name"`
	Version           string            `json:"version" yaml:"version"`
	User              string            `json:"user,omitempty" yaml:"user,omitempty"`
	Channel           string            `json:"channel,omitempty" yaml:"channel,omitempty"`
	Settings          Settings          `json:"settings" yaml:"settings"`
	Options           Options           `json:"options" yaml:"options"`
	DependencyOptions DependencyOptions `json:"dependencyOptions" yaml:"dependencyOptions"`
}

// Spec returns the serializable form of c.
func (c *Config) Spec() ConfigSpec {
	return ConfigSpec{
		Name:              c.name,
		Version:           c.version,
		User:              c.user,
		Channel:           c.channel,
		Settings:          c.settings,
		Options:           c.options,
		DependencyOptions: c.depOptions.Clone(),
	}
}

// FromSpec rebuilds a Config from its serialized form.
func FromSpec(s ConfigSpec) *Config {
	name := s.Name
	if name == "" {
		name = PackageName
	}
	return &Config{
		name:       name,
		version:    s.Version,
		user:       s.User,
		channel:    s.Channel,
		settings:   s.Settings,
		options:    s.Options,
		depOptions: s.DependencyOptions.Clone(),
	}
}
