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
	"strings"
)

// Pinned dependency references. sqlite3 and opus are locked to a recipe
// revision; libcurl and webvtt come from the active user/channel.
const (
	SQLite3Reference = "sqlite3/3.37.2#8e4989a1ee5d3237a25a911fbcb19097"
	OpusReference    = "opus/1.3.1#5132ab8db7b69dd8e26466e0b3b017dd"

	LibcurlName    = "libcurl"
	LibcurlVersion = "8.0.1"
	WebVTTName     = "webvtt"
	WebVTTVersion  = "1.0"
	OpenSSLName    = "openssl"
)

// DependencySpec identifies one required package.
type DependencySpec struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Channel  string `json:"channel,omitempty" yaml:"channel,omitempty"`
	Revision string `json:"revision,omitempty" yaml:"revision,omitempty"`
}

// Reference renders the spec as name/version[@user/channel][#revision].
func (d DependencySpec) Reference() string {
	var b strings.Builder
	b.WriteString(d.Name)
	b.WriteByte('/')
	b.WriteString(d.Version)
	if d.User != "" || d.Channel != "" {
		b.WriteByte('@')
		b.WriteString(d.User)
		b.WriteByte('/')
		b.WriteString(d.Channel)
	}
	if d.Revision != "" {
		b.WriteByte('#')
		b.WriteString(d.Revision)
	}
	return b.String()
}

func (d DependencySpec) String() string {
	return d.Reference()
}

// ParseReference parses a name/version[@user/channel][#revision] reference.
func ParseReference(ref string) (DependencySpec, error) {
	var d DependencySpec
	rest := strings.TrimSpace(ref)

	if before, rev, ok := strings.Cut(rest, "#"); ok {
		if rev == "" {
			return d, fmt.Errorf("invalid reference %q: empty revision", ref)
		}
		d.Revision = rev
		rest = before
	}

	if before, uc, ok := strings.Cut(rest, "@"); ok {
		user, channel, ok := strings.Cut(uc, "/")
		if !ok || user == "" || channel == "" {
			return d, fmt.Errorf("invalid reference %q: expected @user/channel", ref)
		}
		d.User, d.Channel = user, channel
		rest = before
	}

	name, version, ok := strings.Cut(rest, "/")
	if !ok || name == "" || version == "" || strings.Contains(version, "/") {
		return d, fmt.Errorf("invalid reference %q: expected name/version", ref)
	}
	d.Name, d.Version = name, version
	return d, nil
}

func mustParseReference(ref string) DependencySpec {
	d, err := ParseReference(ref)
	if err != nil {
		panic(err)
	}
	return d
}

// DeclareRequirements returns the packages the SDK build requires for cfg:
// the pinned sqlite3 and opus, libcurl from the active user/channel, and
// webvtt when captions are enabled. The order is stable.
func DeclareRequirements(cfg *Config) []DependencySpec {
	reqs := []DependencySpec{
		mustParseReference(SQLite3Reference),
		mustParseReference(OpusReference),
		{Name: LibcurlName, Version: LibcurlVersion, User: cfg.User(), Channel: cfg.Channel()},
	}
	if cfg.Options().WithCaptions {
		reqs = append(reqs, DependencySpec{Name: WebVTTName, Version: WebVTTVersion, User: cfg.User(), Channel: cfg.Channel()})
	}
	return reqs
}
