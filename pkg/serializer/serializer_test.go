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

package serializer

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type testConfig struct {
	Name  string `json:"name" yaml:"name"`
	Value int    `json:"value" yaml:"value"`
}

func TestWriter_SerializeJSON(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriter(FormatJSON, &buf)

	data := []testConfig{{Name: "OPUS", Value: 1}, {Name: "METRICS", Value: 0}}
	if err := writer.Serialize(context.Background(), data); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	var result []testConfig
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to unmarshal JSON: %v", err)
	}
	if len(result) != 2 || result[0].Name != "OPUS" {
		t.Errorf("Unexpected data: %+v", result)
	}
}

func TestWriter_SerializeYAML(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriter(FormatYAML, &buf)

	if err := writer.Serialize(context.Background(), testConfig{Name: "CAPTIONS", Value: 2}); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	var result testConfig
	if err := yaml.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("Failed to unmarshal YAML: %v", err)
	}
	if result.Name != "CAPTIONS" || result.Value != 2 {
		t.Errorf("Unexpected data: %+v", result)
	}
}

func TestWriter_SerializeTable(t *testing.T) {
	var buf bytes.Buffer
	writer := NewWriter(FormatTable, &buf)

	data := map[string]string{"OPUS": "ON", "CAPTIONS": "OFF"}
	if err := writer.Serialize(context.Background(), data); err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "FIELD") {
		t.Errorf("expected table header, got %q", out)
	}
	// keys are sorted
	if strings.Index(out, "CAPTIONS") > strings.Index(out, "OPUS") {
		t.Errorf("expected sorted keys:\n%s", out)
	}
}

func TestNewWriter_UnknownFormatDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(Format("xml"), &buf)
	if w.format != FormatJSON {
		t.Errorf("format = %q, want json", w.format)
	}
}

func TestWriteFileAndFromFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		file string
	}{
		{name: "yaml", file: "state.yaml"},
		{name: "json", file: "state.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "nested", tt.file)
			in := testConfig{Name: "sqlite3:shared", Value: 1}

			if err := WriteFile(path, FormatFromPath(path), in); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			got, err := FromFile[testConfig](path)
			if err != nil {
				t.Fatalf("FromFile() error = %v", err)
			}
			if *got != in {
				t.Errorf("FromFile() = %+v, want %+v", *got, in)
			}

			entries, err := os.ReadDir(filepath.Dir(path))
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				if strings.HasPrefix(e.Name(), ".") {
					t.Errorf("temporary file left behind: %s", e.Name())
				}
			}
		})
	}
}

func TestFromFile_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("name: x\nvalue: 1\ntypo: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := FromFile[testConfig](path); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestNewReader_TableRejected(t *testing.T) {
	if _, err := NewReader(FormatTable, strings.NewReader("")); err == nil {
		t.Error("expected error for table format")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"a.json":    FormatJSON,
		"a.JSON":    FormatJSON,
		"a.yaml":    FormatYAML,
		"a.yml":     FormatYAML,
		"a.profile": FormatYAML,
	}
	for in, want := range tests {
		if got := FormatFromPath(in); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
