/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package blueprint stores reusable frame templates as JSON files. Files
// are validated against an embedded JSON schema before use, so a broken
// template in the library directory fails loudly instead of producing a
// half-formed frame.
package blueprint

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"storycanvas/internal/domain"
	applog "storycanvas/internal/log"
)

//go:embed schema.json
var schemaBytes []byte

// Ext is the blueprint file extension.
const Ext = ".blueprint.json"

// Blueprint is one reusable frame template. Style and content carry the
// same tagged envelopes as the canvas wire format; geometry is optional
// and falls back to the per-type defaults on instantiation.
type Blueprint struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        domain.FrameType `json:"type"`
	Geometry    *domain.Rect    `json:"geometry,omitempty"`
	Style       json.RawMessage `json:"style,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
	Locked      bool            `json:"locked,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
}

// Validate checks raw blueprint JSON against the embedded schema and the
// variant typing rules the schema cannot express.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("blueprint invalid: %s", strings.Join(msgs, "; "))
	}

	var b Blueprint
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("decode blueprint: %w", err)
	}
	return b.checkVariants()
}

func (b Blueprint) checkVariants() error {
	if len(b.Style) > 0 {
		s, err := domain.UnmarshalStyle(b.Style)
		if err != nil {
			return fmt.Errorf("blueprint %s: %w", b.Name, err)
		}
		if s.StyleType() != b.Type {
			return fmt.Errorf("blueprint %s: style variant %s does not match type %s", b.Name, s.StyleType(), b.Type)
		}
	}
	if len(b.Content) > 0 {
		c, err := domain.UnmarshalContent(b.Content)
		if err != nil {
			return fmt.Errorf("blueprint %s: %w", b.Name, err)
		}
		if c.ContentType() != b.Type {
			return fmt.Errorf("blueprint %s: content variant %s does not match type %s", b.Name, c.ContentType(), b.Type)
		}
	}
	return nil
}

// Load reads and validates one blueprint file.
func Load(path string) (Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blueprint{}, fmt.Errorf("read blueprint: %w", err)
	}
	if err := Validate(data); err != nil {
		return Blueprint{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	var b Blueprint
	if err := json.Unmarshal(data, &b); err != nil {
		return Blueprint{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return b, nil
}

// Save writes a blueprint into dir, named after the blueprint. The write
// goes through a temp file and rename.
func Save(dir string, b Blueprint) (string, error) {
	if strings.TrimSpace(b.Name) == "" {
		return "", errors.New("blueprint name is required")
	}
	if !b.Type.Valid() {
		return "", fmt.Errorf("unknown frame type %q", b.Type)
	}
	if err := b.checkVariants(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure blueprint dir: %w", err)
	}

	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode blueprint: %w", err)
	}
	path := filepath.Join(dir, slugify(b.Name)+Ext)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write blueprint: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename blueprint: %w", err)
	}
	return path, nil
}

// LoadDir reads every blueprint in dir, sorted by name. Invalid files are
// skipped with a warning so one bad template does not hide the library.
func LoadDir(dir string) ([]Blueprint, error) {
	l := applog.WithOperation(applog.WithComponent("blueprint"), "loaddir")
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blueprint dir: %w", err)
	}

	var out []Blueprint
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Ext) {
			continue
		}
		b, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			l.Warn("skipping invalid blueprint", slog.String("file", e.Name()), slog.Any("err", err))
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Instantiate turns a blueprint into a creation request for a page. The
// type-specific defaults fill whatever the template leaves out.
func (b Blueprint) Instantiate(pageID string) (domain.CreateFrameInput, error) {
	in := domain.CreateFrameInput{
		PageID:   pageID,
		Type:     b.Type,
		Geometry: b.Geometry,
		Locked:   b.Locked,
	}
	if len(b.Style) > 0 {
		s, err := domain.UnmarshalStyle(b.Style)
		if err != nil {
			return domain.CreateFrameInput{}, err
		}
		in.Style = s
	}
	if len(b.Content) > 0 {
		c, err := domain.UnmarshalContent(b.Content)
		if err != nil {
			return domain.CreateFrameInput{}, err
		}
		in.Content = c
	}
	return in, nil
}

// slugify flattens a display name into a safe file stem.
func slugify(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}
	s := strings.Trim(sb.String(), "-")
	if s == "" {
		s = "blueprint"
	}
	return s
}
