/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
)

// memTokenStore stubs the OS keyring for tests.
type memTokenStore struct {
	values map[string]string
}

func (m *memTokenStore) Get(service, key string) (string, error) {
	return m.values[service+"/"+key], nil
}
func (m *memTokenStore) Set(service, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[service+"/"+key] = value
	return nil
}
func (m *memTokenStore) Delete(service, key string) error {
	delete(m.values, service+"/"+key)
	return nil
}

func withTempHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("AppData", dir)
	t.Setenv("USERPROFILE", dir)
	return dir
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	withTempHome(t)
	old := tokenStore
	tokenStore = &memTokenStore{}
	defer func() { tokenStore = old }()

	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
	def := Defaults()
	if cfg.Autosave.DebounceMs != def.Autosave.DebounceMs {
		t.Fatalf("debounce default mismatch: %d", cfg.Autosave.DebounceMs)
	}
	if !cfg.Editor.SnapEnabled || !cfg.Editor.GridEnabled {
		t.Fatalf("expected snapping and grid enabled by default")
	}
}

func TestSaveAndReloadRoundTrip(t *testing.T) {
	withTempHome(t)
	old := tokenStore
	mem := &memTokenStore{}
	tokenStore = mem
	defer func() { tokenStore = old }()

	cfg := Defaults()
	cfg.Backend.BaseURL = "https://canvas.example.com"
	cfg.Autosave.DebounceMs = 650
	cfg.Editor.SnapEnabled = false

	if err := Save(cfg, "secret-token"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}

	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backend.BaseURL != "https://canvas.example.com" {
		t.Fatalf("base url not persisted: %q", got.Backend.BaseURL)
	}
	if got.Autosave.DebounceMs != 650 {
		t.Fatalf("debounce not persisted: %d", got.Autosave.DebounceMs)
	}
	if got.Editor.SnapEnabled {
		t.Fatalf("snap_enabled=false not persisted")
	}
	if tok != "secret-token" {
		t.Fatalf("token not restored: %q", tok)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	withTempHome(t)
	old := tokenStore
	tokenStore = &memTokenStore{}
	defer func() { tokenStore = old }()

	if err := Save(Defaults(), ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv(EnvBackendURL, "http://127.0.0.1:9999")
	t.Setenv(EnvAutosaveDebounce, "1000")
	t.Setenv(EnvSnapEnabled, "false")

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "http://127.0.0.1:9999" {
		t.Fatalf("env base url override lost: %q", cfg.Backend.BaseURL)
	}
	if cfg.Autosave.DebounceMs != 1000 {
		t.Fatalf("env debounce override lost: %d", cfg.Autosave.DebounceMs)
	}
	if cfg.Editor.SnapEnabled {
		t.Fatalf("env snap override lost")
	}
	if name, ok := EnvOverrideFor("backend.base_url"); !ok || name != EnvBackendURL {
		t.Fatalf("EnvOverrideFor backend.base_url: %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("logging.level"); ok {
		t.Fatalf("logging.level should not be overridden")
	}
}

func TestConfigPathUnderUserScope(t *testing.T) {
	dir := withTempHome(t)
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute path, got %q", path)
	}
	if rel, err := filepath.Rel(dir, path); err != nil || rel == "" {
		t.Fatalf("config path %q not under temp home %q", path, dir)
	}
}
