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
	"time"

	"github.com/zalando/go-keyring"
)

// isolate points the config file into a temp dir and mocks the keyring.
func isolate(t *testing.T) string {
	t.Helper()
	keyring.MockInit()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	t.Setenv(EnvGenerationToken, "")
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("token = %q, want empty", tok)
	}
	if cfg.Storage.Driver != DriverFile || cfg.Generation.MaxInFlight != 4 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestEnvOverridesGenerationURL(t *testing.T) {
	isolate(t)
	t.Setenv(EnvGenerationURL, "https://gen.example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Generation.BaseURL, "https://gen.example.test:8443"; got != want {
		t.Fatalf("Generation.BaseURL = %q, want %q", got, want)
	}
	if name, ok := EnvOverrideFor("generation.base_url"); !ok || name != EnvGenerationURL {
		t.Fatalf("EnvOverrideFor = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("generation.timeout_ms"); ok {
		t.Fatalf("timeout should not be reported as overridden")
	}
}

func TestEnvOverridesStorageAndHistory(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageDriver, "SQLite")
	t.Setenv(EnvStorageDir, "/tmp/docs")
	t.Setenv(EnvHistoryCoalesce, "750")
	t.Setenv(EnvHistoryMax, "100")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Driver != DriverSQLite || cfg.Storage.Dir != "/tmp/docs" {
		t.Fatalf("storage overrides not applied: %#v", cfg.Storage)
	}
	h := cfg.HistoryOptions()
	if h.MaxEntries != 100 || h.MinInterval != 750*time.Millisecond {
		t.Fatalf("history options = %#v", h)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageDriver, "mongo")
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected validation error for unknown driver")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("canvas: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Canvas.Width = 1920
	cfg.Canvas.Background = "#101010"
	cfg.Storage.Driver = DriverPostgres
	cfg.Storage.DSN = "postgres://u@h/db"
	cfg.General.Autosave = false
	if err := Save(cfg, "tok-123"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tok != "tok-123" {
		t.Fatalf("token = %q, want from keyring", tok)
	}
	if got.Canvas.Width != 1920 || got.Canvas.Background != "#101010" || got.Storage.DSN != "postgres://u@h/db" || got.General.Autosave {
		t.Fatalf("round trip lost fields: %#v", got)
	}
	if err := ForgetToken(); err != nil {
		t.Fatalf("ForgetToken: %v", err)
	}
	if err := ForgetToken(); err != nil {
		t.Fatalf("ForgetToken on missing token: %v", err)
	}
	if _, tok, _ := Load(); tok != "" {
		t.Fatalf("token survived ForgetToken: %q", tok)
	}
}

func TestEnvTokenWinsOverKeyring(t *testing.T) {
	isolate(t)
	if err := Save(Defaults(), "from-keyring"); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvGenerationToken, "from-env")
	if _, tok, _ := Load(); tok != "from-env" {
		t.Fatalf("token = %q", tok)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/gcm.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/gcm.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	opts := dst.LogOptions()
	if opts.Level != "debug" || !opts.AddSource {
		t.Fatalf("LogOptions = %#v", opts)
	}
}

func TestMergeKeepsDefaultsForZeroValues(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	src.General.Autosave = true
	mergeInto(&dst, &src)
	if dst.Canvas.Width != 1080 || dst.Storage.Driver != DriverFile || dst.Generation.TimeoutMs != 60000 {
		t.Fatalf("zero file values overwrote defaults: %#v", dst)
	}
	if dst.Generation.Timeout() != time.Minute {
		t.Fatalf("Timeout = %v", dst.Generation.Timeout())
	}
}

func TestStorageDirDefaultsNextToConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Dir = "/data/docs"
	if d, _ := cfg.StorageDir(); d != "/data/docs" {
		t.Fatalf("StorageDir = %q", d)
	}
	cfg.Storage.Dir = ""
	d, err := cfg.StorageDir()
	if err != nil {
		t.Skipf("no user config dir: %v", err)
	}
	if filepath.Base(d) != "documents" {
		t.Fatalf("StorageDir = %q", d)
	}
}

func TestSetTokenAndOverridableKeys(t *testing.T) {
	isolate(t)
	if err := SetToken("  "); err == nil {
		t.Fatalf("expected error for blank token")
	}
	if err := SetToken("abc\n"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, tok, _ := Load(); tok != "abc" {
		t.Fatalf("token = %q", tok)
	}
	keys := OverridableKeys()
	if len(keys) != len(envKeys) || keys[0] != "general.crash_reports" {
		t.Fatalf("keys = %v", keys)
	}
}
