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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"gocomposer/internal/history"
	applog "gocomposer/internal/log"
	"gocomposer/internal/notify"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal.

type GeneralConfig struct {
	CrashReports bool `yaml:"crash_reports"`
	// Autosave writes the current document when the process panics.
	Autosave bool `yaml:"autosave"`
}

type CanvasConfig struct {
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	Background string  `yaml:"background"`
	// Timeline resolution for new compositions.
	VideoWidth  int `yaml:"video_width"`
	VideoHeight int `yaml:"video_height"`
}

type HistoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
	CoalesceMs int `yaml:"coalesce_ms"`
}

type GenerationConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	MaxInFlight int    `yaml:"max_in_flight"`
	FetchAssets bool   `yaml:"fetch_assets"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "file" | "sqlite" | "postgres"
	Dir    string `yaml:"dir"`
	DSN    string `yaml:"dsn"`
}

type NotifyConfig struct {
	URL       string `yaml:"url"`
	CrashURL  string `yaml:"crash_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int              `yaml:"config_version"`
	General       GeneralConfig    `yaml:"general"`
	Canvas        CanvasConfig     `yaml:"canvas"`
	History       HistoryConfig    `yaml:"history"`
	Generation    GenerationConfig `yaml:"generation"`
	Storage       StorageConfig    `yaml:"storage"`
	Notify        NotifyConfig     `yaml:"notify"`
	Logging       LoggingConfig    `yaml:"logging"`
}

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{CrashReports: false, Autosave: true},
		Canvas:        CanvasConfig{Width: 1080, Height: 1080, Background: "#ffffff", VideoWidth: 1920, VideoHeight: 1080},
		History:       HistoryConfig{MaxEntries: 0, CoalesceMs: 0},
		Generation:    GenerationConfig{BaseURL: "http://localhost:8090", TimeoutMs: 60000, MaxInFlight: 4, FetchAssets: true},
		Storage:       StorageConfig{Driver: DriverFile},
		Notify:        NotifyConfig{TimeoutMs: 1500},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath        = "GCM_CONFIG"
	EnvGenerationURL     = "GCM_GEN_URL"
	EnvGenerationTimeout = "GCM_GEN_TIMEOUT_MS"
	EnvGenerationMax     = "GCM_GEN_MAX_IN_FLIGHT"
	EnvGenerationToken   = "GCM_GEN_TOKEN"
	EnvHistoryMax        = "GCM_HISTORY_MAX"
	EnvHistoryCoalesce   = "GCM_HISTORY_COALESCE_MS"
	EnvStorageDriver     = "GCM_STORAGE_DRIVER"
	EnvStorageDir        = "GCM_STORAGE_DIR"
	EnvPGDSN             = "GCM_PG_DSN"
	EnvCrashReports      = "GCM_CRASH_REPORTS"
	EnvNotifyURL         = "GCM_NOTIFY_URL"
	EnvCrashURL          = "GCM_CRASH_UPLOAD_URL"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GCM_LOG_LEVEL"
	EnvLogFormat = "GCM_LOG_FORMAT"
	EnvLogSource = "GCM_LOG_SOURCE"
	EnvLogFile   = "GCM_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "gocomposer"
	keyringToken   = "generation_token"
)

// tokenStore abstracts keyring, so we can stub in tests.
var tokenStore TokenStore = osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoComposer")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoComposer")
	default: // linux and others
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot resolve config directory: %w", err)
		}
		base = filepath.Join(dir, "gocomposer")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path. GCM_CONFIG takes precedence.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads user config file (if present), applies defaults, and merges environment overrides.
// It also loads the generation token, from GCM_GEN_TOKEN or the keyring (returned separately).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}
	return cfg, loadToken(), nil
}

func loadToken() string {
	if v := strings.TrimSpace(os.Getenv(EnvGenerationToken)); v != "" {
		return v
	}
	tok, err := tokenStore.Get(keyringService, keyringToken)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		applog.WithComponent("config").Debug("keyring unavailable", "err", err)
	}
	return tok
}

// Save writes the user config YAML and persists the token into OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// SetToken stores the generation token in the OS keyring.
func SetToken(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("empty token")
	}
	return tokenStore.Set(keyringService, keyringToken, strings.TrimSpace(token))
}

// ForgetToken removes the stored generation token. A missing token is not an error.
func ForgetToken() error {
	if err := tokenStore.Delete(keyringService, keyringToken); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// Validate reports settings that cannot be used.
func (c AppConfig) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("storage.driver %q: want file, sqlite or postgres", c.Storage.Driver)
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size %gx%g must be positive", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.VideoWidth <= 0 || c.Canvas.VideoHeight <= 0 {
		return fmt.Errorf("video resolution %dx%d must be positive", c.Canvas.VideoWidth, c.Canvas.VideoHeight)
	}
	if c.History.MaxEntries < 0 || c.History.CoalesceMs < 0 {
		return errors.New("history limits must not be negative")
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.CrashReports = src.General.CrashReports
	dst.General.Autosave = src.General.Autosave
	if src.Canvas.Width > 0 {
		dst.Canvas.Width = src.Canvas.Width
	}
	if src.Canvas.Height > 0 {
		dst.Canvas.Height = src.Canvas.Height
	}
	if strings.TrimSpace(src.Canvas.Background) != "" {
		dst.Canvas.Background = strings.TrimSpace(src.Canvas.Background)
	}
	if src.Canvas.VideoWidth > 0 {
		dst.Canvas.VideoWidth = src.Canvas.VideoWidth
	}
	if src.Canvas.VideoHeight > 0 {
		dst.Canvas.VideoHeight = src.Canvas.VideoHeight
	}
	if src.History.MaxEntries != 0 {
		dst.History.MaxEntries = src.History.MaxEntries
	}
	if src.History.CoalesceMs != 0 {
		dst.History.CoalesceMs = src.History.CoalesceMs
	}
	if src.Generation.BaseURL != "" {
		dst.Generation.BaseURL = src.Generation.BaseURL
	}
	if src.Generation.TimeoutMs != 0 {
		dst.Generation.TimeoutMs = src.Generation.TimeoutMs
	}
	if src.Generation.MaxInFlight != 0 {
		dst.Generation.MaxInFlight = src.Generation.MaxInFlight
	}
	dst.Generation.FetchAssets = src.Generation.FetchAssets
	if d := strings.ToLower(strings.TrimSpace(src.Storage.Driver)); d != "" {
		dst.Storage.Driver = d
	}
	if strings.TrimSpace(src.Storage.Dir) != "" {
		dst.Storage.Dir = strings.TrimSpace(src.Storage.Dir)
	}
	if strings.TrimSpace(src.Storage.DSN) != "" {
		dst.Storage.DSN = strings.TrimSpace(src.Storage.DSN)
	}
	if src.Notify.URL != "" {
		dst.Notify.URL = src.Notify.URL
	}
	if src.Notify.CrashURL != "" {
		dst.Notify.CrashURL = src.Notify.CrashURL
	}
	if src.Notify.TimeoutMs != 0 {
		dst.Notify.TimeoutMs = src.Notify.TimeoutMs
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func envInt(name string, dst *int) {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvGenerationURL)); v != "" {
		cfg.Generation.BaseURL = v
	}
	envInt(EnvGenerationTimeout, &cfg.Generation.TimeoutMs)
	envInt(EnvGenerationMax, &cfg.Generation.MaxInFlight)
	envInt(EnvHistoryMax, &cfg.History.MaxEntries)
	envInt(EnvHistoryCoalesce, &cfg.History.CoalesceMs)
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDir)); v != "" {
		cfg.Storage.Dir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvPGDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCrashReports)); v != "" {
		cfg.General.CrashReports = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvNotifyURL)); v != "" {
		cfg.Notify.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCrashURL)); v != "" {
		cfg.Notify.CrashURL = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"generation.base_url":      EnvGenerationURL,
	"generation.timeout_ms":    EnvGenerationTimeout,
	"generation.max_in_flight": EnvGenerationMax,
	"history.max_entries":      EnvHistoryMax,
	"history.coalesce_ms":      EnvHistoryCoalesce,
	"storage.driver":           EnvStorageDriver,
	"storage.dir":              EnvStorageDir,
	"storage.dsn":              EnvPGDSN,
	"general.crash_reports":    EnvCrashReports,
	"notify.url":               EnvNotifyURL,
	"notify.crash_url":         EnvCrashURL,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// OverridableKeys lists the config keys that have an environment override, sorted.
func OverridableKeys() []string {
	keys := make([]string, 0, len(envKeys))
	for k := range envKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// StorageDir returns the configured document directory, defaulting next to the config file.
func (c AppConfig) StorageDir() (string, error) {
	if c.Storage.Dir != "" {
		return c.Storage.Dir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "documents"), nil
}

// HistoryOptions converts the history section for the editor.
func (c AppConfig) HistoryOptions() history.Config {
	return history.Config{
		MaxEntries:  c.History.MaxEntries,
		MinInterval: time.Duration(c.History.CoalesceMs) * time.Millisecond,
	}
}

// Timeout returns the generation request timeout.
func (g GenerationConfig) Timeout() time.Duration {
	if g.TimeoutMs <= 0 {
		return time.Duration(Defaults().Generation.TimeoutMs) * time.Millisecond
	}
	return time.Duration(g.TimeoutMs) * time.Millisecond
}

// LogOptions converts the logging section for log.Init.
func (c AppConfig) LogOptions() applog.Options {
	return applog.Options{
		Level:     c.Logging.Level,
		Format:    c.Logging.Format,
		AddSource: c.Logging.Source,
		File:      c.Logging.File,
	}
}

// NotifyOptions converts the notify section for the webhook notifier.
func (c AppConfig) NotifyOptions() notify.Config {
	timeout := time.Duration(c.Notify.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 1500 * time.Millisecond
	}
	return notify.Config{
		EventsURL: c.Notify.URL,
		CrashURL:  c.Notify.CrashURL,
		Timeout:   timeout,
	}
}
