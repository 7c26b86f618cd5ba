// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Downloadables.ErrorCooldown != 3*time.Second {
		t.Errorf("expected error_cooldown=3s, got %v", cfg.Downloadables.ErrorCooldown)
	}
	if cfg.Downloadables.SaveInterval != 3*time.Second {
		t.Errorf("expected save_interval=3s, got %v", cfg.Downloadables.SaveInterval)
	}
	if cfg.Downloadables.AvailableRecheckInterval != 180*time.Second {
		t.Errorf("expected available_recheck_interval=180s, got %v", cfg.Downloadables.AvailableRecheckInterval)
	}
	if cfg.Downloadables.MaxCRCMismatches != 2 || cfg.Downloadables.MaxDownloadErrors != 2 {
		t.Errorf("expected retry budgets of 2, got crc=%d download=%d",
			cfg.Downloadables.MaxCRCMismatches, cfg.Downloadables.MaxDownloadErrors)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad_RequiresConfigVariable(t *testing.T) {
	t.Setenv("DLCACHE_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when DLCACHE_CONFIG not set, got nil")
	}
	if !strings.HasPrefix(err.Error(), "DLCACHE_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %q", err.Error())
	}
}

func TestLoad_WithConfigVariable(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dlcache.yaml")
	configContent := `
environment: staging
paths:
  root: /test/root
downloadables:
  url_base: https://cdn.example.com/content/
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("DLCACHE_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}
}

func TestLoadFile_DerivesSubdirectoriesFromRoot(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dlcache.yaml")
	configContent := `
paths:
  root: /srv/cache
downloadables:
  error_cooldown: 5s
  save_interval: 1500ms
  max_download_errors: 4
  automatic_download: false
bundles:
  catalog: ${DLCACHE_ROOT}/bundles.json
  simultaneous_loads: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	checks := []struct{ got, want string }{
		{cfg.Paths.Manifests, "/srv/cache/manifests"},
		{cfg.Paths.Downloads, "/srv/cache/downloads"},
		{cfg.Paths.Groups, "/srv/cache/groups"},
		{cfg.Paths.State, "/srv/cache/state"},
		{cfg.Bundles.Catalog, "/srv/cache/bundles.json"},
		{cfg.Tracker.Database, "/srv/cache/state/history.db"},
	}
	for _, check := range checks {
		if check.got != check.want {
			t.Errorf("path = %s, want %s", check.got, check.want)
		}
	}

	if cfg.Downloadables.ErrorCooldown != 5*time.Second {
		t.Errorf("expected error_cooldown=5s, got %v", cfg.Downloadables.ErrorCooldown)
	}
	if cfg.Downloadables.SaveInterval != 1500*time.Millisecond {
		t.Errorf("expected save_interval=1.5s, got %v", cfg.Downloadables.SaveInterval)
	}
	if cfg.Downloadables.MaxDownloadErrors != 4 {
		t.Errorf("expected max_download_errors=4, got %d", cfg.Downloadables.MaxDownloadErrors)
	}
	// Unset values keep their defaults.
	if cfg.Downloadables.MaxCRCMismatches != 2 {
		t.Errorf("expected max_crc_mismatches=2, got %d", cfg.Downloadables.MaxCRCMismatches)
	}
	if cfg.Downloadables.AutomaticDownload {
		t.Error("expected automatic_download=false")
	}
	if cfg.Bundles.SimultaneousLoads != 2 {
		t.Errorf("expected simultaneous_loads=2, got %d", cfg.Bundles.SimultaneousLoads)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dlcache.yaml")
	configContent := `
environment: production

paths:
  root: /default/root

downloadables:
  url_base: http://localhost:8080/
  automatic_download: true

production:
  paths:
    root: /prod/root
  downloadables:
    url_base: https://cdn.example.com/
    automatic_download: false
    request_permission_over_wifi: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.Downloads != "/prod/root/downloads" {
		t.Errorf("expected downloads under the production root, got %s", cfg.Paths.Downloads)
	}
	if cfg.Downloadables.URLBase != "https://cdn.example.com/" {
		t.Errorf("expected production url_base, got %s", cfg.Downloadables.URLBase)
	}
	if cfg.Downloadables.AutomaticDownload {
		t.Error("expected automatic_download=false from production override")
	}
	if !cfg.Downloadables.RequestPermissionOverWifi {
		t.Error("expected request_permission_over_wifi=true from production override")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	t.Setenv("DLCACHE_ROOT", "/env/root")
	t.Setenv("DLCACHE_ENVIRONMENT", "staging")

	configPath := filepath.Join(t.TempDir(), "dlcache.yaml")
	configContent := `
environment: development
paths:
  root: /file/root
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s", cfg.Environment)
	}
	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s", cfg.Paths.Root)
	}
	if cfg.Paths.State != "/file/root/state" {
		t.Errorf("expected state under the file root, got %s", cfg.Paths.State)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/cache",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/cache",
		},
		{
			input:    "${DLCACHE_TEST_MISSING:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid environment",
			modify:  func(c *Config) { c.Environment = "invalid" },
			wantErr: true,
		},
		{
			name:    "empty root path",
			modify:  func(c *Config) { c.Paths.Root = "" },
			wantErr: true,
		},
		{
			name:    "empty downloads path",
			modify:  func(c *Config) { c.Paths.Downloads = "" },
			wantErr: true,
		},
		{
			name:    "non-http url base",
			modify:  func(c *Config) { c.Downloadables.URLBase = "ftp://example.com/" },
			wantErr: true,
		},
		{
			name: "plain http in production",
			modify: func(c *Config) {
				c.Environment = Production
				c.Downloadables.URLBase = "http://example.com/"
			},
			wantErr: true,
		},
		{
			name:    "zero error cooldown",
			modify:  func(c *Config) { c.Downloadables.ErrorCooldown = 0 },
			wantErr: true,
		},
		{
			name:    "zero save interval",
			modify:  func(c *Config) { c.Downloadables.SaveInterval = 0 },
			wantErr: true,
		},
		{
			name:    "zero retry budget",
			modify:  func(c *Config) { c.Downloadables.MaxCRCMismatches = 0 },
			wantErr: true,
		},
		{
			name:    "zero simultaneous loads",
			modify:  func(c *Config) { c.Bundles.SimultaneousLoads = 0 },
			wantErr: true,
		},
		{
			name:    "tracker without database",
			modify:  func(c *Config) { c.Tracker.Database = "" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnsurePaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "dlcache")

	cfg := Default()
	cfg.Paths.Root = root
	cfg.expandVariables()

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.Paths.Manifests, cfg.Paths.Downloads, cfg.Paths.Groups, cfg.Paths.State} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
