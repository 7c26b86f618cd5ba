// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Downloadables configures the content cache and download engine.
	Downloadables DownloadablesConfig `yaml:"downloadables"`

	// Bundles configures the bundle manager.
	Bundles BundlesConfig `yaml:"bundles"`

	// Tracker configures the download history database.
	Tracker TrackerConfig `yaml:"tracker"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths         *PathsConfig            `yaml:"paths,omitempty"`
	Downloadables *DownloadablesOverrides `yaml:"downloadables,omitempty"`
}

// DownloadablesOverrides holds the download settings that commonly
// differ between environments. Nil pointers leave the base value alone.
type DownloadablesOverrides struct {
	URLBase                   string `yaml:"url_base,omitempty"`
	Catalog                   string `yaml:"catalog,omitempty"`
	AutomaticDownload         *bool  `yaml:"automatic_download,omitempty"`
	RequestPermissionOverWifi *bool  `yaml:"request_permission_over_wifi,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for all cached data.
	Root string `yaml:"root"`

	// Manifests holds one JSON manifest per catalog entry.
	Manifests string `yaml:"manifests"`

	// Downloads holds the downloaded blobs, one file per catalog entry.
	Downloads string `yaml:"downloads"`

	// Groups holds one JSON permission file per catalog group.
	Groups string `yaml:"groups"`

	// State holds internal state: the catalog snapshot and the tracker
	// database.
	State string `yaml:"state"`
}

// DownloadablesConfig configures the content cache.
type DownloadablesConfig struct {
	// Catalog is the location of the catalog document: an http(s) URL
	// or a local file path.
	Catalog string `yaml:"catalog"`

	// URLBase is prefixed to "<crc32>/<id>" to form a blob URL.
	URLBase string `yaml:"url_base"`

	// ErrorCooldown is how long an entry waits after an error before
	// its state machine resumes. Default: 3s.
	ErrorCooldown time.Duration `yaml:"error_cooldown"`

	// SaveInterval bounds how often a dirty manifest is written.
	// Default: 3s.
	SaveInterval time.Duration `yaml:"save_interval"`

	// AvailableRecheckInterval is how often an Available entry
	// re-stats its blob. Default: 180s.
	AvailableRecheckInterval time.Duration `yaml:"available_recheck_interval"`

	// DownloadTimeout aborts a download that makes no progress for
	// this long. Default: 100s.
	DownloadTimeout time.Duration `yaml:"download_timeout"`

	// MaxCRCMismatches and MaxDownloadErrors are the retry budgets
	// after which automatic download stops. Default: 2 each.
	MaxCRCMismatches  int `yaml:"max_crc_mismatches"`
	MaxDownloadErrors int `yaml:"max_download_errors"`

	// SimultaneousDownloads is the number of concurrent transfers.
	// Default: 1.
	SimultaneousDownloads int `yaml:"simultaneous_downloads"`

	// AutomaticDownload lets the scheduler download entries that were
	// not explicitly requested, in group priority order.
	AutomaticDownload bool `yaml:"automatic_download"`

	// RequestPermissionOverWifi requires the permission-requested flag
	// of a group before downloading its entries over wifi. Carrier
	// data always requires the over-carrier grant.
	RequestPermissionOverWifi bool `yaml:"request_permission_over_wifi"`
}

// BundlesConfig configures the bundle manager.
type BundlesConfig struct {
	// Catalog is the path to the bundle catalog document (bundle ids,
	// dependencies, local or remote, groups).
	Catalog string `yaml:"catalog"`

	// Local is the directory holding bundles shipped with the
	// application rather than downloaded.
	Local string `yaml:"local"`

	// SimultaneousLoads is the number of native bundle loads allowed
	// in flight. Default: 1.
	SimultaneousLoads int `yaml:"simultaneous_loads"`
}

// TrackerConfig configures the download history database.
type TrackerConfig struct {
	// Enabled turns on event recording.
	Enabled bool `yaml:"enabled"`

	// Database is the SQLite file path.
	Database string `yaml:"database"`
}

// Default returns the default configuration, used as the base before
// the config file is merged in.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "dlcache")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:      defaultRoot,
			Manifests: "${DLCACHE_ROOT}/manifests",
			Downloads: "${DLCACHE_ROOT}/downloads",
			Groups:    "${DLCACHE_ROOT}/groups",
			State:     "${DLCACHE_ROOT}/state",
		},
		Downloadables: DownloadablesConfig{
			ErrorCooldown:            3 * time.Second,
			SaveInterval:             3 * time.Second,
			AvailableRecheckInterval: 180 * time.Second,
			DownloadTimeout:          100 * time.Second,
			MaxCRCMismatches:         2,
			MaxDownloadErrors:        2,
			SimultaneousDownloads:    1,
			AutomaticDownload:        true,
		},
		Bundles: BundlesConfig{
			SimultaneousLoads: 1,
		},
		Tracker: TrackerConfig{
			Enabled:  true,
			Database: "${DLCACHE_ROOT}/state/history.db",
		},
	}
}

// Load loads configuration from the DLCACHE_CONFIG environment variable.
// There is no fallback when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv("DLCACHE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("DLCACHE_CONFIG environment variable not set; " +
			"set it to the path of your dlcache.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Manifests != "" {
			c.Paths.Manifests = overrides.Paths.Manifests
		}
		if overrides.Paths.Downloads != "" {
			c.Paths.Downloads = overrides.Paths.Downloads
		}
		if overrides.Paths.Groups != "" {
			c.Paths.Groups = overrides.Paths.Groups
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if overrides.Downloadables != nil {
		if overrides.Downloadables.URLBase != "" {
			c.Downloadables.URLBase = overrides.Downloadables.URLBase
		}
		if overrides.Downloadables.Catalog != "" {
			c.Downloadables.Catalog = overrides.Downloadables.Catalog
		}
		if overrides.Downloadables.AutomaticDownload != nil {
			c.Downloadables.AutomaticDownload = *overrides.Downloadables.AutomaticDownload
		}
		if overrides.Downloadables.RequestPermissionOverWifi != nil {
			c.Downloadables.RequestPermissionOverWifi = *overrides.Downloadables.RequestPermissionOverWifi
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"DLCACHE_ROOT": c.Paths.Root,
		"HOME":         os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["DLCACHE_ROOT"] = c.Paths.Root // Dependent paths see the expanded root.

	c.Paths.Manifests = expandVars(c.Paths.Manifests, vars)
	c.Paths.Downloads = expandVars(c.Paths.Downloads, vars)
	c.Paths.Groups = expandVars(c.Paths.Groups, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Downloadables.Catalog = expandVars(c.Downloadables.Catalog, vars)
	c.Bundles.Catalog = expandVars(c.Bundles.Catalog, vars)
	c.Bundles.Local = expandVars(c.Bundles.Local, vars)
	c.Tracker.Database = expandVars(c.Tracker.Database, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns. Provided vars
// win over the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}
	for name, path := range map[string]string{
		"paths.manifests": c.Paths.Manifests,
		"paths.downloads": c.Paths.Downloads,
		"paths.groups":    c.Paths.Groups,
		"paths.state":     c.Paths.State,
	} {
		if path == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		}
	}

	d := c.Downloadables
	if d.URLBase != "" {
		parsed, err := url.Parse(d.URLBase)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("downloadables.url_base: %w", err))
		case parsed.Scheme != "http" && parsed.Scheme != "https":
			errs = append(errs, fmt.Errorf("downloadables.url_base must be an http or https URL, got %q", d.URLBase))
		case c.Environment == Production && parsed.Scheme != "https":
			errs = append(errs, fmt.Errorf("downloadables.url_base must use https in production"))
		}
	}
	if d.ErrorCooldown <= 0 {
		errs = append(errs, fmt.Errorf("downloadables.error_cooldown must be positive"))
	}
	if d.SaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("downloadables.save_interval must be positive"))
	}
	if d.AvailableRecheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("downloadables.available_recheck_interval must be positive"))
	}
	if d.DownloadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("downloadables.download_timeout must be positive"))
	}
	if d.MaxCRCMismatches < 1 {
		errs = append(errs, fmt.Errorf("downloadables.max_crc_mismatches must be at least 1"))
	}
	if d.MaxDownloadErrors < 1 {
		errs = append(errs, fmt.Errorf("downloadables.max_download_errors must be at least 1"))
	}
	if d.SimultaneousDownloads < 1 {
		errs = append(errs, fmt.Errorf("downloadables.simultaneous_downloads must be at least 1"))
	}

	if c.Bundles.SimultaneousLoads < 1 {
		errs = append(errs, fmt.Errorf("bundles.simultaneous_loads must be at least 1"))
	}

	if c.Tracker.Enabled && c.Tracker.Database == "" {
		errs = append(errs, fmt.Errorf("tracker.database is required when the tracker is enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Manifests,
		c.Paths.Downloads,
		c.Paths.Groups,
		c.Paths.State,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
