// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/downloadables/cmd/dlcache/cli"
	"github.com/bureau-foundation/downloadables/lib/assetbundles"
	"github.com/bureau-foundation/downloadables/lib/clock"
	"github.com/bureau-foundation/downloadables/lib/config"
	"github.com/bureau-foundation/downloadables/lib/disk"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
	"github.com/bureau-foundation/downloadables/lib/tracker"
	"github.com/bureau-foundation/downloadables/lib/zipbundle"
	"github.com/bureau-foundation/downloadables/transport"
)

// tickInterval paces Update calls while a command waits on the engine.
const tickInterval = 50 * time.Millisecond

// cacheFlags are shared by every command that opens the cache.
type cacheFlags struct {
	ConfigPath string
	Verbose    bool
}

func (f *cacheFlags) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.ConfigPath, "config", "", "path to dlcache.yaml (default: $DLCACHE_CONFIG)")
	flagSet.BoolVarP(&f.Verbose, "verbose", "v", false, "log at debug level")
}

func (f *cacheFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if f.ConfigPath != "" {
		cfg, err = config.LoadFile(f.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// cache is an opened cache: disk, transport, tracker and engine, plus
// the bundle manager when a bundle catalog is configured.
type cache struct {
	config  *config.Config
	clock   clock.Clock
	logger  *slog.Logger
	disk    *disk.Disk
	client  *transport.Client
	tracker *tracker.Store
	engine  *downloadables.Engine
	loader  *zipbundle.Loader
	manager *assetbundles.Manager
}

// openCache opens the cache described by cfg without initializing the
// engine. withTracker records download events.
func openCache(cfg *config.Config, logger *slog.Logger, withTracker bool) (*cache, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	c := &cache{config: cfg, clock: clock.Real(), logger: logger}
	c.disk = disk.New(disk.Config{
		Driver: disk.NewOS(disk.OSPaths{
			Manifests: cfg.Paths.Manifests,
			Downloads: cfg.Paths.Downloads,
			Groups:    cfg.Paths.Groups,
			State:     cfg.Paths.State,
		}),
		Clock:  c.clock,
		Logger: logger,
		OnIssue: func(kind disk.Kind) {
			logger.Error("cache directory needs attention", "issue", kind.String())
		},
	})

	if cfg.Downloadables.URLBase != "" {
		catalogURL := ""
		if isURL(cfg.Downloadables.Catalog) {
			catalogURL = cfg.Downloadables.Catalog
		}
		client, err := transport.NewClient(transport.Config{
			Disk:       c.disk,
			URLBase:    cfg.Downloadables.URLBase,
			CatalogURL: catalogURL,
			Timeout:    cfg.Downloadables.DownloadTimeout,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		c.client = client
	}

	var tracked downloadables.Tracker
	if withTracker && cfg.Tracker.Enabled {
		store, err := tracker.Open(tracker.Config{Path: cfg.Tracker.Database, Logger: logger})
		if err != nil {
			return nil, err
		}
		c.tracker = store
		tracked = store
	}

	engineConfig := downloadables.Config{
		Disk:    c.disk,
		Tracker: tracked,
		Clock:   c.clock,
		Logger:  logger,
		Settings: downloadables.Settings{
			ErrorCooldown:             cfg.Downloadables.ErrorCooldown,
			SaveInterval:              cfg.Downloadables.SaveInterval,
			AvailableRecheckInterval:  cfg.Downloadables.AvailableRecheckInterval,
			MaxCRCMismatches:          cfg.Downloadables.MaxCRCMismatches,
			MaxDownloadErrors:         cfg.Downloadables.MaxDownloadErrors,
			SimultaneousDownloads:     cfg.Downloadables.SimultaneousDownloads,
			AutomaticDownload:         cfg.Downloadables.AutomaticDownload,
			RequestPermissionOverWifi: cfg.Downloadables.RequestPermissionOverWifi,
		},
	}
	// A nil *transport.Client must not become a non-nil Network.
	if c.client != nil {
		engineConfig.Network = c.client
	}
	c.engine = downloadables.New(engineConfig)

	if cfg.Bundles.Catalog != "" {
		local := os.DirFS(cfg.Paths.Root)
		if cfg.Bundles.Local != "" {
			local = os.DirFS(cfg.Bundles.Local)
		}
		c.loader = zipbundle.New(zipbundle.Config{Disk: c.disk, Local: local, Logger: logger})
		c.manager = assetbundles.New(assetbundles.Config{
			Engine:            c.engine,
			Loader:            c.loader,
			SimultaneousLoads: cfg.Bundles.SimultaneousLoads,
			Logger:            logger,
		})
	}
	return c, nil
}

// init loads the catalog and initializes the manager, or the engine
// alone when no bundle catalog is configured.
func (c *cache) init(ctx context.Context) error {
	catalog, err := c.loadCatalog(ctx)
	if err != nil {
		return err
	}
	if c.manager == nil {
		return c.engine.Init(catalog, nil)
	}
	document, err := os.ReadFile(c.config.Bundles.Catalog)
	if err != nil {
		return fmt.Errorf("reading bundle catalog: %w", err)
	}
	bundles, err := assetbundles.ParseBundleCatalog(document, c.logger)
	if err != nil {
		return err
	}
	return c.manager.Init(bundles, catalog)
}

// loadCatalog fetches or reads the configured catalog and snapshots it.
// When that fails, the last snapshot is used so the cache keeps working
// offline.
func (c *cache) loadCatalog(ctx context.Context) (*downloadables.Catalog, error) {
	catalog, err := c.readCatalog(ctx)
	if err == nil {
		if err := downloadables.SaveCatalogSnapshot(c.disk, catalog, c.clock.Now()); err != nil {
			c.logger.Warn("saving catalog snapshot failed", "error", err)
		}
		return catalog, nil
	}

	snapshot, savedAt, snapshotErr := downloadables.LoadCatalogSnapshot(c.disk)
	if snapshotErr != nil {
		if disk.IsNotExist(snapshotErr) {
			return nil, err
		}
		return nil, errors.Join(err, snapshotErr)
	}
	c.logger.Warn("using catalog snapshot",
		"error", err,
		"saved_at", savedAt,
		"entries", snapshot.Len(),
	)
	return snapshot, nil
}

func (c *cache) readCatalog(ctx context.Context) (*downloadables.Catalog, error) {
	source := c.config.Downloadables.Catalog
	switch {
	case source == "":
		return nil, errors.New("no catalog configured (downloadables.catalog)")
	case isURL(source):
		if c.client == nil {
			return nil, errors.New("a catalog URL needs downloadables.url_base")
		}
		return c.client.FetchCatalog(ctx)
	default:
		document, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("reading catalog: %w", err)
		}
		return downloadables.ParseCatalog(document, c.logger)
	}
}

// update advances the manager, or the engine alone.
func (c *cache) update() {
	if c.manager != nil {
		c.manager.Update()
		return
	}
	c.engine.Update()
}

// tickUntil calls update every tickInterval until done reports true or
// ctx ends.
func (c *cache) tickUntil(ctx context.Context, done func() bool) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		c.update()
		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// settle ticks until every entry has left the manifest, blob info and
// checksum states, or is waiting out an error cooldown in one of them.
func (c *cache) settle(ctx context.Context) error {
	return c.tickUntil(ctx, func() bool {
		for _, id := range c.engine.IDs() {
			status, _ := c.engine.Status(id)
			if !status.HasErrorExpired() {
				continue
			}
			switch status.State() {
			case downloadables.StateNone, downloadables.StateReadingManifest,
				downloadables.StateReadingDataInfo, downloadables.StateCalculatingCRC:
				return false
			}
		}
		return true
	})
}

func (c *cache) close() {
	if c.manager != nil {
		c.manager.Shutdown()
	} else {
		c.engine.Shutdown()
	}
	if c.tracker != nil {
		if err := c.tracker.Close(); err != nil {
			c.logger.Warn("closing tracker failed", "error", err)
		}
	}
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// commandLogger scopes the CLI logger to one command.
func commandLogger(flags *cacheFlags, command string) *slog.Logger {
	return cli.NewCommandLogger(flags.Verbose).With("command", command)
}
