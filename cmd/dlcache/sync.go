// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/downloadables/cmd/dlcache/cli"
	"github.com/bureau-foundation/downloadables/lib/assetbundles"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
)

type syncParams struct {
	cacheFlags
	Load    bool
	Grant   bool
	Timeout time.Duration
}

func syncCommand() *cli.Command {
	var params syncParams
	return &cli.Command{
		Name:    "sync",
		Summary: "Download and verify catalog entries",
		Description: `Download and verify catalog entries, then exit.

With a bundle catalog configured, each argument names a bundle group or
a bundle; the bundles and all their dependencies are downloaded, and
with --load also loaded to check that they open. Without a bundle
catalog, each argument names a catalog entry. With no arguments every
entry is synced.`,
		Usage: "dlcache sync [group|bundle|entry...] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sync", pflag.ContinueOnError)
			params.cacheFlags.AddFlags(flagSet)
			flagSet.BoolVar(&params.Load, "load", false, "load the bundles once downloaded")
			flagSet.BoolVar(&params.Grant, "grant", false, "grant network permission to the named groups")
			flagSet.DurationVar(&params.Timeout, "timeout", 30*time.Minute, "give up after this long")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Download and open every bundle of two groups",
				Command:     "dlcache sync world_1 menu --load",
			},
		},
		Run: func(args []string) error {
			return runSync(args, &params)
		},
	}
}

func runSync(args []string, params *syncParams) error {
	cfg, err := params.loadConfig()
	if err != nil {
		return err
	}
	logger := commandLogger(&params.cacheFlags, "sync")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	c, err := openCache(cfg, logger, true)
	if err != nil {
		return err
	}
	defer c.close()
	if err := c.init(ctx); err != nil {
		return err
	}

	if c.manager != nil {
		return syncBundles(ctx, c, args, params)
	}
	return syncEntries(ctx, c, args)
}

func syncBundles(ctx context.Context, c *cache, args []string, params *syncParams) error {
	manager := c.manager
	var ids []string
	if len(args) == 0 {
		ids = manager.IDs()
	}
	for _, target := range args {
		if groupIDs, ok := manager.GroupBundleIDs(target); ok {
			ids = append(ids, groupIDs...)
			if params.Grant {
				manager.SetDownloadablesGroupPermissionRequested(target, true)
				manager.SetDownloadablesGroupPermissionGranted(target, true)
			}
			continue
		}
		if !manager.IsAssetBundleValid(target) {
			return unknownTarget(target, "is neither a bundle group nor a bundle",
				append(manager.GroupIDs(), manager.IDs()...))
		}
		ids = append(ids, manager.DependenciesIncludingSelf(target)...)
	}

	var result assetbundles.Result
	var data any
	finished := false
	onDone := func(r assetbundles.Result, d any) {
		result, data, finished = r, d, true
	}
	manager.DownloadAssetBundleList(ids, func(r assetbundles.Result, d any) {
		if !r.IsSuccess() || !params.Load {
			onDone(r, d)
			return
		}
		manager.LoadAssetBundleList(ids, onDone)
	})
	if err := c.tickUntil(ctx, func() bool { return finished }); err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}

	if !result.IsSuccess() {
		fmt.Fprintf(os.Stderr, "sync failed: %s (%v)\n", result, data)
		return &cli.ExitError{Code: 1}
	}
	bundles := manager.DependenciesIncludingSelfList(ids)
	fmt.Println(availableSummary(len(bundles), "bundles", catalogBytes(c.engine, bundles)))
	if params.Load {
		fmt.Printf("loaded: %v\n", c.loader.OpenBundles())
	}
	return nil
}

func syncEntries(ctx context.Context, c *cache, args []string) error {
	engine := c.engine
	ids := args
	if len(ids) == 0 {
		ids = engine.IDs()
	}
	for _, id := range ids {
		if !engine.IsIDValid(id) {
			return unknownTarget(id, "is not a catalog entry", engine.IDs())
		}
		engine.RequestID(id)
	}

	failed := make(map[string]*downloadables.Error)
	err := c.tickUntil(ctx, func() bool {
		pending := 0
		for _, id := range ids {
			if engine.IsIDAvailable(id) || failed[id] != nil {
				continue
			}
			pending++
			status, _ := engine.Status(id)
			if status.RequestState() != downloadables.RequestDone || status.RequestError() == nil {
				continue
			}
			if status.CanAutomaticDownload() {
				engine.RequestID(id)
				continue
			}
			failed[id] = status.RequestError()
			pending--
		}
		return pending == 0
	})
	if err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}

	fmt.Printf("%d of %d entries available, %s on disk\n",
		len(ids)-len(failed), len(ids), humanize.Bytes(uint64(catalogBytes(engine, ids))))
	if len(failed) == 0 {
		return nil
	}
	failedIDs := make([]string, 0, len(failed))
	for id := range failed {
		failedIDs = append(failedIDs, id)
	}
	sort.Strings(failedIDs)
	for _, id := range failedIDs {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", id, failed[id])
	}
	return &cli.ExitError{Code: 1}
}

// unknownTarget reports a sync argument that names nothing, with the
// closest known id when one is near.
func unknownTarget(target, problem string, known []string) error {
	if suggestion := cli.Closest(target, known); suggestion != "" {
		return fmt.Errorf("%q %s (did you mean %q?)", target, problem, suggestion)
	}
	return fmt.Errorf("%q %s", target, problem)
}

// availableSummary reports how much content is usable on disk, whether
// this run downloaded it or found it already verified.
func availableSummary(count int, noun string, bytes int64) string {
	return fmt.Sprintf("%d %s available, %s on disk", count, noun, humanize.Bytes(uint64(bytes)))
}

// catalogBytes sums the catalog size of the available ids, counting
// each id once. Ids outside the catalog count for nothing.
func catalogBytes(engine *downloadables.Engine, ids []string) int64 {
	seen := make(map[string]bool, len(ids))
	var total int64
	for _, id := range ids {
		if seen[id] || !engine.IsIDAvailable(id) {
			continue
		}
		seen[id] = true
		entry, _ := engine.Catalog().Get(id)
		total += entry.Size
	}
	return total
}
