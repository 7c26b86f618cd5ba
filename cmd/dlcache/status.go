// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/disiqueira/gotree/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/downloadables/cmd/dlcache/cli"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
)

type statusParams struct {
	cacheFlags
	cli.JSONOutput
}

func statusCommand() *cli.Command {
	var params statusParams
	return &cli.Command{
		Name:    "status",
		Summary: "Show the state of every catalog entry",
		Description: `Show the state of every catalog entry, grouped by bundle group.

Entries are read back from disk (manifests and blob sizes) without
downloading anything.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			params.cacheFlags.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			logger := commandLogger(&params.cacheFlags, "status")
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			c, err := openCache(cfg, logger, false)
			if err != nil {
				return err
			}
			defer c.close()
			// Nothing is downloaded while reading state back.
			c.engine.SetAutomaticDownload(false)
			if err := c.init(ctx); err != nil {
				return err
			}
			if err := c.settle(ctx); err != nil {
				return err
			}

			report := buildStatusReport(c.engine)
			if done, err := params.EmitJSON(report); done {
				return err
			}
			fmt.Print(report.tree())
			return nil
		},
	}
}

type entryReport struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Bytes      int64  `json:"bytes"`
	TotalBytes int64  `json:"total_bytes"`
	Error      string `json:"error,omitempty"`
}

type groupReport struct {
	ID                  string   `json:"id"`
	Priority            int      `json:"priority"`
	PermissionRequested bool     `json:"permission_requested"`
	CarrierGranted      bool     `json:"carrier_granted"`
	Entries             []string `json:"entries"`
}

type statusReport struct {
	Entries []entryReport `json:"entries"`
	Groups  []groupReport `json:"groups"`
}

func buildStatusReport(engine *downloadables.Engine) statusReport {
	var report statusReport
	for _, id := range engine.IDs() {
		status, _ := engine.Status(id)
		entry := entryReport{
			ID:         id,
			State:      status.State().String(),
			Bytes:      status.BytesDownloadedSoFar(),
			TotalBytes: status.TotalBytes(),
		}
		if err := status.LatestError(); err != nil {
			entry.Error = err.Error()
		}
		report.Entries = append(report.Entries, entry)
	}
	for _, group := range engine.Groups() {
		report.Groups = append(report.Groups, groupReport{
			ID:                  group.ID(),
			Priority:            group.Priority(),
			PermissionRequested: group.PermissionRequested(),
			CarrierGranted:      group.PermissionOverCarrierGranted(),
			Entries:             group.EntryIDs(),
		})
	}
	return report
}

// tree renders the report with one branch per group and a final branch
// for entries that belong to no group.
func (r statusReport) tree() string {
	entries := make(map[string]entryReport, len(r.Entries))
	available := 0
	var totalBytes, availableBytes int64
	for _, entry := range r.Entries {
		entries[entry.ID] = entry
		totalBytes += entry.TotalBytes
		if entry.State == downloadables.StateAvailable.String() {
			available++
			availableBytes += entry.TotalBytes
		}
	}

	root := gotree.New(fmt.Sprintf("catalog: %d/%d entries available, %s of %s",
		available, len(r.Entries), humanize.Bytes(uint64(availableBytes)), humanize.Bytes(uint64(totalBytes))))

	grouped := make(map[string]bool)
	for _, group := range r.Groups {
		groupAvailable := 0
		for _, id := range group.Entries {
			if entries[id].State == downloadables.StateAvailable.String() {
				groupAvailable++
			}
		}
		branch := root.Add(fmt.Sprintf("%s (priority %d, %d/%d available%s)",
			group.ID, group.Priority, groupAvailable, len(group.Entries), permissionNote(group)))
		for _, id := range group.Entries {
			grouped[id] = true
			branch.Add(entries[id].line())
		}
	}

	var ungrouped gotree.Tree
	for _, entry := range r.Entries {
		if grouped[entry.ID] {
			continue
		}
		if ungrouped == nil {
			ungrouped = root.Add("(ungrouped)")
		}
		ungrouped.Add(entry.line())
	}
	return root.Print()
}

func (e entryReport) line() string {
	line := fmt.Sprintf("%s  %s  %s/%s", e.ID, e.State,
		humanize.Bytes(uint64(e.Bytes)), humanize.Bytes(uint64(e.TotalBytes)))
	if e.Error != "" {
		line += "  error: " + e.Error
	}
	return line
}

func permissionNote(group groupReport) string {
	switch {
	case group.CarrierGranted:
		return ", carrier granted"
	case group.PermissionRequested:
		return ", permission requested"
	default:
		return ""
	}
}
