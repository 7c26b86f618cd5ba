// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/downloadables/cmd/dlcache/cli"
	"github.com/bureau-foundation/downloadables/lib/tracker"
)

type historyParams struct {
	cacheFlags
	cli.JSONOutput
	Limit int
	Prune time.Duration
}

func historyCommand() *cli.Command {
	var params historyParams
	return &cli.Command{
		Name:    "history",
		Summary: "Show download history",
		Description: `Show download history from the tracker database.

Without an argument, prints one summary line per catalog entry. With an
entry id, prints that entry's most recent events. --prune deletes
events older than the given age first.`,
		Usage: "dlcache history [entry] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("history", pflag.ContinueOnError)
			params.cacheFlags.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			flagSet.IntVar(&params.Limit, "limit", 20, "events to show for one entry")
			flagSet.DurationVar(&params.Prune, "prune", 0, "delete events older than this age")
			return flagSet
		},
		Examples: []cli.Example{
			{
				Description: "Show the last five events of one entry",
				Command:     "dlcache history level_1 --limit 5",
			},
			{
				Description: "Drop events older than thirty days",
				Command:     "dlcache history --prune 720h",
			},
		},
		Run: func(args []string) error {
			if len(args) > 1 {
				return errors.New("history takes at most one entry id")
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			if !cfg.Tracker.Enabled {
				return errors.New("the tracker is disabled (tracker.enabled)")
			}
			logger := commandLogger(&params.cacheFlags, "history")

			store, err := tracker.Open(tracker.Config{Path: cfg.Tracker.Database, Logger: logger})
			if err != nil {
				return err
			}
			defer store.Close()
			ctx := context.Background()

			if params.Prune > 0 {
				removed, err := store.PruneOlderThan(ctx, params.Prune)
				if err != nil {
					return err
				}
				logger.Info("pruned history", "events", removed, "older_than", params.Prune)
			}

			if len(args) == 1 {
				events, err := store.Recent(ctx, args[0], params.Limit)
				if err != nil {
					return err
				}
				if done, err := params.EmitJSON(events); done {
					return err
				}
				writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
				fmt.Fprintln(writer, "WHEN\tEVENT\tATTEMPT\tBYTES\tERROR")
				for _, event := range events {
					fmt.Fprintf(writer, "%s\t%s\t%d\t%s\t%s\n",
						humanize.Time(event.At), event.Kind, event.Attempt,
						humanize.Bytes(uint64(event.Bytes)), joinError(event.ErrorType, event.Error))
				}
				return writer.Flush()
			}

			summaries, err := store.Summaries(ctx)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(summaries); done {
				return err
			}
			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintln(writer, "ENTRY\tDOWNLOADS\tFAILURES\tVERIFIED\tMISMATCHES\tRECEIVED\tLAST ACTIVITY")
			for _, summary := range summaries {
				fmt.Fprintf(writer, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
					summary.ID, summary.Downloads, summary.Failures, summary.Verified,
					summary.CRCMismatches, humanize.Bytes(uint64(summary.BytesReceived)),
					humanize.Time(summary.LastActivityAt))
			}
			return writer.Flush()
		},
	}
}

func joinError(errorType, message string) string {
	switch {
	case errorType == "":
		return message
	case message == "":
		return errorType
	default:
		return errorType + ": " + message
	}
}
