// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/downloadables/cmd/dlcache/cli"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
)

type verifyParams struct {
	cacheFlags
	cli.JSONOutput
}

type verifyResult struct {
	Checked []string `json:"checked"`
	Failed  []string `json:"failed"`
}

func verifyCommand() *cli.Command {
	var params verifyParams
	return &cli.Command{
		Name:    "verify",
		Summary: "Checksum every downloaded blob again",
		Description: `Checksum every downloaded blob again.

Blobs whose CRC-32 no longer matches the catalog are deleted and
queued for download; the next sync fetches them again. Exits with
status 1 when any blob failed.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("verify", pflag.ContinueOnError)
			params.cacheFlags.AddFlags(flagSet)
			params.JSONOutput.AddFlags(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			logger := commandLogger(&params.cacheFlags, "verify")
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			c, err := openCache(cfg, logger, true)
			if err != nil {
				return err
			}
			defer c.close()
			c.engine.SetAutomaticDownload(false)
			if err := c.init(ctx); err != nil {
				return err
			}

			result, err := verifyAll(ctx, c)
			if err != nil {
				return err
			}
			if done, err := params.EmitJSON(result); done {
				if err == nil && len(result.Failed) > 0 {
					return &cli.ExitError{Code: 1}
				}
				return err
			}
			fmt.Printf("%d blobs checked, %d failed\n", len(result.Checked), len(result.Failed))
			for _, id := range result.Failed {
				fmt.Printf("  %s: checksum mismatch, queued for download\n", id)
			}
			if len(result.Failed) > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// verifyAll settles the engine, forces a checksum of every available
// blob, and reports which ones stopped being available.
func verifyAll(ctx context.Context, c *cache) (verifyResult, error) {
	if err := c.settle(ctx); err != nil {
		return verifyResult{}, err
	}
	var result verifyResult
	for _, id := range c.engine.IDs() {
		if c.engine.IsIDAvailable(id) {
			result.Checked = append(result.Checked, id)
		}
	}

	c.engine.ForceVerifyAll()
	if err := c.settle(ctx); err != nil {
		return verifyResult{}, err
	}
	for _, id := range result.Checked {
		status, _ := c.engine.Status(id)
		if status.State() != downloadables.StateAvailable {
			result.Failed = append(result.Failed, id)
		}
	}
	return result, nil
}
