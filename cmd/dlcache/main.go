// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// dlcache operates a downloadable content cache from the command line:
// it fetches the catalog, downloads and verifies blobs, optionally loads
// asset bundles from them, and reports state and download history.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/downloadables/cmd/dlcache/cli"
	"github.com/bureau-foundation/downloadables/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own output (like verify) return an
		// exit error with the desired exit code. Don't print a redundant
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return root().Execute(os.Args[1:])
}

func root() *cli.Command {
	return &cli.Command{
		Name: "dlcache",
		Description: `dlcache: downloadable content cache.

Keeps a local copy of the blobs listed in a remote catalog, verifying
each one against its catalog CRC-32, and loads asset bundles from them.
Configuration comes from the YAML file named by --config or
DLCACHE_CONFIG.`,
		Subcommands: []*cli.Command{
			syncCommand(),
			statusCommand(),
			verifyCommand(),
			historyCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("dlcache %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Download everything the first world needs",
				Command:     "dlcache sync world_1",
			},
			{
				Description: "Show the state of every entry",
				Command:     "dlcache status",
			},
			{
				Description: "Checksum every blob again",
				Command:     "dlcache verify",
			},
		},
	}
}
