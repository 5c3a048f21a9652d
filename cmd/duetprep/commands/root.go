// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/duetprep/duetprep/cmd/duetprep/cli"
	"github.com/duetprep/duetprep/lib/version"
)

// Root builds and returns the complete duetprep command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name: "duetprep",
		Description: `duetprep: dataset preparation for DUET ranking models.

Builds a vocabulary and IDF table from a query/document corpus, encodes
every text to token ids, and writes the train, dev and test splits as
columnar containers.`,
		Subcommands: []*cli.Command{
			exportCommand(),
			vocabCommand(),
			idfCommand(),
			inspectCommand(),
			encodeCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("duetprep %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Export every split described by a configuration file",
				Command:     "duetprep export --config duetprep.yaml",
			},
			{
				Description: "Export the training split without a configuration file",
				Command:     "duetprep export --dataset data/manifest.jsonc --train out/train.duet",
			},
			{
				Description: "Check a container's columns against their hashes",
				Command:     "duetprep inspect --verify out/train.duet",
			},
		},
	}
}
