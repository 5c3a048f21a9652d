// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/duetprep/duetprep/cmd/duetprep/cli"
	"github.com/duetprep/duetprep/lib/config"
	"github.com/duetprep/duetprep/lib/idf"
	"github.com/duetprep/duetprep/lib/vocab"
)

type idfParams struct {
	commonParams

	Vocabulary string
	Out        string
}

func idfCommand() *cli.Command {
	var params idfParams

	return &cli.Command{
		Name:    "idf",
		Summary: "Compute and save IDF weights for a saved vocabulary",
		Description: `Count, for every vocabulary token, the documents containing it and
save the weights ln(N/(df+1))/ln(N) keyed by token id. N is the number
of documents; queries do not contribute.`,
		Usage: "duetprep idf --dataset MANIFEST --vocab FILE --out FILE",
		Examples: []cli.Example{
			{
				Description: "Weights for the vocabulary built by 'duetprep vocab'",
				Command:     "duetprep idf --dataset data/manifest.jsonc --vocab vocab.cbor --out idf.cbor",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("idf", pflag.ContinueOnError)
			params = idfParams{}
			params.addFlags(flagSet)
			flagSet.StringVar(&params.Vocabulary, "vocab", "", "vocabulary file (default outputs.vocabulary)")
			flagSet.StringVarP(&params.Out, "out", "o", "", "IDF file (default outputs.idf)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("idf takes no positional arguments, got %q", args[0])
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			if params.changed("vocab") {
				cfg.Outputs.Vocabulary = params.Vocabulary
			}
			if params.changed("out") {
				cfg.Outputs.IDF = params.Out
			}
			logger, err := newLogger(cfg, "idf")
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runIDF(ctx, cfg, logger, os.Stdout)
		},
	}
}

// runIDF computes the IDF table of cfg's documents over the saved
// vocabulary at outputs.vocabulary and saves it to outputs.idf.
func runIDF(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	if cfg.Outputs.Vocabulary == "" {
		return fmt.Errorf("--vocab is required")
	}
	if cfg.Outputs.IDF == "" {
		return fmt.Errorf("--out is required")
	}
	vocabulary, err := vocab.Load(cfg.Outputs.Vocabulary)
	if err != nil {
		return err
	}
	data, tokenizer, err := loadInputs(cfg)
	if err != nil {
		return err
	}
	if data.Documents.Len() < 2 {
		return fmt.Errorf("IDF needs at least 2 documents, dataset has %d", data.Documents.Len())
	}

	logger.Info("computing IDF", "documents", data.Documents.Len(), "tokens", vocabulary.Len())
	table, err := idf.Compute(ctx, vocabulary.Tokens(), data.Documents.Texts(), tokenizer, cfg.ParallelOptions())
	if err != nil {
		return fmt.Errorf("computing IDF: %w", err)
	}
	byID, err := table.ByID(vocabulary)
	if err != nil {
		return err
	}
	if err := byID.Save(cfg.Outputs.IDF); err != nil {
		return fmt.Errorf("saving IDF table: %w", err)
	}
	logger.Info("IDF table saved", "path", cfg.Outputs.IDF)

	fmt.Fprintf(w, "wrote %s weights over %s documents to %s\n",
		humanize.Comma(int64(len(byID))), humanize.Comma(int64(data.Documents.Len())), cfg.Outputs.IDF)
	return nil
}
