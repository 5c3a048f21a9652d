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
	"github.com/duetprep/duetprep/lib/vocab"
)

type vocabParams struct {
	commonParams

	Out     string
	MaxSize int
}

func vocabCommand() *cli.Command {
	var params vocabParams

	return &cli.Command{
		Name:    "vocab",
		Summary: "Build and save a vocabulary",
		Description: `Tokenize every query and document of a dataset and save the
vocabulary: special tokens first, then tokens by descending frequency,
ties broken by first occurrence.`,
		Usage: "duetprep vocab --dataset MANIFEST --out FILE [--max-size N]",
		Examples: []cli.Example{
			{
				Description: "Keep the 50,000 most frequent tokens",
				Command:     "duetprep vocab --dataset data/manifest.jsonc --out vocab.cbor --max-size 50000",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("vocab", pflag.ContinueOnError)
			params = vocabParams{}
			params.addFlags(flagSet)
			flagSet.StringVarP(&params.Out, "out", "o", "", "vocabulary file (default outputs.vocabulary)")
			flagSet.IntVar(&params.MaxSize, "max-size", 0, "vocabulary size cap, special tokens included (0 means none)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("vocab takes no positional arguments, got %q", args[0])
			}
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			if params.changed("max-size") {
				cfg.Vocabulary.MaxSize = params.MaxSize
			}
			if params.changed("out") {
				cfg.Outputs.Vocabulary = params.Out
			}
			logger, err := newLogger(cfg, "vocab")
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runVocab(ctx, cfg, logger, os.Stdout)
		},
	}
}

// runVocab builds the vocabulary of cfg's dataset and saves it to
// outputs.vocabulary.
func runVocab(ctx context.Context, cfg *config.Config, logger *slog.Logger, w io.Writer) error {
	if cfg.Outputs.Vocabulary == "" {
		return fmt.Errorf("--out is required")
	}
	data, tokenizer, err := loadInputs(cfg)
	if err != nil {
		return err
	}

	options := cfg.VocabularyOptions()
	options.Parallel = cfg.ParallelOptions()
	logger.Info("building vocabulary", "texts", data.Queries.Len()+data.Documents.Len())
	vocabulary, err := vocab.Build(ctx, data.Collection(), tokenizer, options)
	if err != nil {
		return fmt.Errorf("building vocabulary: %w", err)
	}
	if err := vocabulary.Save(cfg.Outputs.Vocabulary); err != nil {
		return fmt.Errorf("saving vocabulary: %w", err)
	}
	logger.Info("vocabulary saved", "path", cfg.Outputs.Vocabulary, "tokens", vocabulary.Len())

	fmt.Fprintf(w, "wrote %s tokens to %s\n", humanize.Comma(int64(vocabulary.Len())), cfg.Outputs.Vocabulary)
	return nil
}
