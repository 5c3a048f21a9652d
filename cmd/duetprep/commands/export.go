// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/duetprep/duetprep/cmd/duetprep/cli"
	"github.com/duetprep/duetprep/lib/clock"
	"github.com/duetprep/duetprep/lib/config"
	"github.com/duetprep/duetprep/lib/export"
)

type exportParams struct {
	commonParams
	cli.JSONOutput

	Format            string
	Compression       string
	Train             string
	Dev               string
	Test              string
	VocabularyOut     string
	IDFOut            string
	MaxSize           int
	MaxQueryLength    int
	MaxDocumentLength int
}

func exportCommand() *cli.Command {
	var params exportParams

	return &cli.Command{
		Name:    "export",
		Summary: "Build the vocabulary and IDF table and write every split",
		Description: `Run the full pipeline: build a vocabulary over every query and
document, compute IDF weights over the documents, encode all texts, and
write one columnar container per requested split.

Settings come from the configuration file; flags override it. Without
a configuration file, --dataset and at least one split output are
required.`,
		Usage: "duetprep export [--config FILE] [flags]",
		Examples: []cli.Example{
			{
				Description: "Export with a configuration file",
				Command:     "duetprep export --config duetprep.yaml",
			},
			{
				Description: "Export the dev split with zstd compression and print a JSON summary",
				Command:     "duetprep export --dataset data/manifest.jsonc --dev out/dev.duet --compression zstd --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			params.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("export takes no positional arguments, got %q", args[0])
			}
			cfg, err := params.exportConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg, "export")
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runExport(ctx, cfg, logger, &params.JSONOutput, os.Stdout)
		},
	}
}

// register binds the export flags to a fresh p.
func (p *exportParams) register(flagSet *pflag.FlagSet) {
	*p = exportParams{}
	p.addFlags(flagSet)
	p.JSONOutput.AddFlag(flagSet)
	flagSet.StringVar(&p.Format, "format", "", "export format (default duet)")
	flagSet.StringVar(&p.Compression, "compression", "", "column compression: none, lz4, zstd, bg8_lz4 or auto")
	flagSet.StringVar(&p.Train, "train", "", "training split container")
	flagSet.StringVar(&p.Dev, "dev", "", "dev split container")
	flagSet.StringVar(&p.Test, "test", "", "test split container")
	flagSet.StringVar(&p.VocabularyOut, "vocab-out", "", "vocabulary file")
	flagSet.StringVar(&p.IDFOut, "idf-out", "", "IDF file")
	flagSet.IntVar(&p.MaxSize, "max-size", 0, "vocabulary size cap, special tokens included (0 means none)")
	flagSet.IntVar(&p.MaxQueryLength, "max-query-length", 0, "query token cap (0 means none)")
	flagSet.IntVar(&p.MaxDocumentLength, "max-doc-length", 0, "document token cap (0 means none)")
}

// exportConfig loads the configuration and applies the export flags.
func (p *exportParams) exportConfig() (*config.Config, error) {
	cfg, err := p.loadConfig()
	if err != nil {
		return nil, err
	}
	overrides := []struct {
		flag   string
		target *string
		value  string
	}{
		{"format", &cfg.Export.Format, p.Format},
		{"compression", &cfg.Export.Compression, p.Compression},
		{"train", &cfg.Outputs.Train, p.Train},
		{"dev", &cfg.Outputs.Dev, p.Dev},
		{"test", &cfg.Outputs.Test, p.Test},
		{"vocab-out", &cfg.Outputs.Vocabulary, p.VocabularyOut},
		{"idf-out", &cfg.Outputs.IDF, p.IDFOut},
	}
	for _, override := range overrides {
		if p.changed(override.flag) {
			*override.target = override.value
		}
	}
	if p.changed("max-size") {
		cfg.Vocabulary.MaxSize = p.MaxSize
	}
	if p.changed("max-query-length") {
		cfg.Encoding.MaxQueryLength = p.MaxQueryLength
	}
	if p.changed("max-doc-length") {
		cfg.Encoding.MaxDocumentLength = p.MaxDocumentLength
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// runExport loads the dataset named by cfg, runs the exporter, and
// reports the result to w.
func runExport(ctx context.Context, cfg *config.Config, logger *slog.Logger, output *cli.JSONOutput, w io.Writer) error {
	data, tokenizer, err := loadInputs(cfg)
	if err != nil {
		return err
	}
	compression, err := cfg.Compression()
	if err != nil {
		return err
	}

	options := export.Options{
		Tokenizer:         tokenizer,
		Vocabulary:        cfg.VocabularyOptions(),
		MaxQueryLength:    cfg.Encoding.MaxQueryLength,
		MaxDocumentLength: cfg.Encoding.MaxDocumentLength,
		Parallel:          cfg.ParallelOptions(),
		Format:            cfg.Export.Format,
		Compression:       compression,
		VocabularyPath:    cfg.Outputs.Vocabulary,
		IDFPath:           cfg.Outputs.IDF,
		Outputs:           cfg.SplitOutputs(),
	}
	exporter := export.New(data, options, export.WithClock(clock.Real()), export.WithLogger(logger))
	result, err := exporter.Run(ctx)
	if err != nil {
		return err
	}

	if output != nil {
		if done, err := output.EmitJSON(result); done {
			return err
		}
	}
	printExportResult(w, result)
	return nil
}

func printExportResult(w io.Writer, result *export.Result) {
	fmt.Fprintf(w, "format %s: %s queries, %s documents, %s vocabulary tokens\n",
		result.Format, humanize.Comma(int64(result.Queries)),
		humanize.Comma(int64(result.Documents)), humanize.Comma(int64(result.VocabularySize)))
	if result.VocabularyPath != "" {
		fmt.Fprintf(w, "vocabulary: %s\n", result.VocabularyPath)
	}
	if result.IDFPath != "" {
		fmt.Fprintf(w, "idf: %s\n", result.IDFPath)
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "SPLIT\tROWS\tSIZE\tHASH\tPATH\n")
	for _, split := range result.Splits {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", split.Split, humanize.Comma(int64(split.Rows)),
			humanize.IBytes(uint64(split.Bytes)), split.Hash.Short(), split.Path)
	}
	tw.Flush()

	fmt.Fprintln(w)
	for _, stage := range result.Durations {
		fmt.Fprintf(w, "%-12s %s\n", stage.Stage, stage.Duration)
	}
}
