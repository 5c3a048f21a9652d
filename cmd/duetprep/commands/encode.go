// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/duetprep/duetprep/cmd/duetprep/cli"
	"github.com/duetprep/duetprep/lib/tokenize"
	"github.com/duetprep/duetprep/lib/vocab"
)

type encodeParams struct {
	commonParams

	Vocabulary string
	Decode     bool
	MaxLength  int
}

func encodeCommand() *cli.Command {
	var params encodeParams

	return &cli.Command{
		Name:    "encode",
		Summary: "Encode text to token ids with a saved vocabulary",
		Description: `Tokenize each TEXT argument, or each line of stdin when there are
none, and print its token ids separated by spaces. Out-of-vocabulary
tokens map to the unknown-token id.

With --decode, each input is a space-separated id list and the tokens
are printed instead.`,
		Usage: "duetprep encode --vocab FILE [--decode] [TEXT...]",
		Examples: []cli.Example{
			{
				Description: "Encode a query",
				Command:     "duetprep encode --vocab vocab.cbor 'the cat sat'",
			},
			{
				Description: "Round-trip through the vocabulary",
				Command:     "duetprep encode --vocab vocab.cbor 'the cat' | duetprep encode --vocab vocab.cbor --decode",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("encode", pflag.ContinueOnError)
			params = encodeParams{}
			params.addFlags(flagSet)
			flagSet.StringVar(&params.Vocabulary, "vocab", "", "vocabulary file (default outputs.vocabulary)")
			flagSet.BoolVarP(&params.Decode, "decode", "d", false, "map ids back to tokens")
			flagSet.IntVar(&params.MaxLength, "max-length", 0, "truncate each text to this many tokens (0 means none)")
			return flagSet
		},
		Run: func(args []string) error {
			cfg, err := params.loadConfig()
			if err != nil {
				return err
			}
			if params.changed("vocab") {
				cfg.Outputs.Vocabulary = params.Vocabulary
			}
			if cfg.Outputs.Vocabulary == "" {
				return fmt.Errorf("--vocab is required")
			}
			vocabulary, err := vocab.Load(cfg.Outputs.Vocabulary)
			if err != nil {
				return err
			}
			tokenizer, err := cfg.BuildTokenizer()
			if err != nil {
				return err
			}
			encoder := &textEncoder{
				vocabulary: vocabulary,
				tokenizer:  tokenizer,
				maxLength:  params.MaxLength,
				decode:     params.Decode,
			}
			return encoder.run(args, os.Stdin, os.Stdout)
		},
	}
}

type textEncoder struct {
	vocabulary *vocab.Vocabulary
	tokenizer  tokenize.Tokenizer
	maxLength  int
	decode     bool
}

// run converts every argument, or every line of stdin when args is
// empty, writing one output line per input.
func (e *textEncoder) run(args []string, stdin io.Reader, w io.Writer) error {
	if len(args) > 0 {
		for _, input := range args {
			if err := e.line(input, w); err != nil {
				return err
			}
		}
		return nil
	}

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for lineNumber := 1; scanner.Scan(); lineNumber++ {
		if err := e.line(scanner.Text(), w); err != nil {
			return fmt.Errorf("line %d: %w", lineNumber, err)
		}
	}
	return scanner.Err()
}

func (e *textEncoder) line(input string, w io.Writer) error {
	if e.decode {
		ids, err := parseIDs(input)
		if err != nil {
			return err
		}
		tokens, err := e.vocabulary.Decode(ids)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, strings.Join(tokens, " "))
		return err
	}

	tokens, err := e.tokenizer.Tokenize(input)
	if err != nil {
		return err
	}
	if e.maxLength > 0 && len(tokens) > e.maxLength {
		tokens = tokens[:e.maxLength]
	}
	ids, err := e.vocabulary.Encode(tokens)
	if err != nil {
		return err
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatInt(id, 10)
	}
	_, err = fmt.Fprintln(w, strings.Join(fields, " "))
	return err
}

func parseIDs(input string) ([]int64, error) {
	fields := strings.Fields(input)
	ids := make([]int64, len(fields))
	for i, field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q", field)
		}
		ids[i] = id
	}
	return ids, nil
}
