// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package tokenize splits raw query and document text into tokens.
//
// The vocabulary builder, the IDF computation and the encoder all
// depend only on the [Tokenizer] capability, so any splitter can be
// plugged in. Two are built in: [Whitespace] and [Word]. [New] selects
// one by name from configuration.
//
// Tokenizers must be safe for concurrent use: the same value is called
// from every worker of a parallel pool.
package tokenize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Tokenizer turns a text into a sequence of tokens. A returned error
// is fatal to the caller's whole operation.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// Func adapts a plain function to the Tokenizer interface.
type Func func(text string) ([]string, error)

// Tokenize calls f(text).
func (f Func) Tokenize(text string) ([]string, error) {
	return f(text)
}

// Whitespace splits on Unicode whitespace and nothing else.
type Whitespace struct {
	// Lowercase folds every token to lower case.
	Lowercase bool
}

// Tokenize splits text on whitespace runs.
func (w Whitespace) Tokenize(text string) ([]string, error) {
	if w.Lowercase {
		text = strings.ToLower(text)
	}
	return strings.Fields(text), nil
}

// wordPattern matches runs of letters and digits. Apostrophes and
// hyphens inside a run are kept so "don't" and "e-mail" stay whole.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*`)

// wordAndPunctuationPattern additionally matches each run of
// punctuation or symbols as its own token.
var wordAndPunctuationPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*|[\p{P}\p{S}]+`)

// Word extracts letter/digit runs, the usual choice for ranking text.
type Word struct {
	// PreserveCase disables lowercasing.
	PreserveCase bool

	// KeepPunctuation emits runs of punctuation and symbols as tokens
	// instead of dropping them.
	KeepPunctuation bool

	// MinLength drops tokens with fewer runes. Zero keeps everything.
	MinLength int

	// StopWords are dropped after case folding.
	StopWords map[string]bool
}

// Tokenize extracts word tokens from text. Invalid UTF-8 sequences
// separate tokens like whitespace does.
func (w Word) Tokenize(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, " ")
	}
	if !w.PreserveCase {
		text = strings.ToLower(text)
	}

	pattern := wordPattern
	if w.KeepPunctuation {
		pattern = wordAndPunctuationPattern
	}

	matches := pattern.FindAllString(text, -1)
	tokens := matches[:0]
	for _, match := range matches {
		if w.MinLength > 0 && utf8.RuneCountInString(match) < w.MinLength {
			continue
		}
		if w.StopWords[match] {
			continue
		}
		tokens = append(tokens, match)
	}
	if len(tokens) == 0 {
		return nil, nil
	}
	return tokens, nil
}

// Kind names a built-in tokenizer.
type Kind string

const (
	KindWhitespace Kind = "whitespace"
	KindWord       Kind = "word"
)

// Options selects and configures a built-in tokenizer.
type Options struct {
	Kind            Kind
	Lowercase       bool
	KeepPunctuation bool
	MinLength       int
	StopWords       []string
}

// New builds the tokenizer described by options.
func New(options Options) (Tokenizer, error) {
	switch options.Kind {
	case KindWhitespace:
		return Whitespace{Lowercase: options.Lowercase}, nil
	case KindWord, "":
		word := Word{
			PreserveCase:    !options.Lowercase,
			KeepPunctuation: options.KeepPunctuation,
			MinLength:       options.MinLength,
		}
		if len(options.StopWords) > 0 {
			word.StopWords = make(map[string]bool, len(options.StopWords))
			for _, stopWord := range options.StopWords {
				if options.Lowercase {
					stopWord = strings.ToLower(stopWord)
				}
				word.StopWords[stopWord] = true
			}
		}
		return word, nil
	default:
		return nil, fmt.Errorf("unknown tokenizer kind %q (want %q or %q)", options.Kind, KindWhitespace, KindWord)
	}
}

