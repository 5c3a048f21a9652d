// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package idf computes smoothed inverse document frequencies for the
// tokens of a vocabulary.
//
// Each document is tokenized and reduced to its bag of words, so a
// token repeated within one document counts once. For a vocabulary
// token occurring in df of N documents the weight is
//
//	idf = ln(N / (df + 1)) / ln(N)
//
// A token absent from every document weighs exactly 1. The weight
// falls as df grows and turns negative once df + 1 exceeds N; negative
// weights are returned as computed. N must be at least 2: N = 0 and
// N = 1 make the denominator zero and the result NaN or infinite.
package idf

import (
	"context"
	"fmt"
	"math"

	"github.com/duetprep/duetprep/lib/parallel"
	"github.com/duetprep/duetprep/lib/tokenize"
	"github.com/duetprep/duetprep/lib/vocab"
)

// Frequencies is a document-frequency table restricted to a
// vocabulary.
type Frequencies struct {
	// Counts maps every vocabulary token to the number of documents
	// containing it at least once. Tokens in no document map to 0.
	Counts map[string]int

	// Documents is the total number of documents counted.
	Documents int
}

// DocumentFrequencies counts, for every token in vocabulary, how many
// documents contain it. Documents are tokenized on a worker pool; each
// worker tallies its own counts and the tallies are summed at the end.
// Tokens outside vocabulary are ignored.
func DocumentFrequencies(ctx context.Context, vocabulary []string, documents []string, tokenizer tokenize.Tokenizer, options parallel.Options) (Frequencies, error) {
	members := make(map[string]bool, len(vocabulary))
	for _, token := range vocabulary {
		members[token] = true
	}

	counts, err := parallel.Reduce(ctx, len(documents), options,
		func() map[string]int { return make(map[string]int) },
		func(local map[string]int, index int) error {
			tokens, err := tokenizer.Tokenize(documents[index])
			if err != nil {
				return fmt.Errorf("tokenizing document: %w", err)
			}
			for token := range bagOfWords(tokens) {
				if members[token] {
					local[token]++
				}
			}
			return nil
		},
		func(total, local map[string]int) {
			for token, count := range local {
				total[token] += count
			}
		},
	)
	if err != nil {
		return Frequencies{}, err
	}

	for token := range members {
		if _, ok := counts[token]; !ok {
			counts[token] = 0
		}
	}
	return Frequencies{Counts: counts, Documents: len(documents)}, nil
}

// bagOfWords returns the distinct tokens of a document.
func bagOfWords(tokens []string) map[string]struct{} {
	bag := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		bag[token] = struct{}{}
	}
	return bag
}

// Weight returns ln(documents / (documentFrequency + 1)) / ln(documents).
func Weight(documents, documentFrequency int) float64 {
	n := float64(documents)
	return math.Log(n/float64(documentFrequency+1)) / math.Log(n)
}

// Table maps tokens to IDF weights.
type Table map[string]float64

// FromFrequencies converts a document-frequency table to weights. The
// result has exactly one entry per token in frequencies.
func FromFrequencies(frequencies Frequencies) Table {
	table := make(Table, len(frequencies.Counts))
	for token, documentFrequency := range frequencies.Counts {
		table[token] = Weight(frequencies.Documents, documentFrequency)
	}
	return table
}

// Compute returns the IDF weight of every token in vocabulary over
// documents.
func Compute(ctx context.Context, vocabulary []string, documents []string, tokenizer tokenize.Tokenizer, options parallel.Options) (Table, error) {
	frequencies, err := DocumentFrequencies(ctx, vocabulary, documents, tokenizer, options)
	if err != nil {
		return nil, fmt.Errorf("counting document frequencies: %w", err)
	}
	return FromFrequencies(frequencies), nil
}

// IDTable maps vocabulary ids to IDF weights.
type IDTable map[int]float64

// ByID rekeys the table by vocabulary id. Every token in the table
// must be in the vocabulary.
func (t Table) ByID(vocabulary *vocab.Vocabulary) (IDTable, error) {
	byID := make(IDTable, len(t))
	for token, weight := range t {
		id, ok := vocabulary.ID(token)
		if !ok {
			return nil, fmt.Errorf("token %q has an IDF weight but is not in the vocabulary", token)
		}
		byID[id] = weight
	}
	return byID, nil
}
