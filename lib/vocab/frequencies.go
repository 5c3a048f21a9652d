// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package vocab

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/duetprep/duetprep/lib/parallel"
	"github.com/duetprep/duetprep/lib/tokenize"
)

// position locates the first occurrence of a token: the index of the
// collection item and the token offset within that item.
type position struct {
	item   int
	offset int
}

func (p position) compare(other position) int {
	if c := cmp.Compare(p.item, other.item); c != 0 {
		return c
	}
	return cmp.Compare(p.offset, other.offset)
}

// entry is the per-token state of a frequency table.
type entry struct {
	count int
	first position
}

// Frequencies is a term-frequency table: raw occurrence counts of every
// token across a tokenized collection.
type Frequencies struct {
	entries map[string]*entry
}

func newFrequencies() *Frequencies {
	return &Frequencies{entries: make(map[string]*entry)}
}

// add records one occurrence of token at p.
func (f *Frequencies) add(token string, p position) {
	e, ok := f.entries[token]
	if !ok {
		f.entries[token] = &entry{count: 1, first: p}
		return
	}
	e.count++
	if p.compare(e.first) < 0 {
		e.first = p
	}
}

// merge folds other into f. Counts add; first occurrences take the
// earlier position.
func (f *Frequencies) merge(other *Frequencies) {
	for token, theirs := range other.entries {
		ours, ok := f.entries[token]
		if !ok {
			f.entries[token] = &entry{count: theirs.count, first: theirs.first}
			continue
		}
		ours.count += theirs.count
		if theirs.first.compare(ours.first) < 0 {
			ours.first = theirs.first
		}
	}
}

// Count returns the number of occurrences of token.
func (f *Frequencies) Count(token string) int {
	if e, ok := f.entries[token]; ok {
		return e.count
	}
	return 0
}

// Len returns the number of distinct tokens.
func (f *Frequencies) Len() int {
	return len(f.entries)
}

// MostCommon returns up to n tokens ordered by descending count, ties
// broken by first occurrence. Tokens in exclude are skipped. n <= 0
// returns every token.
func (f *Frequencies) MostCommon(n int, exclude map[string]bool) []string {
	type ranked struct {
		token string
		*entry
	}
	candidates := make([]ranked, 0, len(f.entries))
	for token, e := range f.entries {
		if exclude[token] {
			continue
		}
		candidates = append(candidates, ranked{token: token, entry: e})
	}

	slices.SortFunc(candidates, func(a, b ranked) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return a.first.compare(b.first)
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	tokens := make([]string, len(candidates))
	for i, candidate := range candidates {
		tokens[i] = candidate.token
	}
	return tokens
}

// CountTokens tokenizes every text of collection on a worker pool and
// returns the merged term-frequency table. Each worker keeps its own
// table; the tables are merged once all workers finish. A tokenizer
// error aborts the count.
func CountTokens(ctx context.Context, collection []string, tokenizer tokenize.Tokenizer, options parallel.Options) (*Frequencies, error) {
	frequencies, err := parallel.Reduce(ctx, len(collection), options,
		newFrequencies,
		func(local *Frequencies, index int) error {
			tokens, err := tokenizer.Tokenize(collection[index])
			if err != nil {
				return fmt.Errorf("tokenizing: %w", err)
			}
			for offset, token := range tokens {
				local.add(token, position{item: index, offset: offset})
			}
			return nil
		},
		func(total, local *Frequencies) {
			total.merge(local)
		},
	)
	if err != nil {
		return nil, err
	}
	return frequencies, nil
}
