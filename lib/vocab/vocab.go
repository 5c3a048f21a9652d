// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package vocab

import (
	"context"
	"errors"
	"fmt"

	"github.com/duetprep/duetprep/lib/parallel"
	"github.com/duetprep/duetprep/lib/tokenize"
)

// UnknownToken is the default token that out-of-vocabulary tokens
// encode to.
const UnknownToken = "<UNK>"

// DefaultSpecialTokens are reserved at the lowest ids when
// Options.SpecialTokens is nil: unknown, padding, end and start
// markers.
var DefaultSpecialTokens = []string{UnknownToken, "<PAD>", "<EOS>", "<START>"}

var (
	// ErrCapacityTooSmall is returned by Build when MaxSize cannot hold
	// the special tokens.
	ErrCapacityTooSmall = errors.New("vocabulary capacity is smaller than the number of special tokens")

	// ErrNoUnknownToken is returned by Encode when a token is not in
	// the vocabulary and the vocabulary has no unknown token to fall
	// back to.
	ErrNoUnknownToken = errors.New("token is out of vocabulary and the vocabulary has no unknown token")

	// ErrUnknownTokenNotSpecial is returned by RequireUnknownToken when
	// the unknown token is not one of the special tokens.
	ErrUnknownTokenNotSpecial = errors.New("unknown token is not one of the special tokens")
)

// Options configures Build.
type Options struct {
	// SpecialTokens are assigned ids 0..len-1 in order. Nil means
	// DefaultSpecialTokens; an empty non-nil slice means none.
	// Duplicates keep their first position.
	SpecialTokens []string

	// MaxSize caps the vocabulary, special tokens included. Zero
	// means no cap.
	MaxSize int

	// UnknownToken is the token out-of-vocabulary tokens encode to.
	// Empty means UnknownToken.
	UnknownToken string

	// Parallel configures the tokenization pool.
	Parallel parallel.Options
}

func (o Options) specialTokens() []string {
	specials := o.SpecialTokens
	if specials == nil {
		specials = DefaultSpecialTokens
	}
	seen := make(map[string]bool, len(specials))
	unique := make([]string, 0, len(specials))
	for _, token := range specials {
		if seen[token] {
			continue
		}
		seen[token] = true
		unique = append(unique, token)
	}
	return unique
}

func (o Options) unknownToken() string {
	if o.UnknownToken == "" {
		return UnknownToken
	}
	return o.UnknownToken
}

// RequireUnknownToken returns ErrUnknownTokenNotSpecial unless the
// unknown token is one of the special tokens. Only then is it
// guaranteed a slot, so every vocabulary built with o can encode
// out-of-vocabulary tokens.
func (o Options) RequireUnknownToken() error {
	unknown := o.unknownToken()
	for _, token := range o.specialTokens() {
		if token == unknown {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTokenNotSpecial, unknown)
}

// Build tokenizes collection, counts token frequencies and returns the
// vocabulary. See the package documentation for the id assignment
// rules.
func Build(ctx context.Context, collection []string, tokenizer tokenize.Tokenizer, options Options) (*Vocabulary, error) {
	specials := options.specialTokens()
	if options.MaxSize < 0 {
		return nil, fmt.Errorf("vocabulary max size must not be negative, got %d", options.MaxSize)
	}
	if options.MaxSize > 0 && options.MaxSize < len(specials) {
		return nil, fmt.Errorf("%w: max size %d, %d special tokens", ErrCapacityTooSmall, options.MaxSize, len(specials))
	}

	frequencies, err := CountTokens(ctx, collection, tokenizer, options.Parallel)
	if err != nil {
		return nil, fmt.Errorf("counting tokens: %w", err)
	}

	return FromFrequencies(frequencies, specials, options.MaxSize, options.unknownToken())
}

// FromFrequencies assigns ids from an already counted frequency table.
// specials take the lowest ids; the rest are ranked by frequency and
// cut so the vocabulary holds at most maxSize tokens (0 = no cap).
func FromFrequencies(frequencies *Frequencies, specials []string, maxSize int, unknownToken string) (*Vocabulary, error) {
	if maxSize > 0 && maxSize < len(specials) {
		return nil, fmt.Errorf("%w: max size %d, %d special tokens", ErrCapacityTooSmall, maxSize, len(specials))
	}

	exclude := make(map[string]bool, len(specials))
	for _, token := range specials {
		exclude[token] = true
	}

	remaining := 0
	if maxSize > 0 {
		remaining = maxSize - len(specials)
	}

	tokens := make([]string, 0, len(specials)+frequencies.Len())
	tokens = append(tokens, specials...)
	if maxSize == 0 || remaining > 0 {
		tokens = append(tokens, frequencies.MostCommon(remaining, exclude)...)
	}
	return FromTokens(tokens, unknownToken)
}

// Vocabulary is an immutable bijection between tokens and the dense
// ids 0..Len()-1.
type Vocabulary struct {
	tokens       []string
	ids          map[string]int
	unknownToken string
	unknownID    int
}

// FromTokens builds a Vocabulary whose id i is tokens[i]. Duplicate
// tokens are rejected. unknownToken names the fallback for Encode; it
// need not be present, in which case Encode fails on unknown tokens.
func FromTokens(tokens []string, unknownToken string) (*Vocabulary, error) {
	ids := make(map[string]int, len(tokens))
	for id, token := range tokens {
		if previous, exists := ids[token]; exists {
			return nil, fmt.Errorf("duplicate token %q at ids %d and %d", token, previous, id)
		}
		ids[token] = id
	}

	unknownID := -1
	if id, ok := ids[unknownToken]; ok {
		unknownID = id
	}

	return &Vocabulary{
		tokens:       append([]string(nil), tokens...),
		ids:          ids,
		unknownToken: unknownToken,
		unknownID:    unknownID,
	}, nil
}

// Len returns the number of tokens.
func (v *Vocabulary) Len() int {
	return len(v.tokens)
}

// ID returns the id of token.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.ids[token]
	return id, ok
}

// Contains reports whether token is in the vocabulary.
func (v *Vocabulary) Contains(token string) bool {
	_, ok := v.ids[token]
	return ok
}

// Token returns the token with the given id.
func (v *Vocabulary) Token(id int) (string, bool) {
	if id < 0 || id >= len(v.tokens) {
		return "", false
	}
	return v.tokens[id], true
}

// Tokens returns the inverse vocabulary as a slice indexed by id.
func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

// Mapping returns a copy of the token → id table.
func (v *Vocabulary) Mapping() map[string]int {
	mapping := make(map[string]int, len(v.ids))
	for token, id := range v.ids {
		mapping[token] = id
	}
	return mapping
}

// Inverse returns a copy of the id → token table.
func (v *Vocabulary) Inverse() map[int]string {
	inverse := make(map[int]string, len(v.tokens))
	for id, token := range v.tokens {
		inverse[id] = token
	}
	return inverse
}

// UnknownToken returns the fallback token name.
func (v *Vocabulary) UnknownToken() string {
	return v.unknownToken
}

// UnknownID returns the id out-of-vocabulary tokens encode to, and
// false if the vocabulary does not contain its unknown token.
func (v *Vocabulary) UnknownID() (int, bool) {
	return v.unknownID, v.unknownID >= 0
}

// Encode maps tokens to ids. Tokens not in the vocabulary map to the
// unknown-token id.
func (v *Vocabulary) Encode(tokens []string) ([]int64, error) {
	ids := make([]int64, len(tokens))
	for i, token := range tokens {
		id, ok := v.ids[token]
		if !ok {
			if v.unknownID < 0 {
				return nil, fmt.Errorf("%w: %q", ErrNoUnknownToken, token)
			}
			id = v.unknownID
		}
		ids[i] = int64(id)
	}
	return ids, nil
}

// Decode maps ids back to tokens.
func (v *Vocabulary) Decode(ids []int64) ([]string, error) {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		if id < 0 || id >= int64(len(v.tokens)) {
			return nil, fmt.Errorf("id %d at position %d is outside the vocabulary [0, %d)", id, i, len(v.tokens))
		}
		tokens[i] = v.tokens[id]
	}
	return tokens, nil
}
