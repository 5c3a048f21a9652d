// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package vocab

import (
	"fmt"

	"github.com/duetprep/duetprep/lib/atomicfile"
	"github.com/duetprep/duetprep/lib/codec"
)

// FileFormat identifies a persisted vocabulary. Bump the suffix when
// the document shape changes incompatibly.
const FileFormat = "duetprep.vocabulary.v1"

// vocabularyFile is the on-disk inverse vocabulary: Tokens[id] is the
// token with that id.
type vocabularyFile struct {
	Format       string   `cbor:"format"`
	UnknownToken string   `cbor:"unknown_token,omitempty"`
	Tokens       []string `cbor:"tokens"`
}

// Marshal encodes the inverse vocabulary as deterministic CBOR.
func (v *Vocabulary) Marshal() ([]byte, error) {
	return codec.Marshal(vocabularyFile{
		Format:       FileFormat,
		UnknownToken: v.unknownToken,
		Tokens:       v.tokens,
	})
}

// Save atomically writes the inverse vocabulary to path.
func (v *Vocabulary) Save(path string) error {
	data, err := v.Marshal()
	if err != nil {
		return fmt.Errorf("encoding vocabulary: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("saving vocabulary: %w", err)
	}
	return nil
}

// Load reads a vocabulary written by Save.
func Load(path string) (*Vocabulary, error) {
	var document vocabularyFile
	if err := codec.ReadFile(path, &document); err != nil {
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}
	if err := codec.CheckFormat(document.Format, FileFormat); err != nil {
		return nil, fmt.Errorf("%s: vocabulary: %w", path, err)
	}

	vocabulary, err := FromTokens(document.Tokens, document.UnknownToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vocabulary, nil
}
