// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package idf

import (
	"fmt"

	"github.com/duetprep/duetprep/lib/atomicfile"
	"github.com/duetprep/duetprep/lib/codec"
)

// FileFormat identifies a persisted id-keyed IDF table.
const FileFormat = "duetprep.idf.v1"

// idfFile stores Weights[id] for ids 0..len-1.
type idfFile struct {
	Format  string    `cbor:"format"`
	Weights []float64 `cbor:"weights"`
}

// Weights returns the table as a slice indexed by id. The ids must be
// exactly 0..len(t)-1.
func (t IDTable) Weights() ([]float64, error) {
	weights := make([]float64, len(t))
	for id, weight := range t {
		if id < 0 || id >= len(t) {
			return nil, fmt.Errorf("IDF table ids are not contiguous: id %d with %d entries", id, len(t))
		}
		weights[id] = weight
	}
	return weights, nil
}

// Marshal encodes the table as deterministic CBOR.
func (t IDTable) Marshal() ([]byte, error) {
	weights, err := t.Weights()
	if err != nil {
		return nil, err
	}
	return codec.Marshal(idfFile{Format: FileFormat, Weights: weights})
}

// Save atomically writes the table to path.
func (t IDTable) Save(path string) error {
	data, err := t.Marshal()
	if err != nil {
		return fmt.Errorf("encoding IDF table: %w", err)
	}
	if err := atomicfile.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("saving IDF table: %w", err)
	}
	return nil
}

// LoadIDs reads a table written by IDTable.Save.
func LoadIDs(path string) (IDTable, error) {
	var document idfFile
	if err := codec.ReadFile(path, &document); err != nil {
		return nil, fmt.Errorf("loading IDF table: %w", err)
	}
	if err := codec.CheckFormat(document.Format, FileFormat); err != nil {
		return nil, fmt.Errorf("%s: IDF table: %w", path, err)
	}

	table := make(IDTable, len(document.Weights))
	for id, weight := range document.Weights {
		table[id] = weight
	}
	return table, nil
}
