// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"

	"github.com/duetprep/duetprep/lib/columnar"
	"github.com/duetprep/duetprep/lib/dataset"
)

// DUET column names.
const (
	ColumnQueries      = "queries"
	ColumnPositiveDocs = "pos_docs"
	ColumnNegativeDocs = "neg_docs"
	ColumnDocs         = "docs"
	ColumnQueryIDs     = "q_ids"
	ColumnLabels       = "labels"
)

func init() {
	Register(DUETFormatName, func() Format { return duet{} })
}

// DUETFormatName is the registry name of the DUET format.
const DUETFormatName = "duet"

// duet writes training splits as one row per (query, positive,
// negative) triplet and candidate splits as one row per pair.
type duet struct{}

func (duet) Name() string {
	return DUETFormatName
}

func (duet) DefineSchema(split dataset.Split) (columnar.Schema, error) {
	switch split {
	case dataset.Train:
		return columnar.Schema{
			{Name: ColumnQueries, Type: columnar.Int64List},
			{Name: ColumnPositiveDocs, Type: columnar.Int64List},
			{Name: ColumnNegativeDocs, Type: columnar.Int64List},
		}, nil
	case dataset.Dev, dataset.Test:
		return columnar.Schema{
			{Name: ColumnQueries, Type: columnar.Int64List},
			{Name: ColumnDocs, Type: columnar.Int64List},
			{Name: ColumnQueryIDs, Type: columnar.Int64},
			{Name: ColumnLabels, Type: columnar.Int64},
		}, nil
	default:
		return nil, fmt.Errorf("duet: unknown split %q", split)
	}
}

func (duet) CountRows(split dataset.Split, data *Encoded) (int, error) {
	switch split {
	case dataset.Train:
		if data.Dataset.Train == nil {
			return 0, fmt.Errorf("dataset has no %s split", split)
		}
		return data.Dataset.Train.Triplets(), nil
	case dataset.Dev, dataset.Test:
		candidates, err := data.Dataset.CandidateSet(split)
		if err != nil {
			return 0, err
		}
		return candidates.Len(), nil
	default:
		return 0, fmt.Errorf("duet: unknown split %q", split)
	}
}

func (duet) WriteTrainingRow(table *columnar.Writer, row int, example TrainingRow) (int, error) {
	for i, negative := range example.Negatives {
		target := row + i
		if err := table.SetInt64List(ColumnQueries, target, example.Query); err != nil {
			return i, err
		}
		if err := table.SetInt64List(ColumnPositiveDocs, target, example.Positive); err != nil {
			return i, err
		}
		if err := table.SetInt64List(ColumnNegativeDocs, target, negative); err != nil {
			return i, err
		}
	}
	return len(example.Negatives), nil
}

func (duet) WriteCandidateRow(table *columnar.Writer, row int, candidate CandidateRow) error {
	if err := table.SetInt64List(ColumnQueries, row, candidate.Query); err != nil {
		return err
	}
	if err := table.SetInt64List(ColumnDocs, row, candidate.Document); err != nil {
		return err
	}
	if err := table.SetInt64(ColumnQueryIDs, row, candidate.QueryID); err != nil {
		return err
	}
	return table.SetInt64(ColumnLabels, row, candidate.Label)
}
