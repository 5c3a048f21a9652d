// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"errors"
	"fmt"
	"strconv"
)

// Split names a part of a dataset.
type Split string

const (
	Train Split = "train"
	Dev   Split = "dev"
	Test  Split = "test"
)

// Splits lists every split in export order.
var Splits = []Split{Train, Dev, Test}

// ParseSplit validates a split name.
func ParseSplit(name string) (Split, error) {
	switch split := Split(name); split {
	case Train, Dev, Test:
		return split, nil
	default:
		return "", fmt.Errorf("unknown split %q (want train, dev or test)", name)
	}
}

// IsCandidateSet reports whether the split holds labeled candidate
// pairs rather than training examples.
func (s Split) IsCandidateSet() bool {
	return s == Dev || s == Test
}

// Entry is one identified text.
type Entry struct {
	ID   string
	Text string
}

// Corpus is an ordered collection of identified texts.
type Corpus struct {
	entries []Entry
	index   map[string]int
}

// NewCorpus builds a corpus. Duplicate ids are an error.
func NewCorpus(entries []Entry) (*Corpus, error) {
	index := make(map[string]int, len(entries))
	for position, entry := range entries {
		if previous, exists := index[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate id %q (entries %d and %d)", entry.ID, previous, position)
		}
		index[entry.ID] = position
	}
	return &Corpus{entries: entries, index: index}, nil
}

// Len returns the number of entries.
func (c *Corpus) Len() int {
	return len(c.entries)
}

// Entry returns the entry at position.
func (c *Corpus) Entry(position int) Entry {
	return c.entries[position]
}

// Position returns the position of the entry with the given id.
func (c *Corpus) Position(id string) (int, bool) {
	position, ok := c.index[id]
	return position, ok
}

// Lookup returns the text with the given id.
func (c *Corpus) Lookup(id string) (string, bool) {
	position, ok := c.index[id]
	if !ok {
		return "", false
	}
	return c.entries[position].Text, true
}

// Texts returns every text in corpus order.
func (c *Corpus) Texts() []string {
	texts := make([]string, len(c.entries))
	for i, entry := range c.entries {
		texts[i] = entry.Text
	}
	return texts
}

// TrainExample pairs a query with one relevant document and a list of
// non-relevant documents. It yields one training triplet per negative.
type TrainExample struct {
	QueryID     string
	PositiveID  string
	NegativeIDs []string
}

// Trainset is the training split.
type Trainset struct {
	Examples []TrainExample

	// NegativesPerPositive is the number of negatives kept for each
	// example. Zero keeps all of them.
	NegativesPerPositive int
}

// Negatives returns the negatives of example that are used for
// training.
func (t *Trainset) Negatives(example TrainExample) []string {
	if t.NegativesPerPositive > 0 && len(example.NegativeIDs) > t.NegativesPerPositive {
		return example.NegativeIDs[:t.NegativesPerPositive]
	}
	return example.NegativeIDs
}

// Triplets returns the number of (query, positive, negative) triplets
// the training set yields.
func (t *Trainset) Triplets() int {
	var total int
	for _, example := range t.Examples {
		total += len(t.Negatives(example))
	}
	return total
}

// Candidate is one labeled query-document pair.
type Candidate struct {
	QueryID    string
	DocumentID string
	Label      int64
}

// Candidates is a dev or test split.
type Candidates struct {
	Rows []Candidate
}

// Len returns the number of candidate pairs.
func (c *Candidates) Len() int {
	return len(c.Rows)
}

// Dataset is a complete ranking dataset.
type Dataset struct {
	Queries   *Corpus
	Documents *Corpus
	Train     *Trainset
	Dev       *Candidates
	Test      *Candidates
}

// Has reports whether the dataset provides split.
func (d *Dataset) Has(split Split) bool {
	switch split {
	case Train:
		return d.Train != nil
	case Dev:
		return d.Dev != nil
	case Test:
		return d.Test != nil
	}
	return false
}

// CandidateSet returns the dev or test split.
func (d *Dataset) CandidateSet(split Split) (*Candidates, error) {
	var candidates *Candidates
	switch split {
	case Dev:
		candidates = d.Dev
	case Test:
		candidates = d.Test
	default:
		return nil, fmt.Errorf("split %q is not a candidate set", split)
	}
	if candidates == nil {
		return nil, fmt.Errorf("dataset has no %s split", split)
	}
	return candidates, nil
}

// Collection returns every query text followed by every document text,
// the input to vocabulary building.
func (d *Dataset) Collection() []string {
	collection := make([]string, 0, d.Queries.Len()+d.Documents.Len())
	collection = append(collection, d.Queries.Texts()...)
	collection = append(collection, d.Documents.Texts()...)
	return collection
}

// QueryNumber parses a query id as the integer written to q_ids
// columns.
func QueryNumber(queryID string) (int64, error) {
	number, err := strconv.ParseInt(queryID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("query id %q is not an integer", queryID)
	}
	return number, nil
}

// Validate checks that every id referenced by a split exists and that
// candidate query ids are integers.
func (d *Dataset) Validate() error {
	if d.Queries == nil || d.Documents == nil {
		return errors.New("dataset needs both queries and documents")
	}

	var errs []error
	requireQuery := func(split Split, row int, id string) {
		if _, ok := d.Queries.Position(id); !ok {
			errs = append(errs, fmt.Errorf("%s row %d: unknown query %q", split, row, id))
		}
	}
	requireDocument := func(split Split, row int, id string) {
		if _, ok := d.Documents.Position(id); !ok {
			errs = append(errs, fmt.Errorf("%s row %d: unknown document %q", split, row, id))
		}
	}

	if d.Train != nil {
		if d.Train.NegativesPerPositive < 0 {
			errs = append(errs, fmt.Errorf("negatives per positive must not be negative, got %d", d.Train.NegativesPerPositive))
		}
		for row, example := range d.Train.Examples {
			requireQuery(Train, row, example.QueryID)
			requireDocument(Train, row, example.PositiveID)
			for _, negative := range example.NegativeIDs {
				requireDocument(Train, row, negative)
			}
		}
	}

	for _, split := range []Split{Dev, Test} {
		if !d.Has(split) {
			continue
		}
		candidates, _ := d.CandidateSet(split)
		for row, candidate := range candidates.Rows {
			requireQuery(split, row, candidate.QueryID)
			requireDocument(split, row, candidate.DocumentID)
			if _, err := QueryNumber(candidate.QueryID); err != nil {
				errs = append(errs, fmt.Errorf("%s row %d: %w", split, row, err))
			}
		}
	}

	return errors.Join(errs...)
}
