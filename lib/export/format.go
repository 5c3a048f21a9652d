// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"fmt"
	"sort"
	"sync"

	"github.com/duetprep/duetprep/lib/columnar"
	"github.com/duetprep/duetprep/lib/dataset"
)

// Format decides how encoded splits are laid out in a container.
// Implementations must be stateless; a Format may be shared between
// concurrent exports.
type Format interface {
	// Name is the registry name.
	Name() string

	// DefineSchema returns the columns of a split's container.
	DefineSchema(split dataset.Split) (columnar.Schema, error)

	// CountRows returns the number of container rows split produces,
	// so the writer can be preallocated.
	CountRows(split dataset.Split, data *Encoded) (int, error)

	// WriteTrainingRow writes the rows for one training example
	// starting at row and returns how many rows it wrote.
	WriteTrainingRow(table *columnar.Writer, row int, example TrainingRow) (int, error)

	// WriteCandidateRow writes one dev or test candidate at row.
	WriteCandidateRow(table *columnar.Writer, row int, candidate CandidateRow) error
}

// TrainingRow is one encoded training example.
type TrainingRow struct {
	Query     []int64
	Positive  []int64
	Negatives [][]int64
}

// CandidateRow is one encoded, labeled query-document pair.
type CandidateRow struct {
	QueryID  int64
	Query    []int64
	Document []int64
	Label    int64
}

// Encoded holds the token ids of every query and document of a
// dataset, indexed by corpus position.
type Encoded struct {
	Dataset   *dataset.Dataset
	Queries   [][]int64
	Documents [][]int64
}

// Query returns the ids of the query with the given id.
func (e *Encoded) Query(id string) ([]int64, error) {
	position, ok := e.Dataset.Queries.Position(id)
	if !ok {
		return nil, fmt.Errorf("unknown query %q", id)
	}
	return e.Queries[position], nil
}

// Document returns the ids of the document with the given id.
func (e *Encoded) Document(id string) ([]int64, error) {
	position, ok := e.Dataset.Documents.Position(id)
	if !ok {
		return nil, fmt.Errorf("unknown document %q", id)
	}
	return e.Documents[position], nil
}

var (
	registryMutex sync.RWMutex
	registry      = map[string]func() Format{}
)

// Register makes a format available to LookupFormat. It panics if
// the name is already taken.
func Register(name string, factory func() Format) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("export: format %q registered twice", name))
	}
	registry[name] = factory
}

// LookupFormat returns a new instance of the named format.
func LookupFormat(name string) (Format, error) {
	registryMutex.RLock()
	factory, ok := registry[name]
	registryMutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown format %q (available: %v)", name, Formats())
	}
	return factory(), nil
}

// Formats lists the registered format names in sorted order.
func Formats() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
