// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tidwall/jsonc"
)

// maxLineBytes bounds a single TSV line. Document texts can be long.
const maxLineBytes = 16 << 20

// Manifest names the files of a dataset. Relative paths resolve
// against the manifest's directory.
type Manifest struct {
	Queries              string `json:"queries"`
	Documents            string `json:"documents"`
	Train                string `json:"train,omitempty"`
	Dev                  string `json:"dev,omitempty"`
	Test                 string `json:"test,omitempty"`
	NegativesPerPositive int    `json:"negatives_per_positive,omitempty"`
}

// ParseManifest decodes a JSONC manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := json.Unmarshal(jsonc.ToJSON(data), &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	var errs []error
	if manifest.Queries == "" {
		errs = append(errs, errors.New("manifest: queries is required"))
	}
	if manifest.Documents == "" {
		errs = append(errs, errors.New("manifest: documents is required"))
	}
	if manifest.NegativesPerPositive < 0 {
		errs = append(errs, fmt.Errorf("manifest: negatives_per_positive must not be negative, got %d", manifest.NegativesPerPositive))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// Load reads the manifest at path and every file it names, then
// validates the assembled dataset.
func Load(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	manifest, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	base := filepath.Dir(path)
	resolve := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(base, name)
	}

	dataset := &Dataset{}
	if dataset.Queries, err = readCorpusFile(resolve(manifest.Queries)); err != nil {
		return nil, err
	}
	if dataset.Documents, err = readCorpusFile(resolve(manifest.Documents)); err != nil {
		return nil, err
	}
	if manifest.Train != "" {
		examples, err := readFile(resolve(manifest.Train), ReadTrainExamples)
		if err != nil {
			return nil, err
		}
		dataset.Train = &Trainset{Examples: examples, NegativesPerPositive: manifest.NegativesPerPositive}
	}
	if manifest.Dev != "" {
		rows, err := readFile(resolve(manifest.Dev), ReadCandidates)
		if err != nil {
			return nil, err
		}
		dataset.Dev = &Candidates{Rows: rows}
	}
	if manifest.Test != "" {
		rows, err := readFile(resolve(manifest.Test), ReadCandidates)
		if err != nil {
			return nil, err
		}
		dataset.Test = &Candidates{Rows: rows}
	}

	if err := dataset.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return dataset, nil
}

func readCorpusFile(path string) (*Corpus, error) {
	entries, err := readFile(path, ReadEntries)
	if err != nil {
		return nil, err
	}
	corpus, err := NewCorpus(entries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return corpus, nil
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	rows, err := read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// scanFields calls fn with the tab-separated fields of every non-blank
// line. Errors name the 1-based line number.
func scanFields(r io.Reader, fn func(fields []string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := fn(strings.Split(text, "\t")); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("after line %d: %w", line, err)
	}
	return nil
}

// ReadEntries parses id<TAB>text lines. Tabs inside the text are kept.
func ReadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	err := scanFields(r, func(fields []string) error {
		if len(fields) < 2 {
			return errors.New("want id<TAB>text")
		}
		if fields[0] == "" {
			return errors.New("empty id")
		}
		entries = append(entries, Entry{ID: fields[0], Text: strings.Join(fields[1:], "\t")})
		return nil
	})
	return entries, err
}

// ReadTrainExamples parses qid<TAB>positive<TAB>negative... lines.
func ReadTrainExamples(r io.Reader) ([]TrainExample, error) {
	var examples []TrainExample
	err := scanFields(r, func(fields []string) error {
		if len(fields) < 3 {
			return fmt.Errorf("want qid<TAB>positive<TAB>negative..., got %d fields", len(fields))
		}
		for _, field := range fields {
			if field == "" {
				return errors.New("empty id")
			}
		}
		examples = append(examples, TrainExample{
			QueryID:     fields[0],
			PositiveID:  fields[1],
			NegativeIDs: fields[2:],
		})
		return nil
	})
	return examples, err
}

// ReadCandidates parses qid<TAB>doc_id<TAB>label lines.
func ReadCandidates(r io.Reader) ([]Candidate, error) {
	var rows []Candidate
	err := scanFields(r, func(fields []string) error {
		if len(fields) != 3 {
			return fmt.Errorf("want qid<TAB>doc_id<TAB>label, got %d fields", len(fields))
		}
		label, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("label %q is not an integer", fields[2])
		}
		rows = append(rows, Candidate{QueryID: fields[0], DocumentID: fields[1], Label: label})
		return nil
	})
	return rows, err
}
