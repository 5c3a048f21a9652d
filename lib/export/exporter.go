// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/duetprep/duetprep/lib/clock"
	"github.com/duetprep/duetprep/lib/columnar"
	"github.com/duetprep/duetprep/lib/dataset"
	"github.com/duetprep/duetprep/lib/idf"
	"github.com/duetprep/duetprep/lib/parallel"
	"github.com/duetprep/duetprep/lib/tokenize"
	"github.com/duetprep/duetprep/lib/vocab"
)

// Options configures an export run.
type Options struct {
	// Tokenizer splits queries and documents into tokens. Required.
	Tokenizer tokenize.Tokenizer

	// Vocabulary configures vocabulary building. Its Parallel field
	// is replaced by Options.Parallel.
	Vocabulary vocab.Options

	// MaxQueryLength truncates query tokens before encoding. Zero
	// disables truncation.
	MaxQueryLength int

	// MaxDocumentLength truncates encoded documents. Zero disables
	// truncation.
	MaxDocumentLength int

	// Parallel configures the worker pools of every stage.
	Parallel parallel.Options

	// Format is the registry name of the container format. Empty
	// means "duet".
	Format string

	// Compression is applied to container columns.
	Compression columnar.CompressionTag

	// VocabularyPath and IDFPath, when set, receive the vocabulary
	// and the id-keyed IDF table.
	VocabularyPath string
	IDFPath        string

	// Outputs maps each split to export to its container path. At
	// least one split is required.
	Outputs map[dataset.Split]string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock sets the clock used to time stages.
func WithClock(c clock.Clock) Option {
	return func(e *Exporter) { e.clock = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exporter) { e.logger = logger }
}

// Exporter runs the export pipeline for one dataset.
type Exporter struct {
	data    *dataset.Dataset
	options Options
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates an exporter. Nothing is read or written until Run.
func New(data *dataset.Dataset, options Options, opts ...Option) *Exporter {
	exporter := &Exporter{
		data:    data,
		options: options,
		clock:   clock.Real(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(exporter)
	}
	if exporter.logger == nil {
		exporter.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return exporter
}

// SplitResult describes one written container.
type SplitResult struct {
	Split dataset.Split `json:"split"`
	Path  string        `json:"path"`
	Rows  int           `json:"rows"`
	Hash  columnar.Hash `json:"hash"`
	Bytes int64         `json:"bytes"`
}

// StageDuration is the wall time of one pipeline stage.
type StageDuration struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration_ns"`
}

// Result summarizes a completed run.
type Result struct {
	Format         string          `json:"format"`
	VocabularySize int             `json:"vocabulary_size"`
	Queries        int             `json:"queries"`
	Documents      int             `json:"documents"`
	VocabularyPath string          `json:"vocabulary_path,omitempty"`
	IDFPath        string          `json:"idf_path,omitempty"`
	Splits         []SplitResult   `json:"splits"`
	Durations      []StageDuration `json:"durations"`
}

// Run executes every stage. Options and dataset are checked before any
// stage runs. Each artifact is written atomically, so a file holds
// either its previous contents or the complete new ones.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	format, err := e.validate()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Format:    format.Name(),
		Queries:   e.data.Queries.Len(),
		Documents: e.data.Documents.Len(),
	}

	var vocabulary *vocab.Vocabulary
	err = e.stage(result, "vocabulary", func() error {
		options := e.options.Vocabulary
		options.Parallel = e.poolOptions("vocabulary")
		vocabulary, err = vocab.Build(ctx, e.data.Collection(), e.options.Tokenizer, options)
		if err != nil {
			return fmt.Errorf("building vocabulary: %w", err)
		}
		result.VocabularySize = vocabulary.Len()
		e.logger.Info("vocabulary built", "tokens", vocabulary.Len())
		if e.options.VocabularyPath == "" {
			return nil
		}
		if err := vocabulary.Save(e.options.VocabularyPath); err != nil {
			return fmt.Errorf("saving vocabulary: %w", err)
		}
		result.VocabularyPath = e.options.VocabularyPath
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = e.stage(result, "idf", func() error {
		table, err := idf.Compute(ctx, vocabulary.Tokens(), e.data.Documents.Texts(),
			e.options.Tokenizer, e.poolOptions("idf"))
		if err != nil {
			return fmt.Errorf("computing IDF: %w", err)
		}
		byID, err := table.ByID(vocabulary)
		if err != nil {
			return err
		}
		if e.options.IDFPath == "" {
			return nil
		}
		if err := byID.Save(e.options.IDFPath); err != nil {
			return fmt.Errorf("saving IDF table: %w", err)
		}
		result.IDFPath = e.options.IDFPath
		return nil
	})
	if err != nil {
		return nil, err
	}

	encoded := &Encoded{Dataset: e.data}
	err = e.stage(result, "encode", func() error {
		encoded.Queries, err = e.encode(ctx, "queries", e.data.Queries.Texts(), vocabulary, e.options.MaxQueryLength, 0)
		if err != nil {
			return err
		}
		encoded.Documents, err = e.encode(ctx, "documents", e.data.Documents.Texts(), vocabulary, 0, e.options.MaxDocumentLength)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, split := range dataset.Splits {
		path, ok := e.options.Outputs[split]
		if !ok {
			continue
		}
		err = e.stage(result, string(split), func() error {
			splitResult, err := e.writeSplit(ctx, format, split, path, encoded, vocabulary.Len())
			if err != nil {
				return fmt.Errorf("writing %s split: %w", split, err)
			}
			result.Splits = append(result.Splits, splitResult)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (e *Exporter) validate() (Format, error) {
	if e.data == nil {
		return nil, errors.New("a dataset is required")
	}
	if err := e.data.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset: %w", err)
	}

	var errs []error
	if e.options.Tokenizer == nil {
		errs = append(errs, errors.New("a tokenizer is required"))
	}
	if len(e.options.Outputs) == 0 {
		errs = append(errs, errors.New("at least one of the train, dev and test outputs is required"))
	}
	for split, path := range e.options.Outputs {
		if path == "" {
			errs = append(errs, fmt.Errorf("%s output path is empty", split))
		}
		if !e.data.Has(split) {
			errs = append(errs, fmt.Errorf("%s output requested but the dataset has no %s split", split, split))
		}
	}
	if e.data.Documents.Len() < 2 {
		errs = append(errs, fmt.Errorf("IDF needs at least 2 documents, dataset has %d", e.data.Documents.Len()))
	}
	if err := e.options.Vocabulary.RequireUnknownToken(); err != nil {
		errs = append(errs, fmt.Errorf("vocabulary: %w", err))
	}
	if e.options.MaxQueryLength < 0 || e.options.MaxDocumentLength < 0 {
		errs = append(errs, errors.New("maximum lengths must not be negative"))
	}

	name := e.options.Format
	if name == "" {
		name = DUETFormatName
	}
	format, err := LookupFormat(name)
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return format, nil
}

// stage runs fn and records its duration.
func (e *Exporter) stage(result *Result, name string, fn func() error) error {
	start := e.clock.Now()
	e.logger.Debug("stage started", "stage", name)
	err := fn()
	elapsed := clock.Since(e.clock, start)
	if err != nil {
		e.logger.Error("stage failed", "stage", name, "duration", elapsed, "error", err)
		return err
	}
	result.Durations = append(result.Durations, StageDuration{Stage: name, Duration: elapsed})
	e.logger.Info("stage complete", "stage", name, "duration", elapsed)
	return nil
}

// poolOptions returns the configured pool options with a progress
// callback that logs every tenth of the work.
func (e *Exporter) poolOptions(stage string) parallel.Options {
	options := e.options.Parallel
	caller := options.Progress
	var reported atomic.Int64
	options.Progress = func(completed, total int) {
		if caller != nil {
			caller(completed, total)
		}
		tenth := int64(completed * 10 / max(total, 1))
		for {
			previous := reported.Load()
			if tenth <= previous {
				return
			}
			if reported.CompareAndSwap(previous, tenth) {
				break
			}
		}
		e.logger.Debug("progress", "stage", stage, "completed", completed, "total", total)
	}
	return options
}

// encode tokenizes and encodes texts. Tokens are truncated to
// maxTokens before encoding and ids to maxIDs after; zero disables
// either limit.
func (e *Exporter) encode(ctx context.Context, stage string, texts []string, vocabulary *vocab.Vocabulary, maxTokens, maxIDs int) ([][]int64, error) {
	encoded := make([][]int64, len(texts))
	err := parallel.ForEach(ctx, len(texts), e.poolOptions(stage), func(index int) error {
		tokens, err := e.options.Tokenizer.Tokenize(texts[index])
		if err != nil {
			return err
		}
		if maxTokens > 0 && len(tokens) > maxTokens {
			tokens = tokens[:maxTokens]
		}
		ids, err := vocabulary.Encode(tokens)
		if err != nil {
			return err
		}
		if maxIDs > 0 && len(ids) > maxIDs {
			ids = ids[:maxIDs]
		}
		encoded[index] = ids
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", stage, err)
	}
	return encoded, nil
}

func (e *Exporter) writeSplit(ctx context.Context, format Format, split dataset.Split, path string, encoded *Encoded, vocabularySize int) (SplitResult, error) {
	schema, err := format.DefineSchema(split)
	if err != nil {
		return SplitResult{}, err
	}
	rows, err := format.CountRows(split, encoded)
	if err != nil {
		return SplitResult{}, err
	}
	table, err := columnar.NewWriter(schema, rows, columnar.Options{
		Compression: e.options.Compression,
		Attributes: map[string]any{
			"format":              format.Name(),
			"split":               string(split),
			"vocabulary_size":     vocabularySize,
			"max_query_length":    e.options.MaxQueryLength,
			"max_document_length": e.options.MaxDocumentLength,
		},
	})
	if err != nil {
		return SplitResult{}, err
	}

	var written int
	if split.IsCandidateSet() {
		written, err = e.writeCandidates(ctx, format, split, table, encoded)
	} else {
		written, err = e.writeTraining(ctx, format, table, encoded)
	}
	if err != nil {
		return SplitResult{}, err
	}
	if written != rows {
		return SplitResult{}, fmt.Errorf("%s wrote %d rows, counted %d", format.Name(), written, rows)
	}

	hash, err := columnar.WriteFile(path, table)
	if err != nil {
		return SplitResult{}, err
	}
	reader, err := columnar.Open(path)
	if err != nil {
		return SplitResult{}, fmt.Errorf("reopening %s: %w", path, err)
	}
	size := reader.TotalSize()
	reader.Close()

	e.logger.Info("split written", "split", split, "path", path, "rows", rows, "bytes", size, "hash", hash.Short())
	return SplitResult{Split: split, Path: path, Rows: rows, Hash: hash, Bytes: size}, nil
}

func (e *Exporter) writeTraining(ctx context.Context, format Format, table *columnar.Writer, encoded *Encoded) (int, error) {
	trainset := e.data.Train
	row := 0
	for index, example := range trainset.Examples {
		if err := ctx.Err(); err != nil {
			return row, err
		}
		query, err := encoded.Query(example.QueryID)
		if err != nil {
			return row, fmt.Errorf("example %d: %w", index, err)
		}
		positive, err := encoded.Document(example.PositiveID)
		if err != nil {
			return row, fmt.Errorf("example %d: %w", index, err)
		}
		negativeIDs := trainset.Negatives(example)
		negatives := make([][]int64, len(negativeIDs))
		for i, id := range negativeIDs {
			if negatives[i], err = encoded.Document(id); err != nil {
				return row, fmt.Errorf("example %d: %w", index, err)
			}
		}
		written, err := format.WriteTrainingRow(table, row, TrainingRow{
			Query:     query,
			Positive:  positive,
			Negatives: negatives,
		})
		row += written
		if err != nil {
			return row, fmt.Errorf("example %d: %w", index, err)
		}
	}
	return row, nil
}

func (e *Exporter) writeCandidates(ctx context.Context, format Format, split dataset.Split, table *columnar.Writer, encoded *Encoded) (int, error) {
	candidates, err := e.data.CandidateSet(split)
	if err != nil {
		return 0, err
	}
	for row, candidate := range candidates.Rows {
		if err := ctx.Err(); err != nil {
			return row, err
		}
		query, err := encoded.Query(candidate.QueryID)
		if err != nil {
			return row, fmt.Errorf("row %d: %w", row, err)
		}
		document, err := encoded.Document(candidate.DocumentID)
		if err != nil {
			return row, fmt.Errorf("row %d: %w", row, err)
		}
		number, err := dataset.QueryNumber(candidate.QueryID)
		if err != nil {
			return row, fmt.Errorf("row %d: %w", row, err)
		}
		err = format.WriteCandidateRow(table, row, CandidateRow{
			QueryID:  number,
			Query:    query,
			Document: document,
			Label:    candidate.Label,
		})
		if err != nil {
			return row, fmt.Errorf("row %d: %w", row, err)
		}
	}
	return candidates.Len(), nil
}
