// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/duetprep/duetprep/lib/clock"
	"github.com/duetprep/duetprep/lib/columnar"
	"github.com/duetprep/duetprep/lib/dataset"
	"github.com/duetprep/duetprep/lib/idf"
	"github.com/duetprep/duetprep/lib/parallel"
	"github.com/duetprep/duetprep/lib/testutil"
	"github.com/duetprep/duetprep/lib/tokenize"
	"github.com/duetprep/duetprep/lib/vocab"
)

// Fixture vocabulary with whitespace tokens and default specials:
//
//	<UNK>=0 <PAD>=1 <EOS>=2 <START>=3 the=4 cat=5 dog=6 barks=7 birds=8
//	a=9 sat=10 on=11 mat=12 at=13 fly=14 south=15 and=16
var (
	queryCat   = []int64{4, 5}
	queryDog   = []int64{4, 6, 7}
	queryBirds = []int64{8}
	documentD1 = []int64{4, 5, 10, 11, 4, 12}
	documentD2 = []int64{4, 6, 7, 13, 4, 5}
	documentD3 = []int64{8, 14, 15}
	documentD4 = []int64{9, 6, 16, 9, 5}
)

func loadFixture(t *testing.T) *dataset.Dataset {
	t.Helper()
	data, err := dataset.Load(testutil.WriteDataset(t))
	if err != nil {
		t.Fatalf("loading fixture: %v", err)
	}
	return data
}

func allOutputs(directory string) map[dataset.Split]string {
	return map[dataset.Split]string{
		dataset.Train: filepath.Join(directory, "train.duet"),
		dataset.Dev:   filepath.Join(directory, "dev.duet"),
		dataset.Test:  filepath.Join(directory, "test.duet"),
	}
}

func openContainer(t *testing.T, path string) *columnar.Reader {
	t.Helper()
	reader, err := columnar.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	t.Cleanup(func() { reader.Close() })
	return reader
}

func readList(t *testing.T, reader *columnar.Reader, name string) [][]int64 {
	t.Helper()
	lists, err := reader.ReadInt64List(name)
	if err != nil {
		t.Fatalf("ReadInt64List(%s): %v", name, err)
	}
	return lists
}

func readInts(t *testing.T, reader *columnar.Reader, name string) []int64 {
	t.Helper()
	values, err := reader.ReadInt64(name)
	if err != nil {
		t.Fatalf("ReadInt64(%s): %v", name, err)
	}
	return values
}

func TestRunWritesEverySplit(t *testing.T) {
	directory := t.TempDir()
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	fake.AutoStep(time.Second)

	exporter := New(loadFixture(t), Options{
		Tokenizer:      tokenize.Whitespace{},
		Parallel:       parallel.Options{Workers: 3, ChunkSize: 2},
		Compression:    columnar.CompressionAuto,
		VocabularyPath: filepath.Join(directory, "vocab.cbor"),
		IDFPath:        filepath.Join(directory, "idf.cbor"),
		Outputs:        allOutputs(directory),
	}, WithClock(fake))

	result, err := exporter.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.VocabularySize != 17 {
		t.Errorf("VocabularySize = %d, want 17", result.VocabularySize)
	}
	if result.Format != "duet" {
		t.Errorf("Format = %q, want duet", result.Format)
	}

	var stages []string
	for _, stage := range result.Durations {
		stages = append(stages, stage.Stage)
		if stage.Duration != time.Second {
			t.Errorf("stage %s took %v, want 1s", stage.Stage, stage.Duration)
		}
	}
	if want := []string{"vocabulary", "idf", "encode", "train", "dev", "test"}; !reflect.DeepEqual(stages, want) {
		t.Errorf("stages = %v, want %v", stages, want)
	}

	rows := map[dataset.Split]int{}
	for _, split := range result.Splits {
		rows[split.Split] = split.Rows
	}
	if want := map[dataset.Split]int{dataset.Train: 3, dataset.Dev: 4, dataset.Test: 2}; !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %v, want %v", rows, want)
	}

	train := openContainer(t, filepath.Join(directory, "train.duet"))
	if train.Hash != result.Splits[0].Hash {
		t.Error("train container hash differs from the result")
	}
	if got, _ := train.AttributeString("split"); got != "train" {
		t.Errorf("split attribute = %q", got)
	}
	if got, _ := train.AttributeInt("vocabulary_size"); got != 17 {
		t.Errorf("vocabulary_size attribute = %d", got)
	}
	if want := [][]int64{queryCat, queryCat, queryDog}; !reflect.DeepEqual(readList(t, train, ColumnQueries), want) {
		t.Errorf("train queries = %v, want %v", readList(t, train, ColumnQueries), want)
	}
	if want := [][]int64{documentD1, documentD1, documentD2}; !reflect.DeepEqual(readList(t, train, ColumnPositiveDocs), want) {
		t.Errorf("train pos_docs = %v, want %v", readList(t, train, ColumnPositiveDocs), want)
	}
	if want := [][]int64{documentD3, documentD2, documentD3}; !reflect.DeepEqual(readList(t, train, ColumnNegativeDocs), want) {
		t.Errorf("train neg_docs = %v, want %v", readList(t, train, ColumnNegativeDocs), want)
	}

	dev := openContainer(t, filepath.Join(directory, "dev.duet"))
	if want := [][]int64{queryCat, queryCat, queryDog, queryBirds}; !reflect.DeepEqual(readList(t, dev, ColumnQueries), want) {
		t.Errorf("dev queries = %v, want %v", readList(t, dev, ColumnQueries), want)
	}
	if want := [][]int64{documentD1, documentD3, documentD2, documentD3}; !reflect.DeepEqual(readList(t, dev, ColumnDocs), want) {
		t.Errorf("dev docs = %v, want %v", readList(t, dev, ColumnDocs), want)
	}
	if want := []int64{1, 1, 2, 3}; !reflect.DeepEqual(readInts(t, dev, ColumnQueryIDs), want) {
		t.Errorf("dev q_ids = %v, want %v", readInts(t, dev, ColumnQueryIDs), want)
	}
	if want := []int64{1, 0, 1, 1}; !reflect.DeepEqual(readInts(t, dev, ColumnLabels), want) {
		t.Errorf("dev labels = %v, want %v", readInts(t, dev, ColumnLabels), want)
	}

	test := openContainer(t, filepath.Join(directory, "test.duet"))
	if want := [][]int64{documentD4, documentD3}; !reflect.DeepEqual(readList(t, test, ColumnDocs), want) {
		t.Errorf("test docs = %v, want %v", readList(t, test, ColumnDocs), want)
	}

	vocabulary, err := vocab.Load(filepath.Join(directory, "vocab.cbor"))
	if err != nil {
		t.Fatalf("loading vocabulary: %v", err)
	}
	if id, _ := vocabulary.ID("birds"); id != 8 {
		t.Errorf("birds id = %d, want 8", id)
	}

	weights, err := idf.LoadIDs(filepath.Join(directory, "idf.cbor"))
	if err != nil {
		t.Fatalf("loading IDF: %v", err)
	}
	if len(weights) != 17 {
		t.Errorf("IDF entries = %d, want 17", len(weights))
	}
	// "cat" appears in 3 of 4 documents: ln(4/4)/ln(4) = 0.
	if weights[5] != 0 {
		t.Errorf("idf[cat] = %v, want 0", weights[5])
	}
	// Special tokens never appear: ln(4/1)/ln(4) = 1.
	if weights[0] != 1 {
		t.Errorf("idf[<UNK>] = %v, want 1", weights[0])
	}
}

func TestRunTruncatesAndCaps(t *testing.T) {
	directory := t.TempDir()
	exporter := New(loadFixture(t), Options{
		Tokenizer:         tokenize.Whitespace{},
		Vocabulary:        vocab.Options{MaxSize: 6},
		MaxQueryLength:    2,
		MaxDocumentLength: 3,
		Outputs:           map[dataset.Split]string{dataset.Dev: filepath.Join(directory, "dev.duet")},
	})
	result, err := exporter.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.VocabularySize != 6 {
		t.Errorf("VocabularySize = %d, want 6", result.VocabularySize)
	}
	if len(result.Durations) != 4 {
		t.Errorf("stages = %d, want 4", len(result.Durations))
	}

	dev := openContainer(t, filepath.Join(directory, "dev.duet"))
	// Vocabulary is the four specials plus the=4 and cat=5; everything
	// else encodes to <UNK>=0. Query "the dog barks" is cut to two
	// tokens before encoding, documents to three ids after.
	wantQueries := [][]int64{{4, 5}, {4, 5}, {4, 0}, {0}}
	if got := readList(t, dev, ColumnQueries); !reflect.DeepEqual(got, wantQueries) {
		t.Errorf("queries = %v, want %v", got, wantQueries)
	}
	wantDocs := [][]int64{{4, 5, 0}, {0, 0, 0}, {4, 0, 0}, {0, 0, 0}}
	if got := readList(t, dev, ColumnDocs); !reflect.DeepEqual(got, wantDocs) {
		t.Errorf("docs = %v, want %v", got, wantDocs)
	}
	if got, _ := dev.AttributeInt("max_document_length"); got != 3 {
		t.Errorf("max_document_length attribute = %d, want 3", got)
	}
}

func TestRunNegativesPerPositive(t *testing.T) {
	data := loadFixture(t)
	data.Train.NegativesPerPositive = 1
	path := filepath.Join(t.TempDir(), "train.duet")

	result, err := New(data, Options{
		Tokenizer: tokenize.Whitespace{},
		Outputs:   map[dataset.Split]string{dataset.Train: path},
	}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Splits[0].Rows != 2 {
		t.Errorf("rows = %d, want 2", result.Splits[0].Rows)
	}
	train := openContainer(t, path)
	if want := [][]int64{documentD3, documentD3}; !reflect.DeepEqual(readList(t, train, ColumnNegativeDocs), want) {
		t.Errorf("neg_docs = %v, want %v", readList(t, train, ColumnNegativeDocs), want)
	}
}

func TestRunValidation(t *testing.T) {
	directory := t.TempDir()
	data := loadFixture(t)
	withoutTest := loadFixture(t)
	withoutTest.Test = nil

	oneDocument, err := dataset.NewCorpus([]dataset.Entry{{ID: "d1", Text: "only"}})
	if err != nil {
		t.Fatal(err)
	}
	tiny := &dataset.Dataset{Queries: data.Queries, Documents: oneDocument}

	for _, tt := range []struct {
		name    string
		data    *dataset.Dataset
		options Options
		want    string
	}{
		{
			name:    "no outputs",
			data:    data,
			options: Options{Tokenizer: tokenize.Whitespace{}},
			want:    "at least one",
		},
		{
			name:    "no tokenizer",
			data:    data,
			options: Options{Outputs: allOutputs(directory)},
			want:    "tokenizer is required",
		},
		{
			name:    "missing split",
			data:    withoutTest,
			options: Options{Tokenizer: tokenize.Whitespace{}, Outputs: allOutputs(directory)},
			want:    "dataset has no test split",
		},
		{
			name:    "unknown format",
			data:    data,
			options: Options{Tokenizer: tokenize.Whitespace{}, Format: "knrm", Outputs: allOutputs(directory)},
			want:    `unknown format "knrm"`,
		},
		{
			name: "single document",
			data: tiny,
			options: Options{
				Tokenizer: tokenize.Whitespace{},
				Outputs:   map[dataset.Split]string{dataset.Dev: filepath.Join(directory, "x")},
			},
			want: "at least 2 documents",
		},
		{
			name: "unknown token not special",
			data: data,
			options: Options{
				Tokenizer:  tokenize.Whitespace{},
				Vocabulary: vocab.Options{SpecialTokens: []string{"<PAD>"}, MaxSize: 3},
				Outputs:    map[dataset.Split]string{dataset.Dev: filepath.Join(directory, "x")},
			},
			want: "unknown token is not one of the special tokens",
		},
		{
			name:    "no documents",
			data:    &dataset.Dataset{Queries: data.Queries},
			options: Options{Tokenizer: tokenize.Whitespace{}, Outputs: allOutputs(directory)},
			want:    "needs both queries and documents",
		},
		{
			name:    "no dataset",
			data:    nil,
			options: Options{Tokenizer: tokenize.Whitespace{}, Outputs: allOutputs(directory)},
			want:    "dataset is required",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.data, tt.options).Run(context.Background())
			if err == nil {
				t.Fatal("Run succeeded")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestRunMissingUnknownTokenWritesNothing(t *testing.T) {
	directory := t.TempDir()
	vocabularyPath := filepath.Join(directory, "vocab.cbor")
	if err := os.WriteFile(vocabularyPath, []byte("previous"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(loadFixture(t), Options{
		Tokenizer:      tokenize.Whitespace{},
		Vocabulary:     vocab.Options{SpecialTokens: []string{"<PAD>"}, MaxSize: 3},
		VocabularyPath: vocabularyPath,
		IDFPath:        filepath.Join(directory, "idf.cbor"),
		Outputs:        map[dataset.Split]string{dataset.Dev: filepath.Join(directory, "dev.duet")},
	}).Run(context.Background())
	if !errors.Is(err, vocab.ErrUnknownTokenNotSpecial) {
		t.Fatalf("error = %v, want ErrUnknownTokenNotSpecial", err)
	}

	data, err := os.ReadFile(vocabularyPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "previous" {
		t.Errorf("vocabulary file was replaced by a run that failed validation")
	}
	for _, name := range []string{"idf.cbor", "dev.duet"} {
		if _, err := os.Stat(filepath.Join(directory, name)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s exists after a run that failed validation", name)
		}
	}
}

func TestRunCapacityTooSmall(t *testing.T) {
	_, err := New(loadFixture(t), Options{
		Tokenizer:  tokenize.Whitespace{},
		Vocabulary: vocab.Options{MaxSize: 2},
		Outputs:    map[dataset.Split]string{dataset.Dev: filepath.Join(t.TempDir(), "dev.duet")},
	}).Run(context.Background())
	if !errors.Is(err, vocab.ErrCapacityTooSmall) {
		t.Errorf("error = %v, want ErrCapacityTooSmall", err)
	}
}

func TestRunTokenizerFailure(t *testing.T) {
	failure := errors.New("tokenizer exploded")
	tokenizer := tokenize.Func(func(text string) ([]string, error) {
		if strings.Contains(text, "birds") {
			return nil, failure
		}
		return strings.Fields(text), nil
	})
	path := filepath.Join(t.TempDir(), "dev.duet")
	_, err := New(loadFixture(t), Options{
		Tokenizer: tokenizer,
		Outputs:   map[dataset.Split]string{dataset.Dev: path},
	}).Run(context.Background())
	if !errors.Is(err, failure) {
		t.Errorf("error = %v, want the tokenizer failure", err)
	}
	if _, err := columnar.Open(path); err == nil {
		t.Error("a container was written despite the failure")
	}
}

func TestRunDeterministic(t *testing.T) {
	var hashes []columnar.Hash
	for _, workers := range []int{1, 4} {
		directory := t.TempDir()
		result, err := New(loadFixture(t), Options{
			Tokenizer:   tokenize.Whitespace{},
			Parallel:    parallel.Options{Workers: workers, ChunkSize: 1},
			Compression: columnar.CompressionZstd,
			Outputs:     map[dataset.Split]string{dataset.Train: filepath.Join(directory, "train.duet")},
		}).Run(context.Background())
		if err != nil {
			t.Fatalf("Run with %d workers: %v", workers, err)
		}
		hashes = append(hashes, result.Splits[0].Hash)
	}
	if hashes[0] != hashes[1] {
		t.Error("container hash depends on the worker count")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(loadFixture(t), Options{
		Tokenizer: tokenize.Whitespace{},
		Outputs:   map[dataset.Split]string{dataset.Dev: filepath.Join(t.TempDir(), "dev.duet")},
	}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestFormatRegistry(t *testing.T) {
	format, err := LookupFormat("duet")
	if err != nil {
		t.Fatalf("LookupFormat(duet): %v", err)
	}
	if format.Name() != "duet" {
		t.Errorf("Name = %q", format.Name())
	}
	if got := Formats(); !reflect.DeepEqual(got, []string{"duet"}) {
		t.Errorf("Formats = %v, want [duet]", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("registering duet twice did not panic")
		}
	}()
	Register("duet", func() Format { return duet{} })
}

func TestDUETSchemas(t *testing.T) {
	format := duet{}
	train, err := format.DefineSchema(dataset.Train)
	if err != nil {
		t.Fatal(err)
	}
	if len(train) != 3 || train[2].Name != ColumnNegativeDocs {
		t.Errorf("train schema = %v", train)
	}
	dev, err := format.DefineSchema(dataset.Dev)
	if err != nil {
		t.Fatal(err)
	}
	if i, ok := dev.Index(ColumnQueryIDs); !ok || dev[i].Type != columnar.Int64 {
		t.Errorf("dev schema = %v, want an int64 q_ids column", dev)
	}
	if _, err := format.DefineSchema("validation"); err == nil {
		t.Error("DefineSchema(validation) succeeded")
	}
}

func TestDUETWriteTrainingRowOnePerNegative(t *testing.T) {
	format := duet{}
	schema, _ := format.DefineSchema(dataset.Train)
	table, err := columnar.NewWriter(schema, 4, columnar.Options{})
	if err != nil {
		t.Fatal(err)
	}
	written, err := format.WriteTrainingRow(table, 1, TrainingRow{
		Query:     []int64{1},
		Positive:  []int64{2},
		Negatives: [][]int64{{3}, {4}, {5}},
	})
	if err != nil || written != 3 {
		t.Fatalf("WriteTrainingRow = %d, %v, want 3 rows", written, err)
	}

	// Writing past the end reports how many rows fit.
	written, err = format.WriteTrainingRow(table, 3, TrainingRow{Negatives: [][]int64{{6}, {7}}})
	if err == nil || written != 1 {
		t.Errorf("overflowing WriteTrainingRow = %d, %v, want 1 row and an error", written, err)
	}
}
