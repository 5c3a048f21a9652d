// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFiles creates each file (name relative to directory) with the
// given contents, creating parent directories as needed.
func WriteFiles(t testing.TB, directory string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		path := filepath.Join(directory, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating directory for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

// DatasetFiles is the fixture written by WriteDataset: three queries,
// four documents, two training examples yielding three triplets, four
// dev candidates and two test candidates.
var DatasetFiles = map[string]string{
	"manifest.jsonc": `{
  // fixture dataset
  "queries": "queries.tsv",
  "documents": "documents.tsv",
  "train": "train.tsv",
  "dev": "dev.tsv",
  "test": "test.tsv",
}
`,
	"queries.tsv": "1\tthe cat\n" +
		"2\tthe dog barks\n" +
		"3\tbirds\n",
	"documents.tsv": "d1\tthe cat sat on the mat\n" +
		"d2\tthe dog barks at the cat\n" +
		"d3\tbirds fly south\n" +
		"d4\ta dog and a cat\n",
	"train.tsv": "1\td1\td3\td2\n" +
		"2\td2\td3\n",
	"dev.tsv": "1\td1\t1\n" +
		"1\td3\t0\n" +
		"2\td2\t1\n" +
		"3\td3\t1\n",
	"test.tsv": "2\td4\t0\n" +
		"3\td3\t1\n",
}

// WriteDataset writes DatasetFiles into a fresh temporary directory
// and returns the manifest path.
func WriteDataset(t testing.TB) string {
	t.Helper()
	directory := t.TempDir()
	WriteFiles(t, directory, DatasetFiles)
	return filepath.Join(directory, "manifest.jsonc")
}
