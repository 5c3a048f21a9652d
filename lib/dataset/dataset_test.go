// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/duetprep/duetprep/lib/testutil"
)

func TestLoadFixture(t *testing.T) {
	dataset, err := Load(testutil.WriteDataset(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if dataset.Queries.Len() != 3 {
		t.Errorf("queries = %d, want 3", dataset.Queries.Len())
	}
	if dataset.Documents.Len() != 4 {
		t.Errorf("documents = %d, want 4", dataset.Documents.Len())
	}
	if text, ok := dataset.Documents.Lookup("d3"); !ok || text != "birds fly south" {
		t.Errorf("Lookup(d3) = %q, %v", text, ok)
	}
	if got := dataset.Train.Triplets(); got != 3 {
		t.Errorf("triplets = %d, want 3", got)
	}
	if dataset.Dev.Len() != 4 || dataset.Test.Len() != 2 {
		t.Errorf("dev/test = %d/%d, want 4/2", dataset.Dev.Len(), dataset.Test.Len())
	}
	for _, split := range Splits {
		if !dataset.Has(split) {
			t.Errorf("Has(%s) = false", split)
		}
	}

	collection := dataset.Collection()
	if len(collection) != 7 {
		t.Fatalf("collection has %d texts, want 7", len(collection))
	}
	if collection[0] != "the cat" || collection[3] != "the cat sat on the mat" {
		t.Errorf("collection order = %q", collection)
	}
}

func TestLoadOptionalSplits(t *testing.T) {
	directory := t.TempDir()
	testutil.WriteFiles(t, directory, map[string]string{
		"m.jsonc": `{"queries": "q.tsv", "documents": "d.tsv"}`,
		"q.tsv":   "1\thello\n",
		"d.tsv":   "a\thello world\n",
	})
	dataset, err := Load(filepath.Join(directory, "m.jsonc"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, split := range Splits {
		if dataset.Has(split) {
			t.Errorf("Has(%s) = true for a manifest without it", split)
		}
	}
	if _, err := dataset.CandidateSet(Dev); err == nil {
		t.Error("CandidateSet(dev) succeeded without a dev split")
	}
}

func TestLoadErrors(t *testing.T) {
	for _, tt := range []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "missing documents",
			files: map[string]string{"m.jsonc": `{"queries": "q.tsv"}`},
			want:  "documents is required",
		},
		{
			name: "unknown document in train",
			files: map[string]string{
				"m.jsonc": `{"queries": "q.tsv", "documents": "d.tsv", "train": "t.tsv"}`,
				"q.tsv":   "1\tq\n",
				"d.tsv":   "a\tx\nb\ty\n",
				"t.tsv":   "1\ta\tz\n",
			},
			want: `unknown document "z"`,
		},
		{
			name: "non-integer candidate query",
			files: map[string]string{
				"m.jsonc": `{"queries": "q.tsv", "documents": "d.tsv", "dev": "v.tsv"}`,
				"q.tsv":   "q1\tq\n",
				"d.tsv":   "a\tx\n",
				"v.tsv":   "q1\ta\t1\n",
			},
			want: `query id "q1" is not an integer`,
		},
		{
			name: "bad label",
			files: map[string]string{
				"m.jsonc": `{"queries": "q.tsv", "documents": "d.tsv", "test": "v.tsv"}`,
				"q.tsv":   "1\tq\n",
				"d.tsv":   "a\tx\n",
				"v.tsv":   "\n1\ta\tyes\n",
			},
			want: "line 2: label",
		},
		{
			name: "duplicate id",
			files: map[string]string{
				"m.jsonc": `{"queries": "q.tsv", "documents": "d.tsv"}`,
				"q.tsv":   "1\tq\n",
				"d.tsv":   "a\tx\na\ty\n",
			},
			want: `duplicate id "a"`,
		},
		{
			name: "train line too short",
			files: map[string]string{
				"m.jsonc": `{"queries": "q.tsv", "documents": "d.tsv", "train": "t.tsv"}`,
				"q.tsv":   "1\tq\n",
				"d.tsv":   "a\tx\n",
				"t.tsv":   "1\ta\n",
			},
			want: "got 2 fields",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			directory := t.TempDir()
			testutil.WriteFiles(t, directory, tt.files)
			_, err := Load(filepath.Join(directory, "m.jsonc"))
			if err == nil {
				t.Fatal("Load succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.jsonc"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestReadEntriesKeepsTabsInText(t *testing.T) {
	entries, err := ReadEntries(strings.NewReader("a\tone\ttwo\r\n\n  \nb\tthree\n"))
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	want := []Entry{{ID: "a", Text: "one\ttwo"}, {ID: "b", Text: "three"}}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %q, want %q", entries, want)
	}
}

func TestNegativesPerPositive(t *testing.T) {
	trainset := &Trainset{
		Examples: []TrainExample{
			{QueryID: "1", PositiveID: "a", NegativeIDs: []string{"b", "c", "d"}},
			{QueryID: "2", PositiveID: "b", NegativeIDs: []string{"a"}},
		},
		NegativesPerPositive: 2,
	}
	if got := trainset.Triplets(); got != 3 {
		t.Errorf("Triplets = %d, want 3", got)
	}
	if got := trainset.Negatives(trainset.Examples[0]); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Negatives = %q, want [b c]", got)
	}

	trainset.NegativesPerPositive = 0
	if got := trainset.Triplets(); got != 4 {
		t.Errorf("Triplets without a limit = %d, want 4", got)
	}
}

func TestParseSplit(t *testing.T) {
	for _, name := range []string{"train", "dev", "test"} {
		split, err := ParseSplit(name)
		if err != nil || string(split) != name {
			t.Errorf("ParseSplit(%q) = %q, %v", name, split, err)
		}
	}
	if _, err := ParseSplit("validation"); err == nil {
		t.Error("ParseSplit(validation) succeeded")
	}
	if Train.IsCandidateSet() || !Dev.IsCandidateSet() || !Test.IsCandidateSet() {
		t.Error("IsCandidateSet wrong")
	}
}

func TestQueryNumber(t *testing.T) {
	if n, err := QueryNumber("1048585"); err != nil || n != 1048585 {
		t.Errorf("QueryNumber = %d, %v", n, err)
	}
	if _, err := QueryNumber("abc"); err == nil {
		t.Error("QueryNumber(abc) succeeded")
	}
}
