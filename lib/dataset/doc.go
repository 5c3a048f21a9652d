// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataset models a text ranking dataset: query and document
// corpora, a training set of (query, positive, negatives) examples,
// and dev/test candidate sets of individually labeled query-document
// pairs.
//
// Datasets are described by a JSONC manifest (JSON with comments and
// trailing commas) naming tab-separated files:
//
//	{
//	  // paths are relative to the manifest
//	  "queries": "queries.tsv",            // id<TAB>text
//	  "documents": "collection.tsv",       // id<TAB>text
//	  "train": "train.tsv",                // qid<TAB>positive<TAB>negative...
//	  "dev": "dev.tsv",                    // qid<TAB>doc_id<TAB>label
//	  "test": "test.tsv",
//	  "negatives_per_positive": 4,
//	}
//
// Only queries and documents are required. [Load] reads every named
// file and validates that all referenced ids exist.
package dataset
