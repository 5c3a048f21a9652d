// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package export turns a ranking dataset into model-ready artifacts:
// a vocabulary, an id-keyed IDF table, and one columnar container per
// requested split.
//
// The container layout of a split is decided by a [Format]. Formats
// are registered by name; "duet" is built in and writes one row per
// (query, positive, negative) training triplet and one row per dev or
// test candidate pair.
//
// An [Exporter] runs the pipeline:
//
//	exporter := export.New(data, export.Options{
//		Tokenizer: tokenizer,
//		Outputs:   map[dataset.Split]string{dataset.Train: "train.duet"},
//	}, export.WithLogger(logger))
//	result, err := exporter.Run(ctx)
//
// Stages run in order (vocabulary, IDF, encoding, one stage per split)
// and are timed with the exporter's [clock.Clock].
package export
