// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the duetprep command tree.
//
// Subcommands:
//
//   - export: run the full pipeline and write one container per split.
//   - vocab: build and save a vocabulary.
//   - idf: compute and save id-keyed IDF weights for a saved vocabulary.
//   - inspect: describe containers and optionally verify every column.
//   - encode: tokenize and encode text with a saved vocabulary.
//   - version: print build information.
//
// Commands that read text take their tokenizer settings from the
// configuration file named by --config or DUETPREP_CONFIG, falling back
// to the built-in defaults. Flags override the file.
package commands
