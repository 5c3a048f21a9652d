// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads duetprep run configuration.
//
// Configuration is loaded from a single file named by either the
// DUETPREP_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Files ending in
// .json or .jsonc are read as JSON with comments; everything else is
// YAML.
//
// Loading starts from [Default], overlays the file, then expands
// ${DUETPREP_ROOT}, ${HOME} and ${VAR:-default} patterns in path
// fields. [Config.Validate] reports every problem at once.
//
// Key exports:
//
//   - [Config] with Dataset, Tokenizer, Vocabulary, Encoding, Parallel,
//     Export, Outputs and Logging sections
//   - [Default], [Load], [LoadFile] and [Parse]
//   - conversion helpers producing tokenize, vocab, parallel and
//     columnar options
package config
