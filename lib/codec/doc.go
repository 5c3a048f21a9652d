// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// every artifact duetprep writes to disk.
//
// Vocabulary tables, IDF tables and the attribute block of columnar
// containers are all CBOR. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes, so two runs over the same dataset produce
// byte-identical artifacts.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Persisted documents carry a format identifier and live one per file:
//
//	err := codec.ReadFile(path, &document)
//	err = codec.CheckFormat(document.Format, FileFormat)
//
// # Struct Tag Rules
//
// Types that only ever live on disk use `cbor` tags. Types that are
// also printed by the CLI with --json use `json` tags; fxamacker/cbor
// reads `json` tags as a fallback when `cbor` tags are absent. Never
// put both on the same field.
package codec
