// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [WriteFiles] lays out a directory of fixture files and [WriteDataset]
// writes a small ranking dataset (manifest plus TSV files) used by the
// dataset, export and command tests.
//
// [RequireReceive] encapsulates the timeout safety valve pattern
// (select with time.After fallback) so that tests waiting on a
// goroutine do not need direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
