// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package columnar implements a self-describing binary container for
// fixed-row-count tables of int64 columns, the on-disk format of
// exported training and evaluation splits.
//
// A container is laid out as:
//
//	magic        8 bytes   "DUETCOL" + version byte
//	attributes   4-byte length + CBOR map (lib/codec, deterministic)
//	columns      4 bytes   column count
//	index        64 bytes per column (see below)
//	names        column names, back to back
//	data         compressed column bytes, in index order
//
// Each index entry holds the column-domain BLAKE3 keyed hash of the
// uncompressed column bytes (32), the dtype (1), the compression tag
// (1), the name length (2), 4 reserved zero bytes, and the compressed
// size, uncompressed size and row count as little-endian uint64s. All
// columns of a container have the same row count.
//
// [Int64] columns store one little-endian int64 per row. [Int64List]
// columns store rows+1 offsets (in elements) followed by the
// concatenated row values, so row i is values[offsets[i]:offsets[i+1]].
//
// The container hash is the container-domain hash of the Merkle root
// over the column hashes. Readers recompute it from the index and
// verify each column hash after decompression.
//
// [Open] reads through the file; [OpenMapped] reads through a
// read-only memory map where the platform supports it.
package columnar
