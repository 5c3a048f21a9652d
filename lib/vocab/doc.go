// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package vocab builds the token vocabulary used to integer-encode
// queries and documents for a neural ranking model.
//
// [Build] tokenizes a text collection on a worker pool, counts token
// frequencies and assigns dense ids:
//
//   - Special tokens (by default <UNK>, <PAD>, <EOS>, <START>) take ids
//     0..k-1 in declaration order. They are never evicted by the size
//     cap, whether or not they occur in the text.
//   - All other tokens follow by descending frequency. Equal
//     frequencies are ordered by first occurrence in the collection,
//     which makes the assignment deterministic: the same collection
//     and tokenizer always produce the same vocabulary, however the
//     pool scheduled the work.
//   - With a cap, only the top MaxSize tokens (specials included) are
//     kept. A cap smaller than the number of special tokens is
//     rejected before any text is tokenized.
//
// A [Vocabulary] is immutable. It encodes token sequences, mapping
// out-of-vocabulary tokens to the unknown-token id, and decodes ids
// back to tokens. [Vocabulary.Save] persists the inverse vocabulary
// (id → token) as deterministic CBOR for the training job.
package vocab
