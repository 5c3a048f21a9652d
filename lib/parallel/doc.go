// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package parallel runs per-item work across a fixed-size pool of
// worker goroutines.
//
// Items are addressed by index in [0, count). The controller hands out
// contiguous chunks of indices over a channel; each worker folds the
// items of its chunks into an accumulator it owns exclusively. Once
// every worker has returned, the controller merges the accumulators in
// worker order. No accumulator is ever shared between goroutines, so
// step and merge functions need no locking.
//
// Counting is the canonical use:
//
//	counts, err := parallel.Reduce(ctx, len(texts), options,
//	    func() map[string]int { return make(map[string]int) },
//	    func(local map[string]int, index int) error {
//	        for _, token := range strings.Fields(texts[index]) {
//	            local[token]++
//	        }
//	        return nil
//	    },
//	    func(total, local map[string]int) {
//	        for token, count := range local {
//	            total[token] += count
//	        }
//	    })
//
// Because merge runs over complete per-worker tallies, the result of an
// associative and commutative merge does not depend on how items were
// scheduled.
//
// The pool lives for exactly one call. The first step error stops
// dispatch of further chunks and is returned; there is no partial
// result and no retry.
package parallel
