// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultChunkSize is the number of items handed to a worker at a
// time when Options.ChunkSize is not set.
const DefaultChunkSize = 1024

// Options configures a pool.
type Options struct {
	// Workers is the number of worker goroutines. Zero or negative
	// means runtime.NumCPU().
	Workers int

	// ChunkSize is the number of consecutive items dispatched to a
	// worker at once. Zero or negative means DefaultChunkSize.
	ChunkSize int

	// Progress, if set, is called after each completed chunk with the
	// number of items completed so far and the total. It is called
	// from worker goroutines and must be safe for concurrent use.
	Progress func(completed, total int)
}

// WorkerCount returns the number of workers a pool with these options
// starts for count items: never more workers than chunks.
func (o Options) WorkerCount(count int) int {
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	chunks := (count + o.chunkSize() - 1) / o.chunkSize()
	if workers > chunks {
		workers = chunks
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

func (o Options) chunkSize() int {
	if o.ChunkSize <= 0 {
		return DefaultChunkSize
	}
	return o.ChunkSize
}

// span is a half-open range of item indices.
type span struct {
	start, end int
}

// Reduce folds count items into accumulators across a worker pool and
// returns the merged total.
//
// newLocal creates an empty accumulator; it is called once per worker
// and once for the total. step folds item index into the worker's
// local accumulator. merge folds a finished local accumulator into the
// total. Accumulators are expected to be reference types (maps,
// pointers to structs) so step and merge can mutate them in place.
//
// The first error returned by step cancels the remaining work; Reduce
// returns it wrapped with the failing item index. If ctx is cancelled
// first, Reduce returns ctx.Err().
func Reduce[A any](
	ctx context.Context,
	count int,
	options Options,
	newLocal func() A,
	step func(local A, index int) error,
	merge func(total, local A),
) (A, error) {
	total := newLocal()
	if count <= 0 {
		return total, ctx.Err()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := options.WorkerCount(count)
	chunkSize := options.chunkSize()

	spans := make(chan span)
	locals := make([]A, workers)

	var (
		firstError error
		errorOnce  sync.Once
		completed  atomic.Int64
		waitGroup  sync.WaitGroup
	)
	fail := func(err error) {
		errorOnce.Do(func() {
			firstError = err
			cancel()
		})
	}

	for worker := range workers {
		local := newLocal()
		locals[worker] = local
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for s := range spans {
				if ctx.Err() != nil {
					continue
				}
				for index := s.start; index < s.end; index++ {
					if err := step(local, index); err != nil {
						fail(fmt.Errorf("item %d: %w", index, err))
						break
					}
				}
				done := completed.Add(int64(s.end - s.start))
				if options.Progress != nil {
					options.Progress(int(done), count)
				}
			}
		}()
	}

dispatch:
	for start := 0; start < count; start += chunkSize {
		end := min(start+chunkSize, count)
		select {
		case spans <- span{start: start, end: end}:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(spans)
	waitGroup.Wait()

	if firstError != nil {
		return total, firstError
	}
	if err := ctx.Err(); err != nil {
		return total, err
	}

	for _, local := range locals {
		merge(total, local)
	}
	return total, nil
}

// ForEach calls step for every index in [0, count) across a worker
// pool. It is Reduce without accumulators, for work that writes its
// result into a preallocated slot per index.
func ForEach(ctx context.Context, count int, options Options, step func(index int) error) error {
	_, err := Reduce(ctx, count, options,
		func() struct{} { return struct{}{} },
		func(_ struct{}, index int) error { return step(index) },
		func(_, _ struct{}) {},
	)
	return err
}
