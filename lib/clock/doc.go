// Copyright 2026 The duetprep Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for stage timing.
//
// Production code accepts a Clock instead of calling time.Now
// directly. Real() is backed by the time package; Fake() returns a
// clock that only moves when Advance is called, so tests can assert
// exact durations.
//
//	exporter := export.New(dataset, options, export.WithClock(clock.Real()))
//
// In tests:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	c.Advance(5 * time.Second)
package clock
