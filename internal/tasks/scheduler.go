// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tasks provides delayed, cancellable, single-shot callbacks that run
// on one sequencing context.
package tasks

import "time"

// Scheduler runs callbacks on its sequencing context after a delay.
// Implementations guarantee that a callback whose Handle was stopped from the
// sequencing context never runs.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time

	// AfterFunc schedules fn to run once after d.
	AfterFunc(d time.Duration, fn func()) Handle
}

// Handle cancels a scheduled callback.
type Handle interface {
	// Stop prevents the callback from running. It reports whether the call
	// stopped the callback (false when it already ran or was stopped).
	Stop() bool
}
