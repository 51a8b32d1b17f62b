// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import "time"

// Slots keeps at most one pending callback per purpose. Arming a purpose
// replaces whatever was pending for it. Not safe for concurrent use; call it
// from the scheduler's sequencing context only.
type Slots[P comparable] struct {
	sched   Scheduler
	pending map[P]*slot
}

type slot struct {
	handle   Handle
	deadline time.Time
}

// NewSlots returns an empty slot table backed by sched.
func NewSlots[P comparable](sched Scheduler) *Slots[P] {
	return &Slots[P]{sched: sched, pending: map[P]*slot{}}
}

// Arm cancels any pending callback for purpose and schedules fn after d.
// Negative delays run as soon as possible.
func (s *Slots[P]) Arm(purpose P, d time.Duration, fn func()) {
	s.Cancel(purpose)
	if d < 0 {
		d = 0
	}

	sl := &slot{deadline: s.sched.Now().Add(d)}
	sl.handle = s.sched.AfterFunc(d, func() {
		// A newer Arm for the same purpose owns the slot now.
		if s.pending[purpose] != sl {
			return
		}
		delete(s.pending, purpose)
		fn()
	})
	s.pending[purpose] = sl
}

// Cancel stops the pending callback for purpose. It reports whether one was pending.
func (s *Slots[P]) Cancel(purpose P) bool {
	sl, ok := s.pending[purpose]
	if !ok {
		return false
	}
	delete(s.pending, purpose)
	sl.handle.Stop()
	return true
}

// CancelAll stops every pending callback.
func (s *Slots[P]) CancelAll() {
	for purpose := range s.pending {
		s.Cancel(purpose)
	}
}

// Pending reports whether a callback is pending for purpose.
func (s *Slots[P]) Pending(purpose P) bool {
	_, ok := s.pending[purpose]
	return ok
}

// Deadline returns when the pending callback for purpose is due.
func (s *Slots[P]) Deadline(purpose P) (time.Time, bool) {
	sl, ok := s.pending[purpose]
	if !ok {
		return time.Time{}, false
	}
	return sl.deadline, true
}

// Len returns the number of pending callbacks.
func (s *Slots[P]) Len() int {
	return len(s.pending)
}
