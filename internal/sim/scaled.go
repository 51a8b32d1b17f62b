// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sim

import (
	"time"

	"github.com/ManuGH/aerial/internal/tasks"
)

// Scaled runs a scheduler faster (factor > 1) or slower than its base.
// Now reports virtual time; delays are divided by factor before reaching base.
type Scaled struct {
	base   tasks.Scheduler
	factor float64
	origin time.Time
}

var _ tasks.Scheduler = (*Scaled)(nil)

// NewScaled wraps base. A factor <= 0 means 1.
func NewScaled(base tasks.Scheduler, factor float64) *Scaled {
	if factor <= 0 {
		factor = 1
	}
	return &Scaled{base: base, factor: factor, origin: base.Now()}
}

// Factor returns the speed-up.
func (s *Scaled) Factor() float64 { return s.factor }

func (s *Scaled) Now() time.Time {
	elapsed := s.base.Now().Sub(s.origin)
	return s.origin.Add(time.Duration(float64(elapsed) * s.factor))
}

func (s *Scaled) AfterFunc(d time.Duration, fn func()) tasks.Handle {
	return s.base.AfterFunc(time.Duration(float64(d)/s.factor), fn)
}
