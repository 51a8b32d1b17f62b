// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"github.com/ManuGH/aerial/internal/config"
	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/schedule"
)

// Listener receives the session's notifications on the sequencing context.
// Prepared, almost-finished and error fire at most once per item; speed
// changed fires once per accepted change.
type Listener interface {
	OnPrepared()
	OnAlmostFinished()
	OnError()
	OnPlaybackSpeedChanged()
}

// PolicySource hands out the current policy. The session reads it on Assign
// and on speed changes only.
type PolicySource interface {
	Snapshot() config.Policy
}

// SpeedStore persists the speed chosen by the user as the default for
// later items.
type SpeedStore interface {
	SavePlaybackSpeed(speed float64) error
}

// RefreshRateSwitcher asks the display to match the video frame rate.
type RefreshRateSwitcher interface {
	RequestRefreshRate(fps float64) error
}

// StaticPolicy is a PolicySource that always returns the same policy.
type StaticPolicy config.Policy

// Snapshot implements PolicySource.
func (p StaticPolicy) Snapshot() config.Policy {
	return config.Policy(p).Clone()
}

// VideoInfo is the per-item bookkeeping. It is replaced on every Assign.
type VideoInfo struct {
	ItemID string
	Item   media.Item

	// DurationMs is the last duration the player reported (0 if unknown).
	DurationMs int64

	Segment        schedule.SegmentDecision
	SegmentDecided bool

	LoopCount int64
	Speed     float64

	// LastPlan is the most recent scheduling decision.
	LastPlan schedule.Plan
}
