// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package schedule

// MinMaxLengthMs is the floor below which a configured maximum length means
// "no limit".
const MinMaxLengthMs int64 = 10_000

// LimitMode selects what happens to videos longer than the maximum length.
type LimitMode string

const (
	LimitIgnore  LimitMode = "ignore"  // play longer videos in full
	LimitLimit   LimitMode = "limit"   // hard cap at the maximum length
	LimitSegment LimitMode = "segment" // play one random window of the video
)

// Branch records which rule of the decision policy produced a plan.
// Format: {RULE}_{Result}
type Branch string

const (
	BranchDurationUnknown Branch = "DURATION_UNKNOWN_DEFER"
	BranchUnlimited       Branch = "LIMIT_DISABLED_FULL"
	BranchSegment         Branch = "SEGMENT_WINDOW"
	BranchLoop            Branch = "SHORT_VIDEO_LOOP"
	BranchLimit           Branch = "LONG_VIDEO_CAPPED"
	BranchIgnoreLimit     Branch = "LONG_VIDEO_FULL"
)

// Rules is the subset of the playback policy the scheduler reads.
type Rules struct {
	MaxLengthMs     int64
	LoopShortVideos bool
	Limit           LimitMode
	FadeOutMs       int64
}

// LimitEnabled reports whether MaxLengthMs is at or above the floor.
func (r Rules) LimitEnabled() bool {
	return r.MaxLengthMs >= MinMaxLengthMs
}

// SegmentDecision is the outcome of DecideSegments. StartMs and EndMs are
// offsets into the original video timeline and only valid when Segmented.
type SegmentDecision struct {
	Segmented bool  `json:"segmented"`
	StartMs   int64 `json:"start_ms"`
	EndMs     int64 `json:"end_ms"`
	Segments  int64 `json:"segments"`
}

// WidthMs is the effective duration of a segmented video.
func (d SegmentDecision) WidthMs() int64 {
	if !d.Segmented {
		return 0
	}
	return d.EndMs - d.StartMs
}

// Contains reports whether positionMs lies within the segment widened by
// toleranceMs on both sides.
func (d SegmentDecision) Contains(positionMs, toleranceMs int64) bool {
	return positionMs >= d.StartMs-toleranceMs && positionMs <= d.EndMs+toleranceMs
}

// LoopDecision is the outcome of DecideLooping.
type LoopDecision struct {
	ShouldLoop       bool  `json:"should_loop"`
	LoopCount        int64 `json:"loop_count"`
	TargetDurationMs int64 `json:"target_duration_ms"`
}

// Input is everything Decide needs, captured at one instant.
type Input struct {
	Rules Rules

	// DurationMs is the raw duration reported by the player (0 if unknown).
	DurationMs int64
	// PositionMs is the raw player position.
	PositionMs int64
	Speed      float64

	Segment   SegmentDecision
	LoopCount int64
}

// Plan is the output of Decide.
type Plan struct {
	Branch Branch `json:"branch"`
	// Armed is false when no timer should be armed yet.
	Armed   bool  `json:"armed"`
	DelayMs int64 `json:"delay_ms"`

	EffectiveDurationMs int64 `json:"effective_duration_ms"`
	EffectivePositionMs int64 `json:"effective_position_ms"`

	// RepeatAll asks the caller to put the player into indefinite repeat.
	RepeatAll bool         `json:"repeat_all"`
	Loop      LoopDecision `json:"loop"`
}
