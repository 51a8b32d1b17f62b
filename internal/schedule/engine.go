// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package schedule decides how much of a video to play and when to signal
// that it is almost finished. Every function here is pure apart from logging.
package schedule

import (
	"math"
	"time"

	"github.com/ManuGH/aerial/internal/log"
)

// RandomSource picks segment windows. *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	Int64N(n int64) int64
}

// DecideSegments splits a long video into equal contiguous windows and picks
// one uniformly at random. Videos under two windows long, and lengths below
// the floor, are not segmented.
func DecideSegments(durationMs, maxLengthMs int64, rnd RandomSource) SegmentDecision {
	if maxLengthMs < MinMaxLengthMs || durationMs <= 0 {
		return SegmentDecision{}
	}

	segments := durationMs / maxLengthMs
	if segments < 2 {
		return SegmentDecision{}
	}

	length := durationMs / segments
	pick := rnd.Int64N(segments) + 1
	d := SegmentDecision{
		Segmented: true,
		StartMs:   (pick - 1) * length,
		EndMs:     pick * length,
		Segments:  segments,
	}

	logger := log.WithComponent("schedule")
	logger.Info().
		Int64(log.FieldSegmentStartMs, d.StartMs).
		Int64(log.FieldSegmentEndMs, d.EndMs).
		Int64(log.FieldDurationMs, durationMs).
		Int64(log.FieldSegments, segments).
		Msgf("segment chosen: %s - %s", ms(d.StartMs), ms(d.EndMs))
	return d
}

// DecideLooping computes how many repeats a short video needs to fill
// maxLengthMs. A video at least as long as maxLengthMs never loops.
func DecideLooping(durationMs, maxLengthMs int64) LoopDecision {
	if durationMs <= 0 || durationMs >= maxLengthMs {
		return LoopDecision{LoopCount: 1, TargetDurationMs: max(durationMs, 0)}
	}

	loopCount := (maxLengthMs + durationMs - 1) / durationMs
	d := LoopDecision{
		ShouldLoop:       loopCount > 1,
		LoopCount:        loopCount,
		TargetDurationMs: durationMs * loopCount,
	}

	logger := log.WithComponent("schedule")
	logger.Info().
		Int64(log.FieldLoopCount, loopCount).
		Int64(log.FieldDurationMs, durationMs).
		Int64(log.FieldMaxLengthMs, maxLengthMs).
		Msgf("looping %d times", loopCount)
	return d
}

// ComputeDelay returns the wall-clock milliseconds until the almost-finished
// signal at the current speed. Never negative. A non-positive speed is
// treated as 1x.
func ComputeDelay(effectiveDurationMs, positionMs int64, speed float64, fadeOutMs int64) int64 {
	if speed <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = 1
	}
	remaining := float64(effectiveDurationMs-positionMs) / speed
	delay := int64(math.Round(remaining)) - fadeOutMs
	if delay < 0 {
		return 0
	}
	return delay
}

// Decide applies the decision policy to a freshly ready (or re-evaluated)
// video. Rules are checked in priority order and the first match wins:
//
//  1. limit disabled: play in full
//  2. segmented: play the chosen window
//  3. loop enabled and the video is short: repeat to fill the limit
//  4. the video exceeds the limit and longer videos are not ignored: cap
//  5. otherwise play in full
//
// Unknown duration defers arming unless a segment is already decided.
func Decide(in Input) Plan {
	logger := log.WithComponent("schedule")
	r := in.Rules

	if in.DurationMs <= 0 && !in.Segment.Segmented {
		logger.Info().
			Int64(log.FieldPositionMs, in.PositionMs).
			Msg("duration unknown, deferring almost-finished timer")
		return Plan{Branch: BranchDurationUnknown, EffectivePositionMs: in.PositionMs}
	}

	if !r.LimitEnabled() {
		return finish(in, Plan{
			Branch:              BranchUnlimited,
			EffectiveDurationMs: in.DurationMs,
			EffectivePositionMs: in.PositionMs,
		})
	}

	if in.Segment.Segmented {
		pos := in.PositionMs - in.Segment.StartMs
		if in.PositionMs < in.Segment.StartMs {
			pos = 0
		}
		return finish(in, Plan{
			Branch:              BranchSegment,
			EffectiveDurationMs: in.Segment.WidthMs(),
			EffectivePositionMs: pos,
		})
	}

	if r.LoopShortVideos && in.DurationMs < r.MaxLengthMs {
		loop := DecideLooping(in.DurationMs, r.MaxLengthMs)
		return finish(in, Plan{
			Branch:              BranchLoop,
			EffectiveDurationMs: loop.TargetDurationMs,
			EffectivePositionMs: in.LoopCount*in.DurationMs + in.PositionMs,
			RepeatAll:           loop.ShouldLoop,
			Loop:                loop,
		})
	}

	if r.MaxLengthMs < in.DurationMs && r.Limit != LimitIgnore {
		logger.Info().
			Int64(log.FieldDurationMs, in.DurationMs).
			Int64(log.FieldMaxLengthMs, r.MaxLengthMs).
			Msgf("limiting duration (video is %s, limit is %s)", ms(in.DurationMs), ms(r.MaxLengthMs))
		return finish(in, Plan{
			Branch:              BranchLimit,
			EffectiveDurationMs: r.MaxLengthMs,
			EffectivePositionMs: in.PositionMs,
		})
	}

	logger.Info().
		Int64(log.FieldDurationMs, in.DurationMs).
		Int64(log.FieldMaxLengthMs, r.MaxLengthMs).
		Msgf("ignoring limit (video is %s, limit is %s)", ms(in.DurationMs), ms(r.MaxLengthMs))
	return finish(in, Plan{
		Branch:              BranchIgnoreLimit,
		EffectiveDurationMs: in.DurationMs,
		EffectivePositionMs: in.PositionMs,
	})
}

func finish(in Input, p Plan) Plan {
	p.Armed = true
	p.DelayMs = ComputeDelay(p.EffectiveDurationMs, p.EffectivePositionMs, in.Speed, in.Rules.FadeOutMs)

	// Effective position is reported on the original timeline for segments.
	display := p.EffectivePositionMs
	if in.Segment.Segmented {
		display += in.Segment.StartMs
	}
	logger := log.WithComponent("schedule")
	logger.Info().
		Str(log.FieldBranch, string(p.Branch)).
		Int64(log.FieldDelayMs, p.DelayMs).
		Int64(log.FieldDurationMs, p.EffectiveDurationMs).
		Int64(log.FieldPositionMs, display).
		Float64(log.FieldSpeed, in.Speed).
		Msgf("delay: %s", ms(p.DelayMs))
	return p
}

func ms(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
