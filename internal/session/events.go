// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/metrics"
	"github.com/ManuGH/aerial/internal/player"
	"github.com/ManuGH/aerial/internal/schedule"
)

var _ player.Listener = (*Session)(nil)

// OnPlaybackStateChanged implements player.Listener.
func (s *Session) OnPlaybackStateChanged(state player.State) {
	switch state {
	case player.StateReady:
		s.onReady()
	case player.StateBuffering:
		s.bufferingLog.Do(func() {
			s.logger.Debug().Str("state", string(s.State())).Msg("player buffering")
		})
	case player.StateEnded:
		s.onEnded()
	}
}

func (s *Session) onReady() {
	switch s.State() {
	case StatePreparing, StateSeeking:
		s.position()
	case StatePlaying:
		// Buffering finished mid-play or the duration was corrected.
		s.armFinish()
	}
}

// position decides segmentation once per item and seeks into the window
// until the player reports a position inside it.
func (s *Session) position() {
	s.video.DurationMs = s.player.DurationMs()

	if s.policy.SegmentsEnabled() && !s.video.SegmentDecided {
		s.video.Segment = schedule.DecideSegments(s.video.DurationMs, s.policy.MaxLengthMs(), s.rnd)
		s.video.SegmentDecided = true
		metrics.RecordSegmentDecision(s.video.Segment.Segmented)
	}

	if seg := s.video.Segment; seg.Segmented {
		pos := s.player.PositionMs()
		if !seg.Contains(pos, SegmentToleranceMs) {
			s.logger.Info().
				Int64(log.FieldPositionMs, pos).
				Int64(log.FieldSegmentStartMs, seg.StartMs).
				Int64(log.FieldSegmentEndMs, seg.EndMs).
				Msg("seeking to segment start")
			metrics.RecordSegmentSeek()
			s.fire(EventSeek)
			s.player.SeekTo(seg.StartMs)
			return
		}
	}

	s.fire(EventPositioned)
	if !s.prepared {
		s.prepared = true
		s.logger.Info().
			Int64(log.FieldDurationMs, s.video.DurationMs).
			Bool("segmented", s.video.Segment.Segmented).
			Msg("item prepared")
		if s.listener != nil {
			s.listener.OnPrepared()
		}
	}
	// The listener may have called Play, Assign or Release.
	if s.State() == StateReady && s.playRequested {
		s.startPlaying()
	}
}

func (s *Session) onEnded() {
	switch s.State() {
	case StatePlaying:
		s.slots.Cancel(purposeFinish)
		s.fire(EventEnded)
		s.notifyAlmostFinished("ended")
	case StateReady, StateAlmostFinished:
		s.fire(EventEnded)
	}
}

// OnMediaItemTransition implements player.Listener. Only repeat boundaries
// matter; the timer already covers the whole looped duration.
func (s *Session) OnMediaItemTransition(reason player.TransitionReason) {
	if reason != player.TransitionRepeat {
		return
	}
	switch s.State() {
	case StatePlaying, StateAlmostFinished, StateReady:
		s.video.LoopCount++
		s.logger.Debug().Int64(log.FieldLoopCount, s.video.LoopCount).Msg("repeat boundary")
	}
}

// OnPlayerError implements player.Listener. The error is reported once per
// item after ErrorDelay; later errors for the same item are absorbed.
func (s *Session) OnPlayerError(err error) {
	switch s.State() {
	case StateIdle, StateReleased, StateError:
		metrics.RecordPlayerError(string(s.video.Item.Source), false)
		return
	}
	if s.errored || s.finished {
		metrics.RecordPlayerError(string(s.video.Item.Source), false)
		s.logger.Debug().Err(err).Msg("player error absorbed")
		return
	}
	s.errored = true
	metrics.RecordPlayerError(string(s.video.Item.Source), true)
	s.logger.Error().Err(err).Str(log.FieldEvent, "player_error").Msg("player error")

	s.slots.Cancel(purposeFinish)
	s.playRequested = false
	s.fire(EventFail)
	s.slots.Arm(purposeError, ErrorDelay, func() {
		if s.listener != nil {
			s.listener.OnError()
		}
	})
}
