// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/metrics"
)

// IncreaseSpeed moves one step up the speed ladder.
func (s *Session) IncreaseSpeed() { s.changeSpeed(true) }

// DecreaseSpeed moves one step down the speed ladder.
func (s *Session) DecreaseSpeed() { s.changeSpeed(false) }

// SpeedChangeAllowed reports whether the cool-down gate is open.
func (s *Session) SpeedChangeAllowed() bool {
	return !s.slots.Pending(purposeSpeedGate)
}

// changeSpeed applies one ladder step and re-arms the finish timer from the
// current position. Requests are only taken while playing, away from the
// very start and end, and at most once per SpeedChangeCooldown.
func (s *Session) changeSpeed(increase bool) {
	if !s.SpeedChangeAllowed() {
		metrics.RecordSpeedChange(increase, "gated")
		return
	}
	if s.State() != StatePlaying || !s.player.IsPlaying() {
		metrics.RecordSpeedChange(increase, "rejected")
		return
	}
	pos, dur := s.player.PositionMs(), s.player.DurationMs()
	if pos <= speedEdgeMs || dur-pos <= speedEdgeMs {
		metrics.RecordSpeedChange(increase, "rejected")
		return
	}

	// The gate closes even when the ladder end is reached.
	s.slots.Arm(purposeSpeedGate, SpeedChangeCooldown, func() {})

	ladder := s.policies.Snapshot()
	s.policy.SpeedValues = ladder.SpeedValues
	next, ok := s.policy.StepSpeed(s.speed, increase)
	if !ok {
		metrics.RecordSpeedChange(increase, "at_limit")
		s.logger.Debug().Float64(log.FieldSpeed, s.speed).Msg("speed already at ladder end")
		return
	}

	s.speed = next
	s.userSpeed = next
	s.video.Speed = next
	s.player.SetPlaybackSpeed(next)
	metrics.RecordSpeedChange(increase, "applied")
	s.logger.Info().Float64(log.FieldSpeed, next).Msg("playback speed changed")

	if s.speedStore != nil {
		if err := s.speedStore.SavePlaybackSpeed(next); err != nil {
			s.logger.Warn().Err(err).Float64(log.FieldSpeed, next).Msg("failed to persist playback speed")
		}
	}

	s.armFinish()
	if s.listener != nil {
		s.listener.OnPlaybackSpeedChanged()
	}
}
