// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session drives one media item at a time through a player: it
// prepares the item, positions segmented videos, arms the almost-finished
// timer and reports to a single listener.
//
// A Session is not safe for concurrent use. Every method, including the
// player callbacks, must run on the scheduler's sequencing context.
package session

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/ManuGH/aerial/internal/config"
	"github.com/ManuGH/aerial/internal/fsm"
	"github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/metrics"
	"github.com/ManuGH/aerial/internal/player"
	"github.com/ManuGH/aerial/internal/schedule"
	"github.com/ManuGH/aerial/internal/source"
	"github.com/ManuGH/aerial/internal/tasks"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// ErrorDelay separates a player error from its notification.
	ErrorDelay = time.Second
	// SpeedChangeCooldown is the minimum spacing between accepted speed requests.
	SpeedChangeCooldown = 2 * time.Second
	// SegmentToleranceMs widens the segment when checking the player position.
	SegmentToleranceMs int64 = 500
	// speedEdgeMs keeps speed changes away from the very start and end.
	speedEdgeMs int64 = 3
)

type purpose string

const (
	purposeFinish    purpose = "almost_finished"
	purposeError     purpose = "error"
	purposeSpeedGate purpose = "speed_gate"
)

// Session is the playback state machine for one player.
type Session struct {
	player   player.Player
	streams  source.Resolver
	sched    tasks.Scheduler
	policies PolicySource

	speedStore SpeedStore
	refresh    RefreshRateSwitcher
	rnd        schedule.RandomSource
	baseLogger zerolog.Logger

	listener Listener
	machine  *fsm.Machine[State, Event]
	slots    *tasks.Slots[purpose]
	logger   zerolog.Logger

	policy config.Policy
	video  VideoInfo
	speed  float64

	// userSpeed is the last accepted speed change (0 if none). It carries
	// over to later items until the policy's own speed changes.
	userSpeed   float64
	policySpeed float64

	playRequested bool
	prepared      bool
	finished      bool
	errored       bool
	refreshDone   bool

	bufferingLog rate.Sometimes
}

// Option configures a Session.
type Option func(*Session)

// WithSpeedStore persists accepted speed changes.
func WithSpeedStore(s SpeedStore) Option {
	return func(sess *Session) { sess.speedStore = s }
}

// WithRefreshRateSwitcher enables refresh-rate requests when the policy allows them.
func WithRefreshRateSwitcher(r RefreshRateSwitcher) Option {
	return func(sess *Session) { sess.refresh = r }
}

// WithRandom replaces the segment picker.
func WithRandom(r schedule.RandomSource) Option {
	return func(sess *Session) { sess.rnd = r }
}

// WithLogger replaces the base logger.
func WithLogger(l zerolog.Logger) Option {
	return func(sess *Session) { sess.baseLogger = l }
}

// New creates an idle session and registers it as the player's listener.
func New(p player.Player, streams source.Resolver, sched tasks.Scheduler, policies PolicySource, opts ...Option) *Session {
	s := &Session{
		player:       p,
		streams:      streams,
		sched:        sched,
		policies:     policies,
		rnd:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		baseLogger:   log.WithComponent("session"),
		slots:        tasks.NewSlots[purpose](sched),
		speed:        1,
		bufferingLog: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.baseLogger
	s.machine = newMachine(s.onTransition)
	s.policy = policies.Snapshot()
	s.policySpeed = s.policy.PlaybackSpeed
	p.SetListener(s)
	return s
}

// SetListener replaces the listener. nil clears it.
func (s *Session) SetListener(l Listener) {
	s.listener = l
}

// State returns the current state.
func (s *Session) State() State {
	return s.machine.State()
}

// Video returns a copy of the current item's bookkeeping.
func (s *Session) Video() VideoInfo {
	return s.video
}

// Speed returns the speed applied to the player.
func (s *Session) Speed() float64 {
	return s.speed
}

// Assign resets per-item state and asks the player to prepare item. It
// fails only for caller errors and leaves the session untouched when it does.
func (s *Session) Assign(item media.Item) error {
	if s.State() == StateReleased {
		return ErrReleased
	}
	factory, err := s.streams.Resolve(item.Source)
	if err != nil {
		return fmt.Errorf("assign %s: %w", item.URI, err)
	}

	// The speed gate keeps running across items.
	s.slots.Cancel(purposeFinish)
	s.slots.Cancel(purposeError)

	s.policy = s.policies.Snapshot()
	s.speed = s.itemSpeed()
	s.video = VideoInfo{
		ItemID: uuid.NewString(),
		Item:   item,
		Speed:  s.speed,
	}
	s.playRequested = false
	s.prepared = false
	s.finished = false
	s.errored = false
	s.refreshDone = false

	s.logger = s.baseLogger.With().
		Str(log.FieldItemID, s.video.ItemID).
		Str(log.FieldSource, string(item.Source)).
		Logger()

	s.fire(EventAssign)

	s.logger.Info().
		Str(log.FieldURI, item.URI).
		Str("location", item.Location).
		Float64(log.FieldSpeed, s.speed).
		Msg("preparing item")

	s.player.SetRepeatMode(player.RepeatOff)
	s.player.SetPlaybackSpeed(s.speed)
	s.player.Prepare(item, instrumented(item.Source, factory))
	return nil
}

// itemSpeed picks the speed for a new item: the last accepted change,
// unless the policy speed moved since the previous snapshot.
func (s *Session) itemSpeed() float64 {
	if s.policy.PlaybackSpeed != s.policySpeed {
		s.userSpeed = 0
	}
	s.policySpeed = s.policy.PlaybackSpeed

	speed := s.policy.PlaybackSpeed
	if s.userSpeed > 0 {
		speed = s.userSpeed
	}
	if speed <= 0 {
		speed = 1
	}
	return speed
}

// Play starts playback once the item is positioned. Before that it only
// records the request.
func (s *Session) Play() {
	switch s.State() {
	case StatePreparing, StateSeeking:
		s.playRequested = true
	case StateReady:
		s.playRequested = true
		s.startPlaying()
	case StateAlmostFinished:
		s.player.Play()
	default:
		s.logger.Debug().Str(log.FieldEvent, string(EventPlay)).Str("state", string(s.State())).Msg("play ignored")
	}
}

// Pause pauses playback and cancels the finish timer. Playing again
// re-arms from the current position.
func (s *Session) Pause() {
	s.playRequested = false
	switch s.State() {
	case StatePlaying:
		s.slots.Cancel(purposeFinish)
		s.player.Pause()
		s.fire(EventPause)
	case StateAlmostFinished:
		s.player.Pause()
	}
}

// Stop cancels the finish timer and stops the player. A new Assign is
// needed to play again.
func (s *Session) Stop() {
	if s.State() == StateReleased || s.State() == StateIdle {
		return
	}
	s.slots.Cancel(purposeFinish)
	s.playRequested = false
	s.player.Stop()
	s.fire(EventStop)
}

// Release cancels every pending task, releases the player and clears the
// listener. It is safe from any state and idempotent.
func (s *Session) Release() {
	if s.State() == StateReleased {
		return
	}
	s.slots.CancelAll()
	s.player.SetListener(nil)
	s.player.Release()
	s.listener = nil
	s.fire(EventRelease)
}

// Pending reports how many scheduled tasks are outstanding.
func (s *Session) Pending() int {
	return s.slots.Len()
}

// FinishDeadline returns when the almost-finished timer is due.
func (s *Session) FinishDeadline() (time.Time, bool) {
	return s.slots.Deadline(purposeFinish)
}

func (s *Session) startPlaying() {
	s.fire(EventPlay)
	s.player.Play()
	s.requestRefreshRate()
	s.armFinish()
}

// armFinish plans from the player's current figures and replaces the
// pending finish timer.
func (s *Session) armFinish() {
	s.video.DurationMs = s.player.DurationMs()
	plan := schedule.Decide(schedule.Input{
		Rules:      s.policy.Rules(),
		DurationMs: s.video.DurationMs,
		PositionMs: s.player.PositionMs(),
		Speed:      s.speed,
		Segment:    s.video.Segment,
		LoopCount:  s.video.LoopCount,
	})
	s.video.LastPlan = plan
	metrics.RecordFinishPlan(string(plan.Branch), plan.Armed, plan.DelayMs)

	if plan.RepeatAll {
		s.player.SetRepeatMode(player.RepeatAll)
	}
	if !plan.Armed {
		s.slots.Cancel(purposeFinish)
		return
	}

	s.slots.Arm(purposeFinish, time.Duration(plan.DelayMs)*time.Millisecond, s.onFinishTimer)
	s.logger.Debug().
		Str(log.FieldBranch, string(plan.Branch)).
		Int64(log.FieldDelayMs, plan.DelayMs).
		Msg("almost-finished timer armed")
}

func (s *Session) onFinishTimer() {
	if s.State() != StatePlaying {
		return
	}
	s.fire(EventFinish)
	s.notifyAlmostFinished("timer")
}

func (s *Session) notifyAlmostFinished(trigger string) {
	if s.finished {
		return
	}
	s.finished = true
	metrics.RecordAlmostFinished(trigger)
	s.logger.Info().Str(log.FieldEvent, "almost_finished").Str("trigger", trigger).Msg("almost finished")
	if s.listener != nil {
		s.listener.OnAlmostFinished()
	}
}

func (s *Session) requestRefreshRate() {
	if s.refreshDone || !s.policy.RefreshRateSwitching || s.refresh == nil {
		return
	}
	s.refreshDone = true

	fps := s.player.FrameRate()
	if fps <= 0 {
		s.logger.Info().Msg("frame rate unknown, skipping refresh rate switch")
		return
	}
	if err := s.refresh.RequestRefreshRate(fps); err != nil {
		s.logger.Warn().Err(err).Float64(log.FieldFPS, fps).Msg("refresh rate switch failed")
		return
	}
	s.logger.Info().Float64(log.FieldFPS, fps).Msg("refresh rate requested")
}

func (s *Session) fire(ev Event) bool {
	if _, err := s.machine.Fire(ev); err != nil {
		s.logger.Debug().Err(err).Str(log.FieldEvent, string(ev)).Msg("event ignored")
		return false
	}
	return true
}

func (s *Session) onTransition(from, to State, ev Event) {
	metrics.RecordStateTransition(string(from), string(to))
	s.logger.Debug().
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Str(log.FieldEvent, string(ev)).
		Msg("session state changed")
}

// instrumented counts stream opens per source.
func instrumented(tag media.SourceTag, f source.Factory) source.Factory {
	return source.FactoryFunc(func(ctx context.Context, uri string, offset int64) (io.ReadCloser, error) {
		rc, err := f.Open(ctx, uri, offset)
		metrics.RecordStreamOpen(string(tag), err)
		return rc, err
	})
}
