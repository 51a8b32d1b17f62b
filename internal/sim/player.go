// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sim is a player that plays nothing: it opens the item's stream to
// prove the source works, then advances a virtual position on a
// tasks.Scheduler and emits the events a real player would.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/player"
	"github.com/ManuGH/aerial/internal/source"
	"github.com/ManuGH/aerial/internal/tasks"
	"github.com/rs/zerolog"
)

const (
	// DefaultDurationMs is used for items without a duration hint.
	DefaultDurationMs int64 = 30_000
	// DefaultPrepareDelay is the simulated buffering time after Prepare.
	DefaultPrepareDelay = 250 * time.Millisecond
	// DefaultSeekDelay is the simulated buffering time after SeekTo.
	DefaultSeekDelay = 100 * time.Millisecond
	// DefaultOpenTimeout bounds the stream open started by Prepare.
	DefaultOpenTimeout = 5 * time.Second
)

type purpose string

const (
	purposeReady purpose = "ready"
	purposeEnd   purpose = "end"
)

// Options tune the simulated timings.
type Options struct {
	PrepareDelay time.Duration
	SeekDelay    time.Duration
	OpenTimeout  time.Duration
	// SkipOpen disables the stream open.
	SkipOpen bool
	// Dispatch runs the stream open off the sequencing context. It
	// defaults to a new goroutine.
	Dispatch func(func())
}

// Player implements player.Player on a scheduler. Like the session, it is
// driven from the scheduler's sequencing context only.
type Player struct {
	sched  tasks.Scheduler
	slots  *tasks.Slots[purpose]
	opts   Options
	logger zerolog.Logger

	listener player.Listener

	item       media.Item
	state      player.State
	durationMs int64
	fps        float64

	playWhenReady bool
	speed         float64
	repeat        player.RepeatMode

	// Position is basePos plus the scaled time since anchor while playing.
	basePos int64
	anchor  time.Time

	released bool

	// mu guards the in-flight open, which completes off the loop.
	mu         sync.Mutex
	openGen    uint64
	opening    tasks.Handle
	cancelOpen context.CancelFunc
}

var _ player.Player = (*Player)(nil)

// New creates an idle simulated player.
func New(sched tasks.Scheduler, opts Options) *Player {
	if opts.PrepareDelay <= 0 {
		opts.PrepareDelay = DefaultPrepareDelay
	}
	if opts.SeekDelay <= 0 {
		opts.SeekDelay = DefaultSeekDelay
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = DefaultOpenTimeout
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { go fn() }
	}
	return &Player{
		sched:  sched,
		slots:  tasks.NewSlots[purpose](sched),
		opts:   opts,
		logger: log.WithComponent("sim"),
		state:  player.StateIdle,
		speed:  1,
		repeat: player.RepeatOff,
	}
}

func (p *Player) SetListener(l player.Listener) { p.listener = l }

// Prepare opens the stream in the background and reports ready, or an
// error, PrepareDelay after the open returns.
func (p *Player) Prepare(item media.Item, streams source.Factory) {
	if p.released {
		return
	}
	p.abortOpen()
	p.slots.CancelAll()
	p.item = item
	p.playWhenReady = false
	p.basePos = 0
	p.durationMs = 0
	p.fps = item.FrameRateHint
	p.setState(player.StateBuffering)

	if p.opts.SkipOpen {
		p.slots.Arm(purposeReady, p.opts.PrepareDelay, func() { p.opened(item, nil) })
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.opts.OpenTimeout)
	p.mu.Lock()
	gen := p.openGen
	p.cancelOpen = cancel
	p.mu.Unlock()

	p.opts.Dispatch(func() {
		err := openStream(ctx, item, streams)
		cancel()

		p.mu.Lock()
		defer p.mu.Unlock()
		if gen != p.openGen {
			return
		}
		p.opening = p.sched.AfterFunc(p.opts.PrepareDelay, func() {
			p.mu.Lock()
			if gen != p.openGen {
				p.mu.Unlock()
				return
			}
			p.opening = nil
			p.cancelOpen = nil
			p.mu.Unlock()
			p.opened(item, err)
		})
	})
}

// abortOpen drops the result of any open still in flight.
func (p *Player) abortOpen() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openGen++
	if p.cancelOpen != nil {
		p.cancelOpen()
		p.cancelOpen = nil
	}
	if p.opening != nil {
		p.opening.Stop()
		p.opening = nil
	}
}

func (p *Player) opened(item media.Item, err error) {
	if err != nil {
		p.logger.Warn().Err(err).Str(log.FieldURI, item.URI).Msg("sim player open failed")
		p.setState(player.StateIdle)
		if p.listener != nil {
			p.listener.OnPlayerError(err)
		}
		return
	}
	p.durationMs = item.DurationHintMs
	if p.durationMs <= 0 {
		p.durationMs = DefaultDurationMs
	}
	p.becomeReady()
}

func openStream(ctx context.Context, item media.Item, streams source.Factory) error {
	if streams == nil {
		return fmt.Errorf("no stream factory for %s", item.URI)
	}
	rc, err := streams.Open(ctx, item.URI, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", item.URI, err)
	}
	_ = rc.Close()
	return nil
}

func (p *Player) Play() {
	if p.playWhenReady {
		return
	}
	p.playWhenReady = true
	p.anchor = p.sched.Now()
	p.scheduleEnd()
}

func (p *Player) Pause() {
	if !p.playWhenReady {
		return
	}
	p.basePos = p.PositionMs()
	p.playWhenReady = false
	p.slots.Cancel(purposeEnd)
}

func (p *Player) Stop() {
	p.abortOpen()
	p.slots.CancelAll()
	p.playWhenReady = false
	p.basePos = 0
	p.setState(player.StateIdle)
}

func (p *Player) Release() {
	p.abortOpen()
	p.slots.CancelAll()
	p.playWhenReady = false
	p.listener = nil
	p.released = true
}

// SeekTo jumps and reports buffering, then ready after SeekDelay.
func (p *Player) SeekTo(positionMs int64) {
	if positionMs < 0 {
		positionMs = 0
	}
	if p.durationMs > 0 && positionMs > p.durationMs {
		positionMs = p.durationMs
	}
	p.basePos = positionMs
	p.anchor = p.sched.Now()
	p.slots.Cancel(purposeEnd)
	p.setState(player.StateBuffering)
	p.slots.Arm(purposeReady, p.opts.SeekDelay, p.becomeReady)
}

// DurationMs is 0 until the first ready event.
func (p *Player) DurationMs() int64 { return p.durationMs }

// PositionMs is the scaled position, capped at the duration.
func (p *Player) PositionMs() int64 {
	pos := p.basePos
	if p.playWhenReady && p.state == player.StateReady {
		elapsed := p.sched.Now().Sub(p.anchor)
		pos += int64(float64(elapsed.Milliseconds()) * p.speed)
	}
	if p.durationMs > 0 && pos > p.durationMs {
		pos = p.durationMs
	}
	return pos
}

func (p *Player) IsPlaying() bool {
	return p.playWhenReady && p.state == player.StateReady
}

func (p *Player) FrameRate() float64 { return p.fps }

func (p *Player) SetPlaybackSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	p.basePos = p.PositionMs()
	p.anchor = p.sched.Now()
	p.speed = speed
	p.scheduleEnd()
}

func (p *Player) SetRepeatMode(mode player.RepeatMode) {
	p.repeat = mode
}

// Speed returns the current playback speed.
func (p *Player) Speed() float64 { return p.speed }

func (p *Player) becomeReady() {
	if p.playWhenReady {
		p.anchor = p.sched.Now()
	}
	p.setState(player.StateReady)
	p.scheduleEnd()
}

// scheduleEnd arms the end-of-media event at the current speed.
func (p *Player) scheduleEnd() {
	if !p.IsPlaying() || p.durationMs <= 0 {
		return
	}
	remaining := p.durationMs - p.PositionMs()
	wall := time.Duration(float64(remaining)/p.speed) * time.Millisecond
	p.slots.Arm(purposeEnd, wall, p.reachEnd)
}

func (p *Player) reachEnd() {
	if p.repeat == player.RepeatAll {
		p.basePos = 0
		p.anchor = p.sched.Now()
		if p.listener != nil {
			p.listener.OnMediaItemTransition(player.TransitionRepeat)
		}
		p.scheduleEnd()
		return
	}
	p.basePos = p.durationMs
	p.playWhenReady = false
	p.setState(player.StateEnded)
}

func (p *Player) setState(s player.State) {
	if p.state == s && s != player.StateReady {
		return
	}
	p.state = s
	p.logger.Debug().Str(log.FieldURI, p.item.URI).Str("state", string(s)).Msg("sim player state")
	if p.listener != nil {
		p.listener.OnPlaybackStateChanged(s)
	}
}
