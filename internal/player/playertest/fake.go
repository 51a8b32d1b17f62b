// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playertest provides a scripted Player for tests. Tests set
// duration and position directly and push events through Emit helpers.
package playertest

import (
	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/player"
	"github.com/ManuGH/aerial/internal/source"
)

// Fake records every command and reports whatever the test scripted.
type Fake struct {
	Listener player.Listener

	Duration int64
	Position int64
	FPS      float64

	PlayWhenReady bool
	Speed         float64
	Repeat        player.RepeatMode

	Prepared   []media.Item
	Factories  []source.Factory
	Seeks      []int64
	Stops      int
	Released   bool
	SpeedCalls []float64
}

var _ player.Player = (*Fake)(nil)

// New returns a paused fake at 1x.
func New() *Fake {
	return &Fake{Speed: 1, Repeat: player.RepeatOff}
}

func (f *Fake) SetListener(l player.Listener) { f.Listener = l }

func (f *Fake) Prepare(item media.Item, streams source.Factory) {
	f.Prepared = append(f.Prepared, item)
	f.Factories = append(f.Factories, streams)
	f.Position = 0
}

func (f *Fake) Play()  { f.PlayWhenReady = true }
func (f *Fake) Pause() { f.PlayWhenReady = false }

func (f *Fake) Stop() {
	f.Stops++
	f.PlayWhenReady = false
}

func (f *Fake) Release() { f.Released = true }

// SeekTo jumps immediately; the test decides when to emit the following ready.
func (f *Fake) SeekTo(positionMs int64) {
	f.Seeks = append(f.Seeks, positionMs)
	f.Position = positionMs
}

func (f *Fake) DurationMs() int64  { return f.Duration }
func (f *Fake) PositionMs() int64  { return f.Position }
func (f *Fake) IsPlaying() bool    { return f.PlayWhenReady }
func (f *Fake) FrameRate() float64 { return f.FPS }

func (f *Fake) SetPlaybackSpeed(speed float64) {
	f.Speed = speed
	f.SpeedCalls = append(f.SpeedCalls, speed)
}

func (f *Fake) SetRepeatMode(mode player.RepeatMode) { f.Repeat = mode }

// EmitState delivers a state change to the listener.
func (f *Fake) EmitState(s player.State) {
	if f.Listener != nil {
		f.Listener.OnPlaybackStateChanged(s)
	}
}

// EmitRepeat delivers a repeat-boundary transition.
func (f *Fake) EmitRepeat() {
	if f.Listener != nil {
		f.Listener.OnMediaItemTransition(player.TransitionRepeat)
	}
}

// EmitError delivers a player error.
func (f *Fake) EmitError(err error) {
	if f.Listener != nil {
		f.Listener.OnPlayerError(err)
	}
}
