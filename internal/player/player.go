// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player defines the handle the playback session drives. Decoding,
// rendering and transports live behind it.
package player

import (
	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/source"
)

// State mirrors the underlying player's playback state.
type State string

const (
	StateIdle      State = "idle"
	StateBuffering State = "buffering"
	StateReady     State = "ready"
	StateEnded     State = "ended"
)

// RepeatMode controls whether the player wraps at the end of the media.
type RepeatMode string

const (
	RepeatOff RepeatMode = "off"
	RepeatAll RepeatMode = "all"
)

// TransitionReason explains a media-item transition.
type TransitionReason string

const (
	TransitionRepeat          TransitionReason = "repeat"
	TransitionAuto            TransitionReason = "auto"
	TransitionSeek            TransitionReason = "seek"
	TransitionPlaylistChanged TransitionReason = "playlist_changed"
)

// Listener receives player events. Implementations of Player must deliver
// them on the session's sequencing context.
type Listener interface {
	OnPlaybackStateChanged(state State)
	OnMediaItemTransition(reason TransitionReason)
	OnPlayerError(err error)
}

// Player is the abstract handle. Durations and positions are milliseconds on
// the media timeline; DurationMs is 0 until known and FrameRate is 0 when
// unknown.
type Player interface {
	SetListener(l Listener)

	Prepare(item media.Item, streams source.Factory)
	Play()
	Pause()
	Stop()
	Release()
	SeekTo(positionMs int64)

	DurationMs() int64
	PositionMs() int64
	IsPlaying() bool
	FrameRate() float64

	SetPlaybackSpeed(speed float64)
	SetRepeatMode(mode RepeatMode)
}
