// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package rotation cycles one playback session through a resolved playlist.
package rotation

import (
	"errors"
	"fmt"

	"github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/media"
	"github.com/rs/zerolog"
)

// ErrEmptyPlaylist is returned by Start when there is nothing to play.
var ErrEmptyPlaylist = errors.New("empty playlist")

// ErrNoPlayableItem is returned when every item failed to assign.
var ErrNoPlayableItem = errors.New("no playable item in playlist")

// Session is the part of session.Session the rotation drives.
type Session interface {
	Assign(item media.Item) error
	Play()
}

// Stats counts what the rotation has done so far.
type Stats struct {
	Assigned      int `json:"assigned"`
	Finished      int `json:"finished"`
	Errors        int `json:"errors"`
	SpeedChanges  int `json:"speed_changes"`
	AssignFailure int `json:"assign_failures"`
}

// Rotation implements session.Listener: prepared items start playing and
// finished or failed items advance to the next one, wrapping at the end.
// Drive it on the session's sequencing context.
type Rotation struct {
	sess   Session
	items  []media.Item
	index  int
	stats  Stats
	logger zerolog.Logger

	// OnAdvance, if set, is called after each successful assignment.
	OnAdvance func(index int, item media.Item)
}

// New creates a rotation over items. The slice is copied.
func New(sess Session, items []media.Item) *Rotation {
	return &Rotation{
		sess:   sess,
		items:  append([]media.Item(nil), items...),
		index:  -1,
		logger: log.WithComponent("rotation"),
	}
}

// Start assigns the first playable item.
func (r *Rotation) Start() error {
	if len(r.items) == 0 {
		return ErrEmptyPlaylist
	}
	return r.advance()
}

// Next skips to the following item.
func (r *Rotation) Next() error {
	if len(r.items) == 0 {
		return ErrEmptyPlaylist
	}
	return r.advance()
}

// Current returns the index and item being played. index is -1 before Start.
func (r *Rotation) Current() (int, media.Item) {
	if r.index < 0 {
		return -1, media.Item{}
	}
	return r.index, r.items[r.index]
}

// Stats returns a copy of the counters.
func (r *Rotation) Stats() Stats {
	return r.stats
}

func (r *Rotation) OnPrepared() {
	r.sess.Play()
}

func (r *Rotation) OnAlmostFinished() {
	r.stats.Finished++
	r.next()
}

func (r *Rotation) OnError() {
	r.stats.Errors++
	r.next()
}

func (r *Rotation) OnPlaybackSpeedChanged() {
	r.stats.SpeedChanges++
}

func (r *Rotation) next() {
	if err := r.advance(); err != nil {
		r.logger.Error().Err(err).Msg("rotation stopped")
	}
}

// advance tries each item once, starting after the current one.
func (r *Rotation) advance() error {
	for range r.items {
		r.index = (r.index + 1) % len(r.items)
		item := r.items[r.index]
		if err := r.sess.Assign(item); err != nil {
			r.stats.AssignFailure++
			r.logger.Warn().Err(err).
				Int("index", r.index).
				Str(log.FieldURI, item.URI).
				Msg("skipping item")
			continue
		}
		r.stats.Assigned++
		r.logger.Info().
			Int("index", r.index).
			Str(log.FieldURI, item.URI).
			Str("location", item.Location).
			Msg("next item")
		if r.OnAdvance != nil {
			r.OnAdvance(r.index, item)
		}
		return nil
	}
	return fmt.Errorf("%w (%d items)", ErrNoPlayableItem, len(r.items))
}
