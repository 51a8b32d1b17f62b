// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"slices"

	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/schedule"
)

// Policy is the read-only snapshot of user settings that governs playback.
type Policy struct {
	// MaxVideoLength in seconds. Values below 10 disable the limit.
	MaxVideoLength    int
	LoopShortVideos   bool
	LimitLongerVideos schedule.LimitMode
	// PlaybackSpeed must be one of SpeedValues.
	PlaybackSpeed float64
	SpeedValues   []float64
	// MediaFadeOutDuration in milliseconds.
	MediaFadeOutDuration int
	RefreshRateSwitching bool
}

// DefaultSpeedValues is the speed ladder used by increase/decrease.
var DefaultSpeedValues = []float64{0.25, 0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// DefaultPolicy returns the shipped defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxVideoLength:       0,
		LoopShortVideos:      false,
		LimitLongerVideos:    schedule.LimitLimit,
		PlaybackSpeed:        1,
		SpeedValues:          slices.Clone(DefaultSpeedValues),
		MediaFadeOutDuration: 800,
		RefreshRateSwitching: false,
	}
}

// Clone returns a deep copy.
func (p Policy) Clone() Policy {
	p.SpeedValues = slices.Clone(p.SpeedValues)
	return p
}

// MaxLengthMs converts MaxVideoLength to milliseconds.
func (p Policy) MaxLengthMs() int64 {
	return int64(p.MaxVideoLength) * 1000
}

// Rules projects the policy onto what the scheduler reads.
func (p Policy) Rules() schedule.Rules {
	return schedule.Rules{
		MaxLengthMs:     p.MaxLengthMs(),
		LoopShortVideos: p.LoopShortVideos,
		Limit:           p.LimitLongerVideos,
		FadeOutMs:       int64(p.MediaFadeOutDuration),
	}
}

// SegmentsEnabled reports whether long videos are played as random windows.
func (p Policy) SegmentsEnabled() bool {
	return p.LimitLongerVideos == schedule.LimitSegment
}

// StepSpeed returns the neighbouring ladder value of current. ok is false at
// either end of the ladder. A current value not on the ladder steps from the
// nearest rung.
func (p Policy) StepSpeed(current float64, increase bool) (next float64, ok bool) {
	ladder := p.SpeedValues
	if len(ladder) == 0 {
		return current, false
	}

	idx := slices.Index(ladder, current)
	if idx < 0 {
		idx = nearest(ladder, current)
	}

	if increase {
		if idx >= len(ladder)-1 {
			return current, false
		}
		return ladder[idx+1], true
	}
	if idx == 0 {
		return current, false
	}
	return ladder[idx-1], true
}

func nearest(ladder []float64, v float64) int {
	best := 0
	for i, rung := range ladder {
		if abs(rung-v) < abs(ladder[best]-v) {
			best = i
		}
	}
	return best
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// FileConfig is the on-disk YAML layout. Pointer fields distinguish
// "absent" from zero values.
type FileConfig struct {
	Playback PlaybackFile `yaml:"playback"`
	Playlist []media.Item `yaml:"playlist,omitempty"`
}

// PlaybackFile mirrors Policy for YAML.
type PlaybackFile struct {
	MaxVideoLength       *int      `yaml:"max_video_length,omitempty"`
	LoopShortVideos      *bool     `yaml:"loop_short_videos,omitempty"`
	LimitLongerVideos    *string   `yaml:"limit_longer_videos,omitempty"`
	PlaybackSpeed        *float64  `yaml:"playback_speed,omitempty"`
	SpeedValues          []float64 `yaml:"speed_values,omitempty"`
	MediaFadeOutDuration *int      `yaml:"media_fade_out_ms,omitempty"`
	RefreshRateSwitching *bool     `yaml:"refresh_rate_switching,omitempty"`
}
