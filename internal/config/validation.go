// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/schedule"
	"github.com/ManuGH/aerial/internal/validate"
)

const (
	maxVideoLengthCeiling = 24 * 60 * 60
	maxFadeOutMs          = 60_000
	minSpeed              = 0.1
	maxSpeed              = 4.0
)

// Validate checks a policy. The returned error wraps ErrInvalidPolicy and
// the validate.ValidationError listing every failed field.
func Validate(p Policy) error {
	v := validate.New()

	v.Range("playback.max_video_length", p.MaxVideoLength, 0, maxVideoLengthCeiling)
	v.OneOf("playback.limit_longer_videos", string(p.LimitLongerVideos), []string{
		string(schedule.LimitIgnore), string(schedule.LimitLimit), string(schedule.LimitSegment),
	})
	v.Range("playback.media_fade_out_ms", p.MediaFadeOutDuration, 0, maxFadeOutMs)

	v.StrictlyAscending("playback.speed_values", p.SpeedValues)
	for _, s := range p.SpeedValues {
		v.FloatRange("playback.speed_values", s, minSpeed, maxSpeed)
	}
	v.Member("playback.playback_speed", p.PlaybackSpeed, p.SpeedValues)

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}
	return nil
}

func validatePlaylist(items []media.Item) error {
	v := validate.New()
	for i, it := range items {
		field := fmt.Sprintf("playlist[%d]", i)
		if it.URI == "" {
			v.AddError(field+".uri", "must not be empty", it.URI)
		}
		if _, err := media.ParseSourceTag(string(it.Source)); err != nil {
			v.AddError(field+".source", err.Error(), it.Source)
		}
		if it.DurationHintMs < 0 {
			v.AddError(field+".duration_ms", "must not be negative", it.DurationHintMs)
		}
	}
	if err := v.Err(); err != nil {
		return fmt.Errorf("invalid playlist: %w", err)
	}
	return nil
}
