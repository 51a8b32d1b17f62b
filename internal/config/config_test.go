// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/schedule"
	"github.com/ManuGH/aerial/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aerial.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	loaded, err := NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPolicy(), loaded.Policy)
	assert.Empty(t, loaded.Playlist)
	assert.Equal(t, 800, loaded.Policy.MediaFadeOutDuration)
	assert.Equal(t, schedule.LimitLimit, loaded.Policy.LimitLongerVideos)
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
playback:
  max_video_length: 60
  loop_short_videos: true
  limit_longer_videos: Segment
  playback_speed: 1.5
  media_fade_out_ms: 500
  refresh_rate_switching: true
playlist:
  - uri: file:///videos/a.mov
    source: local
    location: Hong Kong
    duration_ms: 90000
  - uri: https://cdn.example.com/b.mp4
    source: http
`)

	loaded, err := NewLoader(path).Load()
	require.NoError(t, err)

	p := loaded.Policy
	assert.Equal(t, 60, p.MaxVideoLength)
	assert.Equal(t, int64(60_000), p.MaxLengthMs())
	assert.True(t, p.LoopShortVideos)
	assert.Equal(t, schedule.LimitSegment, p.LimitLongerVideos)
	assert.True(t, p.SegmentsEnabled())
	assert.InDelta(t, 1.5, p.PlaybackSpeed, 0)
	assert.Equal(t, 500, p.MediaFadeOutDuration)
	assert.True(t, p.RefreshRateSwitching)

	require.Len(t, loaded.Playlist, 2)
	assert.Equal(t, media.SourceLocal, loaded.Playlist[0].Source)
	assert.Equal(t, int64(90_000), loaded.Playlist[0].DurationHintMs)
	assert.Equal(t, "Hong Kong", loaded.Playlist[0].Location)
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	path := writeConfig(t, "playback:\n  max_length: 60\n")

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownConfigField))
}

func TestLoad_MultipleDocumentsRejected(t *testing.T) {
	path := writeConfig(t, "playback:\n  max_video_length: 60\n---\nplayback: {}\n")

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aerial.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config format")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "playback:\n  max_video_length: 60\n  playback_speed: 1.5\n")

	t.Setenv(EnvMaxVideoLength, "120")
	t.Setenv(EnvLoopShortVideos, "yes")
	t.Setenv(EnvLimitLongerVideos, "ignore")
	t.Setenv(EnvPlaybackSpeed, "0.75")
	t.Setenv(EnvFadeOutMs, "0")
	t.Setenv(EnvRefreshRateSwitching, "1")

	l := NewLoader(path)
	loaded, err := l.Load()
	require.NoError(t, err)

	p := loaded.Policy
	assert.Equal(t, 120, p.MaxVideoLength)
	assert.True(t, p.LoopShortVideos)
	assert.Equal(t, schedule.LimitIgnore, p.LimitLongerVideos)
	assert.InDelta(t, 0.75, p.PlaybackSpeed, 0)
	assert.Equal(t, 0, p.MediaFadeOutDuration)
	assert.True(t, p.RefreshRateSwitching)

	for _, key := range []string{EnvMaxVideoLength, EnvLoopShortVideos, EnvLimitLongerVideos, EnvPlaybackSpeed, EnvFadeOutMs, EnvRefreshRateSwitching} {
		assert.Contains(t, l.ConsumedEnvKeys, key)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv(EnvMaxVideoLength, "abc")
	t.Setenv(EnvLoopShortVideos, "maybe")

	loaded, err := NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Policy.MaxVideoLength)
	assert.False(t, loaded.Policy.LoopShortVideos)
}

func TestLoad_InvalidLimitMode(t *testing.T) {
	t.Setenv(EnvLimitLongerVideos, "truncate")

	_, err := NewLoader("").Load()
	require.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestLoad_InvalidPlaylist(t *testing.T) {
	path := writeConfig(t, "playlist:\n  - uri: \"\"\n    source: ftp\n")

	_, err := NewLoader(path).Load()
	require.Error(t, err)

	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors(), 2)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
		fields []string
	}{
		{name: "defaults"},
		{name: "negative max length", mutate: func(p *Policy) { p.MaxVideoLength = -1 }, fields: []string{"playback.max_video_length"}},
		{name: "speed not on ladder", mutate: func(p *Policy) { p.PlaybackSpeed = 1.1 }, fields: []string{"playback.playback_speed"}},
		{name: "ladder not ascending", mutate: func(p *Policy) {
			p.SpeedValues = []float64{1, 0.5}
			p.PlaybackSpeed = 1
		}, fields: []string{"playback.speed_values"}},
		{name: "fade too long", mutate: func(p *Policy) { p.MediaFadeOutDuration = 120_000 }, fields: []string{"playback.media_fade_out_ms"}},
		{name: "unknown limit", mutate: func(p *Policy) { p.LimitLongerVideos = "trim" }, fields: []string{"playback.limit_longer_videos"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			err := Validate(p)
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidPolicy)

			var verr validate.ValidationError
			require.ErrorAs(t, err, &verr)
			var got []string
			for _, e := range verr.Errors() {
				got = append(got, e.Field)
			}
			assert.Equal(t, tt.fields, got)
		})
	}
}

func TestStepSpeed(t *testing.T) {
	p := DefaultPolicy()

	next, ok := p.StepSpeed(1, true)
	assert.True(t, ok)
	assert.InDelta(t, 1.25, next, 0)

	next, ok = p.StepSpeed(1, false)
	assert.True(t, ok)
	assert.InDelta(t, 0.75, next, 0)

	_, ok = p.StepSpeed(2, true)
	assert.False(t, ok, "top of ladder")

	_, ok = p.StepSpeed(0.25, false)
	assert.False(t, ok, "bottom of ladder")

	next, ok = p.StepSpeed(1.1, true)
	assert.True(t, ok, "off-ladder value steps from nearest rung")
	assert.InDelta(t, 1.25, next, 0)
}

func TestPolicyCloneIsDeep(t *testing.T) {
	p := DefaultPolicy()
	c := p.Clone()
	c.SpeedValues[0] = 9
	assert.InDelta(t, 0.25, p.SpeedValues[0], 0)
}

func TestRulesProjection(t *testing.T) {
	p := DefaultPolicy()
	p.MaxVideoLength = 30
	p.LoopShortVideos = true

	assert.Equal(t, schedule.Rules{
		MaxLengthMs:     30_000,
		LoopShortVideos: true,
		Limit:           schedule.LimitLimit,
		FadeOutMs:       800,
	}, p.Rules())
}

func TestManager_SavePlaybackSpeedPreservesFile(t *testing.T) {
	path := writeConfig(t, `# aerial settings
playback:
  # seconds
  max_video_length: 60
  playback_speed: 1
`)
	m, err := NewManager(NewLoader(path))
	require.NoError(t, err)

	require.NoError(t, m.SavePlaybackSpeed(1.75))
	assert.InDelta(t, 1.75, m.Snapshot().PlaybackSpeed, 0)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# aerial settings")
	assert.Contains(t, string(data), "# seconds")
	assert.Contains(t, string(data), "playback_speed: 1.75")

	reloaded, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.InDelta(t, 1.75, reloaded.Policy.PlaybackSpeed, 0)
	assert.Equal(t, 60, reloaded.Policy.MaxVideoLength)
}

func TestManager_SavePlaybackSpeedAddsMissingKey(t *testing.T) {
	path := writeConfig(t, "playlist: []\n")
	m, err := NewManager(NewLoader(path))
	require.NoError(t, err)

	require.NoError(t, m.SavePlaybackSpeed(0.5))

	reloaded, err := NewLoader(path).Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, reloaded.Policy.PlaybackSpeed, 0)
}

func TestManager_SavePlaybackSpeedRejectsOffLadder(t *testing.T) {
	m, err := NewManager(NewLoader(""))
	require.NoError(t, err)

	err = m.SavePlaybackSpeed(3)
	require.ErrorIs(t, err, ErrInvalidPolicy)
	assert.InDelta(t, 1, m.Snapshot().PlaybackSpeed, 0)
}

func TestManager_ReloadKeepsOldOnFailure(t *testing.T) {
	path := writeConfig(t, "playback:\n  max_video_length: 60\n")
	m, err := NewManager(NewLoader(path))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("playback:\n  bogus: 1\n"), 0o600))
	require.Error(t, m.Reload(context.Background()))
	assert.Equal(t, 60, m.Snapshot().MaxVideoLength)

	require.NoError(t, os.WriteFile(path, []byte("playback:\n  max_video_length: 90\n"), 0o600))
	require.NoError(t, m.Reload(context.Background()))
	assert.Equal(t, 90, m.Snapshot().MaxVideoLength)
}

func TestManager_ListenerNotified(t *testing.T) {
	m, err := NewManager(NewLoader(""))
	require.NoError(t, err)

	ch := make(chan Policy, 1)
	m.RegisterListener(ch)

	require.NoError(t, m.SavePlaybackSpeed(1.25))
	select {
	case p := <-ch:
		assert.InDelta(t, 1.25, p.PlaybackSpeed, 0)
	default:
		t.Fatal("listener not notified")
	}
}

func TestManager_WatchReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "playback:\n  max_video_length: 60\n")
	m, err := NewManager(NewLoader(path))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan Policy, 4)
	m.RegisterListener(ch)
	require.NoError(t, m.Watch(ctx))
	defer m.Stop()

	require.NoError(t, os.WriteFile(path, []byte("playback:\n  max_video_length: 45\n"), 0o600))

	select {
	case p := <-ch:
		assert.Equal(t, 45, p.MaxVideoLength)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestManager_WatchWithoutFileIsNoop(t *testing.T) {
	m, err := NewManager(NewLoader(""))
	require.NoError(t, err)
	require.NoError(t, m.Watch(context.Background()))
	m.Stop()
}
