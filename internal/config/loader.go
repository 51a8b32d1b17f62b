// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/schedule"
	"gopkg.in/yaml.v3"
)

// Loaded is the result of one Load.
type Loaded struct {
	Policy   Policy
	Playlist []media.Item
}

// Loader reads configuration with precedence: ENV > File > Defaults.
type Loader struct {
	configPath string

	// ConsumedEnvKeys records every environment key the last Load looked at.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty path means defaults plus environment.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath:      configPath,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the configured file path.
func (l *Loader) Path() string { return l.configPath }

// Load parses the file strictly, applies the environment, then validates.
func (l *Loader) Load() (Loaded, error) {
	policy := DefaultPolicy()
	var playlist []media.Item

	if l.configPath != "" {
		fileCfg, err := loadFile(l.configPath)
		if err != nil {
			return Loaded{}, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFile(&policy, fileCfg.Playback); err != nil {
			return Loaded{}, err
		}
		playlist = make([]media.Item, 0, len(fileCfg.Playlist))
		for _, item := range fileCfg.Playlist {
			playlist = append(playlist, item.Normalized())
		}
	}

	if err := l.mergeEnv(&policy); err != nil {
		return Loaded{}, err
	}
	if err := Validate(policy); err != nil {
		return Loaded{}, err
	}
	if err := validatePlaylist(playlist); err != nil {
		return Loaded{}, err
	}
	return Loaded{Policy: policy, Playlist: playlist}, nil
}

// loadFile parses a YAML file with STRICT parsing.
// Unknown fields are rejected to prevent misconfiguration.
func loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return parseFile(data)
}

func parseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFile(p *Policy, f PlaybackFile) error {
	if f.MaxVideoLength != nil {
		p.MaxVideoLength = *f.MaxVideoLength
	}
	if f.LoopShortVideos != nil {
		p.LoopShortVideos = *f.LoopShortVideos
	}
	if f.LimitLongerVideos != nil {
		mode, err := ParseLimitMode(*f.LimitLongerVideos)
		if err != nil {
			return fmt.Errorf("%w: playback.limit_longer_videos: %w", ErrInvalidPolicy, err)
		}
		p.LimitLongerVideos = mode
	}
	if len(f.SpeedValues) > 0 {
		p.SpeedValues = append([]float64(nil), f.SpeedValues...)
	}
	if f.PlaybackSpeed != nil {
		p.PlaybackSpeed = *f.PlaybackSpeed
	}
	if f.MediaFadeOutDuration != nil {
		p.MediaFadeOutDuration = *f.MediaFadeOutDuration
	}
	if f.RefreshRateSwitching != nil {
		p.RefreshRateSwitching = *f.RefreshRateSwitching
	}
	return nil
}

func (l *Loader) mergeEnv(p *Policy) error {
	p.MaxVideoLength = l.envInt(EnvMaxVideoLength, p.MaxVideoLength)
	p.LoopShortVideos = l.envBool(EnvLoopShortVideos, p.LoopShortVideos)

	raw := l.envString(EnvLimitLongerVideos, string(p.LimitLongerVideos))
	mode, err := ParseLimitMode(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidPolicy, EnvLimitLongerVideos, err)
	}
	p.LimitLongerVideos = mode

	p.PlaybackSpeed = l.envFloat(EnvPlaybackSpeed, p.PlaybackSpeed)
	p.MediaFadeOutDuration = l.envInt(EnvFadeOutMs, p.MediaFadeOutDuration)
	p.RefreshRateSwitching = l.envBool(EnvRefreshRateSwitching, p.RefreshRateSwitching)
	return nil
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// ParseLimitMode accepts ignore, limit or segment, case-insensitively.
func ParseLimitMode(s string) (schedule.LimitMode, error) {
	switch mode := schedule.LimitMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case schedule.LimitIgnore, schedule.LimitLimit, schedule.LimitSegment:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown limit mode %q", s)
	}
}
