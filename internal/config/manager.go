// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/media"
	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ReloadDebounce coalesces bursts of file events into one reload.
const ReloadDebounce = 500 * time.Millisecond

// Manager holds the current policy with atomic reloading and persists the
// playback speed back to the config file.
type Manager struct {
	mu       sync.RWMutex
	current  Loaded
	loader   *Loader
	logger   zerolog.Logger
	writeMu  sync.Mutex
	watcher  *fsnotify.Watcher
	stopOnce sync.Once

	listenersMu sync.RWMutex
	listeners   []chan<- Policy
}

// NewManager performs the initial load.
func NewManager(loader *Loader) (*Manager, error) {
	loaded, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return &Manager{
		current: loaded,
		loader:  loader,
		logger:  log.WithComponent("config"),
	}, nil
}

// Snapshot returns a copy of the current policy.
func (m *Manager) Snapshot() Policy {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Policy.Clone()
}

// Playlist returns a copy of the configured playlist.
func (m *Manager) Playlist() []media.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.current.Playlist)
}

// SavePlaybackSpeed stores a new speed in memory and, if a config file is
// configured, rewrites playback.playback_speed in place. Comments and the
// order of other keys survive the rewrite.
func (m *Manager) SavePlaybackSpeed(speed float64) error {
	m.mu.Lock()
	next := m.current.Policy.Clone()
	next.PlaybackSpeed = speed
	if err := Validate(next); err != nil {
		m.mu.Unlock()
		return err
	}
	m.current.Policy = next
	m.mu.Unlock()

	if path := m.loader.Path(); path != "" {
		if err := m.persistSpeed(path, speed); err != nil {
			return fmt.Errorf("persist playback speed: %w", err)
		}
	}

	m.logger.Info().
		Str(log.FieldEvent, "config.speed_saved").
		Float64(log.FieldSpeed, speed).
		Msg("playback speed saved")
	m.notifyListeners(next)
	return nil
}

func (m *Manager) persistSpeed(path string, speed float64) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read file: %w", err)
	}

	out, err := setPlaybackSpeed(data, speed)
	if err != nil {
		return err
	}
	return writeAtomic(path, out)
}

// setPlaybackSpeed edits the YAML tree instead of re-encoding FileConfig.
func setPlaybackSpeed(data []byte, speed float64) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("config root is not a mapping")
	}

	playback := mappingValue(doc.Content[0], "playback")
	if playback == nil {
		playback = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		appendPair(doc.Content[0], "playback", playback)
	}
	if playback.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("playback is not a mapping")
	}

	value := strconv.FormatFloat(speed, 'f', -1, 64)
	if node := mappingValue(playback, "playback_speed"); node != nil {
		node.Kind = yaml.ScalarNode
		node.Tag = ""
		node.Style = 0
		node.Value = value
	} else {
		appendPair(playback, "playback_speed", &yaml.Node{Kind: yaml.ScalarNode, Value: value})
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return out, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func appendPair(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, value)
}

// writeAtomic writes data with full durability guarantees using renameio.
func writeAtomic(path string, data []byte) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o600), renameio.WithExistingPermissions())
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("write pending file: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// Reload reloads configuration from file and validates it.
// If validation fails, the old configuration is kept and an error is returned.
func (m *Manager) Reload(_ context.Context) error {
	m.logger.Info().Str(log.FieldEvent, "config.reload_start").Msg("reloading configuration")

	loaded, err := m.loader.Load()
	if err != nil {
		m.logger.Error().
			Err(err).
			Str(log.FieldEvent, "config.reload_failed").
			Msg("failed to load new configuration")
		return fmt.Errorf("reload config: %w", err)
	}

	m.mu.Lock()
	old := m.current.Policy
	m.current = loaded
	m.mu.Unlock()

	m.logChanges(old, loaded.Policy)
	m.notifyListeners(loaded.Policy.Clone())

	m.logger.Info().
		Str(log.FieldEvent, "config.reload_success").
		Msg("configuration reloaded successfully")
	return nil
}

// Watch starts watching the config file for changes until ctx is done or
// Stop is called. Without a config file this is a no-op.
func (m *Manager) Watch(ctx context.Context) error {
	path := m.loader.Path()
	if path == "" {
		m.logger.Info().
			Str(log.FieldEvent, "config.watcher_disabled").
			Msg("config file watcher disabled (using ENV-only configuration)")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Atomic replacement swaps the inode, so the directory is watched.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}
	m.watcher = watcher

	m.logger.Info().
		Str(log.FieldEvent, "config.watcher_started").
		Str(log.FieldPath, path).
		Msg("watching config file for changes")

	go m.watchLoop(ctx, watcher, filepath.Clean(path))
	return nil
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Str(log.FieldEvent, "config.watcher_stopped").Msg("config watcher stopped")
			m.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			m.logger.Debug().
				Str(log.FieldEvent, "config.file_changed").
				Str("op", event.Op.String()).
				Msg("config file changed")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(ReloadDebounce, func() {
				if err := m.Reload(ctx); err != nil {
					m.logger.Error().
						Err(err).
						Str(log.FieldEvent, "config.auto_reload_failed").
						Msg("automatic config reload failed")
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.logger.Error().
				Err(err).
				Str(log.FieldEvent, "config.watcher_error").
				Msg("config watcher error")
		}
	}
}

// Stop stops the config watcher (if running).
func (m *Manager) Stop() {
	if m.watcher == nil {
		return
	}
	m.stopOnce.Do(func() {
		_ = m.watcher.Close()
	})
}

// RegisterListener registers a channel to receive the new policy whenever a
// reload or speed save succeeds. Sends never block; the caller owns the channel.
func (m *Manager) RegisterListener(ch chan<- Policy) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.listeners = append(m.listeners, ch)
}

func (m *Manager) notifyListeners(p Policy) {
	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	for _, ch := range m.listeners {
		select {
		case ch <- p.Clone():
		default:
			m.logger.Warn().
				Str(log.FieldEvent, "config.listener_blocked").
				Msg("config listener channel full, skipping notification")
		}
	}
}

func (m *Manager) logChanges(old, next Policy) {
	ev := m.logger.Info().Str(log.FieldEvent, "config.changed")
	changed := false
	if old.MaxVideoLength != next.MaxVideoLength {
		ev = ev.Int("max_video_length", next.MaxVideoLength)
		changed = true
	}
	if old.LoopShortVideos != next.LoopShortVideos {
		ev = ev.Bool("loop_short_videos", next.LoopShortVideos)
		changed = true
	}
	if old.LimitLongerVideos != next.LimitLongerVideos {
		ev = ev.Str("limit_longer_videos", string(next.LimitLongerVideos))
		changed = true
	}
	if old.PlaybackSpeed != next.PlaybackSpeed {
		ev = ev.Float64("playback_speed", next.PlaybackSpeed)
		changed = true
	}
	if old.MediaFadeOutDuration != next.MediaFadeOutDuration {
		ev = ev.Int("media_fade_out_ms", next.MediaFadeOutDuration)
		changed = true
	}
	if old.RefreshRateSwitching != next.RefreshRateSwitching {
		ev = ev.Bool("refresh_rate_switching", next.RefreshRateSwitching)
		changed = true
	}
	if !slices.Equal(old.SpeedValues, next.SpeedValues) {
		ev = ev.Floats64("speed_values", next.SpeedValues)
		changed = true
	}
	if !changed {
		ev.Discard()
		return
	}
	ev.Msg("configuration values changed")
}
