// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/aerial/internal/config"
	xglog "github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/schedule"
	"github.com/ManuGH/aerial/internal/session"
	"github.com/ManuGH/aerial/internal/sim"
	"github.com/ManuGH/aerial/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_Version(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"version"}, &out, &errOut)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), version)
}

func TestRun_UnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(context.Background(), []string{"bogus"}, &out, &errOut)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut.String(), "Unknown command")
}

func decodePlan(t *testing.T, data []byte) planOutput {
	t.Helper()
	var out planOutput
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestRunPlan_UnlimitedWithEnvFade(t *testing.T) {
	t.Setenv(config.EnvFadeOutMs, "500")

	var out, errOut bytes.Buffer
	code := runPlan([]string{"--env-file", "", "--duration-ms", "120000"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	got := decodePlan(t, out.Bytes())
	assert.Equal(t, schedule.BranchUnlimited, got.Plan.Branch)
	assert.Equal(t, int64(119_500), got.Plan.DelayMs)
	assert.False(t, got.Segment.Segmented)
}

func TestRunPlan_SpeedChangeScenario(t *testing.T) {
	t.Setenv(config.EnvFadeOutMs, "0")

	var out, errOut bytes.Buffer
	code := runPlan([]string{"--env-file", "", "--duration-ms", "60000", "--position-ms", "10000", "--speed", "2"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())
	assert.Equal(t, int64(25_000), decodePlan(t, out.Bytes()).Plan.DelayMs)
}

func TestRunPlan_SegmentFromConfig(t *testing.T) {
	path := writeFile(t, "aerial.yaml", "playback:\n  max_video_length: 20\n  limit_longer_videos: segment\n")

	var out, errOut bytes.Buffer
	code := runPlan([]string{"--env-file", "", "--config", path, "--duration-ms", "90000", "--seed", "42"}, &out, &errOut)
	require.Equal(t, 0, code, errOut.String())

	got := decodePlan(t, out.Bytes())
	require.True(t, got.Segment.Segmented)
	assert.Equal(t, int64(4), got.Segment.Segments)
	assert.Equal(t, int64(22_500), got.Segment.EndMs-got.Segment.StartMs)
	assert.Equal(t, schedule.BranchSegment, got.Plan.Branch)
	assert.Equal(t, int64(21_700), got.Plan.DelayMs)
}

func TestRunPlan_InvalidConfig(t *testing.T) {
	path := writeFile(t, "aerial.yaml", "playback:\n  unknown_key: 1\n")

	var out, errOut bytes.Buffer
	code := runPlan([]string{"--env-file", "", "--config", path, "--duration-ms", "1000"}, &out, &errOut)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut.String(), "Configuration error")
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv(config.EnvMaxVideoLength, "")
	require.NoError(t, os.Unsetenv(config.EnvMaxVideoLength))

	path := writeFile(t, ".env", config.EnvMaxVideoLength+"=42\n")
	require.NoError(t, loadDotEnv(path))

	loaded, err := config.NewLoader("").Load()
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Policy.MaxVideoLength)
}

func TestLoadDotEnv_MissingFileIsFine(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, loadDotEnv(""))
}

type fakeController struct {
	status    statusView
	err       error
	calls     []string
	increases []bool
}

func (f *fakeController) Status() (statusView, error) { return f.status, f.err }
func (f *fakeController) Play() error                 { f.calls = append(f.calls, "play"); return f.err }
func (f *fakeController) Pause() error                { f.calls = append(f.calls, "pause"); return f.err }
func (f *fakeController) Next() error                 { f.calls = append(f.calls, "next"); return f.err }
func (f *fakeController) ChangeSpeed(increase bool) error {
	f.increases = append(f.increases, increase)
	return f.err
}

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouter_HealthAndStatus(t *testing.T) {
	ctl := &fakeController{status: statusView{State: "playing", URI: "file:///a.mov", Speed: 1.5}}
	h := newRouter(ctl)

	rec := serve(t, h, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, h, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var got statusView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "playing", got.State)
	assert.InDelta(t, 1.5, got.Speed, 0)

	rec = serve(t, h, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "aerial_segment_seeks_total")
}

func TestRouter_Commands(t *testing.T) {
	ctl := &fakeController{}
	h := newRouter(ctl)

	for _, path := range []string{"/control/play", "/control/pause", "/control/next"} {
		assert.Equal(t, http.StatusAccepted, serve(t, h, http.MethodPost, path).Code, path)
	}
	assert.Equal(t, []string{"play", "pause", "next"}, ctl.calls)

	assert.Equal(t, http.StatusAccepted, serve(t, h, http.MethodPost, "/control/speed/increase").Code)
	assert.Equal(t, http.StatusAccepted, serve(t, h, http.MethodPost, "/control/speed/decrease").Code)
	assert.Equal(t, http.StatusNotFound, serve(t, h, http.MethodPost, "/control/speed/sideways").Code)
	assert.Equal(t, []bool{true, false}, ctl.increases)

	assert.Equal(t, http.StatusMethodNotAllowed, serve(t, h, http.MethodGet, "/control/play").Code)
}

func TestRouter_ControlIsRateLimited(t *testing.T) {
	ctl := &fakeController{}
	h := newRouter(ctl)

	for i := 0; i < controlRequestsPerMinute; i++ {
		require.Equal(t, http.StatusAccepted, serve(t, h, http.MethodPost, "/control/pause").Code, i)
	}
	assert.Equal(t, http.StatusTooManyRequests, serve(t, h, http.MethodPost, "/control/pause").Code)
	assert.Len(t, ctl.calls, controlRequestsPerMinute)

	assert.Equal(t, http.StatusOK, serve(t, h, http.MethodGet, "/status").Code)
}

func TestRouter_ErrorMapping(t *testing.T) {
	ctl := &fakeController{err: tasks.ErrLoopClosed}
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, newRouter(ctl), http.MethodGet, "/status").Code)

	ctl.err = errors.New("boom")
	assert.Equal(t, http.StatusInternalServerError, serve(t, newRouter(ctl), http.MethodPost, "/control/play").Code)
}

func TestRuntime_RotatesOnRealLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mgr, err := config.NewManager(config.NewLoader(""))
	require.NoError(t, err)

	loop := tasks.NewLoop(64)
	defer loop.Close()
	sched := sim.NewScaled(loop, 1000)

	playlist := []media.Item{
		{URI: "file:///a.mov", Source: media.SourceLocal, DurationHintMs: 10_000},
		{URI: "file:///b.mov", Source: media.SourceLocal, DurationHintMs: 10_000},
	}
	rt, err := startRuntime(loop, sched, mgr, playlist, true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		st, err := rt.Status()
		return err == nil && st.Rotation.Finished >= 2
	}, 5*time.Second, 5*time.Millisecond)

	st, err := rt.Status()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, st.Rotation.Assigned, 3)
	assert.Zero(t, st.Rotation.Errors)

	rt.release()
	st, err = rt.Status()
	require.NoError(t, err)
	assert.Equal(t, string(session.StateReleased), st.State)
}

func TestRunSimulate_RunsForDuration(t *testing.T) {
	path := writeFile(t, "aerial.yaml", `playback:
  max_video_length: 20
  loop_short_videos: true
playlist:
  - uri: file:///a.mov
    source: local
    duration_ms: 5000
  - uri: https://cdn.example.com/b.mp4
    source: http
    duration_ms: 60000
`)
	var errOut bytes.Buffer
	code := runSimulate(context.Background(), []string{
		"--config", path, "--env-file", "", "--listen", "", "--scale", "1000", "--for", "200ms", "--skip-open", "--log-level", "warn",
	}, &errOut)
	assert.Equal(t, 0, code, errOut.String())
}

func TestRunSimulate_EmptyPlaylist(t *testing.T) {
	path := writeFile(t, "aerial.yaml", "playback: {}\n")
	var errOut bytes.Buffer
	code := runSimulate(context.Background(), []string{"--config", path, "--env-file", "", "--listen", ""}, &errOut)
	assert.Equal(t, 1, code)
}

// lockedBuffer is written from more than one goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func TestLogPolicyUpdates_ReportsSavedSpeed(t *testing.T) {
	buf := &lockedBuffer{}
	xglog.Reset()
	xglog.Configure(xglog.Config{Level: "info", Output: buf})
	t.Cleanup(xglog.Reset)

	path := writeFile(t, "aerial.yaml", "playback:\n  playback_speed: 1\n")
	mgr, err := config.NewManager(config.NewLoader(path))
	require.NoError(t, err)
	updates := make(chan config.Policy, 1)
	mgr.RegisterListener(updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		logPolicyUpdates(ctx, updates, path)
	}()

	require.NoError(t, mgr.SavePlaybackSpeed(1.5))
	require.Eventually(t, func() bool { return len(updates) == 0 }, time.Second, time.Millisecond)
	cancel()
	<-done

	var applied map[string]any
	for _, line := range buf.Lines() {
		var entry map[string]any
		if json.Unmarshal([]byte(line), &entry) == nil && entry[xglog.FieldEvent] == "config.applied" {
			applied = entry
		}
	}
	require.NotNil(t, applied, "no config.applied entry in %v", buf.Lines())
	assert.Equal(t, path, applied["path"])
	assert.InDelta(t, 1.5, applied[xglog.FieldSpeed], 0)
}
