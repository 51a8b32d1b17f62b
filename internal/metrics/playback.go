// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes Prometheus instrumentation for the playback core.
package metrics

import (
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const labelUnknown = "unknown"

var (
	finishPlanTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerial_finish_plan_total",
		Help: "Almost-finished plans by decision branch and whether a timer was armed",
	}, []string{"branch", "armed"})

	finishDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "aerial_finish_delay_seconds",
		Help:    "Delay until the almost-finished notification for armed plans",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	almostFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerial_almost_finished_total",
		Help: "Almost-finished notifications delivered by trigger (timer, ended)",
	}, []string{"trigger"})

	playerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerial_player_errors_total",
		Help: "Player errors by source and whether they were reported or absorbed",
	}, []string{"source", "outcome"})

	speedChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerial_speed_changes_total",
		Help: "Speed change requests by direction and outcome",
	}, []string{"direction", "outcome"})

	segmentDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerial_segment_decisions_total",
		Help: "Segment decisions by outcome",
	}, []string{"segmented"})

	segmentSeeksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aerial_segment_seeks_total",
		Help: "Seeks issued to move playback into the chosen segment",
	})

	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerial_session_transitions_total",
		Help: "Playback session state transitions",
	}, []string{"from", "to"})

	streamOpensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aerial_stream_opens_total",
		Help: "Byte stream opens by source and result",
	}, []string{"source", "result"})
)

// RecordFinishPlan records one scheduling decision.
func RecordFinishPlan(branch string, armed bool, delayMs int64) {
	finishPlanTotal.WithLabelValues(normalizeBranchLabel(branch), strconv.FormatBool(armed)).Inc()
	if armed {
		finishDelaySeconds.Observe(float64(delayMs) / 1000)
	}
}

// RecordAlmostFinished records a delivered notification.
func RecordAlmostFinished(trigger string) {
	almostFinishedTotal.WithLabelValues(normalize(trigger, "timer", "ended")).Inc()
}

// RecordPlayerError records a player error. reported is false when the
// error was absorbed as a duplicate for the same item.
func RecordPlayerError(source string, reported bool) {
	outcome := "absorbed"
	if reported {
		outcome = "reported"
	}
	playerErrorsTotal.WithLabelValues(normalizeSourceLabel(source), outcome).Inc()
}

// RecordSpeedChange records a speed request. outcome is one of
// applied, at_limit, gated or rejected.
func RecordSpeedChange(increase bool, outcome string) {
	direction := "decrease"
	if increase {
		direction = "increase"
	}
	speedChangesTotal.WithLabelValues(direction, normalize(outcome, "applied", "at_limit", "gated", "rejected")).Inc()
}

// RecordSegmentDecision records whether an item was split into segments.
func RecordSegmentDecision(segmented bool) {
	segmentDecisionsTotal.WithLabelValues(strconv.FormatBool(segmented)).Inc()
}

// RecordSegmentSeek records a seek into the chosen window.
func RecordSegmentSeek() {
	segmentSeeksTotal.Inc()
}

// RecordStateTransition records one session state change.
func RecordStateTransition(from, to string) {
	stateTransitionsTotal.WithLabelValues(normalizeStateLabel(from), normalizeStateLabel(to)).Inc()
}

// RecordStreamOpen records a byte stream open attempt.
func RecordStreamOpen(source string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	streamOpensTotal.WithLabelValues(normalizeSourceLabel(source), result).Inc()
}

func normalize(v string, allowed ...string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return labelUnknown
}

func normalizeBranchLabel(branch string) string {
	switch b := strings.ToUpper(strings.TrimSpace(branch)); b {
	case "DURATION_UNKNOWN_DEFER", "LIMIT_DISABLED_FULL", "SEGMENT_WINDOW", "SHORT_VIDEO_LOOP", "LONG_VIDEO_CAPPED", "LONG_VIDEO_FULL":
		return b
	default:
		return labelUnknown
	}
}

func normalizeSourceLabel(source string) string {
	return normalize(source, "local", "smb", "webdav", "immich", "http")
}

func normalizeStateLabel(state string) string {
	return normalize(state, "idle", "preparing", "seeking", "ready", "playing", "almost_finished", "ended", "error", "released")
}
