// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"github.com/ManuGH/aerial/internal/config"
	"github.com/ManuGH/aerial/internal/schedule"
	"github.com/ManuGH/aerial/internal/session"
)

type planOutput struct {
	Policy struct {
		MaxLengthMs     int64   `json:"max_length_ms"`
		LoopShortVideos bool    `json:"loop_short_videos"`
		Limit           string  `json:"limit_longer_videos"`
		FadeOutMs       int64   `json:"fade_out_ms"`
		Speed           float64 `json:"speed"`
	} `json:"policy"`
	Segment schedule.SegmentDecision `json:"segment"`
	Plan    schedule.Plan            `json:"plan"`
}

// runPlan prints the scheduling decision for one video as JSON.
func runPlan(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aerial plan", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		envFile    string
		durationMs int64
		positionMs int64
		speed      float64
		loopCount  int64
		seed       uint64
	)
	fs.StringVar(&configPath, "config", "", "path to YAML configuration file")
	fs.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	fs.Int64Var(&durationMs, "duration-ms", 0, "video duration in milliseconds")
	fs.Int64Var(&positionMs, "position-ms", 0, "current position in milliseconds")
	fs.Float64Var(&speed, "speed", 0, "playback speed (default: policy playback_speed)")
	fs.Int64Var(&loopCount, "loop-count", 0, "completed repeat cycles")
	fs.Uint64Var(&seed, "seed", 0, "segment picker seed (0 picks a random seed)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	configureLogging("warn", stderr)

	if err := loadDotEnv(envFile); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	loaded, err := config.NewLoader(strings.TrimSpace(configPath)).Load()
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}
	policy := loaded.Policy
	if speed <= 0 {
		speed = policy.PlaybackSpeed
	}

	if seed == 0 {
		seed = rand.Uint64()
	}
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	var seg schedule.SegmentDecision
	if policy.SegmentsEnabled() {
		seg = schedule.DecideSegments(durationMs, policy.MaxLengthMs(), rnd)
		if seg.Segmented && !seg.Contains(positionMs, session.SegmentToleranceMs) {
			// The session seeks before planning.
			positionMs = seg.StartMs
		}
	}

	var out planOutput
	rules := policy.Rules()
	out.Policy.MaxLengthMs = rules.MaxLengthMs
	out.Policy.LoopShortVideos = rules.LoopShortVideos
	out.Policy.Limit = string(rules.Limit)
	out.Policy.FadeOutMs = rules.FadeOutMs
	out.Policy.Speed = speed
	out.Segment = seg
	out.Plan = schedule.Decide(schedule.Input{
		Rules:      rules,
		DurationMs: durationMs,
		PositionMs: positionMs,
		Speed:      speed,
		Segment:    seg,
		LoopCount:  loopCount,
	})

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
