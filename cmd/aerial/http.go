// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ManuGH/aerial/internal/rotation"
	"github.com/ManuGH/aerial/internal/schedule"
	"github.com/ManuGH/aerial/internal/tasks"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type statusView struct {
	State      string                   `json:"state"`
	Index      int                      `json:"index"`
	ItemID     string                   `json:"item_id,omitempty"`
	URI        string                   `json:"uri,omitempty"`
	Source     string                   `json:"source,omitempty"`
	Location   string                   `json:"location,omitempty"`
	Speed      float64                  `json:"speed"`
	DurationMs int64                    `json:"duration_ms"`
	PositionMs int64                    `json:"position_ms"`
	LoopCount  int64                    `json:"loop_count"`
	Segment    schedule.SegmentDecision `json:"segment"`
	Plan       schedule.Plan            `json:"plan"`
	FinishInMs *int64                   `json:"finish_in_ms,omitempty"`
	Rotation   rotation.Stats           `json:"rotation"`
}

// controlRequestsPerMinute caps control commands per client address.
const controlRequestsPerMinute = 60

// controller is what the HTTP surface can do to a running simulation.
type controller interface {
	Status() (statusView, error)
	Play() error
	Pause() error
	ChangeSpeed(increase bool) error
	Next() error
}

func newRouter(ctl controller) http.Handler {
	r := chi.NewRouter()

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		st, err := ctl.Status()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	})

	r.Route("/control", func(r chi.Router) {
		r.Use(httprate.LimitByIP(controlRequestsPerMinute, time.Minute))
		r.Post("/play", command(ctl.Play))
		r.Post("/pause", command(ctl.Pause))
		r.Post("/next", command(ctl.Next))
		r.Post("/speed/{direction}", func(w http.ResponseWriter, req *http.Request) {
			var increase bool
			switch chi.URLParam(req, "direction") {
			case "increase":
				increase = true
			case "decrease":
			default:
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "direction must be increase or decrease"})
				return
			}
			command(func() error { return ctl.ChangeSpeed(increase) })(w, req)
		})
	})
	return r
}

func command(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if err := fn(); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tasks.ErrLoopClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, rotation.ErrNoPlayableItem), errors.Is(err, rotation.ErrEmptyPlaylist):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
