// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuGH/aerial/internal/config"
	xglog "github.com/ManuGH/aerial/internal/log"
	"github.com/ManuGH/aerial/internal/media"
	"github.com/ManuGH/aerial/internal/rotation"
	"github.com/ManuGH/aerial/internal/session"
	"github.com/ManuGH/aerial/internal/sim"
	"github.com/ManuGH/aerial/internal/source"
	"github.com/ManuGH/aerial/internal/tasks"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type simulateOptions struct {
	configPath string
	envFile    string
	listen     string
	logLevel   string
	scale      float64
	runFor     time.Duration
	skipOpen   bool
}

func runSimulate(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("aerial simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts simulateOptions
	fs.StringVar(&opts.configPath, "config", "", "path to YAML configuration file (or "+config.EnvConfigFile+")")
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	fs.StringVar(&opts.listen, "listen", ":9090", "status/metrics listen address (empty disables)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level")
	fs.Float64Var(&opts.scale, "scale", 1, "time compression factor")
	fs.DurationVar(&opts.runFor, "for", 0, "stop after this much wall time (0 runs until interrupted)")
	fs.BoolVar(&opts.skipOpen, "skip-open", false, "do not probe item streams")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	configureLogging(opts.logLevel, stderr)
	logger := xglog.WithComponent("cli")

	if err := loadDotEnv(opts.envFile); err != nil {
		logger.Error().Err(err).Msg("failed to load env file")
		return 1
	}
	if opts.configPath == "" {
		opts.configPath = config.ParseString(config.EnvConfigFile, "")
	}

	if err := simulate(ctx, opts, logger); err != nil {
		logger.Error().Err(err).Msg("simulation failed")
		return 1
	}
	return 0
}

func simulate(ctx context.Context, opts simulateOptions, logger zerolog.Logger) error {
	mgr, err := config.NewManager(config.NewLoader(strings.TrimSpace(opts.configPath)))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	playlist := mgr.Playlist()
	if len(playlist) == 0 {
		return fmt.Errorf("%w: add items under playlist: in the config file", rotation.ErrEmptyPlaylist)
	}

	loop := tasks.NewLoop(256)
	defer loop.Close()
	sched := sim.NewScaled(loop, opts.scale)

	rt, err := startRuntime(loop, sched, mgr, playlist, opts.skipOpen)
	if err != nil {
		return err
	}
	defer rt.release()

	if opts.runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.runFor)
		defer cancel()
	}
	g, ctx := errgroup.WithContext(ctx)

	// Best-effort: the simulation runs without live reload.
	if err := mgr.Watch(ctx); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
	}
	defer mgr.Stop()

	if opts.listen != "" {
		srv := &http.Server{
			Addr:              opts.listen,
			Handler:           newRouter(rt),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info().Str("addr", opts.listen).Msg("status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	updates := make(chan config.Policy, 4)
	mgr.RegisterListener(updates)
	g.Go(func() error {
		logPolicyUpdates(ctx, updates, opts.configPath)
		return nil
	})

	logger.Info().
		Int("items", len(playlist)).
		Float64("scale", sched.Factor()).
		Msg("simulation started")
	err = g.Wait()

	if st, serr := rt.Status(); serr == nil {
		logger.Info().
			Int("assigned", st.Rotation.Assigned).
			Int("finished", st.Rotation.Finished).
			Int("errors", st.Rotation.Errors).
			Msg("simulation stopped")
	}
	return err
}

// logPolicyUpdates reports reloaded or saved policies until ctx ends. The
// session picks them up on its next Assign.
func logPolicyUpdates(ctx context.Context, updates <-chan config.Policy, configPath string) {
	logger := xglog.Derive(func(c *zerolog.Context) {
		*c = c.Str(xglog.FieldComponent, "config").Str("path", configPath)
	})
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-updates:
			logger.Info().
				Str(xglog.FieldEvent, "config.applied").
				Int("max_video_length", p.MaxVideoLength).
				Str("limit_longer_videos", string(p.LimitLongerVideos)).
				Float64(xglog.FieldSpeed, p.PlaybackSpeed).
				Msg("policy update applies from the next item")
		}
	}
}

// runtime owns the session objects. Every access goes through the loop.
type runtime struct {
	loop   *tasks.Loop
	sched  tasks.Scheduler
	player *sim.Player
	sess   *session.Session
	rot    *rotation.Rotation
}

func startRuntime(loop *tasks.Loop, sched tasks.Scheduler, mgr *config.Manager, playlist []media.Item, skipOpen bool) (*runtime, error) {
	rt := &runtime{loop: loop, sched: sched}
	streams := source.NewDefaultRegistry(source.NewLocalFactory(), source.NewHTTPFactory())

	var startErr error
	err := loop.Do(func() {
		rt.player = sim.New(sched, sim.Options{SkipOpen: skipOpen})
		rt.sess = session.New(rt.player, streams, sched, mgr,
			session.WithSpeedStore(mgr),
			session.WithRefreshRateSwitcher(logSwitcher{logger: xglog.WithComponent("display")}),
		)
		rt.rot = rotation.New(rt.sess, playlist)
		rt.sess.SetListener(rt.rot)
		startErr = rt.rot.Start()
	})
	if err != nil {
		return nil, err
	}
	if startErr != nil {
		rt.release()
		return nil, startErr
	}
	return rt, nil
}

func (rt *runtime) release() {
	_ = rt.loop.Do(rt.sess.Release)
}

func (rt *runtime) Status() (statusView, error) {
	var st statusView
	err := rt.loop.Do(func() {
		v := rt.sess.Video()
		idx, _ := rt.rot.Current()
		st = statusView{
			State:      string(rt.sess.State()),
			Index:      idx,
			ItemID:     v.ItemID,
			URI:        v.Item.URI,
			Source:     string(v.Item.Source),
			Location:   v.Item.Location,
			Speed:      rt.sess.Speed(),
			DurationMs: v.DurationMs,
			LoopCount:  v.LoopCount,
			Segment:    v.Segment,
			Plan:       v.LastPlan,
			Rotation:   rt.rot.Stats(),
		}
		st.PositionMs = rt.player.PositionMs()
		if deadline, ok := rt.sess.FinishDeadline(); ok {
			ms := deadline.Sub(rt.sched.Now()).Milliseconds()
			st.FinishInMs = &ms
		}
	})
	return st, err
}

func (rt *runtime) Play() error  { return rt.loop.Do(rt.sess.Play) }
func (rt *runtime) Pause() error { return rt.loop.Do(rt.sess.Pause) }

func (rt *runtime) ChangeSpeed(increase bool) error {
	return rt.loop.Do(func() {
		if increase {
			rt.sess.IncreaseSpeed()
		} else {
			rt.sess.DecreaseSpeed()
		}
	})
}

func (rt *runtime) Next() error {
	var nextErr error
	if err := rt.loop.Do(func() { nextErr = rt.rot.Next() }); err != nil {
		return err
	}
	return nextErr
}

// logSwitcher stands in for a display that supports refresh-rate switching.
type logSwitcher struct {
	logger zerolog.Logger
}

func (s logSwitcher) RequestRefreshRate(fps float64) error {
	s.logger.Info().Float64(xglog.FieldFPS, fps).Msg("refresh rate switch requested")
	return nil
}
