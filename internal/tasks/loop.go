// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package tasks

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/aerial/internal/log"
	"github.com/rs/zerolog"
)

// ErrLoopClosed is returned when work is submitted to a closed Loop.
var ErrLoopClosed = errors.New("loop closed")

// Loop is a single-goroutine sequencing context. Everything posted to it,
// including AfterFunc callbacks, runs serially on its goroutine.
type Loop struct {
	queue chan func()
	done  chan struct{}
	exit  chan struct{}
	once  sync.Once

	mu     sync.Mutex
	timers map[*loopTimer]struct{}

	logger zerolog.Logger
}

// NewLoop starts a loop with the given queue capacity.
func NewLoop(capacity int) *Loop {
	if capacity < 1 {
		capacity = 64
	}
	l := &Loop{
		queue:  make(chan func(), capacity),
		done:   make(chan struct{}),
		exit:   make(chan struct{}),
		timers: map[*loopTimer]struct{}{},
		logger: log.WithComponent("loop"),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exit)
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.queue:
			l.invoke(fn)
		}
	}
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Str(log.FieldEvent, "loop.callback_panic").
				Str("panic", fmt.Sprint(r)).
				Msg("recovered panic in loop callback")
		}
	}()
	fn()
}

// Post queues fn. It reports false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case <-l.done:
		return false
	case l.queue <- fn:
		return true
	}
}

// Do runs fn on the loop and waits for it to return.
// It must not be called from the loop goroutine.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.exit:
		return ErrLoopClosed
	}
}

func (l *Loop) Now() time.Time {
	return time.Now()
}

func (l *Loop) AfterFunc(d time.Duration, fn func()) Handle {
	t := &loopTimer{loop: l}
	l.mu.Lock()
	defer l.mu.Unlock()
	t.timer = time.AfterFunc(d, func() {
		l.forget(t)
		l.Post(func() {
			if t.stopped {
				return
			}
			t.fired = true
			fn()
		})
	})
	l.timers[t] = struct{}{}
	return t
}

func (l *Loop) forget(t *loopTimer) {
	l.mu.Lock()
	delete(l.timers, t)
	l.mu.Unlock()
}

// Close stops the loop and every outstanding timer, then waits for the loop
// goroutine to exit. Queued work that has not started is dropped.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		for t := range l.timers {
			t.timer.Stop()
		}
		l.timers = map[*loopTimer]struct{}{}
		l.mu.Unlock()
		close(l.done)
	})
	<-l.exit
}

// loopTimer fields other than timer are only touched on the loop goroutine.
type loopTimer struct {
	loop    *Loop
	timer   *time.Timer
	stopped bool
	fired   bool
}

func (t *loopTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	t.loop.forget(t)
	return true
}
