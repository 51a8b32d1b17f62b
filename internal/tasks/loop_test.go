// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestLoop_RunsPostedWorkInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLoop(8)
	defer l.Close()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(func() {}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_AfterFuncRunsOnLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLoop(8)
	defer l.Close()

	fired := make(chan struct{})
	require.NoError(t, l.Do(func() {
		l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	}))

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_StoppedTimerNeverRuns(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLoop(8)
	defer l.Close()

	ran := make(chan struct{}, 1)
	require.NoError(t, l.Do(func() {
		h := l.AfterFunc(20*time.Millisecond, func() { ran <- struct{}{} })
		assert.True(t, h.Stop())
		assert.False(t, h.Stop())
	}))

	select {
	case <-ran:
		t.Fatal("stopped timer ran")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestLoop_CloseStopsOutstandingTimers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLoop(8)
	require.NoError(t, l.Do(func() {
		l.AfterFunc(time.Hour, func() {})
	}))
	l.Close()
	l.Close()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(func() {}), ErrLoopClosed)
}

func TestLoop_RecoversCallbackPanic(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	l := NewLoop(8)
	defer l.Close()

	require.True(t, l.Post(func() { panic("boom") }))
	ok := false
	require.NoError(t, l.Do(func() { ok = true }))
	assert.True(t, ok)
}
