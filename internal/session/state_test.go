// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"testing"

	"github.com/ManuGH/aerial/internal/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions_TableIsValid(t *testing.T) {
	_, err := fsm.New(StateIdle, transitions(nil))
	require.NoError(t, err)
}

func TestTransitions_ReleasedIsTerminal(t *testing.T) {
	m := newMachine(nil)
	_, err := m.Fire(EventRelease)
	require.NoError(t, err)

	for _, ev := range []Event{EventAssign, EventPlay, EventPause, EventFinish, EventFail, EventStop, EventRelease} {
		_, err := m.Fire(ev)
		assert.ErrorIs(t, err, fsm.ErrInvalidTransition, string(ev))
	}
	assert.Equal(t, StateReleased, m.State())
}

func TestTransitions_HappyPath(t *testing.T) {
	var seen []State
	m := newMachine(func(_, to State, _ Event) { seen = append(seen, to) })

	for _, ev := range []Event{EventAssign, EventSeek, EventPositioned, EventPlay, EventFinish, EventEnded} {
		_, err := m.Fire(ev)
		require.NoError(t, err, string(ev))
	}
	assert.Equal(t, []State{StatePreparing, StateSeeking, StateReady, StatePlaying, StateAlmostFinished, StateEnded}, seen)
}

func TestTransitions_ErrorNotReachableFromIdle(t *testing.T) {
	m := newMachine(nil)
	assert.False(t, m.Can(EventFail))

	_, err := m.Fire(EventAssign)
	require.NoError(t, err)
	assert.True(t, m.Can(EventFail))
}
