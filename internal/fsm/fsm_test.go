// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type state string
type event string

func TestMachine_FireFollowsTable(t *testing.T) {
	var seen []string
	m, err := New[state, event]("idle", []Transition[state, event]{
		{From: "idle", Event: "start", To: "running", Action: func(from, to state, ev event) {
			seen = append(seen, string(from)+">"+string(to))
		}},
		{From: "running", Event: "stop", To: "idle"},
	})
	require.NoError(t, err)

	assert.True(t, m.Can("start"))
	assert.False(t, m.Can("stop"))

	got, err := m.Fire("start")
	require.NoError(t, err)
	assert.Equal(t, state("running"), got)
	assert.Equal(t, []string{"idle>running"}, seen)

	_, err = m.Fire("start")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, state("running"), m.State())
}

func TestMachine_GuardRejects(t *testing.T) {
	blocked := errors.New("blocked")
	m := MustNew[state, event]("idle", []Transition[state, event]{
		{From: "idle", Event: "start", To: "running", Guard: func(state, event) error { return blocked }},
	})

	got, err := m.Fire("start")
	assert.ErrorIs(t, err, blocked)
	assert.Equal(t, state("idle"), got)
}

func TestNew_RejectsDuplicates(t *testing.T) {
	_, err := New[state, event]("idle", []Transition[state, event]{
		{From: "idle", Event: "start", To: "running"},
		{From: "idle", Event: "start", To: "idle"},
	})
	assert.Error(t, err)
}
