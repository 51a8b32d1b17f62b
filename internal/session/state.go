// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "github.com/ManuGH/aerial/internal/fsm"

// State is the session lifecycle state.
type State string

const (
	StateIdle           State = "idle"
	StatePreparing      State = "preparing"
	StateSeeking        State = "seeking"
	StateReady          State = "ready"
	StatePlaying        State = "playing"
	StateAlmostFinished State = "almost_finished"
	StateEnded          State = "ended"
	StateError          State = "error"
	StateReleased       State = "released"
)

// Event drives the session state machine.
type Event string

const (
	EventAssign     Event = "assign"
	EventSeek       Event = "seek_segment"
	EventPositioned Event = "positioned"
	EventPlay       Event = "play"
	EventPause      Event = "pause"
	EventFinish     Event = "finish_timer"
	EventEnded      Event = "ended"
	EventFail       Event = "fail"
	EventStop       Event = "stop"
	EventRelease    Event = "release"
)

var liveStates = []State{
	StateIdle, StatePreparing, StateSeeking, StateReady, StatePlaying,
	StateAlmostFinished, StateEnded, StateError,
}

func transitions(action func(from, to State, ev Event)) []fsm.Transition[State, Event] {
	var ts []fsm.Transition[State, Event]
	add := func(from State, ev Event, to State) {
		ts = append(ts, fsm.Transition[State, Event]{From: from, Event: ev, To: to, Action: action})
	}

	for _, s := range liveStates {
		add(s, EventAssign, StatePreparing)
		add(s, EventRelease, StateReleased)
		if s != StateIdle {
			add(s, EventStop, StateIdle)
		}
	}

	add(StatePreparing, EventSeek, StateSeeking)
	add(StateSeeking, EventSeek, StateSeeking)
	add(StatePreparing, EventPositioned, StateReady)
	add(StateSeeking, EventPositioned, StateReady)

	add(StateReady, EventPlay, StatePlaying)
	add(StatePlaying, EventPause, StateReady)

	add(StatePlaying, EventFinish, StateAlmostFinished)

	add(StateReady, EventEnded, StateEnded)
	add(StatePlaying, EventEnded, StateEnded)
	add(StateAlmostFinished, EventEnded, StateEnded)

	for _, s := range []State{StatePreparing, StateSeeking, StateReady, StatePlaying, StateAlmostFinished, StateEnded} {
		add(s, EventFail, StateError)
	}
	return ts
}

func newMachine(action func(from, to State, ev Event)) *fsm.Machine[State, Event] {
	return fsm.MustNew(StateIdle, transitions(action))
}
