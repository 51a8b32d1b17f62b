// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm is a small strict state machine runner.
package fsm

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned by Fire for an unknown state+event pair.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition describes a single edge in the FSM.
// Guard may reject the transition; Action runs after the state has changed.
type Transition[S ~string, E ~string] struct {
	From   S
	Event  E
	To     S
	Guard  func(from S, event E) error
	Action func(from S, to S, event E)
}

// Machine is intentionally strict: unknown transitions are errors.
// It is not safe for concurrent use; drive it from one sequencing context.
type Machine[S ~string, E ~string] struct {
	state S
	index map[string]Transition[S, E]
}

// New builds a machine. Duplicate state+event edges are rejected.
func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[string]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// MustNew is New for static tables.
func MustNew[S ~string, E ~string](initial S, transitions []Transition[S, E]) *Machine[S, E] {
	m, err := New(initial, transitions)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Machine[S, E]) State() S {
	return m.state
}

// Can reports whether event is allowed from the current state (guards are not evaluated).
func (m *Machine[S, E]) Can(event E) bool {
	_, ok := m.index[key(m.state, event)]
	return ok
}

// Fire applies an event and returns the resulting state.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	from := m.state
	t, ok := m.index[key(from, event)]
	if !ok {
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}
	if t.Guard != nil {
		if err := t.Guard(from, event); err != nil {
			return from, err
		}
	}
	m.state = t.To
	if t.Action != nil {
		t.Action(from, t.To, event)
	}
	return t.To, nil
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
