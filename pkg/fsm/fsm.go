package fsm

import (
	"context"
	"fmt"
	"sync"
)

// State identifies a machine state.
type State string

// Event identifies a transition trigger.
type Event string

// Guard evaluates whether a transition should be allowed.
type Guard func(ctx context.Context, data any) bool

// Action executes side effects during a transition. Returning an error
// prevents the state change.
type Action func(ctx context.Context, from, to State, data any) error

type transition struct {
	to     State
	guard  Guard
	action Action
}

// Machine is a concurrency-safe finite state machine with a fixed
// transition table.
type Machine struct {
	mu          sync.RWMutex
	initial     State
	current     State
	transitions map[State]map[Event]transition
	buildErr    error
}

// Option adds transitions during construction.
type Option func(*Machine)

// WithTransition declares an unconditional transition.
func WithTransition(from, to State, event Event) Option {
	return WithGuardedTransition(from, to, event, nil, nil)
}

// WithGuardedTransition declares a transition with an optional guard and
// action. Either may be nil. Registering a second transition for the
// same (from, event) pair fails construction rather than silently
// replacing the first.
func WithGuardedTransition(from, to State, event Event, guard Guard, action Action) Option {
	return func(m *Machine) {
		if m.transitions[from] == nil {
			m.transitions[from] = make(map[Event]transition)
		}
		if _, exists := m.transitions[from][event]; exists && m.buildErr == nil {
			m.buildErr = fmt.Errorf("%w: from %q on %q", ErrDuplicateTransition, from, event)
		}
		m.transitions[from][event] = transition{to: to, guard: guard, action: action}
	}
}

// New creates a machine starting in the initial state. It fails when the
// transition table declares the same (from, event) pair twice.
func New(initial State, opts ...Option) (*Machine, error) {
	m := &Machine{
		initial:     initial,
		current:     initial,
		transitions: make(map[State]map[Event]transition),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.buildErr != nil {
		return nil, m.buildErr
	}
	return m, nil
}

// MustNew is New, panicking on an invalid transition table. Use it for
// tables fixed at compile time.
func MustNew(initial State, opts ...Option) *Machine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Current returns the machine's current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// CanFire reports whether the event would cause a transition from the
// current state, including guard evaluation.
func (m *Machine) CanFire(ctx context.Context, event Event, data any) bool {
	m.mu.RLock()
	tr, ok := m.transitions[m.current][event]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return tr.guard == nil || tr.guard(ctx, data)
}

// Fire applies the event. The action, if any, runs before the state
// change; an action error aborts the transition.
func (m *Machine) Fire(ctx context.Context, event Event, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tr, ok := m.transitions[m.current][event]
	if !ok {
		return &TransitionError{State: m.current, Event: event}
	}
	if tr.guard != nil && !tr.guard(ctx, data) {
		return &TransitionError{State: m.current, Event: event, Rejected: true}
	}
	if tr.action != nil {
		if err := tr.action(ctx, m.current, tr.to, data); err != nil {
			return err
		}
	}
	m.current = tr.to
	return nil
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}
