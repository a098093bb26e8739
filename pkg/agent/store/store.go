// Package store holds all mutable per-call state: session metadata,
// conversation history, order-in-progress, policy flags and timeout
// counters. The store is an owned object passed explicitly to the
// orchestrator; there is no ambient global state, so multiple orchestrator
// instances do not collide.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/restockai/voiceline/pkg/agent"
	"github.com/restockai/voiceline/pkg/agent/types"
)

// CallState is the full mutable state of one call. Handlers mutate it
// through Update, which serializes access per call: events for different
// calls interleave freely, but no call's state is ever touched by two
// goroutines at once.
type CallState struct {
	Session         types.CallSession
	History         []types.Turn
	Order           types.Order
	Flags           types.Flags
	TimeoutAttempts int
	Phase           types.Phase

	// Generation increments on every accepted turn event and fences stale
	// results from slow external calls that finish late.
	Generation uint64
}

type entry struct {
	mu           sync.Mutex
	state        CallState
	destroyTimer *time.Timer
}

// Store owns the per-call state map.
type Store struct {
	mu    sync.Mutex
	calls map[string]*entry
}

// New creates an empty store.
func New() *Store {
	return &Store{calls: make(map[string]*entry)}
}

// Create registers a new call session. The first history element is always
// the system instruction. IDs are UUIDs; a duplicate ID is rejected rather
// than silently overwritten.
func (s *Store) Create(phoneNumber, context string) (types.CallSession, error) {
	return s.createWithID("call_"+uuid.NewString(), phoneNumber, context)
}

func (s *Store) createWithID(id, phoneNumber, context string) (types.CallSession, error) {
	now := time.Now()
	sess := types.CallSession{
		ID:          id,
		Status:      types.StatusInitiated,
		StartTime:   now,
		PhoneNumber: phoneNumber,
		Context:     context,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.calls[id]; exists {
		return types.CallSession{}, agent.NewInvalidRequestErrorWithParam("call id already in use", "call_id")
	}
	s.calls[id] = &entry{
		state: CallState{
			Session: sess,
			History: []types.Turn{{Role: types.RoleSystem, Content: context, Timestamp: now}},
			Phase:   types.PhaseGreeting,
		},
	}
	return sess, nil
}

// Get returns a snapshot of the call state. The snapshot is a copy; late
// concurrent reads during the destroy grace window are safe.
func (s *Store) Get(id string) (CallState, bool) {
	e := s.lookup(id)
	if e == nil {
		return CallState{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(&e.state), true
}

// Update applies fn to the call state under the per-call lock. Flag
// transitions are monotonic: a flag set true can never be reset by fn.
func (s *Store) Update(id string, fn func(*CallState)) error {
	e := s.lookup(id)
	if e == nil {
		return agent.NewNotFoundError(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	before := e.state.Flags
	fn(&e.state)
	e.state.Flags.ReorderConfirmed = e.state.Flags.ReorderConfirmed || before.ReorderConfirmed
	e.state.Flags.UpsellAttempted = e.state.Flags.UpsellAttempted || before.UpsellAttempted
	e.state.Flags.CustomerDone = e.state.Flags.CustomerDone || before.CustomerDone
	return nil
}

// IncrementTimeout bumps the silence-timeout counter and returns the new
// attempt number.
func (s *Store) IncrementTimeout(id string) (int, error) {
	var n int
	err := s.Update(id, func(cs *CallState) {
		cs.TimeoutAttempts++
		n = cs.TimeoutAttempts
	})
	return n, err
}

// ResolveCarrierRef maps a carrier-assigned call reference back to the
// call ID, for correlating status webhooks.
func (s *Store) ResolveCarrierRef(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.calls {
		e.mu.Lock()
		match := e.state.Session.CarrierRef == ref
		e.mu.Unlock()
		if match {
			return id, true
		}
	}
	return "", false
}

// ActiveSessions returns the sessions of all live calls.
func (s *Store) ActiveSessions() []types.CallSession {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.calls))
	for _, e := range s.calls {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]types.CallSession, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.state.Session)
		e.mu.Unlock()
	}
	return out
}

// Count returns the number of live calls.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Destroy removes the call state. Destroying an absent call is a no-op.
func (s *Store) Destroy(id string) {
	s.mu.Lock()
	e, ok := s.calls[id]
	if ok {
		delete(s.calls, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	if e.destroyTimer != nil {
		e.destroyTimer.Stop()
		e.destroyTimer = nil
	}
	e.mu.Unlock()
}

// DestroyAfter schedules destruction after the grace window, tolerating
// slightly-delayed concurrent reads. A non-positive grace destroys
// immediately. Rescheduling replaces the previous timer.
func (s *Store) DestroyAfter(id string, grace time.Duration) {
	if grace <= 0 {
		s.Destroy(id)
		return
	}
	e := s.lookup(id)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyTimer != nil {
		e.destroyTimer.Stop()
	}
	e.destroyTimer = time.AfterFunc(grace, func() { s.Destroy(id) })
}

func (s *Store) lookup(id string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func snapshot(cs *CallState) CallState {
	out := *cs
	out.History = make([]types.Turn, len(cs.History))
	copy(out.History, cs.History)
	out.Order.Items = make([]types.LineItem, len(cs.Order.Items))
	copy(out.Order.Items, cs.Order.Items)
	if cs.Order.Pending != nil {
		p := *cs.Order.Pending
		out.Order.Pending = &p
	}
	return out
}
