package serverstate

import (
	"sync"
	"time"
)

// Bridge status values.
const (
	StatusNotReady = "not_ready"
	StatusReady    = "ready"
	StatusDraining = "draining"
	StatusUnknown  = "unknown"
)

// State is the published view of one bridge process. All fields are updated
// together so readers always observe a consistent snapshot.
type State struct {
	Status          string    `json:"status"`
	Port            int       `json:"port,omitempty"`
	PeerConnected   bool      `json:"peerConnected"`
	PeerReady       bool      `json:"peerReady"`
	PendingRequests int       `json:"pendingRequests"`
	Draining        bool      `json:"draining"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Store defines how the bridge state is persisted. The memory store serves a
// single process; the redis store lets other processes see it.
type Store interface {
	Load() State
	Store(State)
}

// DeriveStatus computes Status from the other fields.
func (s State) DeriveStatus() string {
	switch {
	case s.Draining:
		return StatusDraining
	case s.PeerConnected:
		return StatusReady
	default:
		return StatusNotReady
	}
}

// Tracker serializes read-modify-write cycles on a Store.
type Tracker struct {
	mu    sync.Mutex
	store Store
}

// NewTracker wraps store. A nil store means an in-memory one.
func NewTracker(store Store) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Tracker{store: store}
}

// Update applies fn to the current state, recomputes the status and stores
// the result.
func (t *Tracker) Update(fn func(*State)) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := t.store.Load()
	fn(&st)
	st.Status = st.DeriveStatus()
	st.UpdatedAt = time.Now().UTC()
	t.store.Store(st)
	return st
}

// UseStore moves the tracker onto store, carrying the current state over.
func (t *Tracker) UseStore(store Store) {
	t.mu.Lock()
	defer t.mu.Unlock()
	store.Store(t.store.Load())
	t.store = store
}

// Load returns the stored state.
func (t *Tracker) Load() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Load()
}

// StartDrain marks the bridge as draining.
func (t *Tracker) StartDrain() {
	t.Update(func(s *State) { s.Draining = true })
}

// IsDraining reports whether the bridge is draining.
func (t *Tracker) IsDraining() bool { return t.Load().Draining }

// memoryStore keeps the state in process.
type memoryStore struct {
	mu sync.RWMutex
	st State
}

// NewMemoryStore returns a memory-backed Store initialized to "not_ready".
func NewMemoryStore() Store {
	return &memoryStore{st: State{Status: StatusNotReady}}
}

func (m *memoryStore) Load() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.st
}

func (m *memoryStore) Store(s State) {
	m.mu.Lock()
	m.st = s
	m.mu.Unlock()
}
