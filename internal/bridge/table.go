package bridge

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gaspardpetit/fmcp-bridge/internal/metrics"
)

// pending is one outstanding request. It settles exactly once.
type pending struct {
	id      string
	method  string
	created time.Time

	once   sync.Once
	done   chan struct{}
	result json.RawMessage
	err    error
}

func newPending(id, method string, now time.Time) *pending {
	return &pending{id: id, method: method, created: now, done: make(chan struct{})}
}

// settle stores the outcome and wakes the waiter. Later calls are no-ops and
// report false.
func (p *pending) settle(result json.RawMessage, err error) bool {
	settled := false
	p.once.Do(func() {
		p.result, p.err = result, err
		close(p.done)
		settled = true
	})
	return settled
}

// PendingInfo describes an outstanding request for status pages.
type PendingInfo struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	CreatedAt time.Time `json:"createdAt"`
	AgeMs     int64     `json:"ageMs"`
}

// table maps correlation ids to outstanding requests. Every change publishes
// the new size to the pending gauge while the lock is held.
type table struct {
	mu      sync.Mutex
	entries map[string]*pending
}

func newTable() *table {
	return &table{entries: make(map[string]*pending)}
}

// insert registers p unless its id is already live.
func (t *table) insert(p *pending) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[p.id]; exists {
		return false
	}
	t.entries[p.id] = p
	metrics.SetPending(len(t.entries))
	return true
}

// take removes and returns the entry for id.
func (t *table) take(id string) *pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
		metrics.SetPending(len(t.entries))
	}
	return p
}

// remove deletes id only while it still maps to p.
func (t *table) remove(p *pending) {
	t.mu.Lock()
	if cur, ok := t.entries[p.id]; ok && cur == p {
		delete(t.entries, p.id)
		metrics.SetPending(len(t.entries))
	}
	t.mu.Unlock()
}

// drain empties the table and returns what it held.
func (t *table) drain() []*pending {
	t.mu.Lock()
	out := make([]*pending, 0, len(t.entries))
	for id, p := range t.entries {
		out = append(out, p)
		delete(t.entries, id)
	}
	metrics.SetPending(0)
	t.mu.Unlock()
	return out
}

func (t *table) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *table) snapshot(now time.Time) []PendingInfo {
	t.mu.Lock()
	out := make([]PendingInfo, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, PendingInfo{ID: p.id, Method: p.method, CreatedAt: p.created, AgeMs: now.Sub(p.created).Milliseconds()})
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
