package bridge

import (
	"context"
	"sync"
	"time"
)

// CloseCode tells the transport why the bridge is closing a connection.
type CloseCode int

const (
	CloseNormal CloseCode = iota
	// CloseReplaced is sent to a peer displaced by a newer connection.
	CloseReplaced
	// CloseRejected is sent to a peer refused because another is attached.
	CloseRejected
	// CloseShutdown is sent when the bridge itself goes away.
	CloseShutdown
)

// Conn is the bridge's view of one live peer connection.
type Conn interface {
	Send(ctx context.Context, frame []byte) error
	Close(code CloseCode, reason string) error
}

// Channel holds at most one live peer connection. Its write lock is the
// barrier between teardown and request registration: anything registered
// while a reader holds the connection is visible to the drain that runs
// under the write lock.
type Channel struct {
	mu     sync.RWMutex
	conn   Conn
	ready  bool
	since  time.Time
	closed bool
}

// Attach binds conn. If a peer is already attached it is either refused with
// ErrPeerBusy or, when replace is set, displaced and returned. barrier runs
// under the lock whenever a previous connection is displaced.
func (c *Channel) Attach(conn Conn, replace bool, barrier func()) (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	prev := c.conn
	if prev != nil {
		if !replace {
			return nil, ErrPeerBusy
		}
		if barrier != nil {
			barrier()
		}
	}
	c.conn = conn
	c.ready = false
	c.since = time.Now()
	return prev, nil
}

// Detach unbinds conn if it is still the attached connection and runs
// barrier under the same lock. It reports whether anything was detached.
func (c *Channel) Detach(conn Conn, barrier func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn != conn {
		return false
	}
	c.conn = nil
	c.ready = false
	c.since = time.Time{}
	if barrier != nil {
		barrier()
	}
	return true
}

// Shutdown detaches whatever is attached, runs barrier, and refuses every
// later Attach. It returns the connection that was attached, if any.
func (c *Channel) Shutdown(barrier func()) Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.conn
	c.conn = nil
	c.ready = false
	c.closed = true
	if barrier != nil {
		barrier()
	}
	return prev
}

// IsOpen reports whether a peer is attached.
func (c *Channel) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Send writes frame to conn while conn is still the attached peer. The
// write ignores cancellation of ctx: an abandoned write would tear down the
// connection every other request depends on. The transport bounds the write.
func (c *Channel) Send(ctx context.Context, conn Conn, frame []byte) error {
	c.mu.RLock()
	cur, closed := c.conn, c.closed
	c.mu.RUnlock()
	switch {
	case closed:
		return ErrClosed
	case cur == nil || cur != conn:
		return ErrConnectionLost
	}
	return conn.Send(context.WithoutCancel(ctx), frame)
}

// hold runs fn with the read lock held and the attached connection, which
// is nil when no peer is attached.
func (c *Channel) hold(fn func(conn Conn) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	return fn(c.conn)
}

func (c *Channel) markReady(conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn != conn {
		return false
	}
	c.ready = true
	return true
}

func (c *Channel) state() (connected, ready bool, since time.Time, closed bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil, c.ready, c.since, c.closed
}
