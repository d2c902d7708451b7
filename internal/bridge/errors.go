package bridge

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected is returned by Submit when no peer is attached.
	ErrNotConnected = errors.New("peer not connected")
	// ErrTimeout is wrapped by every *TimeoutError.
	ErrTimeout = errors.New("request timed out")
	// ErrConnectionLost fails requests that were outstanding when the peer went away.
	ErrConnectionLost = errors.New("peer connection lost")
	// ErrPeerBusy rejects a second peer while one is attached.
	ErrPeerBusy = errors.New("peer already connected")
	// ErrClosed fails requests outstanding when the bridge shuts down.
	ErrClosed = errors.New("bridge closed")
	// ErrMalformedFrame marks inbound data that cannot be decoded. It never
	// reaches a caller.
	ErrMalformedFrame = errors.New("malformed frame")
)

// TimeoutError reports a request that got no reply within its bound.
type TimeoutError struct {
	Method string
	After  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("plugin bridge request '%s' timed out after %dms", e.Method, e.After.Milliseconds())
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// PeerError carries the error message the peer put in a reply, verbatim.
type PeerError struct {
	Method  string
	Message string
}

func (e *PeerError) Error() string { return e.Message }
