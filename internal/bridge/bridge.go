// Package bridge matches asynchronous replies from a single remote peer to
// the blocking callers that asked for them.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/gaspardpetit/fmcp-bridge/internal/audit"
	"github.com/gaspardpetit/fmcp-bridge/internal/logx"
	"github.com/gaspardpetit/fmcp-bridge/internal/metrics"
)

// DefaultTimeout bounds a request when neither the caller nor Options set one.
const DefaultTimeout = 120 * time.Second

// Policy decides what happens to a second peer while one is attached.
type Policy string

const (
	PolicyReject  Policy = "reject"
	PolicyReplace Policy = "replace"
)

// Options configures a Bridge.
type Options struct {
	// Version is announced to the peer in the welcome frame.
	Version string
	// Timeout is the default request bound.
	Timeout time.Duration
	Policy  Policy
	// Audit receives tool and connection events. Nil disables auditing.
	Audit *audit.Log
	// OnChange is called after every connection state change.
	OnChange func(Snapshot)
	Logger   *zerolog.Logger
}

// Snapshot is a point-in-time view of the bridge.
type Snapshot struct {
	Connected bool          `json:"connected"`
	Ready     bool          `json:"ready"`
	Since     *time.Time    `json:"since,omitempty"`
	Port      int           `json:"port,omitempty"`
	Closed    bool          `json:"closed"`
	Pending   []PendingInfo `json:"pending"`
}

// Bridge owns the peer channel and the correlation table.
type Bridge struct {
	opts  Options
	log   zerolog.Logger
	ch    Channel
	table *table
	port  atomic.Int64
}

// New constructs a Bridge with no peer attached.
func New(opts Options) *Bridge {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Policy == "" {
		opts.Policy = PolicyReject
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	b := &Bridge{opts: opts, table: newTable()}
	if opts.Logger != nil {
		b.log = *opts.Logger
	} else {
		b.log = logx.Component("bridge")
	}
	return b
}

// SetPort records the port the transport listener bound, for the welcome frame.
func (b *Bridge) SetPort(port int) { b.port.Store(int64(port)) }

// IsConnected reports whether a peer is attached.
func (b *Bridge) IsConnected() bool { return b.ch.IsOpen() }

// Pending returns the number of outstanding requests.
func (b *Bridge) Pending() int { return b.table.len() }

// Submit sends method to the peer and waits for the correlated reply. A zero
// timeout uses the bridge default. Exactly one frame is sent per call that
// gets past the connection check.
func (b *Bridge) Submit(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = b.opts.Timeout
	}
	start := time.Now()
	payload, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	var (
		p    *pending
		conn Conn
	)
	err = b.ch.hold(func(c Conn) error {
		if c == nil {
			return ErrNotConnected
		}
		conn = c
		for {
			p = newPending(newCorrelationID(start), method, start)
			if b.table.insert(p) {
				return nil
			}
		}
	})
	if err != nil {
		b.finish(method, start, err)
		return nil, err
	}

	frame, err := json.Marshal(Request{ID: p.id, Method: method, Params: payload})
	if err != nil {
		b.table.remove(p)
		p.settle(nil, fmt.Errorf("encode request: %w", err))
	} else {
		b.await(ctx, conn, p, frame, timeout)
	}
	<-p.done
	b.finish(method, start, p.err)
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

// await sends frame and waits until p settles, the timeout fires or ctx
// ends. The write runs on its own goroutine so a caller that gives up is not
// held by a slow transport, and the write itself is never interrupted.
func (b *Bridge) await(ctx context.Context, conn Conn, p *pending, frame []byte, timeout time.Duration) {
	sent := make(chan error, 1)
	go func() { sent <- b.ch.Send(ctx, conn, frame) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case err := <-sent:
			sent = nil
			if err == nil {
				b.log.Debug().Str("id", p.id).Str("method", p.method).Msg("request sent")
				continue
			}
			b.table.remove(p)
			metrics.RecordDropped("send_failed")
			if ctx.Err() != nil {
				p.settle(nil, ctx.Err())
			} else {
				p.settle(nil, fmt.Errorf("%w: send %s: %v", ErrConnectionLost, p.method, err))
			}
		case <-p.done:
		case <-timer.C:
			b.table.remove(p)
			p.settle(nil, &TimeoutError{Method: p.method, After: timeout})
		case <-ctx.Done():
			b.table.remove(p)
			p.settle(nil, ctx.Err())
		}
		return
	}
}

func (b *Bridge) finish(method string, start time.Time, err error) {
	dur := time.Since(start)
	metrics.RecordRequest(method, outcome(err), dur)
	b.opts.Audit.Tool(method, err, dur)
	if err != nil {
		b.log.Debug().Str("method", method).Err(err).Msg("request failed")
	}
}

func outcome(err error) string {
	var pe *PeerError
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.As(err, &pe):
		return metrics.OutcomePeerError
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	case errors.Is(err, ErrNotConnected):
		return metrics.OutcomeNotConnected
	case errors.Is(err, ErrClosed):
		return metrics.OutcomeClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.OutcomeCanceled
	case errors.Is(err, ErrConnectionLost) && err != ErrConnectionLost:
		return metrics.OutcomeSendFailed
	default:
		return metrics.OutcomeConnectionLost
	}
}

// Dispatch routes one inbound frame from the attached peer.
func (b *Bridge) Dispatch(ctx context.Context, raw []byte) {
	var conn Conn
	_ = b.ch.hold(func(c Conn) error { conn = c; return nil })
	b.dispatch(ctx, conn, raw)
}

func (b *Bridge) dispatch(ctx context.Context, from Conn, raw []byte) {
	in, err := decodeInbound(raw)
	if err != nil {
		b.log.Warn().Err(err).Int("bytes", len(raw)).Msg("dropping frame")
		metrics.RecordDropped("malformed")
		return
	}
	switch in.kind {
	case kindHandshake:
		b.handshake(ctx, from)
	case kindNotice:
		b.log.Debug().Str("type", in.typ).Msg("ignoring uncorrelated frame")
		metrics.RecordDropped("uncorrelated")
	case kindReply:
		p := b.table.take(in.id)
		if p == nil {
			b.log.Debug().Str("id", in.id).Msg("no pending request for reply")
			metrics.RecordDropped("unknown_id")
			return
		}
		if in.failed {
			p.settle(nil, &PeerError{Method: p.method, Message: in.errMsg})
		} else {
			p.settle(in.result, nil)
		}
	}
}

func (b *Bridge) handshake(ctx context.Context, from Conn) {
	if from == nil {
		return
	}
	port := int(b.port.Load())
	b.log.Info().Int("port", port).Msg("peer ready")
	frame, _ := json.Marshal(Welcome{Type: TypeWelcome, BridgeVersion: b.opts.Version, Port: port})
	if err := b.ch.Send(ctx, from, frame); err != nil {
		b.log.Warn().Err(err).Msg("welcome not delivered")
		b.opts.Audit.Error("welcome not delivered: " + err.Error())
	}
	if b.ch.markReady(from) {
		b.notify()
	}
}

// OnConnect binds conn as the peer. Under PolicyReject it fails with
// ErrPeerBusy while another peer is attached; under PolicyReplace the old
// peer is closed and its outstanding requests fail with ErrConnectionLost.
func (b *Bridge) OnConnect(conn Conn) error {
	var displaced int
	prev, err := b.ch.Attach(conn, b.opts.Policy == PolicyReplace, func() {
		displaced = b.failAll(ErrConnectionLost)
	})
	if err != nil {
		metrics.RecordConnection("rejected")
		b.log.Warn().Err(err).Msg("peer connection refused")
		return err
	}
	if prev != nil {
		metrics.RecordConnection("replaced")
		b.log.Warn().Int("failed", displaced).Msg("peer replaced by a new connection")
		_ = prev.Close(CloseReplaced, "replaced by a new connection")
		b.opts.Audit.PluginDisconnect()
	}
	metrics.RecordConnection("accepted")
	metrics.SetPeerConnected(true)
	b.opts.Audit.PluginConnect()
	b.log.Info().Msg("peer connected")
	b.notify()
	return nil
}

// OnDisconnect detaches conn and fails every outstanding request with
// ErrConnectionLost. It does nothing if conn is no longer the attached peer.
func (b *Bridge) OnDisconnect(conn Conn) {
	var failed int
	if !b.ch.Detach(conn, func() { failed = b.failAll(ErrConnectionLost) }) {
		return
	}
	metrics.SetPeerConnected(false)
	b.opts.Audit.PluginDisconnect()
	b.log.Info().Int("failed", failed).Msg("peer disconnected")
	b.notify()
}

// Close fails outstanding requests with ErrClosed, closes the peer and
// refuses later connections.
func (b *Bridge) Close() {
	var failed int
	prev := b.ch.Shutdown(func() { failed = b.failAll(ErrClosed) })
	if prev != nil {
		_ = prev.Close(CloseShutdown, "bridge shutting down")
		metrics.SetPeerConnected(false)
		b.opts.Audit.PluginDisconnect()
	}
	b.log.Info().Int("failed", failed).Msg("bridge closed")
	b.notify()
}

// failAll drains the table. Callers hold the channel write lock.
func (b *Bridge) failAll(err error) int {
	drained := b.table.drain()
	for _, p := range drained {
		p.settle(nil, err)
	}
	return len(drained)
}

// Snapshot returns the current connection state and outstanding requests.
func (b *Bridge) Snapshot() Snapshot {
	connected, ready, since, closed := b.ch.state()
	s := Snapshot{
		Connected: connected,
		Ready:     ready,
		Port:      int(b.port.Load()),
		Closed:    closed,
		Pending:   b.table.snapshot(time.Now()),
	}
	if connected {
		s.Since = &since
	}
	return s
}

func (b *Bridge) notify() {
	if b.opts.OnChange != nil {
		b.opts.OnChange(b.Snapshot())
	}
}
