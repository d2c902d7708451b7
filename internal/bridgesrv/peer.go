package bridgesrv

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/gaspardpetit/fmcp-bridge/internal/bridge"
)

const writeTimeout = 10 * time.Second

// wsPeer adapts a websocket connection to bridge.Peer.
type wsPeer struct {
	conn *websocket.Conn
}

func (p *wsPeer) Send(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return p.conn.Write(ctx, websocket.MessageText, frame)
}

func (p *wsPeer) Close(code bridge.CloseCode, reason string) error {
	return p.conn.Close(closeStatus(code), reason)
}

// Receive returns the next text or binary message. A close frame with a
// normal or going-away status is reported as io.EOF.
func (p *wsPeer) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := p.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func closeStatus(code bridge.CloseCode) websocket.StatusCode {
	switch code {
	case bridge.CloseReplaced, bridge.CloseRejected:
		return websocket.StatusPolicyViolation
	case bridge.CloseShutdown:
		return websocket.StatusGoingAway
	default:
		return websocket.StatusNormalClosure
	}
}

// heartbeat pings the peer every interval and drops the connection when a
// pong does not come back within timeout.
func heartbeat(ctx context.Context, conn *websocket.Conn, interval, timeout time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, timeout)
			err := conn.Ping(pctx)
			cancel()
			if err == nil {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Warn().Err(err).Dur("timeout", timeout).Msg("heartbeat failed; dropping peer")
			_ = conn.CloseNow()
			return
		}
	}
}
