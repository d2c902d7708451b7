package bridge

import (
	"context"
	"errors"
	"io"
)

// Peer is a connection the bridge can also read from.
type Peer interface {
	Conn
	// Receive blocks for the next frame. It returns io.EOF once the peer
	// closed cleanly.
	Receive(ctx context.Context) ([]byte, error)
}

// Serve binds peer for the life of its connection. Frames are dispatched in
// the order they arrive. When Receive fails the peer is detached and every
// outstanding request fails with ErrConnectionLost. A refused peer is closed
// and the refusal returned. A clean close returns nil.
func (b *Bridge) Serve(ctx context.Context, peer Peer) error {
	if err := b.OnConnect(peer); err != nil {
		code := CloseRejected
		if errors.Is(err, ErrClosed) {
			code = CloseShutdown
		}
		_ = peer.Close(code, err.Error())
		return err
	}
	defer b.OnDisconnect(peer)

	for {
		raw, err := peer.Receive(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		b.dispatch(ctx, peer, raw)
	}
}
