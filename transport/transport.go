// Package transport implements the two Engine.IO wire transports —
// HTTP long-polling and WebSocket — behind one uniform contract, so the
// Session Engine never needs to know which is active.
package transport

import (
	"context"
	"time"

	"github.com/invisibleroads/socketio-client-go/codec"
)

// Name identifies a wire transport, matching the values Engine.IO's
// "transport" query parameter accepts.
type Name string

const (
	Polling   Name = "polling"
	WebSocket Name = "websocket"
)

// Transport is the uniform contract both variants satisfy: a blocking
// receive, a send that may batch several packets, an adjustable receive
// deadline, and best-effort close.
type Transport interface {
	// Name reports which variant this is.
	Name() Name

	// RecvPacket blocks for at most the configured timeout and returns
	// the next Engine.IO packet. Returns a Timeout error on deadline
	// expiry, ConnectionLost on irrecoverable network failure.
	RecvPacket(ctx context.Context) (codec.EngineIOPacket, error)

	// SendPacket writes one or more packets as a single unit. Safe for
	// concurrent use with RecvPacket, but concurrent SendPacket calls on
	// the same Transport are serialized.
	SendPacket(ctx context.Context, packets ...codec.EngineIOPacket) error

	// SetTimeout adjusts the per-receive blocking deadline.
	SetTimeout(timeout time.Duration)

	// Close best-effort notifies the peer and releases the connection.
	// Idempotent.
	Close() error
}
