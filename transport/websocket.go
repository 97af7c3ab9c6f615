package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/invisibleroads/socketio-client-go/codec"
	"github.com/invisibleroads/socketio-client-go/pkg/log"
)

var websocket_log = log.NewLog("socketio-client:transport/websocket")

// WebSocketTransport implements Transport over a single gorilla/websocket
// connection, one frame per packet, with no length prefix.
type WebSocketTransport struct {
	conn *ws.Conn

	writeMu sync.Mutex

	timeoutNanos atomic.Int64
	closed       atomic.Bool
}

// DialWebSocket opens the upgrade connection against wsURL (an
// already-normalized "ws://host:port/resource/" string), merging EIO,
// transport, and sid query parameters, and returns a ready WebSocketTransport.
func DialWebSocket(ctx context.Context, dialer *ws.Dialer, wsURL, sid string, extraQuery url.Values, headers http.Header, timeout time.Duration) (*WebSocketTransport, error) {
	parsed, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	q := url.Values{}
	for k, vs := range extraQuery {
		q[k] = vs
	}
	q.Set("EIO", "3")
	q.Set("transport", "websocket")
	if sid != "" {
		q.Set("sid", sid)
	}
	parsed.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(dialCtx, parsed.String(), headers)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	w := &WebSocketTransport{conn: conn}
	w.timeoutNanos.Store(int64(timeout))
	return w, nil
}

func (w *WebSocketTransport) Name() Name { return WebSocket }

func (w *WebSocketTransport) SetTimeout(timeout time.Duration) {
	w.timeoutNanos.Store(int64(timeout))
}

func (w *WebSocketTransport) getTimeout() time.Duration {
	return time.Duration(w.timeoutNanos.Load())
}

// RecvPacket blocks for at most the configured timeout waiting for the
// next frame.
func (w *WebSocketTransport) RecvPacket(ctx context.Context) (codec.EngineIOPacket, error) {
	_ = w.conn.SetReadDeadline(time.Now().Add(w.getTimeout()))

	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return codec.EngineIOPacket{}, ErrTimeout
		}
		return codec.EngineIOPacket{}, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	return codec.DecodePacketText(data), nil
}

// SendPacket writes packets as successive text frames under one lock, so
// concurrent SendPacket calls never interleave their frames.
func (w *WebSocketTransport) SendPacket(ctx context.Context, packets ...codec.EngineIOPacket) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(w.getTimeout()))

	for _, p := range packets {
		if err := w.conn.WriteMessage(ws.TextMessage, codec.EncodePacketText(p)); err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	return nil
}

// Close sends a close frame best-effort and releases the connection.
func (w *WebSocketTransport) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	if err := w.conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), deadline); err != nil {
		websocket_log.Debug("close frame failed: %v", err)
	}
	return w.conn.Close()
}
