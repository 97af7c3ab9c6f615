package socketio

import (
	"context"
	"time"

	"github.com/invisibleroads/socketio-client-go/codec"
	"github.com/invisibleroads/socketio-client-go/pkg/slices"
	"github.com/invisibleroads/socketio-client-go/transport"
)

// WaitOptions configures a call to Wait.
type WaitOptions struct {
	// Duration bounds how long Wait blocks; zero means no deadline of its
	// own (Wait still obeys ctx and ForConnect/ForCallbacks).
	Duration time.Duration

	// ForConnect stops the loop once every registered namespace has
	// observed its Connect.
	ForConnect bool

	// ForCallbacks stops the loop once the Ack Table is empty.
	ForCallbacks bool
}

// Wait runs the core receive loop: pull one Engine.IO packet at a time,
// dispatch it, and repeat until a stop condition holds. Timeout on an
// individual receive is swallowed and the loop continues; ConnectionLost
// triggers a reconnect and the loop continues against the new transport.
func (s *Session) Wait(ctx context.Context, opts WaitOptions) error {
	if s.getState() == stateClosed {
		return ErrSessionClosed()
	}

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	polling := false
	if t := s.getTransport(); t != nil && t.Name() == transport.Polling {
		polling = true
	}
	if polling {
		s.hurryHeartbeat()
		if t := s.getTransport(); t != nil {
			t.SetTimeout(time.Second)
		}
	}
	defer func() {
		if polling {
			s.relaxHeartbeat()
			if t := s.getTransport(); t != nil {
				t.SetTimeout(s.options.Timeout)
			}
		}
	}()

	for !s.shouldStop(ctx, opts) {
		t := s.getTransport()
		if t == nil {
			if err := s.reconnect(ctx); err != nil {
				if !s.options.WaitForConnection {
					return err
				}
			}
			continue
		}

		packet, err := t.RecvPacket(ctx)
		if err != nil {
			if err == transport.ErrTimeout {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			session_log.Debug("receive failed, reconnecting: %v", err)
			if reconnectErr := s.reconnect(ctx); reconnectErr != nil {
				if !s.options.WaitForConnection {
					return reconnectErr
				}
			}
			continue
		}

		s.dispatchEngineIO(ctx, packet)
	}

	return nil
}

func (s *Session) shouldStop(ctx context.Context, opts WaitOptions) bool {
	if s.closeRequested.Load() || s.getState() == stateClosed {
		return true
	}
	if ctx.Err() != nil {
		return true
	}
	if opts.ForConnect && s.allNamespacesConnected() {
		return true
	}
	if opts.ForCallbacks && s.acks.Len() == 0 {
		return true
	}
	return false
}

func (s *Session) allNamespacesConnected() bool {
	for _, ns := range s.registry.All() {
		if !ns.Connected() {
			return false
		}
	}
	return true
}

// dispatchEngineIO handles one Engine.IO packet per §4.4.2.
func (s *Session) dispatchEngineIO(ctx context.Context, packet codec.EngineIOPacket) {
	switch packet.Type {
	case codec.EngineIOOpen:
		for _, ns := range s.registry.All() {
			ns.fireOpen(packet.Data)
		}
	case codec.EngineIOClose:
		for _, ns := range s.registry.All() {
			ns.fireCloseEvent(packet.Data)
		}
		if err := s.reconnect(ctx); err != nil {
			session_log.Debug("reconnect after server Close failed: %v", err)
		}
	case codec.EngineIOPing:
		if t := s.getTransport(); t != nil {
			if err := t.SendPacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOPong, Data: packet.Data}); err != nil && err != transport.ErrTimeout {
				session_log.Debug("pong reply failed, reconnecting: %v", err)
				if reconnectErr := s.reconnect(ctx); reconnectErr != nil {
					session_log.Debug("reconnect after failed pong failed: %v", reconnectErr)
				}
			}
		}
		for _, ns := range s.registry.All() {
			ns.firePing(packet.Data)
		}
	case codec.EngineIOPong:
		for _, ns := range s.registry.All() {
			ns.firePong(packet.Data)
		}
	case codec.EngineIOMessage:
		inner := codec.ParseSocketIOPacket(packet.Data)
		s.dispatchSocketIO(ctx, inner)
	case codec.EngineIOUpgrade:
		for _, ns := range s.registry.All() {
			ns.fireUpgrade()
		}
	case codec.EngineIONoop:
		for _, ns := range s.registry.All() {
			ns.fireNoop()
		}
	}
}

// dispatchSocketIO handles one parsed Socket.IO inner packet per §4.4.3.
func (s *Session) dispatchSocketIO(ctx context.Context, inner codec.SocketIOPacket) {
	ns, ok := s.registry.Lookup(inner.Path)
	if !ok {
		session_log.Debug("packet for undefined namespace %q dropped", inner.Path)
		return
	}

	switch inner.Type {
	case codec.SocketIOConnect:
		ns.fireConnect()

	case codec.SocketIODisconnect:
		ns.fireDisconnect()
		s.registry.Remove(inner.Path)

	case codec.SocketIOEvent:
		if len(inner.Args) == 0 {
			session_log.Debug("event packet on %q carried no event name", inner.Path)
			return
		}
		event, ok := slices.GetAny[string](inner.Args, 0)
		if !ok {
			session_log.Debug("event packet on %q carried a non-string event name", inner.Path)
			return
		}
		userArgs := slices.Slice(inner.Args, 1)

		var respond func(args ...any)
		if inner.AckID != nil {
			ackID := *inner.AckID
			path := inner.Path
			respond = func(args ...any) {
				s.sendAck(context.Background(), path, ackID, args)
			}
		}
		ns.dispatch(event, userArgs, respond)

	case codec.SocketIOAck:
		if inner.AckID == nil {
			session_log.Debug("ack packet on %q carried no ack id", inner.Path)
			return
		}
		s.acks.Resolve(*inner.AckID, inner.Args)

	case codec.SocketIOError:
		ns.fireError(inner.Args)

	case codec.SocketIOBinaryEvent, codec.SocketIOBinaryAck:
		session_log.Debug("binary payload on %q not implemented, dropping", inner.Path)
	}
}

// sendAck replies to a server Event that requested one.
func (s *Session) sendAck(ctx context.Context, path string, ackID int, args []any) {
	text := codec.FormatSocketIOPacket(codec.SocketIOAck, path, &ackID, args)
	if err := s.sendEnginePacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOMessage, Data: text}); err != nil {
		session_log.Debug("failed to send ack %d on %q: %v", ackID, path, err)
	}
}
