package socketio

import (
	"context"
	"encoding/json"
	"time"

	"github.com/invisibleroads/socketio-client-go/codec"
	"github.com/invisibleroads/socketio-client-go/heartbeat"
	"github.com/invisibleroads/socketio-client-go/transport"
)

// openPayload is the handshake response body: a JSON object carrying the
// server-assigned session id and timing parameters.
type openPayload struct {
	Sid          string   `json:"sid"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
	Upgrades     []string `json:"upgrades"`
}

// ensureConnected dials out if the Session is still Idle (or resumes a
// reconnect if one is already needed), and is a no-op once Connected.
// Concurrent callers serialize on connMu; only one drives the handshake.
func (s *Session) ensureConnected(ctx context.Context) error {
	if s.getState() == stateConnected {
		return nil
	}
	if s.getState() == stateClosed {
		return ErrSessionClosed()
	}

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.getState() == stateConnected {
		return nil
	}
	if s.getState() == stateClosed {
		return ErrSessionClosed()
	}
	return s.connect(ctx)
}

// connect drives Handshaking -> Negotiating -> Connected. Retries the
// handshake forever when WaitForConnection is set; otherwise returns the
// first failure.
func (s *Session) connect(ctx context.Context) error {
	s.setState(stateHandshaking)

	for {
		err := s.handshake(ctx)
		if err == nil {
			break
		}
		if !s.options.WaitForConnection {
			return err
		}
		wait := time.Duration(s.reconnectBackoff.Duration()) * time.Millisecond
		session_log.Debug("handshake failed, retrying in %s: %v", wait, err)
		select {
		case <-ctx.Done():
			return ErrConnectionLost("handshake retry interrupted", ctx.Err())
		case <-time.After(wait):
		}
	}
	s.reconnectBackoff.Reset()

	s.setState(stateNegotiating)
	s.negotiate(ctx)

	s.setState(stateConnected)
	s.connGeneration.Add(1)
	s.startHeartbeat()
	if defaultNS, ok := s.registry.Lookup(""); ok {
		defaultNS.fireConnect()
	}
	s.replayNamespaceConnects(ctx)

	return nil
}

// handshake performs the initial long-polling GET and parses the Open
// packet, installing the resulting LongPolling transport as active.
func (s *Session) handshake(ctx context.Context) error {
	httpBaseURL, _, err := s.resolveBaseURLs()
	if err != nil {
		return ErrProtocolError("could not resolve server address", err)
	}

	lp := transport.NewLongPolling(s.httpClient, httpBaseURL, "", s.extraQuery(), s.requestExtras(), s.options.Timeout)
	packet, err := lp.RecvPacket(ctx)
	if err != nil {
		return ErrConnectionLost("handshake request failed", err)
	}
	if packet.Type != codec.EngineIOOpen {
		return ErrProtocolError("handshake response was not an Open packet", nil)
	}

	var payload openPayload
	if err := json.Unmarshal([]byte(packet.Data), &payload); err != nil {
		return ErrProtocolError("handshake payload was not valid JSON", err)
	}
	if payload.Sid == "" {
		return ErrProtocolError("handshake payload carried no sid", nil)
	}

	s.mu.Lock()
	s.sid = payload.Sid
	s.pingInterval = time.Duration(payload.PingInterval) * time.Millisecond
	s.pingTimeout = time.Duration(payload.PingTimeout) * time.Millisecond
	s.serverUpgrades = payload.Upgrades
	s.mu.Unlock()

	bound := transport.NewLongPolling(s.httpClient, httpBaseURL, payload.Sid, s.extraQuery(), s.requestExtras(), s.options.Timeout)
	if old := s.swapTransport(bound); old != nil {
		_ = old.Close()
	}
	return nil
}

// negotiate probes the WebSocket upgrade when the server advertises it
// and the client enables it. Any failure in the probe simply leaves
// long-polling active; it is never surfaced as a connect failure.
func (s *Session) negotiate(ctx context.Context) {
	if !s.options.supportsTransport(TransportWebSocket) || !containsString(s.serverUpgradesSnapshot(), "websocket") {
		return
	}

	_, wsBaseURL, err := s.resolveBaseURLs()
	if err != nil {
		return
	}

	wsTransport, err := transport.DialWebSocket(ctx, s.wsDialer, wsBaseURL, s.SID(), s.extraQuery(), s.extraHeaders(), s.options.Timeout)
	if err != nil {
		session_log.Debug("websocket upgrade probe failed to dial: %v", err)
		return
	}

	if err := wsTransport.SendPacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOPing, Data: "probe"}); err != nil {
		session_log.Debug("websocket probe ping failed: %v", err)
		_ = wsTransport.Close()
		return
	}
	pong, err := wsTransport.RecvPacket(ctx)
	if err != nil || pong.Type != codec.EngineIOPong || pong.Data != "probe" {
		session_log.Debug("websocket probe pong mismatch: %+v, err=%v", pong, err)
		_ = wsTransport.Close()
		return
	}
	if err := wsTransport.SendPacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOUpgrade}); err != nil {
		session_log.Debug("websocket upgrade confirmation failed: %v", err)
		_ = wsTransport.Close()
		return
	}

	if old := s.swapTransport(wsTransport); old != nil {
		_ = old.Close()
	}
}

func (s *Session) serverUpgradesSnapshot() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverUpgrades
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func (s *Session) startHeartbeat() {
	s.mu.RLock()
	relax := s.pingInterval
	s.mu.RUnlock()
	if relax <= 0 {
		relax = 25 * time.Second
	}

	hurry := time.Duration(s.options.HurryIntervalInSeconds * float64(time.Second))
	if t := s.getTransport(); t != nil && t.Name() == transport.WebSocket {
		hurry = relax
	}

	driver := heartbeat.NewDriver(relax, hurry, s.pingAction)

	s.heartbeatMu.Lock()
	s.activeHeartbeat = driver
	s.heartbeatMu.Unlock()

	driver.Start()
}

func (s *Session) stopHeartbeat() {
	s.heartbeatMu.Lock()
	driver := s.activeHeartbeat
	s.activeHeartbeat = nil
	s.heartbeatMu.Unlock()
	if driver != nil {
		driver.Halt()
	}
}

func (s *Session) hurryHeartbeat() {
	s.heartbeatMu.Lock()
	driver := s.activeHeartbeat
	s.heartbeatMu.Unlock()
	if driver != nil {
		driver.Hurry()
	}
}

func (s *Session) relaxHeartbeat() {
	s.heartbeatMu.Lock()
	driver := s.activeHeartbeat
	s.heartbeatMu.Unlock()
	if driver != nil {
		driver.Relax()
	}
}

// pingAction is the Heartbeat Driver's tick action: send a Ping over the
// active transport. A Timeout is swallowed; any other failure propagates
// so the driver exits and leaves the Session Engine to notice the dead
// transport on its own next send or receive.
func (s *Session) pingAction() error {
	t := s.getTransport()
	if t == nil {
		return transport.ErrConnectionLost
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.options.Timeout)
	defer cancel()

	err := t.SendPacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOPing})
	if err == nil {
		return nil
	}
	if err == transport.ErrTimeout {
		return nil
	}
	return err
}

// replayNamespaceConnects issues Connect(path) for every non-default
// namespace already present in the Registry — covering both namespaces
// defined before the first connect and namespaces that need to rejoin
// after a reconnect.
func (s *Session) replayNamespaceConnects(ctx context.Context) {
	for _, path := range s.registry.Paths() {
		if path == "" {
			continue
		}
		text := codec.FormatSocketIOPacket(codec.SocketIOConnect, path, nil, nil)
		if err := s.sendEnginePacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOMessage, Data: text}); err != nil {
			session_log.Debug("failed to replay connect for %s: %v", path, err)
		}
	}
}

// resendQueuedEvents drains the outage queue and resends each packet in
// original order.
func (s *Session) resendQueuedEvents(ctx context.Context) {
	pending := s.drainQueue()
	for i, packet := range pending {
		if err := s.sendEnginePacket(ctx, packet); err != nil {
			session_log.Debug("failed to resend queued packet: %v", err)
			s.requeueFront(pending[i:])
			return
		}
	}
}

// reconnect transitions Connected -> Reconnecting -> Handshaking -> ...
// -> Connected, replaying namespace connects and resending the outage
// queue on success. Concurrent callers serialize on connMu; a caller that
// observes the connection generation has already moved on since it
// detected the failure skips redoing work another goroutine finished.
func (s *Session) reconnect(ctx context.Context) error {
	if s.getState() == stateClosed {
		return ErrSessionClosed()
	}
	observedGeneration := s.connGeneration.Load()

	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.getState() == stateClosed {
		return ErrSessionClosed()
	}
	if s.connGeneration.Load() != observedGeneration {
		return nil // another caller already reconnected since we observed the failure
	}

	s.setState(stateReconnecting)
	s.stopHeartbeat()
	if old := s.swapTransport(nil); old != nil {
		_ = old.Close()
	}
	s.deliverSyntheticDisconnectToAll()
	if s.options.ClearAcksOnReconnect {
		s.acks.Clear()
	}

	if err := s.connect(ctx); err != nil {
		return err
	}

	s.resendQueuedEvents(ctx)
	return nil
}

func (s *Session) deliverSyntheticDisconnectToAll() {
	for _, ns := range s.registry.All() {
		ns.fireDisconnect()
	}
}
