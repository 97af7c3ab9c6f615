// Package socketio implements a Socket.IO 1.x client over Engine.IO v3,
// speaking the HTTP long-polling and WebSocket transports directly
// against a server's handshake, probe, and message framing.
package socketio

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/invisibleroads/socketio-client-go/codec"
	"github.com/invisibleroads/socketio-client-go/heartbeat"
	"github.com/invisibleroads/socketio-client-go/pkg/log"
	"github.com/invisibleroads/socketio-client-go/pkg/request"
	"github.com/invisibleroads/socketio-client-go/pkg/types"
	"github.com/invisibleroads/socketio-client-go/pkg/utils"
	"github.com/invisibleroads/socketio-client-go/transport"
)

var session_log = log.NewLog("socketio-client:session")

type sessionState int32

const (
	stateIdle sessionState = iota
	stateHandshaking
	stateNegotiating
	stateConnected
	stateReconnecting
	stateClosed
)

func (s sessionState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateHandshaking:
		return "handshaking"
	case stateNegotiating:
		return "negotiating"
	case stateConnected:
		return "connected"
	case stateReconnecting:
		return "reconnecting"
	case stateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the central engine owning the connection state machine, the
// active transport, the namespace Registry, and the Ack Table. One
// Session corresponds to one logical connection to a Socket.IO server;
// it survives transparent reconnects until Close is called.
type Session struct {
	options *SessionOptions

	httpClient *request.HTTPClient
	wsDialer   *ws.Dialer

	registry *Registry
	acks     *AckTable

	state          atomic.Int32
	connGeneration atomic.Uint64

	mu             sync.RWMutex
	sid            string
	pingInterval   time.Duration
	pingTimeout    time.Duration
	serverUpgrades []string
	activeTransport transport.Transport

	connMu sync.Mutex // serializes handshake/negotiate/reconnect sequences

	heartbeatMu sync.Mutex
	activeHeartbeat *heartbeat.Driver

	queue *types.Slice[codec.EngineIOPacket]

	reconnectBackoff *utils.Backoff

	closeRequested atomic.Bool
}

// NewSession builds a Session from options, merging onto
// DefaultSessionOptions. The session does not dial out until the first
// operation that needs the wire (Define, Emit, Send, or Wait; On is
// local-only).
func NewSession(options *SessionOptions) *Session {
	opts := DefaultSessionOptions().Assign(options)

	httpClient := request.NewHTTPClient(
		request.WithTimeout(opts.Timeout),
		request.WithTLSClientConfig(opts.TLSConfig),
		request.WithFollowRedirects(true, 10),
		request.WithProxy(opts.Proxy),
		request.WithCookieJar(cookieJarFrom(opts.Cookies)),
	)

	dialer := &ws.Dialer{
		TLSClientConfig:  opts.TLSConfig,
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: opts.Timeout,
	}
	if opts.Proxy != "" {
		if proxyURL, err := url.Parse(opts.Proxy); err == nil {
			dialer.Proxy = http.ProxyURL(proxyURL)
		}
	}

	backoffOpts := []utils.BackoffOption{utils.WithJitter(0.5)}
	if opts.Timeout > 0 {
		backoffOpts = append(backoffOpts, utils.WithMin(float64(opts.Timeout.Milliseconds())))
	}

	return &Session{
		options:          opts,
		httpClient:       httpClient,
		wsDialer:         dialer,
		registry:         NewRegistry(),
		acks:             NewAckTable(),
		queue:            types.NewSlice[codec.EngineIOPacket](),
		reconnectBackoff: utils.NewBackoff(backoffOpts...),
	}
}

func (s *Session) getState() sessionState {
	return sessionState(s.state.Load())
}

func (s *Session) setState(state sessionState) {
	s.state.Store(int32(state))
}

func (s *Session) getTransport() transport.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeTransport
}

func (s *Session) setTransport(t transport.Transport) {
	s.mu.Lock()
	s.activeTransport = t
	s.mu.Unlock()
}

// swapTransport installs next as the active transport and returns the
// one it replaced, so the caller can close it.
func (s *Session) swapTransport(next transport.Transport) transport.Transport {
	s.mu.Lock()
	old := s.activeTransport
	s.activeTransport = next
	s.mu.Unlock()
	return old
}

func (s *Session) enqueue(packet codec.EngineIOPacket) {
	s.queue.Push(packet)
}

func (s *Session) drainQueue() []codec.EngineIOPacket {
	return s.queue.AllAndClear()
}

func (s *Session) requeueFront(pending []codec.EngineIOPacket) {
	if len(pending) == 0 {
		return
	}
	s.queue.Unshift(pending...)
}

// Registry exposes the namespace table, mainly so callers can inspect
// connection state (Namespace.Connected, Namespace.Invalid).
func (s *Session) Registry() *Registry { return s.registry }

// SID returns the server-assigned session id, empty before the first
// successful handshake.
func (s *Session) SID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sid
}

// On installs a persistent handler for event on the namespace at path,
// creating the namespace locally if it doesn't exist yet. No wire
// activity: the namespace is only connected over the network once
// Define or Emit addresses it.
func (s *Session) On(path, event string, handler EventHandler) {
	s.registry.Define(path).On(event, handler)
}

// Once installs a self-removing handler for event on the namespace at
// path.
func (s *Session) Once(path, event string, handler EventHandler) {
	s.registry.Define(path).Once(event, handler)
}

// Off removes any handler registered for event on the namespace at path.
// A no-op if the namespace or handler doesn't exist.
func (s *Session) Off(path, event string) {
	if ns, ok := s.registry.Lookup(path); ok {
		ns.Off(event)
	}
}

// Emit sends an event with args to the namespace at path. If callback is
// non-nil, an ack id is allocated and embedded so the server's Ack
// response invokes callback.
func (s *Session) Emit(ctx context.Context, path, event string, args []any, callback AckCallback) error {
	if s.getState() == stateClosed {
		return ErrSessionClosed()
	}
	if err := s.ensureConnected(ctx); err != nil {
		return err
	}

	var ackID *int
	if callback != nil {
		id := s.acks.Register(callback)
		ackID = &id
	}

	payload := make([]any, 0, len(args)+1)
	payload = append(payload, event)
	payload = append(payload, args...)

	return s.sendEvent(ctx, path, ackID, payload)
}

// Send emits the conventional "message" event, equivalent to
// Emit(ctx, path, "message", []any{data}, callback).
func (s *Session) Send(ctx context.Context, path string, data any, callback AckCallback) error {
	return s.Emit(ctx, path, "message", []any{data}, callback)
}

func (s *Session) sendEvent(ctx context.Context, path string, ackID *int, args []any) error {
	text := codec.FormatSocketIOPacket(codec.SocketIOEvent, path, ackID, args)
	packet := codec.EngineIOPacket{Type: codec.EngineIOMessage, Data: text}
	return s.sendEnginePacket(ctx, packet)
}

// sendEnginePacket writes packet to the active transport, queuing it for
// resend and triggering a reconnect if the transport has failed. Queued
// packets preserve call order across a reconnect.
func (s *Session) sendEnginePacket(ctx context.Context, packet codec.EngineIOPacket) error {
	if s.getState() == stateReconnecting {
		s.enqueue(packet)
		return nil
	}

	t := s.getTransport()
	if t == nil {
		s.enqueue(packet)
		return s.reconnect(ctx)
	}

	if err := t.SendPacket(ctx, packet); err != nil {
		if isConnectionLost(err) {
			s.enqueue(packet)
			return s.reconnect(ctx)
		}
		return ErrTimeout("send timed out", err)
	}
	return nil
}

// Define creates (or returns) the namespace at path and, for non-default
// paths, issues a Connect and blocks until the server confirms it.
func (s *Session) Define(ctx context.Context, path string) (*Namespace, error) {
	if s.getState() == stateClosed {
		return nil, ErrSessionClosed()
	}

	alreadyConnected := s.getState() == stateConnected
	ns := s.registry.Define(path)
	if path == "" {
		return ns, nil
	}

	if alreadyConnected {
		text := codec.FormatSocketIOPacket(codec.SocketIOConnect, path, nil, nil)
		if err := s.sendEnginePacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOMessage, Data: text}); err != nil {
			return ns, err
		}
	} else if err := s.ensureConnected(ctx); err != nil {
		return ns, err
	}

	return ns, s.Wait(ctx, WaitOptions{ForConnect: true})
}

// Disconnect tears down the namespace at path. For the default path
// ("") this closes the whole Session, equivalent to Close.
func (s *Session) Disconnect(ctx context.Context, path string) error {
	if path == "" {
		return s.Close(ctx)
	}

	ns, ok := s.registry.Lookup(path)
	if !ok {
		return nil
	}

	text := codec.FormatSocketIOPacket(codec.SocketIODisconnect, path, nil, nil)
	_ = s.sendEnginePacket(ctx, codec.EngineIOPacket{Type: codec.EngineIOMessage, Data: text})

	s.registry.Remove(path)
	ns.fireDisconnect()
	return nil
}

// Close releases the transport, halts the heartbeat, and rejects every
// subsequent operation with SessionClosed. Idempotent.
func (s *Session) Close(ctx context.Context) error {
	if !s.closeRequested.CompareAndSwap(false, true) {
		return nil
	}
	s.setState(stateClosed)

	s.stopHeartbeat()
	if t := s.getTransport(); t != nil {
		_ = t.Close()
	}
	return nil
}

func isConnectionLost(err error) bool {
	return err != nil && (err == transport.ErrConnectionLost || wraps(err, transport.ErrConnectionLost))
}

func wraps(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func cookieJarFrom(cookies []*http.Cookie) http.CookieJar {
	if len(cookies) == 0 {
		return nil
	}
	jar, err := newStaticCookieJar(cookies)
	if err != nil {
		session_log.Warning("ignoring invalid cookie jar seed: %v", err)
		return nil
	}
	return jar
}

// resolveBaseURLs normalizes the Host/Port/Secure options into the HTTP
// and WebSocket base URLs the transports dial against, each ending in
// "/<resource>/" per spec.
func (s *Session) resolveBaseURLs() (httpBaseURL, wsBaseURL string, err error) {
	host := s.options.Host
	if host == "" {
		return "", "", fmt.Errorf("socketio: Host option is required")
	}
	scheme := "http"
	if strings.Contains(host, "://") {
		parts := strings.SplitN(host, "://", 2)
		scheme = parts[0]
		host = parts[1]
	} else if s.options.Secure {
		scheme = "https"
	}

	hostname, port, splitErr := net.SplitHostPort(host)
	if splitErr != nil {
		hostname = host
		if s.options.Port != "" {
			port = s.options.Port
		} else if scheme == "https" || scheme == "wss" {
			port = "443"
		} else {
			port = "80"
		}
	}
	if s.options.Port != "" {
		port = s.options.Port
	}

	resource := s.options.Resource
	if resource == "" {
		resource = "socket.io"
	}

	hostport := net.JoinHostPort(hostname, port)
	httpScheme := "http"
	wsScheme := "ws"
	if scheme == "https" || scheme == "wss" {
		httpScheme = "https"
		wsScheme = "wss"
	}

	httpBaseURL = fmt.Sprintf("%s://%s/%s/", httpScheme, hostport, resource)
	wsBaseURL = fmt.Sprintf("%s://%s/%s/", wsScheme, hostport, resource)
	return httpBaseURL, wsBaseURL, nil
}

func (s *Session) extraQuery() url.Values {
	bag := utils.NewParameterBag(s.options.Params)
	q := url.Values{}
	for k, vs := range bag.All() {
		q[k] = vs
	}
	return q
}

func (s *Session) extraHeaders() http.Header {
	if s.options.Headers == nil {
		return http.Header{}
	}
	return s.options.Headers.Clone()
}

// requestExtras carries the session's configured headers/cookies/auth
// down to a transport for every handshake/poll/post it issues.
func (s *Session) requestExtras() transport.RequestExtras {
	return transport.RequestExtras{
		Headers:     s.options.Headers,
		Cookies:     s.options.Cookies,
		BasicAuth:   toRequestBasicAuth(s.options.BasicAuth),
		BearerToken: s.options.BearerToken,
	}
}

func toRequestBasicAuth(auth *request.BasicAuth) *request.BasicAuth {
	if auth == nil {
		return nil
	}
	copied := *auth
	return &copied
}
