package socketio

import (
	"fmt"
	"strings"
	"sync"

	"github.com/invisibleroads/socketio-client-go/pkg/log"
)

// EventHandler receives an incoming event's arguments. If the event
// carried an ack id, respond invokes the server-side ack with whatever
// arguments the handler passes it; respond is nil otherwise.
type EventHandler func(args []any, respond func(args ...any))

// ConnectHandler fires for connect, reconnect, and disconnect.
type ConnectHandler func()

// ErrorHandler fires for an Error packet's arguments.
type ErrorHandler func(args []any)

// DataHandler fires for the Engine.IO-level lifecycle events (open,
// close, ping, pong) that carry a payload string.
type DataHandler func(data string)

// VoidHandler fires for Engine.IO-level events with no payload (upgrade,
// noop).
type VoidHandler func()

type handlerEntry struct {
	fn   EventHandler
	once bool
}

// Namespace holds one Socket.IO namespace's handler table and connection
// state. The default namespace ("") always exists once a Session has
// handshaken; others come into being on Define and are torn down on an
// explicit Disconnect packet, per spec.
//
// Handler dispatch follows a fixed lookup chain: an explicit On/Once
// registration for the event name first, then the generic fallback
// registered with OnEvent, in that order. There is no second "declared
// handler" tier here — that tier existed in the source to dispatch to a
// same-named method on a subclass, which has no equivalent in a handler-
// table design.
type Namespace struct {
	mu   sync.RWMutex
	path string
	log  *log.Log

	connected    bool
	wasConnected bool
	invalid      bool

	handlers map[string]*handlerEntry
	fallback EventHandler

	onConnect    ConnectHandler
	onReconnect  ConnectHandler
	onDisconnect ConnectHandler
	onError      ErrorHandler

	// Engine.IO-level lifecycle handlers. These fire on every namespace
	// alike, since Open/Close/Ping/Pong/Upgrade/Noop belong to the shared
	// transport rather than any one namespace.
	onOpen    DataHandler
	onClose   DataHandler
	onPing    DataHandler
	onPong    DataHandler
	onUpgrade VoidHandler
	onNoop    VoidHandler
}

// NewNamespace returns an empty, not-yet-connected Namespace for path.
func NewNamespace(path string) *Namespace {
	return &Namespace{
		path:     path,
		log:      log.NewLog("socketio-client:" + path),
		handlers: make(map[string]*handlerEntry),
	}
}

// Path returns the namespace path ("" for default).
func (n *Namespace) Path() string {
	return n.path
}

// loggingPrefix mirrors make_logging_prefix: the path followed by a
// space, or empty for the default namespace.
func (n *Namespace) loggingPrefix() string {
	if n.path == "" {
		return ""
	}
	return n.path + " "
}

// On registers a persistent handler for event, replacing any previous
// registration for the same name.
func (n *Namespace) On(event string, handler EventHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[event] = &handlerEntry{fn: handler}
}

// Once registers a handler for event that removes itself before firing,
// so a handler invoked recursively never re-enters itself.
func (n *Namespace) Once(event string, handler EventHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[event] = &handlerEntry{fn: handler, once: true}
}

// Off removes any handler registered for event. A no-op if none exists.
func (n *Namespace) Off(event string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.handlers, event)
}

// OnEvent sets the generic fallback invoked when no explicit handler
// matches the incoming event name.
func (n *Namespace) OnEvent(handler EventHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fallback = handler
}

// OnConnect, OnReconnect, OnDisconnect, and OnError set the namespace's
// lifecycle callbacks. Each replaces any previous registration.
func (n *Namespace) OnConnect(handler ConnectHandler)    { n.mu.Lock(); n.onConnect = handler; n.mu.Unlock() }
func (n *Namespace) OnReconnect(handler ConnectHandler)  { n.mu.Lock(); n.onReconnect = handler; n.mu.Unlock() }
func (n *Namespace) OnDisconnect(handler ConnectHandler) { n.mu.Lock(); n.onDisconnect = handler; n.mu.Unlock() }
func (n *Namespace) OnError(handler ErrorHandler)        { n.mu.Lock(); n.onError = handler; n.mu.Unlock() }

// OnOpen, OnClose, OnPing, OnPong, OnUpgrade, and OnNoop set the
// namespace's Engine.IO-level lifecycle callbacks.
func (n *Namespace) OnOpen(handler DataHandler)    { n.mu.Lock(); n.onOpen = handler; n.mu.Unlock() }
func (n *Namespace) OnClose(handler DataHandler)   { n.mu.Lock(); n.onClose = handler; n.mu.Unlock() }
func (n *Namespace) OnPing(handler DataHandler)    { n.mu.Lock(); n.onPing = handler; n.mu.Unlock() }
func (n *Namespace) OnPong(handler DataHandler)    { n.mu.Lock(); n.onPong = handler; n.mu.Unlock() }
func (n *Namespace) OnUpgrade(handler VoidHandler) { n.mu.Lock(); n.onUpgrade = handler; n.mu.Unlock() }
func (n *Namespace) OnNoop(handler VoidHandler)    { n.mu.Lock(); n.onNoop = handler; n.mu.Unlock() }

// dispatch resolves event through the lookup chain and invokes whichever
// handler matched, removing it first if it was registered with Once.
func (n *Namespace) dispatch(event string, args []any, respond func(args ...any)) {
	n.mu.Lock()
	entry, ok := n.handlers[event]
	if ok && entry.once {
		delete(n.handlers, event)
	}
	fallback := n.fallback
	n.mu.Unlock()

	n.log.Info("%s[socket.io event] %s(%s)", n.loggingPrefix(), event, formatArgs(args))

	switch {
	case ok && entry.fn != nil:
		entry.fn(args, respond)
	case fallback != nil:
		fallback(args, respond)
	}
}

func formatArgs(args []any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprintf("%#v", a)
	}
	return strings.Join(parts, ", ")
}

// fireConnect marks the namespace connected and invokes reconnect in
// place of connect if it had previously been connected before, per the
// was-connected -> reconnect reclassification rule.
func (n *Namespace) fireConnect() {
	n.mu.Lock()
	wasConnected := n.wasConnected
	n.connected = true
	n.wasConnected = true
	n.invalid = false
	onConnect, onReconnect := n.onConnect, n.onReconnect
	n.mu.Unlock()

	if wasConnected {
		n.log.Debug("%s[socket.io reconnect]", n.loggingPrefix())
	} else {
		n.log.Debug("%s[socket.io connect]", n.loggingPrefix())
	}

	if wasConnected && onReconnect != nil {
		onReconnect()
		return
	}
	if onConnect != nil {
		onConnect()
	}
}

func (n *Namespace) fireDisconnect() {
	n.mu.Lock()
	n.connected = false
	onDisconnect := n.onDisconnect
	n.mu.Unlock()

	n.log.Debug("%s[socket.io disconnect]", n.loggingPrefix())
	if onDisconnect != nil {
		onDisconnect()
	}
}

func (n *Namespace) fireError(args []any) {
	n.mu.Lock()
	n.invalid = isInvalidNamespaceError(args)
	onError := n.onError
	n.mu.Unlock()

	n.log.Warning("%s[socket.io error] %v", n.loggingPrefix(), args)
	if onError != nil {
		onError(args)
	}
}

func (n *Namespace) fireOpen(data string) {
	n.mu.RLock()
	handler := n.onOpen
	n.mu.RUnlock()
	if handler != nil {
		handler(data)
	}
}

func (n *Namespace) fireCloseEvent(data string) {
	n.mu.RLock()
	handler := n.onClose
	n.mu.RUnlock()
	if handler != nil {
		handler(data)
	}
}

func (n *Namespace) firePing(data string) {
	n.mu.RLock()
	handler := n.onPing
	n.mu.RUnlock()
	if handler != nil {
		handler(data)
	}
}

func (n *Namespace) firePong(data string) {
	n.mu.RLock()
	handler := n.onPong
	n.mu.RUnlock()
	if handler != nil {
		handler(data)
	}
}

func (n *Namespace) fireUpgrade() {
	n.mu.RLock()
	handler := n.onUpgrade
	n.mu.RUnlock()
	if handler != nil {
		handler()
	}
}

func (n *Namespace) fireNoop() {
	n.mu.RLock()
	handler := n.onNoop
	n.mu.RUnlock()
	if handler != nil {
		handler()
	}
}

// Connected reports whether the namespace currently believes itself
// joined.
func (n *Namespace) Connected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected
}

// Invalid reports whether the server rejected this namespace as unknown.
func (n *Namespace) Invalid() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.invalid
}

func isInvalidNamespaceError(args []any) bool {
	if len(args) == 0 {
		return false
	}
	s, ok := args[0].(string)
	if !ok {
		return false
	}
	return strings.EqualFold(s, "invalid namespace")
}
