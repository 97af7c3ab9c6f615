package socketio

import "fmt"

// Kind classifies the error taxonomy defined for this client: which
// failures are recoverable inside the receive loop, which surface to the
// caller, and which are simply logged.
type Kind int

const (
	// KindTimeout: a blocking receive exceeded its deadline. Recoverable,
	// swallowed inside the wait loop.
	KindTimeout Kind = iota
	// KindConnectionLost: the transport failed irrecoverably. Triggers
	// Reconnecting; surfaced to the caller only when WaitForConnection is
	// false.
	KindConnectionLost
	// KindPacketError: a well-formed byte stream carried an unknown packet
	// type or was missing a required field. Logged, never fatal.
	KindPacketError
	// KindProtocolError: the handshake response was not a valid Open
	// packet. Always surfaced.
	KindProtocolError
	// KindSessionClosed: an operation was attempted after Disconnect.
	KindSessionClosed
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnectionLost:
		return "connection lost"
	case KindPacketError:
		return "packet error"
	case KindProtocolError:
		return "protocol error"
	case KindSessionClosed:
		return "session closed"
	default:
		return "socket.io error"
	}
}

// Error is the concrete error type every failure in this package returns,
// so callers can branch on Kind with errors.As instead of string matching.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Kind == e.Kind
}

// ErrTimeout reports a blocking receive that exceeded its deadline.
func ErrTimeout(message string, cause error) *Error {
	return newError(KindTimeout, message, cause)
}

// ErrConnectionLost reports an irrecoverable transport failure.
func ErrConnectionLost(message string, cause error) *Error {
	return newError(KindConnectionLost, message, cause)
}

// ErrPacketError reports a malformed or unexpected inbound packet.
func ErrPacketError(message string, cause error) *Error {
	return newError(KindPacketError, message, cause)
}

// ErrProtocolError reports a handshake response that was not a valid Open
// packet.
func ErrProtocolError(message string, cause error) *Error {
	return newError(KindProtocolError, message, cause)
}

// ErrSessionClosed reports an operation attempted after Disconnect.
func ErrSessionClosed() *Error {
	return newError(KindSessionClosed, "session is closed", nil)
}

// sentinels usable with errors.Is(err, socketio.Timeout) etc.
var (
	Timeout        = ErrTimeout("", nil)
	ConnectionLost = ErrConnectionLost("", nil)
	PacketError    = ErrPacketError("", nil)
	ProtocolError  = ErrProtocolError("", nil)
	SessionClosed  = ErrSessionClosed()
)
