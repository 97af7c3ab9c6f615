package socketio

import (
	"crypto/tls"
	"net/http"
	"time"

	"github.com/invisibleroads/socketio-client-go/pkg/request"
)

// TransportName names a wire transport a Session may use, in the order
// spec.md's "transports" option recognizes them.
type TransportName string

const (
	TransportPolling   TransportName = "xhr-polling"
	TransportWebSocket TransportName = "websocket"
)

// SessionOptions configures a Session before it dials out. Construct with
// DefaultSessionOptions and chain the With* setters, mirroring the
// functional-options convention used across this codebase's HTTP client
// configuration.
type SessionOptions struct {
	Host     string
	Port     string
	Secure   bool
	Resource string // "socket.io" by default, "engine.io" for the bare transport client

	Transports        []TransportName
	WaitForConnection bool

	HurryIntervalInSeconds float64

	// ClearAcksOnReconnect controls whether in-flight Ack Table entries
	// are dropped across a transport reconnect. Defaults to false:
	// reconnects resume the same logical session, so a caller still
	// awaiting an ack shouldn't silently lose it.
	ClearAcksOnReconnect bool

	// HTTP/transport passthroughs.
	Params      map[string][]string
	Headers     http.Header
	Cookies     []*http.Cookie
	BasicAuth   *request.BasicAuth
	BearerToken string
	Proxy       string
	TLSConfig   *tls.Config
	Timeout     time.Duration
}

// DefaultSessionOptions returns the baseline configuration: both
// transports enabled (polling first), resource "socket.io", a 20s HTTP
// timeout, and reconnect-forever disabled (callers opt in explicitly).
func DefaultSessionOptions() *SessionOptions {
	return &SessionOptions{
		Resource:               "socket.io",
		Transports:             []TransportName{TransportPolling, TransportWebSocket},
		WaitForConnection:      false,
		HurryIntervalInSeconds: 1,
		Timeout:                20 * time.Second,
	}
}

// Assign overlays non-zero fields of other onto a copy of o.
func (o *SessionOptions) Assign(other *SessionOptions) *SessionOptions {
	merged := *o
	if other == nil {
		return &merged
	}
	if other.Host != "" {
		merged.Host = other.Host
	}
	if other.Port != "" {
		merged.Port = other.Port
	}
	if other.Secure {
		merged.Secure = other.Secure
	}
	if other.Resource != "" {
		merged.Resource = other.Resource
	}
	if len(other.Transports) > 0 {
		merged.Transports = other.Transports
	}
	if other.WaitForConnection {
		merged.WaitForConnection = true
	}
	if other.HurryIntervalInSeconds > 0 {
		merged.HurryIntervalInSeconds = other.HurryIntervalInSeconds
	}
	if other.ClearAcksOnReconnect {
		merged.ClearAcksOnReconnect = true
	}
	if other.Params != nil {
		merged.Params = other.Params
	}
	if other.Headers != nil {
		merged.Headers = other.Headers
	}
	if other.Cookies != nil {
		merged.Cookies = other.Cookies
	}
	if other.BasicAuth != nil {
		merged.BasicAuth = other.BasicAuth
	}
	if other.BearerToken != "" {
		merged.BearerToken = other.BearerToken
	}
	if other.Proxy != "" {
		merged.Proxy = other.Proxy
	}
	if other.TLSConfig != nil {
		merged.TLSConfig = other.TLSConfig
	}
	if other.Timeout > 0 {
		merged.Timeout = other.Timeout
	}
	return &merged
}

func (o *SessionOptions) WithHost(host string) *SessionOptions {
	o.Host = host
	return o
}

func (o *SessionOptions) WithPort(port string) *SessionOptions {
	o.Port = port
	return o
}

func (o *SessionOptions) WithSecure(secure bool) *SessionOptions {
	o.Secure = secure
	return o
}

func (o *SessionOptions) WithResource(resource string) *SessionOptions {
	o.Resource = resource
	return o
}

func (o *SessionOptions) WithTransports(transports ...TransportName) *SessionOptions {
	o.Transports = transports
	return o
}

func (o *SessionOptions) WithWaitForConnection(wait bool) *SessionOptions {
	o.WaitForConnection = wait
	return o
}

func (o *SessionOptions) WithHurryInterval(seconds float64) *SessionOptions {
	o.HurryIntervalInSeconds = seconds
	return o
}

func (o *SessionOptions) WithClearAcksOnReconnect(clear bool) *SessionOptions {
	o.ClearAcksOnReconnect = clear
	return o
}

func (o *SessionOptions) WithParams(params map[string][]string) *SessionOptions {
	o.Params = params
	return o
}

func (o *SessionOptions) WithHeaders(headers http.Header) *SessionOptions {
	o.Headers = headers
	return o
}

func (o *SessionOptions) WithCookies(cookies []*http.Cookie) *SessionOptions {
	o.Cookies = cookies
	return o
}

func (o *SessionOptions) WithBasicAuth(username, password string) *SessionOptions {
	o.BasicAuth = &request.BasicAuth{Username: username, Password: password}
	return o
}

func (o *SessionOptions) WithBearerToken(token string) *SessionOptions {
	o.BearerToken = token
	return o
}

func (o *SessionOptions) WithProxy(proxy string) *SessionOptions {
	o.Proxy = proxy
	return o
}

func (o *SessionOptions) WithTLSConfig(config *tls.Config) *SessionOptions {
	o.TLSConfig = config
	return o
}

func (o *SessionOptions) WithTimeout(timeout time.Duration) *SessionOptions {
	o.Timeout = timeout
	return o
}

// supportsTransport reports whether name is among the enabled transports.
func (o *SessionOptions) supportsTransport(name TransportName) bool {
	for _, t := range o.Transports {
		if t == name {
			return true
		}
	}
	return false
}
