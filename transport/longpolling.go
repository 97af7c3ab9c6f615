package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/invisibleroads/socketio-client-go/codec"
	"github.com/invisibleroads/socketio-client-go/pkg/log"
	"github.com/invisibleroads/socketio-client-go/pkg/request"
)

var longpolling_log = log.NewLog("socketio-client:transport/longpolling")

// ErrTimeout reports a recv_packet or send_packet deadline expiry.
var ErrTimeout = errors.New("transport: timeout")

// ErrConnectionLost reports an irrecoverable network failure.
var ErrConnectionLost = errors.New("transport: connection lost")

// RequestExtras carries the per-request passthroughs a transport applies
// to every handshake/poll/post call: custom headers, cookies, and auth.
type RequestExtras struct {
	Headers     http.Header
	Cookies     []*http.Cookie
	BasicAuth   *request.BasicAuth
	BearerToken string
}

// LongPolling implements Transport over repeated HTTP GET/POST, framing
// outbound packets per codec.EncodeEngineIOContent and decoding inbound
// bodies per codec.DecodeEngineIOContent. Sends are mutex-serialized;
// one send may run concurrent with one receive, per spec.
type LongPolling struct {
	client     *request.HTTPClient
	baseURL    string
	sid        string
	extraQuery url.Values
	extras     RequestExtras

	sendMu sync.Mutex

	qmu   sync.Mutex
	queue []codec.EngineIOPacket

	timeoutNanos atomic.Int64
	pollIndex    atomic.Uint64
	closed       atomic.Bool
}

// NewLongPolling builds a LongPolling transport bound to sid (empty
// during the handshake GET, which has none yet) against baseURL, an
// already-normalized "scheme://host:port/resource/" string. extraQuery
// carries caller-supplied params merged into every request; extras carries
// headers/cookies/auth applied to every request.
func NewLongPolling(client *request.HTTPClient, baseURL, sid string, extraQuery url.Values, extras RequestExtras, timeout time.Duration) *LongPolling {
	lp := &LongPolling{
		client:     client,
		baseURL:    baseURL,
		sid:        sid,
		extraQuery: extraQuery,
		extras:     extras,
	}
	lp.timeoutNanos.Store(int64(timeout))
	return lp
}

func (lp *LongPolling) Name() Name { return Polling }

func (lp *LongPolling) SetTimeout(timeout time.Duration) {
	lp.timeoutNanos.Store(int64(timeout))
}

func (lp *LongPolling) getTimeout() time.Duration {
	return time.Duration(lp.timeoutNanos.Load())
}

func (lp *LongPolling) buildQuery() url.Values {
	q := url.Values{}
	for k, vs := range lp.extraQuery {
		q[k] = vs
	}
	q.Set("EIO", "3")
	q.Set("transport", "polling")
	q.Set("t", lp.nextT())
	if lp.sid != "" {
		q.Set("sid", lp.sid)
	}
	return q
}

// requestOptions merges the fixed RequestExtras (headers, cookies, auth)
// with a per-call query and optional body.
func (lp *LongPolling) requestOptions(query url.Values, body any) *request.Options {
	headers := lp.extras.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	return &request.Options{
		Headers:     headers,
		Cookies:     lp.extras.Cookies,
		BasicAuth:   lp.extras.BasicAuth,
		BearerToken: lp.extras.BearerToken,
		Query:       query,
		Body:        body,
	}
}

// nextT returns the monotonic "<millis>-<index>" cache-busting token.
func (lp *LongPolling) nextT() string {
	index := lp.pollIndex.Add(1)
	return fmt.Sprintf("%d-%d", time.Now().UnixMilli(), index)
}

// RecvPacket returns the next buffered packet, issuing a GET to refill
// the buffer when it runs dry.
func (lp *LongPolling) RecvPacket(ctx context.Context) (codec.EngineIOPacket, error) {
	if packet, ok := lp.popQueued(); ok {
		return packet, nil
	}

	recvCtx, cancel := context.WithTimeout(ctx, lp.getTimeout())
	defer cancel()

	resp, err := lp.client.Get(recvCtx, lp.baseURL, lp.requestOptions(lp.buildQuery(), nil))
	if err != nil {
		if errors.Is(recvCtx.Err(), context.DeadlineExceeded) {
			return codec.EngineIOPacket{}, ErrTimeout
		}
		return codec.EngineIOPacket{}, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	if !resp.Ok() {
		return codec.EngineIOPacket{}, fmt.Errorf("%w: unexpected status %d", ErrConnectionLost, resp.StatusCode())
	}

	packets := codec.DecodeEngineIOContent(resp.Bytes())
	if len(packets) == 0 {
		longpolling_log.Debug("poll returned no packets")
		return codec.EngineIOPacket{}, ErrTimeout
	}

	lp.qmu.Lock()
	lp.queue = packets
	first := lp.queue[0]
	lp.queue = lp.queue[1:]
	lp.qmu.Unlock()

	return first, nil
}

func (lp *LongPolling) popQueued() (codec.EngineIOPacket, bool) {
	lp.qmu.Lock()
	defer lp.qmu.Unlock()
	if len(lp.queue) == 0 {
		return codec.EngineIOPacket{}, false
	}
	p := lp.queue[0]
	lp.queue = lp.queue[1:]
	return p, true
}

// SendPacket POSTs the framed payload and requires the server's
// "200 ok" acknowledgement.
func (lp *LongPolling) SendPacket(ctx context.Context, packets ...codec.EngineIOPacket) error {
	lp.sendMu.Lock()
	defer lp.sendMu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, lp.getTimeout())
	defer cancel()

	body := codec.EncodeEngineIOContent(packets)
	opts := lp.requestOptions(lp.buildQuery(), body)
	opts.Headers.Set("Content-Type", "application/octet-stream")
	resp, err := lp.client.Post(sendCtx, lp.baseURL, opts)
	if err != nil {
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}
	if !resp.Ok() || resp.String() != "ok" {
		return fmt.Errorf("%w: unexpected POST response %q", ErrConnectionLost, resp.String())
	}
	return nil
}

// Close marks the transport closed. Long-polling holds no persistent
// connection to release; idempotent.
func (lp *LongPolling) Close() error {
	lp.closed.Store(true)
	return nil
}
