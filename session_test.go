package socketio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invisibleroads/socketio-client-go/codec"
)

// newHandshakeOpenBody frames the handshake Open packet a fake server
// replies with on the first GET.
func newHandshakeOpenBody(t *testing.T, sid string) []byte {
	t.Helper()
	payload, err := json.Marshal(openPayload{Sid: sid, PingInterval: 25000, PingTimeout: 60000})
	if err != nil {
		t.Fatalf("marshal handshake payload: %v", err)
	}
	return codec.EncodeEngineIOContent([]codec.EngineIOPacket{
		{Type: codec.EngineIOOpen, Data: string(payload)},
	})
}

func newPollingOnlySession(host string) *Session {
	return NewSession(DefaultSessionOptions().
		WithHost(host).
		WithTransports(TransportPolling).
		WithTimeout(2 * time.Second))
}

// TestSession_HandshakeThenEmitWithPayload covers seed scenario 1: after a
// successful handshake, Emit posts the expected framed Event packet.
func TestSession_HandshakeThenEmitWithPayload(t *testing.T) {
	var mu sync.Mutex
	var gets int
	var postBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			mu.Lock()
			gets++
			n := gets
			mu.Unlock()
			if n == 1 {
				w.Write(newHandshakeOpenBody(t, "S"))
				return
			}
			<-r.Context().Done() // park subsequent long-polls; test doesn't need them
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			postBody = body
			mu.Unlock()
			w.Write([]byte("ok"))
		}
	}))
	defer ts.Close()

	s := newPollingOnlySession(ts.URL)
	defer s.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.Emit(ctx, "", "emit_with_payload", []any{map[string]any{"xxx": "yyy"}}, nil)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	mu.Lock()
	got := string(postBody)
	mu.Unlock()

	want := string(codec.EncodeEngineIOContent([]codec.EngineIOPacket{
		{Type: codec.EngineIOMessage, Data: `42["emit_with_payload",{"xxx":"yyy"}]`},
	}))
	if got != want {
		t.Errorf("POST body = %q, want %q", got, want)
	}
	if s.SID() != "S" {
		t.Errorf("SID() = %q, want %q", s.SID(), "S")
	}
}

// TestSession_UnicodePayloadSurvivesRoundTrip covers seed scenario 6: a
// non-ASCII payload posts byte-for-byte as UTF-8 JSON.
func TestSession_UnicodePayloadSurvivesRoundTrip(t *testing.T) {
	var mu sync.Mutex
	var gets int
	var postBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			mu.Lock()
			gets++
			n := gets
			mu.Unlock()
			if n == 1 {
				w.Write(newHandshakeOpenBody(t, "S"))
				return
			}
			<-r.Context().Done()
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			postBody = body
			mu.Unlock()
			w.Write([]byte("ok"))
		}
	}))
	defer ts.Close()

	s := newPollingOnlySession(ts.URL)
	defer s.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := s.Emit(ctx, "", "emit_with_payload", []any{map[string]any{"인삼": "뿌리"}}, nil)
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	mu.Lock()
	got := string(postBody)
	mu.Unlock()

	if !strings.Contains(got, `"인삼":"뿌리"`) {
		t.Errorf("POST body = %q, want it to contain the unicode payload byte-for-byte", got)
	}
}

// TestSession_NamespaceConnectFiresOnceThenWaitReturns covers seed
// scenario 2: Define sends Connect(path) and unblocks once the server
// echoes it back.
func TestSession_NamespaceConnectFiresOnceThenWaitReturns(t *testing.T) {
	var mu sync.Mutex
	var gets int
	var posts [][]byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			mu.Lock()
			gets++
			n := gets
			mu.Unlock()
			switch n {
			case 1:
				w.Write(newHandshakeOpenBody(t, "S"))
			case 2:
				connectText := codec.FormatSocketIOPacket(codec.SocketIOConnect, "/news", nil, nil)
				w.Write(codec.EncodeEngineIOContent([]codec.EngineIOPacket{
					{Type: codec.EngineIOMessage, Data: connectText},
				}))
			default:
				<-r.Context().Done()
			}
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			posts = append(posts, body)
			mu.Unlock()
			w.Write([]byte("ok"))
		}
	}))
	defer ts.Close()

	s := newPollingOnlySession(ts.URL)
	defer s.Close(context.Background())

	var connected int
	s.registry.Define("/news").OnConnect(func() { connected++ })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ns, err := s.Define(ctx, "/news")
	if err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	if !ns.Connected() {
		t.Error("expected /news to be Connected() after Define() returns")
	}
	if connected != 1 {
		t.Errorf("connect handler fired %d times, want 1", connected)
	}

	mu.Lock()
	defer mu.Unlock()
	wantPrefix := string(codec.EncodeEngineIOContent([]codec.EngineIOPacket{
		{Type: codec.EngineIOMessage, Data: codec.FormatSocketIOPacket(codec.SocketIOConnect, "/news", nil, nil)},
	}))
	if len(posts) == 0 || string(posts[0]) != wantPrefix {
		t.Errorf("first POST = %q, want %q", posts, wantPrefix)
	}
}
