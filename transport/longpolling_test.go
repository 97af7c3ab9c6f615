package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/invisibleroads/socketio-client-go/codec"
	"github.com/invisibleroads/socketio-client-go/pkg/request"
)

func TestLongPolling_RecvPacket(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sid") != "abc123" {
			t.Errorf("expected sid=abc123 on every request, got %q", r.URL.Query().Get("sid"))
		}
		content := codec.EncodeEngineIOContent([]codec.EngineIOPacket{
			{Type: codec.EngineIOMessage, Data: `42["emit_with_payload",{"xxx":"yyy"}]`},
		})
		w.Write(content)
	}))
	defer ts.Close()

	lp := NewLongPolling(request.NewHTTPClient(), ts.URL, "abc123", nil, RequestExtras{}, time.Second)

	packet, err := lp.RecvPacket(context.Background())
	if err != nil {
		t.Fatalf("RecvPacket() error = %v", err)
	}
	if packet.Type != codec.EngineIOMessage || packet.Data != `42["emit_with_payload",{"xxx":"yyy"}]` {
		t.Errorf("RecvPacket() = %+v, unexpected", packet)
	}
}

func TestLongPolling_RecvPacket_QueuesMultipleFrames(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content := codec.EncodeEngineIOContent([]codec.EngineIOPacket{
			{Type: codec.EngineIOPing, Data: "probe"},
			{Type: codec.EngineIOMessage, Data: "0/chat"},
		})
		w.Write(content)
	}))
	defer ts.Close()

	lp := NewLongPolling(request.NewHTTPClient(), ts.URL, "abc123", nil, RequestExtras{}, time.Second)

	first, err := lp.RecvPacket(context.Background())
	if err != nil || first.Type != codec.EngineIOPing {
		t.Fatalf("first RecvPacket() = %+v, %v", first, err)
	}

	second, ok := lp.popQueued()
	if !ok || second.Type != codec.EngineIOMessage {
		t.Fatalf("second queued packet = %+v, ok=%v", second, ok)
	}
}

func TestLongPolling_SendPacket_RequiresOK(t *testing.T) {
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("Content-Type = %q, want application/octet-stream", got)
		}
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte("ok"))
	}))
	defer ts.Close()

	lp := NewLongPolling(request.NewHTTPClient(), ts.URL, "abc123", nil, RequestExtras{}, time.Second)

	packets := []codec.EngineIOPacket{{Type: codec.EngineIOMessage, Data: `42["x"]`}}
	if err := lp.SendPacket(context.Background(), packets...); err != nil {
		t.Fatalf("SendPacket() error = %v", err)
	}

	want := codec.EncodeEngineIOContent(packets)
	if string(gotBody) != string(want) {
		t.Errorf("posted body = %v, want %v", gotBody, want)
	}
}

func TestLongPolling_SendPacket_RejectsNonOKBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not ok"))
	}))
	defer ts.Close()

	lp := NewLongPolling(request.NewHTTPClient(), ts.URL, "abc123", nil, RequestExtras{}, time.Second)

	err := lp.SendPacket(context.Background(), codec.EngineIOPacket{Type: codec.EngineIOMessage, Data: "x"})
	if err == nil || !strings.Contains(err.Error(), "unexpected POST response") {
		t.Fatalf("SendPacket() error = %v, want unexpected POST response", err)
	}
}

func TestLongPolling_NextT_IsMonotonicallyIncreasing(t *testing.T) {
	lp := NewLongPolling(request.NewHTTPClient(), "http://example.invalid/socket.io/", "", nil, RequestExtras{}, time.Second)

	first := lp.nextT()
	second := lp.nextT()
	if first == second {
		t.Errorf("nextT() returned the same value twice: %q", first)
	}
	if !strings.Contains(first, "-") || !strings.Contains(second, "-") {
		t.Errorf("nextT() values %q, %q do not match the <millis>-<index> shape", first, second)
	}
	firstIndex, _ := strconv.Atoi(first[strings.LastIndex(first, "-")+1:])
	secondIndex, _ := strconv.Atoi(second[strings.LastIndex(second, "-")+1:])
	if secondIndex <= firstIndex {
		t.Errorf("nextT() index did not increase: %q then %q", first, second)
	}
}
