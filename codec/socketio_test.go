package codec

import (
	"testing"
)

func intp(i int) *int { return &i }

func TestFormatSocketIOPacket(t *testing.T) {
	tests := []struct {
		name       string
		packetType SocketIOPacketType
		path       string
		ackID      *int
		args       []any
		want       string
	}{
		{
			name:       "bare event, no args",
			packetType: SocketIOEvent,
			args:       []any{"x"},
			want:       `2["x"]`,
		},
		{
			name:       "path, ack id, object arg",
			packetType: SocketIOEvent,
			path:       "/c",
			ackID:      intp(7),
			args:       []any{"x", map[string]any{"a": 1}},
			want:       `2/c,7["x",{"a":1}]`,
		},
		{
			name:       "connect with path only",
			packetType: SocketIOConnect,
			path:       "/news",
			want:       `0/news`,
		},
		{
			name:       "default namespace connect",
			packetType: SocketIOConnect,
			want:       `0`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatSocketIOPacket(tt.packetType, tt.path, tt.ackID, tt.args)
			if got != tt.want {
				t.Errorf("FormatSocketIOPacket() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSocketIOPacketData(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantPath  string
		wantAckID *int
		wantArgs  []any
	}{
		{
			name:     "empty data",
			data:     "",
			wantPath: "",
			wantArgs: nil,
		},
		{
			name:     "plain args",
			data:     `["x"]`,
			wantArgs: []any{"x"},
		},
		{
			name:      "path and ack id",
			data:      `/c,7["x",{"a":1}]`,
			wantPath:  "/c",
			wantAckID: intp(7),
			wantArgs:  []any{"x", map[string]any{"a": float64(1)}},
		},
		{
			name:     "path only, no body",
			data:     "/news",
			wantPath: "/news",
			wantArgs: nil,
		},
		{
			name:     "malformed json yields empty args",
			data:     "[not json",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ackID, args := ParseSocketIOPacketData(tt.data)
			if path != tt.wantPath {
				t.Errorf("path = %q, want %q", path, tt.wantPath)
			}
			if (ackID == nil) != (tt.wantAckID == nil) || (ackID != nil && *ackID != *tt.wantAckID) {
				t.Errorf("ackID = %v, want %v", ackID, tt.wantAckID)
			}
			if len(args) != len(tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	tests := []struct {
		path  string
		ackID *int
		args  []any
	}{
		{args: []any{"x"}},
		{path: "/c", ackID: intp(7), args: []any{"x", map[string]any{"a": float64(1)}}},
		{path: "/chat"},
	}

	for _, tt := range tests {
		data := FormatSocketIOPacketData(tt.path, tt.ackID, tt.args)
		gotPath, gotAckID, gotArgs := ParseSocketIOPacketData(data)

		if gotPath != tt.path {
			t.Errorf("round-trip path = %q, want %q", gotPath, tt.path)
		}
		if (gotAckID == nil) != (tt.ackID == nil) || (gotAckID != nil && *gotAckID != *tt.ackID) {
			t.Errorf("round-trip ackID = %v, want %v", gotAckID, tt.ackID)
		}
		if len(gotArgs) != len(tt.args) {
			t.Errorf("round-trip args = %v, want %v", gotArgs, tt.args)
		}
	}
}
