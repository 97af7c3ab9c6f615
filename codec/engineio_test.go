package codec

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		packets []EngineIOPacket
	}{
		{
			name:    "single open packet",
			packets: []EngineIOPacket{{Type: EngineIOOpen, Data: `{"sid":"S"}`}},
		},
		{
			name: "message then ping",
			packets: []EngineIOPacket{
				{Type: EngineIOMessage, Data: `42["emit_with_payload",{"xxx":"yyy"}]`},
				{Type: EngineIOPing, Data: "probe"},
			},
		},
		{
			name:    "no packets",
			packets: nil,
		},
		{
			name:    "unicode payload",
			packets: []EngineIOPacket{{Type: EngineIOMessage, Data: `42["emit_with_payload",{"인삼":"뿌리"}]`}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := EncodeEngineIOContent(tt.packets)
			decoded := DecodeEngineIOContent(encoded)
			if len(tt.packets) == 0 {
				if len(decoded) != 0 {
					t.Fatalf("decode(encode(nil)) = %v, want empty", decoded)
				}
				return
			}
			if !reflect.DeepEqual(decoded, tt.packets) {
				t.Fatalf("decode(encode(%v)) = %v, want same", tt.packets, decoded)
			}
		})
	}
}

func TestEncodeEngineIOContentFraming(t *testing.T) {
	packets := []EngineIOPacket{{Type: EngineIOOpen, Data: "hi"}}
	got := EncodeEngineIOContent(packets)
	// "0hi" has length 3 -> header: 0x00, digit 3, 0xFF, then "0hi"
	want := []byte{0x00, 0x03, 0xFF, '0', 'h', 'i'}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("EncodeEngineIOContent() = %v, want %v", got, want)
	}
}

func TestDecodeTruncatedTrailingFrame(t *testing.T) {
	full := EncodeEngineIOContent([]EngineIOPacket{
		{Type: EngineIOMessage, Data: "hello"},
		{Type: EngineIOPing, Data: "probe"},
	})

	// Chop the last 3 bytes, so the second frame's declared length runs
	// past the end of the content.
	truncated := full[:len(full)-3]

	decoded := DecodeEngineIOContent(truncated)
	if len(decoded) != 1 {
		t.Fatalf("expected exactly the first complete frame, got %v", decoded)
	}
	if decoded[0].Type != EngineIOMessage || decoded[0].Data != "hello" {
		t.Fatalf("unexpected first packet: %+v", decoded[0])
	}
}

func TestDecodeDeclaredLengthExceedsPayload(t *testing.T) {
	// Manually craft a frame claiming length 5 but only 2 bytes follow.
	// The length digit byte holds the raw value 5, not the ASCII '5'.
	content := []byte{0x00, 5, 0xFF, '4', 'x'}
	decoded := DecodeEngineIOContent(content)
	if len(decoded) != 0 {
		t.Fatalf("expected no packets from a mismatched-length frame, got %v", decoded)
	}
}

func TestDecodeEmptyContent(t *testing.T) {
	if decoded := DecodeEngineIOContent(nil); len(decoded) != 0 {
		t.Fatalf("DecodeEngineIOContent(nil) = %v, want empty", decoded)
	}
}
