// Package codec implements the Engine.IO v3 polling payload framing and
// the Socket.IO inner packet grammar as pure, allocation-light functions —
// no I/O, no session state, just bytes in and packets out.
package codec

import (
	"fmt"
	"strconv"

	"github.com/invisibleroads/socketio-client-go/pkg/log"
)

var engineio_log = log.NewLog("socketio-client:codec/engineio")

// EngineIOPacketType is one of the seven Engine.IO packet kinds.
type EngineIOPacketType int

const (
	EngineIOOpen EngineIOPacketType = iota
	EngineIOClose
	EngineIOPing
	EngineIOPong
	EngineIOMessage
	EngineIOUpgrade
	EngineIONoop
)

func (t EngineIOPacketType) String() string {
	switch t {
	case EngineIOOpen:
		return "open"
	case EngineIOClose:
		return "close"
	case EngineIOPing:
		return "ping"
	case EngineIOPong:
		return "pong"
	case EngineIOMessage:
		return "message"
	case EngineIOUpgrade:
		return "upgrade"
	case EngineIONoop:
		return "noop"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// EngineIOPacket is one frame of the Engine.IO transport protocol.
type EngineIOPacket struct {
	Type EngineIOPacketType
	Data string
}

// EncodeEngineIOContent frames an ordered sequence of Engine.IO packets for
// a single long-polling HTTP body: `0x00 d_1..d_k 0xFF TYPE DATA` per
// packet, concatenated. d_i are the decimal digits (as raw values 0-9, not
// ASCII) of the packet text length, most-significant digit first.
func EncodeEngineIOContent(packets []EngineIOPacket) []byte {
	var content []byte
	for _, p := range packets {
		text := EncodePacketText(p)
		content = append(content, makePacketPrefix(text)...)
		content = append(content, text...)
	}
	return content
}

// EncodePacketText formats a single packet as `TYPE DATA` with no length
// framing, the form a WebSocket transport sends one frame per packet.
func EncodePacketText(p EngineIOPacket) []byte {
	return formatPacketText(p)
}

// DecodePacketText parses a single `TYPE DATA` frame, the form a WebSocket
// transport receives one message per packet.
func DecodePacketText(text []byte) EngineIOPacket {
	packetType, data := parsePacketText(text)
	return EngineIOPacket{Type: packetType, Data: data}
}

// DecodeEngineIOContent decodes a long-polling HTTP body into the ordered
// sequence of Engine.IO packets it carries. A truncated trailing frame
// (no terminating 0xFF, or a declared length exceeding the remaining
// bytes) ends decoding cleanly rather than raising an error — whatever
// full frames were read are returned.
func DecodeEngineIOContent(content []byte) []EngineIOPacket {
	var packets []EngineIOPacket
	index := 0
	n := len(content)

	for index < n {
		nextIndex, length, ok := readPacketLength(content, index)
		if !ok {
			break
		}
		nextIndex, text, ok := readPacketText(content, nextIndex, length)
		if !ok {
			engineio_log.Warning("declared packet length %d exceeds remaining payload, discarding trailing frame", length)
			break
		}
		packets = append(packets, DecodePacketText(text))
		index = nextIndex
	}

	return packets
}

func formatPacketText(p EngineIOPacket) []byte {
	text := make([]byte, 0, 1+len(p.Data))
	text = append(text, byte('0'+int(p.Type)))
	text = append(text, p.Data...)
	return text
}

func parsePacketText(text []byte) (EngineIOPacketType, string) {
	if len(text) == 0 {
		return EngineIONoop, ""
	}
	return EngineIOPacketType(text[0] - '0'), string(text[1:])
}

// makePacketPrefix builds the `0x00 digits 0xFF` header preceding a frame.
func makePacketPrefix(text []byte) []byte {
	lengthString := strconv.Itoa(len(text))
	prefix := make([]byte, 0, len(lengthString)+2)
	prefix = append(prefix, 0x00)
	for i := 0; i < len(lengthString); i++ {
		prefix = append(prefix, lengthString[i]-'0')
	}
	prefix = append(prefix, 0xFF)
	return prefix
}

// readPacketLength scans the `0x00 digits 0xFF` header starting at index,
// returning the index just past the 0xFF and the decoded length. ok is
// false if the header never terminates within content (truncated frame).
func readPacketLength(content []byte, index int) (next int, length int, ok bool) {
	n := len(content)
	for index < n && content[index] != 0x00 {
		index++
	}
	index++ // skip the 0x00 sentinel
	if index > n {
		return 0, 0, false
	}

	var digits []byte
	for index < n && content[index] != 0xFF {
		if content[index] > 9 {
			return 0, 0, false
		}
		digits = append(digits, content[index]+'0')
		index++
	}
	if index >= n {
		return 0, 0, false // never found the terminating 0xFF
	}
	index++ // skip 0xFF

	if len(digits) == 0 {
		return 0, 0, false
	}
	length, err := strconv.Atoi(string(digits))
	if err != nil {
		return 0, 0, false
	}
	return index, length, true
}

func readPacketText(content []byte, index, length int) (next int, text []byte, ok bool) {
	if index+length > len(content) {
		return 0, nil, false
	}
	return index + length, content[index : index+length], true
}
