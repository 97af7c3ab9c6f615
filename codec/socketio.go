package codec

import (
	"encoding/json"
	"strconv"
	"strings"
)

// SocketIOPacketType is one of the seven Socket.IO inner packet kinds.
type SocketIOPacketType int

const (
	SocketIOConnect SocketIOPacketType = iota
	SocketIODisconnect
	SocketIOEvent
	SocketIOAck
	SocketIOError
	SocketIOBinaryEvent
	SocketIOBinaryAck
)

func (t SocketIOPacketType) String() string {
	switch t {
	case SocketIOConnect:
		return "connect"
	case SocketIODisconnect:
		return "disconnect"
	case SocketIOEvent:
		return "event"
	case SocketIOAck:
		return "ack"
	case SocketIOError:
		return "error"
	case SocketIOBinaryEvent:
		return "binary event"
	case SocketIOBinaryAck:
		return "binary ack"
	default:
		return "unknown"
	}
}

// SocketIOPacket is a decoded Socket.IO message carried inside an
// Engine.IO Message packet.
type SocketIOPacket struct {
	Type  SocketIOPacketType
	Path  string
	AckID *int
	Args  []any
}

// FormatSocketIOPacket serializes type/path/ackID/args into the Socket.IO
// inner packet text: `TYPE [PATH ","] [ACK_ID] [JSON_ARGS]`.
func FormatSocketIOPacket(packetType SocketIOPacketType, path string, ackID *int, args []any) string {
	return strconv.Itoa(int(packetType)) + FormatSocketIOPacketData(path, ackID, args)
}

// FormatSocketIOPacketData serializes just the data portion (everything
// after the leading type digit).
func FormatSocketIOPacketData(path string, ackID *int, args []any) string {
	data := ""
	if len(args) > 0 {
		if encoded, err := json.Marshal(args); err == nil {
			data = string(encoded)
		}
	}
	if ackID != nil {
		data = strconv.Itoa(*ackID) + data
	}
	if path != "" {
		data = path + "," + data
	}
	return data
}

// ParseSocketIOPacket splits packet text into its type and decoded data.
func ParseSocketIOPacket(text string) SocketIOPacket {
	if text == "" {
		return SocketIOPacket{Type: SocketIOEvent}
	}

	packetType := SocketIOPacketType(text[0] - '0')
	path, ackID, args := ParseSocketIOPacketData(text[1:])

	return SocketIOPacket{Type: packetType, Path: path, AckID: ackID, Args: args}
}

// ParseSocketIOPacketData parses the data portion of a Socket.IO inner
// packet into its namespace path, optional ack id, and JSON args.
//
// A missing JSON body is not an error: args comes back empty. A JSON
// parse failure also yields an empty argument slice rather than
// propagating an error, matching what the server sends for namespace-only
// control packets.
func ParseSocketIOPacketData(data string) (path string, ackID *int, args []any) {
	rest := data

	if strings.HasPrefix(rest, "/") {
		if idx := strings.IndexByte(rest, ','); idx >= 0 {
			path = rest[:idx]
			rest = rest[idx+1:]
		} else {
			path = rest
			rest = ""
		}
	}

	ackID, jsonPart := splitAckID(rest)
	args = parseArgs(jsonPart)

	return path, ackID, args
}

// splitAckID separates a leading unbroken run of decimal digits
// immediately preceding the JSON body from the rest of the data. The ack
// id is absent when the next character is '[' or the string ends without
// one.
func splitAckID(rest string) (*int, string) {
	idx := strings.IndexByte(rest, '[')
	if idx <= 0 {
		return nil, rest
	}

	prefix := rest[:idx]
	for _, c := range prefix {
		if c < '0' || c > '9' {
			return nil, rest
		}
	}

	id, err := strconv.Atoi(prefix)
	if err != nil {
		return nil, rest
	}
	return &id, rest[idx:]
}

func parseArgs(jsonPart string) []any {
	if jsonPart == "" {
		return nil
	}

	var value any
	if err := json.Unmarshal([]byte(jsonPart), &value); err != nil {
		return nil
	}

	switch v := value.(type) {
	case []any:
		return v
	case string:
		return []any{v}
	default:
		return []any{v}
	}
}
