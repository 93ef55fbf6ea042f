// Package packet implements the minimal MQTT v3.1.1 framing used by the
// benchmark programs: fixed-header encoding, the handful of control
// packets the client exchanges, and the incremental parser driving the
// transport's receive reader.
package packet

import (
	"encoding/binary"
	"fmt"
)

const maxRemainingLength = 268435455 // 256 MB

// Type is the MQTT control packet type.
type Type byte

// Control packet types.
const (
	CONNECT    Type = 1
	CONNACK    Type = 2
	PUBLISH    Type = 3
	PUBACK     Type = 4
	SUBSCRIBE  Type = 8
	SUBACK     Type = 9
	PINGREQ    Type = 12
	PINGRESP   Type = 13
	DISCONNECT Type = 14
)

// String returns the packet type name.
func (t Type) String() string {
	switch t {
	case CONNECT:
		return "CONNECT"
	case CONNACK:
		return "CONNACK"
	case PUBLISH:
		return "PUBLISH"
	case PUBACK:
		return "PUBACK"
	case SUBSCRIBE:
		return "SUBSCRIBE"
	case SUBACK:
		return "SUBACK"
	case PINGREQ:
		return "PINGREQ"
	case PINGRESP:
		return "PINGRESP"
	case DISCONNECT:
		return "DISCONNECT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", byte(t))
	}
}

// defaultFlags returns the fixed-header flags mandated for the type.
func (t Type) defaultFlags() byte {
	if t == SUBSCRIBE {
		return 0x02
	}
	return 0
}

// headerLen returns the fixed-header size for a given remaining length.
func headerLen(rl int) int {
	// packet type and flag byte
	total := 1

	if rl <= 127 {
		total++
	} else if rl <= 16383 {
		total += 2
	} else if rl <= 2097151 {
		total += 3
	} else {
		total += 4
	}

	return total
}

// encode frames a body with the fixed header for type t.
func encode(t Type, flags byte, body []byte) ([]byte, error) {
	rl := len(body)
	if rl > maxRemainingLength {
		return nil, fmt.Errorf("[%s] remaining length (%d) out of bound (max %d)", t, rl, maxRemainingLength)
	}

	buf := make([]byte, 0, headerLen(rl)+rl)
	buf = append(buf, byte(t)<<4|(t.defaultFlags()|flags)&0x0f)

	var vb [5]byte
	n := binary.PutUvarint(vb[:], uint64(rl))
	buf = append(buf, vb[:n]...)

	return append(buf, body...), nil
}

// appendUint16 appends v big-endian.
func appendUint16(dst []byte, v uint16) []byte {
	return append(dst, byte(v>>8), byte(v))
}

// appendString appends a length-prefixed UTF-8 string.
func appendString(dst []byte, s string) []byte {
	dst = appendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

// readString reads a length-prefixed string off src and returns the rest.
func readString(src []byte) (string, []byte, error) {
	if len(src) < 2 {
		return "", nil, fmt.Errorf("insufficient buffer for string length, got %d", len(src))
	}

	n := int(binary.BigEndian.Uint16(src))
	src = src[2:]

	if len(src) < n {
		return "", nil, fmt.Errorf("insufficient buffer for string, expected %d, got %d", n, len(src))
	}

	return string(src[:n]), src[n:], nil
}
