package packet

import (
	"encoding/binary"
	"fmt"
)

// Connect is the CONNECT packet sent first on every control stream.
type Connect struct {
	ClientID     string
	KeepAlive    uint16
	CleanSession bool
}

// Encode frames the packet.
func (c Connect) Encode() ([]byte, error) {
	var body []byte
	body = appendString(body, "MQTT")
	body = append(body, 4) // protocol level 3.1.1

	var connectFlags byte
	if c.CleanSession {
		connectFlags |= 0x02
	}
	body = append(body, connectFlags)

	body = appendUint16(body, c.KeepAlive)
	body = appendString(body, c.ClientID)

	return encode(CONNECT, 0, body)
}

// Connack is the broker's reply to CONNECT.
type Connack struct {
	SessionPresent bool
	ReturnCode     byte
}

// ConnectionAccepted is the CONNACK return code for success.
const ConnectionAccepted byte = 0

// DecodeConnack parses a CONNACK body.
func DecodeConnack(body []byte) (Connack, error) {
	if len(body) != 2 {
		return Connack{}, fmt.Errorf("[CONNACK] expected 2 byte body, got %d", len(body))
	}

	return Connack{
		SessionPresent: body[0]&0x01 != 0,
		ReturnCode:     body[1],
	}, nil
}

// Encode frames the packet (used by the test broker).
func (c Connack) Encode() ([]byte, error) {
	var ack byte
	if c.SessionPresent {
		ack = 0x01
	}
	return encode(CONNACK, 0, []byte{ack, c.ReturnCode})
}

// Publish is a QoS 0 PUBLISH packet.
type Publish struct {
	Topic   string
	Payload []byte
}

// Encode frames the packet.
func (p Publish) Encode() ([]byte, error) {
	var body []byte
	body = appendString(body, p.Topic)
	body = append(body, p.Payload...)

	return encode(PUBLISH, 0, body)
}

// DecodePublish parses a QoS 0 PUBLISH body.
func DecodePublish(flags byte, body []byte) (Publish, error) {
	if qos := (flags >> 1) & 0x03; qos != 0 {
		return Publish{}, fmt.Errorf("[PUBLISH] unsupported qos %d", qos)
	}

	topic, rest, err := readString(body)
	if err != nil {
		return Publish{}, fmt.Errorf("[PUBLISH] topic: %s", err)
	}

	return Publish{Topic: topic, Payload: rest}, nil
}

// Subscribe is a single-topic SUBSCRIBE packet.
type Subscribe struct {
	PacketID uint16
	Topic    string
	QoS      byte
}

// Encode frames the packet.
func (s Subscribe) Encode() ([]byte, error) {
	var body []byte
	body = appendUint16(body, s.PacketID)
	body = appendString(body, s.Topic)
	body = append(body, s.QoS)

	return encode(SUBSCRIBE, 0, body)
}

// DecodeSubscribe parses a single-topic SUBSCRIBE body.
func DecodeSubscribe(body []byte) (Subscribe, error) {
	if len(body) < 2 {
		return Subscribe{}, fmt.Errorf("[SUBSCRIBE] insufficient body, got %d", len(body))
	}

	id := binary.BigEndian.Uint16(body)
	topic, rest, err := readString(body[2:])
	if err != nil {
		return Subscribe{}, fmt.Errorf("[SUBSCRIBE] topic: %s", err)
	}
	if len(rest) != 1 {
		return Subscribe{}, fmt.Errorf("[SUBSCRIBE] expected 1 trailing qos byte, got %d", len(rest))
	}

	return Subscribe{PacketID: id, Topic: topic, QoS: rest[0]}, nil
}

// Suback acknowledges a SUBSCRIBE.
type Suback struct {
	PacketID    uint16
	ReturnCodes []byte
}

// Encode frames the packet (used by the test broker).
func (s Suback) Encode() ([]byte, error) {
	var body []byte
	body = appendUint16(body, s.PacketID)
	body = append(body, s.ReturnCodes...)

	return encode(SUBACK, 0, body)
}

// DecodeSuback parses a SUBACK body.
func DecodeSuback(body []byte) (Suback, error) {
	if len(body) < 3 {
		return Suback{}, fmt.Errorf("[SUBACK] insufficient body, got %d", len(body))
	}

	return Suback{
		PacketID:    binary.BigEndian.Uint16(body),
		ReturnCodes: body[2:],
	}, nil
}

// EncodeNaked frames a packet without a body: PINGREQ, PINGRESP or
// DISCONNECT.
func EncodeNaked(t Type) ([]byte, error) {
	switch t {
	case PINGREQ, PINGRESP, DISCONNECT:
		return encode(t, 0, nil)
	default:
		return nil, fmt.Errorf("[%s] not a naked packet", t)
	}
}
