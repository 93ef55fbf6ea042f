package packet

import (
	"encoding/binary"
	"fmt"
	"io"

	"pcr1024/quicmq/pkg/transport"
)

// Handler receives each complete control packet with the fixed-header
// flags and the variable header plus payload as body.
type Handler func(t Type, flags byte, body []byte) error

// Parser splits the incoming byte stream into MQTT control packets. It
// consumes only complete packets: when the delivered bytes end inside a
// packet, the suffix is left unconsumed so the transport retains it and
// redelivers it together with the next data.
type Parser struct {
	handler Handler
}

// NewParser creates a parser delivering packets to handler.
func NewParser(handler Handler) *Parser {
	return &Parser{handler: handler}
}

// HandleIncoming implements transport.PacketHandler. It copies packet
// bytes out of the reader, so nothing borrowed outlives the call.
func (p *Parser) HandleIncoming(r *transport.Reader) error {
	for {
		var hdr [5]byte
		n := r.Peek(hdr[:])
		if n < 2 {
			return nil // wait for more bytes
		}

		t := Type(hdr[0] >> 4)
		flags := hdr[0] & 0x0f

		rl, m := binary.Uvarint(hdr[1:n])
		if m < 0 {
			return fmt.Errorf("[%s] remaining length overflows", t)
		}
		if m == 0 {
			if n == len(hdr) {
				// 4 length bytes all carry the continuation bit
				return fmt.Errorf("[%s] malformed remaining length", t)
			}
			return nil // length incomplete, wait for more bytes
		}
		if rl > maxRemainingLength {
			return fmt.Errorf("[%s] remaining length (%d) out of bound (max %d)", t, rl, maxRemainingLength)
		}

		need := uint64(1+m) + rl
		if r.Remaining() < need {
			return nil // packet incomplete, leave it unconsumed
		}

		pkt := make([]byte, need)
		if _, err := io.ReadFull(r, pkt); err != nil {
			return fmt.Errorf("[%s] reading packet: %s", t, err)
		}

		if p.handler != nil {
			if err := p.handler(t, flags, pkt[1+m:]); err != nil {
				return err
			}
		}
	}
}
