// Package helpers provides common utilities for integration tests, most
// importantly a minimal MQTT-over-QUIC broker the client can talk to.
package helpers

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	quic "github.com/quic-go/quic-go"

	"pcr1024/quicmq/pkg/crypto"
	"pcr1024/quicmq/pkg/packet"
)

// Broker is a minimal in-process MQTT-over-QUIC broker. It accepts any
// CONNECT, grants every subscription at QoS 0, and fans PUBLISH packets
// out to all matching subscribers (including the publisher itself).
type Broker struct {
	listener *quic.Listener
	cancel   context.CancelFunc

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	mu     sync.Mutex
	stream *quic.Stream
	topics map[string]struct{}
}

// StartBroker starts a broker on an ephemeral localhost UDP port.
func StartBroker() (*Broker, error) {
	cert, err := crypto.GenerateServerCertificate("localhost", "127.0.0.1", "::1")
	if err != nil {
		return nil, fmt.Errorf("generating certificate: %w", err)
	}

	tlsConf := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS13,
		NextProtos:   []string{"mqtt"},
	}

	listener, err := quic.ListenAddr("127.0.0.1:0", tlsConf, &quic.Config{})
	if err != nil {
		return nil, fmt.Errorf("quic.ListenAddr: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Broker{
		listener: listener,
		cancel:   cancel,
		subs:     make(map[*subscriber]struct{}),
	}

	go b.acceptLoop(ctx)
	return b, nil
}

// Addr returns the host and port the broker listens on.
func (b *Broker) Addr() (string, int) {
	udpAddr := b.listener.Addr().(*net.UDPAddr)
	return udpAddr.IP.String(), udpAddr.Port
}

// Close stops the broker.
func (b *Broker) Close() {
	b.cancel()
	_ = b.listener.Close()
}

func (b *Broker) acceptLoop(ctx context.Context) {
	for {
		conn, err := b.listener.Accept(ctx)
		if err != nil {
			return
		}
		go b.handleConn(ctx, conn)
	}
}

func (b *Broker) handleConn(ctx context.Context, conn *quic.Conn) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		return
	}

	sub := &subscriber{
		stream: stream,
		topics: make(map[string]struct{}),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	}()

	for {
		t, flags, body, err := readPacket(stream)
		if err != nil {
			return
		}

		switch t {
		case packet.CONNECT:
			buf, err := packet.Connack{ReturnCode: packet.ConnectionAccepted}.Encode()
			if err != nil {
				return
			}
			if err := sub.write(buf); err != nil {
				return
			}

		case packet.SUBSCRIBE:
			req, err := packet.DecodeSubscribe(body)
			if err != nil {
				return
			}

			sub.mu.Lock()
			sub.topics[req.Topic] = struct{}{}
			sub.mu.Unlock()

			buf, err := packet.Suback{PacketID: req.PacketID, ReturnCodes: []byte{0}}.Encode()
			if err != nil {
				return
			}
			if err := sub.write(buf); err != nil {
				return
			}

		case packet.PUBLISH:
			pub, err := packet.DecodePublish(flags, body)
			if err != nil {
				return
			}
			b.fanOut(pub)

		case packet.PINGREQ:
			buf, err := packet.EncodeNaked(packet.PINGRESP)
			if err != nil {
				return
			}
			if err := sub.write(buf); err != nil {
				return
			}

		case packet.DISCONNECT:
			return
		}
	}
}

// fanOut delivers a publication to every subscriber of its topic.
func (b *Broker) fanOut(pub packet.Publish) {
	buf, err := pub.Encode()
	if err != nil {
		return
	}

	b.mu.Lock()
	subs := make([]*subscriber, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		_, subscribed := s.topics[pub.Topic]
		s.mu.Unlock()

		if subscribed {
			_ = s.write(buf)
		}
	}
}

func (s *subscriber) write(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.stream.Write(buf)
	return err
}

// readPacket reads one MQTT control packet off the stream.
func readPacket(r io.Reader) (packet.Type, byte, []byte, error) {
	var hdr [1]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, 0, nil, err
	}

	t := packet.Type(hdr[0] >> 4)
	flags := hdr[0] & 0x0f

	rl, err := readRemainingLength(r)
	if err != nil {
		return 0, 0, nil, err
	}

	body := make([]byte, rl)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, 0, nil, err
	}

	return t, flags, body, nil
}

// readRemainingLength reads the MQTT variable-length encoding byte-wise.
func readRemainingLength(r io.Reader) (uint64, error) {
	var buf [1]byte
	var out []byte

	for i := 0; i < 4; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		out = append(out, buf[0])
		if buf[0]&0x80 == 0 {
			rl, n := binary.Uvarint(out)
			if n <= 0 {
				return 0, fmt.Errorf("malformed remaining length")
			}
			return rl, nil
		}
	}

	return 0, fmt.Errorf("remaining length exceeds 4 bytes")
}
