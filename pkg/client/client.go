// Package client provides the MQTT-over-QUIC client used by the benchmark
// programs. It wires the transport runtime, the connection controller and
// the packet parser together and performs the MQTT session handshake on
// top of the control stream.
package client

import (
	"fmt"
	"sync/atomic"
	"time"

	"pcr1024/quicmq/pkg/config"
	"pcr1024/quicmq/pkg/format"
	"pcr1024/quicmq/pkg/log"
	"pcr1024/quicmq/pkg/packet"
	"pcr1024/quicmq/pkg/provider/quicgo"
	"pcr1024/quicmq/pkg/transport"
)

// handshakeTimeout bounds the wait for CONNACK and SUBACK replies. The
// transport itself never times out; this is session-level patience.
const handshakeTimeout = 10 * time.Second

// MessageHandler is called for every PUBLISH received from the broker.
type MessageHandler func(topic string, payload []byte)

// Client manages one MQTT session over a QUIC connection.
type Client struct {
	cfg    *config.Client
	logger *log.Logger

	rt   *transport.Runtime
	conn *transport.Conn

	onMessage MessageHandler

	connackCh chan packet.Connack
	subackCh  chan packet.Suback

	packetID atomic.Uint32
}

// New creates a new Client with the given configuration.
func New(cfg *config.Client) (*Client, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", errs[0])
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.Verbose)
	}

	return &Client{
		cfg:       cfg,
		logger:    logger,
		connackCh: make(chan packet.Connack, 1),
		subackCh:  make(chan packet.Suback, 1),
	}, nil
}

// SetMessageHandler installs the handler for incoming PUBLISH packets.
// Must be called before Connect.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.onMessage = h
}

// Connect brings up the QUIC connection and performs the MQTT CONNECT /
// CONNACK exchange.
func (c *Client) Connect() error {
	p := config.GetProvider(c.cfg.Deps)
	if p == nil {
		p = quicgo.New()
	}

	if err := transport.Init(p); err != nil {
		return fmt.Errorf("transport.Init: %w", err)
	}

	rt, err := transport.Configure(c.cfg)
	if err != nil {
		return fmt.Errorf("transport.Configure: %w", err)
	}

	conn := rt.NewConn(packet.NewParser(c.dispatch))

	if err := conn.TryConnect(c.cfg.Host, uint16(c.cfg.Port), c.cfg.BindAddr); err != nil {
		rt.Close()
		return fmt.Errorf("connecting: %w", err)
	}

	c.rt = rt
	c.conn = conn

	if err := c.mqttConnect(); err != nil {
		_ = conn.TryClose()
		rt.Close()
		return err
	}

	log.Infof("Session established with %s", format.Addr(c.cfg.Host, c.cfg.Port))
	return nil
}

// mqttConnect sends CONNECT and waits for the CONNACK.
func (c *Client) mqttConnect() error {
	connect := packet.Connect{
		ClientID:     c.cfg.ClientID,
		KeepAlive:    60,
		CleanSession: true,
	}

	buf, err := connect.Encode()
	if err != nil {
		return fmt.Errorf("encoding CONNECT: %w", err)
	}

	if _, err := c.conn.Send(buf); err != nil {
		return fmt.Errorf("sending CONNECT: %w", err)
	}

	select {
	case ack := <-c.connackCh:
		if ack.ReturnCode != packet.ConnectionAccepted {
			return fmt.Errorf("broker refused connection, return code %d", ack.ReturnCode)
		}
		c.logger.Debugf("CONNACK received, session present: %v", ack.SessionPresent)
		return nil
	case <-time.After(handshakeTimeout):
		return fmt.Errorf("timeout waiting for CONNACK")
	}
}

// dispatch routes each parsed control packet.
func (c *Client) dispatch(t packet.Type, flags byte, body []byte) error {
	switch t {
	case packet.CONNACK:
		ack, err := packet.DecodeConnack(body)
		if err != nil {
			return err
		}
		select {
		case c.connackCh <- ack:
		default:
		}

	case packet.SUBACK:
		ack, err := packet.DecodeSuback(body)
		if err != nil {
			return err
		}
		select {
		case c.subackCh <- ack:
		default:
		}

	case packet.PUBLISH:
		pub, err := packet.DecodePublish(flags, body)
		if err != nil {
			return err
		}
		if c.onMessage != nil {
			// the body was copied out of the reader by the parser, so the
			// handler may retain the payload
			c.onMessage(pub.Topic, pub.Payload)
		}

	case packet.PINGRESP:
		c.logger.Debugf("PINGRESP received")

	default:
		c.logger.Debugf("Ignoring %s packet", t)
	}

	return nil
}

// Publish sends one QoS 0 PUBLISH packet.
func (c *Client) Publish(topic string, payload []byte) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	buf, err := packet.Publish{Topic: topic, Payload: payload}.Encode()
	if err != nil {
		return fmt.Errorf("encoding PUBLISH: %w", err)
	}

	if _, err := c.conn.Send(buf); err != nil {
		return fmt.Errorf("sending PUBLISH: %w", err)
	}
	return nil
}

// Subscribe subscribes to topic at QoS 0 and waits for the SUBACK.
func (c *Client) Subscribe(topic string) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}

	id := uint16(c.packetID.Add(1))

	buf, err := packet.Subscribe{PacketID: id, Topic: topic, QoS: 0}.Encode()
	if err != nil {
		return fmt.Errorf("encoding SUBSCRIBE: %w", err)
	}

	if _, err := c.conn.Send(buf); err != nil {
		return fmt.Errorf("sending SUBSCRIBE: %w", err)
	}

	select {
	case ack := <-c.subackCh:
		if ack.PacketID != id {
			return fmt.Errorf("SUBACK for packet %d, expected %d", ack.PacketID, id)
		}
		for _, rc := range ack.ReturnCodes {
			if rc == 0x80 {
				return fmt.Errorf("broker rejected subscription to %q", topic)
			}
		}
		return nil
	case <-time.After(handshakeTimeout):
		return fmt.Errorf("timeout waiting for SUBACK")
	}
}

// Disconnect sends DISCONNECT and closes the connection gracefully. The
// runtime handles are released afterwards.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}

	if buf, err := packet.EncodeNaked(packet.DISCONNECT); err == nil {
		_, _ = c.conn.Send(buf) // best effort
	}

	err := c.conn.TryClose()
	c.rt.Close()
	c.conn = nil
	c.rt = nil

	if err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}
	return nil
}

// State returns the transport state of the underlying connection.
func (c *Client) State() transport.State {
	if c.conn == nil {
		return transport.StateIdle
	}
	return c.conn.State()
}
