package integration

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"

	"pcr1024/quicmq/pkg/client"
	"pcr1024/quicmq/pkg/config"
	"pcr1024/quicmq/pkg/log"
	"pcr1024/quicmq/pkg/transport"
	"pcr1024/quicmq/test/helpers"
)

// These tests exercise the full stack against a real quic-go broker on
// localhost. They share the process-wide provider binding and run
// sequentially.

func clientConfig(host string, port int) *config.Client {
	return &config.Client{
		Host:     host,
		Port:     port,
		ClientID: "it-" + config.GenerateID(),
		Topic:    "test_signal",
		Profile:  config.ProfileLowLatency,
		Logger:   log.NewLogger(testing.Verbose()),
	}
}

func TestHappyPath(t *testing.T) {
	defer transport.Cleanup()

	broker, err := helpers.StartBroker()
	if err != nil {
		t.Fatalf("StartBroker() error = %v", err)
	}
	defer broker.Close()

	host, port := broker.Addr()

	c, err := client.New(clientConfig(host, port))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	received := make(chan []byte, 16)
	c.SetMessageHandler(func(topic string, payload []byte) {
		received <- payload
	})

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := c.State(); got != transport.StateConnected {
		t.Fatalf("State() = %s, want connected", got)
	}

	if err := c.Subscribe("test_signal"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	// the broker loops publications back to matching subscribers
	if err := c.Publish("test_signal", []byte("HELLO")); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if !bytes.Equal(payload, []byte("HELLO")) {
			t.Errorf("received %q, want HELLO", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for the looped-back publication")
	}

	// graceful close: state reaches closed, further sends fail
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if err := c.Publish("test_signal", []byte("late")); err == nil {
		t.Error("Publish() after Disconnect = nil error")
	}
}

func TestServerAbsent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping handshake-timeout test in short mode")
	}

	defer transport.Cleanup()

	// reserve a port with nothing listening on it
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := pc.LocalAddr().(*net.UDPAddr).Port
	pc.Close()

	c, err := client.New(clientConfig("127.0.0.1", port))
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	err = c.Connect()
	if !errors.Is(err, transport.ErrHandshakeFailed) {
		t.Fatalf("Connect() error = %v, want ErrHandshakeFailed", err)
	}

	// the failed connection was discarded
	if got := c.State(); got != transport.StateIdle {
		t.Errorf("State() = %s, want idle", got)
	}
}

func TestTwoClients_PubSub(t *testing.T) {
	defer transport.Cleanup()

	broker, err := helpers.StartBroker()
	if err != nil {
		t.Fatalf("StartBroker() error = %v", err)
	}
	defer broker.Close()

	host, port := broker.Addr()

	subscriber, err := client.New(clientConfig(host, port))
	if err != nil {
		t.Fatal(err)
	}

	received := make(chan []byte, 16)
	subscriber.SetMessageHandler(func(topic string, payload []byte) {
		received <- payload
	})

	if err := subscriber.Connect(); err != nil {
		t.Fatalf("subscriber Connect() error = %v", err)
	}
	defer subscriber.Disconnect()

	if err := subscriber.Subscribe("test_signal"); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	publisher, err := client.New(clientConfig(host, port))
	if err != nil {
		t.Fatal(err)
	}
	if err := publisher.Connect(); err != nil {
		t.Fatalf("publisher Connect() error = %v", err)
	}
	defer publisher.Disconnect()

	want := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, payload := range want {
		if err := publisher.Publish("test_signal", payload); err != nil {
			t.Fatalf("Publish(%q) error = %v", payload, err)
		}
	}

	for _, wantPayload := range want {
		select {
		case payload := <-received:
			if !bytes.Equal(payload, wantPayload) {
				t.Errorf("received %q, want %q", payload, wantPayload)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for %q", wantPayload)
		}
	}
}
