package transport

import (
	"fmt"
	"sync"

	"pcr1024/quicmq/pkg/format"
	"pcr1024/quicmq/pkg/log"
	"pcr1024/quicmq/pkg/provider"
)

// State is the connection lifecycle state. It advances monotonically along
// idle -> connecting -> connected -> closed, or idle -> connecting ->
// failed. closed and failed are terminal.
type State int

// Connection states.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateClosed
	StateFailed
)

// String returns the string representation of the State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return ""
	}
}

// Conn is the per-client connection controller. It owns one provider
// connection handle and the state monitor that rendezvouses synchronous
// TryConnect/TryClose callers with the asynchronous connection events
// delivered on provider goroutines.
//
// The state variable is written only by the event callbacks (plus the
// initial transition into connecting, and the move to failed when a
// provider call of TryConnect is rejected) and read under the mutex. The mutex
// is never held across a provider operation.
type Conn struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state State

	handle provider.Connection
	stream *Stream

	reg     provider.Registration
	conf    provider.Configuration
	handler PacketHandler
	logger  *log.Logger
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stream returns the control stream, or nil before one is established.
func (c *Conn) Stream() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// TryConnect opens and starts the provider connection toward host:port and
// blocks until the handshake succeeds, fails, or is abandoned by the
// provider. On success the bidirectional control stream is opened and
// started as well.
//
// bindAddr optionally requests a local address; a binding failure is
// logged as a warning and the connect proceeds without it. A stream setup
// failure after a successful handshake returns ErrStreamSetup but leaves
// the connection connected.
func (c *Conn) TryConnect(host string, port uint16, bindAddr string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connection already used, state %s: %w", state, ErrInvalidArgument)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	addr := format.Addr(host, int(port))

	handle, err := c.reg.NewConnection(connEvents{c})
	if err != nil {
		c.abandon()
		return fmt.Errorf("opening connection: %v: %w", err, ErrProvider)
	}

	c.mu.Lock()
	c.handle = handle
	c.mu.Unlock()

	if bindAddr != "" {
		if err := handle.SetBindAddr(bindAddr); err != nil {
			c.logger.Warnf("Could not bind local address %s: %s", bindAddr, err)
		}
	}

	if err := handle.Start(c.conf, host, port); err != nil {
		handle.Close()
		c.abandon()
		return fmt.Errorf("starting connection to %s: %v: %w", addr, err, ErrProvider)
	}

	c.logger.Infof("Connecting to %s", addr)

	c.mu.Lock()
	for c.state == StateConnecting {
		c.cond.Wait()
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateConnected:
		// fall through to stream setup
	case StateFailed:
		return fmt.Errorf("connecting to %s: %w", addr, ErrHandshakeFailed)
	default:
		return fmt.Errorf("connect ended in state %s: %w", state, ErrUnknownState)
	}

	if err := c.openStream(); err != nil {
		c.logger.Errorf("Stream setup on %s: %s", addr, err)
		return fmt.Errorf("%v: %w", err, ErrStreamSetup)
	}

	c.logger.Debugf("Connected to %s, control stream ready", addr)
	return nil
}

// openStream opens and starts the bidirectional control stream. On failure
// the stream handle is closed and the connection is left untouched.
func (c *Conn) openStream() error {
	st := newStream(c.handler, c.logger.WithScope("stream"))

	handle, err := c.handle.OpenStream(streamEvents{st})
	if err != nil {
		return fmt.Errorf("opening stream: %v", err)
	}
	st.handle = handle

	if err := handle.Start(); err != nil {
		handle.Close()
		return fmt.Errorf("starting stream: %v", err)
	}

	c.mu.Lock()
	c.stream = st
	c.mu.Unlock()

	return nil
}

// abandon marks a connect attempt failed before any handshake ran, e.g.
// when a provider call was rejected. The handle is already closed (or was
// never opened) at this point.
func (c *Conn) abandon() {
	c.mu.Lock()
	c.handle = nil
	c.state = StateFailed
	c.cond.Broadcast()
	c.mu.Unlock()
}

// TryClose requests a graceful transport shutdown and blocks until the
// connection leaves the connected state. It returns nil iff the final
// state is closed.
func (c *Conn) TryClose() error {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()

	if handle == nil {
		return fmt.Errorf("no connection handle: %w", ErrInvalidArgument)
	}

	handle.Shutdown()

	c.mu.Lock()
	for c.state == StateConnected {
		c.cond.Wait()
	}
	state := c.state
	c.mu.Unlock()

	if state != StateClosed {
		return fmt.Errorf("close ended in state %s: %w", state, ErrUnknownState)
	}
	return nil
}

// Send submits one framed packet on the control stream.
func (c *Conn) Send(p []byte) (int, error) {
	c.mu.Lock()
	state := c.state
	st := c.stream
	c.mu.Unlock()

	if state != StateConnected {
		return 0, fmt.Errorf("connection in state %s: %w", state, ErrInvalidArgument)
	}
	if st == nil {
		return 0, fmt.Errorf("no control stream: %w", ErrInvalidArgument)
	}

	return st.Send(p)
}

// connEvents adapts provider connection callbacks onto the Conn. The
// callbacks only transition state and wake waiters; errors are observed by
// the blocked foreground caller, never propagated from here.
type connEvents struct {
	c *Conn
}

// OnConnected moves connecting to connected and wakes waiters.
func (e connEvents) OnConnected() {
	c := e.c

	c.mu.Lock()
	if c.state == StateConnecting {
		c.state = StateConnected
		c.cond.Broadcast()
	}
	c.mu.Unlock()

	c.logger.Debugf("Connection handshake complete")
}

// OnShutdownByTransport logs the shutdown reason, distinguishing an idle
// timeout from transport errors.
func (e connEvents) OnShutdownByTransport(err error, idle bool) {
	if idle {
		e.c.logger.Infof("Connection shut down on idle")
		return
	}
	e.c.logger.Infof("Connection shut down by transport: %v", err)
}

// OnShutdownByPeer logs the application error code sent by the peer.
func (e connEvents) OnShutdownByPeer(code uint64) {
	e.c.logger.Infof("Connection shut down by peer, code %d", code)
}

// OnShutdownComplete is the final transition: connecting becomes failed,
// connected becomes closed. The handle is closed here unless the shim
// closed it already.
func (e connEvents) OnShutdownComplete(appClosing bool) {
	c := e.c

	c.mu.Lock()
	switch c.state {
	case StateConnecting:
		c.state = StateFailed
	case StateConnected:
		c.state = StateClosed
	}
	handle := c.handle
	c.handle = nil
	c.cond.Broadcast()
	c.mu.Unlock()

	if !appClosing && handle != nil {
		handle.Close()
	}

	c.logger.Debugf("Connection shutdown complete, state %s", c.State())
}
