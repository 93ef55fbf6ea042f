package quicgo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	quic "github.com/quic-go/quic-go"

	"pcr1024/quicmq/pkg/format"
	"pcr1024/quicmq/pkg/provider"
)

// connection is one quic-go connection handle. Start launches the dial
// goroutine; it and the connection watcher deliver all events.
type connection struct {
	handler provider.ConnectionHandler

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	conn     *quic.Conn
	udp      *net.UDPConn
	bindAddr *net.UDPAddr
	streams  []*stream
	started  bool

	appClosed atomic.Bool
}

func newConnection(h provider.ConnectionHandler) *connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &connection{
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetBindAddr requests the given local address for the UDP socket. A bare
// host or IP gets an ephemeral port.
func (c *connection) SetBindAddr(addr string) error {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "0")
	}

	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	c.mu.Lock()
	c.bindAddr = udpAddr
	c.mu.Unlock()
	return nil
}

// Start launches the handshake toward host:port. The outcome arrives
// through the connection handler.
func (c *connection) Start(conf provider.Configuration, host string, port uint16) error {
	cfg, ok := conf.(*configuration)
	if !ok {
		return fmt.Errorf("configuration not created by this provider: %T", conf)
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("connection already started")
	}
	c.started = true
	c.mu.Unlock()

	go c.run(cfg, format.Addr(host, int(port)))
	return nil
}

// run dials, reports the handshake outcome, and watches the connection
// until it dies.
func (c *connection) run(cfg *configuration, addr string) {
	qc, err := c.dial(cfg, addr)
	if err != nil {
		c.handler.OnShutdownByTransport(err, false)
		c.closeSocket()
		c.handler.OnShutdownComplete(c.appClosed.Load())
		return
	}

	c.mu.Lock()
	c.conn = qc
	c.mu.Unlock()

	c.handler.OnConnected()

	<-qc.Context().Done()
	cause := context.Cause(qc.Context())

	c.reportShutdown(cause)

	c.mu.Lock()
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()

	for _, st := range streams {
		st.finish()
	}

	c.closeSocket()
	c.handler.OnShutdownComplete(c.appClosed.Load())
}

// dial resolves the peer and performs the QUIC handshake, binding the
// local socket first when an address was requested.
func (c *connection) dial(cfg *configuration, addr string) (*quic.Conn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("net.ResolveUDPAddr(udp, %s): %w", addr, err)
	}

	c.mu.Lock()
	bindAddr := c.bindAddr
	c.mu.Unlock()

	if bindAddr == nil {
		qc, err := quic.DialAddr(c.ctx, addr, cfg.tls, cfg.quic)
		if err != nil {
			return nil, fmt.Errorf("quic.DialAddr(%s): %w", addr, err)
		}
		return qc, nil
	}

	udpConn, err := listenUDPReuse(c.ctx, bindAddr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", bindAddr, err)
	}

	c.mu.Lock()
	c.udp = udpConn
	c.mu.Unlock()

	tr := &quic.Transport{Conn: udpConn}
	qc, err := tr.Dial(c.ctx, raddr, cfg.tls, cfg.quic)
	if err != nil {
		return nil, fmt.Errorf("quic dial %s from %s: %w", addr, bindAddr, err)
	}
	return qc, nil
}

// listenUDPReuse binds a UDP socket with SO_REUSEADDR so benchmark runs
// can recycle a fixed local port quickly.
func listenUDPReuse(ctx context.Context, laddr *net.UDPAddr) (*net.UDPConn, error) {
	lc := &net.ListenConfig{
		Control: func(network, address string, rc syscall.RawConn) error {
			var sockOptErr error
			err := rc.Control(func(fd uintptr) {
				sockOptErr = setSockoptReuseAddr(fd)
			})
			if err != nil {
				return err
			}
			return sockOptErr
		},
	}

	packetConn, err := lc.ListenPacket(ctx, "udp", laddr.String())
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", laddr, err)
	}

	udpConn, ok := packetConn.(*net.UDPConn)
	if !ok {
		packetConn.Close()
		return nil, fmt.Errorf("expected *net.UDPConn, got %T", packetConn)
	}

	return udpConn, nil
}

// reportShutdown classifies the connection's terminal error into the
// initiated-by events. A shutdown the application started itself gets no
// initiated event, only the completion.
func (c *connection) reportShutdown(cause error) {
	var idleErr *quic.IdleTimeoutError
	var appErr *quic.ApplicationError

	switch {
	case errors.As(cause, &idleErr):
		c.handler.OnShutdownByTransport(cause, true)
	case errors.As(cause, &appErr):
		if appErr.Remote {
			c.handler.OnShutdownByPeer(uint64(appErr.ErrorCode))
		}
		// local application close: completion only
	default:
		if !c.appClosed.Load() {
			c.handler.OnShutdownByTransport(cause, false)
		}
	}
}

// Shutdown initiates a graceful transport shutdown with no error code. A
// connection still handshaking has its dial canceled instead.
func (c *connection) Shutdown() {
	c.mu.Lock()
	qc := c.conn
	c.mu.Unlock()

	if qc == nil {
		c.cancel()
		return
	}
	_ = qc.CloseWithError(0, "")
}

// Close releases the handle. The underlying connection is torn down if it
// is still alive.
func (c *connection) Close() {
	c.appClosed.Store(true)
	c.cancel()

	c.mu.Lock()
	qc := c.conn
	c.mu.Unlock()

	if qc != nil {
		_ = qc.CloseWithError(0, "")
	}
}

// closeSocket closes an owned bound socket, if any.
func (c *connection) closeSocket() {
	c.mu.Lock()
	udp := c.udp
	c.udp = nil
	c.mu.Unlock()

	if udp != nil {
		_ = udp.Close()
	}
}

// OpenStream opens one bidirectional stream on the established connection.
func (c *connection) OpenStream(h provider.StreamHandler) (provider.Stream, error) {
	if h == nil {
		return nil, fmt.Errorf("nil stream handler")
	}

	c.mu.Lock()
	qc := c.conn
	c.mu.Unlock()

	if qc == nil {
		return nil, fmt.Errorf("connection not established")
	}

	qs, err := qc.OpenStream()
	if err != nil {
		return nil, fmt.Errorf("conn.OpenStream: %w", err)
	}

	st := newStream(qs, h)

	c.mu.Lock()
	c.streams = append(c.streams, st)
	c.mu.Unlock()

	return st, nil
}
