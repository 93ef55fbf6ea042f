// Package mocks provides scripted test doubles for quicmq. The mock
// provider implements the full provider surface in memory; tests fire
// connection and stream events from their own goroutines, standing in for
// the threads a real QUIC implementation owns.
package mocks

import (
	"fmt"
	"sync"

	"pcr1024/quicmq/pkg/provider"
)

// MockProvider implements provider.Provider with scriptable failures and
// full handle accounting.
type MockProvider struct {
	mu sync.Mutex

	OpenErr         error
	RegistrationErr error

	// ConfigurationErr is copied into every registration opened from this
	// provider.
	ConfigurationErr error

	// OnStart is copied into every registration opened from this provider.
	OnStart func(c *MockConnection)

	opened        bool
	closed        int
	registrations []*MockRegistration
}

// NewMockProvider creates a mock provider that succeeds everywhere.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Open acquires the binding, or fails with OpenErr.
func (p *MockProvider) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.OpenErr != nil {
		return p.OpenErr
	}
	p.opened = true
	return nil
}

// Close releases the binding.
func (p *MockProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = false
	p.closed++
}

// Opened reports whether the binding is currently held.
func (p *MockProvider) Opened() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// CloseCount returns how often the binding was released.
func (p *MockProvider) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// NewRegistration opens a mock registration, or fails with
// RegistrationErr.
func (p *MockProvider) NewRegistration(profile provider.Profile) (provider.Registration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.RegistrationErr != nil {
		return nil, p.RegistrationErr
	}

	reg := &MockRegistration{Profile: profile, OnStart: p.OnStart, ConfigurationErr: p.ConfigurationErr}
	p.registrations = append(p.registrations, reg)
	return reg, nil
}

// Registrations returns all registrations opened so far.
func (p *MockProvider) Registrations() []*MockRegistration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockRegistration(nil), p.registrations...)
}

// MockRegistration implements provider.Registration.
type MockRegistration struct {
	mu sync.Mutex

	Profile          provider.Profile
	ConfigurationErr error
	ConnectionErr    error

	// ConnectionStartErr is copied into every connection opened from this
	// registration.
	ConnectionStartErr error

	// OnStart is invoked (on its own goroutine) when a connection created
	// from this registration is started. Tests drive handshake outcomes
	// from here.
	OnStart func(c *MockConnection)

	closed      int
	connections []*MockConnection
}

// NewConfiguration opens a mock configuration, or fails with
// ConfigurationErr.
func (r *MockRegistration) NewConfiguration(s provider.Settings) (provider.Configuration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ConfigurationErr != nil {
		return nil, r.ConfigurationErr
	}
	return &MockConfiguration{Settings: s}, nil
}

// NewConnection creates a mock connection with the handler installed.
func (r *MockRegistration) NewConnection(h provider.ConnectionHandler) (provider.Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ConnectionErr != nil {
		return nil, r.ConnectionErr
	}

	conn := &MockConnection{Handler: h, reg: r, StartErr: r.ConnectionStartErr}
	r.connections = append(r.connections, conn)
	return conn, nil
}

// Close releases the registration.
func (r *MockRegistration) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

// CloseCount returns how often the registration was released.
func (r *MockRegistration) CloseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Connections returns all connections created so far.
func (r *MockRegistration) Connections() []*MockConnection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*MockConnection(nil), r.connections...)
}

// MockConfiguration implements provider.Configuration and records the
// settings it was opened with.
type MockConfiguration struct {
	mu       sync.Mutex
	Settings provider.Settings
	closed   int
}

// Close releases the configuration.
func (c *MockConfiguration) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

// CloseCount returns how often the configuration was released.
func (c *MockConfiguration) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// MockConnection implements provider.Connection. The installed handler is
// exported so tests can deliver events directly.
type MockConnection struct {
	mu sync.Mutex

	Handler provider.ConnectionHandler

	StartErr      error
	OpenStreamErr error

	// StreamStartErr is copied into every stream opened on this
	// connection.
	StreamStartErr error

	reg *MockRegistration

	bindAddr string
	started  bool
	host     string
	port     uint16

	shutdowns int
	closed    int

	streams []*MockStream
}

// SetBindAddr records the requested local address.
func (c *MockConnection) SetBindAddr(addr string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindAddr = addr
	return nil
}

// BindAddr returns the recorded local address.
func (c *MockConnection) BindAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindAddr
}

// Start records the target and triggers the registration's OnStart hook.
func (c *MockConnection) Start(conf provider.Configuration, host string, port uint16) error {
	c.mu.Lock()
	if c.StartErr != nil {
		err := c.StartErr
		c.mu.Unlock()
		return err
	}
	c.started = true
	c.host = host
	c.port = port
	hook := c.reg.OnStart
	c.mu.Unlock()

	if hook != nil {
		go hook(c)
	}
	return nil
}

// Started reports whether Start succeeded.
func (c *MockConnection) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Target returns the host and port passed to Start.
func (c *MockConnection) Target() (string, uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.host, c.port
}

// Shutdown records the graceful shutdown request.
func (c *MockConnection) Shutdown() {
	c.mu.Lock()
	c.shutdowns++
	c.mu.Unlock()
}

// ShutdownCount returns how often Shutdown was requested.
func (c *MockConnection) ShutdownCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdowns
}

// Close records the handle release.
func (c *MockConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
}

// CloseCount returns how often the handle was released.
func (c *MockConnection) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// OpenStream creates a mock stream with the handler installed.
func (c *MockConnection) OpenStream(h provider.StreamHandler) (provider.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.OpenStreamErr != nil {
		return nil, c.OpenStreamErr
	}

	st := &MockStream{Handler: h, StartErr: c.StreamStartErr}
	c.streams = append(c.streams, st)
	return st, nil
}

// Streams returns all streams opened so far.
func (c *MockConnection) Streams() []*MockStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MockStream(nil), c.streams...)
}

// MockStream implements provider.Stream and records every submission.
type MockStream struct {
	mu sync.Mutex

	Handler provider.StreamHandler

	StartErr error
	SendErr  error

	started bool
	closed  int

	sent     [][]byte
	sendCtxs []any

	receiveEnabled []bool
}

// Start marks the stream started.
func (s *MockStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.StartErr != nil {
		return s.StartErr
	}
	s.started = true
	return nil
}

// Started reports whether Start succeeded.
func (s *MockStream) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Send records the submission.
func (s *MockStream) Send(buf []byte, sendCtx any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return fmt.Errorf("stream not started")
	}
	if s.SendErr != nil {
		return s.SendErr
	}

	s.sent = append(s.sent, buf)
	s.sendCtxs = append(s.sendCtxs, sendCtx)
	return nil
}

// Sent returns the submitted buffers in order.
func (s *MockStream) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}

// SendContexts returns the submission contexts in order.
func (s *MockStream) SendContexts() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.sendCtxs...)
}

// CompleteSend delivers the completion for the i-th submission.
func (s *MockStream) CompleteSend(i int, canceled bool) {
	s.mu.Lock()
	ctx := s.sendCtxs[i]
	s.mu.Unlock()

	s.Handler.OnSendComplete(ctx, canceled)
}

// Deliver hands a receive event with the given buffers to the handler and
// returns the event for consumption accounting.
func (s *MockStream) Deliver(buffers [][]byte) *provider.ReceiveEvent {
	var total uint64
	for _, b := range buffers {
		total += uint64(len(b))
	}

	ev := &provider.ReceiveEvent{Buffers: buffers, Total: total}
	s.Handler.OnReceive(ev)
	return ev
}

// SetReceiveEnabled records the toggle.
func (s *MockStream) SetReceiveEnabled(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiveEnabled = append(s.receiveEnabled, enabled)
	return nil
}

// ReceiveEnableCalls returns the recorded toggles in order.
func (s *MockStream) ReceiveEnableCalls() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.receiveEnabled...)
}

// Close records the handle release.
func (s *MockStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

// CloseCount returns how often the handle was released.
func (s *MockStream) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// compile-time interface checks
var (
	_ provider.Provider      = (*MockProvider)(nil)
	_ provider.Registration  = (*MockRegistration)(nil)
	_ provider.Configuration = (*MockConfiguration)(nil)
	_ provider.Connection    = (*MockConnection)(nil)
	_ provider.Stream        = (*MockStream)(nil)
)
