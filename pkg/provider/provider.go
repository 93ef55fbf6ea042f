// Package provider defines the surface the transport shim consumes from a
// QUIC implementation. The shim never talks to a QUIC library directly; it
// holds these interfaces and installs the two callback handlers, so the
// real binding (pkg/provider/quicgo) and the scripted test binding (mocks)
// are interchangeable.
package provider

import (
	"errors"
	"time"
)

// ErrCredentials marks configuration failures caused by credential loading,
// as opposed to other configuration problems. Bindings wrap it so the shim
// can surface the distinction to callers.
var ErrCredentials = errors.New("credential load failed")

// Profile selects the execution characteristics of the provider's event
// processing, e.g. latency-biased vs throughput-biased scheduling.
type Profile int

// Execution profiles.
const (
	ProfileLowLatency Profile = iota
	ProfileScavenger
	ProfileMaxThroughput
	ProfileRealTime
)

// String returns the string representation of the Profile.
func (p Profile) String() string {
	switch p {
	case ProfileLowLatency:
		return "low_latency"
	case ProfileScavenger:
		return "scavenger"
	case ProfileMaxThroughput:
		return "max_throughput"
	case ProfileRealTime:
		return "real_time"
	default:
		return ""
	}
}

// Credentials configures the client side of the TLS handshake. The client
// presents no certificate; the only knob is whether the server certificate
// is validated.
type Credentials struct {
	VerifyServerCert bool
}

// Settings is the configuration opened against a registration. IdleTimeout
// of zero disables the transport-level idle timeout entirely; liveness is
// then the application's responsibility.
type Settings struct {
	ALPN        string
	IdleTimeout time.Duration
	Credentials Credentials
}

// ReceiveEvent carries one delivery of incoming bytes as a scatter list of
// provider-owned buffers. The buffers are valid only for the duration of
// the OnReceive call. The handler must set Consumed before returning; a
// value below Total tells the provider to retain the unconsumed suffix and
// redeliver it once receiving is re-enabled.
type ReceiveEvent struct {
	Buffers  [][]byte
	Total    uint64
	Consumed uint64
}

// ConnectionHandler receives connection events. Calls are made from
// provider-owned goroutines and must run to completion without blocking on
// provider operations.
type ConnectionHandler interface {
	OnConnected()
	// OnShutdownByTransport reports a transport-initiated shutdown. idle is
	// true when the connection was shut down for idling rather than error.
	OnShutdownByTransport(err error, idle bool)
	// OnShutdownByPeer reports the application error code sent by the peer.
	OnShutdownByPeer(code uint64)
	// OnShutdownComplete is the final event for a connection. appClosing
	// reports whether the shim already closed the handle itself.
	OnShutdownComplete(appClosing bool)
}

// StreamHandler receives stream events under the same threading rules as
// ConnectionHandler.
type StreamHandler interface {
	// OnSendComplete returns the per-submission context passed to Send.
	// canceled is true when the data was not (fully) delivered.
	OnSendComplete(sendCtx any, canceled bool)
	OnReceive(ev *ReceiveEvent)
	OnPeerSendShutdown()
	OnShutdownComplete(appClosing bool)
}

// Provider is the process-wide function table of the QUIC implementation.
type Provider interface {
	// Open acquires the binding. Must be matched by Close.
	Open() error
	Close()
	NewRegistration(profile Profile) (Registration, error)
}

// Registration is an execution context scoped to one profile. Connections
// and configurations are opened against it.
type Registration interface {
	NewConfiguration(s Settings) (Configuration, error)
	NewConnection(h ConnectionHandler) (Connection, error)
	Close()
}

// Configuration holds the ALPN, timeout and credential settings applied to
// connections at start.
type Configuration interface {
	Close()
}

// Connection is one QUIC connection handle. Start returns immediately; the
// outcome of the handshake arrives through the ConnectionHandler.
type Connection interface {
	// SetBindAddr requests a specific local address. An error here is
	// advisory; the connection can still be started without the binding.
	SetBindAddr(addr string) error
	Start(conf Configuration, host string, port uint16) error
	// Shutdown initiates a graceful transport shutdown with no error code.
	Shutdown()
	// Close releases the handle. Safe after OnShutdownComplete.
	Close()
	OpenStream(h StreamHandler) (Stream, error)
}

// Stream is one bidirectional stream handle.
type Stream interface {
	Start() error
	// Send submits one buffer. sendCtx is handed back verbatim through
	// OnSendComplete. The buffer must remain untouched until then.
	Send(buf []byte, sendCtx any) error
	// SetReceiveEnabled resumes (true) or pauses (false) receive delivery.
	// Required after a partial consume to obtain the retained suffix.
	SetReceiveEnabled(enabled bool) error
	Close()
}
