// Package transport implements the client-side shim that carries framed
// MQTT packet traffic over a single bidirectional QUIC stream. It bridges
// the provider's asynchronous callbacks to the synchronous connect/close
// calls the MQTT layer expects, exposes incoming scatter/gather buffers as
// one logical byte stream, and copies outgoing packets into provider-owned
// send descriptors.
package transport

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"pcr1024/quicmq/pkg/config"
	"pcr1024/quicmq/pkg/log"
	"pcr1024/quicmq/pkg/provider"
)

// alpn pins the application protocol at the TLS layer.
const alpn = "mqtt"

// binding holds the process-wide provider function table.
var binding struct {
	mu sync.Mutex
	p  provider.Provider
}

// Init installs and opens the process-wide provider binding. A second call
// before Cleanup is a no-op success; the already-installed binding stays.
func Init(p provider.Provider) error {
	binding.mu.Lock()
	defer binding.mu.Unlock()

	if binding.p != nil {
		return nil
	}
	if p == nil {
		return fmt.Errorf("nil provider: %w", ErrInvalidArgument)
	}

	if err := p.Open(); err != nil {
		return fmt.Errorf("%v: %w", err, ErrProviderUnavailable)
	}

	binding.p = p
	return nil
}

// Cleanup releases the provider binding if held. Safe to call when Init
// never succeeded.
func Cleanup() {
	binding.mu.Lock()
	defer binding.mu.Unlock()

	if binding.p != nil {
		binding.p.Close()
		binding.p = nil
	}
}

// Runtime owns the registration and configuration handles opened by
// Configure. Connections are created against it.
type Runtime struct {
	reg    provider.Registration
	conf   provider.Configuration
	logger *log.Logger

	connSeq atomic.Uint64
}

// Configure opens a registration for the configured execution profile and
// a configuration with ALPN "mqtt", the transport-level idle timeout
// disabled (MQTT keep-alive governs liveness), and client credentials per
// the configured validation policy. On failure, handles opened so far are
// closed in reverse order.
func Configure(cfg *config.Client) (*Runtime, error) {
	binding.mu.Lock()
	p := binding.p
	binding.mu.Unlock()

	if p == nil {
		return nil, fmt.Errorf("transport not initialized: %w", ErrProviderUnavailable)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.Verbose)
	}

	reg, err := p.NewRegistration(cfg.Profile.ToProvider())
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrRegistrationFailed)
	}

	settings := provider.Settings{
		ALPN:        alpn,
		IdleTimeout: 0,
		Credentials: provider.Credentials{
			VerifyServerCert: cfg.VerifyServerCert,
		},
	}

	conf, err := reg.NewConfiguration(settings)
	if err != nil {
		reg.Close()
		if errors.Is(err, provider.ErrCredentials) {
			return nil, fmt.Errorf("%v: %w", err, ErrCredentialFailed)
		}
		return nil, fmt.Errorf("%v: %w", err, ErrConfigurationFailed)
	}

	if !cfg.VerifyServerCert {
		logger.Warnf("Server certificate validation is disabled")
	}

	return &Runtime{
		reg:    reg,
		conf:   conf,
		logger: logger,
	}, nil
}

// NewConn creates an idle connection controller. Incoming bytes on its
// control stream are handed to h. Each controller logs under its own
// connection scope.
func (rt *Runtime) NewConn(h PacketHandler) *Conn {
	c := &Conn{
		state:   StateIdle,
		reg:     rt.reg,
		conf:    rt.conf,
		handler: h,
		logger:  rt.logger.WithScope("conn %d", rt.connSeq.Add(1)),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Close releases the configuration and registration handles in reverse
// order of acquisition.
func (rt *Runtime) Close() {
	rt.conf.Close()
	rt.reg.Close()
}
