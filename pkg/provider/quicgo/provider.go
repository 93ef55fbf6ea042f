// Package quicgo binds the transport shim to the quic-go implementation.
// It owns the background goroutines that turn quic-go's blocking calls
// into the callback events the shim consumes.
package quicgo

import (
	"crypto/tls"
	"fmt"
	"time"

	quic "github.com/quic-go/quic-go"

	"pcr1024/quicmq/pkg/provider"
)

// idleTimeoutDisabled is the MaxIdleTimeout used when the shim asks for no
// transport-level idle timeout. quic-go treats zero as "use the default",
// so disabling means pushing the deadline out beyond any plausible
// connection lifetime.
const idleTimeoutDisabled = 1000000 * time.Hour

// Provider is the quic-go binding. It carries no state; New returns a
// ready-to-use value.
type Provider struct{}

// New creates the quic-go provider binding.
func New() *Provider {
	return &Provider{}
}

// Open acquires the binding. The library is linked in, so there is nothing
// to load; Open exists to satisfy the init/cleanup discipline.
func (p *Provider) Open() error {
	return nil
}

// Close releases the binding.
func (p *Provider) Close() {}

// NewRegistration opens an execution context for the given profile.
func (p *Provider) NewRegistration(profile provider.Profile) (provider.Registration, error) {
	return &registration{profile: profile}, nil
}

// registration carries the execution profile. quic-go schedules on the Go
// runtime, so the profile is recorded but changes no TLS or QUIC setting.
type registration struct {
	profile provider.Profile
}

// NewConfiguration builds the TLS and QUIC configurations applied to
// connections at start.
func (r *registration) NewConfiguration(s provider.Settings) (provider.Configuration, error) {
	if s.ALPN == "" {
		return nil, fmt.Errorf("ALPN must not be empty")
	}

	tlsConf := &tls.Config{
		MinVersion:         tls.VersionTLS13,
		NextProtos:         []string{s.ALPN},
		InsecureSkipVerify: !s.Credentials.VerifyServerCert,
	}

	idle := s.IdleTimeout
	if idle == 0 {
		idle = idleTimeoutDisabled
	}

	quicConf := &quic.Config{
		MaxIdleTimeout: idle,
	}

	return &configuration{
		tls:  tlsConf,
		quic: quicConf,
	}, nil
}

// NewConnection creates an idle connection handle with the given event
// handler installed.
func (r *registration) NewConnection(h provider.ConnectionHandler) (provider.Connection, error) {
	if h == nil {
		return nil, fmt.Errorf("nil connection handler")
	}
	return newConnection(h), nil
}

// Close releases the registration.
func (r *registration) Close() {}

// configuration holds the frozen TLS and QUIC settings.
type configuration struct {
	tls  *tls.Config
	quic *quic.Config
}

// Close releases the configuration.
func (c *configuration) Close() {}
