package transport

import "errors"

// Error kinds surfaced to the MQTT layer. Call sites wrap these with
// context via fmt.Errorf and %w so errors.Is keeps working.
var (
	// ErrProviderUnavailable means the QUIC provider binding could not be
	// acquired, or no binding is installed.
	ErrProviderUnavailable = errors.New("quic provider unavailable")

	// ErrRegistrationFailed means the execution context could not be opened.
	ErrRegistrationFailed = errors.New("registration failed")

	// ErrConfigurationFailed means the connection configuration could not
	// be opened.
	ErrConfigurationFailed = errors.New("configuration failed")

	// ErrCredentialFailed means client credentials could not be loaded.
	ErrCredentialFailed = errors.New("credential load failed")

	// ErrHandshakeFailed means the connection ended in the failed state:
	// the transport or the peer rejected the handshake.
	ErrHandshakeFailed = errors.New("handshake failed")

	// ErrStreamSetup means the connection is up but the control stream
	// could not be opened or started. The connection stays connected
	// without a control stream; Conn has no call that opens one later.
	ErrStreamSetup = errors.New("stream setup failed")

	// ErrProvider wraps a failed provider operation during connect/close.
	ErrProvider = errors.New("provider operation failed")

	// ErrInvalidArgument means a nil handle or missing session state.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUnknownState means a wait loop observed a state it does not
	// classify.
	ErrUnknownState = errors.New("unknown connection state")
)
