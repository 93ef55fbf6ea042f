package config

import (
	"pcr1024/quicmq/pkg/provider"
)

// Dependencies contains injectable dependencies for testing and
// customization. All fields are optional and default implementations are
// used when nil.
type Dependencies struct {
	// Provider overrides the QUIC provider binding. Tests install the
	// scripted provider here; production code leaves it nil and gets the
	// quic-go binding.
	Provider provider.Provider
}

// GetProvider returns the configured provider override, or nil when the
// default binding should be used.
func GetProvider(deps *Dependencies) provider.Provider {
	if deps == nil {
		return nil
	}
	return deps.Provider
}
