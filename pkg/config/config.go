// Package config defines configuration structures and validation logic
// for quicmq, including execution profiles, connection details, and the
// credential policy applied to the QUIC handshake.
package config

import (
	"fmt"
	mrand "math/rand"

	"pcr1024/quicmq/pkg/log"
	"pcr1024/quicmq/pkg/provider"
)

// Client contains the settings for one MQTT-over-QUIC client connection.
type Client struct {
	Host     string
	Port     int
	BindAddr string
	ClientID string
	Topic    string

	Profile Profile

	// VerifyServerCert enables validation of the server certificate. The
	// default (false) matches the shipped benchmark behavior; production
	// callers should set it.
	VerifyServerCert bool

	Verbose bool
	Deps    *Dependencies
	Logger  *log.Logger
}

// Profile is the abstract execution-profile tag handed to the provider.
type Profile int

// Profile constants.
const (
	ProfileLowLatency    = 1 // latency-biased scheduling
	ProfileScavenger     = 2 // background, yield to other traffic
	ProfileMaxThroughput = 3 // throughput-biased scheduling
	ProfileRealTime      = 4 // tightest latency bounds the provider offers
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

// ParseProfile converts a profile name from the command line into a
// Profile. An empty string selects the low-latency default.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "", "low_latency":
		return ProfileLowLatency, nil
	case "scavenger":
		return ProfileScavenger, nil
	case "max_throughput":
		return ProfileMaxThroughput, nil
	case "real_time":
		return ProfileRealTime, nil
	default:
		return 0, fmt.Errorf("unknown profile %q", s)
	}
}

// ToProvider translates the abstract tag into the provider's enumeration.
func (p Profile) ToProvider() provider.Profile {
	switch p {
	case ProfileScavenger:
		return provider.ProfileScavenger
	case ProfileMaxThroughput:
		return provider.ProfileMaxThroughput
	case ProfileRealTime:
		return provider.ProfileRealTime
	default:
		return provider.ProfileLowLatency
	}
}

// Validate checks the Client configuration for errors.
// It returns a slice of validation errors, or an empty slice if valid.
func (c *Client) Validate() []error {
	var errors []error

	if c.Host == "" {
		errors = append(errors, fmt.Errorf("'--host' must not be empty"))
	}

	if err := validatePort(c.Port); err != nil {
		errors = append(errors, fmt.Errorf("'--port': %s", err))
	}

	if c.Profile.String() == "" {
		errors = append(errors, fmt.Errorf("unknown execution profile %d", c.Profile))
	}

	return errors
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("must be in range 1-65535, got %d", port)
	}
	return nil
}

// GenerateID returns a pseudo-random 12-character identifier for
// non-security uses such as MQTT client ids.
func GenerateID() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

	buf := make([]byte, 12)
	for i := range buf {
		buf[i] = alphabet[mrand.Intn(len(alphabet))]
	}

	return string(buf)
}
