// Package format provides utility functions for formatting network
// addresses.
package format

import (
	"net"
	"strconv"
)

// Addr formats a host and port into a dialable address string, bracketing
// IPv6 hosts, e.g. "[::1]:4433".
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
