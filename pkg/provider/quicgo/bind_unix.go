//go:build unix

package quicgo

import (
	"golang.org/x/sys/unix"
)

// setSockoptReuseAddr sets SO_REUSEADDR on the socket.
// Unix version (Linux, macOS, BSD, etc.)
func setSockoptReuseAddr(fd uintptr) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}
