//go:build windows

package quicgo

import (
	"golang.org/x/sys/windows"
)

// setSockoptReuseAddr sets SO_REUSEADDR on the socket.
// Windows version (uses a windows.Handle for the descriptor)
func setSockoptReuseAddr(fd uintptr) error {
	return windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
}
