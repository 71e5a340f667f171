//go:build !windows

package transport

// disableConnReset is a no-op: only the Windows UDP stack turns ICMP
// port-unreachable into a receive error on a listening socket.
func disableConnReset(uintptr) error {
	return nil
}
