// Package transport owns the UDP socket the responder listens on. It binds
// the socket with platform hardening applied and turns inbound packets into
// an ordered stream of Datagram values for the server to consume.
package transport

import (
	"context"
	"net"
	"net/netip"
)

// Datagram is one inbound packet, or one failed receive when Err is set.
type Datagram struct {
	Data []byte
	Peer netip.AddrPort
	Err  error
}

// ServerTransport is the socket side of the server loop.
type ServerTransport interface {
	// Start binds the socket and begins delivering datagrams in arrival order.
	// The returned channel is closed once the transport stops reading.
	Start(ctx context.Context) (<-chan Datagram, error)

	// Send writes a reply to peer.
	Send(data []byte, peer netip.AddrPort) error

	// Stop closes the socket. It is safe to call more than once.
	Stop() error

	// Address returns the bound address once started, or the configured one.
	Address() string
}

// PacketConn is the subset of *net.UDPConn the transport relies on.
type PacketConn interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
	WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error)
	LocalAddr() net.Addr
	Close() error
}

var _ PacketConn = (*net.UDPConn)(nil)
