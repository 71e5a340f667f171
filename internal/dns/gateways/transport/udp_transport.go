package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/haukened/localdns/internal/dns/common/log"
	"github.com/haukened/localdns/internal/dns/gateways/wire"
)

// listenPacket binds the socket; tests replace it to inject a fake conn.
var listenPacket = func(ctx context.Context, addr string) (PacketConn, error) {
	return Listen(ctx, addr)
}

// UDPTransport implements ServerTransport for standard DNS over UDP (RFC 1035).
// A single goroutine reads the socket and hands each packet to the consumer
// over an unbuffered channel, so packets are neither reordered nor batched.
type UDPTransport struct {
	addr   string
	logger log.Logger

	mu      sync.RWMutex
	conn    PacketConn
	running bool
	stopCh  chan struct{}
}

var _ ServerTransport = (*UDPTransport)(nil)

// NewUDPTransport creates a new UDP transport instance.
func NewUDPTransport(addr string, logger log.Logger) *UDPTransport {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &UDPTransport{
		addr:   addr,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start binds the UDP socket on the configured address and starts the read loop.
func (t *UDPTransport) Start(ctx context.Context) (<-chan Datagram, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return nil, fmt.Errorf("UDP transport already running")
	}

	conn, err := listenPacket(ctx, t.addr)
	if err != nil {
		return nil, err
	}

	t.conn = conn
	t.running = true
	t.stopCh = make(chan struct{})

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   conn.LocalAddr().String(),
	}, "DNS transport started")

	out := make(chan Datagram)
	go t.listenLoop(ctx, conn, t.stopCh, out)
	return out, nil
}

// Send writes data to peer.
func (t *UDPTransport) Send(data []byte, peer netip.AddrPort) error {
	t.mu.RLock()
	conn := t.conn
	running := t.running
	t.mu.RUnlock()

	if !running {
		return fmt.Errorf("UDP transport not running: %w", net.ErrClosed)
	}
	if _, err := conn.WriteToUDPAddrPort(data, peer); err != nil {
		return fmt.Errorf("failed to send %d bytes to %s: %w", len(data), peer, err)
	}
	return nil
}

// Stop closes the socket, which also ends the read loop.
func (t *UDPTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}

	close(t.stopCh)
	t.running = false

	var closeErr error
	if t.conn != nil {
		closeErr = t.conn.Close()
		if closeErr != nil {
			t.logger.Warn(map[string]any{
				"error": closeErr.Error(),
			}, "Error closing UDP connection")
		}
	}

	t.logger.Info(map[string]any{
		"transport": "udp",
		"address":   t.addr,
	}, "DNS transport stopped")

	return closeErr
}

// Address returns the bound address while running, otherwise the configured one.
func (t *UDPTransport) Address() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.running && t.conn != nil {
		return t.conn.LocalAddr().String()
	}
	return t.addr
}

func (t *UDPTransport) isRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.running
}

// listenLoop reads packets until the socket is closed. Receive failures other
// than a closed socket are delivered as a Datagram with Err set.
func (t *UDPTransport) listenLoop(ctx context.Context, conn PacketConn, stopCh <-chan struct{}, out chan<- Datagram) {
	defer close(out)
	buffer := make([]byte, wire.MaxPacketSize)

	for {
		n, peer, err := conn.ReadFromUDPAddrPort(buffer)

		var d Datagram
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !t.isRunning() {
				t.logger.Debug(nil, "UDP transport read loop exiting")
				return
			}
			t.logger.Warn(map[string]any{
				"error": err.Error(),
			}, "Failed to read UDP packet")
			d = Datagram{Peer: peer, Err: fmt.Errorf("failed to read UDP packet: %w", err)}
		} else {
			packet := make([]byte, n)
			copy(packet, buffer[:n])
			d = Datagram{Data: packet, Peer: peer}

			t.logger.Debug(map[string]any{
				"client": peer.String(),
				"size":   n,
			}, "Received UDP packet")
		}

		select {
		case out <- d:
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
