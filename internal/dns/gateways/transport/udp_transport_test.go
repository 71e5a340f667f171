package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/localdns/internal/dns/common/log"
)

// MockPacketConn implements PacketConn for testing
type MockPacketConn struct {
	mock.Mock
}

func (m *MockPacketConn) ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error) {
	args := m.Called(b)
	return args.Int(0), args.Get(1).(netip.AddrPort), args.Error(2)
}

func (m *MockPacketConn) WriteToUDPAddrPort(b []byte, addr netip.AddrPort) (int, error) {
	args := m.Called(b, addr)
	return args.Int(0), args.Error(1)
}

func (m *MockPacketConn) LocalAddr() net.Addr {
	args := m.Called()
	return args.Get(0).(net.Addr)
}

func (m *MockPacketConn) Close() error {
	args := m.Called()
	return args.Error(0)
}

func withListenPacket(t *testing.T, conn PacketConn) {
	t.Helper()
	orig := listenPacket
	listenPacket = func(context.Context, string) (PacketConn, error) { return conn, nil }
	t.Cleanup(func() { listenPacket = orig })
}

func recvDatagram(t *testing.T, ch <-chan Datagram) Datagram {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "datagram channel closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for datagram")
	}
	return Datagram{}
}

func TestNewUDPTransport(t *testing.T) {
	logger := log.NewNoopLogger()
	addr := "127.0.0.1:5053"

	transport := NewUDPTransport(addr, logger)

	assert.NotNil(t, transport)
	assert.Equal(t, addr, transport.addr)
	assert.Equal(t, logger, transport.logger)
	assert.NotNil(t, transport.stopCh)
	assert.False(t, transport.running)
	assert.Equal(t, addr, transport.Address())

	assert.NotNil(t, NewUDPTransport(addr, nil).logger)
}

func TestUDPTransport_StartStop(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid address",
			addr: "127.0.0.1:0",
		},
		{
			name:    "invalid address format",
			addr:    "invalid-address",
			wantErr: true,
			errMsg:  "failed to bind UDP socket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := NewUDPTransport(tt.addr, log.NewNoopLogger())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			packets, err := transport.Start(ctx)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}

			require.NoError(t, err)
			assert.True(t, transport.running)
			assert.NotEqual(t, "127.0.0.1:0", transport.Address(), "bound port is reported")

			_, err = transport.Start(ctx)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), "already running")

			assert.NoError(t, transport.Stop())
			assert.False(t, transport.running)

			select {
			case _, ok := <-packets:
				assert.False(t, ok, "channel closes after stop")
			case <-time.After(2 * time.Second):
				t.Fatal("read loop did not exit")
			}

			assert.NoError(t, transport.Stop())
		})
	}
}

func TestUDPTransport_ReceiveAndSend(t *testing.T) {
	transport := NewUDPTransport("127.0.0.1:0", log.NewNoopLogger())
	packets, err := transport.Start(context.Background())
	require.NoError(t, err)
	defer transport.Stop()

	serverAddr, err := net.ResolveUDPAddr("udp", transport.Address())
	require.NoError(t, err)
	client, err := net.DialUDP("udp", nil, serverAddr)
	require.NoError(t, err)
	defer client.Close()

	for _, msg := range []string{"first", "second", "third"} {
		_, err = client.Write([]byte(msg))
		require.NoError(t, err)
	}

	var peer netip.AddrPort
	for _, want := range []string{"first", "second", "third"} {
		d := recvDatagram(t, packets)
		require.NoError(t, d.Err)
		assert.Equal(t, want, string(d.Data))
		peer = d.Peer
	}

	require.NoError(t, transport.Send([]byte("reply"), peer))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "reply", string(buf[:n]))
}

func TestUDPTransport_SendNotRunning(t *testing.T) {
	transport := NewUDPTransport("127.0.0.1:0", log.NewNoopLogger())
	err := transport.Send([]byte("x"), netip.MustParseAddrPort("127.0.0.1:9"))
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestUDPTransport_ReadErrorIsDelivered(t *testing.T) {
	conn := &MockPacketConn{}
	peer := netip.MustParseAddrPort("127.0.0.1:40000")
	payload := []byte{0xAB, 0xCD}
	readErr := errors.New("connection reset")

	conn.On("LocalAddr").Return(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5353})
	conn.On("ReadFromUDPAddrPort", mock.Anything).Return(0, netip.AddrPort{}, readErr).Once()
	conn.On("ReadFromUDPAddrPort", mock.Anything).Run(func(args mock.Arguments) {
		copy(args.Get(0).([]byte), payload)
	}).Return(len(payload), peer, nil).Once()
	conn.On("ReadFromUDPAddrPort", mock.Anything).Return(0, netip.AddrPort{}, net.ErrClosed)
	conn.On("Close").Return(nil)
	withListenPacket(t, conn)

	transport := NewUDPTransport("127.0.0.1:5353", log.NewNoopLogger())
	packets, err := transport.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5353", transport.Address())

	first := recvDatagram(t, packets)
	assert.ErrorIs(t, first.Err, readErr)
	assert.Nil(t, first.Data)

	second := recvDatagram(t, packets)
	require.NoError(t, second.Err)
	assert.Equal(t, payload, second.Data)
	assert.Equal(t, peer, second.Peer)

	select {
	case _, ok := <-packets:
		assert.False(t, ok, "closed socket ends the stream")
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not exit")
	}

	require.NoError(t, transport.Stop())
	conn.AssertExpectations(t)
}

func TestUDPTransport_SendError(t *testing.T) {
	conn := &MockPacketConn{}
	peer := netip.MustParseAddrPort("127.0.0.1:40000")
	block := make(chan struct{})

	conn.On("LocalAddr").Return(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5353})
	conn.On("ReadFromUDPAddrPort", mock.Anything).Run(func(mock.Arguments) { <-block }).Return(0, netip.AddrPort{}, net.ErrClosed)
	conn.On("WriteToUDPAddrPort", []byte("reply"), peer).Return(0, errors.New("network down"))
	conn.On("Close").Run(func(mock.Arguments) { close(block) }).Return(nil)
	withListenPacket(t, conn)

	transport := NewUDPTransport("127.0.0.1:5353", log.NewNoopLogger())
	_, err := transport.Start(context.Background())
	require.NoError(t, err)

	err = transport.Send([]byte("reply"), peer)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "network down")

	require.NoError(t, transport.Stop())
}

func TestUDPTransport_StopCloseError(t *testing.T) {
	conn := &MockPacketConn{}
	block := make(chan struct{})

	conn.On("LocalAddr").Return(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 5353})
	conn.On("ReadFromUDPAddrPort", mock.Anything).Run(func(mock.Arguments) { <-block }).Return(0, netip.AddrPort{}, net.ErrClosed)
	conn.On("Close").Run(func(mock.Arguments) { close(block) }).Return(errors.New("close failed"))
	withListenPacket(t, conn)

	transport := NewUDPTransport("127.0.0.1:5353", log.NewNoopLogger())
	_, err := transport.Start(context.Background())
	require.NoError(t, err)

	err = transport.Stop()
	assert.EqualError(t, err, "close failed")
	assert.False(t, transport.running)
}

func TestListen(t *testing.T) {
	conn, err := Listen(context.Background(), "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	assert.NotZero(t, conn.LocalAddr().(*net.UDPAddr).Port)

	_, err = Listen(context.Background(), conn.LocalAddr().String())
	assert.Error(t, err, "port already bound")
}
