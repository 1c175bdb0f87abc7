package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"avaneesh/pnio-go/pkg/ethernet"
)

// ErrNoPeer is returned by a UDP server asked to send before any peer
// has sent it a frame.
var ErrNoPeer = errors.New("no peer has sent a frame yet")

// UDPChannel tunnels Ethernet frames over UDP, one frame per datagram.
// A client sends to its configured address; a server answers whichever
// peer sent it the most recent datagram.
type UDPChannel struct {
	conn         *net.UDPConn
	server       bool
	peer         atomic.Pointer[net.UDPAddr]
	readTimeout  time.Duration
	writeTimeout time.Duration

	counters transportCounters
	done     chan struct{}
	closed   atomic.Bool
}

// UDPChannelConfig configures a UDP channel
type UDPChannelConfig struct {
	Address      string        // "host:port" format
	IsServer     bool          // true = bind and listen, false = bind and send to remote
	ReadTimeout  time.Duration // poll interval for context checks
	WriteTimeout time.Duration
}

// NewUDPChannel binds the socket described by config
func NewUDPChannel(config UDPChannelConfig) (*UDPChannel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = time.Second
	}

	addr, err := net.ResolveUDPAddr("udp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address %s: %w", config.Address, err)
	}
	local := addr
	if !config.IsServer {
		local = &net.UDPAddr{}
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP socket: %w", err)
	}

	uc := &UDPChannel{
		conn:         conn,
		server:       config.IsServer,
		readTimeout:  config.ReadTimeout,
		writeTimeout: config.WriteTimeout,
		done:         make(chan struct{}),
	}
	if !config.IsServer {
		uc.peer.Store(addr)
	}
	uc.counters.connects.Add(1)
	return uc, nil
}

// Read implements PhysicalChannel.Read. Datagrams that cannot hold an
// Ethernet frame are counted and skipped.
func (uc *UDPChannel) Read(ctx context.Context) ([]byte, error) {
	buf := make([]byte, ethernet.MaxFrameLength+1)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-uc.done:
			return nil, ErrChannelClosed
		default:
		}

		uc.conn.SetReadDeadline(time.Now().Add(uc.readTimeout))
		n, from, err := uc.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if uc.closed.Load() {
				return nil, ErrChannelClosed
			}
			uc.counters.readErrors.Add(1)
			return nil, err
		}
		if uc.server && from != nil {
			uc.peer.Store(from)
		}
		if n < ethernet.HeaderLength || n > ethernet.MaxFrameLength {
			uc.counters.readErrors.Add(1)
			continue
		}

		uc.counters.bytesReceived.Add(uint64(n))
		return append([]byte(nil), buf[:n]...), nil
	}
}

// Write implements PhysicalChannel.Write
func (uc *UDPChannel) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if uc.closed.Load() {
		return ErrChannelClosed
	}
	dst := uc.peer.Load()
	if dst == nil {
		uc.counters.writeErrors.Add(1)
		return ErrNoPeer
	}

	uc.conn.SetWriteDeadline(time.Now().Add(uc.writeTimeout))
	if _, err := uc.conn.WriteToUDP(frame, dst); err != nil {
		uc.counters.writeErrors.Add(1)
		return err
	}
	uc.counters.bytesSent.Add(uint64(len(frame)))
	return nil
}

// Close implements PhysicalChannel.Close
func (uc *UDPChannel) Close() error {
	if !uc.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(uc.done)
	uc.counters.disconnects.Add(1)
	return uc.conn.Close()
}

// Statistics implements PhysicalChannel.Statistics
func (uc *UDPChannel) Statistics() TransportStats { return uc.counters.snapshot() }

// SetConnectionStateListener implements PhysicalChannel. UDP has no connection.
func (uc *UDPChannel) SetConnectionStateListener(ConnectionStateListener) {}

// LocalAddr returns the bound address
func (uc *UDPChannel) LocalAddr() net.Addr { return uc.conn.LocalAddr() }

// RemoteAddr returns the configured peer in client mode and the last
// sender in server mode.
func (uc *UDPChannel) RemoteAddr() net.Addr {
	if p := uc.peer.Load(); p != nil {
		return p
	}
	return nil
}
