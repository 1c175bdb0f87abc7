package channel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// TCPChannel tunnels Ethernet frames over a TCP stream, each behind a
// 2-byte length prefix. A server keeps the most recently accepted peer; a
// client redials after losing its connection.
type TCPChannel struct {
	streamTunnel

	address  string
	listener net.Listener
}

// TCPChannelConfig configures a TCP channel
type TCPChannelConfig struct {
	Address        string        // "host:port" format
	IsServer       bool          // true = listen, false = connect
	ReconnectDelay time.Duration // Delay between reconnection attempts (client only)
	WriteTimeout   time.Duration // Write timeout (0 = no timeout)
}

type tcpLink struct{ net.Conn }

func (l tcpLink) shutdown(string) { l.Conn.Close() }

// NewTCPChannel listens or connects according to config
func NewTCPChannel(config TCPChannelConfig) (*TCPChannel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = time.Second
	}

	tc := &TCPChannel{address: config.Address}
	tc.init(config.WriteTimeout)

	if config.IsServer {
		ln, err := net.Listen("tcp", config.Address)
		if err != nil {
			tc.cancel()
			return nil, fmt.Errorf("failed to listen on %s: %w", config.Address, err)
		}
		tc.listener = ln
		tc.spawn(tc.acceptLoop)
		return tc, nil
	}

	l, err := tc.dial(tc.ctx)
	if err != nil {
		tc.cancel()
		return nil, err
	}
	tc.install(l)
	tc.spawn(func() { tc.redial(tc.dial, config.ReconnectDelay) })
	return tc, nil
}

func (tc *TCPChannel) dial(ctx context.Context) (streamLink, error) {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", tc.address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", tc.address, err)
	}
	return tcpLink{conn}, nil
}

func (tc *TCPChannel) acceptLoop() {
	for {
		conn, err := tc.listener.Accept()
		if err != nil {
			if tc.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			// Transient accept failures (EMFILE and the like)
			select {
			case <-tc.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		tc.install(tcpLink{conn})
	}
}

// Close implements PhysicalChannel.Close
func (tc *TCPChannel) Close() error {
	tc.stop(func() {
		if tc.listener != nil {
			tc.listener.Close()
		}
	})
	return nil
}

// ListenAddr returns the bound address in server mode
func (tc *TCPChannel) ListenAddr() net.Addr {
	if tc.listener == nil {
		return nil
	}
	return tc.listener.Addr()
}
