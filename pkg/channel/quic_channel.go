package channel

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/quic-go/quic-go"
)

// QUICProtocol is the ALPN identifier of the frame tunnel
const QUICProtocol = "pnio-eth"

// QUICChannel tunnels Ethernet frames over one bidirectional QUIC stream,
// length-prefixed like the TCP tunnel. The client opens the stream; the
// server adopts the first stream of the most recent connection.
type QUICChannel struct {
	streamTunnel

	address   string
	listener  *quic.Listener
	tlsConfig *tls.Config
}

// QUICChannelConfig configures a QUIC channel
type QUICChannelConfig struct {
	Address        string        // "host:port" format
	IsServer       bool          // true = listen, false = connect
	ReconnectDelay time.Duration // Delay between reconnection attempts (client only)
	WriteTimeout   time.Duration // Write timeout (0 = no timeout)
	TLSConfig      *tls.Config   // Optional TLS config (if nil, a self-signed cert is generated)
}

// quicLink is a connection together with its frame stream
type quicLink struct {
	conn   quic.Connection
	stream quic.Stream
}

func (l quicLink) Read(p []byte) (int, error)         { return l.stream.Read(p) }
func (l quicLink) Write(p []byte) (int, error)        { return l.stream.Write(p) }
func (l quicLink) SetWriteDeadline(t time.Time) error { return l.stream.SetWriteDeadline(t) }
func (l quicLink) RemoteAddr() net.Addr               { return l.conn.RemoteAddr() }

func (l quicLink) shutdown(reason string) {
	l.stream.Close()
	l.conn.CloseWithError(0, reason)
}

// NewQUICChannel listens or connects according to config
func NewQUICChannel(config QUICChannelConfig) (*QUICChannel, error) {
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	if config.ReconnectDelay == 0 {
		config.ReconnectDelay = time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = time.Second
	}

	tlsConfig := config.TLSConfig
	if tlsConfig == nil {
		var err error
		tlsConfig, err = generateTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to generate TLS config: %w", err)
		}
	}

	qc := &QUICChannel{address: config.Address, tlsConfig: tlsConfig}
	qc.init(config.WriteTimeout)

	if config.IsServer {
		if err := qc.listen(); err != nil {
			qc.cancel()
			return nil, err
		}
		qc.spawn(qc.acceptLoop)
		return qc, nil
	}

	l, err := qc.dial(qc.ctx)
	if err != nil {
		qc.cancel()
		return nil, err
	}
	qc.install(l)
	qc.spawn(func() { qc.redial(qc.dial, config.ReconnectDelay) })
	return qc, nil
}

// generateTLSConfig generates a self-signed certificate for the tunnel
func generateTLSConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: big.NewInt(now.UnixNano()),
		NotBefore:    now,
		NotAfter:     now.Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
		NextProtos:         []string{QUICProtocol},
		InsecureSkipVerify: true, // self-signed
	}, nil
}

func (qc *QUICChannel) listen() error {
	ln, err := quic.ListenAddr(qc.address, qc.tlsConfig, nil)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", qc.address, err)
	}
	qc.listener = ln
	return nil
}

func (qc *QUICChannel) acceptLoop() {
	for {
		conn, err := qc.listener.Accept(qc.ctx)
		if err != nil {
			if qc.closed.Load() || qc.ctx.Err() != nil {
				return
			}
			continue
		}
		// The peer's stream only shows up with its first frame
		qc.spawn(func() {
			stream, err := conn.AcceptStream(qc.ctx)
			if err != nil {
				conn.CloseWithError(0, "no stream")
				return
			}
			qc.install(quicLink{conn: conn, stream: stream})
		})
	}
}

func (qc *QUICChannel) dial(ctx context.Context) (streamLink, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, err := quic.DialAddr(ctx, qc.address, qc.tlsConfig, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", qc.address, err)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "failed to open stream")
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}
	return quicLink{conn: conn, stream: stream}, nil
}

// Close implements PhysicalChannel.Close
func (qc *QUICChannel) Close() error {
	qc.stop(func() {
		if qc.listener != nil {
			qc.listener.Close()
		}
	})
	return nil
}

// ListenAddr returns the bound address in server mode
func (qc *QUICChannel) ListenAddr() net.Addr {
	if qc.listener == nil {
		return nil
	}
	return qc.listener.Addr()
}
