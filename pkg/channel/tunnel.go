package channel

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNotConnected is returned by Write while a stream tunnel has no peer
var ErrNotConnected = errors.New("tunnel has no connected peer")

// transportCounters backs TransportStats for every medium
type transportCounters struct {
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	writeErrors   atomic.Uint64
	readErrors    atomic.Uint64
	connects      atomic.Uint64
	disconnects   atomic.Uint64
}

func (c *transportCounters) snapshot() TransportStats {
	return TransportStats{
		BytesSent:     c.bytesSent.Load(),
		BytesReceived: c.bytesReceived.Load(),
		WriteErrors:   c.writeErrors.Load(),
		ReadErrors:    c.readErrors.Load(),
		Connects:      c.connects.Load(),
		Disconnects:   c.disconnects.Load(),
	}
}

// streamLink is one live connection of a stream tunnel
type streamLink interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
	shutdown(reason string)
}

// dialTimeout bounds one connection attempt
const dialTimeout = 10 * time.Second

// dialFunc opens a client link
type dialFunc func(ctx context.Context) (streamLink, error)

// streamTunnel carries length-prefixed frames over whichever link is
// current. Server transports install every accepted link, replacing the
// previous one; client transports redial after a loss.
type streamTunnel struct {
	mu      sync.Mutex
	current streamLink
	changed chan struct{} // closed and replaced on every install

	lost         chan struct{}
	writeTimeout time.Duration

	notifyMu sync.RWMutex
	notify   ConnectionStateListener

	counters transportCounters

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

func (t *streamTunnel) init(writeTimeout time.Duration) {
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.changed = make(chan struct{})
	t.lost = make(chan struct{}, 1)
	t.writeTimeout = writeTimeout
}

func (t *streamTunnel) spawn(fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
}

func (t *streamTunnel) listener() ConnectionStateListener {
	t.notifyMu.RLock()
	defer t.notifyMu.RUnlock()
	return t.notify
}

// install makes l the current link
func (t *streamTunnel) install(l streamLink) {
	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		l.shutdown("tunnel closed")
		return
	}
	old := t.current
	if old != nil {
		old.shutdown("replaced")
		t.counters.disconnects.Add(1)
	}
	t.current = l
	t.counters.connects.Add(1)
	close(t.changed)
	t.changed = make(chan struct{})
	t.mu.Unlock()

	if n := t.listener(); n != nil {
		if old != nil {
			n.OnConnectionLost()
		}
		n.OnConnectionEstablished()
	}
}

// drop shuts l down if it is still current
func (t *streamTunnel) drop(l streamLink, reason string) {
	t.mu.Lock()
	if t.current != l || l == nil {
		t.mu.Unlock()
		return
	}
	t.current = nil
	l.shutdown(reason)
	t.counters.disconnects.Add(1)
	t.mu.Unlock()

	select {
	case t.lost <- struct{}{}:
	default:
	}
	if n := t.listener(); n != nil && !t.closed.Load() {
		n.OnConnectionLost()
	}
}

// await returns the current link, waiting for one if there is none
func (t *streamTunnel) await(ctx context.Context) (streamLink, error) {
	for {
		t.mu.Lock()
		l, changed := t.current, t.changed
		t.mu.Unlock()
		if l != nil {
			return l, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.ctx.Done():
			return nil, ErrChannelClosed
		}
	}
}

// redial reconnects after every loss, retrying every delay until it
// succeeds. It runs until the tunnel is closed.
func (t *streamTunnel) redial(dial dialFunc, delay time.Duration) {
	for {
		select {
		case <-t.ctx.Done():
			return
		case <-t.lost:
		}
		for !t.IsConnected() {
			select {
			case <-t.ctx.Done():
				return
			case <-time.After(delay):
			}
			if l, err := dial(t.ctx); err == nil {
				t.install(l)
			}
		}
	}
}

// Read implements PhysicalChannel.Read. A broken or desynchronized link is
// dropped and the read continues on the next one.
func (t *streamTunnel) Read(ctx context.Context) ([]byte, error) {
	for {
		l, err := t.await(ctx)
		if err != nil {
			return nil, err
		}
		frame, err := readFramed(l)
		if err != nil {
			if t.closed.Load() {
				return nil, ErrChannelClosed
			}
			t.counters.readErrors.Add(1)
			t.drop(l, "read error")
			if errors.Is(err, ErrFrameSize) {
				return nil, err
			}
			continue
		}
		t.counters.bytesReceived.Add(uint64(len(frame)))
		return frame, nil
	}
}

// Write implements PhysicalChannel.Write. Frames are not queued while no
// peer is connected.
func (t *streamTunnel) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.closed.Load() {
		return ErrChannelClosed
	}
	t.mu.Lock()
	l := t.current
	t.mu.Unlock()
	if l == nil {
		t.counters.writeErrors.Add(1)
		return ErrNotConnected
	}

	if t.writeTimeout > 0 {
		l.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if err := writeFramed(l, frame); err != nil {
		t.counters.writeErrors.Add(1)
		if !errors.Is(err, ErrFrameSize) {
			t.drop(l, "write error")
		}
		return err
	}
	t.counters.bytesSent.Add(uint64(len(frame)))
	return nil
}

// stop ends background work and the current link. It reports false if
// the tunnel was already stopped.
func (t *streamTunnel) stop(stopAccepting func()) bool {
	if !t.closed.CompareAndSwap(false, true) {
		return false
	}
	t.cancel()
	if stopAccepting != nil {
		stopAccepting()
	}
	t.mu.Lock()
	if t.current != nil {
		t.current.shutdown("tunnel closed")
		t.counters.disconnects.Add(1)
		t.current = nil
	}
	t.mu.Unlock()
	t.wg.Wait()
	return true
}

// Statistics implements PhysicalChannel.Statistics
func (t *streamTunnel) Statistics() TransportStats {
	return t.counters.snapshot()
}

// SetConnectionStateListener implements PhysicalChannel
func (t *streamTunnel) SetConnectionStateListener(listener ConnectionStateListener) {
	t.notifyMu.Lock()
	t.notify = listener
	t.notifyMu.Unlock()
}

// IsConnected reports whether a peer is connected
func (t *streamTunnel) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// RemoteAddr returns the address of the connected peer, or nil
func (t *streamTunnel) RemoteAddr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil
	}
	return t.current.RemoteAddr()
}
