package channel

import (
	"context"
	"sync"
	"sync/atomic"
)

// PipeChannel is one end of an in-memory Ethernet segment. Frames written
// to one end are read from the other. It backs tests and the loopback
// segment of the device command.
type PipeChannel struct {
	in   chan []byte
	peer *PipeChannel

	closeOnce sync.Once
	done      chan struct{}

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	writeErrors   atomic.Uint64
}

// NewPipe returns two connected ends, each buffering depth frames
func NewPipe(depth int) (*PipeChannel, *PipeChannel) {
	if depth <= 0 {
		depth = DefaultWriteQueue
	}
	a := &PipeChannel{in: make(chan []byte, depth), done: make(chan struct{})}
	b := &PipeChannel{in: make(chan []byte, depth), done: make(chan struct{})}
	a.peer, b.peer = b, a
	return a, b
}

// Read implements PhysicalChannel.Read
func (p *PipeChannel) Read(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-p.in:
		p.bytesReceived.Add(uint64(len(frame)))
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.done:
		return nil, ErrChannelClosed
	}
}

// Write implements PhysicalChannel.Write. A frame for a closed or
// congested peer is lost, like on a real segment.
func (p *PipeChannel) Write(ctx context.Context, frame []byte) error {
	select {
	case <-p.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	select {
	case <-p.peer.done:
		p.writeErrors.Add(1)
		return ErrChannelClosed
	case p.peer.in <- append([]byte(nil), frame...):
		p.bytesSent.Add(uint64(len(frame)))
		return nil
	default:
		p.writeErrors.Add(1)
		return ErrQueueFull
	}
}

// Close implements PhysicalChannel.Close
func (p *PipeChannel) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

// Statistics implements PhysicalChannel.Statistics
func (p *PipeChannel) Statistics() TransportStats {
	return TransportStats{
		BytesSent:     p.bytesSent.Load(),
		BytesReceived: p.bytesReceived.Load(),
		WriteErrors:   p.writeErrors.Load(),
	}
}

// SetConnectionStateListener implements PhysicalChannel. A pipe is always connected.
func (p *PipeChannel) SetConnectionStateListener(ConnectionStateListener) {}
