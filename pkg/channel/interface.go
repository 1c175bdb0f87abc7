package channel

import "context"

// ConnectionStateListener receives notifications about connection state changes
type ConnectionStateListener interface {
	// OnConnectionEstablished is called when a new connection is established
	OnConnectionEstablished()

	// OnConnectionLost is called when a connection is lost
	OnConnectionLost()
}

// PhysicalChannel moves raw Ethernet frames (destination MAC through the
// end of the payload, no FCS) between the device and a medium. A real NIC,
// a tunnel to a remote segment and an in-memory pipe all fit behind it.
type PhysicalChannel interface {
	// Read blocks until the next frame arrives or ctx is cancelled.
	// The returned slice is owned by the caller.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one complete frame. Calls are serialized by Channel.
	Write(ctx context.Context, frame []byte) error

	// Close releases the medium and unblocks pending Read and Write calls
	Close() error

	// Statistics returns transport-level statistics
	Statistics() TransportStats

	// SetConnectionStateListener sets a listener for connection state changes.
	// Connectionless media ignore it.
	SetConnectionStateListener(listener ConnectionStateListener)
}

// FrameHandler consumes frames read by a Channel. OnFrame is called from
// the channel's read goroutine and must not block for long.
type FrameHandler interface {
	OnFrame(frame []byte)
}

// FrameHandlerFunc adapts a function to FrameHandler
type FrameHandlerFunc func(frame []byte)

// OnFrame implements FrameHandler
func (f FrameHandlerFunc) OnFrame(frame []byte) { f(frame) }

// TransportStats provides transport-level statistics
type TransportStats struct {
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
	WriteErrors   uint64 `json:"write_errors"`
	ReadErrors    uint64 `json:"read_errors"`
	Connects      uint64 `json:"connects"`
	Disconnects   uint64 `json:"disconnects"`
}

// ChannelState represents the state of a channel
type ChannelState int

const (
	ChannelStateOpen ChannelState = iota
	ChannelStateClosed
)

// String returns string representation of ChannelState
func (s ChannelState) String() string {
	switch s {
	case ChannelStateOpen:
		return "Open"
	case ChannelStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
