package channel

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/internal/logger"
)

var (
	ErrChannelClosed = errors.New("channel is closed")
	ErrChannelOpen   = errors.New("channel is already open")
	ErrQueueFull     = errors.New("channel write queue is full")
	ErrNoHandler     = errors.New("channel has no frame handler")
)

// DefaultWriteQueue is the number of frames that may wait for the medium
const DefaultWriteQueue = 256

// Channel connects the protocol engine to a physical channel. Received
// frames go to a FrameHandler; frames to send are queued so the engine
// never blocks on the medium.
type Channel struct {
	id              string
	physicalChannel PhysicalChannel
	handler         FrameHandler
	stats           *Statistics
	logger          logger.Logger
	frameDebug      bool

	// State
	state   ChannelState
	stateMu sync.RWMutex

	// Concurrency
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeQueue chan []byte
}

// Option customizes a Channel
type Option func(*Channel)

// WithFrameDebug logs a hex dump of every frame at debug level
func WithFrameDebug(enable bool) Option { return func(c *Channel) { c.frameDebug = enable } }

// WithWriteQueue sets the write queue depth
func WithWriteQueue(depth int) Option {
	return func(c *Channel) {
		if depth > 0 {
			c.writeQueue = make(chan []byte, depth)
		}
	}
}

// New creates a new channel
func New(id string, physical PhysicalChannel, log logger.Logger, opts ...Option) *Channel {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Channel{
		id:              id,
		physicalChannel: physical,
		stats:           NewStatistics(),
		logger:          logger.OrNoOp(log),
		state:           ChannelStateClosed,
		ctx:             ctx,
		cancel:          cancel,
		writeQueue:      make(chan []byte, DefaultWriteQueue),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the channel ID
func (c *Channel) ID() string {
	return c.id
}

// SetHandler sets the receiver of incoming frames. It must be called before Open.
func (c *Channel) SetHandler(h FrameHandler) {
	c.handler = h
}

// Open opens the channel and starts processing
func (c *Channel) Open() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.state == ChannelStateOpen {
		return ErrChannelOpen
	}
	if c.handler == nil {
		return ErrNoHandler
	}

	c.state = ChannelStateOpen

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer c.wg.Done()
		c.writeLoop()
	}()

	c.logger.Info("Channel %s opened", c.id)
	return nil
}

// Close closes the channel
func (c *Channel) Close() error {
	c.stateMu.Lock()
	if c.state == ChannelStateClosed {
		c.stateMu.Unlock()
		return nil
	}
	c.state = ChannelStateClosed
	c.stateMu.Unlock()

	c.cancel()

	if err := c.physicalChannel.Close(); err != nil {
		c.logger.Error("Error closing physical channel: %v", err)
	}

	c.wg.Wait()

	c.logger.Info("Channel %s closed", c.id)
	return nil
}

func (c *Channel) readLoop() {
	c.logger.Debug("Channel %s read loop started", c.id)
	defer c.logger.Debug("Channel %s read loop stopped", c.id)

	for {
		frame, err := c.physicalChannel.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.logger.Warn("Channel %s read error: %v", c.id, err)
			c.stats.BadFrame()
			continue
		}
		if len(frame) < ethernet.HeaderLength {
			c.stats.BadFrame()
			continue
		}

		c.stats.FrameRx()
		if c.frameDebug {
			c.logger.Debug("Channel %s RX %d bytes\n%s", c.id, len(frame), hex.Dump(frame))
		}
		c.handler.OnFrame(frame)
	}
}

func (c *Channel) writeLoop() {
	c.logger.Debug("Channel %s write loop started", c.id)
	defer c.logger.Debug("Channel %s write loop stopped", c.id)

	for {
		select {
		case <-c.ctx.Done():
			return

		case frame := <-c.writeQueue:
			if c.frameDebug {
				c.logger.Debug("Channel %s TX %d bytes\n%s", c.id, len(frame), hex.Dump(frame))
			}
			if err := c.physicalChannel.Write(c.ctx, frame); err != nil {
				c.stats.TxError()
				c.logger.Warn("Channel %s write error: %v", c.id, err)
				continue
			}
			c.stats.FrameTx()
		}
	}
}

// SendFrame queues a copy of frame for transmission without waiting for
// the medium. A full queue drops the frame.
func (c *Channel) SendFrame(frame []byte) error {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.state != ChannelStateOpen {
		return ErrChannelClosed
	}

	select {
	case c.writeQueue <- append([]byte(nil), frame...):
		return nil
	default:
		c.stats.TxDropped()
		return ErrQueueFull
	}
}

// Statistics returns channel statistics
func (c *Channel) Statistics() StatsSnapshot {
	return c.stats.Snapshot()
}

// PhysicalStatistics returns physical channel statistics
func (c *Channel) PhysicalStatistics() TransportStats {
	return c.physicalChannel.Statistics()
}

// State returns the current channel state
func (c *Channel) State() ChannelState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// String returns string representation of channel
func (c *Channel) String() string {
	return fmt.Sprintf("Channel{ID=%s, State=%s}", c.id, c.State())
}
