package channel

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// CaptureSnapLen is the snapshot length written to the capture file header
const CaptureSnapLen = 65536

// CaptureChannel records every frame crossing a PhysicalChannel into a
// pcap stream readable by Wireshark. Capture failures never affect traffic.
type CaptureChannel struct {
	PhysicalChannel

	mu     sync.Mutex
	w      *pcapgo.Writer
	closer io.Closer
	now    func() time.Time
	failed error
}

// NewCaptureChannel wraps inner and writes the pcap file header to w. If
// w is also an io.Closer it is closed together with the channel.
func NewCaptureChannel(inner PhysicalChannel, w io.Writer) (*CaptureChannel, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(CaptureSnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write capture header: %w", err)
	}
	c := &CaptureChannel{PhysicalChannel: inner, w: pw, now: time.Now}
	if closer, ok := w.(io.Closer); ok {
		c.closer = closer
	}
	return c, nil
}

// Read implements PhysicalChannel.Read
func (c *CaptureChannel) Read(ctx context.Context) ([]byte, error) {
	frame, err := c.PhysicalChannel.Read(ctx)
	if err == nil {
		c.record(frame)
	}
	return frame, err
}

// Write implements PhysicalChannel.Write
func (c *CaptureChannel) Write(ctx context.Context, frame []byte) error {
	if err := c.PhysicalChannel.Write(ctx, frame); err != nil {
		return err
	}
	c.record(frame)
	return nil
}

// Close implements PhysicalChannel.Close
func (c *CaptureChannel) Close() error {
	err := c.PhysicalChannel.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
		c.closer = nil
	}
	c.w = nil
	return err
}

// Err returns the first capture write error, if any
func (c *CaptureChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

func (c *CaptureChannel) record(frame []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil || c.failed != nil {
		return
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     c.now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := c.w.WritePacket(ci, frame); err != nil {
		c.failed = err
	}
}
