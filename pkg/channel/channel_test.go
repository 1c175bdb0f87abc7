package channel

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/internal/logger"
	"avaneesh/pnio-go/pkg/types"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

func testFrame(payload ...byte) []byte {
	h := ethernet.Header{
		Destination: types.MAC{0x02, 0, 0, 0, 0, 0x01},
		Source:      types.MAC{0x02, 0, 0, 0, 0, 0x02},
		EtherType:   ethernet.EtherTypeProfinet,
	}
	return ethernet.Build(h, payload)
}

func collect(t *testing.T) (FrameHandler, <-chan []byte) {
	t.Helper()
	ch := make(chan []byte, 16)
	return FrameHandlerFunc(func(frame []byte) { ch <- frame }), ch
}

func waitFrame(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case f := <-ch:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestChannelOverPipe(t *testing.T) {
	a, b := NewPipe(8)
	handlerA, framesA := collect(t)
	handlerB, _ := collect(t)

	chA := New("a", a, logger.NewNoOpLogger())
	chA.SetHandler(handlerA)
	chB := New("b", b, logger.NewNoOpLogger(), WithFrameDebug(true))
	chB.SetHandler(handlerB)

	if err := chA.Open(); err != nil {
		t.Fatalf("Open a: %v", err)
	}
	defer chA.Close()
	if err := chB.Open(); err != nil {
		t.Fatalf("Open b: %v", err)
	}
	defer chB.Close()

	frame := testFrame(0xfe, 0xfe, 0x05, 0x00)
	if err := chB.SendFrame(frame); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	frame[14] = 0 // the channel owns a copy

	got := waitFrame(t, framesA)
	if !bytes.Equal(got, testFrame(0xfe, 0xfe, 0x05, 0x00)) {
		t.Errorf("received % x", got)
	}
	waitFor(t, func() bool { return chB.Statistics().FramesTx == 1 })
	if s := chA.Statistics(); s.FramesRx != 1 {
		t.Errorf("FramesRx = %d, want 1", s.FramesRx)
	}
	if s := chB.PhysicalStatistics(); s.BytesSent != uint64(ethernet.MinFrameLength) {
		t.Errorf("BytesSent = %d", s.BytesSent)
	}
}

func TestChannelLifecycle(t *testing.T) {
	a, _ := NewPipe(1)
	ch := New("a", a, nil)

	if err := ch.Open(); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Open without handler = %v, want ErrNoHandler", err)
	}
	if err := ch.SendFrame(testFrame()); !errors.Is(err, ErrChannelClosed) {
		t.Errorf("SendFrame on closed channel = %v", err)
	}

	h, _ := collect(t)
	ch.SetHandler(h)
	if err := ch.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := ch.Open(); !errors.Is(err, ErrChannelOpen) {
		t.Errorf("second Open = %v, want ErrChannelOpen", err)
	}
	if ch.State() != ChannelStateOpen {
		t.Errorf("State = %s", ch.State())
	}
	if err := ch.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if ch.State() != ChannelStateClosed {
		t.Errorf("State = %s", ch.State())
	}
}

func TestReadLoopDropsRunts(t *testing.T) {
	a, b := NewPipe(4)
	h, frames := collect(t)
	ch := New("a", a, nil)
	ch.SetHandler(h)
	if err := ch.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	if err := b.Write(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := b.Write(context.Background(), testFrame()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	waitFrame(t, frames)
	if s := ch.Statistics(); s.BadFrames != 1 || s.FramesRx != 1 {
		t.Errorf("stats = %+v", s)
	}
}

type blockingPhysical struct {
	*PipeChannel
	release chan struct{}
}

func (p *blockingPhysical) Write(ctx context.Context, frame []byte) error {
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return ctx.Err()
}

func TestSendFrameNeverBlocks(t *testing.T) {
	a, _ := NewPipe(1)
	phys := &blockingPhysical{PipeChannel: a, release: make(chan struct{})}
	h, _ := collect(t)
	ch := New("a", phys, nil, WithWriteQueue(2))
	ch.SetHandler(h)
	if err := ch.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ch.Close()

	var full int
	for i := 0; i < 10; i++ {
		if err := ch.SendFrame(testFrame()); errors.Is(err, ErrQueueFull) {
			full++
		}
	}
	// one frame is held by the writer, two wait in the queue
	if full < 7 {
		t.Errorf("full = %d, want at least 7", full)
	}
	if got := ch.Statistics().TxDropped; got != uint64(full) {
		t.Errorf("TxDropped = %d, want %d", got, full)
	}
}

func TestFraming(t *testing.T) {
	var buf bytes.Buffer
	frame := testFrame(1, 2, 3)
	if err := writeFramed(&buf, frame); err != nil {
		t.Fatalf("writeFramed: %v", err)
	}
	if buf.Len() != 2+len(frame) {
		t.Fatalf("encoded length = %d", buf.Len())
	}
	got, err := readFramed(&buf)
	if err != nil {
		t.Fatalf("readFramed: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("got % x", got)
	}

	tests := []struct {
		name   string
		encode []byte
	}{
		{"runt", []byte{0x00, 0x05, 1, 2, 3, 4, 5}},
		{"oversized", []byte{0x05, 0xEF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := readFramed(bytes.NewReader(tt.encode)); !errors.Is(err, ErrFrameSize) {
				t.Errorf("err = %v, want ErrFrameSize", err)
			}
		})
	}

	if err := writeFramed(&buf, make([]byte, ethernet.MaxFrameLength+1)); !errors.Is(err, ErrFrameSize) {
		t.Errorf("oversized write = %v", err)
	}
}

func TestCaptureChannel(t *testing.T) {
	a, b := NewPipe(4)
	var file bytes.Buffer
	capture, err := NewCaptureChannel(a, &file)
	if err != nil {
		t.Fatalf("NewCaptureChannel: %v", err)
	}
	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	capture.now = func() time.Time { return stamp }

	ctx := context.Background()
	out := testFrame(0x80, 0x00)
	if err := capture.Write(ctx, out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := b.Read(ctx); err != nil {
		t.Fatalf("peer Read: %v", err)
	}
	in := testFrame(0xfe, 0xfe)
	if err := b.Write(ctx, in); err != nil {
		t.Fatalf("peer Write: %v", err)
	}
	if _, err := capture.Read(ctx); err != nil {
		t.Fatalf("Read: %v", err)
	}
	capture.Close()

	r, err := pcapgo.NewReader(&file)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.LinkType() != layers.LinkTypeEthernet {
		t.Errorf("LinkType = %v", r.LinkType())
	}
	for i, want := range [][]byte{out, in} {
		data, ci, err := r.ReadPacketData()
		if err != nil {
			t.Fatalf("packet %d: %v", i, err)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("packet %d = % x", i, data)
		}
		if !ci.Timestamp.Equal(stamp) {
			t.Errorf("packet %d timestamp = %v", i, ci.Timestamp)
		}
	}
	if capture.Err() != nil {
		t.Errorf("capture error: %v", capture.Err())
	}
}

func TestTCPTunnel(t *testing.T) {
	server, err := NewTCPChannel(TCPChannelConfig{Address: "127.0.0.1:0", IsServer: true})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	defer server.Close()

	client, err := NewTCPChannel(TCPChannelConfig{Address: server.ListenAddr().String()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	frames := [][]byte{testFrame(1), testFrame(2, 3)}
	for _, f := range frames {
		if err := client.Write(ctx, f); err != nil {
			t.Fatalf("client Write: %v", err)
		}
	}
	for i, want := range frames {
		got, err := server.Read(ctx)
		if err != nil {
			t.Fatalf("server Read %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d = % x", i, got)
		}
	}

	if err := server.Write(ctx, testFrame(9)); err != nil {
		t.Fatalf("server Write: %v", err)
	}
	got, err := client.Read(ctx)
	if err != nil {
		t.Fatalf("client Read: %v", err)
	}
	if !bytes.Equal(got, testFrame(9)) {
		t.Errorf("reply = % x", got)
	}
}

func TestUDPTunnel(t *testing.T) {
	server, err := NewUDPChannel(UDPChannelConfig{Address: "127.0.0.1:0", IsServer: true, ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	defer server.Close()

	client, err := NewUDPChannel(UDPChannelConfig{Address: server.LocalAddr().String(), ReadTimeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := server.Write(ctx, testFrame()); !errors.Is(err, ErrNoPeer) {
		t.Errorf("Write before any peer = %v", err)
	}
	if err := client.Write(ctx, testFrame(7)); err != nil {
		t.Fatalf("client Write: %v", err)
	}
	got, err := server.Read(ctx)
	if err != nil {
		t.Fatalf("server Read: %v", err)
	}
	if !bytes.Equal(got, testFrame(7)) {
		t.Errorf("got % x", got)
	}
	if err := server.Write(ctx, testFrame(8)); err != nil {
		t.Fatalf("server Write: %v", err)
	}
	if got, err := client.Read(ctx); err != nil || !bytes.Equal(got, testFrame(8)) {
		t.Errorf("client Read = % x, %v", got, err)
	}
}

type connEvents struct {
	established atomic.Int32
	lost        atomic.Int32
}

func (e *connEvents) OnConnectionEstablished() { e.established.Add(1) }
func (e *connEvents) OnConnectionLost()        { e.lost.Add(1) }

func TestTCPServerAdoptsLatestPeer(t *testing.T) {
	server, err := NewTCPChannel(TCPChannelConfig{Address: "127.0.0.1:0", IsServer: true})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	defer server.Close()
	events := &connEvents{}
	server.SetConnectionStateListener(events)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := server.Write(ctx, testFrame()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write without peer = %v", err)
	}

	first, err := NewTCPChannel(TCPChannelConfig{Address: server.ListenAddr().String()})
	if err != nil {
		t.Fatalf("first client: %v", err)
	}
	defer first.Close()
	waitFor(t, func() bool { return events.established.Load() == 1 })

	second, err := NewTCPChannel(TCPChannelConfig{Address: server.ListenAddr().String()})
	if err != nil {
		t.Fatalf("second client: %v", err)
	}
	defer second.Close()
	waitFor(t, func() bool { return events.established.Load() == 2 })

	if got := events.lost.Load(); got != 1 {
		t.Errorf("lost notifications = %d, want 1", got)
	}
	if s := server.Statistics(); s.Connects != 2 || s.Disconnects != 1 {
		t.Errorf("stats = %+v", s)
	}

	if err := server.Write(ctx, testFrame(4)); err != nil {
		t.Fatalf("server Write: %v", err)
	}
	if got, err := second.Read(ctx); err != nil || !bytes.Equal(got, testFrame(4)) {
		t.Errorf("second client Read = % x, %v", got, err)
	}
}

func TestTCPClientRedials(t *testing.T) {
	first, err := NewTCPChannel(TCPChannelConfig{Address: "127.0.0.1:0", IsServer: true})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	addr := first.ListenAddr().String()

	client, err := NewTCPChannel(TCPChannelConfig{Address: addr, ReconnectDelay: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	received := make(chan []byte, 1)
	go func() {
		if f, err := client.Read(ctx); err == nil {
			received <- f
		}
	}()

	first.Close()
	second, err := NewTCPChannel(TCPChannelConfig{Address: addr, IsServer: true})
	if err != nil {
		t.Fatalf("restarted server: %v", err)
	}
	defer second.Close()

	waitFor(t, second.IsConnected)
	if err := second.Write(ctx, testFrame(5)); err != nil {
		t.Fatalf("Write after redial: %v", err)
	}
	if got := waitFrame(t, received); !bytes.Equal(got, testFrame(5)) {
		t.Errorf("got % x", got)
	}
	if s := client.Statistics(); s.Connects != 2 || s.Disconnects == 0 {
		t.Errorf("client stats = %+v", s)
	}
}
