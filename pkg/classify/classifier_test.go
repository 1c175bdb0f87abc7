package classify

import (
	"errors"
	"math/rand"
	"testing"

	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/types"
)

var (
	local      = types.MAC{0x00, 0x30, 0x11, 0x22, 0x33, 0x44}
	controller = types.MAC{0x52, 0x54, 0x00, 0x8a, 0x3b, 0xa5}
)

// identifyAll is a captured Identify-All request as seen on the wire
var identifyAll = []byte{
	0x01, 0x0e, 0xcf, 0x00, 0x00, 0x00, 0x52, 0x54, 0x00, 0x8a, 0x3b, 0xa5, 0x88, 0x92,
	0xfe, 0xfe, 0x05, 0x00, 0x00, 0x00, 0x00, 0x05, 0x00, 0xc0, 0x00, 0x04, 0xff, 0xff,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

func frame(dst types.MAC, tagged bool, etherType uint16, payload ...byte) []byte {
	h := ethernet.Header{Destination: dst, Source: controller, Tagged: tagged, VLAN: ethernet.NewVLANTag(6, false, 0), EtherType: etherType}
	return ethernet.Build(h, payload)
}

func TestClassify(t *testing.T) {
	c := New(DefaultConfig(local))

	tests := []struct {
		name    string
		raw     []byte
		kind    Kind
		reason  Reason
		frameID uint16
	}{
		{"Captured identify", identifyAll, KindDCP, ReasonNone, 0xFEFE},
		{"DCP unicast", frame(local, false, ethernet.EtherTypeProfinet, 0xfe, 0xfd), KindDCP, ReasonNone, 0xFEFD},
		{"DCP tagged", frame(local, true, ethernet.EtherTypeProfinet, 0xfe, 0xfd), KindDCP, ReasonNone, 0xFEFD},
		{"DCP hello multicast", frame(types.DCPHelloMulticast, false, ethernet.EtherTypeProfinet, 0xfe, 0xfc), KindDCP, ReasonNone, 0xFEFC},
		{"DCP broadcast", frame(types.BroadcastMAC, false, ethernet.EtherTypeProfinet, 0xfe, 0xfe), KindDCP, ReasonNone, 0xFEFE},
		{"DCP other station", frame(controller, false, ethernet.EtherTypeProfinet, 0xfe, 0xfd), KindUnhandled, ReasonNotAddressed, 0xFEFD},
		{"RTC unicast", frame(local, false, ethernet.EtherTypeProfinet, 0x80, 0x01), KindRTC, ReasonNone, 0x8001},
		{"RTC tagged", frame(local, true, ethernet.EtherTypeProfinet, 0xc0, 0x00), KindRTC, ReasonNone, 0xC000},
		{"RTC range top", frame(local, false, ethernet.EtherTypeProfinet, 0xfb, 0xff), KindRTC, ReasonNone, 0xFBFF},
		{"RTC multicast", frame(types.DCPIdentifyMulticast, false, ethernet.EtherTypeProfinet, 0x80, 0x01), KindUnhandled, ReasonNotAddressed, 0x8001},
		{"Alarm frame ID", frame(local, false, ethernet.EtherTypeProfinet, 0xfc, 0x01), KindUnhandled, ReasonUnknownFrameID, 0xFC01},
		{"RTC3 frame ID", frame(local, false, ethernet.EtherTypeProfinet, 0x01, 0x00), KindUnhandled, ReasonUnknownFrameID, 0x0100},
		{"IPv4", frame(local, false, ethernet.EtherTypeIPv4, 0x45), KindUnhandled, ReasonNotProfinet, 0},
		{"Tagged ARP", frame(types.BroadcastMAC, true, ethernet.EtherTypeARP, 0x00, 0x01), KindUnhandled, ReasonNotProfinet, 0},
		{"Runt", identifyAll[:10], KindUnhandled, ReasonMalformed, 0},
		{"No frame ID", identifyAll[:15], KindUnhandled, ReasonMalformed, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := c.Classify(tt.raw)
			if a.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", a.Kind, tt.kind)
			}
			if a.Reason != tt.reason {
				t.Errorf("Reason = %s, want %s", a.Reason, tt.reason)
			}
			if tt.frameID != 0 && a.FrameID != tt.frameID {
				t.Errorf("FrameID = 0x%04X, want 0x%04X", a.FrameID, tt.frameID)
			}
			if tt.reason == ReasonMalformed && !errors.Is(a.Err, types.ErrMalformedFrame) {
				t.Errorf("Err = %v, want ErrMalformedFrame", a.Err)
			}
			if a.PassThrough() != (tt.reason == ReasonNotProfinet) {
				t.Errorf("PassThrough = %v", a.PassThrough())
			}
		})
	}
}

func TestClassifyKeepsVLAN(t *testing.T) {
	c := New(DefaultConfig(local))
	a := c.Classify(frame(local, true, ethernet.EtherTypeProfinet, 0xfe, 0xfd, 0x03, 0x00))
	if !a.Header.Tagged || a.Header.VLAN.Priority() != 6 {
		t.Errorf("Header = %s", a.Header)
	}
	if a.Payload[0] != 0xfe || a.Payload[2] != 0x03 {
		t.Errorf("Payload = % x", a.Payload[:4])
	}
}

func TestClassifyCustomRange(t *testing.T) {
	c := New(Config{LocalMAC: local, RTCFrameIDMin: 0xC000, RTCFrameIDMax: 0xC0FF})
	if a := c.Classify(frame(local, false, ethernet.EtherTypeProfinet, 0xc0, 0x10)); a.Kind != KindRTC {
		t.Errorf("in range: %s", a)
	}
	if a := c.Classify(frame(local, false, ethernet.EtherTypeProfinet, 0x80, 0x00)); a.Reason != ReasonUnknownFrameID {
		t.Errorf("out of range: %s", a)
	}
}

func TestClassifyNeverPanics(t *testing.T) {
	c := New(DefaultConfig(local))
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 20000; i++ {
		buf := make([]byte, rng.Intn(ethernet.MaxFrameLength+10))
		rng.Read(buf)
		if rng.Intn(2) == 0 && len(buf) >= 14 {
			buf[12], buf[13] = 0x88, 0x92
		}
		_ = c.Classify(buf)
	}
}
