package ethernet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"avaneesh/pnio-go/pkg/types"
)

// Frame geometry, FCS excluded
const (
	HeaderLength     = 14
	VLANHeaderLength = 18
	MinFrameLength   = 60
	MaxFrameLength   = 1518

	EtherTypeProfinet uint16 = 0x8892
	EtherTypeVLAN     uint16 = 0x8100
	EtherTypeIPv4     uint16 = 0x0800
	EtherTypeARP      uint16 = 0x0806
	EtherTypeLLDP     uint16 = 0x88CC
)

var (
	ErrFrameTooShort = errors.New("ethernet frame too short")
	ErrFrameTooLong  = errors.New("ethernet frame too long")
)

// VLANTag is an 802.1Q tag control information field
type VLANTag uint16

// NewVLANTag builds a tag from its fields
func NewVLANTag(priority uint8, dropEligible bool, vid uint16) VLANTag {
	t := VLANTag(priority&0x07)<<13 | VLANTag(vid&0x0FFF)
	if dropEligible {
		t |= 0x1000
	}
	return t
}

// Priority returns the 3-bit PCP field
func (t VLANTag) Priority() uint8 { return uint8(t >> 13) }

// DropEligible returns the DEI bit
func (t VLANTag) DropEligible() bool { return t&0x1000 != 0 }

// VID returns the VLAN identifier
func (t VLANTag) VID() uint16 { return uint16(t & 0x0FFF) }

func (t VLANTag) String() string {
	return fmt.Sprintf("VLAN{PCP=%d, DEI=%v, VID=%d}", t.Priority(), t.DropEligible(), t.VID())
}

// Header is an Ethernet II header with an optional 802.1Q tag
type Header struct {
	Destination types.MAC
	Source      types.MAC
	Tagged      bool
	VLAN        VLANTag
	EtherType   uint16
}

// Length returns the encoded header length
func (h Header) Length() int {
	if h.Tagged {
		return VLANHeaderLength
	}
	return HeaderLength
}

// Parse splits a raw frame into its header and payload. The payload aliases raw.
func Parse(raw []byte) (Header, []byte, error) {
	var h Header
	if len(raw) < HeaderLength {
		return h, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(raw))
	}
	if len(raw) > MaxFrameLength {
		return h, nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, len(raw))
	}
	copy(h.Destination[:], raw[0:6])
	copy(h.Source[:], raw[6:12])
	h.EtherType = binary.BigEndian.Uint16(raw[12:14])
	if h.EtherType != EtherTypeVLAN {
		return h, raw[HeaderLength:], nil
	}
	if len(raw) < VLANHeaderLength {
		return h, nil, fmt.Errorf("%w: truncated VLAN tag", ErrFrameTooShort)
	}
	h.Tagged = true
	h.VLAN = VLANTag(binary.BigEndian.Uint16(raw[14:16]))
	h.EtherType = binary.BigEndian.Uint16(raw[16:18])
	return h, raw[VLANHeaderLength:], nil
}

// AppendTo appends the encoded header to buf
func (h Header) AppendTo(buf []byte) []byte {
	buf = append(buf, h.Destination[:]...)
	buf = append(buf, h.Source[:]...)
	if h.Tagged {
		buf = binary.BigEndian.AppendUint16(buf, EtherTypeVLAN)
		buf = binary.BigEndian.AppendUint16(buf, uint16(h.VLAN))
	}
	return binary.BigEndian.AppendUint16(buf, h.EtherType)
}

// Reply returns the header for a frame answering h from the local station.
// The VLAN tag of the request is echoed so the reply keeps its priority.
func (h Header) Reply(local types.MAC) Header {
	return Header{
		Destination: h.Source,
		Source:      local,
		Tagged:      h.Tagged,
		VLAN:        h.VLAN,
		EtherType:   h.EtherType,
	}
}

// String returns string representation of header
func (h Header) String() string {
	if h.Tagged {
		return fmt.Sprintf("Eth{Dst=%s, Src=%s, %s, Type=0x%04X}", h.Destination, h.Source, h.VLAN, h.EtherType)
	}
	return fmt.Sprintf("Eth{Dst=%s, Src=%s, Type=0x%04X}", h.Destination, h.Source, h.EtherType)
}

// Pad zero-extends frame to the Ethernet minimum length
func Pad(frame []byte) []byte {
	for len(frame) < MinFrameLength {
		frame = append(frame, 0)
	}
	return frame
}

// Build encodes a complete frame from header and payload, padded to the minimum length
func Build(h Header, payload []byte) []byte {
	buf := make([]byte, 0, max(h.Length()+len(payload), MinFrameLength))
	buf = h.AppendTo(buf)
	buf = append(buf, payload...)
	return Pad(buf)
}
