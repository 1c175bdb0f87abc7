package rtc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"avaneesh/pnio-go/pkg/types"
)

// RTC1 frame geometry
const (
	FrameIDLength     = 2
	TrailerLength     = 4
	MinIODataLength   = 40
	MaxIODataLength   = 1440
	MinLength         = FrameIDLength + MinIODataLength + TrailerLength
	DefaultFrameIDMin = 0x8000
	DefaultFrameIDMax = 0xFBFF
)

// CycleCounterTickNanos is the resolution of the cycle counter (31.25 µs)
const CycleCounterTickNanos = 31250

var (
	ErrTooShort = errors.New("RTC frame too short")
	ErrTooLong  = errors.New("RTC frame too long")
)

// PDU is a decoded cyclic frame starting at the frame ID.
// IOData references the decoded buffer.
type PDU struct {
	FrameID        uint16
	IOData         []byte
	CycleCounter   uint16
	DataStatus     types.DataStatus
	TransferStatus uint8
}

// Decode parses a cyclic frame. A non-zero transfer status fails with
// types.ErrTransferStatus.
func Decode(payload []byte) (*PDU, error) {
	if len(payload) < MinLength {
		return nil, fmt.Errorf("%w: %w: %d bytes", types.ErrMalformedFrame, ErrTooShort, len(payload))
	}
	if len(payload) > FrameIDLength+MaxIODataLength+TrailerLength {
		return nil, fmt.Errorf("%w: %w: %d bytes", types.ErrMalformedFrame, ErrTooLong, len(payload))
	}
	trailer := payload[len(payload)-TrailerLength:]
	p := &PDU{
		FrameID:        binary.BigEndian.Uint16(payload[0:2]),
		IOData:         payload[FrameIDLength : len(payload)-TrailerLength],
		CycleCounter:   binary.BigEndian.Uint16(trailer[0:2]),
		DataStatus:     types.DataStatus(trailer[2]),
		TransferStatus: trailer[3],
	}
	if p.TransferStatus != 0 {
		return nil, fmt.Errorf("%w: frame 0x%04X transfer status 0x%02X", types.ErrTransferStatus, p.FrameID, p.TransferStatus)
	}
	return p, nil
}

// Length returns the encoded length including the minimum IO data padding
func (p *PDU) Length() int {
	return FrameIDLength + max(len(p.IOData), MinIODataLength) + TrailerLength
}

// AppendTo appends the encoded frame to buf. IO data shorter than the
// minimum is zero padded.
func (p *PDU) AppendTo(buf []byte) ([]byte, error) {
	if len(p.IOData) > MaxIODataLength {
		return buf, fmt.Errorf("%w: %d bytes of IO data", ErrTooLong, len(p.IOData))
	}
	buf = binary.BigEndian.AppendUint16(buf, p.FrameID)
	buf = append(buf, p.IOData...)
	for i := len(p.IOData); i < MinIODataLength; i++ {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint16(buf, p.CycleCounter)
	return append(buf, uint8(p.DataStatus), p.TransferStatus), nil
}

// Encode returns the encoded frame
func (p *PDU) Encode() ([]byte, error) {
	return p.AppendTo(make([]byte, 0, p.Length()))
}

// String returns string representation of PDU
func (p *PDU) String() string {
	return fmt.Sprintf("RTC{FrameID=0x%04X, Len=%d, Cycle=%d, Status=%s, Transfer=0x%02X}",
		p.FrameID, len(p.IOData), p.CycleCounter, p.DataStatus, p.TransferStatus)
}

// CounterAfter reports whether counter a is newer than b, accounting for wraparound
func CounterAfter(a, b uint16) bool {
	return int16(a-b) > 0
}
