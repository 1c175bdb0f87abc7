package cyclic

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"avaneesh/pnio-go/pkg/rtc"
	"avaneesh/pnio-go/pkg/types"
)

// Errors returned when establishing or addressing sessions
var (
	ErrInvalidAR     = errors.New("invalid application relationship")
	ErrNoFreeSlot    = errors.New("all session slots in use")
	ErrUnknownHandle = errors.New("unknown or released session handle")
	ErrFrameIDInUse  = errors.New("frame ID already used by another session")
)

// Direction of an IO object as seen from the device
type Direction uint8

const (
	// DirectionInput data is consumed by the device: it arrives in the
	// controller's frame together with the controller's IOPS, and the device
	// answers with an IOCS in its own frame.
	DirectionInput Direction = iota
	// DirectionOutput data is produced by the device: it leaves in the
	// device's frame with the device's IOPS, and the controller answers with
	// an IOCS in its frame.
	DirectionOutput
)

// String returns string representation of Direction
func (d Direction) String() string {
	if d == DirectionOutput {
		return "Output"
	}
	return "Input"
}

// IOObject places one subslot's data and status bytes inside the cyclic frames.
// Offsets are relative to the start of the C_SDU. DataOffset and IOPSOffset
// lie in the frame carrying the data; IOCSOffset lies in the opposite frame.
type IOObject struct {
	Slot       uint16
	Subslot    uint16
	Direction  Direction
	DataLength uint16
	DataOffset uint16
	IOPSOffset uint16
	IOCSOffset uint16
}

// String returns string representation of IOObject
func (o IOObject) String() string {
	return fmt.Sprintf("%s[%d/%d len=%d]", o.Direction, o.Slot, o.Subslot, o.DataLength)
}

// AR is the negotiated layout of one application relationship, as handed
// over by connection management. InputFrameID is received by the device,
// OutputFrameID is sent by it.
type AR struct {
	UUID           uuid.UUID
	InputFrameID   uint16
	OutputFrameID  uint16
	CycleTime      time.Duration
	WatchdogFactor uint16
	InputLength    uint16
	OutputLength   uint16
	RemoteMAC      types.MAC
	Layout         []IOObject

	// CounterStep overrides the cycle counter increment per cycle. Zero
	// derives it from CycleTime in 31.25 µs units.
	CounterStep uint16
}

// counterStep returns the cycle counter increment per cycle
func (ar *AR) counterStep() uint16 {
	if ar.CounterStep != 0 {
		return ar.CounterStep
	}
	step := ar.CycleTime.Nanoseconds() / rtc.CycleCounterTickNanos
	if step < 1 {
		return 1
	}
	return uint16(step)
}

// clone deep copies the layout so callers cannot change a live session
func (ar AR) clone() AR {
	ar.Layout = append([]IOObject(nil), ar.Layout...)
	return ar
}

type span struct {
	from, to int
	what     string
}

// Validate checks the AR for a usable frame layout
func (ar *AR) Validate(frameIDMin, frameIDMax uint16) error {
	if ar.CycleTime <= 0 {
		return fmt.Errorf("%w: cycle time %v", ErrInvalidAR, ar.CycleTime)
	}
	if ar.WatchdogFactor < 1 {
		return fmt.Errorf("%w: watchdog factor %d", ErrInvalidAR, ar.WatchdogFactor)
	}
	for _, id := range []uint16{ar.InputFrameID, ar.OutputFrameID} {
		if id < frameIDMin || id > frameIDMax {
			return fmt.Errorf("%w: frame ID 0x%04X outside 0x%04X..0x%04X", ErrInvalidAR, id, frameIDMin, frameIDMax)
		}
	}
	if ar.InputFrameID == ar.OutputFrameID {
		return fmt.Errorf("%w: input and output share frame ID 0x%04X", ErrInvalidAR, ar.InputFrameID)
	}
	for _, n := range []uint16{ar.InputLength, ar.OutputLength} {
		if n < rtc.MinIODataLength || n > rtc.MaxIODataLength {
			return fmt.Errorf("%w: C_SDU length %d outside %d..%d", ErrInvalidAR, n, rtc.MinIODataLength, rtc.MaxIODataLength)
		}
	}
	if ar.RemoteMAC == (types.MAC{}) || ar.RemoteMAC.IsMulticast() {
		return fmt.Errorf("%w: controller MAC %s", ErrInvalidAR, ar.RemoteMAC)
	}

	var in, out []span
	for _, o := range ar.Layout {
		dataFrame, otherFrame := &in, &out
		dataLen, otherLen := ar.InputLength, ar.OutputLength
		if o.Direction == DirectionOutput {
			dataFrame, otherFrame = &out, &in
			dataLen, otherLen = ar.OutputLength, ar.InputLength
		}
		if int(o.DataOffset)+int(o.DataLength) > int(dataLen) {
			return fmt.Errorf("%w: %s data ends beyond C_SDU of %d bytes", ErrInvalidAR, o, dataLen)
		}
		if o.IOPSOffset >= dataLen {
			return fmt.Errorf("%w: %s IOPS at %d beyond C_SDU", ErrInvalidAR, o, o.IOPSOffset)
		}
		if o.IOCSOffset >= otherLen {
			return fmt.Errorf("%w: %s IOCS at %d beyond C_SDU", ErrInvalidAR, o, o.IOCSOffset)
		}
		if o.DataLength > 0 {
			*dataFrame = append(*dataFrame, span{int(o.DataOffset), int(o.DataOffset + o.DataLength), o.String() + " data"})
		}
		*dataFrame = append(*dataFrame, span{int(o.IOPSOffset), int(o.IOPSOffset) + 1, o.String() + " IOPS"})
		*otherFrame = append(*otherFrame, span{int(o.IOCSOffset), int(o.IOCSOffset) + 1, o.String() + " IOCS"})
	}
	if err := checkOverlap(in); err != nil {
		return fmt.Errorf("%w: input frame: %w", ErrInvalidAR, err)
	}
	if err := checkOverlap(out); err != nil {
		return fmt.Errorf("%w: output frame: %w", ErrInvalidAR, err)
	}
	return nil
}

func checkOverlap(spans []span) error {
	sort.Slice(spans, func(i, j int) bool { return spans[i].from < spans[j].from })
	for i := 1; i < len(spans); i++ {
		if spans[i].from < spans[i-1].to {
			return fmt.Errorf("%s overlaps %s", spans[i].what, spans[i-1].what)
		}
	}
	return nil
}
