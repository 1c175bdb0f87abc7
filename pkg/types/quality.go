package types

// IOxS is the provider or consumer status byte that accompanies each
// subslot's data in a cyclic frame (IOPS or IOCS).
type IOxS uint8

// IOxS bit layout
const (
	IOxSExtension     IOxS = 0x01 // another IOxS byte follows
	IOxSDetectedMask  IOxS = 0x60 // who detected a BAD state
	IOxSDataStateGood IOxS = 0x80

	IOxSGood IOxS = IOxSDataStateGood
	IOxSBad  IOxS = 0x00
)

// Values of the detected-by field for BAD states
const (
	IOxSBySubslot    IOxS = 0x00
	IOxSBySlot       IOxS = 0x20
	IOxSByDevice     IOxS = 0x40
	IOxSByController IOxS = 0x60
)

// IsGood returns true if the data state is GOOD
func (q IOxS) IsGood() bool {
	return q&IOxSDataStateGood != 0
}

// DetectedBy returns the instance that detected a BAD state
func (q IOxS) DetectedBy() IOxS {
	return q & IOxSDetectedMask
}

// HasExtension returns true if another IOxS byte follows
func (q IOxS) HasExtension() bool {
	return q&IOxSExtension != 0
}

// WithGood returns a copy with the data state set to GOOD or BAD
func (q IOxS) WithGood(good bool) IOxS {
	if good {
		return q | IOxSDataStateGood
	}
	return q &^ IOxSDataStateGood
}

// String returns string representation of IOxS
func (q IOxS) String() string {
	if q.IsGood() {
		return "GOOD"
	}
	switch q.DetectedBy() {
	case IOxSBySlot:
		return "BAD(slot)"
	case IOxSByDevice:
		return "BAD(device)"
	case IOxSByController:
		return "BAD(controller)"
	default:
		return "BAD(subslot)"
	}
}
