package cyclic

import (
	"fmt"
	"time"

	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/types"
)

// State of a cyclic session
type State int

const (
	StateWaitingForFirstData State = iota
	StateDataExchange
	// StateWatchdogExpired is terminal. Only a new AR leaves it.
	StateWatchdogExpired
)

// String returns string representation of State
func (s State) String() string {
	switch s {
	case StateWaitingForFirstData:
		return "WaitingForFirstData"
	case StateDataExchange:
		return "DataExchange"
	case StateWatchdogExpired:
		return "WatchdogExpired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Handle identifies a session slot. A handle becomes stale once its session
// is aborted, even if the slot is reused.
type Handle struct {
	index      uint16
	generation uint32
}

// IsValid reports whether h was returned by Establish
func (h Handle) IsValid() bool {
	return h.generation != 0
}

// String returns string representation of Handle
func (h Handle) String() string {
	return fmt.Sprintf("ar%d.%d", h.index, h.generation)
}

// MarshalText implements encoding.TextMarshaler
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// ObjectStatus is the last status exchanged for one IO object
type ObjectStatus struct {
	Slot    uint16     `json:"slot"`
	Subslot uint16     `json:"subslot"`
	Output  bool       `json:"output"`
	IOPS    types.IOxS `json:"iops"`
	IOCS    types.IOxS `json:"iocs"`
}

// Session is the cyclic state of one AR
type Session struct {
	Handle                   Handle           `json:"handle"`
	AR                       AR               `json:"-"`
	State                    State            `json:"state"`
	SendCycleCounter         uint16           `json:"send_cycle_counter"`
	LastReceivedCycleCounter uint16           `json:"last_received_cycle_counter"`
	ConsecutiveMissedCycles  uint16           `json:"consecutive_missed_cycles"`
	DataStatusOut            types.DataStatus `json:"data_status_out"`
	DataStatusIn             types.DataStatus `json:"data_status_in"`
	Objects                  []ObjectStatus   `json:"objects"`

	FramesSent     uint64    `json:"frames_sent"`
	FramesReceived uint64    `json:"frames_received"`
	StaleCounters  uint64    `json:"stale_counters"`
	TransferErrors uint64    `json:"transfer_errors"`
	Malformed      uint64    `json:"malformed"`
	EstablishedAt  time.Time `json:"established_at"`

	elapsed     time.Duration
	received    bool
	haveCounter bool
	tagged      bool
	vlan        ethernet.VLANTag
	txData      []byte
}

func newSession(h Handle, ar AR, now time.Time) Session {
	s := Session{
		Handle:        h,
		AR:            ar,
		State:         StateWaitingForFirstData,
		DataStatusOut: types.DataStatusDefault,
		Objects:       make([]ObjectStatus, len(ar.Layout)),
		EstablishedAt: now,
		txData:        make([]byte, ar.OutputLength),
	}
	for i, o := range ar.Layout {
		s.Objects[i] = ObjectStatus{Slot: o.Slot, Subslot: o.Subslot, Output: o.Direction == DirectionOutput, IOPS: types.IOxSBad, IOCS: types.IOxSBad}
	}
	return s
}

// snapshot copies s so the caller cannot reach live session memory
func (s *Session) snapshot() Session {
	c := *s
	c.AR = s.AR.clone()
	c.Objects = append([]ObjectStatus(nil), s.Objects...)
	c.txData = nil
	return c
}

// String returns string representation of Session
func (s *Session) String() string {
	return fmt.Sprintf("Session{%s, AR=%s, %s, out=0x%04X in=0x%04X, missed=%d/%d}",
		s.Handle, s.AR.UUID, s.State, s.AR.OutputFrameID, s.AR.InputFrameID,
		s.ConsecutiveMissedCycles, s.AR.WatchdogFactor)
}
