package types

import (
	"fmt"
	"strings"
)

// DataStatus is the status byte carried in the trailer of every cyclic frame.
// The device sends its own health in outgoing frames and surfaces the
// controller's value from incoming frames without modification.
type DataStatus uint8

// DataStatus bit masks
const (
	DataStatusState          DataStatus = 0x01 // 1 = primary, 0 = backup
	DataStatusRedundancy     DataStatus = 0x02 // redundancy: 1 = no primary AR present
	DataStatusDataValid      DataStatus = 0x04 // 1 = data valid
	DataStatusReserved3      DataStatus = 0x08
	DataStatusProviderRun    DataStatus = 0x10 // 1 = run, 0 = stop
	DataStatusStationOK      DataStatus = 0x20 // station problem indicator, 1 = normal operation
	DataStatusIgnore         DataStatus = 0x40 // 1 = evaluate nothing else in this frame
	DataStatusReserved7      DataStatus = 0x80
	DataStatusDefault        DataStatus = DataStatusState | DataStatusDataValid | DataStatusProviderRun | DataStatusStationOK
	DataStatusWatchdogExpiry DataStatus = DataStatusState | DataStatusStationOK
)

// IsPrimary returns true if the state bit is set
func (s DataStatus) IsPrimary() bool {
	return s&DataStatusState != 0
}

// IsDataValid returns true if the data valid bit is set
func (s DataStatus) IsDataValid() bool {
	return s&DataStatusDataValid != 0
}

// IsRun returns true if the provider state is Run
func (s DataStatus) IsRun() bool {
	return s&DataStatusProviderRun != 0
}

// HasStationProblem returns true if the station problem indicator signals a problem.
// The wire bit is inverted: 1 means normal operation.
func (s DataStatus) HasStationProblem() bool {
	return s&DataStatusStationOK == 0
}

// IsIgnored returns true if the ignore bit is set
func (s DataStatus) IsIgnored() bool {
	return s&DataStatusIgnore != 0
}

// WithDataValid returns a copy with the data valid bit set or cleared
func (s DataStatus) WithDataValid(valid bool) DataStatus {
	return s.with(DataStatusDataValid, valid)
}

// WithRun returns a copy with the provider state set to Run or Stop
func (s DataStatus) WithRun(run bool) DataStatus {
	return s.with(DataStatusProviderRun, run)
}

// WithStationProblem returns a copy signalling a station problem or normal operation
func (s DataStatus) WithStationProblem(problem bool) DataStatus {
	return s.with(DataStatusStationOK, !problem)
}

// WithPrimary returns a copy with the state bit set or cleared
func (s DataStatus) WithPrimary(primary bool) DataStatus {
	return s.with(DataStatusState, primary)
}

func (s DataStatus) with(mask DataStatus, on bool) DataStatus {
	if on {
		return s | mask
	}
	return s &^ mask
}

// String returns a compact description of the set bits
func (s DataStatus) String() string {
	parts := make([]string, 0, 5)
	if s.IsPrimary() {
		parts = append(parts, "Primary")
	} else {
		parts = append(parts, "Backup")
	}
	if s.IsDataValid() {
		parts = append(parts, "Valid")
	} else {
		parts = append(parts, "Invalid")
	}
	if s.IsRun() {
		parts = append(parts, "Run")
	} else {
		parts = append(parts, "Stop")
	}
	if s.HasStationProblem() {
		parts = append(parts, "Problem")
	}
	if s.IsIgnored() {
		parts = append(parts, "Ignore")
	}
	return fmt.Sprintf("0x%02X[%s]", uint8(s), strings.Join(parts, ","))
}
