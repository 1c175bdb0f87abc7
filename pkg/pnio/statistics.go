package pnio

import (
	"sync/atomic"

	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/discovery"
)

// Statistics counts classification outcomes
type Statistics struct {
	received       atomic.Uint64
	dcp            atomic.Uint64
	rtc            atomic.Uint64
	passedThrough  atomic.Uint64
	malformed      atomic.Uint64
	notAddressed   atomic.Uint64
	unknownFrameID atomic.Uint64
	watchdogs      atomic.Uint64
}

// FrameStats is a copy of the classification counters
type FrameStats struct {
	Received        uint64 `json:"received"`
	DCP             uint64 `json:"dcp"`
	RTC             uint64 `json:"rtc"`
	PassedThrough   uint64 `json:"passed_through"`
	Malformed       uint64 `json:"malformed"`
	NotAddressed    uint64 `json:"not_addressed"`
	UnknownFrameIDs uint64 `json:"unknown_frame_ids"`
	Watchdogs       uint64 `json:"watchdogs"`
}

// Snapshot returns the current counters
func (s *Statistics) Snapshot() FrameStats {
	return FrameStats{
		Received:        s.received.Load(),
		DCP:             s.dcp.Load(),
		RTC:             s.rtc.Load(),
		PassedThrough:   s.passedThrough.Load(),
		Malformed:       s.malformed.Load(),
		NotAddressed:    s.notAddressed.Load(),
		UnknownFrameIDs: s.unknownFrameID.Load(),
		Watchdogs:       s.watchdogs.Load(),
	}
}

// DeviceStatistics aggregates the counters of all components
type DeviceStatistics struct {
	Frames FrameStats              `json:"frames"`
	DCP    discovery.StatsSnapshot `json:"dcp"`
	Cyclic cyclic.StatsSnapshot    `json:"cyclic"`
}
