package cyclic

import "sync/atomic"

// Statistics counts cyclic traffic over all sessions
type Statistics struct {
	established     atomic.Uint64
	aborted         atomic.Uint64
	watchdogExpired atomic.Uint64
	framesSent      atomic.Uint64
	framesReceived  atomic.Uint64
	sendErrors      atomic.Uint64
	abandoned       atomic.Uint64
	unknown         atomic.Uint64
	malformed       atomic.Uint64
	transferErrors  atomic.Uint64
}

// StatsSnapshot is a copy of the counters
type StatsSnapshot struct {
	Established     uint64 `json:"established"`
	Aborted         uint64 `json:"aborted"`
	WatchdogExpired uint64 `json:"watchdog_expired"`
	FramesSent      uint64 `json:"frames_sent"`
	FramesReceived  uint64 `json:"frames_received"`
	SendErrors      uint64 `json:"send_errors"`
	AbandonedFrames uint64 `json:"abandoned_frames"`
	UnknownFrameIDs uint64 `json:"unknown_frame_ids"`
	Malformed       uint64 `json:"malformed"`
	TransferErrors  uint64 `json:"transfer_errors"`
}

// Snapshot returns the current counters
func (s *Statistics) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Established:     s.established.Load(),
		Aborted:         s.aborted.Load(),
		WatchdogExpired: s.watchdogExpired.Load(),
		FramesSent:      s.framesSent.Load(),
		FramesReceived:  s.framesReceived.Load(),
		SendErrors:      s.sendErrors.Load(),
		AbandonedFrames: s.abandoned.Load(),
		UnknownFrameIDs: s.unknown.Load(),
		Malformed:       s.malformed.Load(),
		TransferErrors:  s.transferErrors.Load(),
	}
}
