package discovery

import "sync/atomic"

// Statistics counts DCP traffic. Counters are read by diagnostics from
// other goroutines.
type Statistics struct {
	identifyRx       atomic.Uint64
	identifyMatched  atomic.Uint64
	duplicates       atomic.Uint64
	getRx            atomic.Uint64
	setAccepted      atomic.Uint64
	setRejected      atomic.Uint64
	unsupported      atomic.Uint64
	malformed        atomic.Uint64
	responsesTx      atomic.Uint64
	responsesExpired atomic.Uint64
	sendErrors       atomic.Uint64
}

// StatsSnapshot is a copy of the counters
type StatsSnapshot struct {
	IdentifyReceived uint64 `json:"identify_received"`
	IdentifyMatched  uint64 `json:"identify_matched"`
	Duplicates       uint64 `json:"duplicates"`
	GetReceived      uint64 `json:"get_received"`
	SetAccepted      uint64 `json:"set_accepted"`
	SetRejected      uint64 `json:"set_rejected"`
	Unsupported      uint64 `json:"unsupported"`
	Malformed        uint64 `json:"malformed"`
	ResponsesSent    uint64 `json:"responses_sent"`
	ResponsesExpired uint64 `json:"responses_expired"`
	SendErrors       uint64 `json:"send_errors"`
}

// Snapshot returns the current counters
func (s *Statistics) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		IdentifyReceived: s.identifyRx.Load(),
		IdentifyMatched:  s.identifyMatched.Load(),
		Duplicates:       s.duplicates.Load(),
		GetReceived:      s.getRx.Load(),
		SetAccepted:      s.setAccepted.Load(),
		SetRejected:      s.setRejected.Load(),
		Unsupported:      s.unsupported.Load(),
		Malformed:        s.malformed.Load(),
		ResponsesSent:    s.responsesTx.Load(),
		ResponsesExpired: s.responsesExpired.Load(),
		SendErrors:       s.sendErrors.Load(),
	}
}
