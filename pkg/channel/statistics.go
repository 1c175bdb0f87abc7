package channel

import "sync/atomic"

// Statistics tracks channel-level frame counters
type Statistics struct {
	numFramesTx  uint64
	numFramesRx  uint64
	numBadFrames uint64
	numTxDropped uint64
	numTxErrors  uint64
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	return &Statistics{}
}

// FrameTx increments transmitted frames
func (s *Statistics) FrameTx() {
	atomic.AddUint64(&s.numFramesTx, 1)
}

// FrameRx increments received frames
func (s *Statistics) FrameRx() {
	atomic.AddUint64(&s.numFramesRx, 1)
}

// BadFrame increments frames dropped on receive for being unusable
func (s *Statistics) BadFrame() {
	atomic.AddUint64(&s.numBadFrames, 1)
}

// TxDropped increments frames dropped because the write queue was full
func (s *Statistics) TxDropped() {
	atomic.AddUint64(&s.numTxDropped, 1)
}

// TxError increments frames the medium failed to send
func (s *Statistics) TxError() {
	atomic.AddUint64(&s.numTxErrors, 1)
}

// StatsSnapshot is a copy of the channel counters
type StatsSnapshot struct {
	FramesTx  uint64 `json:"frames_tx"`
	FramesRx  uint64 `json:"frames_rx"`
	BadFrames uint64 `json:"bad_frames"`
	TxDropped uint64 `json:"tx_dropped"`
	TxErrors  uint64 `json:"tx_errors"`
}

// Snapshot returns the current counters
func (s *Statistics) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		FramesTx:  atomic.LoadUint64(&s.numFramesTx),
		FramesRx:  atomic.LoadUint64(&s.numFramesRx),
		BadFrames: atomic.LoadUint64(&s.numBadFrames),
		TxDropped: atomic.LoadUint64(&s.numTxDropped),
		TxErrors:  atomic.LoadUint64(&s.numTxErrors),
	}
}
