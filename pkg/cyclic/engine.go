package cyclic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/internal/logger"
	"avaneesh/pnio-go/pkg/rtc"
	"avaneesh/pnio-go/pkg/types"
)

// DefaultMaxARs is the number of session slots when Config.MaxARs is zero
const DefaultMaxARs = 2

// Config configures the cyclic engine
type Config struct {
	LocalMAC   types.MAC
	MaxARs     int
	FrameIDMin uint16
	FrameIDMax uint16
}

func (c *Config) applyDefaults() {
	if c.MaxARs <= 0 {
		c.MaxARs = DefaultMaxARs
	}
	if c.FrameIDMin == 0 && c.FrameIDMax == 0 {
		c.FrameIDMin, c.FrameIDMax = rtc.DefaultFrameIDMin, rtc.DefaultFrameIDMax
	}
}

// Sender hands complete frames to the Ethernet driver. The frame is only
// valid during the call.
type Sender interface {
	SendFrame(frame []byte) error
}

// Listener is notified by the engine. Callbacks run inside OnTick or
// HandleFrame and may call Abort.
type Listener interface {
	OnWatchdogExpired(h Handle, ar AR)
	OnDataStatusChanged(h Handle, old, updated types.DataStatus)
}

type slot struct {
	generation uint32
	live       bool
	session    Session
}

// Engine runs the cyclic exchange of all ARs. It is not safe for concurrent
// use; OnTick, HandleFrame, Establish and Abort must be serialized by the caller.
type Engine struct {
	config   Config
	sender   Sender
	image    ProcessImage
	listener Listener
	logger   logger.Logger

	slots          []slot
	providerRun    bool
	stationProblem bool
	scratch        []byte
	stats          Statistics
}

// Option customizes an Engine
type Option func(*Engine)

// WithListener registers the connection management callbacks
func WithListener(l Listener) Option { return func(e *Engine) { e.listener = l } }

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option { return func(e *Engine) { e.logger = logger.OrNoOp(l) } }

// New creates an engine with a fixed number of session slots
func New(config Config, sender Sender, image ProcessImage, opts ...Option) *Engine {
	config.applyDefaults()
	e := &Engine{
		config:      config,
		sender:      sender,
		image:       image,
		logger:      logger.NewNoOpLogger(),
		slots:       make([]slot, config.MaxARs),
		providerRun: true,
		scratch:     make([]byte, 0, ethernet.VLANHeaderLength+rtc.FrameIDLength+rtc.MaxIODataLength+rtc.TrailerLength),
	}
	for i := range e.slots {
		e.slots[i].generation = 1
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Establish starts a cyclic session for ar in WaitingForFirstData
func (e *Engine) Establish(ar AR, now time.Time) (Handle, error) {
	if err := ar.Validate(e.config.FrameIDMin, e.config.FrameIDMax); err != nil {
		return Handle{}, err
	}
	free := -1
	for i := range e.slots {
		sl := &e.slots[i]
		if !sl.live {
			if free < 0 {
				free = i
			}
			continue
		}
		other := &sl.session.AR
		if other.InputFrameID == ar.InputFrameID || other.OutputFrameID == ar.OutputFrameID ||
			other.InputFrameID == ar.OutputFrameID || other.OutputFrameID == ar.InputFrameID {
			return Handle{}, fmt.Errorf("%w: %s", ErrFrameIDInUse, sl.session.Handle)
		}
	}
	if free < 0 {
		return Handle{}, fmt.Errorf("%w (%d)", ErrNoFreeSlot, len(e.slots))
	}

	sl := &e.slots[free]
	h := Handle{index: uint16(free), generation: sl.generation}
	sl.live = true
	sl.session = newSession(h, ar.clone(), now)
	e.stats.established.Add(1)
	e.logger.Info("RTC: established %s", &sl.session)
	return h, nil
}

// Abort releases the session. Its handle becomes invalid and no further
// frame is sent for it.
func (e *Engine) Abort(h Handle) error {
	sl, err := e.lookup(h)
	if err != nil {
		return err
	}
	e.logger.Info("RTC: aborted %s", &sl.session)
	sl.live = false
	sl.generation++
	if sl.generation == 0 {
		sl.generation = 1
	}
	sl.session = Session{}
	e.stats.aborted.Add(1)
	return nil
}

// Session returns a copy of the session state
func (e *Engine) Session(h Handle) (Session, error) {
	sl, err := e.lookup(h)
	if err != nil {
		return Session{}, err
	}
	return sl.session.snapshot(), nil
}

// Sessions returns the handles of all live sessions
func (e *Engine) Sessions() []Handle {
	var hs []Handle
	for i := range e.slots {
		if e.slots[i].live {
			hs = append(hs, e.slots[i].session.Handle)
		}
	}
	return hs
}

// Active reports whether any AR is established and not yet lost
func (e *Engine) Active() bool {
	for i := range e.slots {
		if e.slots[i].live && e.slots[i].session.State != StateWatchdogExpired {
			return true
		}
	}
	return false
}

// SetProviderRun sets the provider state reported in outgoing frames
func (e *Engine) SetProviderRun(run bool) {
	e.providerRun = run
}

// SetStationProblem sets the station problem indicator in outgoing frames
func (e *Engine) SetStationProblem(problem bool) {
	e.stationProblem = problem
}

// Statistics returns the engine counters
func (e *Engine) Statistics() StatsSnapshot {
	return e.stats.Snapshot()
}

func (e *Engine) lookup(h Handle) (*slot, error) {
	if !h.IsValid() || int(h.index) >= len(e.slots) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	sl := &e.slots[h.index]
	if !sl.live || sl.generation != h.generation {
		return nil, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	return sl, nil
}

func (e *Engine) alive(h Handle) bool {
	_, err := e.lookup(h)
	return err == nil
}

// OnTick advances every session by elapsed. Each session sends at most
// one frame per tick, carrying the cycle counter of the latest cycle.
func (e *Engine) OnTick(elapsed time.Duration) {
	for i := range e.slots {
		if e.slots[i].live {
			e.tickSession(e.slots[i].session.Handle, elapsed)
		}
	}
}

func (e *Engine) tickSession(h Handle, elapsed time.Duration) {
	s := &e.slots[h.index].session
	s.elapsed += elapsed
	cycles := s.elapsed / s.AR.CycleTime
	if cycles <= 0 {
		return
	}
	s.elapsed -= cycles * s.AR.CycleTime
	s.SendCycleCounter += uint16(cycles) * s.AR.counterStep()

	// Beyond factor+1 cycles the outcome no longer changes.
	supervise := min(int64(cycles), int64(s.AR.WatchdogFactor)+1)
	for n := int64(0); n < supervise; n++ {
		if e.supervise(h, s) {
			break
		}
	}
	if !e.alive(h) {
		return
	}
	e.transmit(h, s)
}

// supervise accounts one elapsed cycle and reports whether the session
// expired in it.
func (e *Engine) supervise(h Handle, s *Session) bool {
	received := s.received
	s.received = false
	if s.State != StateDataExchange || received {
		return false
	}
	s.ConsecutiveMissedCycles++
	if s.ConsecutiveMissedCycles < s.AR.WatchdogFactor {
		return false
	}

	s.State = StateWatchdogExpired
	e.stats.watchdogExpired.Add(1)
	e.logger.Warn("RTC: watchdog expired after %d missed cycles of %v: %s",
		s.ConsecutiveMissedCycles, s.AR.CycleTime, s)
	if e.listener != nil {
		e.listener.OnWatchdogExpired(h, s.AR.clone())
	}
	return true
}

func (e *Engine) outputStatus(s *Session) types.DataStatus {
	status := types.DataStatusDefault.WithRun(e.providerRun)
	if s.State == StateWatchdogExpired {
		status = types.DataStatusWatchdogExpiry
	}
	return status.WithStationProblem(e.stationProblem)
}

func (e *Engine) transmit(h Handle, s *Session) {
	if s.State != StateWatchdogExpired {
		for i, o := range s.AR.Layout {
			if o.Direction == DirectionInput {
				s.txData[o.IOCSOffset] = byte(s.Objects[i].IOCS)
				continue
			}
			iops := e.image.ReadOutput(h, o, s.txData[o.DataOffset:o.DataOffset+o.DataLength])
			// The process image may have aborted the session.
			if !e.alive(h) {
				e.stats.abandoned.Add(1)
				return
			}
			s.txData[o.IOPSOffset] = byte(iops)
			s.Objects[i].IOPS = iops
		}
	}
	s.DataStatusOut = e.outputStatus(s)

	hdr := ethernet.Header{
		Destination: s.AR.RemoteMAC,
		Source:      e.config.LocalMAC,
		Tagged:      s.tagged,
		VLAN:        s.vlan,
		EtherType:   ethernet.EtherTypeProfinet,
	}
	pdu := rtc.PDU{
		FrameID:      s.AR.OutputFrameID,
		IOData:       s.txData,
		CycleCounter: s.SendCycleCounter,
		DataStatus:   s.DataStatusOut,
	}
	frame, err := pdu.AppendTo(hdr.AppendTo(e.scratch[:0]))
	if err != nil {
		e.logger.Error("RTC: encode %s: %v", s.Handle, err)
		return
	}
	e.scratch = frame[:0]
	if err := e.sender.SendFrame(ethernet.Pad(frame)); err != nil {
		e.stats.sendErrors.Add(1)
		e.logger.Warn("RTC: send failed for %s: %v", s.Handle, err)
		return
	}
	s.FramesSent++
	e.stats.framesSent.Add(1)
}

// HandleFrame processes a received cyclic frame. payload starts at the
// frame ID. Frames for unknown frame IDs or from another controller are
// ignored. A frame with a non-zero transfer status is dropped and counts as
// not received.
func (e *Engine) HandleFrame(h ethernet.Header, payload []byte) error {
	if len(payload) < rtc.FrameIDLength {
		e.stats.malformed.Add(1)
		return fmt.Errorf("%w: %w", types.ErrMalformedFrame, rtc.ErrTooShort)
	}
	frameID := binary.BigEndian.Uint16(payload)
	sl := e.byInputFrameID(frameID)
	if sl == nil || h.Source != sl.session.AR.RemoteMAC {
		e.stats.unknown.Add(1)
		return nil
	}
	s := &sl.session
	handle := s.Handle

	pdu, err := rtc.Decode(payload)
	if err != nil {
		if errors.Is(err, types.ErrTransferStatus) {
			s.TransferErrors++
			e.stats.transferErrors.Add(1)
		} else {
			s.Malformed++
			e.stats.malformed.Add(1)
		}
		e.logger.Debug("RTC: dropped frame for %s: %v", s.Handle, err)
		return err
	}
	if len(pdu.IOData) != int(s.AR.InputLength) {
		s.Malformed++
		e.stats.malformed.Add(1)
		return fmt.Errorf("%w: frame 0x%04X carries %d bytes, AR negotiated %d",
			types.ErrMalformedFrame, frameID, len(pdu.IOData), s.AR.InputLength)
	}
	if s.State == StateWatchdogExpired {
		return nil
	}

	if s.haveCounter && !rtc.CounterAfter(pdu.CycleCounter, s.LastReceivedCycleCounter) {
		s.StaleCounters++
		e.logger.Debug("RTC: %s stale cycle counter %d after %d", s.Handle, pdu.CycleCounter, s.LastReceivedCycleCounter)
	}
	s.LastReceivedCycleCounter = pdu.CycleCounter
	s.haveCounter = true
	s.ConsecutiveMissedCycles = 0
	s.received = true
	s.tagged, s.vlan = h.Tagged, h.VLAN
	s.FramesReceived++
	e.stats.framesReceived.Add(1)

	if s.State == StateWaitingForFirstData {
		s.State = StateDataExchange
		e.logger.Info("RTC: %s entered data exchange", s.Handle)
	}

	status := pdu.DataStatus
	if status.IsDataValid() && !status.IsIgnored() {
		if !e.deliver(s, pdu.IOData) {
			return nil
		}
	}

	old := s.DataStatusIn
	s.DataStatusIn = status
	if old != status && e.listener != nil {
		e.listener.OnDataStatusChanged(handle, old, status)
	}
	return nil
}

// deliver copies received data into the process image and keeps the
// per-object status bytes. It returns false if the session was aborted
// from within the process image.
func (e *Engine) deliver(s *Session, cSDU []byte) bool {
	h := s.Handle
	for i, o := range s.AR.Layout {
		if o.Direction == DirectionOutput {
			s.Objects[i].IOCS = types.IOxS(cSDU[o.IOCSOffset])
			continue
		}
		iops := types.IOxS(cSDU[o.IOPSOffset])
		iocs := e.image.WriteInput(h, o, cSDU[o.DataOffset:o.DataOffset+o.DataLength], iops)
		if !e.alive(h) {
			return false
		}
		s.Objects[i].IOPS = iops
		s.Objects[i].IOCS = iocs
	}
	return true
}

func (e *Engine) byInputFrameID(id uint16) *slot {
	for i := range e.slots {
		if e.slots[i].live && e.slots[i].session.AR.InputFrameID == id {
			return &e.slots[i]
		}
	}
	return nil
}
