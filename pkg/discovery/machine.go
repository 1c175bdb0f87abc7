package discovery

import (
	"fmt"
	"time"

	"avaneesh/pnio-go/pkg/dcp"
	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/internal/logger"
	"avaneesh/pnio-go/pkg/internal/queue"
	"avaneesh/pnio-go/pkg/types"
)

// State of the DCP machine
type State int

const (
	StateIdle State = iota
	StateAwaitingMulticastWindow
	StateProcessingSet
)

// String returns string representation of State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingMulticastWindow:
		return "AwaitingMulticastWindow"
	case StateProcessingSet:
		return "ProcessingSet"
	default:
		return "Unknown"
	}
}

// Session is a scheduled response to one DCP request. The response is
// encoded when it is sent so it carries the identity of that moment.
type Session struct {
	Xid       uint32
	Requester types.MAC
	SendAt    time.Time
	Deadline  time.Time
	reply     ethernet.Header
	response  *dcp.PDU
}

// Machine answers DCP requests on behalf of one station. It is not safe for
// concurrent use; the caller serializes HandleFrame and OnTick.
type Machine struct {
	config    Config
	identity  *types.StationIdentity
	sender    Sender
	persister Persister
	indicator Indicator
	delay     DelaySource
	activeAR  func() bool
	onChange  func(old, updated types.StationIdentity)
	logger    logger.Logger

	state   State
	pending *queue.Queue[*Session]
	helloID uint32
	stats   Statistics
}

// Option customizes a Machine
type Option func(*Machine)

// WithPersister sets the persistence collaborator
func WithPersister(p Persister) Option { return func(m *Machine) { m.persister = p } }

// WithIndicator sets the LED collaborator
func WithIndicator(i Indicator) Option { return func(m *Machine) { m.indicator = i } }

// WithDelaySource replaces the MAC-derived Identify delay
func WithDelaySource(d DelaySource) Option { return func(m *Machine) { m.delay = d } }

// WithActiveAR reports whether a cyclic session is exchanging data
func WithActiveAR(f func() bool) Option { return func(m *Machine) { m.activeAR = f } }

// WithChangeListener is called after every committed identity change
func WithChangeListener(f func(old, updated types.StationIdentity)) Option {
	return func(m *Machine) { m.onChange = f }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option { return func(m *Machine) { m.logger = logger.OrNoOp(l) } }

// New creates a DCP machine owning identity. identity must not be mutated
// elsewhere while the machine is in use.
func New(config Config, identity *types.StationIdentity, sender Sender, opts ...Option) *Machine {
	config.applyDefaults()
	m := &Machine{
		config:   config,
		identity: identity,
		sender:   sender,
		delay:    MACDelay{},
		activeAR: func() bool { return false },
		logger:   logger.NewNoOpLogger(),
		pending:  queue.New[*Session](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Identity returns a copy of the current identity
func (m *Machine) Identity() types.StationIdentity {
	return *m.identity
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Pending returns the number of scheduled responses
func (m *Machine) Pending() int {
	return m.pending.Len()
}

// Statistics returns the DCP counters
func (m *Machine) Statistics() StatsSnapshot {
	return m.stats.Snapshot()
}

// Start announces the station with a Hello request when configured
func (m *Machine) Start(now time.Time) {
	if !m.config.SendHello {
		return
	}
	m.helloID++
	hello := dcp.NewHello(m.helloID, m.helloBlocks()...)
	h := ethernet.Header{
		Destination: types.DCPHelloMulticast,
		Source:      m.identity.MAC,
		EtherType:   ethernet.EtherTypeProfinet,
	}
	if err := m.send(h, hello); err != nil {
		m.logger.Warn("DCP: hello failed: %v", err)
		return
	}
	m.logger.Info("DCP: sent hello for %q", m.identity.StationName)
}

// HandleFrame processes a DCP frame. h is the received Ethernet header and
// payload starts at the frame ID. Malformed requests are dropped and reported
// through the returned error only.
func (m *Machine) HandleFrame(h ethernet.Header, payload []byte, now time.Time) error {
	pdu, err := dcp.Decode(payload)
	if err != nil {
		m.stats.malformed.Add(1)
		m.logger.Debug("DCP: dropped malformed frame from %s: %v", h.Source, err)
		return err
	}
	if !pdu.IsRequest() {
		return nil
	}

	switch pdu.ServiceID {
	case dcp.ServiceIdentify:
		return m.handleIdentify(h, pdu, now)
	case dcp.ServiceGet:
		return m.handleGet(h, pdu)
	case dcp.ServiceSet:
		return m.handleSet(h, pdu)
	case dcp.ServiceHello:
		// Hello from other stations carries no request for us.
		return nil
	default:
		m.stats.unsupported.Add(1)
		m.logger.Debug("DCP: unsupported service %s from %s", pdu.ServiceID, h.Source)
		return m.send(h.Reply(m.identity.MAC), pdu.Response(dcp.ServiceTypeResponseUnsupported, nil))
	}
}

// OnTick sends responses whose delay elapsed and discards stale ones
func (m *Machine) OnTick(now time.Time) {
	for {
		s, ok := m.pending.NextReady(now)
		if !ok {
			break
		}
		if now.After(s.Deadline) {
			m.stats.responsesExpired.Add(1)
			m.logger.Debug("DCP: discarded stale response xid=0x%08X to %s", s.Xid, s.Requester)
			continue
		}
		s.response.Blocks = m.identityBlocks()
		m.send(s.reply, s.response)
	}
	if m.pending.Len() == 0 && m.state == StateAwaitingMulticastWindow {
		m.state = StateIdle
	}
}

func (m *Machine) handleIdentify(h ethernet.Header, pdu *dcp.PDU, now time.Time) error {
	m.stats.identifyRx.Add(1)
	if !m.matches(pdu.Blocks) {
		return nil
	}
	m.stats.identifyMatched.Add(1)

	duplicate := m.pending.Contains(func(s *Session) bool {
		return s.Xid == pdu.Xid && s.Requester == h.Source
	})
	if duplicate {
		m.stats.duplicates.Add(1)
		return nil
	}

	reply := h.Reply(m.identity.MAC)
	var delay time.Duration
	if h.Destination.IsMulticast() {
		delay = m.delay.Delay(m.identity.MAC, pdu.ResponseDelay)
	}
	if delay <= 0 {
		return m.send(reply, pdu.Response(dcp.ServiceTypeResponseSuccess, m.identityBlocks()))
	}

	sendAt := now.Add(delay)
	m.pending.Push(&Session{
		Xid:       pdu.Xid,
		Requester: h.Source,
		SendAt:    sendAt,
		Deadline:  sendAt.Add(m.config.ResponseDeadline),
		reply:     reply,
		response:  pdu.Response(dcp.ServiceTypeResponseSuccess, nil),
	}, 0, sendAt)
	m.state = StateAwaitingMulticastWindow
	m.logger.Debug("DCP: identify xid=0x%08X from %s answered in %v", pdu.Xid, h.Source, delay)
	return nil
}

func (m *Machine) handleGet(h ethernet.Header, pdu *dcp.PDU) error {
	m.stats.getRx.Add(1)
	blocks := make([]dcp.Block, 0, len(pdu.Blocks))
	for _, sel := range pdu.Blocks {
		k := sel.Key()
		if b, ok := m.readBlock(k); ok {
			blocks = append(blocks, b)
			continue
		}
		blocks = append(blocks, dcp.ControlResponse(k, types.BlockErrorOptionNotSupported))
	}
	return m.send(h.Reply(m.identity.MAC), pdu.Response(dcp.ServiceTypeResponseSuccess, blocks))
}

func (m *Machine) build(h ethernet.Header, pdu *dcp.PDU) ([]byte, error) {
	buf := make([]byte, 0, ethernet.MinFrameLength+pdu.DataLength())
	buf = h.AppendTo(buf)
	buf, err := pdu.AppendTo(buf)
	if err != nil {
		return nil, fmt.Errorf("encode DCP %s: %w", pdu.ServiceID, err)
	}
	return ethernet.Pad(buf), nil
}

func (m *Machine) send(h ethernet.Header, pdu *dcp.PDU) error {
	frame, err := m.build(h, pdu)
	if err != nil {
		return err
	}
	return m.transmit(frame)
}

func (m *Machine) transmit(frame []byte) error {
	if err := m.sender.SendFrame(frame); err != nil {
		m.stats.sendErrors.Add(1)
		m.logger.Warn("DCP: send failed: %v", err)
		return err
	}
	m.stats.responsesTx.Add(1)
	return nil
}

func (m *Machine) supports(k dcp.Key) bool {
	for _, s := range m.config.Supported {
		if s == k {
			return true
		}
	}
	return false
}
