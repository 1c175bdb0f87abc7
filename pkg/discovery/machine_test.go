package discovery

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"avaneesh/pnio-go/pkg/dcp"
	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/types"
)

var (
	stationMAC    = types.MAC{0x00, 0x30, 0x11, 0x22, 0x33, 0x44}
	controllerMAC = types.MAC{0x52, 0x54, 0x00, 0x8a, 0x3b, 0xa5}
	epoch         = time.Unix(1700000000, 0)
)

type captureSender struct {
	frames [][]byte
	at     []time.Time
	now    *time.Time
	err    error
}

func (s *captureSender) SendFrame(frame []byte) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, append([]byte(nil), frame...))
	if s.now != nil {
		s.at = append(s.at, *s.now)
	}
	return nil
}

type memPersister struct {
	saved  []types.StationIdentity
	resets int
	err    error
}

func (p *memPersister) Save(id types.StationIdentity) error {
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, id)
	return nil
}

func (p *memPersister) Reset() error {
	if p.err != nil {
		return p.err
	}
	p.resets++
	return nil
}

type countIndicator struct{ n int }

func (c *countIndicator) Signal() { c.n++ }

func newIdentity() *types.StationIdentity {
	return &types.StationIdentity{
		VendorID:    0x002A,
		DeviceID:    0x0313,
		Instance:    1,
		StationName: "io-device",
		MAC:         stationMAC,
		VendorName:  "pnio-go",
		DeviceRole:  types.RoleIODevice,
	}
}

type fixture struct {
	m         *Machine
	id        *types.StationIdentity
	sender    *captureSender
	persister *memPersister
	indicator *countIndicator
	now       time.Time
	arActive  bool
}

func newFixture(t *testing.T, config Config, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		id:        newIdentity(),
		persister: &memPersister{},
		indicator: &countIndicator{},
		now:       epoch,
	}
	f.sender = &captureSender{now: &f.now}
	config.Factory = types.StationIdentity{VendorID: 0x002A, DeviceID: 0x0313, Instance: 1, VendorName: "pnio-go", DeviceRole: types.RoleIODevice}
	opts = append([]Option{
		WithPersister(f.persister),
		WithIndicator(f.indicator),
		WithActiveAR(func() bool { return f.arActive }),
	}, opts...)
	f.m = New(config, f.id, f.sender, opts...)
	return f
}

func (f *fixture) deliver(t *testing.T, dst types.MAC, pdu *dcp.PDU) error {
	t.Helper()
	return f.deliverTagged(t, dst, false, pdu)
}

func (f *fixture) deliverTagged(t *testing.T, dst types.MAC, tagged bool, pdu *dcp.PDU) error {
	t.Helper()
	payload, err := pdu.Encode()
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	h := ethernet.Header{Destination: dst, Source: controllerMAC, Tagged: tagged, VLAN: ethernet.NewVLANTag(6, false, 0), EtherType: ethernet.EtherTypeProfinet}
	raw := ethernet.Build(h, payload)
	h, payload, err = ethernet.Parse(raw)
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	return f.m.HandleFrame(h, payload, f.now)
}

func (f *fixture) advance(d, step time.Duration) {
	end := f.now.Add(d)
	for f.now.Before(end) {
		f.now = f.now.Add(step)
		f.m.OnTick(f.now)
	}
}

func decodeFrame(t *testing.T, raw []byte) (ethernet.Header, *dcp.PDU) {
	t.Helper()
	h, payload, err := ethernet.Parse(raw)
	if err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(raw) < ethernet.MinFrameLength {
		t.Errorf("response shorter than minimum frame: %d", len(raw))
	}
	p, err := dcp.Decode(payload)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return h, p
}

func controlCodes(t *testing.T, p *dcp.PDU) map[dcp.Key]types.BlockErrorCode {
	t.Helper()
	codes := make(map[dcp.Key]types.BlockErrorCode)
	for _, b := range p.Blocks {
		k, code, err := dcp.ParseControlResponse(b)
		if err != nil {
			t.Fatalf("response block %s: %v", b, err)
		}
		codes[k] = code
	}
	return codes
}

// TestIdentifyMulticastScenario: one response, inside the delay window, to the requester
func TestIdentifyMulticastScenario(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	req := dcp.NewIdentifyRequest(0x1234, 192, dcp.FilterBlock(dcp.KeyDeviceID, dcp.EncodeDeviceID(0x002A, 0x0313)))
	if err := f.deliver(t, types.DCPIdentifyMulticast, req); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if len(f.sender.frames) != 0 {
		t.Fatal("multicast identify answered without delay")
	}
	if f.m.State() != StateAwaitingMulticastWindow {
		t.Errorf("State = %s", f.m.State())
	}

	window := 192 * ResponseDelayUnit
	f.advance(window+time.Second, time.Millisecond)

	if len(f.sender.frames) != 1 {
		t.Fatalf("responses = %d, want 1", len(f.sender.frames))
	}
	if elapsed := f.sender.at[0].Sub(epoch); elapsed < 0 || elapsed >= window {
		t.Errorf("response after %v, window %v", elapsed, window)
	}
	// MAC 0x3344 % 192 = 68 slots
	if elapsed := f.sender.at[0].Sub(epoch); elapsed != 680*time.Millisecond {
		t.Errorf("response after %v, want 680ms", elapsed)
	}

	h, rsp := decodeFrame(t, f.sender.frames[0])
	if h.Destination != controllerMAC || h.Source != stationMAC {
		t.Errorf("response header = %s", h)
	}
	if rsp.FrameID != dcp.FrameIDIdentifyRsp || rsp.ServiceID != dcp.ServiceIdentify ||
		rsp.ServiceType != dcp.ServiceTypeResponseSuccess || rsp.Xid != 0x1234 {
		t.Errorf("response = %s", rsp)
	}
	name, ok := rsp.Find(dcp.KeyNameOfStation)
	if !ok {
		t.Fatal("no name of station block")
	}
	if _, v, _ := dcp.SplitPrefixed(name); string(v) != "io-device" {
		t.Errorf("name = %q", v)
	}
	if f.m.State() != StateIdle {
		t.Errorf("State = %s after sending", f.m.State())
	}
}

// A Set committed while an Identify response waits for its slot shows up
// in that response.
func TestIdentifyResponseReflectsLaterSet(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	if err := f.deliver(t, types.DCPIdentifyMulticast, dcp.NewIdentifyRequest(0x55, 192)); err != nil {
		t.Fatalf("Identify: %v", err)
	}
	f.advance(100*time.Millisecond, time.Millisecond)

	set := dcp.NewSetRequest(0x56, dcp.SetBlock(dcp.KeyNameOfStation, dcp.QualifierTemporary, []byte("renamed")))
	if err := f.deliver(t, stationMAC, set); err != nil {
		t.Fatalf("Set: %v", err)
	}
	f.advance(time.Second, time.Millisecond)

	if len(f.sender.frames) != 2 {
		t.Fatalf("frames = %d, want Set and Identify responses", len(f.sender.frames))
	}
	_, rsp := decodeFrame(t, f.sender.frames[1])
	if rsp.Xid != 0x55 || rsp.FrameID != dcp.FrameIDIdentifyRsp {
		t.Fatalf("second frame = %s", rsp)
	}
	b, ok := rsp.Find(dcp.KeyNameOfStation)
	if !ok {
		t.Fatal("no name of station block")
	}
	if _, v, _ := dcp.SplitPrefixed(b); string(v) != "renamed" {
		t.Errorf("name = %q, want renamed", v)
	}
}

func TestIdentifyFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters []dcp.Block
		match   bool
	}{
		{"All", nil, true},
		{"Name", []dcp.Block{dcp.FilterBlock(dcp.KeyNameOfStation, []byte("io-device"))}, true},
		{"Other name", []dcp.Block{dcp.FilterBlock(dcp.KeyNameOfStation, []byte("other"))}, false},
		{"Other device ID", []dcp.Block{dcp.FilterBlock(dcp.KeyDeviceID, dcp.EncodeDeviceID(0x002A, 0x0001))}, false},
		{"Name and ID", []dcp.Block{
			dcp.FilterBlock(dcp.KeyNameOfStation, []byte("io-device")),
			dcp.FilterBlock(dcp.KeyDeviceID, dcp.EncodeDeviceID(0x002A, 0x0313)),
		}, true},
		{"Name but wrong instance", []dcp.Block{
			dcp.FilterBlock(dcp.KeyNameOfStation, []byte("io-device")),
			dcp.FilterBlock(dcp.KeyDeviceInstance, dcp.EncodeDeviceInstance(9)),
		}, false},
		{"Role", []dcp.Block{dcp.FilterBlock(dcp.KeyDeviceRole, dcp.EncodeDeviceRole(types.RoleIODevice))}, true},
		{"Controller role", []dcp.Block{dcp.FilterBlock(dcp.KeyDeviceRole, dcp.EncodeDeviceRole(types.RoleIOController))}, false},
		{"Alias", []dcp.Block{dcp.FilterBlock(dcp.KeyAliasName, []byte("port-001.sw"))}, false},
		{"Malformed device ID", []dcp.Block{dcp.FilterBlock(dcp.KeyDeviceID, []byte{1})}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			if err := f.deliver(t, stationMAC, dcp.NewIdentifyRequest(1, 1, tt.filters...)); err != nil {
				t.Fatalf("HandleFrame: %v", err)
			}
			if got := len(f.sender.frames) == 1; got != tt.match {
				t.Errorf("answered = %v, want %v", got, tt.match)
			}
		})
	}
}

func TestIdentifyDuplicateIgnored(t *testing.T) {
	f := newFixture(t, DefaultConfig(), WithDelaySource(FixedDelay(50*time.Millisecond)))
	req := dcp.NewIdentifyRequest(7, 100)
	f.deliver(t, types.DCPIdentifyMulticast, req)
	f.deliver(t, types.DCPIdentifyMulticast, req)
	if f.m.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", f.m.Pending())
	}
	f.advance(200*time.Millisecond, 5*time.Millisecond)
	if len(f.sender.frames) != 1 {
		t.Errorf("responses = %d, want 1", len(f.sender.frames))
	}
	if f.m.Statistics().Duplicates != 1 {
		t.Errorf("Duplicates = %d", f.m.Statistics().Duplicates)
	}
}

func TestIdentifyStaleResponseDiscarded(t *testing.T) {
	f := newFixture(t, Config{ResponseDeadline: 100 * time.Millisecond}, WithDelaySource(FixedDelay(50*time.Millisecond)))
	f.deliver(t, types.DCPIdentifyMulticast, dcp.NewIdentifyRequest(7, 100))
	// The engine was not ticked until long after the deadline.
	f.now = f.now.Add(time.Second)
	f.m.OnTick(f.now)
	if len(f.sender.frames) != 0 {
		t.Error("stale response was sent")
	}
	if f.m.Pending() != 0 || f.m.State() != StateIdle {
		t.Errorf("Pending = %d, State = %s", f.m.Pending(), f.m.State())
	}
	if f.m.Statistics().ResponsesExpired != 1 {
		t.Errorf("ResponsesExpired = %d", f.m.Statistics().ResponsesExpired)
	}
}

func TestIdentifySmallFactorImmediate(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.deliver(t, types.DCPIdentifyMulticast, dcp.NewIdentifyRequest(7, 1))
	if len(f.sender.frames) != 1 {
		t.Errorf("responses = %d, want 1", len(f.sender.frames))
	}
}

func TestDelaySources(t *testing.T) {
	mac := types.MAC{0, 0, 0, 0, 0x01, 0x2C} // 300
	if d := (MACDelay{}).Delay(mac, 7); d != 6*ResponseDelayUnit {
		t.Errorf("MACDelay = %v, want 60ms", d)
	}
	r := NewRandomDelay(1)
	for i := 0; i < 1000; i++ {
		if d := r.Delay(mac, 20); d < 0 || d >= 200*time.Millisecond {
			t.Fatalf("RandomDelay = %v outside window", d)
		}
	}
	if d := FixedDelay(time.Second).Delay(mac, 10); d != 90*time.Millisecond {
		t.Errorf("FixedDelay clamp = %v", d)
	}
	if d := FixedDelay(time.Second).Delay(mac, 0); d != 0 {
		t.Errorf("FixedDelay factor 0 = %v", d)
	}
}

func TestGetIdempotent(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	req := dcp.NewGetRequest(42, dcp.KeyNameOfStation, dcp.KeyIPParameter, dcp.KeyDeviceID, dcp.MakeKey(0x80, 0x01))
	f.deliver(t, stationMAC, req)
	before := *f.id
	f.deliver(t, stationMAC, req)

	if len(f.sender.frames) != 2 {
		t.Fatalf("responses = %d, want 2", len(f.sender.frames))
	}
	if !bytes.Equal(f.sender.frames[0], f.sender.frames[1]) {
		t.Error("repeated Get produced different responses")
	}
	if *f.id != before {
		t.Error("Get mutated the identity")
	}

	_, rsp := decodeFrame(t, f.sender.frames[0])
	if rsp.FrameID != dcp.FrameIDGetSet || rsp.ServiceID != dcp.ServiceGet || rsp.Xid != 42 {
		t.Errorf("response = %s", rsp)
	}
	if len(rsp.Blocks) != 4 {
		t.Fatalf("blocks = %d, want 4", len(rsp.Blocks))
	}
	if rsp.Blocks[2].Key() != dcp.KeyDeviceID {
		t.Errorf("block order: %v", rsp.Blocks)
	}
	k, code, err := dcp.ParseControlResponse(rsp.Blocks[3])
	if err != nil || k != dcp.MakeKey(0x80, 0x01) || code != types.BlockErrorOptionNotSupported {
		t.Errorf("unsupported option answered with %s %s %v", k, code, err)
	}
}

func TestSetAtomicity(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	bad := types.IPConfig{Address: types.IPv4{127, 0, 0, 1}, Netmask: types.IPv4{255, 0, 0, 0}}
	req := dcp.NewSetRequest(5,
		dcp.SetBlock(dcp.KeyNameOfStation, dcp.QualifierPermanent, []byte("new-name")),
		dcp.SetBlock(dcp.KeyIPParameter, dcp.QualifierPermanent, dcp.EncodeIPParameter(bad)),
	)
	if err := f.deliver(t, stationMAC, req); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if f.id.StationName != "io-device" || !f.id.IP.IsZero() {
		t.Errorf("identity partially applied: %s", f.id)
	}
	if len(f.persister.saved) != 0 {
		t.Error("rejected Set was persisted")
	}
	if len(f.sender.frames) != 1 {
		t.Fatalf("responses = %d, want 1", len(f.sender.frames))
	}
	_, rsp := decodeFrame(t, f.sender.frames[0])
	codes := controlCodes(t, rsp)
	if codes[dcp.KeyIPParameter] != types.BlockErrorSetNotPossible {
		t.Errorf("IP block = %s, want SetNotPossible", codes[dcp.KeyIPParameter])
	}
	if codes[dcp.KeyNameOfStation] != types.BlockErrorOptionNotSet {
		t.Errorf("name block = %s, want OptionNotSet", codes[dcp.KeyNameOfStation])
	}
	if f.m.State() != StateIdle {
		t.Errorf("State = %s", f.m.State())
	}
}

func TestSetApplies(t *testing.T) {
	var changes int
	f := newFixture(t, DefaultConfig(), WithChangeListener(func(old, updated types.StationIdentity) { changes++ }))
	ip := types.IPConfig{
		Address: types.IPv4{192, 168, 0, 50},
		Netmask: types.IPv4{255, 255, 255, 0},
		Gateway: types.IPv4{192, 168, 0, 1},
	}
	req := dcp.NewSetRequest(6,
		dcp.SetBlock(dcp.KeyControlStart, 0, []byte{0, 0}),
		dcp.SetBlock(dcp.KeyNameOfStation, dcp.QualifierPermanent, []byte("line-1.press")),
		dcp.SetBlock(dcp.KeyIPParameter, dcp.QualifierTemporary, dcp.EncodeIPParameter(ip)),
		dcp.SetBlock(dcp.KeyControlStop, 0, []byte{0, 0}),
	)
	f.deliver(t, stationMAC, req)

	if f.id.StationName != "line-1.press" || f.id.IP != ip {
		t.Errorf("identity = %s", f.id)
	}
	if len(f.persister.saved) != 1 || f.persister.saved[0].StationName != "line-1.press" {
		t.Errorf("saved = %v", f.persister.saved)
	}
	if changes != 1 {
		t.Errorf("changes = %d, want 1", changes)
	}
	_, rsp := decodeFrame(t, f.sender.frames[0])
	for k, code := range controlCodes(t, rsp) {
		if code != types.BlockErrorNone {
			t.Errorf("%s = %s", k, code)
		}
	}

	// Reading back returns the new values
	f.deliver(t, stationMAC, dcp.NewGetRequest(7, dcp.KeyIPParameter))
	_, get := decodeFrame(t, f.sender.frames[1])
	info, v, _ := dcp.SplitPrefixed(get.Blocks[0])
	got, _ := dcp.DecodeIPParameter(v)
	if got != ip || info != dcp.IPInfoSet {
		t.Errorf("Get IP = %s info %d", got, info)
	}
}

func TestSetTemporaryNotPersisted(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.deliver(t, stationMAC, dcp.NewSetRequest(1, dcp.SetBlock(dcp.KeyNameOfStation, dcp.QualifierTemporary, []byte("tmp"))))
	if f.id.StationName != "tmp" {
		t.Errorf("name = %q", f.id.StationName)
	}
	if len(f.persister.saved) != 0 {
		t.Error("temporary Set was persisted")
	}
}

func TestSetRefusedDuringAR(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.arActive = true
	f.deliver(t, stationMAC, dcp.NewSetRequest(1,
		dcp.SetBlock(dcp.KeyNameOfStation, 0, []byte("x")),
	))
	_, rsp := decodeFrame(t, f.sender.frames[0])
	if code := controlCodes(t, rsp)[dcp.KeyNameOfStation]; code != types.BlockErrorSetNotPossible {
		t.Errorf("code = %s, want SetNotPossible", code)
	}
	if f.id.StationName != "io-device" {
		t.Error("name changed during AR")
	}

	// Signal stays allowed
	f.deliver(t, stationMAC, dcp.NewSetRequest(2, dcp.SetBlock(dcp.KeyControlSignal, 0, []byte{0x01, 0x00})))
	if f.indicator.n != 1 {
		t.Errorf("signals = %d, want 1", f.indicator.n)
	}
}

func TestSetUnsupportedAndInvalid(t *testing.T) {
	tests := []struct {
		name  string
		block dcp.Block
		code  types.BlockErrorCode
	}{
		{"Read-only option", dcp.SetBlock(dcp.KeyDeviceID, 0, dcp.EncodeDeviceID(1, 2)), types.BlockErrorOptionNotSupported},
		{"Unknown option", dcp.SetBlock(dcp.MakeKey(0x80, 0x02), 0, []byte{1}), types.BlockErrorOptionNotSupported},
		{"Bad name", dcp.SetBlock(dcp.KeyNameOfStation, 0, []byte("Bad_Name")), types.BlockErrorSetNotPossible},
		{"Long name", dcp.SetBlock(dcp.KeyNameOfStation, 0, bytes.Repeat([]byte("a"), 241)), types.BlockErrorSetNotPossible},
		{"Short IP", dcp.SetBlock(dcp.KeyIPParameter, 0, []byte{1, 2, 3}), types.BlockErrorSetNotPossible},
		{"Bad signal", dcp.SetBlock(dcp.KeyControlSignal, 0, []byte{0x02, 0x00}), types.BlockErrorSetNotPossible},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			f.deliver(t, stationMAC, dcp.NewSetRequest(1, tt.block))
			_, rsp := decodeFrame(t, f.sender.frames[0])
			if code := controlCodes(t, rsp)[tt.block.Key()]; code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
			if f.m.Statistics().SetRejected != 1 {
				t.Errorf("SetRejected = %d", f.m.Statistics().SetRejected)
			}
		})
	}
}

func TestSetNameEmptyClears(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.deliver(t, stationMAC, dcp.NewSetRequest(1, dcp.SetBlock(dcp.KeyNameOfStation, 0, nil)))
	if f.id.StationName != "" {
		t.Errorf("name = %q, want empty", f.id.StationName)
	}
}

func TestFactoryReset(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.id.IP = types.IPConfig{Address: types.IPv4{10, 0, 0, 5}, Netmask: types.IPv4{255, 0, 0, 0}}
	f.deliver(t, stationMAC, dcp.NewSetRequest(1, dcp.SetBlock(dcp.KeyResetToFactory, 0, []byte{0x00, 0x02})))

	if f.persister.resets != 1 {
		t.Errorf("resets = %d, want 1", f.persister.resets)
	}
	if f.id.StationName != "" || !f.id.IP.IsZero() {
		t.Errorf("identity not restored: %s", f.id)
	}
	if f.id.MAC != stationMAC {
		t.Error("reset lost the MAC address")
	}
}

func TestPersistenceFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.persister.err = errors.New("flash busy")
	f.deliver(t, stationMAC, dcp.NewSetRequest(1, dcp.SetBlock(dcp.KeyNameOfStation, dcp.QualifierPermanent, []byte("saved"))))
	if f.id.StationName != "io-device" {
		t.Error("identity changed although persisting failed")
	}
	_, rsp := decodeFrame(t, f.sender.frames[0])
	if code := controlCodes(t, rsp)[dcp.KeyNameOfStation]; code != types.BlockErrorResource {
		t.Errorf("code = %s, want ResourceError", code)
	}
}

func TestMalformedDropped(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	h := ethernet.Header{Destination: stationMAC, Source: controllerMAC, EtherType: ethernet.EtherTypeProfinet}
	err := f.m.HandleFrame(h, []byte{0xfe, 0xfd, 0x04, 0x00, 0, 0, 0, 1, 0, 0, 0, 20, 2, 2}, f.now)
	if !errors.Is(err, types.ErrMalformedFrame) {
		t.Errorf("err = %v", err)
	}
	// Set block without qualifier
	err = f.deliver(t, stationMAC, dcp.NewSetRequest(1, dcp.Block{Option: 2, Suboption: 2, Payload: []byte{1}}))
	if !errors.Is(err, types.ErrMalformedFrame) {
		t.Errorf("err = %v", err)
	}
	if len(f.sender.frames) != 0 {
		t.Error("malformed request was answered")
	}
	if f.m.Statistics().Malformed != 2 {
		t.Errorf("Malformed = %d", f.m.Statistics().Malformed)
	}
}

func TestUnsupportedService(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.deliver(t, stationMAC, &dcp.PDU{FrameID: dcp.FrameIDGetSet, ServiceID: dcp.ServiceID(0x09), ServiceType: dcp.ServiceTypeRequest, Xid: 3})
	_, rsp := decodeFrame(t, f.sender.frames[0])
	if rsp.ServiceType != dcp.ServiceTypeResponseUnsupported || rsp.Xid != 3 {
		t.Errorf("response = %s", rsp)
	}
	// Responses from other stations are ignored
	f.deliver(t, stationMAC, &dcp.PDU{FrameID: dcp.FrameIDGetSet, ServiceID: dcp.ServiceGet, ServiceType: dcp.ServiceTypeResponseSuccess})
	if len(f.sender.frames) != 1 {
		t.Error("answered a response")
	}
}

func TestResponseEchoesVLAN(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.deliverTagged(t, stationMAC, true, dcp.NewGetRequest(1, dcp.KeyNameOfStation))
	h, _ := decodeFrame(t, f.sender.frames[0])
	if !h.Tagged || h.VLAN.Priority() != 6 {
		t.Errorf("response header = %s", h)
	}
}

func TestHello(t *testing.T) {
	f := newFixture(t, Config{SendHello: true})
	f.m.Start(f.now)
	if len(f.sender.frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(f.sender.frames))
	}
	h, p := decodeFrame(t, f.sender.frames[0])
	if h.Destination != types.DCPHelloMulticast {
		t.Errorf("destination = %s", h.Destination)
	}
	if p.FrameID != dcp.FrameIDHello || p.ServiceID != dcp.ServiceHello || p.ServiceType != dcp.ServiceTypeRequest {
		t.Errorf("hello = %s", p)
	}
	if _, ok := p.Find(dcp.KeyInitiative); !ok {
		t.Error("hello without device initiative")
	}

	quiet := newFixture(t, DefaultConfig())
	quiet.m.Start(quiet.now)
	if len(quiet.sender.frames) != 0 {
		t.Error("hello sent although disabled")
	}
}
