package pnio

import (
	"time"

	"avaneesh/pnio-go/pkg/classify"
	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/discovery"
	"avaneesh/pnio-go/pkg/internal/logger"
	"avaneesh/pnio-go/pkg/types"
)

// FrameSender hands complete Ethernet frames to the MAC driver. SendFrame
// must not block and must not retain frame after returning.
type FrameSender interface {
	SendFrame(frame []byte) error
}

// Clock is the wall clock used for DCP response scheduling
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time { return time.Now() }

// PassThrough receives frames that are not PROFINET, for the IP stack
type PassThrough interface {
	PassThrough(frame []byte)
}

// PassThroughFunc adapts a function to PassThrough
type PassThroughFunc func(frame []byte)

// PassThrough implements PassThrough
func (f PassThroughFunc) PassThrough(frame []byte) { f(frame) }

// Config configures a Device
type Config struct {
	// Identity is the station identity at power-up, usually loaded from
	// persistent storage. Identity.MAC is the station address.
	Identity  types.StationIdentity
	Discovery discovery.Config
	// MaxARs bounds the number of concurrent cyclic sessions
	MaxARs int
	// RTC frame ID range accepted by the classifier and the cyclic engine
	FrameIDMin uint16
	FrameIDMax uint16
}

// Device is the PROFINET IO-Device protocol engine: classifier, DCP
// machine and cyclic engine behind one entry point per event. It is not
// safe for concurrent use; Runner serializes access.
type Device struct {
	identity   *types.StationIdentity
	classifier *classify.Classifier
	dcp        *discovery.Machine
	rtc        *cyclic.Engine

	clock       Clock
	passThrough PassThrough
	listener    cyclic.Listener
	logger      logger.Logger
	stats       Statistics

	dcpOpts []discovery.Option
}

// Option customizes a Device
type Option func(*Device)

// WithClock replaces the system clock
func WithClock(c Clock) Option { return func(d *Device) { d.clock = c } }

// WithPassThrough sets the receiver of non-PROFINET frames
func WithPassThrough(p PassThrough) Option { return func(d *Device) { d.passThrough = p } }

// WithListener receives watchdog and data status notifications
func WithListener(l cyclic.Listener) Option { return func(d *Device) { d.listener = l } }

// WithLogger sets the logger for the device and its components
func WithLogger(l logger.Logger) Option { return func(d *Device) { d.logger = logger.OrNoOp(l) } }

// WithPersister stores identity changes made over DCP
func WithPersister(p discovery.Persister) Option {
	return func(d *Device) { d.dcpOpts = append(d.dcpOpts, discovery.WithPersister(p)) }
}

// WithIndicator flashes the station LED on a DCP Signal
func WithIndicator(i discovery.Indicator) Option {
	return func(d *Device) { d.dcpOpts = append(d.dcpOpts, discovery.WithIndicator(i)) }
}

// WithDelaySource replaces the MAC-derived Identify response delay
func WithDelaySource(s discovery.DelaySource) Option {
	return func(d *Device) { d.dcpOpts = append(d.dcpOpts, discovery.WithDelaySource(s)) }
}

// WithIdentityListener is called after every identity change committed over DCP
func WithIdentityListener(f func(old, updated types.StationIdentity)) Option {
	return func(d *Device) { d.dcpOpts = append(d.dcpOpts, discovery.WithChangeListener(f)) }
}

// New creates a device sending through sender and exchanging cyclic data
// with image.
func New(config Config, sender FrameSender, image cyclic.ProcessImage, opts ...Option) *Device {
	d := &Device{
		clock:  SystemClock{},
		logger: logger.OrNoOp(logger.GetDefault()),
	}
	for _, opt := range opts {
		opt(d)
	}

	identity := config.Identity
	d.identity = &identity
	mac := identity.MAC

	d.classifier = classify.New(classify.Config{
		LocalMAC:      mac,
		RTCFrameIDMin: config.FrameIDMin,
		RTCFrameIDMax: config.FrameIDMax,
	})
	d.rtc = cyclic.New(cyclic.Config{
		LocalMAC:   mac,
		MaxARs:     config.MaxARs,
		FrameIDMin: config.FrameIDMin,
		FrameIDMax: config.FrameIDMax,
	}, sender, image, cyclic.WithListener(d), cyclic.WithLogger(d.logger))

	dcpOpts := append([]discovery.Option{
		discovery.WithActiveAR(d.rtc.Active),
		discovery.WithLogger(d.logger),
	}, d.dcpOpts...)
	d.dcp = discovery.New(config.Discovery, d.identity, sender, dcpOpts...)
	d.dcpOpts = nil
	return d
}

// Start announces the station on the segment
func (d *Device) Start() {
	d.logger.Info("Device: starting %s", d.identity)
	d.dcp.Start(d.clock.Now())
}

// OnFrameReceived classifies one received frame and dispatches it. raw is
// only read during the call. The returned action tells the caller what
// happened to the frame.
func (d *Device) OnFrameReceived(raw []byte) classify.Action {
	a := d.classifier.Classify(raw)
	d.stats.received.Add(1)

	switch a.Kind {
	case classify.KindDCP:
		d.stats.dcp.Add(1)
		if err := d.dcp.HandleFrame(a.Header, a.Payload, d.clock.Now()); err != nil {
			a.Err = err
			d.logger.Debug("Device: DCP frame from %s: %v", a.Header.Source, err)
		}
	case classify.KindRTC:
		d.stats.rtc.Add(1)
		if err := d.rtc.HandleFrame(a.Header, a.Payload); err != nil {
			a.Err = err
			d.logger.Debug("Device: RTC frame 0x%04X from %s: %v", a.FrameID, a.Header.Source, err)
		}
	default:
		d.unhandled(a, raw)
	}
	return a
}

func (d *Device) unhandled(a classify.Action, raw []byte) {
	switch a.Reason {
	case classify.ReasonNotProfinet:
		d.stats.passedThrough.Add(1)
		if d.passThrough != nil {
			d.passThrough.PassThrough(raw)
		}
	case classify.ReasonMalformed:
		d.stats.malformed.Add(1)
		d.logger.Debug("Device: malformed frame: %v", a.Err)
	case classify.ReasonNotAddressed:
		d.stats.notAddressed.Add(1)
	case classify.ReasonUnknownFrameID:
		d.stats.unknownFrameID.Add(1)
	}
}

// OnTick advances the cyclic engine by elapsed and sends DCP responses that came due
func (d *Device) OnTick(elapsed time.Duration) {
	d.rtc.OnTick(elapsed)
	d.dcp.OnTick(d.clock.Now())
}

// EstablishAR starts cyclic exchange for a negotiated AR
func (d *Device) EstablishAR(ar cyclic.AR) (cyclic.Handle, error) {
	return d.rtc.Establish(ar, d.clock.Now())
}

// AbortAR ends a cyclic session
func (d *Device) AbortAR(h cyclic.Handle) error {
	return d.rtc.Abort(h)
}

// Identity returns a copy of the station identity
func (d *Device) Identity() types.StationIdentity {
	return d.dcp.Identity()
}

// DCPState returns the state of the DCP machine
func (d *Device) DCPState() discovery.State {
	return d.dcp.State()
}

// SessionSnapshot returns a copy of one cyclic session
func (d *Device) SessionSnapshot(h cyclic.Handle) (cyclic.Session, error) {
	return d.rtc.Session(h)
}

// Sessions returns copies of all live cyclic sessions
func (d *Device) Sessions() []cyclic.Session {
	handles := d.rtc.Sessions()
	out := make([]cyclic.Session, 0, len(handles))
	for _, h := range handles {
		if s, err := d.rtc.Session(h); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// SetProviderRun sets the Run bit of every output frame
func (d *Device) SetProviderRun(run bool) { d.rtc.SetProviderRun(run) }

// SetStationProblem sets the StationProblemIndicator of every output frame
func (d *Device) SetStationProblem(problem bool) { d.rtc.SetStationProblem(problem) }

// Statistics returns the counters of every component
func (d *Device) Statistics() DeviceStatistics {
	return DeviceStatistics{
		Frames: d.stats.Snapshot(),
		DCP:    d.dcp.Statistics(),
		Cyclic: d.rtc.Statistics(),
	}
}

// OnWatchdogExpired implements cyclic.Listener
func (d *Device) OnWatchdogExpired(h cyclic.Handle, ar cyclic.AR) {
	d.stats.watchdogs.Add(1)
	if d.listener != nil {
		d.listener.OnWatchdogExpired(h, ar)
	}
}

// OnDataStatusChanged implements cyclic.Listener
func (d *Device) OnDataStatusChanged(h cyclic.Handle, old, updated types.DataStatus) {
	d.logger.Debug("Device: %s controller status %s -> %s", h, old, updated)
	if d.listener != nil {
		d.listener.OnDataStatusChanged(h, old, updated)
	}
}
