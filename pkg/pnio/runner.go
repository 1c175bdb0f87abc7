package pnio

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/discovery"
	"avaneesh/pnio-go/pkg/internal/logger"
	"avaneesh/pnio-go/pkg/types"
)

// Runner defaults
const (
	DefaultTickInterval = time.Millisecond
	DefaultQueueDepth   = 1024
)

// ErrRunnerStopped is returned by Do once Run has returned
var ErrRunnerStopped = errors.New("runner stopped")

type event struct {
	frame []byte
	call  *call
}

// call is a control closure queued by Do. Whichever side moves state away
// from callQueued first decides whether fn runs.
type call struct {
	fn    func(*Device)
	state atomic.Int32
	done  chan struct{}
}

const (
	callQueued int32 = iota
	callRunning
	callAbandoned
)

// Runner owns a Device and feeds it from one goroutine. Received frames,
// timer ticks and control calls are queued and handled strictly in order,
// so the device never sees concurrent calls.
type Runner struct {
	device  *Device
	events  chan event
	tick    time.Duration
	logger  logger.Logger
	stopped chan struct{}
	dropped atomic.Uint64
}

// RunnerOption customizes a Runner
type RunnerOption func(*Runner)

// WithTickInterval sets the period of the timing source
func WithTickInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.tick = d
		}
	}
}

// WithQueueDepth sets the number of events that may wait for the device
func WithQueueDepth(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.events = make(chan event, n)
		}
	}
}

// WithRunnerLogger sets the logger
func WithRunnerLogger(l logger.Logger) RunnerOption {
	return func(r *Runner) { r.logger = logger.OrNoOp(l) }
}

// NewRunner creates a runner for d
func NewRunner(d *Device, opts ...RunnerOption) *Runner {
	r := &Runner{
		device:  d,
		events:  make(chan event, DefaultQueueDepth),
		tick:    DefaultTickInterval,
		logger:  d.logger,
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnFrame queues a received frame. It never blocks; when the queue is full
// the frame is dropped and counted. The runner takes ownership of frame.
func (r *Runner) OnFrame(frame []byte) {
	select {
	case r.events <- event{frame: frame}:
	default:
		if r.dropped.Add(1)%1000 == 1 {
			r.logger.Warn("Runner: event queue full, dropping frames")
		}
	}
}

// Do runs fn on the device goroutine and waits for it to finish. When ctx
// ends before the device picks fn up, fn never runs and ctx.Err() is
// returned; once fn has started, Do waits for it to complete.
func (r *Runner) Do(ctx context.Context, fn func(*Device)) error {
	c := &call{fn: fn, done: make(chan struct{})}
	select {
	case r.events <- event{call: c}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopped:
		return ErrRunnerStopped
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		if c.state.CompareAndSwap(callQueued, callAbandoned) {
			return ctx.Err()
		}
	case <-r.stopped:
		if c.state.CompareAndSwap(callQueued, callAbandoned) {
			return ErrRunnerStopped
		}
	}
	<-c.done
	return nil
}

// Run starts the device and processes events until ctx is cancelled.
// It must be called once.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.stopped)

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	last := time.Now()

	r.device.Start()
	r.logger.Info("Runner: started with %s tick", r.tick)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Runner: stopped")
			return ctx.Err()

		case ev := <-r.events:
			if c := ev.call; c != nil {
				if c.state.CompareAndSwap(callQueued, callRunning) {
					c.fn(r.device)
					close(c.done)
				}
				continue
			}
			r.device.OnFrameReceived(ev.frame)

		case now := <-ticker.C:
			r.device.OnTick(now.Sub(last))
			last = now
		}
	}
}

// Dropped returns the number of frames lost to a full queue
func (r *Runner) Dropped() uint64 {
	return r.dropped.Load()
}

// Statistics returns the device counters. Counters are safe to read from
// any goroutine.
func (r *Runner) Statistics() DeviceStatistics {
	return r.device.Statistics()
}

// Identity returns the station identity as seen by the device goroutine
func (r *Runner) Identity(ctx context.Context) (types.StationIdentity, error) {
	var id types.StationIdentity
	err := r.Do(ctx, func(d *Device) { id = d.Identity() })
	return id, err
}

// DCPState returns the discovery state machine's current state
func (r *Runner) DCPState(ctx context.Context) (discovery.State, error) {
	var st discovery.State
	err := r.Do(ctx, func(d *Device) { st = d.DCPState() })
	return st, err
}

// Sessions returns snapshots of the cyclic sessions
func (r *Runner) Sessions(ctx context.Context) ([]cyclic.Session, error) {
	var sessions []cyclic.Session
	err := r.Do(ctx, func(d *Device) { sessions = d.Sessions() })
	return sessions, err
}

// EstablishAR starts cyclic exchange for ar on the device goroutine
func (r *Runner) EstablishAR(ctx context.Context, ar cyclic.AR) (cyclic.Handle, error) {
	var (
		h   cyclic.Handle
		err error
	)
	if derr := r.Do(ctx, func(d *Device) { h, err = d.EstablishAR(ar) }); derr != nil {
		return cyclic.Handle{}, derr
	}
	return h, err
}

// AbortAR ends a cyclic session on the device goroutine
func (r *Runner) AbortAR(ctx context.Context, h cyclic.Handle) error {
	var err error
	if derr := r.Do(ctx, func(d *Device) { err = d.AbortAR(h) }); derr != nil {
		return derr
	}
	return err
}
