package main

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"avaneesh/pnio-go/pkg/channel"
	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/dcp"
	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/pnio"
	"avaneesh/pnio-go/pkg/types"
)

// blinker stands in for the station LED
type blinker struct{ log pnio.Logger }

func (b blinker) Signal() { b.log.Info("DCP Signal: flashing station LED") }

type watchdogLogger struct{ log pnio.Logger }

func (w watchdogLogger) OnWatchdogExpired(h cyclic.Handle, ar cyclic.AR) {
	w.log.Warn("AR %s (%s): watchdog expired after %d missed cycles of %v", ar.UUID, h, ar.WatchdogFactor, ar.CycleTime)
}

func (w watchdogLogger) OnDataStatusChanged(h cyclic.Handle, old, updated types.DataStatus) {
	w.log.Debug("%s: controller data status %s -> %s", h, old, updated)
}

// identifyInterval is how often the loopback controller searches the segment
const identifyInterval = 2 * time.Second

var controllerMAC = types.MAC{0x02, 0x00, 0x00, 0x00, 0x0c, 0x01}

// loopbackController plays a controller on the far end of the in-memory
// pipe: it sends Identify All and logs every answer.
func loopbackController(ctx context.Context, peer *channel.PipeChannel, log pnio.Logger) error {
	go func() {
		for {
			frame, err := peer.Read(ctx)
			if err != nil {
				return
			}
			logIdentifyResponse(frame, log)
		}
	}()

	ticker := time.NewTicker(identifyInterval)
	defer ticker.Stop()
	for {
		req := dcp.NewIdentifyRequest(rand.Uint32(), 1)
		payload, err := req.Encode()
		if err != nil {
			return err
		}
		frame := ethernet.Build(ethernet.Header{
			Destination: types.DCPIdentifyMulticast,
			Source:      controllerMAC,
			EtherType:   ethernet.EtherTypeProfinet,
		}, payload)
		if err := peer.Write(ctx, frame); err != nil && !errors.Is(err, channel.ErrQueueFull) {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func logIdentifyResponse(frame []byte, log pnio.Logger) {
	h, payload, err := ethernet.Parse(frame)
	if err != nil || h.EtherType != ethernet.EtherTypeProfinet {
		return
	}
	pdu, err := dcp.Decode(payload)
	if err != nil || pdu.FrameID != dcp.FrameIDIdentifyRsp {
		return
	}
	var (
		name string
		ip   types.IPConfig
	)
	if b, ok := pdu.Find(dcp.KeyNameOfStation); ok {
		if _, v, err := dcp.SplitPrefixed(b); err == nil {
			name, _ = dcp.DecodeName(v)
		}
	}
	if b, ok := pdu.Find(dcp.KeyIPParameter); ok {
		if _, v, err := dcp.SplitPrefixed(b); err == nil {
			ip, _ = dcp.DecodeIPParameter(v)
		}
	}
	log.Info("Identify response from %s: name=%q ip=%s", h.Source, name, ip)
}
