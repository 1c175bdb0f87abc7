// Package classify is the single dispatch point for received Ethernet frames.
package classify

import (
	"encoding/binary"
	"fmt"

	"avaneesh/pnio-go/pkg/dcp"
	"avaneesh/pnio-go/pkg/ethernet"
	"avaneesh/pnio-go/pkg/rtc"
	"avaneesh/pnio-go/pkg/types"
)

// Kind is the routing decision for a frame
type Kind int

const (
	KindUnhandled Kind = iota
	KindDCP
	KindRTC
)

// String returns string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindDCP:
		return "DCP"
	case KindRTC:
		return "RTC"
	default:
		return "Unhandled"
	}
}

// Reason explains why a frame is unhandled
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonNotProfinet frames belong to the IP stack and are passed through.
	ReasonNotProfinet
	ReasonMalformed
	ReasonNotAddressed
	ReasonUnknownFrameID
)

// String returns string representation of Reason
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "None"
	case ReasonNotProfinet:
		return "NotProfinet"
	case ReasonMalformed:
		return "Malformed"
	case ReasonNotAddressed:
		return "NotAddressed"
	case ReasonUnknownFrameID:
		return "UnknownFrameID"
	default:
		return "Unknown"
	}
}

// Action is the classification of one frame. Callers switch on Kind.
type Action struct {
	Kind    Kind
	Reason  Reason
	FrameID uint16
	Header  ethernet.Header
	// Payload starts at the frame ID and aliases the raw frame.
	Payload []byte
	Err     error
}

// PassThrough reports whether the frame should be handed to the IP stack
func (a Action) PassThrough() bool {
	return a.Kind == KindUnhandled && a.Reason == ReasonNotProfinet
}

// String returns string representation of Action
func (a Action) String() string {
	if a.Kind == KindUnhandled {
		return fmt.Sprintf("Unhandled(%s)", a.Reason)
	}
	return fmt.Sprintf("%s(0x%04X)", a.Kind, a.FrameID)
}

// Config configures a Classifier
type Config struct {
	LocalMAC      types.MAC
	RTCFrameIDMin uint16
	RTCFrameIDMax uint16
}

// DefaultConfig returns the RTC1 frame ID range used by most controllers
func DefaultConfig(local types.MAC) Config {
	return Config{
		LocalMAC:      local,
		RTCFrameIDMin: rtc.DefaultFrameIDMin,
		RTCFrameIDMax: rtc.DefaultFrameIDMax,
	}
}

// Classifier routes frames by EtherType, destination and frame ID
type Classifier struct {
	config Config
}

// New creates a classifier
func New(config Config) *Classifier {
	if config.RTCFrameIDMin == 0 && config.RTCFrameIDMax == 0 {
		config.RTCFrameIDMin = rtc.DefaultFrameIDMin
		config.RTCFrameIDMax = rtc.DefaultFrameIDMax
	}
	return &Classifier{config: config}
}

// LocalMAC returns the station address the classifier accepts
func (c *Classifier) LocalMAC() types.MAC {
	return c.config.LocalMAC
}

// Classify inspects a raw frame. It never fails; problems are reported
// as KindUnhandled with a Reason.
func (c *Classifier) Classify(raw []byte) Action {
	h, payload, err := ethernet.Parse(raw)
	if err != nil {
		return Action{Reason: ReasonMalformed, Err: fmt.Errorf("%w: %w", types.ErrMalformedFrame, err)}
	}
	if h.EtherType != ethernet.EtherTypeProfinet {
		return Action{Reason: ReasonNotProfinet, Header: h, Payload: payload}
	}
	if len(payload) < 2 {
		return Action{Reason: ReasonMalformed, Header: h, Err: fmt.Errorf("%w: no frame ID", types.ErrMalformedFrame)}
	}
	frameID := binary.BigEndian.Uint16(payload[0:2])
	a := Action{FrameID: frameID, Header: h, Payload: payload}

	switch {
	case dcp.IsFrameID(frameID):
		if !c.dcpAddressed(h.Destination) {
			a.Reason = ReasonNotAddressed
			return a
		}
		a.Kind = KindDCP
	case frameID >= c.config.RTCFrameIDMin && frameID <= c.config.RTCFrameIDMax:
		if h.Destination != c.config.LocalMAC {
			a.Reason = ReasonNotAddressed
			return a
		}
		a.Kind = KindRTC
	default:
		a.Reason = ReasonUnknownFrameID
	}
	return a
}

func (c *Classifier) dcpAddressed(dst types.MAC) bool {
	return dst == c.config.LocalMAC ||
		dst == types.DCPIdentifyMulticast ||
		dst == types.DCPHelloMulticast ||
		dst == types.BroadcastMAC
}
