package discovery

import (
	"time"

	"avaneesh/pnio-go/pkg/dcp"
	"avaneesh/pnio-go/pkg/types"
)

// Defaults
const (
	DefaultResponseDeadline = 400 * time.Millisecond
	ResponseDelayUnit       = 10 * time.Millisecond
)

// Config configures the DCP state machine
type Config struct {
	// Supported lists the options served by Get/Identify and accepted by Set.
	// It is device profile data and is advertised in the DeviceOptions block.
	Supported []dcp.Key
	// ResponseDeadline bounds how long a scheduled response stays valid.
	ResponseDeadline time.Duration
	// SendHello emits a Hello request when the machine starts.
	SendHello bool
	// Factory is the identity restored by a factory reset. MAC is kept from the live identity.
	Factory types.StationIdentity
	// AllowSetDuringAR permits name and IP changes while a cyclic session is running.
	AllowSetDuringAR bool
}

// DefaultSupported is the option set of a plain IO device
func DefaultSupported() []dcp.Key {
	return []dcp.Key{
		dcp.KeyMAC,
		dcp.KeyIPParameter,
		dcp.KeyFullIPSuite,
		dcp.KeyDeviceVendor,
		dcp.KeyNameOfStation,
		dcp.KeyDeviceID,
		dcp.KeyDeviceRole,
		dcp.KeyDeviceOptions,
		dcp.KeyDeviceInstance,
		dcp.KeyControlStart,
		dcp.KeyControlStop,
		dcp.KeyControlSignal,
		dcp.KeyFactoryReset,
		dcp.KeyResetToFactory,
		dcp.KeyInitiative,
	}
}

// DefaultConfig returns a configuration with every default applied
func DefaultConfig() Config {
	return Config{
		Supported:        DefaultSupported(),
		ResponseDeadline: DefaultResponseDeadline,
	}
}

func (c *Config) applyDefaults() {
	if len(c.Supported) == 0 {
		c.Supported = DefaultSupported()
	}
	if c.ResponseDeadline <= 0 {
		c.ResponseDeadline = DefaultResponseDeadline
	}
}

// settable reports whether Set may target k
func settable(k dcp.Key) bool {
	switch k {
	case dcp.KeyNameOfStation, dcp.KeyIPParameter, dcp.KeyFullIPSuite,
		dcp.KeyControlStart, dcp.KeyControlStop, dcp.KeyControlSignal,
		dcp.KeyFactoryReset, dcp.KeyResetToFactory:
		return true
	}
	return false
}

// Persister stores the identity across resets
type Persister interface {
	Save(identity types.StationIdentity) error
	Reset() error
}

// Indicator is told to flash the station LED on a DCP Signal
type Indicator interface {
	Signal()
}

// Sender hands a complete Ethernet frame to the MAC driver
type Sender interface {
	SendFrame(frame []byte) error
}
