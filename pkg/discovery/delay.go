package discovery

import (
	"math/rand"
	"time"

	"avaneesh/pnio-go/pkg/types"
)

// DelaySource picks when to answer a multicast Identify. The result must lie
// inside the window of factor * 10 ms.
type DelaySource interface {
	Delay(mac types.MAC, factor uint16) time.Duration
}

// MACDelay spreads devices by the low 16 bits of their MAC address,
// which is deterministic per device and differs between devices.
type MACDelay struct{}

// Delay implements DelaySource
func (MACDelay) Delay(mac types.MAC, factor uint16) time.Duration {
	if factor <= 1 {
		return 0
	}
	seed := uint16(mac[4])<<8 | uint16(mac[5])
	return time.Duration(seed%factor) * ResponseDelayUnit
}

// RandomDelay draws a uniformly random slot
type RandomDelay struct {
	rng *rand.Rand
}

// NewRandomDelay creates a random delay source
func NewRandomDelay(seed int64) *RandomDelay {
	return &RandomDelay{rng: rand.New(rand.NewSource(seed))}
}

// Delay implements DelaySource
func (r *RandomDelay) Delay(_ types.MAC, factor uint16) time.Duration {
	if factor <= 1 {
		return 0
	}
	return time.Duration(r.rng.Intn(int(factor))) * ResponseDelayUnit
}

// FixedDelay always answers after the same delay, clamped to the window
type FixedDelay time.Duration

// Delay implements DelaySource
func (d FixedDelay) Delay(_ types.MAC, factor uint16) time.Duration {
	if factor <= 1 {
		return 0
	}
	window := time.Duration(factor) * ResponseDelayUnit
	if time.Duration(d) >= window {
		return window - ResponseDelayUnit
	}
	return time.Duration(d)
}
