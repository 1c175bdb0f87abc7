package cyclic

import (
	"sync"

	"avaneesh/pnio-go/pkg/types"
)

// ProcessImage is the application side of the cyclic exchange. The engine
// calls it from its own execution context once per object and cycle.
type ProcessImage interface {
	// ReadOutput copies the current value of a device-produced object into
	// dst (len(dst) == obj.DataLength) and returns the provider status sent with it.
	ReadOutput(h Handle, obj IOObject, dst []byte) types.IOxS

	// WriteInput delivers a device-consumed object together with the
	// controller's provider status. It returns the consumer status the
	// device reports back. data is only valid during the call.
	WriteInput(h Handle, obj IOObject, data []byte, iops types.IOxS) types.IOxS
}

type subslotKey struct {
	slot, subslot uint16
}

type imageEntry struct {
	data []byte
	xs   types.IOxS
	set  bool
}

// ImageBuffer is a ProcessImage kept in memory, keyed by slot and subslot.
// The application writes outputs and reads inputs from any goroutine.
type ImageBuffer struct {
	outputs map[subslotKey]*imageEntry
	inputs  map[subslotKey]*imageEntry

	mu sync.RWMutex
}

// NewImageBuffer creates an empty process image
func NewImageBuffer() *ImageBuffer {
	return &ImageBuffer{
		outputs: make(map[subslotKey]*imageEntry),
		inputs:  make(map[subslotKey]*imageEntry),
	}
}

// SetOutput stores the value and provider status of a device-produced subslot
func (b *ImageBuffer) SetOutput(slot, subslot uint16, data []byte, iops types.IOxS) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := subslotKey{slot, subslot}
	e, ok := b.outputs[k]
	if !ok {
		e = &imageEntry{}
		b.outputs[k] = e
	}
	e.data = append(e.data[:0], data...)
	e.xs = iops
	e.set = true
}

// Input returns the last value and controller provider status received for a subslot
func (b *ImageBuffer) Input(slot, subslot uint16) ([]byte, types.IOxS, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.inputs[subslotKey{slot, subslot}]
	if !ok || !e.set {
		return nil, types.IOxSBad, false
	}
	return append([]byte(nil), e.data...), e.xs, true
}

// ReadOutput implements ProcessImage. Subslots never written are sent as
// zeros with a BAD provider status.
func (b *ImageBuffer) ReadOutput(_ Handle, obj IOObject, dst []byte) types.IOxS {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.outputs[subslotKey{obj.Slot, obj.Subslot}]
	if !ok || !e.set {
		clear(dst)
		return types.IOxSBad | types.IOxSByDevice
	}
	n := copy(dst, e.data)
	clear(dst[n:])
	return e.xs
}

// WriteInput implements ProcessImage. Data with a BAD provider status is
// not stored so the application keeps the last good value.
func (b *ImageBuffer) WriteInput(_ Handle, obj IOObject, data []byte, iops types.IOxS) types.IOxS {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := subslotKey{obj.Slot, obj.Subslot}
	e, ok := b.inputs[k]
	if !ok {
		e = &imageEntry{}
		b.inputs[k] = e
	}
	e.xs = iops
	if iops.IsGood() {
		e.data = append(e.data[:0], data...)
		e.set = true
	}
	return types.IOxSGood
}
