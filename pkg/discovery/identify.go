package discovery

import (
	"bytes"

	"avaneesh/pnio-go/pkg/dcp"
	"avaneesh/pnio-go/pkg/types"
)

// responseOrder is the block order of Identify responses
var responseOrder = []dcp.Key{
	dcp.KeyDeviceOptions,
	dcp.KeyDeviceVendor,
	dcp.KeyNameOfStation,
	dcp.KeyDeviceID,
	dcp.KeyDeviceRole,
	dcp.KeyDeviceInstance,
	dcp.KeyIPParameter,
}

// matches reports whether every filter block of an Identify request selects this station
func (m *Machine) matches(filters []dcp.Block) bool {
	if len(filters) == 0 {
		return false
	}
	id := m.identity
	for _, f := range filters {
		switch f.Key() {
		case dcp.KeyAll:
		case dcp.KeyNameOfStation:
			if id.StationName == "" || string(f.Payload) != id.StationName {
				return false
			}
		case dcp.KeyDeviceID:
			vendor, device, err := dcp.DecodeDeviceID(f.Payload)
			if err != nil || vendor != id.VendorID || device != id.DeviceID {
				return false
			}
		case dcp.KeyDeviceInstance:
			inst, err := dcp.DecodeDeviceInstance(f.Payload)
			if err != nil || inst != id.Instance {
				return false
			}
		case dcp.KeyDeviceRole:
			role, err := dcp.DecodeDeviceRole(f.Payload)
			if err != nil || role&id.DeviceRole == 0 {
				return false
			}
		case dcp.KeyDeviceVendor:
			if string(f.Payload) != id.VendorName {
				return false
			}
		case dcp.KeyIPParameter:
			if !bytes.Equal(f.Payload, dcp.EncodeIPParameter(id.IP)) {
				return false
			}
		case dcp.KeyDeviceOptions:
			// Not a selection criterion.
		default:
			// Alias names need LLDP neighbour data, which this station does not keep.
			return false
		}
	}
	return true
}

// identityBlocks builds the blocks of an Identify response
func (m *Machine) identityBlocks() []dcp.Block {
	blocks := make([]dcp.Block, 0, len(responseOrder))
	for _, k := range responseOrder {
		if !m.supports(k) {
			continue
		}
		if b, ok := m.readBlock(k); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// helloBlocks builds the blocks announcing the station
func (m *Machine) helloBlocks() []dcp.Block {
	blocks := make([]dcp.Block, 0, 6)
	for _, k := range []dcp.Key{dcp.KeyNameOfStation, dcp.KeyIPParameter, dcp.KeyDeviceID, dcp.KeyDeviceOptions, dcp.KeyDeviceRole} {
		if b, ok := m.readBlock(k); ok {
			blocks = append(blocks, b)
		}
	}
	return append(blocks, dcp.ResponseBlock(dcp.KeyInitiative, 0, []byte{0x00, byte(dcp.InitiativeHello)}))
}

// readBlock returns the current value of k as a response block
func (m *Machine) readBlock(k dcp.Key) (dcp.Block, bool) {
	if !m.supports(k) {
		return dcp.Block{}, false
	}
	id := m.identity
	switch k {
	case dcp.KeyMAC:
		return dcp.ResponseBlock(k, 0, id.MAC[:]), true
	case dcp.KeyIPParameter:
		return dcp.ResponseBlock(k, m.ipInfo(), dcp.EncodeIPParameter(id.IP)), true
	case dcp.KeyFullIPSuite:
		return dcp.ResponseBlock(k, m.ipInfo(), dcp.EncodeFullIPSuite(id.IP, [4]types.IPv4{})), true
	case dcp.KeyDeviceVendor:
		return dcp.ResponseBlock(k, 0, []byte(id.VendorName)), true
	case dcp.KeyNameOfStation:
		return dcp.ResponseBlock(k, 0, []byte(id.StationName)), true
	case dcp.KeyDeviceID:
		return dcp.ResponseBlock(k, 0, dcp.EncodeDeviceID(id.VendorID, id.DeviceID)), true
	case dcp.KeyDeviceRole:
		return dcp.ResponseBlock(k, 0, dcp.EncodeDeviceRole(id.DeviceRole)), true
	case dcp.KeyDeviceOptions:
		return dcp.ResponseBlock(k, 0, dcp.EncodeDeviceOptions(m.config.Supported)), true
	case dcp.KeyDeviceInstance:
		return dcp.ResponseBlock(k, 0, dcp.EncodeDeviceInstance(id.Instance)), true
	case dcp.KeyInitiative:
		v := dcp.InitiativeNone
		if m.config.SendHello {
			v = dcp.InitiativeHello
		}
		return dcp.ResponseBlock(k, 0, []byte{byte(v >> 8), byte(v)}), true
	}
	return dcp.Block{}, false
}

func (m *Machine) ipInfo() uint16 {
	if m.identity.IP.IsZero() {
		return dcp.IPInfoNotSet
	}
	return dcp.IPInfoSet
}
