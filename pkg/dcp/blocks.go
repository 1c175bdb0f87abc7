package dcp

import (
	"encoding/binary"
	"fmt"

	"avaneesh/pnio-go/pkg/types"
)

// Value lengths of fixed-size blocks
const (
	ipParameterLength = 12
	fullIPSuiteLength = 28
	deviceIDLength    = 4
	instanceLength    = 2
	roleLength        = 2
	macLength         = 6
	signalLength      = 2
)

// ResponseBlock builds a block as carried in Identify/Get responses and Hello:
// BlockInfo followed by the value.
func ResponseBlock(k Key, info uint16, value []byte) Block {
	payload := make([]byte, 2, 2+len(value))
	binary.BigEndian.PutUint16(payload, info)
	return Block{Option: k.Option(), Suboption: k.Suboption(), Payload: append(payload, value...)}
}

// SetBlock builds a Set request block: BlockQualifier followed by the value.
func SetBlock(k Key, qualifier uint16, value []byte) Block {
	payload := make([]byte, 2, 2+len(value))
	binary.BigEndian.PutUint16(payload, qualifier)
	return Block{Option: k.Option(), Suboption: k.Suboption(), Payload: append(payload, value...)}
}

// FilterBlock builds an Identify request filter block, which has no prefix.
func FilterBlock(k Key, value []byte) Block {
	b := Block{Option: k.Option(), Suboption: k.Suboption()}
	if len(value) > 0 {
		b.Payload = append([]byte(nil), value...)
	}
	return b
}

// SplitPrefixed splits a Set or response block into its 2-byte prefix
// (qualifier or block info) and value.
func SplitPrefixed(b Block) (uint16, []byte, error) {
	if len(b.Payload) < 2 {
		return 0, nil, malformed(ErrBlockValue, "block %s has no qualifier", b.Key())
	}
	return binary.BigEndian.Uint16(b.Payload[:2]), b.Payload[2:], nil
}

// ControlResponse builds the Control/Response block of a Set response
func ControlResponse(k Key, code types.BlockErrorCode) Block {
	return Block{
		Option:    OptionControl,
		Suboption: SubControlResponse,
		Payload:   []byte{k.Option(), k.Suboption(), uint8(code)},
	}
}

// ParseControlResponse extracts the answered key and error code
func ParseControlResponse(b Block) (Key, types.BlockErrorCode, error) {
	if b.Key() != KeyControlResp || len(b.Payload) != 3 {
		return 0, 0, malformed(ErrBlockValue, "not a control response: %s", b)
	}
	return MakeKey(b.Payload[0], b.Payload[1]), types.BlockErrorCode(b.Payload[2]), nil
}

// EncodeIPParameter encodes address, netmask and gateway
func EncodeIPParameter(c types.IPConfig) []byte {
	v := make([]byte, 0, ipParameterLength)
	v = append(v, c.Address[:]...)
	v = append(v, c.Netmask[:]...)
	return append(v, c.Gateway[:]...)
}

// DecodeIPParameter decodes an IP parameter value
func DecodeIPParameter(v []byte) (types.IPConfig, error) {
	var c types.IPConfig
	if len(v) != ipParameterLength {
		return c, malformed(ErrBlockValue, "IP parameter length %d", len(v))
	}
	copy(c.Address[:], v[0:4])
	copy(c.Netmask[:], v[4:8])
	copy(c.Gateway[:], v[8:12])
	return c, nil
}

// DecodeFullIPSuite decodes an IP parameter value followed by four DNS servers
func DecodeFullIPSuite(v []byte) (types.IPConfig, [4]types.IPv4, error) {
	var dns [4]types.IPv4
	if len(v) != fullIPSuiteLength {
		return types.IPConfig{}, dns, malformed(ErrBlockValue, "full IP suite length %d", len(v))
	}
	c, err := DecodeIPParameter(v[:ipParameterLength])
	if err != nil {
		return c, dns, err
	}
	for i := range dns {
		copy(dns[i][:], v[ipParameterLength+4*i:])
	}
	return c, dns, nil
}

// EncodeFullIPSuite encodes the IP parameter followed by four DNS servers
func EncodeFullIPSuite(c types.IPConfig, dns [4]types.IPv4) []byte {
	v := EncodeIPParameter(c)
	for _, d := range dns {
		v = append(v, d[:]...)
	}
	return v
}

// EncodeDeviceID encodes vendor and device ID
func EncodeDeviceID(vendor, device uint16) []byte {
	v := make([]byte, deviceIDLength)
	binary.BigEndian.PutUint16(v[0:2], vendor)
	binary.BigEndian.PutUint16(v[2:4], device)
	return v
}

// DecodeDeviceID decodes vendor and device ID
func DecodeDeviceID(v []byte) (vendor, device uint16, err error) {
	if len(v) != deviceIDLength {
		return 0, 0, malformed(ErrBlockValue, "device ID length %d", len(v))
	}
	return binary.BigEndian.Uint16(v[0:2]), binary.BigEndian.Uint16(v[2:4]), nil
}

// EncodeDeviceInstance encodes the instance as high and low byte
func EncodeDeviceInstance(instance uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, instance)
}

// DecodeDeviceInstance decodes the instance value
func DecodeDeviceInstance(v []byte) (uint16, error) {
	if len(v) != instanceLength {
		return 0, malformed(ErrBlockValue, "device instance length %d", len(v))
	}
	return binary.BigEndian.Uint16(v), nil
}

// EncodeDeviceRole encodes the role byte and its reserved byte
func EncodeDeviceRole(role uint8) []byte {
	return []byte{role, 0x00}
}

// DecodeDeviceRole decodes the role byte
func DecodeDeviceRole(v []byte) (uint8, error) {
	if len(v) != roleLength {
		return 0, malformed(ErrBlockValue, "device role length %d", len(v))
	}
	return v[0], nil
}

// EncodeDeviceOptions lists the supported option/suboption pairs
func EncodeDeviceOptions(keys []Key) []byte {
	v := make([]byte, 0, 2*len(keys))
	for _, k := range keys {
		v = append(v, k.Option(), k.Suboption())
	}
	return v
}

// DecodeDeviceOptions decodes a list of option/suboption pairs
func DecodeDeviceOptions(v []byte) ([]Key, error) {
	if len(v)%2 != 0 {
		return nil, malformed(ErrBlockValue, "device options length %d", len(v))
	}
	keys := make([]Key, 0, len(v)/2)
	for i := 0; i < len(v); i += 2 {
		keys = append(keys, MakeKey(v[i], v[i+1]))
	}
	return keys, nil
}

// DecodeMAC decodes a MAC address value
func DecodeMAC(v []byte) (types.MAC, error) {
	var m types.MAC
	if len(v) != macLength {
		return m, malformed(ErrBlockValue, "MAC length %d", len(v))
	}
	copy(m[:], v)
	return m, nil
}

// DecodeSignal decodes the value of a Control/Signal block
func DecodeSignal(v []byte) (uint16, error) {
	if len(v) != signalLength {
		return 0, malformed(ErrBlockValue, "signal length %d", len(v))
	}
	return binary.BigEndian.Uint16(v), nil
}

// DecodeName validates the length of a name of station value
func DecodeName(v []byte) (string, error) {
	if len(v) > types.MaxStationNameLength {
		return "", fmt.Errorf("%w: name of station has %d bytes", types.ErrValidationFailed, len(v))
	}
	return string(v), nil
}
