package dcp

import (
	"errors"
	"fmt"
)

// DCP frame IDs
const (
	FrameIDHello       uint16 = 0xFEFC
	FrameIDGetSet      uint16 = 0xFEFD
	FrameIDIdentifyReq uint16 = 0xFEFE
	FrameIDIdentifyRsp uint16 = 0xFEFF
)

// IsFrameID reports whether id belongs to the DCP range
func IsFrameID(id uint16) bool {
	return id >= FrameIDHello && id <= FrameIDIdentifyRsp
}

// Sizes
const (
	HeaderLength      = 12
	BlockHeaderLength = 4
	MaxDataLength     = 1500 - HeaderLength
)

// ServiceID identifies the DCP service
type ServiceID uint8

const (
	ServiceGet      ServiceID = 3
	ServiceSet      ServiceID = 4
	ServiceIdentify ServiceID = 5
	ServiceHello    ServiceID = 6
)

// String returns string representation of ServiceID
func (s ServiceID) String() string {
	switch s {
	case ServiceGet:
		return "Get"
	case ServiceSet:
		return "Set"
	case ServiceIdentify:
		return "Identify"
	case ServiceHello:
		return "Hello"
	default:
		return fmt.Sprintf("Service(%d)", uint8(s))
	}
}

// ServiceType distinguishes requests from responses
type ServiceType uint8

const (
	ServiceTypeRequest             ServiceType = 0
	ServiceTypeResponseSuccess     ServiceType = 1
	ServiceTypeResponseUnsupported ServiceType = 5
)

// String returns string representation of ServiceType
func (s ServiceType) String() string {
	switch s {
	case ServiceTypeRequest:
		return "Request"
	case ServiceTypeResponseSuccess:
		return "Response"
	case ServiceTypeResponseUnsupported:
		return "ResponseUnsupported"
	default:
		return fmt.Sprintf("ServiceType(%d)", uint8(s))
	}
}

// Block options
const (
	OptionIP               uint8 = 0x01
	OptionDeviceProperties uint8 = 0x02
	OptionDHCP             uint8 = 0x03
	OptionControl          uint8 = 0x05
	OptionDeviceInitiative uint8 = 0x06
	OptionNMEDomain        uint8 = 0x07
	OptionAll              uint8 = 0xFF
)

// IP suboptions
const (
	SubIPMAC         uint8 = 0x01
	SubIPParameter   uint8 = 0x02
	SubIPFullIPSuite uint8 = 0x03
)

// Device properties suboptions
const (
	SubDeviceVendor    uint8 = 0x01
	SubNameOfStation   uint8 = 0x02
	SubDeviceID        uint8 = 0x03
	SubDeviceRole      uint8 = 0x04
	SubDeviceOptions   uint8 = 0x05
	SubAliasName       uint8 = 0x06
	SubDeviceInstance  uint8 = 0x07
	SubOEMDeviceID     uint8 = 0x08
	SubStandardGateway uint8 = 0x09
	SubRSIProperties   uint8 = 0x0A
)

// Control suboptions
const (
	SubControlStart          uint8 = 0x01
	SubControlStop           uint8 = 0x02
	SubControlSignal         uint8 = 0x03
	SubControlResponse       uint8 = 0x04
	SubControlFactoryReset   uint8 = 0x05
	SubControlResetToFactory uint8 = 0x06
)

// Other suboptions
const (
	SubDeviceInitiative uint8 = 0x01
	SubAll              uint8 = 0xFF
)

// Block qualifier of Set requests
const (
	QualifierTemporary uint16 = 0x0000
	QualifierPermanent uint16 = 0x0001
)

// Block info of IP responses
const (
	IPInfoNotSet   uint16 = 0x0000
	IPInfoSet      uint16 = 0x0001
	IPInfoDHCP     uint16 = 0x0002
	IPInfoConflict uint16 = 0x0080
)

// DeviceInitiative values
const (
	InitiativeNone  uint16 = 0x0000
	InitiativeHello uint16 = 0x0001
)

// Signal control value (flash once)
const SignalFlashOnce uint16 = 0x0100

// Key packs an option/suboption pair
type Key uint16

// MakeKey builds a Key
func MakeKey(option, suboption uint8) Key {
	return Key(uint16(option)<<8 | uint16(suboption))
}

// Option returns the option byte
func (k Key) Option() uint8 { return uint8(k >> 8) }

// Suboption returns the suboption byte
func (k Key) Suboption() uint8 { return uint8(k) }

// Common keys
var (
	KeyMAC            = MakeKey(OptionIP, SubIPMAC)
	KeyIPParameter    = MakeKey(OptionIP, SubIPParameter)
	KeyFullIPSuite    = MakeKey(OptionIP, SubIPFullIPSuite)
	KeyDeviceVendor   = MakeKey(OptionDeviceProperties, SubDeviceVendor)
	KeyNameOfStation  = MakeKey(OptionDeviceProperties, SubNameOfStation)
	KeyDeviceID       = MakeKey(OptionDeviceProperties, SubDeviceID)
	KeyDeviceRole     = MakeKey(OptionDeviceProperties, SubDeviceRole)
	KeyDeviceOptions  = MakeKey(OptionDeviceProperties, SubDeviceOptions)
	KeyAliasName      = MakeKey(OptionDeviceProperties, SubAliasName)
	KeyDeviceInstance = MakeKey(OptionDeviceProperties, SubDeviceInstance)
	KeyControlStart   = MakeKey(OptionControl, SubControlStart)
	KeyControlStop    = MakeKey(OptionControl, SubControlStop)
	KeyControlSignal  = MakeKey(OptionControl, SubControlSignal)
	KeyControlResp    = MakeKey(OptionControl, SubControlResponse)
	KeyFactoryReset   = MakeKey(OptionControl, SubControlFactoryReset)
	KeyResetToFactory = MakeKey(OptionControl, SubControlResetToFactory)
	KeyInitiative     = MakeKey(OptionDeviceInitiative, SubDeviceInitiative)
	KeyAll            = MakeKey(OptionAll, SubAll)
)

// String returns a readable option name
func (k Key) String() string {
	switch k {
	case KeyMAC:
		return "IP/MAC"
	case KeyIPParameter:
		return "IP/Parameter"
	case KeyFullIPSuite:
		return "IP/FullSuite"
	case KeyDeviceVendor:
		return "Device/Vendor"
	case KeyNameOfStation:
		return "Device/NameOfStation"
	case KeyDeviceID:
		return "Device/ID"
	case KeyDeviceRole:
		return "Device/Role"
	case KeyDeviceOptions:
		return "Device/Options"
	case KeyAliasName:
		return "Device/Alias"
	case KeyDeviceInstance:
		return "Device/Instance"
	case KeyControlStart:
		return "Control/Start"
	case KeyControlStop:
		return "Control/Stop"
	case KeyControlSignal:
		return "Control/Signal"
	case KeyControlResp:
		return "Control/Response"
	case KeyFactoryReset:
		return "Control/FactoryReset"
	case KeyResetToFactory:
		return "Control/ResetToFactory"
	case KeyInitiative:
		return "DeviceInitiative"
	case KeyAll:
		return "All"
	default:
		return fmt.Sprintf("Option(%d/%d)", k.Option(), k.Suboption())
	}
}

var (
	ErrHeaderTooShort = errors.New("DCP header too short")
	ErrInvalidFrameID = errors.New("frame ID outside DCP range")
	ErrDataLength     = errors.New("DCP data length exceeds frame")
	ErrBlockTruncated = errors.New("DCP block truncated")
	ErrBlockValue     = errors.New("DCP block value has wrong length")
	ErrPDUTooLarge    = errors.New("DCP PDU exceeds frame")
)
