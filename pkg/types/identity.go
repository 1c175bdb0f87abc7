package types

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"
)

// Identity limits
const (
	MaxStationNameLength = 240
	MaxLabelLength       = 63
	MaxVendorNameLength  = 255
)

// MAC is an Ethernet hardware address
type MAC [6]byte

// Well-known destination addresses
var (
	BroadcastMAC         = MAC{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	DCPIdentifyMulticast = MAC{0x01, 0x0E, 0xCF, 0x00, 0x00, 0x00}
	DCPHelloMulticast    = MAC{0x01, 0x0E, 0xCF, 0x00, 0x00, 0x01}
)

// ParseMAC parses a colon or dash separated hardware address
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return MAC{}, err
	}
	if len(hw) != 6 {
		return MAC{}, fmt.Errorf("invalid MAC length %d", len(hw))
	}
	var m MAC
	copy(m[:], hw)
	return m, nil
}

// String returns the address in 01-0e-cf-00-00-00 notation
func (m MAC) String() string {
	return fmt.Sprintf("%02x-%02x-%02x-%02x-%02x-%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// MarshalText implements encoding.TextMarshaler
func (m MAC) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *MAC) UnmarshalText(text []byte) error {
	parsed, err := ParseMAC(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// IsMulticast returns true for group addresses (including broadcast)
func (m MAC) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// IPv4 is a big-endian IPv4 address as carried in DCP blocks
type IPv4 [4]byte

// ParseIPv4 parses dotted-quad notation
func ParseIPv4(s string) (IPv4, error) {
	ip := net.ParseIP(strings.TrimSpace(s)).To4()
	if ip == nil {
		return IPv4{}, fmt.Errorf("invalid IPv4 address %q", s)
	}
	var a IPv4
	copy(a[:], ip)
	return a, nil
}

// Uint32 returns the address as a host integer
func (a IPv4) Uint32() uint32 {
	return binary.BigEndian.Uint32(a[:])
}

// IsZero returns true for 0.0.0.0
func (a IPv4) IsZero() bool {
	return a == IPv4{}
}

func (a IPv4) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", a[0], a[1], a[2], a[3])
}

// MarshalText implements encoding.TextMarshaler
func (a IPv4) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (a *IPv4) UnmarshalText(text []byte) error {
	parsed, err := ParseIPv4(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// IPConfig holds the IP suite assigned via DCP
type IPConfig struct {
	Address IPv4 `json:"address" yaml:"address"`
	Netmask IPv4 `json:"netmask" yaml:"netmask"`
	Gateway IPv4 `json:"gateway" yaml:"gateway"`
}

// IsZero returns true if no address is assigned
func (c IPConfig) IsZero() bool {
	return c.Address.IsZero() && c.Netmask.IsZero() && c.Gateway.IsZero()
}

func (c IPConfig) String() string {
	return fmt.Sprintf("%s/%s gw %s", c.Address, c.Netmask, c.Gateway)
}

// Validate checks that the suite is usable on a PROFINET segment.
// The all-zero suite is valid and means "no address".
func (c IPConfig) Validate() error {
	if c.IsZero() {
		return nil
	}
	addr := c.Address.Uint32()
	mask := c.Netmask.Uint32()
	gw := c.Gateway.Uint32()

	if mask == 0 || !contiguous(mask) {
		return fmt.Errorf("%w: netmask %s is not contiguous", ErrValidationFailed, c.Netmask)
	}
	first := c.Address[0]
	switch {
	case first == 0, first == 127, first >= 224:
		return fmt.Errorf("%w: address %s not assignable", ErrValidationFailed, c.Address)
	}
	if mask != 0xFFFFFFFF && mask != 0xFFFFFFFE {
		host := addr &^ mask
		if host == 0 || host == ^mask {
			return fmt.Errorf("%w: address %s is a network or broadcast address", ErrValidationFailed, c.Address)
		}
	}
	// A gateway equal to the own address means "no gateway" and passes the subnet check.
	if gw != 0 && gw&mask != addr&mask {
		return fmt.Errorf("%w: gateway %s outside subnet", ErrValidationFailed, c.Gateway)
	}
	return nil
}

func contiguous(mask uint32) bool {
	inv := ^mask
	return inv&(inv+1) == 0
}

// StationIdentity is the device identity mutated through DCP Set and
// persisted across resets.
type StationIdentity struct {
	VendorID    uint16   `json:"vendor_id" yaml:"vendor_id"`
	DeviceID    uint16   `json:"device_id" yaml:"device_id"`
	Instance    uint16   `json:"instance" yaml:"instance"`
	StationName string   `json:"station_name" yaml:"station_name"`
	IP          IPConfig `json:"ip" yaml:"ip"`
	MAC         MAC      `json:"mac" yaml:"mac"`
	VendorName  string   `json:"vendor_name" yaml:"vendor_name"`
	DeviceRole  uint8    `json:"device_role" yaml:"device_role"`
}

// Device roles
const (
	RoleIODevice      uint8 = 0x01
	RoleIOController  uint8 = 0x02
	RoleIOMultiDevice uint8 = 0x04
	RoleIOSupervisor  uint8 = 0x08
)

// Clone returns a copy of the identity
func (s *StationIdentity) Clone() *StationIdentity {
	c := *s
	return &c
}

// String returns string representation of identity
func (s *StationIdentity) String() string {
	return fmt.Sprintf("Station{Name=%q, Vendor=0x%04X, Device=0x%04X, Instance=%d, MAC=%s, IP=%s}",
		s.StationName, s.VendorID, s.DeviceID, s.Instance, s.MAC, s.IP)
}

// ValidateStationName checks the DNS-like rules of a name of station.
// The empty name is valid and clears the name.
func ValidateStationName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > MaxStationNameLength {
		return fmt.Errorf("%w: name of station longer than %d bytes", ErrValidationFailed, MaxStationNameLength)
	}
	labels := strings.Split(name, ".")
	for _, label := range labels {
		if err := validateLabel(label); err != nil {
			return err
		}
	}
	if looksLikeIPv4(labels) {
		return fmt.Errorf("%w: name of station %q has the form of an IP address", ErrValidationFailed, name)
	}
	if isPortName(labels[0]) {
		return fmt.Errorf("%w: name of station %q starts with a port name", ErrValidationFailed, name)
	}
	return nil
}

func validateLabel(label string) error {
	if len(label) == 0 || len(label) > MaxLabelLength {
		return fmt.Errorf("%w: label %q must be 1-%d characters", ErrValidationFailed, label, MaxLabelLength)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("%w: label %q starts or ends with '-'", ErrValidationFailed, label)
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return fmt.Errorf("%w: invalid character 0x%02X in label %q", ErrValidationFailed, c, label)
	}
	return nil
}

func looksLikeIPv4(labels []string) bool {
	if len(labels) != 4 {
		return false
	}
	for _, l := range labels {
		for i := 0; i < len(l); i++ {
			if l[i] < '0' || l[i] > '9' {
				return false
			}
		}
	}
	return true
}

// isPortName matches "port-xyz" and "port-xyz-abcde" with digits x, y, z, a-e.
func isPortName(label string) bool {
	if !strings.HasPrefix(label, "port-") {
		return false
	}
	rest := label[len("port-"):]
	if len(rest) != 3 && len(rest) != 9 {
		return false
	}
	for i := 0; i < len(rest); i++ {
		if i == 3 {
			if rest[i] != '-' {
				return false
			}
			continue
		}
		if rest[i] < '0' || rest[i] > '9' {
			return false
		}
	}
	return true
}
