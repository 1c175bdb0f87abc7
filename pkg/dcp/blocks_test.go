package dcp

import (
	"bytes"
	"errors"
	"testing"

	"avaneesh/pnio-go/pkg/types"
)

func TestIPParameter(t *testing.T) {
	c := types.IPConfig{
		Address: types.IPv4{10, 0, 0, 2},
		Netmask: types.IPv4{255, 255, 0, 0},
		Gateway: types.IPv4{10, 0, 0, 1},
	}
	v := EncodeIPParameter(c)
	want := []byte{10, 0, 0, 2, 255, 255, 0, 0, 10, 0, 0, 1}
	if !bytes.Equal(v, want) {
		t.Errorf("EncodeIPParameter = % x, want % x", v, want)
	}
	got, err := DecodeIPParameter(v)
	if err != nil || got != c {
		t.Errorf("DecodeIPParameter = %v, %v", got, err)
	}
	if _, err := DecodeIPParameter(v[:11]); !errors.Is(err, types.ErrMalformedFrame) {
		t.Errorf("short value err = %v", err)
	}

	dns := [4]types.IPv4{{8, 8, 8, 8}}
	full := EncodeFullIPSuite(c, dns)
	gotC, gotDNS, err := DecodeFullIPSuite(full)
	if err != nil || gotC != c || gotDNS != dns {
		t.Errorf("DecodeFullIPSuite = %v %v %v", gotC, gotDNS, err)
	}
}

func TestDeviceBlocks(t *testing.T) {
	vendor, device, err := DecodeDeviceID(EncodeDeviceID(0x002A, 0x0313))
	if err != nil || vendor != 0x002A || device != 0x0313 {
		t.Errorf("DeviceID = %04X %04X %v", vendor, device, err)
	}
	inst, err := DecodeDeviceInstance(EncodeDeviceInstance(0x0102))
	if err != nil || inst != 0x0102 {
		t.Errorf("DeviceInstance = %04X %v", inst, err)
	}
	role, err := DecodeDeviceRole(EncodeDeviceRole(types.RoleIODevice))
	if err != nil || role != types.RoleIODevice {
		t.Errorf("DeviceRole = %d %v", role, err)
	}
	keys := []Key{KeyNameOfStation, KeyIPParameter, KeyControlSignal}
	gotKeys, err := DecodeDeviceOptions(EncodeDeviceOptions(keys))
	if err != nil || len(gotKeys) != len(keys) {
		t.Fatalf("DeviceOptions = %v %v", gotKeys, err)
	}
	for i := range keys {
		if gotKeys[i] != keys[i] {
			t.Errorf("DeviceOptions[%d] = %s, want %s", i, gotKeys[i], keys[i])
		}
	}
	mac := types.MAC{1, 2, 3, 4, 5, 6}
	gotMAC, err := DecodeMAC(mac[:])
	if err != nil || gotMAC != mac {
		t.Errorf("MAC = %s %v", gotMAC, err)
	}
}

func TestPrefixedBlocks(t *testing.T) {
	b := SetBlock(KeyNameOfStation, QualifierPermanent, []byte("dev"))
	q, v, err := SplitPrefixed(b)
	if err != nil || q != QualifierPermanent || string(v) != "dev" {
		t.Errorf("SplitPrefixed = %d %q %v", q, v, err)
	}
	if _, _, err := SplitPrefixed(Block{Option: 2, Suboption: 2, Payload: []byte{0}}); !errors.Is(err, types.ErrMalformedFrame) {
		t.Errorf("err = %v", err)
	}

	r := ControlResponse(KeyIPParameter, types.BlockErrorOptionNotSet)
	k, code, err := ParseControlResponse(r)
	if err != nil || k != KeyIPParameter || code != types.BlockErrorOptionNotSet {
		t.Errorf("ParseControlResponse = %s %s %v", k, code, err)
	}
}

func TestKeyString(t *testing.T) {
	if KeyNameOfStation.String() != "Device/NameOfStation" {
		t.Errorf("String = %s", KeyNameOfStation)
	}
	if MakeKey(0x80, 0x01).String() != "Option(128/1)" {
		t.Errorf("String = %s", MakeKey(0x80, 0x01))
	}
	if !IsFrameID(FrameIDHello) || IsFrameID(0xFEFB) || IsFrameID(0x8000) {
		t.Error("IsFrameID mismatch")
	}
}
