package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"avaneesh/pnio-go/pkg/cyclic"
	"avaneesh/pnio-go/pkg/discovery"
	"avaneesh/pnio-go/pkg/types"
)

// EnvPrefix prefixes environment overrides, e.g. PNIO_DEVICE_STATION_NAME
const EnvPrefix = "PNIO"

type Config struct {
	Device      DeviceConfig      `mapstructure:"device"`
	DCP         DCPConfig         `mapstructure:"dcp"`
	Cyclic      CyclicConfig      `mapstructure:"cyclic"`
	Channel     ChannelConfig     `mapstructure:"channel"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Diag        DiagConfig        `mapstructure:"diag"`
	ARs         []ARConfig        `mapstructure:"ars"`
}

// DeviceConfig is the factory identity of the station
type DeviceConfig struct {
	MAC         string `mapstructure:"mac"`
	StationName string `mapstructure:"station_name"`
	VendorID    uint16 `mapstructure:"vendor_id"`
	DeviceID    uint16 `mapstructure:"device_id"`
	Instance    uint16 `mapstructure:"instance"`
	VendorName  string `mapstructure:"vendor_name"`
	DeviceRole  uint8  `mapstructure:"device_role"`
	IPAddress   string `mapstructure:"ip_address"`
	Netmask     string `mapstructure:"netmask"`
	Gateway     string `mapstructure:"gateway"`
}

type DCPConfig struct {
	SendHello        bool          `mapstructure:"send_hello"`
	ResponseDeadline time.Duration `mapstructure:"response_deadline"`
	AllowSetDuringAR bool          `mapstructure:"allow_set_during_ar"`
	// DelaySource is "mac" or "random"
	DelaySource string `mapstructure:"delay_source"`
}

type CyclicConfig struct {
	MaxARs       int           `mapstructure:"max_ars"`
	FrameIDMin   uint16        `mapstructure:"frame_id_min"`
	FrameIDMax   uint16        `mapstructure:"frame_id_max"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	QueueDepth   int           `mapstructure:"queue_depth"`
}

// ChannelConfig selects the Ethernet medium
type ChannelConfig struct {
	// Type is "udp", "tcp", "quic" or "loopback"
	Type       string `mapstructure:"type"`
	Address    string `mapstructure:"address"`
	Server     bool   `mapstructure:"server"`
	WriteQueue int    `mapstructure:"write_queue"`
	FrameDebug bool   `mapstructure:"frame_debug"`
}

type CaptureConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type PersistenceConfig struct {
	// Backend is "memory", "file" or "sqlite"
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	// Backend is "zap", "logrus" or "std"
	Backend string `mapstructure:"backend"`
	Level   string `mapstructure:"level"`
}

type DiagConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// ARConfig is an application relationship negotiated ahead of time and
// established when the device starts.
type ARConfig struct {
	UUID           string           `mapstructure:"uuid"`
	InputFrameID   uint16           `mapstructure:"input_frame_id"`
	OutputFrameID  uint16           `mapstructure:"output_frame_id"`
	CycleTime      time.Duration    `mapstructure:"cycle_time"`
	WatchdogFactor uint16           `mapstructure:"watchdog_factor"`
	InputLength    uint16           `mapstructure:"input_length"`
	OutputLength   uint16           `mapstructure:"output_length"`
	RemoteMAC      string           `mapstructure:"remote_mac"`
	Objects        []IOObjectConfig `mapstructure:"objects"`
}

type IOObjectConfig struct {
	Slot    uint16 `mapstructure:"slot"`
	Subslot uint16 `mapstructure:"subslot"`
	// Direction is "input" (consumed by the device) or "output" (produced by it)
	Direction  string `mapstructure:"direction"`
	DataLength uint16 `mapstructure:"data_length"`
	DataOffset uint16 `mapstructure:"data_offset"`
	IOPSOffset uint16 `mapstructure:"iops_offset"`
	IOCSOffset uint16 `mapstructure:"iocs_offset"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.mac", "02-00-00-00-00-01")
	v.SetDefault("device.station_name", "")
	v.SetDefault("device.vendor_id", 0x002A)
	v.SetDefault("device.device_id", 0x0001)
	v.SetDefault("device.instance", 1)
	v.SetDefault("device.vendor_name", "pnio-go")
	v.SetDefault("device.device_role", types.RoleIODevice)
	v.SetDefault("device.ip_address", "0.0.0.0")
	v.SetDefault("device.netmask", "0.0.0.0")
	v.SetDefault("device.gateway", "0.0.0.0")

	v.SetDefault("dcp.send_hello", false)
	v.SetDefault("dcp.response_deadline", discovery.DefaultResponseDeadline)
	v.SetDefault("dcp.allow_set_during_ar", false)
	v.SetDefault("dcp.delay_source", "mac")

	v.SetDefault("cyclic.max_ars", cyclic.DefaultMaxARs)
	v.SetDefault("cyclic.frame_id_min", 0xC000)
	v.SetDefault("cyclic.frame_id_max", 0xF7FF)
	v.SetDefault("cyclic.tick_interval", "1ms")
	v.SetDefault("cyclic.queue_depth", 1024)

	v.SetDefault("channel.type", "udp")
	v.SetDefault("channel.address", "127.0.0.1:34964")
	v.SetDefault("channel.server", true)
	v.SetDefault("channel.write_queue", 256)
	v.SetDefault("channel.frame_debug", false)

	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.path", "pnio.pcap")

	v.SetDefault("persistence.backend", "sqlite")
	v.SetDefault("persistence.path", "pnio-identity.db")

	v.SetDefault("logging.backend", "zap")
	v.SetDefault("logging.level", "info")

	v.SetDefault("diag.enabled", true)
	v.SetDefault("diag.address", "127.0.0.1:8089")
}

// Load reads the YAML file at path. An empty path uses defaults and the
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values that cannot be checked by type alone
func (c *Config) Validate() error {
	if _, err := c.Device.Identity(); err != nil {
		return err
	}
	switch c.DCP.DelaySource {
	case "mac", "random":
	default:
		return fmt.Errorf("dcp.delay_source: unknown source %q", c.DCP.DelaySource)
	}
	switch c.Channel.Type {
	case "udp", "tcp", "quic", "loopback":
	default:
		return fmt.Errorf("channel.type: unknown medium %q", c.Channel.Type)
	}
	switch c.Logging.Backend {
	case "zap", "logrus", "std":
	default:
		return fmt.Errorf("logging.backend: unknown backend %q", c.Logging.Backend)
	}
	if c.Cyclic.FrameIDMin > c.Cyclic.FrameIDMax {
		return fmt.Errorf("cyclic: frame_id_min 0x%04X above frame_id_max 0x%04X", c.Cyclic.FrameIDMin, c.Cyclic.FrameIDMax)
	}
	for i := range c.ARs {
		ar, err := c.ARs[i].AR()
		if err != nil {
			return fmt.Errorf("ars[%d]: %w", i, err)
		}
		if err := ar.Validate(c.Cyclic.FrameIDMin, c.Cyclic.FrameIDMax); err != nil {
			return fmt.Errorf("ars[%d]: %w", i, err)
		}
	}
	return nil
}

// Identity converts the device section into the factory identity
func (d DeviceConfig) Identity() (types.StationIdentity, error) {
	id := types.StationIdentity{
		VendorID:    d.VendorID,
		DeviceID:    d.DeviceID,
		Instance:    d.Instance,
		StationName: d.StationName,
		VendorName:  d.VendorName,
		DeviceRole:  d.DeviceRole,
	}
	var err error
	if id.MAC, err = types.ParseMAC(d.MAC); err != nil {
		return id, fmt.Errorf("device.mac: %w", err)
	}
	if id.MAC.IsMulticast() || id.MAC == (types.MAC{}) {
		return id, fmt.Errorf("device.mac: %s is not a station address", id.MAC)
	}
	if id.IP.Address, err = types.ParseIPv4(d.IPAddress); err != nil {
		return id, fmt.Errorf("device.ip_address: %w", err)
	}
	if id.IP.Netmask, err = types.ParseIPv4(d.Netmask); err != nil {
		return id, fmt.Errorf("device.netmask: %w", err)
	}
	if id.IP.Gateway, err = types.ParseIPv4(d.Gateway); err != nil {
		return id, fmt.Errorf("device.gateway: %w", err)
	}
	if err := types.ValidateStationName(id.StationName); err != nil {
		return id, fmt.Errorf("device.station_name: %w", err)
	}
	if err := id.IP.Validate(); err != nil {
		return id, fmt.Errorf("device: %w", err)
	}
	if len(id.VendorName) > types.MaxVendorNameLength {
		return id, fmt.Errorf("device.vendor_name: longer than %d bytes", types.MaxVendorNameLength)
	}
	return id, nil
}

// Discovery converts the dcp section, restoring factory on reset
func (c *Config) Discovery(factory types.StationIdentity) discovery.Config {
	dc := discovery.DefaultConfig()
	dc.SendHello = c.DCP.SendHello
	dc.ResponseDeadline = c.DCP.ResponseDeadline
	dc.AllowSetDuringAR = c.DCP.AllowSetDuringAR
	dc.Factory = factory
	return dc
}

// AR converts one ars entry
func (a ARConfig) AR() (cyclic.AR, error) {
	ar := cyclic.AR{
		InputFrameID:   a.InputFrameID,
		OutputFrameID:  a.OutputFrameID,
		CycleTime:      a.CycleTime,
		WatchdogFactor: a.WatchdogFactor,
		InputLength:    a.InputLength,
		OutputLength:   a.OutputLength,
	}
	var err error
	if a.UUID == "" {
		ar.UUID = uuid.New()
	} else if ar.UUID, err = uuid.Parse(a.UUID); err != nil {
		return ar, fmt.Errorf("uuid: %w", err)
	}
	if ar.RemoteMAC, err = types.ParseMAC(a.RemoteMAC); err != nil {
		return ar, fmt.Errorf("remote_mac: %w", err)
	}
	for i, o := range a.Objects {
		obj := cyclic.IOObject{
			Slot:       o.Slot,
			Subslot:    o.Subslot,
			DataLength: o.DataLength,
			DataOffset: o.DataOffset,
			IOPSOffset: o.IOPSOffset,
			IOCSOffset: o.IOCSOffset,
		}
		switch strings.ToLower(o.Direction) {
		case "input":
			obj.Direction = cyclic.DirectionInput
		case "output":
			obj.Direction = cyclic.DirectionOutput
		default:
			return ar, fmt.Errorf("objects[%d]: unknown direction %q", i, o.Direction)
		}
		ar.Layout = append(ar.Layout, obj)
	}
	return ar, nil
}

// Delay returns the response delay source named by dcp.delay_source
func (c *Config) Delay(seed int64) discovery.DelaySource {
	if c.DCP.DelaySource == "random" {
		return discovery.NewRandomDelay(seed)
	}
	return discovery.MACDelay{}
}
