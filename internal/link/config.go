package link

import (
	"errors"
	"fmt"
	"time"

	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
	"github.com/xvzf/amasp/pkg/transport"
)

type Role string

const (
	RoleMaster Role = "master"
	RoleSlave  Role = "slave"
)

// SimulatedPort as port name connects a master to an in-process echo slave.
const SimulatedPort = "sim"

// PollConfig makes a master request a device periodically.
type PollConfig struct {
	DeviceID uint16        `mapstructure:"device_id"`
	Payload  string        `mapstructure:"payload"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	// Port is the serial device, e.g. /dev/ttyUSB0
	Port   string               `mapstructure:"port"`
	Serial transport.SerialOpts `mapstructure:",squash"`

	// ReadTimeout bounds each wait for bytes while decoding a packet
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// PollInterval is the pause between checks for buffered bytes
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// Checksum is the error check algorithm of outgoing packets (none, xor8, checksum16, lrc16, fletcher16, crc16)
	Checksum string `mapstructure:"checksum"`
	Role     Role   `mapstructure:"role"`

	// RequestTimeout bounds the wait for a response to a request (master)
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Poll lists devices to request periodically (master)
	Poll []PollConfig `mapstructure:"poll"`

	// Echo answers every request with its own payload (slave)
	Echo bool `mapstructure:"echo"`
	// Devices restricts the served device ids, empty serves all (slave)
	Devices []uint16 `mapstructure:"devices"`
}

// DefaultConfig returns the configuration used for unset values.
func DefaultConfig() Config {
	return Config{
		Serial:         transport.SerialOpts{BaudRate: amasp.Baudrate},
		ReadTimeout:    proto.DefaultReadTimeout,
		PollInterval:   proto.DefaultPollInterval,
		Checksum:       proto.ChecksumCRC16Modbus.String(),
		Role:           RoleMaster,
		RequestTimeout: time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.Checksum == "" {
		c.Checksum = def.Checksum
	}
	if c.Role == "" {
		c.Role = def.Role
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	return c
}

// Validate checks the configuration and returns the parsed checksum kind.
func (c Config) Validate() (proto.ChecksumKind, error) {
	kind, err := proto.ParseChecksumKind(c.Checksum)
	if err != nil {
		return kind, err
	}
	if c.Role != RoleMaster && c.Role != RoleSlave {
		return kind, fmt.Errorf("invalid role %q, must be %q or %q", c.Role, RoleMaster, RoleSlave)
	}
	if c.Port == "" {
		return kind, errors.New("no port configured")
	}
	if c.Port == SimulatedPort && c.Role != RoleMaster {
		return kind, errors.New("the simulated port is only available to masters")
	}
	for _, p := range c.Poll {
		if p.DeviceID > proto.MaxDeviceID {
			return kind, fmt.Errorf("poll device id %#x: %w", p.DeviceID, proto.ErrDeviceIDRange)
		}
		if p.Interval <= 0 {
			return kind, fmt.Errorf("poll device id %#x: interval must be positive", p.DeviceID)
		}
		if len(p.Payload) > proto.MaxPayloadSize {
			return kind, fmt.Errorf("poll device id %#x: payload exceeds %d bytes", p.DeviceID, proto.MaxPayloadSize)
		}
	}
	for _, id := range c.Devices {
		if id > proto.MaxDeviceID {
			return kind, fmt.Errorf("device id %#x: %w", id, proto.ErrDeviceIDRange)
		}
	}
	return kind, nil
}
