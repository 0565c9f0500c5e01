package transport

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialOpts configures a serial port. AMASP always uses 8N1.
type SerialOpts struct {
	BaudRate int `mapstructure:"baud_rate"`
}

// OpenSerial opens the named serial port and starts buffering its input.
// Bytes received before the call are discarded.
func OpenSerial(name string, opts SerialOpts) (*Port, error) {
	if opts.BaudRate == 0 {
		opts.BaudRate = 115200
	}
	sp, err := serial.Open(name, &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	if err := sp.ResetInputBuffer(); err != nil {
		sp.Close()
		return nil, fmt.Errorf("failed to reset input buffer of %s: %w", name, err)
	}
	return New(sp), nil
}

// ListSerialPorts returns the names of the serial ports present on the system.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
