//go:build tinygo

package main

import (
	"context"
	"machine"
	"strconv"
	"time"

	"github.com/xvzf/amasp/internal/firmware"
	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
)

// Device id answered by this board, override with -ldflags "-X main.deviceID=..."
var deviceID = "01A"

func main() {
	var dev *firmware.Device
	var id uint64
	var err error

	// Configure status LED
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.LED.Set(false)

	// Configure UART
	err = machine.UART0.Configure(machine.UARTConfig{TX: machine.UART0_TX_PIN, RX: machine.UART0_RX_PIN})
	if err != nil {
		println("[!] Failed to initialize UART0:", err.Error())
		goto errprint
	}
	machine.UART0.SetBaudRate(amasp.Baudrate)

	// Configure button
	machine.GP12.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	id, err = strconv.ParseUint(deviceID, 16, 12)
	if err != nil {
		println("[!] Invalid device id:", err.Error())
		goto errprint
	}

	println("[+] IO initialized, starting slave...")

	dev = &firmware.Device{
		UART:      machine.UART0,
		DeviceID:  uint16(id),
		Checksum:  proto.ChecksumCRC16Modbus,
		StatusLED: pinLED(machine.LED),
	}
	err = machine.GP12.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		dev.PressButton()
	})
	if err != nil {
		println("[!] Failed to configure button interrupt:", err.Error())
		goto errprint
	}

	err = dev.Run(context.Background())

	// Blinking -> something went wrong
errprint:
	ledState := false
	for {
		ledState = !ledState
		machine.LED.Set(ledState)
		// Repeat error message
		println("[FATAL] slave exited with error:", err)
		time.Sleep(500 * time.Millisecond)
	}
}

// pinLED drives a LED connected to a GPIO pin
type pinLED machine.Pin

func (p pinLED) Set(on bool) error {
	machine.Pin(p).Set(on)
	return nil
}
