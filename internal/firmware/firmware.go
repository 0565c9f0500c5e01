// Package firmware is an AMASP slave for microcontrollers. It only depends on
// packages TinyGo can compile and logs with println.
package firmware

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/xvzf/amasp/pkg/amasp"
	"github.com/xvzf/amasp/pkg/amasp/proto"
	"github.com/xvzf/amasp/pkg/eventbus"
	"github.com/xvzf/amasp/pkg/ledengine"
	"golang.org/x/sync/errgroup"
	"tinygo.org/x/drivers"
)

const (
	uartTopicIn = "uart:in"

	// DefaultInterruptCode is sent when the button is pressed.
	DefaultInterruptCode uint8 = 0x01

	// activityHold is how long the status LED shows activity after a request
	activityHold = 2 * time.Second
)

// Device answers requests for a single device id by echoing their payload
// and raises an interrupt whenever the button was pressed.
type Device struct {
	UART     drivers.UART
	DeviceID uint16
	Checksum proto.ChecksumKind
	// InterruptCode is the code of button interrupts, DefaultInterruptCode if zero
	InterruptCode uint8
	// OnRequest is called for every request addressed to this device
	OnRequest func()
	// StatusLED, if set, blinks slowly while idle and bursts on requests
	StatusLED ledengine.LED

	eb            eventbus.EventBus[proto.Packet]
	slave         *amasp.Slave
	led           ledengine.LedEngine
	buttonPressed atomic.Bool
	lastRequest   atomic.Int64
	active        atomic.Bool
}

// PressButton records a button press. It is safe to call from an interrupt handler.
func (d *Device) PressButton() {
	d.buttonPressed.Store(true)
}

func (d *Device) Run(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	d.eb = eventbus.New[proto.Packet]()
	d.slave = amasp.NewSlave(d.UART, d.Checksum)
	if d.InterruptCode == 0 {
		d.InterruptCode = DefaultInterruptCode
	}
	if d.StatusLED != nil {
		d.led = ledengine.NewLedEngine(ledengine.LedEngineOpts{LED: d.StatusLED})
		if err := d.led.SetPattern(ledengine.NewSlowBlinkPattern()); err != nil {
			return err
		}
	}

	// Subscribe before listening so the first request is not lost
	requests := d.eb.Subscribe(uartTopicIn, 4, amasp.MatchKind(proto.KindMRP))

	group := errgroup.Group{}

	println("Starting UART listener")
	group.Go(func() error {
		defer cancel()
		return d.listen(ctx)
	})

	println("Starting request handler")
	group.Go(func() error {
		defer cancel()
		defer requests.Unsubscribe()
		return d.serve(ctx, requests)
	})

	if d.led != nil {
		println("Starting status LED engine")
		group.Go(func() error {
			defer cancel()
			if err := d.led.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	println("Starting button handler")
	group.Go(func() error {
		defer cancel()
		return d.housekeeping(ctx)
	})

	return group.Wait()
}

// listen reads packets from the UART and publishes them on the event bus.
func (d *Device) listen(ctx context.Context) error {
	reader := proto.NewReader(proto.ReaderOpts{})
	for {
		pkt, err := reader.ReadPacket(ctx, d.UART)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			continue
		}
		d.eb.Publish(uartTopicIn, pkt)
	}
}

func (d *Device) serve(ctx context.Context, requests eventbus.Subscriber[proto.Packet]) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-requests.C():
			var err error
			if req.DeviceID != d.DeviceID {
				_, err = d.slave.SendError(ctx, req.DeviceID, amasp.ErrCodeUnknownDevice)
			} else {
				d.markActive()
				if d.OnRequest != nil {
					d.OnRequest()
				}
				_, err = d.slave.SendResponse(ctx, d.DeviceID, req.Payload, len(req.Payload))
			}
			if err != nil {
				println("failed to answer request:", err.Error())
			}
		}
	}
}

// markActive switches the status LED to the activity pattern.
func (d *Device) markActive() {
	d.lastRequest.Store(time.Now().UnixNano())
	if d.led != nil && !d.active.Swap(true) {
		_ = d.led.SetPattern(ledengine.NewBurstPattern())
	}
}

// housekeeping sends interrupts for button presses and returns the status
// LED to idle once requests stopped.
func (d *Device) housekeeping(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		time.Sleep(10 * time.Millisecond)
		if d.buttonPressed.Swap(false) {
			println("button pressed")
			if _, err := d.slave.SendInterruption(ctx, d.DeviceID, d.InterruptCode); err != nil {
				println("failed to send interrupt:", err.Error())
			}
		}
		if d.led != nil && d.active.Load() && time.Since(time.Unix(0, d.lastRequest.Load())) > activityHold {
			d.active.Store(false)
			_ = d.led.SetPattern(ledengine.NewSlowBlinkPattern())
		}
	}
}
