package ledengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xvzf/amasp/pkg/util"
)

// LED is a single color indicator, e.g. the status LED of a board.
type LED interface {
	Set(on bool) error
}

// LedEngine plays blink patterns on a LED
type LedEngine interface {
	// SetPattern sets the blink pattern
	SetPattern(pattern BlinkPattern) error
	// Run runs the LED Engine
	Run(ctx context.Context) error
}

// ledEngineImpl is the implementation of the LedEngine interface
type ledEngineImpl struct {
	led   LED
	clock util.Clock

	mu      sync.Mutex
	restart chan struct{}
	pattern BlinkPattern
}

type BlinkPattern struct {
	// BaseOn is the state shown when the pattern starts (-> before the first blink)
	BaseOn bool
	// ActiveOn is the state shown when the pattern is active (-> during the blink)
	ActiveOn bool
	// Delays is a list of delays between changes -> (base) -> 0.5s(active) -> 1s(base) -> 0.5s (active) -> 1s (base)
	Delays []time.Duration
}

// NewStaticPattern creates a new static pattern (no changes)
func NewStaticPattern(on bool) BlinkPattern {
	return BlinkPattern{
		BaseOn:   on,
		ActiveOn: on,
		Delays:   []time.Duration{time.Hour}, // 1h delay, we don't care as there are no changes involved
	}
}

// NewBurstPattern creates a new burst pattern (~1s cycle duration with 3x 100ms bursts)
func NewBurstPattern() BlinkPattern {
	return BlinkPattern{
		BaseOn:   false,
		ActiveOn: true,
		Delays: []time.Duration{
			500 * time.Millisecond, // 500ms off
			100 * time.Millisecond, // 100ms on
			100 * time.Millisecond, // 100ms off
			100 * time.Millisecond, // 100ms on
			100 * time.Millisecond, // 100ms off
			100 * time.Millisecond, // 100ms on
		},
	}
}

// NewSlowBlinkPattern creates a new slow blink pattern (~2s cycle duration with 1s off and 1s on)
func NewSlowBlinkPattern() BlinkPattern {
	return BlinkPattern{
		BaseOn:   false,
		ActiveOn: true,
		Delays: []time.Duration{
			time.Second, // 1s off
			time.Second, // 1s on
		},
	}
}

// LedEngineOpts are the options for the LedEngine
type LedEngineOpts struct {
	// LED is the LED to control
	LED LED
	// Clock is the clock used for timing
	Clock util.Clock
}

func NewLedEngine(opts LedEngineOpts) *ledEngineImpl {
	clock := opts.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	return &ledEngineImpl{
		led:     opts.LED,
		restart: make(chan struct{}),     // restart channel controls cancelation of any pattern
		pattern: NewStaticPattern(false), // Turn off LED by default
		clock:   clock,
	}
}

func (b *ledEngineImpl) SetPattern(pattern BlinkPattern) error {
	if len(pattern.Delays) == 0 {
		return errors.New("pattern must have at least one delay")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.pattern = pattern
	close(b.restart)
	b.restart = make(chan struct{})

	return nil
}

func (b *ledEngineImpl) current() (BlinkPattern, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pattern, b.restart
}

// Run runs the blink engine
func (b *ledEngineImpl) Run(ctx context.Context) error {
	// Iterate forever unless context is done
	for {
		pattern, restart := b.current()

		// Set the base state
		if err := b.led.Set(pattern.BaseOn); err != nil {
			return err
		}
		//  Iterate through pattern delays
	PatternLoop:
		for idx, delay := range pattern.Delays {
			select {
			// Whenever the pattern is restarted, break the loop and start over
			case <-restart:
				break PatternLoop
			// Whenever the context is done, return
			case <-ctx.Done():
				return ctx.Err()
			// Whenever the delay is over, toggle the LED
			case <-b.clock.After(delay):
				on := pattern.BaseOn
				if idx%2 == 0 {
					on = pattern.ActiveOn
				}
				if err := b.led.Set(on); err != nil {
					return err
				}
			}
		}
	}
}
