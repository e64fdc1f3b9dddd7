// Package timer implements the exam countdown.
//
// A Countdown decrements once per second on its clock and calls its expiry
// callback exactly once, when the remaining time reaches zero. The remaining
// value may be overwritten while running (for example when a saved attempt is
// restored); an override never causes a second expiry.
package timer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const tickInterval = time.Second

type Countdown struct {
	clock    clockwork.Clock
	onExpire func()

	mu        sync.Mutex
	remaining int
	fired     bool
	stop      chan struct{}
}

func New(clock clockwork.Clock, remaining int, onExpire func()) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Countdown{
		clock:     clock,
		onExpire:  onExpire,
		remaining: clamp(remaining),
	}
}

// Start begins ticking. Any ticker from a previous Start is stopped first so
// there is never more than one.
func (c *Countdown) Start() {
	c.mu.Lock()
	c.stopLocked()
	if c.fired {
		c.mu.Unlock()
		return
	}
	ticker := c.clock.NewTicker(tickInterval)
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	go c.run(ticker, stop)
}

func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Set overrides the remaining time. It is ignored once the countdown has
// expired and reports whether the value was applied.
func (c *Countdown) Set(remaining int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fired {
		return false
	}
	c.remaining = clamp(remaining)
	return true
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired
}

func (c *Countdown) String() string {
	return Format(c.Remaining())
}

func (c *Countdown) run(ticker clockwork.Ticker, stop <-chan struct{}) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			select {
			case <-stop:
				return
			default:
			}
			if c.tick() {
				return
			}
		}
	}
}

// tick advances the countdown by one second and reports whether it expired
// on this tick.
func (c *Countdown) tick() bool {
	c.mu.Lock()
	if c.fired {
		c.mu.Unlock()
		return true
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining > 0 {
		c.mu.Unlock()
		return false
	}
	c.fired = true
	c.stop = nil
	onExpire := c.onExpire
	c.mu.Unlock()

	if onExpire != nil {
		onExpire()
	}
	return true
}

func (c *Countdown) stopLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Format renders seconds as H:MM:SS.
func Format(seconds int) string {
	seconds = clamp(seconds)
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds%60)
}

func clamp(seconds int) int {
	if seconds < 0 {
		return 0
	}
	return seconds
}
