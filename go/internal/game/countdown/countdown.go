// Package countdown implements the per-round ticking clock.
package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const tickInterval = time.Second

// ExpireFunc is called once when an armed countdown reaches zero. generation
// identifies the Reset call that armed it.
type ExpireFunc func(generation uint64)

// TickFunc reports the remaining whole seconds after every tick.
type TickFunc func(generation uint64, remaining int)

// Countdown decrements once per second and fires its expiry callback exactly
// once at zero. Reset cancels any in-flight schedule before arming a new one.
type Countdown struct {
	clock    clockwork.Clock
	onExpire ExpireFunc
	onTick   TickFunc

	mu         sync.Mutex
	generation uint64
	remaining  int
	timer      clockwork.Timer
	stop       chan struct{}
}

// New creates a stopped countdown.
func New(clock clockwork.Clock, onExpire ExpireFunc) *Countdown {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Countdown{
		clock:    clock,
		onExpire: onExpire,
	}
}

// OnTick registers a callback for every elapsed second. Must be called before Reset.
func (c *Countdown) OnTick(fn TickFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTick = fn
}

// Reset arms the countdown for the given number of seconds and returns the
// new generation. Callbacks of earlier generations can no longer fire.
func (c *Countdown) Reset(seconds int) uint64 {
	c.mu.Lock()
	c.cancelLocked()
	c.generation++
	gen := c.generation
	c.remaining = seconds
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	log.Debug().Uint64("generation", gen).Int("seconds", seconds).Msg("countdown armed")

	if seconds <= 0 {
		go c.expire(gen)
		return gen
	}

	go c.run(gen, stop)
	return gen
}

// Stop cancels the countdown without firing the expiry callback.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.generation++
}

// Remaining returns the whole seconds left in the current generation.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Generation returns the generation of the last Reset or Stop.
func (c *Countdown) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *Countdown) cancelLocked() {
	if c.timer != nil {
		stopAndDrainTimer(c.timer)
		c.timer = nil
	}
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Countdown) run(gen uint64, stop <-chan struct{}) {
	for {
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		timer := c.clock.NewTimer(tickInterval)
		c.timer = timer
		c.mu.Unlock()

		select {
		case <-stop:
			return
		case <-timer.Chan():
		}

		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.remaining--
		remaining := c.remaining
		onTick := c.onTick
		c.mu.Unlock()

		if onTick != nil {
			onTick(gen, remaining)
		}
		if remaining <= 0 {
			c.expire(gen)
			return
		}
	}
}

func (c *Countdown) expire(gen uint64) {
	c.mu.Lock()
	current := gen == c.generation
	if current {
		c.remaining = 0
		c.stop = nil
	}
	c.mu.Unlock()

	if !current {
		return
	}
	log.Debug().Uint64("generation", gen).Msg("countdown expired")
	if c.onExpire != nil {
		c.onExpire(gen)
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
