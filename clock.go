// clock.go - Cooperative scheduler pacing ticks against wall-clock time.
//
// The teacher (IntuitionEngine) paces several independently-clocked CPU
// families on separate goroutines with channel handshakes - the wrong
// shape for spec.md §5's single cooperative scheduler. This component is
// instead ported directly from original_source/src/core/clock.cpp/.hpp
// (sync_cycles windowed wall-clock pacing, _suspend/_stop atomics,
// cycles()/time() conversion helpers), expressed as an idiomatic Go loop
// instead of std::thread::sleep_for.
//
// License: GPLv3 or later

package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// syncTimeMicros mirrors clock.hpp's SYNC_TIME: the wall-clock window
// (microseconds) the scheduler tries to keep pace against.
const syncTimeMicros = 20000

// Clockable is any object the Clock can schedule.
//
// Tick is called at the cycle intervals the Clockable itself requests: the
// returned value is the number of cycles before the Clock will call Tick
// again. A return of 0 (Halt) terminates Clock.Run entirely.
type Clockable interface {
	Tick(clk *Clock) int
}

// Halt is the sentinel Tick return value that terminates the clock.
const Halt = 0

type clockablePair struct {
	clockable Clockable
	remaining int
}

// Clock is the cooperative, single-threaded scheduler that drives every
// registered Clockable.
type Clock struct {
	label string
	freq  uint64
	delay float64

	fullspeed bool
	ticks     uint64

	stop    atomic.Bool
	suspend atomic.Bool

	clockables []clockablePair

	syncCycles int
}

// NewClock builds a Clock at the given frequency (Hz) with the given
// speed delay (1.0 is real time).
func NewClock(label string, freq uint64, delay float64) *Clock {
	c := &Clock{label: label, freq: freq, delay: delay}
	c.syncCycles = int(Cycles(float64(syncTimeMicros)/1_000_000.0, freq))
	if c.syncCycles <= 0 {
		c.syncCycles = 1
	}
	return c
}

// Freq returns the clock frequency in Hz.
func (c *Clock) Freq() uint64 { return c.freq }

// SetFreq changes the clock frequency in Hz.
func (c *Clock) SetFreq(freq uint64) {
	c.freq = freq
	c.syncCycles = int(Cycles(float64(syncTimeMicros)/1_000_000.0, freq))
	if c.syncCycles <= 0 {
		c.syncCycles = 1
	}
}

// Delay returns the speed delay factor.
func (c *Clock) Delay() float64 { return c.delay }

// SetDelay changes the speed delay factor.
func (c *Clock) SetDelay(delay float64) { c.delay = delay }

// Fullspeed reports whether pacing is disabled.
func (c *Clock) Fullspeed() bool { return c.fullspeed }

// SetFullspeed enables or disables wall-clock pacing.
func (c *Clock) SetFullspeed(on bool) { c.fullspeed = on }

// Add registers clkb if it is not already present (pointer identity).
func (c *Clock) Add(clkb Clockable) {
	for _, p := range c.clockables {
		if p.clockable == clkb {
			return
		}
	}
	c.clockables = append(c.clockables, clockablePair{clockable: clkb})
}

// Del removes clkb if present; a no-op if absent.
func (c *Clock) Del(clkb Clockable) {
	for i, p := range c.clockables {
		if p.clockable == clkb {
			c.clockables = append(c.clockables[:i], c.clockables[i+1:]...)
			return
		}
	}
}

// Tick runs one scheduling round: every registered Clockable whose
// remaining-cycle count has reached zero is ticked, in registration order;
// its returned count replaces remaining, then remaining is decremented.
// Returns Halt if any Clockable returned Halt.
func (c *Clock) Tick() int {
	for i := range c.clockables {
		p := &c.clockables[i]
		if p.remaining == 0 {
			p.remaining = p.clockable.Tick(c)
			if p.remaining == Halt {
				return Halt
			}
		}
		p.remaining--
	}
	return 1
}

// Run executes the scheduling loop until Stop is called or a Clockable
// returns Halt. On each iteration: if suspended, sleep 200ms and recheck.
// Otherwise Tick(); if not Fullspeed, every syncCycles emulated cycles,
// measure elapsed wall time, sleep for the deficit (scaled by delay), and
// carry over/under-sleep as negative scheduling credit into the next
// window - mirrors clock.cpp's run() loop exactly.
func (c *Clock) Run() {
	schedCycle := 0
	start := time.Now()

	c.stop.Store(false)

	for !c.stop.Load() {
		for c.suspend.Load() && !c.stop.Load() {
			time.Sleep(200 * time.Millisecond)
			start = time.Now()
		}
		if c.stop.Load() {
			return
		}

		c.ticks++

		if c.Tick() == Halt {
			return
		}

		if c.fullspeed {
			continue
		}

		schedCycle++
		if schedCycle < c.syncCycles {
			continue
		}

		end := time.Now()
		runTime := end.Sub(start)
		waitTime := time.Duration(syncTimeMicros)*time.Microsecond - runTime
		if waitTime < 0 {
			logWarn("clock %s: slow host or late sync, deficit %s", c.label, -waitTime)
			start = end
			schedCycle = 0
			continue
		}

		time.Sleep(time.Duration(float64(waitTime) * c.delay))

		start = time.Now()
		sleepCycles := Cycles(start.Sub(end).Seconds()/c.delay, c.freq)
		waitCycles := Cycles(waitTime.Seconds(), c.freq)
		extraCycles := int64(sleepCycles) - int64(waitCycles)

		schedCycle = int(-extraCycles)
	}
}

// Reset zeroes every Clockable's remaining-cycle count. Must only be
// called while the clock is paused - it is a no-op otherwise.
func (c *Clock) Reset() {
	if !c.Paused() {
		return
	}
	for i := range c.clockables {
		c.clockables[i].remaining = 0
	}
}

// Stop instructs the clock to stop and return from Run; it does not wait
// for Run to actually return.
func (c *Clock) Stop() { c.stop.Store(true) }

// Pause suspends or resumes the clock and returns immediately.
func (c *Clock) Pause(susp bool) { c.suspend.Store(susp) }

// PauseWait sets the pause flag like Pause when it differs from susp. It
// does not wait for Run's loop to observe the change: Run sees the new
// value on its next iteration (or, when resuming, at its next 200ms poll).
func (c *Clock) PauseWait(susp bool) {
	if susp != c.Paused() {
		c.Pause(susp)
		for c.Paused() != susp {
			// Paused() reads the flag Pause() has just written, so this
			// loop exits without waiting.
			break
		}
	}
}

// ToggleSuspend flips the pause state.
func (c *Clock) ToggleSuspend() { c.suspend.Store(!c.suspend.Load()) }

// Paused reports whether the clock is currently suspended.
func (c *Clock) Paused() bool { return c.suspend.Load() }

// String returns a human-readable description of the clock.
func (c *Clock) String() string {
	return fmt.Sprintf("%s, freq %d Hz, delay %.1f", c.label, c.freq, c.delay)
}

// Time returns the emulated time, in microseconds, of every scheduling
// round the clock has run since it was created; the round count is not
// reset when Run starts again.
func (c *Clock) Time() uint64 {
	return uint64(Time(c.ticks, c.freq) * 1_000_000)
}

// Cycles returns the number of clock cycles corresponding to secs seconds
// at the given frequency.
func Cycles(secs float64, freq uint64) uint64 {
	return uint64(secs * float64(freq))
}

// Time returns the time interval (seconds) corresponding to cycles clock
// cycles at the given frequency.
func Time(cycles uint64, freq uint64) float64 {
	if freq == 0 {
		return 0
	}
	return float64(cycles) / float64(freq)
}
