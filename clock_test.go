package core

import "testing"

// countingClockable ticks a fixed number of times, each time waiting the
// given number of cycles, then returns Halt.
type countingClockable struct {
	ticks    int
	cycles   int
	maxTicks int
}

func (c *countingClockable) Tick(clk *Clock) int {
	c.ticks++
	if c.ticks >= c.maxTicks {
		return Halt
	}
	return c.cycles
}

func TestClockTickDispatchesInRegistrationOrder(t *testing.T) {
	clk := NewClock("test", 1_000_000, 1.0)
	var order []int
	a := &orderClockable{id: 1, order: &order}
	b := &orderClockable{id: 2, order: &order}
	clk.Add(a)
	clk.Add(b)

	clk.Tick()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("tick order = %v, want [1 2]", order)
	}
}

type orderClockable struct {
	id    int
	order *[]int
}

func (o *orderClockable) Tick(clk *Clock) int {
	*o.order = append(*o.order, o.id)
	return 1
}

func TestClockAddIgnoresDuplicate(t *testing.T) {
	clk := NewClock("test", 1_000_000, 1.0)
	c := &countingClockable{cycles: 1, maxTicks: 100}
	clk.Add(c)
	clk.Add(c)

	if len(clk.clockables) != 1 {
		t.Fatalf("len(clockables) = %d, want 1 (duplicate Add must be a no-op)", len(clk.clockables))
	}
}

func TestClockDelRemoves(t *testing.T) {
	clk := NewClock("test", 1_000_000, 1.0)
	c := &countingClockable{cycles: 1, maxTicks: 100}
	clk.Add(c)
	clk.Del(c)

	if len(clk.clockables) != 0 {
		t.Fatalf("len(clockables) = %d, want 0 after Del", len(clk.clockables))
	}
}

func TestClockRunStopsOnHalt(t *testing.T) {
	clk := NewClock("test", 1_000_000, 1.0)
	clk.SetFullspeed(true)
	c := &countingClockable{cycles: 1, maxTicks: 5}
	clk.Add(c)

	clk.Run()

	if c.ticks != 5 {
		t.Fatalf("ticks = %d, want 5 (Run must stop as soon as Tick returns Halt)", c.ticks)
	}
}

func TestClockResetOnlyAppliesWhenPaused(t *testing.T) {
	clk := NewClock("test", 1_000_000, 1.0)
	c := &countingClockable{cycles: 3, maxTicks: 100}
	clk.Add(c)
	clk.clockables[0].remaining = 7

	clk.Reset() // not paused: no-op
	if clk.clockables[0].remaining != 7 {
		t.Fatalf("remaining = %d after unpaused Reset, want unchanged 7", clk.clockables[0].remaining)
	}

	clk.Pause(true)
	clk.Reset()
	if clk.clockables[0].remaining != 0 {
		t.Fatalf("remaining = %d after paused Reset, want 0", clk.clockables[0].remaining)
	}
}

func TestCyclesAndTimeRoundtrip(t *testing.T) {
	const freq = 1_000_000
	cycles := Cycles(0.5, freq)
	if cycles != 500_000 {
		t.Fatalf("Cycles(0.5s, 1MHz) = %d, want 500000", cycles)
	}
	secs := Time(cycles, freq)
	if secs != 0.5 {
		t.Fatalf("Time(500000, 1MHz) = %v, want 0.5", secs)
	}
}

func TestTimeZeroFrequency(t *testing.T) {
	if got := Time(1000, 0); got != 0 {
		t.Fatalf("Time with zero frequency = %v, want 0", got)
	}
}
