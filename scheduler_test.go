package dreamcast

import "testing"

// TestSchedulerOrdering exercises the scenario from spec.md §8: at clock
// 0, enqueue timers A@50ns and B@30ns, then tick(100ns). B must fire
// before A, and a 40ns timer enqueued from inside B's callback must also
// fire within the same tick while a 200ns one must not.
func TestSchedulerOrdering(t *testing.T) {
	s := NewScheduler()

	var order []string
	var innerFired, tooLateFired bool

	s.StartTimer(func(any) { order = append(order, "A") }, nil, 50)
	s.StartTimer(func(any) {
		order = append(order, "B")
		// The clock is held at the tick's start value (0) throughout
		// fireDue, so ns_from_now here is also an absolute deadline
		// measured from tick start: 40 and 200 respectively.
		s.StartTimer(func(any) { innerFired = true }, nil, 40)
		s.StartTimer(func(any) { tooLateFired = true }, nil, 200)
	}, nil, 30)

	s.Tick(100)

	if len(order) != 2 || order[0] != "B" || order[1] != "A" {
		t.Fatalf("expected [B A], got %v", order)
	}
	if !innerFired {
		t.Fatalf("timer enqueued at deadline 40ns should have fired within the same tick")
	}
	if tooLateFired {
		t.Fatalf("timer enqueued at deadline 200ns should not have fired within a 100ns tick")
	}
}

type fakeDevice struct {
	name string
	hz   uint64
	ran  uint64
}

func (d *fakeDevice) Name() string      { return d.name }
func (d *fakeDevice) ClockHz() uint64   { return d.hz }
func (d *fakeDevice) Run(cycles uint64) uint64 {
	d.ran += cycles
	return cycles
}

func TestSchedulerDeviceOrderAndCycleShare(t *testing.T) {
	s := NewScheduler()
	var ranOrder []string
	a := &fakeDevice{name: "a", hz: 200_000_000}
	b := &fakeDevice{name: "b", hz: 1_000_000}
	s.Register(&orderTrackingDevice{fakeDevice: a, order: &ranOrder})
	s.Register(&orderTrackingDevice{fakeDevice: b, order: &ranOrder})

	s.Tick(1_000_000_000) // 1 second

	if ranOrder[0] != "a" || ranOrder[1] != "b" {
		t.Fatalf("devices must run in registration order, got %v", ranOrder)
	}
	if a.ran != 200_000_000 {
		t.Fatalf("device a should consume a full second of cycles at its clock rate, got %d", a.ran)
	}
	if b.ran != 1_000_000 {
		t.Fatalf("device b should consume a full second of cycles at its clock rate, got %d", b.ran)
	}
	if s.Clock() != 1_000_000_000 {
		t.Fatalf("clock should advance by the full delta regardless of device consumption, got %d", s.Clock())
	}
}

type orderTrackingDevice struct {
	*fakeDevice
	order *[]string
}

func (d *orderTrackingDevice) Run(cycles uint64) uint64 {
	*d.order = append(*d.order, d.name)
	return d.fakeDevice.Run(cycles)
}
