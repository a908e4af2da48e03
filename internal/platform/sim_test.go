package platform

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSimTicksAdvance(t *testing.T) {
	sim := NewSim(time.Millisecond)
	defer sim.Close()

	time.Sleep(20 * time.Millisecond)
	if sim.Ticks() == 0 {
		t.Fatal("expected ticks to advance")
	}
}

func TestSimCurrentTaskIsHighestPriorityReady(t *testing.T) {
	sim := NewSim(time.Millisecond)
	defer sim.Close()

	var loTicks, hiTicks atomic.Int64
	lo, _ := sim.CreateTask("lo", 1, func(h TaskHandle, stop <-chan struct{}) {
		for sim.Step(h, stop) {
			loTicks.Add(1)
		}
	})
	hi, _ := sim.CreateTask("hi", 5, func(h TaskHandle, stop <-chan struct{}) {
		for sim.Step(h, stop) {
			hiTicks.Add(1)
		}
	})

	time.Sleep(30 * time.Millisecond)
	sim.Stop(lo)
	sim.Stop(hi)

	if hiTicks.Load() == 0 {
		t.Fatal("expected the higher-priority task to receive ticks")
	}
	_ = lo
}

func TestSimCriticalSectionBlocksTicks(t *testing.T) {
	sim := NewSim(time.Millisecond)
	defer sim.Close()

	exit := sim.CriticalSection()
	before := sim.Ticks()
	time.Sleep(10 * time.Millisecond)
	during := sim.Ticks()
	exit()

	if during != before {
		t.Fatalf("expected ticks frozen during critical section: before=%d during=%d", before, during)
	}
}

func TestSimNotifyWaitNotify(t *testing.T) {
	sim := NewSim(time.Millisecond)
	defer sim.Close()

	h, _ := sim.CreateTask("t", 1, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		sim.Notify(h)
	}()

	if !sim.WaitNotify(h, 100*time.Millisecond) {
		t.Fatal("expected WaitNotify to observe the notification")
	}
}

func TestSimWaitNotifyTimesOut(t *testing.T) {
	sim := NewSim(time.Millisecond)
	defer sim.Close()

	h, _ := sim.CreateTask("t", 1, nil)
	if sim.WaitNotify(h, 5*time.Millisecond) {
		t.Fatal("expected WaitNotify to time out with no notification")
	}
}

func TestSimMillisToTicks(t *testing.T) {
	sim := NewSim(10 * time.Millisecond)
	defer sim.Close()

	if got := sim.MillisToTicks(100); got != 10 {
		t.Fatalf("expected 10 ticks for 100ms at 10ms/tick, got %d", got)
	}
}
