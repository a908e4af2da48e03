package mlfq

import (
	"testing"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

func newTestManager(tbl *table, plat *fakePlatform, sink EventSink, observer Observer) *manager {
	return &manager{
		plat:     plat,
		tbl:      tbl,
		sink:     sink,
		cfg:      DefaultConfig(),
		observer: observer,
	}
}

// Property P1: a task whose burst has reached quantum is demoted exactly
// one band by the next manager iteration, unless already LOW.
func TestManagerDemoteOneBand(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()
	m := newTestManager(tbl, plat, NewChannelSink(4), nil)

	idx, _ := tbl.register(platform.TaskHandle(1), 0)
	m.demote(idx)

	rec, _ := tbl.snapshot(idx)
	if rec.Level != Medium {
		t.Fatalf("expected Medium after one demotion, got %v", rec.Level)
	}

	m.demote(idx)
	rec, _ = tbl.snapshot(idx)
	if rec.Level != Low {
		t.Fatalf("expected Low after two demotions, got %v", rec.Level)
	}
}

// Property P3: demote at LOW is a no-op on Level but still resets burst.
func TestManagerDemoteFloorIsIdempotent(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()
	m := newTestManager(tbl, plat, NewChannelSink(4), nil)

	idx, _ := tbl.register(platform.TaskHandle(1), 0)
	tbl.setLevel(idx, Low)
	tbl.chargeTick(platform.TaskHandle(1))
	tbl.chargeTick(platform.TaskHandle(1))

	m.demote(idx)

	rec, _ := tbl.snapshot(idx)
	if rec.Level != Low {
		t.Fatalf("expected to remain Low, got %v", rec.Level)
	}
	if rec.Burst != 0 {
		t.Fatalf("expected burst reset to 0, got %d", rec.Burst)
	}
}

func TestManagerDemoteStaleEventIsNoop(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()
	m := newTestManager(tbl, plat, NewChannelSink(4), nil)

	m.demote(0) // empty slot: no panic, no effect
	if _, ok := tbl.snapshot(0); ok {
		t.Fatal("expected slot to remain empty")
	}
}

// Scenario 5 / promotion semantics: MEDIUM -> HIGH on first Promote, no-op
// on a second.
func TestManagerPromote(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()
	m := newTestManager(tbl, plat, NewChannelSink(4), nil)

	idx, _ := tbl.register(platform.TaskHandle(1), 0)
	tbl.setLevel(idx, Medium)

	m.promote(platform.TaskHandle(1))
	rec, _ := tbl.snapshot(idx)
	if rec.Level != High || rec.Quantum != ladder().quantum(High) {
		t.Fatalf("expected HIGH with quantum %d, got %+v", ladder().quantum(High), rec)
	}

	m.promote(platform.TaskHandle(1)) // already HIGH: no-op
	rec2, _ := tbl.snapshot(idx)
	if rec2.Level != High {
		t.Fatalf("expected to remain HIGH, got %v", rec2.Level)
	}
}

func TestManagerPromoteStaleHandleIsNoop(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()
	m := newTestManager(tbl, plat, NewChannelSink(4), nil)

	m.promote(platform.TaskHandle(404)) // never registered
}

// Property P2 / scenario 4: after global-boost, every occupied slot is
// HIGH with burst 0 (invariant I5).
func TestManagerGlobalBoost(t *testing.T) {
	tbl := newTable(4, ladder())
	plat := newFakePlatform()
	m := newTestManager(tbl, plat, NewChannelSink(4), nil)

	idx1, _ := tbl.register(platform.TaskHandle(1), 0)
	idx2, _ := tbl.register(platform.TaskHandle(2), 0)
	tbl.setLevel(idx1, Low)
	tbl.setLevel(idx2, Medium)
	tbl.chargeTick(platform.TaskHandle(1))
	tbl.chargeTick(platform.TaskHandle(2))

	m.globalBoost()

	for _, idx := range []int{idx1, idx2} {
		rec, _ := tbl.snapshot(idx)
		if rec.Level != High || rec.Burst != 0 {
			t.Fatalf("slot %d: expected HIGH/0 after boost, got %+v", idx, rec)
		}
	}
}

// Property P4: after any setLevel, the host priority equals
// TopPriority - ordinal(level).
func TestManagerSetLevelUpdatesHostPriority(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()
	m := newTestManager(tbl, plat, NewChannelSink(4), nil)

	idx, _ := tbl.register(platform.TaskHandle(1), 0)
	m.setLevel(idx, Medium, "DEMOTE")

	got := plat.priority(platform.TaskHandle(1))
	want := m.cfg.HostPriority(Medium)
	if got != want {
		t.Fatalf("expected host priority %d, got %d", want, got)
	}
}

func TestManagerSetLevelNotifiesObserver(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()

	var got Transition
	observer := ObserverFunc(func(tr Transition, _ Record) { got = tr })
	m := newTestManager(tbl, plat, NewChannelSink(4), observer)

	idx, _ := tbl.register(platform.TaskHandle(1), 0)
	m.setLevel(idx, Low, "DEMOTE")

	if got.Task != platform.TaskHandle(1) || got.Old != High || got.New != Low {
		t.Fatalf("unexpected transition observed: %+v", got)
	}
}

func TestManagerDrainDemotionsProcessesAllPendingEvents(t *testing.T) {
	tbl := newTable(4, ladder())
	plat := newFakePlatform()
	sink := NewChannelSink(8)
	m := newTestManager(tbl, plat, sink, nil)

	idx1, _ := tbl.register(platform.TaskHandle(1), 0)
	idx2, _ := tbl.register(platform.TaskHandle(2), 0)
	sink.Publish(platform.TaskHandle(1))
	sink.Publish(platform.TaskHandle(2))
	sink.Publish(platform.TaskHandle(404)) // stale handle, must be ignored safely

	m.drainDemotions()

	rec1, _ := tbl.snapshot(idx1)
	rec2, _ := tbl.snapshot(idx2)
	if rec1.Level != Medium || rec2.Level != Medium {
		t.Fatalf("expected both demoted once: %+v %+v", rec1, rec2)
	}
}

// Multi-step version of scenario 2: a single hog demotes HIGH -> MEDIUM
// -> LOW -> LOW as its burst repeatedly reaches the ladder's quanta.
func TestScenarioSingleHogDemotesToFloor(t *testing.T) {
	tbl := newTable(2, ladder())
	plat := newFakePlatform()
	sink := NewChannelSink(4)
	mgrHandle := platform.TaskHandle(99)
	prof := newTestProfiler(tbl, plat, sink, mgrHandle)
	m := newTestManager(tbl, plat, sink, nil)

	tbl.register(platform.TaskHandle(1), 0)
	plat.setCurrent(platform.TaskHandle(1))

	levels := []Level{}
	record := func() {
		rec, _ := tbl.snapshot(0)
		levels = append(levels, rec.Level)
	}
	record() // HIGH, burst 0

	driveToExpiry := func() {
		for {
			prof.OnTick()
			if h, ok := sink.Consume(0); ok {
				idx := tbl.find(h)
				m.demote(idx)
				return
			}
		}
	}

	driveToExpiry()
	record() // MEDIUM
	driveToExpiry()
	record() // LOW
	driveToExpiry()
	record() // LOW (floor)

	want := []Level{High, Medium, Low, Low}
	if len(levels) != len(want) {
		t.Fatalf("expected %d observations, got %d: %v", len(want), len(levels), levels)
	}
	for i, l := range want {
		if levels[i] != l {
			t.Fatalf("observation %d: expected %v, got %v (full: %v)", i, l, levels[i], levels)
		}
	}
}
