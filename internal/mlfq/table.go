package mlfq

import (
	"sync"
	"sync/atomic"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// slot holds one task record. identity, burst, and quantum are atomic
// words so the tick profiler can read and write them without taking a
// lock, per spec §3/§9: "ISR-visible fields are stored as atomic words."
// level and arrival are only ever touched under mu (task context only;
// the profiler never reads them).
type slot struct {
	identity atomic.Uint64
	burst    atomic.Uint32
	quantum  atomic.Uint32
	level    Level
	arrival  uint64
}

// table is the fixed-capacity task registry of spec §3/§4.A. The
// scheduler manager is the sole writer of level and quantum; the tick
// profiler is the sole writer of burst.
type table struct {
	mu     sync.Mutex
	slots  []slot
	ladder Ladder
}

func newTable(capacity int, ladder Ladder) *table {
	return &table{
		slots:  make([]slot, capacity),
		ladder: ladder,
	}
}

// register occupies the first empty slot for h, per spec §4.A.
func (t *table) register(h platform.TaskHandle, arrival uint64) (int, Outcome) {
	if h == platform.NoTask {
		return -1, TableFull
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	empty := -1
	for i := range t.slots {
		id := t.slots[i].identity.Load()
		if platform.TaskHandle(id) == h {
			return i, Duplicate
		}
		if empty == -1 && id == 0 {
			empty = i
		}
	}
	if empty == -1 {
		return -1, TableFull
	}

	s := &t.slots[empty]
	s.level = High
	s.arrival = arrival
	s.burst.Store(0)
	s.quantum.Store(t.ladder.quantum(High))
	s.identity.Store(uint64(h))
	return empty, Registered
}

// find returns the index of h's slot, or -1 if absent. Task-context use
// only; takes the structural lock.
func (t *table) find(h platform.TaskHandle) int {
	if h == platform.NoTask {
		return -1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if platform.TaskHandle(t.slots[i].identity.Load()) == h {
			return i
		}
	}
	return -1
}

// snapshot returns a copy of the record at index, or ok=false if the slot
// is empty or out of range.
func (t *table) snapshot(index int) (Record, bool) {
	if index < 0 || index >= len(t.slots) {
		return Record{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.slots[index]
	id := platform.TaskHandle(s.identity.Load())
	if id == platform.NoTask {
		return Record{}, false
	}
	return Record{
		Task:    id,
		Level:   s.level,
		Arrival: s.arrival,
		Burst:   s.burst.Load(),
		Quantum: s.quantum.Load(),
	}, true
}

// capacity returns the table's fixed size.
func (t *table) capacity() int {
	return len(t.slots)
}

// setLevel is the single mutator of MLFQ level (spec §4.D "set-level").
// Called from manager task context only; the caller is expected to hold
// a platform critical section around the call so the transition is
// observed atomically from the profiler's perspective.
func (t *table) setLevel(index int, newLevel Level) (platform.TaskHandle, Level, bool) {
	if index < 0 || index >= len(t.slots) {
		return platform.NoTask, 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.slots[index]
	id := platform.TaskHandle(s.identity.Load())
	if id == platform.NoTask {
		return platform.NoTask, 0, false
	}
	old := s.level
	s.level = newLevel
	s.quantum.Store(t.ladder.quantum(newLevel))
	s.burst.Store(0)
	return id, old, true
}

// level returns the current level of index, or false if empty/out of
// range. Task-context use only.
func (t *table) level(index int) (Level, bool) {
	if index < 0 || index >= len(t.slots) {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s := &t.slots[index]
	if platform.TaskHandle(s.identity.Load()) == platform.NoTask {
		return 0, false
	}
	return s.level, true
}

// occupiedIndexes returns the indexes of all occupied slots. Used by
// global-boost, which must transition every registered task.
func (t *table) occupiedIndexes() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.slots))
	for i := range t.slots {
		if platform.TaskHandle(t.slots[i].identity.Load()) != platform.NoTask {
			out = append(out, i)
		}
	}
	return out
}

// chargeTick is the tick-profiler's lock-free hot path (spec §4.B steps
// 2-3): find the slot for h by identity and add one to its burst. It
// takes no lock — it is only ever called from ISR-equivalent context and
// relies on atomic loads/stores of identity and burst being indivisible.
//
// Returns the slot index, the post-increment burst, the configured
// quantum, and whether h was found at all.
func (t *table) chargeTick(h platform.TaskHandle) (index int, burst, quantum uint32, found bool) {
	for i := range t.slots {
		s := &t.slots[i]
		if platform.TaskHandle(s.identity.Load()) != h {
			continue
		}
		burst = s.burst.Add(1)
		quantum = s.quantum.Load()
		return i, burst, quantum, true
	}
	return -1, 0, 0, false
}
