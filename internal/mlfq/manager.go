package mlfq

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// decisionLog is a structured record of one manager action, logged the
// way the teacher lineage logs scheduling decisions: a single line of
// JSON via the standard log package.
type decisionLog struct {
	Component string              `json:"component"`
	Decision  string              `json:"decision"` // DEMOTE, PROMOTE, BOOST, STALE_EVENT
	Task      platform.TaskHandle `json:"task,omitempty"`
	OldLevel  string              `json:"old_level,omitempty"`
	NewLevel  string              `json:"new_level,omitempty"`
}

func logDecision(d decisionLog) {
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	log.Println(string(b))
}

// manager is the scheduler manager loop of spec §4.D: a dedicated task at
// host priority TopPriority+1 that drains the event channel, demotes
// offenders, performs the periodic global boost, and is the single
// writer of level transitions (via table.setLevel).
type manager struct {
	plat     platform.Platform
	tbl      *table
	sink     EventSink
	cfg      Config
	observer Observer
	self     platform.TaskHandle

	lastBoost time.Time
}

// run is the manager's loop body, invoked as the body of the manager
// host task. Per iteration: drain demotions, perform a periodic boost if
// due, then sleep bounded by cfg.ManagerIdleInterval (or until woken by a
// direct notification), so the boost deadline is respected within one
// sleep interval.
func (m *manager) run(ctx context.Context, stop <-chan struct{}) {
	m.lastBoost = time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		m.drainDemotions()

		if time.Since(m.lastBoost) >= m.cfg.BoostPeriod {
			m.globalBoost()
			m.lastBoost = time.Now()
		}

		m.sleep(ctx, stop)
	}
}

func (m *manager) sleep(ctx context.Context, stop <-chan struct{}) {
	woken := make(chan bool, 1)
	go func() {
		woken <- m.plat.WaitNotify(m.self, m.cfg.ManagerIdleInterval)
	}()

	select {
	case <-woken:
	case <-ctx.Done():
	case <-stop:
	}
}

// drainDemotions repeatedly dequeues expired-quantum events until the
// event channel is empty, demoting the offending task each time.
func (m *manager) drainDemotions() {
	for {
		h, ok := m.sink.Consume(0)
		if !ok {
			return
		}
		idx := m.tbl.find(h)
		if idx < 0 {
			logDecision(decisionLog{Component: "scheduler_manager", Decision: "STALE_EVENT", Task: h})
			continue
		}
		m.demote(idx)
	}
}

// demote implements spec §4.D: move one band lower, or stay at LOW
// (floor). Idempotent at the floor so repeated events for a persistent
// hog are harmless (property P3).
func (m *manager) demote(index int) {
	level, ok := m.tbl.level(index)
	if !ok {
		return
	}
	next := level
	if level < Low {
		next = level + 1
	}
	m.setLevel(index, next, "DEMOTE")
}

// promote implements spec §4.D's externally-driven promotion hook: move
// one band higher, or no-op at HIGH.
func (m *manager) promote(h platform.TaskHandle) {
	idx := m.tbl.find(h)
	if idx < 0 {
		logDecision(decisionLog{Component: "scheduler_manager", Decision: "STALE_EVENT", Task: h})
		return
	}
	level, ok := m.tbl.level(idx)
	if !ok || level <= High {
		return
	}
	m.setLevel(idx, level-1, "PROMOTE")
}

// globalBoost implements spec §4.D: unconditionally reset every occupied
// slot to HIGH. This guarantees invariant I5.
func (m *manager) globalBoost() {
	for _, idx := range m.tbl.occupiedIndexes() {
		m.setLevel(idx, High, "BOOST")
	}
}

// setLevel is spec §4.D's single mutator of MLFQ level. The transition
// runs inside a platform critical section so it is observed atomically
// from the tick profiler's perspective (never a torn mix of old quantum
// with zeroed burst). Step 5 of the spec ("emit a visual indicator") is
// implemented as an Observer notification.
func (m *manager) setLevel(index int, newLevel Level, decision string) {
	before, _ := m.tbl.snapshot(index)

	exit := m.plat.CriticalSection()
	id, old, ok := m.tbl.setLevel(index, newLevel)
	if ok {
		m.plat.SetPriority(id, m.cfg.HostPriority(newLevel))
	}
	exit()

	if !ok {
		return
	}

	logDecision(decisionLog{
		Component: "scheduler_manager",
		Decision:  decision,
		Task:      id,
		OldLevel:  old.String(),
		NewLevel:  newLevel.String(),
	})

	if m.observer != nil {
		rec, _ := m.tbl.snapshot(index)
		m.observer.OnTransition(Transition{
			Task:       id,
			Old:        old,
			New:        newLevel,
			PriorBurst: before.Burst,
			At:         time.Now(),
		}, rec)
	}
}
