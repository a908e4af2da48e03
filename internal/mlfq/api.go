package mlfq

import (
	"context"
	"sync/atomic"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// Scheduler is the public control API of spec §4.E: registration, the
// explicit promotion hook, a read-only stats accessor, and the manager
// task bootstrap.
type Scheduler struct {
	plat platform.Platform
	cfg  Config
	tbl  *table
	sink EventSink
	prof *profiler
	mgr  *manager

	managerHandle atomic.Uint64 // platform.TaskHandle, 0 = NoTask
	started       atomic.Bool
}

// New implements spec §4.E's init(): zero the table, create the event
// channel, clear the scheduler-manager handle, and wire the tick hook.
// Returns an error if cfg is invalid — per spec §7, an init failure must
// prevent the manager task from ever starting.
func New(plat platform.Platform, cfg Config, observer Observer) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		plat: plat,
		cfg:  cfg,
		tbl:  newTable(cfg.Capacity, cfg.Ladder),
		sink: NewChannelSink(cfg.EventQueueLen),
	}

	s.prof = &profiler{
		plat: plat,
		tbl:  s.tbl,
		sink: s.sink,
		mgr:  func() platform.TaskHandle { return platform.TaskHandle(s.managerHandle.Load()) },
	}
	s.mgr = &manager{
		plat:     plat,
		tbl:      s.tbl,
		sink:     s.sink,
		cfg:      cfg,
		observer: observer,
	}

	plat.RegisterTickHook(s.prof.OnTick)
	return s, nil
}

// Register implements spec §4.A's register(): allocate the first empty
// slot, default to HIGH, and set the task's host priority. Rejects
// platform.NoTask, duplicates, and a full table.
func (s *Scheduler) Register(h platform.TaskHandle) (Outcome, error) {
	_, outcome := s.tbl.register(h, s.plat.Ticks())
	if outcome != Registered {
		return outcome, nil
	}
	if err := s.plat.SetPriority(h, s.cfg.HostPriority(High)); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// Promote implements spec §4.E's externally-driven interactive-promotion
// hook. A stale or already-HIGH handle is a no-op.
func (s *Scheduler) Promote(h platform.TaskHandle) {
	s.mgr.promote(h)
}

// Stats implements spec §4.E's read-only accessor for index in
// [0, Capacity). Returns ok=false once index names an empty or
// out-of-range slot, which the caller uses to terminate iteration.
func (s *Scheduler) Stats(index int) (Record, bool) {
	return s.tbl.snapshot(index)
}

// Capacity returns the task table's fixed capacity.
func (s *Scheduler) Capacity() int {
	return s.tbl.capacity()
}

// OccupancyByLevel returns the number of registered tasks currently at
// each level. Intended for observers (metrics, fleet publishing) that
// need a periodic snapshot rather than a per-transition callback.
func (s *Scheduler) OccupancyByLevel() map[Level]int {
	counts := map[Level]int{High: 0, Medium: 0, Low: 0}
	for _, idx := range s.tbl.occupiedIndexes() {
		if level, ok := s.tbl.level(idx); ok {
			counts[level]++
		}
	}
	return counts
}

// StartManager implements spec §4.E: create and run the scheduler
// manager task at host priority TopPriority+1, and register its handle
// with the profiler so the tick ISR can notify it directly.
func (s *Scheduler) StartManager(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	h, err := s.plat.CreateTask("mlfq-manager", s.cfg.ManagerPriority(), func(self platform.TaskHandle, stop <-chan struct{}) {
		s.mgr.self = self
		s.mgr.run(ctx, stop)
	})
	if err != nil {
		s.started.Store(false)
		return err
	}

	s.managerHandle.Store(uint64(h))
	return nil
}
