package platform

import (
	"fmt"
	"sync"
	"time"
)

// Sim is a goroutine-driven stand-in for a preemptive fixed-priority
// kernel. It is not a scheduler in its own right — it exists so the MLFQ
// core can be exercised end to end in pure Go: it owns a tick source, a
// task registry with host priorities, and the ISR-safe notification /
// critical-section primitives the core depends on.
//
// Task bodies cooperate with Sim via Step and Block: Step blocks the
// calling goroutine until Sim's dispatcher grants it the current tick
// (i.e. it is the highest-priority ready task), simulating one tick of
// CPU burst; Block marks the task not-ready for a duration, simulating an
// I/O wait or voluntary yield.
type Sim struct {
	tickInterval time.Duration

	// preemptMu stands in for "disable preemption": the dispatcher loop
	// holds it while picking and charging the current tick, so a
	// critical section taken by the policy core cannot straddle a tick.
	preemptMu sync.Mutex

	mu       sync.Mutex // protects tasks/nextID/ticks/current/tickHook
	tasks    map[TaskHandle]*simTask
	nextID   TaskHandle
	ticks    uint64
	current  TaskHandle
	tickHook func()

	stopCh chan struct{}
	once   sync.Once
}

type simTask struct {
	name     string
	priority int
	ready    bool
	grant    chan struct{}
	stop     chan struct{}
	notify   chan struct{}
}

// NewSim creates a simulated platform whose dispatcher advances one tick
// every tickInterval of wall-clock time.
func NewSim(tickInterval time.Duration) *Sim {
	if tickInterval <= 0 {
		tickInterval = time.Millisecond
	}
	s := &Sim{
		tickInterval: tickInterval,
		tasks:        make(map[TaskHandle]*simTask),
		nextID:       1,
		stopCh:       make(chan struct{}),
	}
	go s.dispatchLoop()
	return s
}

// Close stops the dispatcher loop. Safe to call multiple times.
func (s *Sim) Close() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *Sim) dispatchLoop() {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick picks the highest-priority ready task, grants it the tick, and
// invokes the registered tick hook as if from ISR context — exactly once
// per tick, attributed to whichever task is "current" for that tick.
func (s *Sim) tick() {
	s.preemptMu.Lock()
	defer s.preemptMu.Unlock()

	s.mu.Lock()
	s.ticks++

	var best *simTask
	var bestHandle TaskHandle
	for h, t := range s.tasks {
		if !t.ready {
			continue
		}
		if best == nil || t.priority > best.priority {
			best = t
			bestHandle = h
		}
	}
	s.current = bestHandle
	hook := s.tickHook
	s.mu.Unlock()

	if hook != nil {
		hook()
	}

	if best != nil {
		select {
		case best.grant <- struct{}{}:
		default:
		}
	}
}

// Step blocks the calling task body until it is granted a tick (i.e. it
// was the highest-priority ready task on some tick), or until stop fires.
// Returns false if the task should exit.
func (s *Sim) Step(h TaskHandle, stop <-chan struct{}) bool {
	s.mu.Lock()
	t, ok := s.tasks[h]
	if ok {
		t.ready = true
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case <-t.grant:
		return true
	case <-stop:
		return false
	}
}

// Block marks h not-ready for d, simulating an I/O wait or voluntary
// yield, then marks it ready again.
func (s *Sim) Block(h TaskHandle, d time.Duration) {
	s.mu.Lock()
	if t, ok := s.tasks[h]; ok {
		t.ready = false
	}
	s.mu.Unlock()

	time.Sleep(d)

	s.mu.Lock()
	if t, ok := s.tasks[h]; ok {
		t.ready = true
	}
	s.mu.Unlock()
}

func (s *Sim) CreateTask(name string, priority int, body func(h TaskHandle, stop <-chan struct{})) (TaskHandle, error) {
	s.mu.Lock()
	h := s.nextID
	s.nextID++
	t := &simTask{
		name:     name,
		priority: priority,
		// ready starts false: a task only competes for ticks once its body
		// calls Step. A task that never calls Step (e.g. the scheduler
		// manager, which only ever parks in WaitNotify) never becomes
		// ready and so never shadows real workload tasks as "current",
		// regardless of its host priority.
		ready:    false,
		grant:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		notify:   make(chan struct{}, 1),
	}
	s.tasks[h] = t
	s.mu.Unlock()

	if body != nil {
		go body(h, t.stop)
	}
	return h, nil
}

func (s *Sim) SetPriority(h TaskHandle, priority int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[h]
	if !ok {
		return fmt.Errorf("platform: unknown task %d", h)
	}
	t.priority = priority
	return nil
}

func (s *Sim) Priority(h TaskHandle) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[h]
	if !ok {
		return 0, false
	}
	return t.priority, true
}

func (s *Sim) CurrentTask() TaskHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Sim) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

func (s *Sim) MillisToTicks(ms uint32) uint64 {
	perTickMillis := s.tickInterval.Seconds() * 1000
	if perTickMillis <= 0 {
		return uint64(ms)
	}
	return uint64(float64(ms) / perTickMillis)
}

// CriticalSection disables preemption by holding the same lock the
// dispatcher loop takes before charging a tick, so a level transition
// taken under this section is guaranteed not to straddle a tick.
func (s *Sim) CriticalSection() (exit func()) {
	s.preemptMu.Lock()
	return s.preemptMu.Unlock
}

func (s *Sim) Notify(h TaskHandle) {
	s.mu.Lock()
	t, ok := s.tasks[h]
	s.mu.Unlock()
	if !ok {
		return
	}
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

func (s *Sim) WaitNotify(h TaskHandle, timeout time.Duration) bool {
	s.mu.Lock()
	t, ok := s.tasks[h]
	s.mu.Unlock()
	if !ok {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.notify:
		return true
	case <-timer.C:
		return false
	}
}

func (s *Sim) RegisterTickHook(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickHook = fn
}

// Stop requests the named task's body to exit by closing its stop
// channel. Safe to call once per task.
func (s *Sim) Stop(h TaskHandle) {
	s.mu.Lock()
	t, ok := s.tasks[h]
	s.mu.Unlock()
	if !ok {
		return
	}
	close(t.stop)
}

var _ Platform = (*Sim)(nil)
