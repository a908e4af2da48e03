package mlfq

import (
	"sync"
	"time"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// fakePlatform is a minimal, fully deterministic platform.Platform used
// to unit-test the profiler and manager without any real concurrency or
// wall-clock dependency.
type fakePlatform struct {
	mu         sync.Mutex
	current    platform.TaskHandle
	ticks      uint64
	priorities map[platform.TaskHandle]int
	tickHook   func()
	critEnters int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{priorities: make(map[platform.TaskHandle]int)}
}

func (f *fakePlatform) CreateTask(name string, priority int, body func(h platform.TaskHandle, stop <-chan struct{})) (platform.TaskHandle, error) {
	return platform.TaskHandle(0), nil
}

func (f *fakePlatform) SetPriority(h platform.TaskHandle, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priorities[h] = priority
	return nil
}

func (f *fakePlatform) priority(h platform.TaskHandle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.priorities[h]
}

func (f *fakePlatform) CurrentTask() platform.TaskHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakePlatform) setCurrent(h platform.TaskHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = h
}

func (f *fakePlatform) Ticks() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ticks
}

func (f *fakePlatform) advance() {
	f.mu.Lock()
	f.ticks++
	f.mu.Unlock()
}

func (f *fakePlatform) MillisToTicks(ms uint32) uint64 {
	return uint64(ms)
}

func (f *fakePlatform) CriticalSection() (exit func()) {
	f.mu.Lock()
	f.critEnters++
	f.mu.Unlock()
	return func() {}
}

func (f *fakePlatform) Notify(h platform.TaskHandle) {}

func (f *fakePlatform) WaitNotify(h platform.TaskHandle, timeout time.Duration) bool {
	time.Sleep(timeout)
	return false
}

func (f *fakePlatform) RegisterTickHook(fn func()) {
	f.tickHook = fn
}

var _ platform.Platform = (*fakePlatform)(nil)
