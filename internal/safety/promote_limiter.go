// Package safety guards externally-driven scheduler actions against
// misbehaving callers, grounded on the teacher lineage's
// scheduler/limiter.go per-key token bucket.
package safety

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/mlfq"
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// promoter is the subset of *mlfq.Scheduler this package depends on.
type promoter interface {
	Promote(h platform.TaskHandle)
}

// PromoteLimiter wraps a Scheduler's Promote with a per-task token bucket,
// so a misbehaving caller spamming interactive-promotion requests for one
// task cannot starve the manager's demotion work or thrash that task's
// host priority.
type PromoteLimiter struct {
	next promoter

	mu       sync.Mutex
	limiters map[platform.TaskHandle]*rate.Limiter
	r        rate.Limit
	b        int
}

// NewPromoteLimiter wraps sched, allowing at most r promotions per second
// per task (burst b) before further calls for that task are silently
// dropped.
func NewPromoteLimiter(sched *mlfq.Scheduler, r float64, b int) *PromoteLimiter {
	return &PromoteLimiter{
		next:     sched,
		limiters: make(map[platform.TaskHandle]*rate.Limiter),
		r:        rate.Limit(r),
		b:        b,
	}
}

// Promote forwards to the wrapped scheduler's Promote only if h's bucket
// has a token available.
func (p *PromoteLimiter) Promote(h platform.TaskHandle) {
	if !p.allow(h) {
		return
	}
	p.next.Promote(h)
}

func (p *PromoteLimiter) allow(h platform.TaskHandle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	limiter, ok := p.limiters[h]
	if !ok {
		limiter = rate.NewLimiter(p.r, p.b)
		p.limiters[h] = limiter
	}
	return limiter.Allow()
}

// Forget drops the per-task limiter state for h, e.g. once a task is known
// to have exited and its handle may be reused.
func (p *PromoteLimiter) Forget(h platform.TaskHandle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.limiters, h)
}
