package mlfq

import (
	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// profiler is the tick-ISR-context accountant of spec §4.B: it is called
// once per host tick, charges the tick to the currently running task, and
// raises an expired-quantum event when a task has consumed its budget.
// OnTick must be wait-free and bounded (one linear scan of the table).
type profiler struct {
	plat  platform.Platform
	tbl   *table
	sink  EventSink
	mgr   func() platform.TaskHandle // returns the current manager handle, or NoTask
}

// OnTick implements spec §4.B's five-step algorithm. It must never block.
func (p *profiler) OnTick() {
	current := p.plat.CurrentTask()
	if current == platform.NoTask {
		return
	}

	_, burst, quantum, found := p.tbl.chargeTick(current)
	if !found {
		return
	}

	if quantum != 0 && burst >= quantum {
		p.sink.Publish(current) // overflow is a silent drop, spec §4.B step 4

		if mgr := p.mgr(); mgr != platform.NoTask {
			p.plat.Notify(mgr) // idempotent direct notification
		}
	}
}
