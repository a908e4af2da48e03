// Package workloads provides synthetic task bodies for exercising the
// scheduler against platform.Sim, grounded on the original system's
// workloads.c: an interactive task that computes briefly then blocks, and
// a CPU-heavy task that computes far longer before yielding.
package workloads

import (
	"time"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// Interactive computation and block durations, matching the scale of the
// original INTERACTIVE_TASK_TIME busy-loop relative to one scheduler tick.
const (
	interactiveComputeTicks = 2
	interactiveBlockFor     = 2 * time.Millisecond
)

// CPU-heavy computation duration, matching HEAVY_TASK_TIME's much larger
// busy-loop relative to an interactive task's.
const cpuHeavyComputeTicks = 40

// Interactive returns a task body that performs a short burst of work
// then voluntarily blocks, simulating user-driven or I/O-bound behavior.
// Blocking does not reset its burst ticks (only a level change does), so
// its short bursts add up: after enough of them it reaches its quantum and
// is demoted like any other task, until the next global boost.
func Interactive(sim *platform.Sim) func(h platform.TaskHandle, stop <-chan struct{}) {
	return func(h platform.TaskHandle, stop <-chan struct{}) {
		for {
			for i := 0; i < interactiveComputeTicks; i++ {
				if !sim.Step(h, stop) {
					return
				}
			}
			sim.Block(h, interactiveBlockFor)
		}
	}
}

// CPUHeavy returns a task body that computes for far longer than
// Interactive before yielding, simulating a CPU-bound workload that
// should repeatedly exhaust its quantum and get demoted.
func CPUHeavy(sim *platform.Sim) func(h platform.TaskHandle, stop <-chan struct{}) {
	return func(h platform.TaskHandle, stop <-chan struct{}) {
		for {
			for i := 0; i < cpuHeavyComputeTicks; i++ {
				if !sim.Step(h, stop) {
					return
				}
			}
			sim.Block(h, time.Millisecond)
		}
	}
}
