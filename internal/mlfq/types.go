// Package mlfq implements the Multi-Level Feedback Queue scheduling
// policy: a tick profiler that charges CPU bursts to the currently
// running task and a scheduler manager that demotes, promotes, and
// periodically boosts tasks across three priority bands.
package mlfq

import (
	"fmt"
	"time"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// Level is one of the three MLFQ priority bands. Lower ordinal is higher
// scheduling priority.
type Level int32

const (
	High Level = iota
	Medium
	Low

	numLevels = int(Low) + 1
)

func (l Level) String() string {
	switch l {
	case High:
		return "HIGH"
	case Medium:
		return "MEDIUM"
	case Low:
		return "LOW"
	default:
		return fmt.Sprintf("Level(%d)", int32(l))
	}
}

func (l Level) valid() bool {
	return l >= High && l <= Low
}

// Ladder maps each Level to its tick budget. It must be strictly
// increasing with level ordinal.
type Ladder [numLevels]uint32

func (l Ladder) quantum(level Level) uint32 {
	return l[level]
}

func (l Ladder) validate() error {
	for i := 1; i < numLevels; i++ {
		if l[i] <= l[i-1] {
			return fmt.Errorf("mlfq: ladder not strictly increasing at level %s (%d <= %d)",
				Level(i), l[i], l[i-1])
		}
	}
	return nil
}

// Outcome is the result of a Register call.
type Outcome int

const (
	Registered Outcome = iota
	TableFull
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Registered:
		return "ok"
	case TableFull:
		return "full"
	case Duplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Config collects the compile-time policy constants of spec §6.
type Config struct {
	// TopPriority is the top host priority in the MLFQ band. Level k
	// maps to host priority TopPriority - k; the manager task runs at
	// TopPriority + 1.
	TopPriority int

	// BoostPeriod is the global anti-starvation boost cadence.
	BoostPeriod time.Duration

	// Ladder is the per-level quantum budget, in ticks.
	Ladder Ladder

	// Capacity is the task table's fixed capacity.
	Capacity int

	// EventQueueLen is the event channel's capacity.
	EventQueueLen int

	// ManagerIdleInterval bounds the manager loop's sleep between
	// iterations, so the boost deadline is respected within one
	// interval.
	ManagerIdleInterval time.Duration
}

// DefaultConfig returns the pinned defaults from spec §6/§9: the lower of
// the two divergent ladders and boost periods found in the original
// drafts.
func DefaultConfig() Config {
	return Config{
		TopPriority:         5,
		BoostPeriod:         500 * time.Millisecond,
		Ladder:              Ladder{10, 20, 50},
		Capacity:            16,
		EventQueueLen:       32,
		ManagerIdleInterval: 10 * time.Millisecond,
	}
}

// Validate enforces the invariants a Config must satisfy before use.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("mlfq: capacity must be positive, got %d", c.Capacity)
	}
	if c.EventQueueLen <= 0 {
		return fmt.Errorf("mlfq: event queue length must be positive, got %d", c.EventQueueLen)
	}
	if c.BoostPeriod <= 0 {
		return fmt.Errorf("mlfq: boost period must be positive, got %s", c.BoostPeriod)
	}
	if c.ManagerIdleInterval <= 0 {
		return fmt.Errorf("mlfq: manager idle interval must be positive, got %s", c.ManagerIdleInterval)
	}
	return c.Ladder.validate()
}

// HostPriority returns the host-kernel priority for level, per the
// P - ordinal(level) mapping of spec §3.
func (c Config) HostPriority(level Level) int {
	return c.TopPriority - int(level)
}

// ManagerPriority returns the host priority the scheduler manager task
// itself runs at: always one above the top policy band.
func (c Config) ManagerPriority() int {
	return c.TopPriority + 1
}

// Record is a read-only snapshot of one task's MLFQ metadata, as returned
// by Stats.
type Record struct {
	Task     platform.TaskHandle
	Level    Level
	Arrival  uint64
	Burst    uint32
	Quantum  uint32
}

// Transition describes a single level change, delivered to Observers.
// PriorBurst is the burst-tick count the task had accumulated in the band
// it is leaving, captured immediately before the transition reset it to
// zero — useful for observing the burst length that triggered a demotion.
type Transition struct {
	Task       platform.TaskHandle
	Old, New   Level
	PriorBurst uint32
	At         time.Time
}
