package mlfq

import (
	"time"

	"github.com/Hassan-Darwish/MLFQ-FreeRTOS/internal/platform"
)

// EventSink is the abstract cross-context handoff design note §9 asks
// for: one ISR-safe production call, one task-context consumption call.
// ChannelSink is the bounded SPSC implementation used in production;
// tests may substitute a capacity-1 sink to exercise overflow behavior
// (spec §8 property P7).
type EventSink interface {
	// Publish offers h to the sink without blocking. Returns false if
	// the sink is full — the caller must treat this as a silent drop,
	// never as an error (spec §4.B step 4).
	Publish(h platform.TaskHandle) bool

	// Consume removes one handle from the sink. A zero timeout makes
	// this non-blocking; a positive timeout blocks up to that long.
	Consume(timeout time.Duration) (platform.TaskHandle, bool)
}

// ChannelSink is a bounded single-producer/single-consumer EventSink
// backed by a native Go channel.
type ChannelSink struct {
	ch chan platform.TaskHandle
}

// NewChannelSink creates a ChannelSink with the given capacity.
func NewChannelSink(capacity int) *ChannelSink {
	if capacity <= 0 {
		capacity = 1
	}
	return &ChannelSink{ch: make(chan platform.TaskHandle, capacity)}
}

func (c *ChannelSink) Publish(h platform.TaskHandle) bool {
	select {
	case c.ch <- h:
		return true
	default:
		return false
	}
}

func (c *ChannelSink) Consume(timeout time.Duration) (platform.TaskHandle, bool) {
	if timeout <= 0 {
		select {
		case h := <-c.ch:
			return h, true
		default:
			return platform.NoTask, false
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case h := <-c.ch:
		return h, true
	case <-timer.C:
		return platform.NoTask, false
	}
}

var _ EventSink = (*ChannelSink)(nil)
