package mlfq

// Observer is notified of every level transition set-level performs. It
// is the core's only side-effect extension point — design note §9 asks
// for the reference implementation's LED update to be an optional
// callback rather than a hardwired driver call. cmd/mlfqd wires metrics,
// a live dashboard hub, and an audit sink as Observers; a bare-metal port would wire an LED driver instead, with no
// change to the core.
type Observer interface {
	OnTransition(Transition, Record)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Transition, Record)

func (f ObserverFunc) OnTransition(t Transition, r Record) { f(t, r) }

// multiObserver fans a transition out to every wrapped Observer in
// order. A panicking Observer does not stop the others or the manager
// loop — set-level's bookkeeping has already completed by the time
// Observers run.
type multiObserver struct {
	observers []Observer
}

func (m *multiObserver) OnTransition(t Transition, r Record) {
	for _, o := range m.observers {
		if o == nil {
			continue
		}
		func() {
			defer func() { recover() }()
			o.OnTransition(t, r)
		}()
	}
}

// NewMultiObserver composes several Observers into one, so the caller of
// New can wire metrics, a dashboard hub, and an audit sink side by side
// without the core ever knowing there is more than one. Nil entries are
// skipped.
func NewMultiObserver(observers ...Observer) Observer {
	return &multiObserver{observers: observers}
}
