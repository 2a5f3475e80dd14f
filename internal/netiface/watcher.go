package netiface

import (
	"time"

	"github.com/benbjohnson/clock"
)

const eventBuffer = 8

// Event is emitted whenever the usable interface set changes.
type Event struct {
	Interfaces []Interface `json:"interfaces"`
	At         time.Time   `json:"at"`
}

// Watcher polls the interface set and emits an event on every change. Go has
// no portable push API for interface changes, so polling stands in for the OS
// event stream; consumers still see a push-style channel.
type Watcher struct {
	query    Query
	interval time.Duration
	clk      clock.Clock

	events chan Event
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher configures a watcher polling at the given interval.
func NewWatcher(query Query, interval time.Duration, clk clock.Clock) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Watcher{
		query:    query,
		interval: interval,
		clk:      clk,
		events:   make(chan Event, eventBuffer),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Events returns the change event channel. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start launches the polling loop.
func (w *Watcher) Start() {
	go w.run()
}

// Stop terminates the polling loop and closes the event channel.
func (w *Watcher) Stop() {
	select {
	case <-w.doneCh:
		return
	default:
	}
	close(w.stopCh)
	<-w.doneCh
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	defer close(w.events)

	// Baseline snapshot; the first poll never emits. The monitor runs its own
	// startup probe, so an event here would only double-probe.
	last := w.snapshot()

	ticker := w.clk.Ticker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			current, ifaces := w.snapshotWith()
			if current == last {
				continue
			}
			last = current
			select {
			case w.events <- Event{Interfaces: ifaces, At: w.clk.Now().UTC()}:
			default:
				// Consumer is behind; the next change will catch it up.
			}
		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) snapshot() string {
	fp, _ := w.snapshotWith()
	return fp
}

func (w *Watcher) snapshotWith() (string, []Interface) {
	ifaces, err := w.query()
	if err != nil {
		// A failing query counts as "no usable interfaces" so that losing the
		// ability to enumerate still surfaces as a change.
		return "!err", nil
	}
	return Fingerprint(ifaces), ifaces
}
