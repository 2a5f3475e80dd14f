// Package monitor owns the connectivity state machine. State starts at
// Checking and settles to Connected or Disconnected after every probe; the
// two settled states are only ever left through Checking again.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"netwatch/internal/models"
	"netwatch/internal/netiface"
	"netwatch/internal/probe"
)

const subscriberBuffer = 16

// Probe trigger reasons, recorded on transitions.
const (
	ReasonStartup         = "startup"
	ReasonInterval        = "interval"
	ReasonInterfaceChange = "interface-change"
	ReasonManual          = "manual"
)

// Recorder persists settled samples and state transitions. Implementations
// must tolerate concurrent calls.
type Recorder interface {
	AppendSample(models.Sample) error
	AppendTransition(models.Transition) error
}

// Options configures a Monitor.
type Options struct {
	// Query reports usable OS interfaces. Required.
	Query netiface.Query
	// Prober performs the reachability check. Required.
	Prober probe.Prober
	// Events delivers interface-change notifications. Optional; without it
	// only the interval and manual rechecks trigger probes.
	Events <-chan netiface.Event
	// Recorder persists samples and transitions. Optional.
	Recorder Recorder
	// Interval between periodic re-probes. Defaults to a minute.
	Interval time.Duration
	// Timeout bounds a single probe, interface query included.
	Timeout time.Duration
	// Clock is swapped out in tests.
	Clock clock.Clock
}

// Monitor maintains the connectivity state and notifies subscribers on every
// transition. One instance exists per process, owned by main.
type Monitor struct {
	query    netiface.Query
	prober   probe.Prober
	recorder Recorder
	interval time.Duration
	timeout  time.Duration
	clk      clock.Clock

	ctx    context.Context
	cancel context.CancelFunc
	doneCh chan struct{}

	mu     sync.Mutex
	state  models.ConnectivityState
	latest *models.Sample
	gen    uint64
	subs   map[chan models.Transition]struct{}
	closed bool

	events <-chan netiface.Event
}

// New creates a monitor in the Checking state. Call Start to begin probing.
func New(opts Options) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 4 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		query:    opts.Query,
		prober:   opts.Prober,
		recorder: opts.Recorder,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		clk:      opts.Clock,
		ctx:      ctx,
		cancel:   cancel,
		doneCh:   make(chan struct{}),
		state:    models.StateChecking,
		subs:     make(map[chan models.Transition]struct{}),
		events:   opts.Events,
	}
}

// Start launches the event loop and the initial probe.
func (m *Monitor) Start() {
	go m.run()
}

// Close cancels the interface subscription and any in-flight probe. After
// Close returns, further event deliveries and probe results have no
// observable effect. Safe to call more than once.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	m.cancel()
	<-m.doneCh
	for ch := range subs {
		close(ch)
	}
}

// State returns the current connectivity state.
func (m *Monitor) State() models.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LatestSample returns the most recent settled probe result.
func (m *Monitor) LatestSample() (models.Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return models.Sample{}, false
	}
	return *m.latest, true
}

// Recheck is the manual entry point (the UI retry button). It moves the state
// to Checking and starts a fresh probe. Safe to call concurrently; a call in
// flight is superseded and only the newest probe's result is applied.
func (m *Monitor) Recheck() {
	m.beginProbe(ReasonManual)
}

// Subscribe registers a transition listener. Callers must not close the
// returned channel; use Unsubscribe when finished. Slow subscribers miss
// transitions rather than blocking the monitor.
func (m *Monitor) Subscribe() chan models.Transition {
	ch := make(chan models.Transition, subscriberBuffer)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes the listener and closes its channel.
func (m *Monitor) Unsubscribe(ch chan models.Transition) {
	m.mu.Lock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
	m.mu.Unlock()
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	m.beginProbe(ReasonStartup)

	ticker := m.clk.Ticker(m.interval)
	defer ticker.Stop()

	events := m.events
	for {
		select {
		case <-ticker.C:
			m.beginProbe(ReasonInterval)
		case _, ok := <-events:
			if !ok {
				// Watcher stopped; keep the interval loop running.
				events = nil
				continue
			}
			m.beginProbe(ReasonInterfaceChange)
		case <-m.ctx.Done():
			return
		}
	}
}

// beginProbe moves the state to Checking and launches a probe goroutine. The
// generation counter enforces last-write-wins: a newer probe supersedes any
// still in flight, whose late result is then discarded.
func (m *Monitor) beginProbe(reason string) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.gen++
	gen := m.gen
	tr := m.setStateLocked(models.StateChecking, reason)
	m.mu.Unlock()

	m.record(tr, nil)
	go m.probe(gen, reason)
}

func (m *Monitor) probe(gen uint64, reason string) {
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	defer cancel()

	sample := models.Sample{CheckedAt: m.clk.Now().UTC()}

	ifaces, err := m.query()
	switch {
	case err != nil:
		// An interface query failure counts as Disconnected, same as absence.
		sample.State = models.StateDisconnected
		sample.Error = err.Error()
	case len(ifaces) == 0:
		// No link layer, so the reachability probe is skipped entirely.
		sample.State = models.StateDisconnected
		sample.Error = "no usable network interface"
	default:
		// An up interface does not imply internet access (captive portals,
		// dead uplinks), so always confirm with the active probe.
		res := m.prober.Probe(ctx)
		sample.Target = res.Target
		if res.OK {
			sample.State = models.StateConnected
			sample.LatencyMs = res.Latency.Milliseconds()
		} else {
			sample.State = models.StateDisconnected
			sample.Error = res.Error
		}
	}

	m.apply(gen, sample, reason)
}

func (m *Monitor) apply(gen uint64, sample models.Sample, reason string) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		// Stale result: a newer probe was started after this one.
		m.mu.Unlock()
		return
	}
	m.latest = &sample
	tr := m.setStateLocked(sample.State, reason)
	m.mu.Unlock()

	m.record(tr, &sample)
}

// setStateLocked transitions the state and fans the change out to
// subscribers. Re-entering the current state is not a transition.
func (m *Monitor) setStateLocked(to models.ConnectivityState, reason string) *models.Transition {
	if m.state == to {
		return nil
	}
	tr := models.Transition{
		From:   m.state,
		To:     to,
		Reason: reason,
		At:     m.clk.Now().UTC(),
	}
	m.state = to
	for ch := range m.subs {
		select {
		case ch <- tr:
		default:
		}
	}
	return &tr
}

func (m *Monitor) record(tr *models.Transition, sample *models.Sample) {
	if m.recorder == nil {
		return
	}
	if sample != nil {
		_ = m.recorder.AppendSample(*sample)
	}
	if tr != nil {
		_ = m.recorder.AppendTransition(*tr)
	}
}
