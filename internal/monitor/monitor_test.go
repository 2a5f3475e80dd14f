package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/internal/models"
	"netwatch/internal/netiface"
	"netwatch/internal/probe"
)

type fakeProber struct {
	mu     sync.Mutex
	calls  int
	result probe.Result
}

func (p *fakeProber) Probe(context.Context) probe.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.result
}

func (p *fakeProber) Target() string { return p.result.Target }

func (p *fakeProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// blockingProber parks each probe until the test releases it, so tests can
// interleave in-flight probes deterministically.
type blockingProber struct {
	started chan chan probe.Result
}

func newBlockingProber() *blockingProber {
	return &blockingProber{started: make(chan chan probe.Result, 4)}
}

func (p *blockingProber) Probe(ctx context.Context) probe.Result {
	reply := make(chan probe.Result)
	p.started <- reply
	select {
	case res := <-reply:
		return res
	case <-ctx.Done():
		return probe.Result{Error: ctx.Err().Error()}
	}
}

func (p *blockingProber) Target() string { return "blocking" }

func (p *blockingProber) release(t *testing.T, res probe.Result) {
	t.Helper()
	select {
	case reply := <-p.started:
		reply <- res
	case <-time.After(2 * time.Second):
		t.Fatal("no probe in flight")
	}
}

func oneInterface() ([]netiface.Interface, error) {
	return []netiface.Interface{{Name: "eth0", Addrs: []string{"192.0.2.10"}}}, nil
}

func noInterfaces() ([]netiface.Interface, error) {
	return nil, nil
}

func waitForState(t *testing.T, m *Monitor, want models.ConnectivityState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State() == want
	}, 2*time.Second, 5*time.Millisecond, "state never settled to %s", want)
}

func TestInitialProbeSettlesConnected(t *testing.T) {
	prober := &fakeProber{result: probe.Result{OK: true, Target: "dns.google", Latency: 12 * time.Millisecond}}
	m := New(Options{
		Query:  oneInterface,
		Prober: prober,
		Clock:  clock.NewMock(),
	})
	require.Equal(t, models.StateChecking, m.State())

	sub := m.Subscribe()
	m.Start()
	defer m.Close()

	waitForState(t, m, models.StateConnected)

	select {
	case tr := <-sub:
		assert.Equal(t, models.StateChecking, tr.From)
		assert.Equal(t, models.StateConnected, tr.To)
		assert.Equal(t, ReasonStartup, tr.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no transition delivered")
	}

	sample, ok := m.LatestSample()
	require.True(t, ok)
	assert.Equal(t, models.StateConnected, sample.State)
	assert.Equal(t, "dns.google", sample.Target)
	assert.EqualValues(t, 12, sample.LatencyMs)
}

func TestAbsentInterfaceSkipsReachabilityProbe(t *testing.T) {
	prober := &fakeProber{result: probe.Result{OK: true}}
	m := New(Options{
		Query:  noInterfaces,
		Prober: prober,
		Clock:  clock.NewMock(),
	})
	m.Start()
	defer m.Close()

	waitForState(t, m, models.StateDisconnected)
	assert.Zero(t, prober.callCount(), "reachability probe must not run without an interface")

	sample, ok := m.LatestSample()
	require.True(t, ok)
	assert.Equal(t, "no usable network interface", sample.Error)
}

func TestInterfaceQueryErrorMapsToDisconnected(t *testing.T) {
	prober := &fakeProber{result: probe.Result{OK: true}}
	m := New(Options{
		Query:  func() ([]netiface.Interface, error) { return nil, context.DeadlineExceeded },
		Prober: prober,
		Clock:  clock.NewMock(),
	})
	m.Start()
	defer m.Close()

	waitForState(t, m, models.StateDisconnected)
	assert.Zero(t, prober.callCount())
}

func TestFailedProbeSettlesDisconnected(t *testing.T) {
	prober := &fakeProber{result: probe.Result{Target: "dns.google", Error: "i/o timeout"}}
	m := New(Options{
		Query:  oneInterface,
		Prober: prober,
		Clock:  clock.NewMock(),
	})
	m.Start()
	defer m.Close()

	waitForState(t, m, models.StateDisconnected)

	sample, ok := m.LatestSample()
	require.True(t, ok)
	assert.Equal(t, "i/o timeout", sample.Error)
}

func TestInterfaceEventTriggersReprobe(t *testing.T) {
	prober := &fakeProber{result: probe.Result{OK: true, Target: "dns.google"}}
	events := make(chan netiface.Event, 1)
	m := New(Options{
		Query:  oneInterface,
		Prober: prober,
		Events: events,
		Clock:  clock.NewMock(),
	})
	m.Start()
	defer m.Close()

	waitForState(t, m, models.StateConnected)
	initialCalls := prober.callCount()

	sub := m.Subscribe()
	events <- netiface.Event{At: time.Now()}

	// Connected -> Checking -> Connected, both through the Checking state.
	expectTransition(t, sub, models.StateConnected, models.StateChecking)
	expectTransition(t, sub, models.StateChecking, models.StateConnected)
	assert.Greater(t, prober.callCount(), initialCalls)
}

func TestPeriodicReprobe(t *testing.T) {
	clk := clock.NewMock()
	prober := &fakeProber{result: probe.Result{OK: true}}
	m := New(Options{
		Query:    oneInterface,
		Prober:   prober,
		Interval: time.Minute,
		Clock:    clk,
	})
	m.Start()
	defer m.Close()

	waitForState(t, m, models.StateConnected)
	calls := prober.callCount()

	// Advance inside the poll: the ticker is created asynchronously by Start.
	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		return prober.callCount() > calls
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRecheckLastWriteWins(t *testing.T) {
	prober := newBlockingProber()
	m := New(Options{
		Query:   oneInterface,
		Prober:  prober,
		Clock:   clock.NewMock(),
		Timeout: 5 * time.Second,
	})
	sub := m.Subscribe()
	m.Start()
	defer m.Close()

	// Wait for the startup probe to be in flight, then supersede it manually.
	first := <-prober.started
	m.Recheck()
	second := <-prober.started

	// The newer probe settles Connected.
	second <- probe.Result{OK: true, Target: "dns.google"}
	waitForState(t, m, models.StateConnected)

	// The stale probe's failure arrives late and must be discarded.
	first <- probe.Result{Error: "connection refused"}

	assert.Never(t, func() bool {
		return m.State() != models.StateConnected
	}, 200*time.Millisecond, 10*time.Millisecond, "stale probe result must not flip the state")

	expectTransition(t, sub, models.StateChecking, models.StateConnected)
	select {
	case tr := <-sub:
		t.Fatalf("unexpected transition after stale result: %+v", tr)
	default:
	}
}

func TestCloseStopsEventHandling(t *testing.T) {
	prober := &fakeProber{result: probe.Result{OK: true}}
	events := make(chan netiface.Event, 4)
	m := New(Options{
		Query:  oneInterface,
		Prober: prober,
		Events: events,
		Clock:  clock.NewMock(),
	})
	sub := m.Subscribe()
	m.Start()

	waitForState(t, m, models.StateConnected)
	drain(sub)
	calls := prober.callCount()

	m.Close()
	m.Close() // safe to call again

	// Events delivered after close have no observable effect.
	events <- netiface.Event{At: time.Now()}
	m.Recheck()

	assert.Never(t, func() bool {
		return m.State() != models.StateConnected || prober.callCount() != calls
	}, 200*time.Millisecond, 10*time.Millisecond)

	// Subscriber channels are closed on Close.
	_, open := <-sub
	assert.False(t, open)
}

func TestCloseDiscardsInFlightProbe(t *testing.T) {
	prober := newBlockingProber()
	m := New(Options{
		Query:   oneInterface,
		Prober:  prober,
		Clock:   clock.NewMock(),
		Timeout: 5 * time.Second,
	})
	m.Start()

	reply := <-prober.started
	m.Close()

	// The probe unparks after close; its result must be dropped.
	select {
	case reply <- probe.Result{OK: true}:
	default:
		// Close cancelled the probe context first, also fine.
	}
	assert.Equal(t, models.StateChecking, m.State())
}

func TestStateAlwaysEnumerated(t *testing.T) {
	prober := &fakeProber{result: probe.Result{OK: true}}
	events := make(chan netiface.Event, 16)
	m := New(Options{
		Query:  oneInterface,
		Prober: prober,
		Events: events,
		Clock:  clock.NewMock(),
	})
	m.Start()
	defer m.Close()

	valid := map[models.ConnectivityState]bool{
		models.StateChecking:     true,
		models.StateConnected:    true,
		models.StateDisconnected: true,
	}
	for i := 0; i < 20; i++ {
		events <- netiface.Event{At: time.Now()}
		m.Recheck()
		assert.True(t, valid[m.State()])
	}
}

func expectTransition(t *testing.T, sub chan models.Transition, from, to models.ConnectivityState) {
	t.Helper()
	select {
	case tr := <-sub:
		require.Equal(t, from, tr.From)
		require.Equal(t, to, tr.To)
	case <-time.After(2 * time.Second):
		t.Fatalf("transition %s -> %s never delivered", from, to)
	}
}

func drain(sub chan models.Transition) {
	for {
		select {
		case <-sub:
		default:
			return
		}
	}
}
