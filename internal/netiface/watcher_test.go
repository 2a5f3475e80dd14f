package netiface

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuery struct {
	mu     sync.Mutex
	ifaces []Interface
	err    error
}

func (q *fakeQuery) set(ifaces []Interface, err error) {
	q.mu.Lock()
	q.ifaces = ifaces
	q.err = err
	q.mu.Unlock()
}

func (q *fakeQuery) query() ([]Interface, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ifaces, q.err
}

func TestFingerprintStableUnderOrdering(t *testing.T) {
	a := []Interface{
		{Name: "eth0", Addrs: []string{"192.0.2.10"}},
		{Name: "wlan0", Addrs: []string{"192.0.2.20"}},
	}
	b := []Interface{a[1], a[0]}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Empty(t, Fingerprint(nil))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(a[:1]))
}

func TestWatcherEmitsOnChange(t *testing.T) {
	clk := clock.NewMock()
	q := &fakeQuery{ifaces: []Interface{{Name: "eth0", Addrs: []string{"192.0.2.10"}}}}

	w := NewWatcher(q.query, time.Second, clk)
	w.Start()
	defer w.Stop()

	// Let the run goroutine take its baseline snapshot and arm the ticker.
	time.Sleep(20 * time.Millisecond)

	// Unchanged set: no event.
	clk.Add(time.Second)
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event for unchanged interfaces: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	// Interface disappears: event with the (empty) new set.
	q.set(nil, nil)
	clk.Add(time.Second)
	select {
	case ev := <-w.Events():
		assert.Empty(t, ev.Interfaces)
	case <-time.After(2 * time.Second):
		t.Fatal("no event after interface change")
	}

	// Interface returns: another event.
	q.set([]Interface{{Name: "wlan0", Addrs: []string{"192.0.2.20"}}}, nil)
	clk.Add(time.Second)
	select {
	case ev := <-w.Events():
		require.Len(t, ev.Interfaces, 1)
		assert.Equal(t, "wlan0", ev.Interfaces[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("no event after interface came back")
	}
}

func TestWatcherTreatsQueryErrorAsChange(t *testing.T) {
	clk := clock.NewMock()
	q := &fakeQuery{ifaces: []Interface{{Name: "eth0", Addrs: []string{"192.0.2.10"}}}}

	w := NewWatcher(q.query, time.Second, clk)
	w.Start()
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)

	q.set(nil, errors.New("enumeration failed"))
	clk.Add(time.Second)
	select {
	case ev := <-w.Events():
		assert.Empty(t, ev.Interfaces)
	case <-time.After(2 * time.Second):
		t.Fatal("no event after query started failing")
	}

	// Still failing: no further events.
	clk.Add(time.Second)
	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event while query keeps failing: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcherStopClosesEvents(t *testing.T) {
	q := &fakeQuery{}
	w := NewWatcher(q.query, time.Second, clock.NewMock())
	w.Start()
	w.Stop()
	w.Stop() // idempotent

	_, open := <-w.Events()
	assert.False(t, open)
}
