package probe

import (
	"context"
	"net"
	"strings"
	"time"
)

// TCPProber dials a host:port. Useful where DNS and HTTP are both filtered
// but a well-known port is reachable.
type TCPProber struct {
	address string
	dialer  *net.Dialer
}

// NewTCPProber configures a TCP reachability probe. A target without a port
// gets :53 appended.
func NewTCPProber(address string, timeout time.Duration) *TCPProber {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if !strings.Contains(address, ":") {
		address = net.JoinHostPort(address, "53")
	}
	return &TCPProber{
		address: address,
		dialer:  &net.Dialer{Timeout: timeout},
	}
}

// Target reports the dialed address.
func (p *TCPProber) Target() string {
	return p.address
}

// Probe succeeds if the dial completes within the timeout.
func (p *TCPProber) Probe(ctx context.Context) Result {
	result := Result{Target: p.address}

	started := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	_ = conn.Close()

	result.OK = true
	result.Latency = time.Since(started)
	return result
}
