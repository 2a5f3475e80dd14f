package probe

import (
	"context"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DNSProber resolves an A record for a well-known hostname against a fixed
// resolver. DNS is the default probe: it is cheap and almost never filtered.
type DNSProber struct {
	hostname string
	resolver string
	client   *dns.Client
}

// NewDNSProber configures a DNS reachability probe.
func NewDNSProber(hostname, resolver string, timeout time.Duration) *DNSProber {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	if !strings.Contains(resolver, ":") {
		resolver = resolver + ":53"
	}
	return &DNSProber{
		hostname: hostname,
		resolver: resolver,
		client:   &dns.Client{Timeout: timeout},
	}
}

// Target reports the probed hostname.
func (p *DNSProber) Target() string {
	return p.hostname
}

// Probe sends a single recursive A query and succeeds on a NOERROR response.
func (p *DNSProber) Probe(ctx context.Context) Result {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(p.hostname), dns.TypeA)
	msg.RecursionDesired = true

	started := time.Now()
	resp, _, err := p.client.ExchangeContext(ctx, msg, p.resolver)

	result := Result{Target: p.hostname}
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if resp.Rcode != dns.RcodeSuccess {
		result.Error = "dns rcode " + dns.RcodeToString[resp.Rcode]
		return result
	}

	result.OK = true
	result.Latency = time.Since(started)
	return result
}
