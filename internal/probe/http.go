package probe

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPProber issues a HEAD request against a well-known URL.
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber configures an HTTP reachability probe.
func NewHTTPProber(url string, timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 4 * time.Second
	}
	return &HTTPProber{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Target reports the probed URL.
func (p *HTTPProber) Target() string {
	return p.url
}

// Probe succeeds on any 2xx/3xx response.
func (p *HTTPProber) Probe(ctx context.Context) Result {
	result := Result{Target: p.url}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	started := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		result.Error = msg
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		result.Error = http.StatusText(resp.StatusCode)
		return result
	}

	result.OK = true
	result.Latency = time.Since(started)
	return result
}
