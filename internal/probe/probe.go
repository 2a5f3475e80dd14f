// Package probe implements active reachability checks confirming actual
// internet access beyond link-layer presence.
package probe

import (
	"context"
	"fmt"
	"time"

	"netwatch/internal/config"
)

// Result captures the outcome of a single reachability probe.
type Result struct {
	OK      bool
	Target  string
	Latency time.Duration
	Error   string
}

// Prober performs one reachability check. Implementations must honour ctx
// cancellation and deadlines; a timeout is reported as a failed Result, never
// as a panic or hang.
type Prober interface {
	Probe(ctx context.Context) Result
	Target() string
}

// New builds the prober selected by the configuration.
func New(cfg config.Probe) (Prober, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Mode {
	case config.ProbeModeDNS:
		return NewDNSProber(cfg.Target, cfg.Resolver, timeout), nil
	case config.ProbeModeHTTP:
		return NewHTTPProber(cfg.Target, timeout), nil
	case config.ProbeModeTCP:
		return NewTCPProber(cfg.Target, timeout), nil
	default:
		return nil, fmt.Errorf("unknown probe mode %q", cfg.Mode)
	}
}
