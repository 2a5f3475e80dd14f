package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Probe modes understood by the prober factory.
const (
	ProbeModeDNS  = "dns"
	ProbeModeHTTP = "http"
	ProbeModeTCP  = "tcp"
)

// Config represents configuration data for the connectivity monitor.
type Config struct {
	NodeID         string `yaml:"node_id"`
	NodeName       string `yaml:"node_name"`
	DataDirectory  string `yaml:"data_directory"`
	LocaleFile     string `yaml:"locale_file"`
	Probe          Probe  `yaml:"probe"`
	IfacePollSec   int    `yaml:"interface_poll_seconds"`
	HistoryLimit   int    `yaml:"history_limit"`
	Peers          []Peer `yaml:"peers"`
	PeerRefreshSec int    `yaml:"peer_refresh_seconds"`
}

// Probe configures the reachability check.
type Probe struct {
	Mode            string `yaml:"mode"`
	Target          string `yaml:"target"`
	Resolver        string `yaml:"resolver"`
	IntervalSeconds int    `yaml:"interval_seconds"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
}

// Peer defines a remote netwatch instance to aggregate.
type Peer struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Enabled bool   `yaml:"enabled"`
}

// DefaultConfig returns sensible defaults in case no configuration file is provided.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "netwatch-local"
	}

	return Config{
		NodeID:        hostname,
		NodeName:      hostname,
		DataDirectory: filepath.Join(".dist", "data"),
		Probe: Probe{
			Mode:            ProbeModeDNS,
			Target:          "dns.google",
			Resolver:        "1.1.1.1:53",
			IntervalSeconds: 60,
			TimeoutSeconds:  4,
		},
		IfacePollSec:   5,
		HistoryLimit:   5000,
		PeerRefreshSec: 60,
	}
}

// Load reads configuration from a yaml file. Missing files fall back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalise() error {
	defaults := DefaultConfig()
	if c.NodeID == "" {
		c.NodeID = defaults.NodeID
	}
	if c.NodeName == "" {
		c.NodeName = c.NodeID
	}
	if c.DataDirectory == "" {
		c.DataDirectory = defaults.DataDirectory
	}
	if c.IfacePollSec <= 0 {
		c.IfacePollSec = defaults.IfacePollSec
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = defaults.HistoryLimit
	}
	if c.PeerRefreshSec <= 0 {
		c.PeerRefreshSec = defaults.PeerRefreshSec
	}

	if c.Probe.Mode == "" {
		c.Probe.Mode = ProbeModeDNS
	}
	switch c.Probe.Mode {
	case ProbeModeDNS, ProbeModeHTTP, ProbeModeTCP:
	default:
		return fmt.Errorf("probe mode %q is not one of dns, http, tcp", c.Probe.Mode)
	}
	if c.Probe.Target == "" {
		c.Probe.Target = defaults.Probe.Target
		if c.Probe.Mode == ProbeModeHTTP {
			c.Probe.Target = "https://www.google.com/generate_204"
		}
		if c.Probe.Mode == ProbeModeTCP {
			c.Probe.Target = "1.1.1.1:53"
		}
	}
	if c.Probe.Resolver == "" {
		c.Probe.Resolver = defaults.Probe.Resolver
	}
	if c.Probe.IntervalSeconds <= 0 {
		c.Probe.IntervalSeconds = defaults.Probe.IntervalSeconds
	}
	if c.Probe.TimeoutSeconds <= 0 {
		c.Probe.TimeoutSeconds = defaults.Probe.TimeoutSeconds
	}

	for i, peer := range c.Peers {
		if !peer.Enabled {
			continue
		}
		if peer.ID == "" {
			return fmt.Errorf("peer %d is missing id", i)
		}
		if peer.BaseURL == "" {
			return fmt.Errorf("peer %s base_url is required", peer.ID)
		}
	}
	return nil
}
