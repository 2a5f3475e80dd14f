package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"netwatch/internal/config"
	"netwatch/internal/metrics"
	"netwatch/internal/monitor"
	"netwatch/internal/storage"
)

const (
	uptimeSampleLimit = 500
	requestTimeout    = 10 * time.Second
)

// Service aggregates the local connectivity state with peer snapshots.
type Service struct {
	node    Node
	mon     *monitor.Monitor
	store   *storage.Store
	peers   []config.Peer
	refresh time.Duration

	client *http.Client

	mu        sync.RWMutex
	peersData map[string]PeerSnapshot

	ctx    context.Context
	cancel context.CancelFunc
}

// NewService initialises the cluster aggregator for a node.
func NewService(node Node, mon *monitor.Monitor, store *storage.Store, cfg config.Config) *Service {
	refresh := time.Duration(cfg.PeerRefreshSec) * time.Second
	if refresh < 15*time.Second {
		refresh = 15 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		node:      node,
		mon:       mon,
		store:     store,
		peers:     cfg.Peers,
		refresh:   refresh,
		client:    &http.Client{Transport: transport, Timeout: requestTimeout},
		peersData: make(map[string]PeerSnapshot),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches background synchronisation with peers.
func (s *Service) Start() {
	go s.run()
}

// Stop terminates background synchronisation.
func (s *Service) Stop() {
	s.cancel()
}

func (s *Service) run() {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	s.fetchAllPeers()

	for {
		select {
		case <-ticker.C:
			s.fetchAllPeers()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Service) fetchAllPeers() {
	for _, peer := range s.peers {
		if !peer.Enabled {
			continue
		}
		if err := s.fetchPeer(peer); err != nil {
			s.mu.Lock()
			s.peersData[peer.ID] = PeerSnapshot{
				Node:      Node{ID: peer.ID, Name: peer.Name},
				UpdatedAt: time.Now().UTC(),
				Error:     err.Error(),
				Source:    "peer",
			}
			s.mu.Unlock()
		}
	}
}

func (s *Service) fetchPeer(peer config.Peer) error {
	baseURL := strings.TrimSuffix(peer.BaseURL, "/")
	if baseURL == "" {
		return fmt.Errorf("peer %s has empty base_url", peer.ID)
	}

	statusResp := NodeStatusResponse{}
	if err := s.getJSON(baseURL+"/api/node/status", peer.APIKey, &statusResp); err != nil {
		return fmt.Errorf("status fetch failed: %w", err)
	}

	s.mu.Lock()
	s.peersData[peer.ID] = PeerSnapshot{
		Node:      Node{ID: peer.ID, Name: resolveName(peer.Name, statusResp.Node.Name, peer.ID)},
		State:     statusResp.State,
		Sample:    statusResp.Sample,
		Uptime:    statusResp.Uptime,
		UpdatedAt: time.Now().UTC(),
		Source:    "peer",
	}
	s.mu.Unlock()
	return nil
}

// LocalStatus builds the status response for this node.
func (s *Service) LocalStatus() NodeStatusResponse {
	resp := NodeStatusResponse{
		Node:        s.node,
		State:       s.mon.State(),
		Uptime:      metrics.ComputeUptime(s.store.SamplesN(uptimeSampleLimit)),
		GeneratedAt: time.Now().UTC(),
	}
	if sample, ok := s.mon.LatestSample(); ok {
		resp.Sample = &sample
	}
	return resp
}

func (s *Service) localSnapshot() PeerSnapshot {
	status := s.LocalStatus()
	return PeerSnapshot{
		Node:      status.Node,
		State:     status.State,
		Sample:    status.Sample,
		Uptime:    status.Uptime,
		UpdatedAt: status.GeneratedAt,
		Source:    "local",
	}
}

// Snapshot gathers local and remote data for API responses.
func (s *Service) Snapshot() ClusterSnapshot {
	nodes := []PeerSnapshot{s.localSnapshot()}

	s.mu.RLock()
	for _, snap := range s.peersData {
		nodes = append(nodes, snap)
	}
	s.mu.RUnlock()

	return ClusterSnapshot{
		GeneratedAt: time.Now().UTC(),
		Nodes:       nodes,
	}
}

func (s *Service) getJSON(url, apiKey string, dest any) error {
	ctx, cancel := context.WithTimeout(s.ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func resolveName(configured, remote, fallback string) string {
	if configured != "" {
		return configured
	}
	if remote != "" {
		return remote
	}
	return fallback
}
