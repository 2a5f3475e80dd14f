package cluster

import (
	"time"

	"netwatch/internal/metrics"
	"netwatch/internal/models"
)

// Node describes a netwatch instance.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// NodeStatusResponse describes the payload exposed by /api/node/status.
type NodeStatusResponse struct {
	Node        Node                     `json:"node"`
	State       models.ConnectivityState `json:"state"`
	Sample      *models.Sample           `json:"sample,omitempty"`
	Uptime      metrics.Summary          `json:"uptime"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// PeerSnapshot stores last known data for a peer.
type PeerSnapshot struct {
	Node      Node                     `json:"node"`
	State     models.ConnectivityState `json:"state"`
	Sample    *models.Sample           `json:"sample,omitempty"`
	Uptime    metrics.Summary          `json:"uptime"`
	UpdatedAt time.Time                `json:"updated_at"`
	Error     string                   `json:"error,omitempty"`
	Source    string                   `json:"source"`
}

// ClusterSnapshot is returned by /api/cluster.
type ClusterSnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Nodes       []PeerSnapshot `json:"nodes"`
}
