package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"netwatch/internal/cluster"
	"netwatch/internal/models"
)

const (
	wsRefreshInterval = 60 * time.Second
	wsWriteTimeout    = 5 * time.Second
)

var stateUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type statePayload struct {
	State       models.ConnectivityState `json:"state"`
	Sample      *models.Sample           `json:"sample,omitempty"`
	Transition  *models.Transition       `json:"transition,omitempty"`
	Node        cluster.Node             `json:"node"`
	GeneratedAt time.Time                `json:"generated_at"`
}

func (s *Server) statePayload(tr *models.Transition) statePayload {
	payload := statePayload{
		State:       s.mon.State(),
		Transition:  tr,
		Node:        s.node,
		GeneratedAt: time.Now().UTC(),
	}
	if sample, ok := s.mon.LatestSample(); ok {
		payload.Sample = &sample
	}
	return payload
}

// handleStateWS streams the current state immediately, then every transition
// as it happens, plus a periodic refresh so idle clients see liveness.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := stateUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serveStateConnection(conn)
}

func (s *Server) serveStateConnection(conn *websocket.Conn) {
	defer conn.Close()

	transitions := s.mon.Subscribe()
	defer s.mon.Unsubscribe(transitions)

	if err := writeStatePayload(conn, s.statePayload(nil)); err != nil {
		return
	}

	ticker := time.NewTicker(wsRefreshInterval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case tr, ok := <-transitions:
			if !ok {
				// Monitor closed; the connection has nothing more to say.
				return
			}
			if err := writeStatePayload(conn, s.statePayload(&tr)); err != nil {
				return
			}
		case <-ticker.C:
			if err := writeStatePayload(conn, s.statePayload(nil)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func writeStatePayload(conn *websocket.Conn, payload statePayload) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(payload)
}
