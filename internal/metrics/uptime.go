package metrics

import (
	"math"
	"time"

	"netwatch/internal/models"
)

// Summary aggregates connectivity health over a sample window.
type Summary struct {
	UptimePercent      float64 `json:"uptime_percent"`
	TotalSamples       int     `json:"total_samples"`
	Online             int     `json:"online"`
	Offline            int     `json:"offline"`
	Flaps              int     `json:"flaps"`
	LongestOfflineSecs int64   `json:"longest_offline_seconds"`
	LastState          string  `json:"last_state,omitempty"`
	LastChecked        string  `json:"last_checked,omitempty"`
}

// ComputeUptime summarises sample history. Samples are expected oldest first,
// as the store returns them.
func ComputeUptime(samples []models.Sample) Summary {
	summary := Summary{}
	if len(samples) == 0 {
		return summary
	}

	var (
		prevState    models.ConnectivityState
		havePrev     bool
		offlineSince time.Time
	)

	recordOffline := func(until time.Time) {
		if offlineSince.IsZero() {
			return
		}
		secs := int64(until.Sub(offlineSince) / time.Second)
		if secs > summary.LongestOfflineSecs {
			summary.LongestOfflineSecs = secs
		}
	}

	for _, sample := range samples {
		switch sample.State {
		case models.StateConnected:
			summary.Online++
			recordOffline(sample.CheckedAt)
			offlineSince = time.Time{}
		case models.StateDisconnected:
			summary.Offline++
			if offlineSince.IsZero() {
				offlineSince = sample.CheckedAt
			}
		default:
			continue
		}
		if havePrev && sample.State != prevState {
			summary.Flaps++
		}
		prevState = sample.State
		havePrev = true
	}
	recordOffline(samples[len(samples)-1].CheckedAt)

	summary.TotalSamples = summary.Online + summary.Offline
	if summary.TotalSamples > 0 {
		summary.UptimePercent = round2(float64(summary.Online) / float64(summary.TotalSamples) * 100)
	}

	last := samples[len(samples)-1]
	summary.LastState = last.State.String()
	if !last.CheckedAt.IsZero() {
		summary.LastChecked = last.CheckedAt.UTC().Format(time.RFC3339)
	}
	return summary
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
