package history

import (
	"sort"
	"time"

	"netwatch/internal/models"
)

const (
	// DefaultTimelinePoints controls how many dots the status page renders.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4
)

// BuildTimeline reduces connectivity samples into compact timeline points.
// Buckets without samples inherit the last known state for a while (the gap
// threshold derived from the sample spacing) before degrading to "No data".
func BuildTimeline(entries []models.Sample, start, end time.Time, points int) []models.TimelinePoint {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	samples := make([]models.Sample, 0, len(entries))
	for _, entry := range entries {
		if entry.CheckedAt.IsZero() {
			continue
		}
		samples = append(samples, entry)
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].CheckedAt.Before(samples[j].CheckedAt)
	})

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	gapThreshold := deriveGap(samples)

	result := make([]models.TimelinePoint, 0, points)
	idx := 0
	var last models.Sample
	var haveLast bool
	for idx < len(samples) && samples[idx].CheckedAt.Before(start) {
		last = samples[idx]
		haveLast = true
		idx++
	}

	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}

		point := models.TimelinePoint{
			ClassName: "state-missing",
			Label:     "No data",
			Start:     bucketStart,
			End:       bucketEnd,
		}

		var bucketSamples []models.Sample
		for idx < len(samples) && !samples[idx].CheckedAt.After(bucketEnd) {
			last = samples[idx]
			haveLast = true
			bucketSamples = append(bucketSamples, samples[idx])
			idx++
		}

		switch {
		case len(bucketSamples) > 0:
			selected := bucketSamples[len(bucketSamples)-1]
			point.ClassName, point.Label = classify(selected)
			details := make([]models.TimelineDetail, 0, maxDetailsPerPoint)
			for _, sample := range bucketSamples {
				if len(details) >= maxDetailsPerPoint {
					break
				}
				details = append(details, detailOf(sample))
			}
			point.Details = details
		case haveLast && bucketStart.Sub(last.CheckedAt) <= gapThreshold:
			point.ClassName, point.Label = classify(last)
			detail := detailOf(last)
			detail.Timestamp = bucketStart
			point.Details = []models.TimelineDetail{detail}
		}

		result = append(result, point)
	}

	return result
}

// deriveGap picks how long a missing stretch may inherit the previous state:
// twice the median sample spacing, clamped to [1m, 2h].
func deriveGap(samples []models.Sample) time.Duration {
	const defaultGap = 5 * time.Minute
	if len(samples) < 2 {
		return defaultGap
	}
	diffs := make([]time.Duration, 0, len(samples)-1)
	prev := samples[0].CheckedAt
	for i := 1; i < len(samples); i++ {
		curr := samples[i].CheckedAt
		if curr.After(prev) {
			diffs = append(diffs, curr.Sub(prev))
		}
		prev = curr
	}
	if len(diffs) == 0 {
		return defaultGap
	}
	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i] < diffs[j]
	})
	median := diffs[len(diffs)/2]
	if median <= 0 {
		return defaultGap
	}
	gap := median * 2
	if gap < time.Minute {
		return time.Minute
	}
	if gap > 2*time.Hour {
		return 2 * time.Hour
	}
	return gap
}

func detailOf(sample models.Sample) models.TimelineDetail {
	return models.TimelineDetail{
		Timestamp: sample.CheckedAt,
		State:     sample.State.String(),
		Error:     sample.Error,
	}
}

func classify(sample models.Sample) (className, label string) {
	switch sample.State {
	case models.StateConnected:
		return "state-success", "Online"
	case models.StateDisconnected:
		return "state-error", "Offline"
	default:
		return "state-warning", "Checking"
	}
}
