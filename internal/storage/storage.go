package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"netwatch/internal/models"
)

// Store persists connectivity samples and transitions to disk and keeps a
// bounded in-memory copy for the API.
type Store struct {
	mu          sync.RWMutex
	samplePath  string
	transPath   string
	maxEntries  int
	samples     []models.Sample
	transitions []models.Transition
}

// New creates a store under dir and loads existing history if present.
func New(dir string, maxEntries int) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}
	if maxEntries <= 0 {
		maxEntries = 5000
	}

	s := &Store{
		samplePath: filepath.Join(dir, "samples.json"),
		transPath:  filepath.Join(dir, "transitions.json"),
		maxEntries: maxEntries,
	}
	if err := loadJSON(s.samplePath, &s.samples); err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	if err := loadJSON(s.transPath, &s.transitions); err != nil {
		return nil, fmt.Errorf("load transitions: %w", err)
	}
	return s, nil
}

// AppendSample adds a settled probe result and persists the sample log.
func (s *Store) AppendSample(sample models.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples = append(s.samples, sample)
	if len(s.samples) > s.maxEntries {
		s.samples = s.samples[len(s.samples)-s.maxEntries:]
	}
	return persistJSON(s.samplePath, s.samples)
}

// AppendTransition adds a state transition and persists the transition log.
func (s *Store) AppendTransition(tr models.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transitions = append(s.transitions, tr)
	if len(s.transitions) > s.maxEntries {
		s.transitions = s.transitions[len(s.transitions)-s.maxEntries:]
	}
	return persistJSON(s.transPath, s.transitions)
}

// LatestSample returns the most recent sample if one exists.
func (s *Store) LatestSample() (models.Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return models.Sample{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// SamplesN returns up to limit most recent samples, oldest first.
func (s *Store) SamplesN(limit int) []models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return tailCopy(s.samples, limit)
}

// SamplesSince returns samples whose timestamp is >= cutoff.
func (s *Store) SamplesSince(cutoff time.Time) []models.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.samples) == 0 {
		return nil
	}
	if cutoff.IsZero() {
		return tailCopy(s.samples, 0)
	}
	idx := sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].CheckedAt.Before(cutoff)
	})
	if idx >= len(s.samples) {
		return nil
	}
	out := make([]models.Sample, len(s.samples)-idx)
	copy(out, s.samples[idx:])
	return out
}

// TransitionsN returns up to limit most recent transitions, oldest first.
func (s *Store) TransitionsN(limit int) []models.Transition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return tailCopy(s.transitions, limit)
}

func tailCopy[T any](entries []T, limit int) []T {
	if len(entries) == 0 {
		return nil
	}
	start := 0
	if limit > 0 && len(entries) > limit {
		start = len(entries) - limit
	}
	out := make([]T, len(entries)-start)
	copy(out, entries[start:])
	return out
}

func loadJSON[T any](path string, dest *[]T) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func persistJSON(path string, payload any) error {
	bytes, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
