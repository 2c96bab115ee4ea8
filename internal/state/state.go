// Package state persists the engine's lifecycle phase across restarts.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Phase is the lifecycle state of the engine. Transitions are strictly
// one-directional: Bootstrapping -> Training -> Active.
type Phase string

const (
	PhaseBootstrapping Phase = "Bootstrapping"
	PhaseTraining      Phase = "Training"
	PhaseActive        Phase = "Active"
)

var phaseOrder = map[Phase]int{
	PhaseBootstrapping: 0,
	PhaseTraining:      1,
	PhaseActive:        2,
}

type document struct {
	Phase             Phase     `json:"phase"`
	BootstrapStartUTC time.Time `json:"bootstrapStartTimeUtc"`
}

// Store reads and rewrites the small lifecycle document. Every transition
// is persisted before it takes effect.
type Store struct {
	path string

	mu  sync.Mutex
	doc document
}

// Open loads the persisted state, initializing a fresh Bootstrapping
// document when none exists yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &s.doc); err != nil {
			return nil, fmt.Errorf("parse lifecycle state %s: %w", path, err)
		}
		if _, ok := phaseOrder[s.doc.Phase]; !ok {
			return nil, fmt.Errorf("lifecycle state %s holds unknown phase %q", path, s.doc.Phase)
		}
	case os.IsNotExist(err):
		s.doc = document{Phase: PhaseBootstrapping, BootstrapStartUTC: time.Now().UTC()}
		if err := s.write(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read lifecycle state %s: %w", path, err)
	}
	return s, nil
}

// Phase returns the current persisted phase.
func (s *Store) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Phase
}

// BootstrapStart returns the recorded start of the bootstrap window.
func (s *Store) BootstrapStart() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.BootstrapStartUTC
}

// Transition persists a move to the given phase. Backward moves are
// rejected; repeating the current phase is a no-op.
func (s *Store) Transition(next Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	to, ok := phaseOrder[next]
	if !ok {
		return fmt.Errorf("unknown lifecycle phase %q", next)
	}
	from := phaseOrder[s.doc.Phase]
	if to < from {
		return fmt.Errorf("lifecycle phase cannot move backward: %s -> %s", s.doc.Phase, next)
	}
	if to == from {
		return nil
	}

	prev := s.doc.Phase
	s.doc.Phase = next
	if err := s.write(); err != nil {
		s.doc.Phase = prev
		return err
	}
	return nil
}

func (s *Store) write() error {
	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write lifecycle state: %w", err)
	}
	return os.Rename(tmp, s.path)
}
