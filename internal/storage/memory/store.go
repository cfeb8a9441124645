package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/storage"
)

// Store is an in-memory HistoryStore. Runs are lost on restart.
type Store struct {
	mu   sync.RWMutex
	runs []*domain.Summary
	byID map[string]*domain.Summary
}

var _ storage.HistoryStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{byID: make(map[string]*domain.Summary)}
}

func (s *Store) RecordRun(ctx context.Context, run *domain.Summary) error {
	if run == nil || run.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[run.RunID]; exists {
		return fmt.Errorf("run %s already exists", run.RunID)
	}

	c := *run
	c.Results = append([]domain.DeploymentResult(nil), run.Results...)
	s.runs = append(s.runs, &c)
	s.byID[c.RunID] = &c
	return nil
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]*domain.Summary, error) {
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Summary, 0, min(limit, len(s.runs)))
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		c := *s.runs[i]
		c.Results = nil
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	c := *run
	c.Results = append([]domain.DeploymentResult(nil), run.Results...)
	return &c, nil
}

func (s *Store) Close() error { return nil }
