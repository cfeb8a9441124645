// Package storage defines the deployment history store.
package storage

import (
	"context"
	"errors"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// ErrNotFound is returned by GetRun for an unknown run id.
var ErrNotFound = errors.New("run not found")

// DefaultListLimit applies when ListRuns is called with a non-positive limit.
const DefaultListLimit = 20

// HistoryStore persists deployment run summaries.
type HistoryStore interface {
	// RecordRun stores a completed run together with its results.
	RecordRun(ctx context.Context, s *domain.Summary) error
	// ListRuns returns the most recent runs first. Results are not populated.
	ListRuns(ctx context.Context, limit int) ([]*domain.Summary, error)
	// GetRun returns one run with its results in run order.
	GetRun(ctx context.Context, id string) (*domain.Summary, error)
	Close() error
}
