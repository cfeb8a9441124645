package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/storage"
)

func run(id string, results ...domain.DeploymentResult) *domain.Summary {
	s := &domain.Summary{RunID: id, StartedAt: time.Now().UTC(), Directory: "./workflows"}
	for _, r := range results {
		s.Add(r)
	}
	return s
}

func TestMemoryStore_RecordAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	in := run("run-1",
		domain.Succeeded("signup-flow", "1", domain.ActionCreated),
		domain.Failed("upload-moderation", errors.New("create workflow: remote returned 400")),
	)
	if err := store.RecordRun(ctx, in); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	// Later changes to the caller's summary must not leak into the store.
	in.Results[0].WorkflowName = "mutated"

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Total != 2 || got.Failed != 1 {
		t.Errorf("counters = %d/%d, want 2/1", got.Total, got.Failed)
	}
	if got.Results[0].WorkflowName != "signup-flow" {
		t.Errorf("Results[0] = %q, want signup-flow", got.Results[0].WorkflowName)
	}
}

func TestMemoryStore_Duplicate(t *testing.T) {
	store := New()
	if err := store.RecordRun(context.Background(), run("dup")); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := store.RecordRun(context.Background(), run("dup")); err == nil {
		t.Error("expected error recording the same run twice")
	}
}

func TestMemoryStore_ListNewestFirst(t *testing.T) {
	store := New()
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		if err := store.RecordRun(ctx, run(fmt.Sprintf("run-%d", i), domain.Succeeded("a", "1", domain.ActionUpdated))); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 3)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len = %d, want 3", len(runs))
	}
	for i, want := range []string{"run-5", "run-4", "run-3"} {
		if runs[i].RunID != want {
			t.Errorf("runs[%d] = %s, want %s", i, runs[i].RunID, want)
		}
		if runs[i].Results != nil {
			t.Errorf("runs[%d] carries results", i)
		}
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	_, err := New().GetRun(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
}
