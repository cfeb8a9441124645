// Package deploy drives a full deployment run: a pre-flight connection test,
// then every workflow file in a directory reconciled in order.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/reconcile"
)

// Phase is a step of a deployment run.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTestingConnection
	PhaseConnectionFailed
	PhaseConnected
	PhaseReconciling
	PhaseSummarizing
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseIdle:              "idle",
	PhaseTestingConnection: "testing-connection",
	PhaseConnectionFailed:  "connection-failed",
	PhaseConnected:         "connected",
	PhaseReconciling:       "reconciling",
	PhaseSummarizing:       "summarizing",
	PhaseDone:              "done",
}

func (p Phase) String() string { return phaseNames[p] }

// Remote is the n8n API surface a run needs: the pre-flight plus whatever the
// reconciler uses.
type Remote interface {
	reconcile.Remote
	Ping(ctx context.Context) error
}

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, s *domain.Summary) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecorder records every completed run.
func WithRecorder(rec Recorder) Option {
	return func(o *Orchestrator) { o.recorder = rec }
}

// WithDryRun reports what would change without writing to the remote.
func WithDryRun(dryRun bool) Option {
	return func(o *Orchestrator) { o.dryRun = dryRun }
}

// OnPhase registers an observer called on every phase transition.
func OnPhase(fn func(Phase)) Option {
	return func(o *Orchestrator) { o.onPhase = fn }
}

// Orchestrator runs deployments. A run is strictly sequential; an
// Orchestrator must not be used for two runs at once.
type Orchestrator struct {
	remote     Remote
	reconciler *reconcile.Reconciler
	recorder   Recorder
	logger     *slog.Logger
	dryRun     bool
	onPhase    func(Phase)
	phase      Phase
}

// New creates an orchestrator against remote.
func New(remote Remote, opts ...Option) *Orchestrator {
	o := &Orchestrator{remote: remote, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	o.reconciler = reconcile.New(remote, reconcile.WithLogger(o.logger), reconcile.WithDryRun(o.dryRun))
	return o
}

// Phase returns the phase of the current or last run.
func (o *Orchestrator) Phase() Phase { return o.phase }

func (o *Orchestrator) enter(p Phase) {
	o.phase = p
	o.logger.Debug("deploy phase", slog.String("phase", p.String()))
	if o.onPhase != nil {
		o.onPhase(p)
	}
}

// TestConnection runs only the pre-flight check.
func (o *Orchestrator) TestConnection(ctx context.Context) error {
	if err := o.remote.Ping(ctx); err != nil {
		if domain.IsConnectivity(err) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	return nil
}

// DeployAll reconciles every *.json file in dir. Configuration and
// connectivity problems abort the run with an error and no summary; any
// per-workflow failure is reported in the summary instead.
func (o *Orchestrator) DeployAll(ctx context.Context, dir string) (*domain.Summary, error) {
	o.enter(PhaseIdle)

	files, err := WorkflowFiles(dir)
	if err != nil {
		return nil, err
	}

	o.enter(PhaseTestingConnection)
	if err := o.TestConnection(ctx); err != nil {
		o.enter(PhaseConnectionFailed)
		o.logger.Error("connection test failed", slog.String("error", err.Error()))
		return nil, err
	}
	o.enter(PhaseConnected)

	summary := &domain.Summary{
		RunID:     uuid.New().String(),
		Directory: dir,
		StartedAt: time.Now().UTC(),
		DryRun:    o.dryRun,
		Results:   []domain.DeploymentResult{},
	}

	o.enter(PhaseReconciling)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		summary.Add(o.deployFile(ctx, path))
	}

	o.enter(PhaseSummarizing)
	summary.Duration = time.Since(summary.StartedAt)
	o.logger.Info("deployment finished",
		slog.String("run_id", summary.RunID),
		slog.Int("total", summary.Total),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.Duration),
	)

	if o.recorder != nil && !o.dryRun {
		if err := o.recorder.RecordRun(ctx, summary); err != nil {
			o.logger.Warn("failed to record deployment run", slog.String("error", err.Error()))
		}
	}

	o.enter(PhaseDone)
	return summary, nil
}

func (o *Orchestrator) deployFile(ctx context.Context, path string) domain.DeploymentResult {
	base := filepath.Base(path)
	logger := o.logger.With(slog.String("file", base))

	def, err := LoadWorkflow(path)
	if err != nil {
		logger.Error("workflow file rejected", slog.String("error", err.Error()))
		res := domain.Failed(strings.TrimSuffix(base, filepath.Ext(base)), err)
		res.File = base
		return res
	}

	logger.Info("deploying workflow", slog.String("workflow", def.Name))
	res := o.reconciler.Deploy(ctx, def)
	res.File = base
	if res.WorkflowName == "" {
		res.WorkflowName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return res
}

// WorkflowFiles lists the *.json files directly inside dir, sorted by name.
func WorkflowFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("workflow directory %s: %v", dir, err), Hint: "set WORKFLOWS_DIR or pass --dir"}
	}
	if !info.IsDir() {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("%s is not a directory", dir), Hint: "set WORKFLOWS_DIR or pass --dir"}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &domain.ConfigError{Reason: fmt.Sprintf("read %s: %v", dir, err)}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// LoadWorkflow reads and decodes one workflow file.
func LoadWorkflow(path string) (*domain.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ValidationError{Reason: fmt.Sprintf("read file: %v", err)}
	}
	return domain.ParseWorkflow(data)
}
