// Package reconcile brings a remote n8n instance in line with local workflow
// definitions: create or update by name, then activate when requested.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shonenark/ark-gateway/internal/domain"
)

// Remote is the subset of the n8n API the reconciler needs.
type Remote interface {
	ListWorkflows(ctx context.Context) ([]domain.RemoteWorkflow, error)
	CreateWorkflow(ctx context.Context, def *domain.WorkflowDefinition) (*domain.RemoteWorkflow, error)
	UpdateWorkflow(ctx context.Context, id string, def *domain.WorkflowDefinition) (*domain.RemoteWorkflow, error)
	ActivateWorkflow(ctx context.Context, id string) error
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithDryRun makes Deploy stop after the lookup and report the action it
// would have taken.
func WithDryRun(dryRun bool) Option {
	return func(r *Reconciler) { r.dryRun = dryRun }
}

// Reconciler deploys one workflow definition at a time. It never retries;
// re-running the deployment is the retry.
type Reconciler struct {
	remote Remote
	logger *slog.Logger
	dryRun bool
}

// New creates a reconciler against remote.
func New(remote Remote, opts ...Option) *Reconciler {
	r := &Reconciler{remote: remote, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Deploy validates def, then creates or updates it by name and activates it
// if def.Active is set. Every failure is returned inside the result.
func (r *Reconciler) Deploy(ctx context.Context, def *domain.WorkflowDefinition) domain.DeploymentResult {
	if def == nil {
		return domain.Failed("", &domain.ValidationError{Reason: "empty definition"})
	}
	logger := r.logger.With(slog.String("workflow", def.Name))

	warnings, err := def.Validate()
	if err != nil {
		logger.Warn("workflow rejected", slog.String("error", err.Error()))
		return domain.Failed(def.Name, err)
	}
	for _, w := range warnings {
		logger.Warn("workflow validation warning", slog.String("warning", w))
	}

	result := r.apply(ctx, logger, def)
	result.Warnings = warnings
	return result
}

func (r *Reconciler) apply(ctx context.Context, logger *slog.Logger, def *domain.WorkflowDefinition) domain.DeploymentResult {
	existing, err := r.find(ctx, def.Name)
	if err != nil {
		logger.Error("workflow lookup failed", slog.String("error", err.Error()))
		return domain.Failed(def.Name, err)
	}

	if r.dryRun {
		if existing != nil {
			return domain.Succeeded(def.Name, existing.ID, domain.ActionUpdate)
		}
		// Nothing exists remotely yet; "dry-run" stands in for the id.
		return domain.Succeeded(def.Name, "dry-run", domain.ActionCreate)
	}

	var (
		remote *domain.RemoteWorkflow
		action domain.DeployAction
	)
	if existing != nil {
		action = domain.ActionUpdated
		remote, err = r.remote.UpdateWorkflow(ctx, existing.ID, def)
	} else {
		action = domain.ActionCreated
		remote, err = r.remote.CreateWorkflow(ctx, def)
	}
	if err != nil {
		logger.Error("workflow write failed", slog.String("action", string(action)), slog.String("error", err.Error()))
		return domain.Failed(def.Name, err)
	}

	logger.Info("workflow "+string(action), slog.String("remote_id", remote.ID))
	result := domain.Succeeded(def.Name, remote.ID, action)

	if def.Active {
		if err := r.remote.ActivateWorkflow(ctx, remote.ID); err != nil {
			logger.Error("workflow activation failed", slog.String("remote_id", remote.ID), slog.String("error", err.Error()))
			failed := domain.Failed(def.Name, err)
			failed.Action = action
			return failed
		}
		result.Activated = true
		logger.Info("workflow activated", slog.String("remote_id", remote.ID))
	}

	return result
}

// find lists every remote workflow and returns the one named name, or nil.
func (r *Reconciler) find(ctx context.Context, name string) (*domain.RemoteWorkflow, error) {
	workflows, err := r.remote.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("look up %q: %w", name, err)
	}
	for i := range workflows {
		if workflows[i].Name == name {
			return &workflows[i], nil
		}
	}
	return nil, nil
}
