package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shonenark/ark-gateway/internal/deploy"
	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/runtime"
	"github.com/shonenark/ark-gateway/internal/watch"
)

// DeployOptions contains the options for the deploy command.
type DeployOptions struct {
	Dir    string
	DryRun bool
	Watch  bool
	Format string
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(g *GlobalOptions) *cobra.Command {
	opts := &DeployOptions{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update every workflow file on n8n",
		Long: `Deploy reconciles each *.json file in the workflows directory against n8n.
A workflow is matched by name: an existing one is updated, a new one is
created, and workflows marked "active": true are activated afterwards.

The connection is tested first; if n8n is unreachable nothing is changed.
A failing workflow does not stop the others, but any failure makes the
command exit non-zero.

Examples:
  arkctl deploy                      # deploy ./workflows
  arkctl deploy --dir n8n/flows      # deploy another directory
  arkctl deploy --dry-run            # show what would change
  arkctl deploy --watch              # redeploy whenever a file changes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runDeploy(ctx, g, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "workflow directory (default from WORKFLOWS_DIR or ./workflows)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "look up each workflow but do not write to n8n")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "keep running and redeploy when workflow files change")
	cmd.Flags().StringVar(&opts.Format, "format", "table", "output format (table, json)")

	return cmd
}

func runDeploy(ctx context.Context, g *GlobalOptions, opts *DeployOptions, stdout, stderr io.Writer) error {
	format, err := parseFormat(opts.Format)
	if err != nil {
		return err
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireN8N(); err != nil {
		return err
	}

	dir := opts.Dir
	if dir == "" {
		dir = cfg.Workflows.Dir
	}

	logger := g.newLogger(stderr, false)

	store, err := runtime.OpenStore(cfg.Storage)
	if err != nil {
		logger.Warn("deployment history disabled", slog.String("error", err.Error()))
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	orchOpts := []deploy.Option{
		deploy.WithLogger(logger),
		deploy.WithDryRun(opts.DryRun),
	}
	if store != nil {
		orchOpts = append(orchOpts, deploy.WithRecorder(store))
	}
	orch := deploy.New(runtime.NewClient(cfg), orchOpts...)

	summary, err := orch.DeployAll(ctx, dir)
	if err != nil {
		return err
	}
	if err := report(stdout, format, summary); err != nil {
		return err
	}

	if !opts.Watch {
		return summaryError(summary)
	}
	return watchAndDeploy(ctx, dir, orch, format, stdout, logger)
}

func watchAndDeploy(ctx context.Context, dir string, orch *deploy.Orchestrator, format OutputFormat, stdout io.Writer, logger *slog.Logger) error {
	w, err := watch.New(dir, watch.WithLogger(logger))
	if err != nil {
		return err
	}

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		summary, err := orch.DeployAll(ctx, dir)
		if err != nil {
			logger.Error("redeploy failed", slog.String("error", err.Error()))
			return
		}
		if err := report(stdout, format, summary); err != nil {
			logger.Error("failed to print summary", slog.String("error", err.Error()))
		}
	})
}

func report(w io.Writer, format OutputFormat, s *domain.Summary) error {
	if format == FormatJSON {
		return writeJSON(w, s)
	}
	printSummary(w, s)
	return nil
}

func summaryError(s *domain.Summary) error {
	if s.OK() {
		return nil
	}
	return fmt.Errorf("%w: %d of %d workflows failed to deploy", domain.ErrWorkflow, s.Failed, s.Total)
}
