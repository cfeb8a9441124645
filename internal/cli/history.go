package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/shonenark/ark-gateway/internal/domain"
	"github.com/shonenark/ark-gateway/internal/runtime"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(g *GlobalOptions) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded deployments, or show one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runHistory(cmd.Context(), g, runID, limit, format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	cmd.Flags().StringVar(&format, "format", "table", "output format (table, json)")
	return cmd
}

func runHistory(ctx context.Context, g *GlobalOptions, runID string, limit int, rawFormat string, w io.Writer) error {
	format, err := parseFormat(rawFormat)
	if err != nil {
		return err
	}

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	store, err := runtime.OpenStore(cfg.Storage)
	if err != nil {
		return err
	}
	if store == nil {
		return &domain.ConfigError{Reason: "deployment history is disabled", Hint: "set storage.type to sqlite"}
	}
	defer store.Close()

	if runID != "" {
		run, err := store.GetRun(ctx, runID)
		if err != nil {
			return err
		}
		return report(w, format, run)
	}

	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if format == FormatJSON {
		if runs == nil {
			runs = []*domain.Summary{}
		}
		return writeJSON(w, runs)
	}
	printRuns(w, runs)
	return nil
}
