package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/shonenark/ark-gateway/internal/config"
	"github.com/shonenark/ark-gateway/internal/runtime"
)

// NewInfoCommand creates the info command.
func NewInfoCommand(g *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show configuration, remote workflows and the last deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(cmd.Context(), g, cmd.OutOrStdout())
		},
	}
}

func runInfo(ctx context.Context, g *GlobalOptions, w io.Writer) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}

	printConfig(w, cfg)

	if err := cfg.RequireN8N(); err != nil {
		return err
	}

	workflows, err := runtime.NewClient(cfg).ListWorkflows(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%s (%d)\n", styleHeader.Render("Remote workflows"), len(workflows))
	if len(workflows) > 0 {
		tbl := newTable(w, "ID", "Name", "Active", "Updated")
		for _, wf := range workflows {
			active := styleDim.Render("no")
			if wf.Active {
				active = styleOK.Render("yes")
			}
			updated := ""
			if !wf.UpdatedAt.IsZero() {
				updated = wf.UpdatedAt.Local().Format(time.DateTime)
			}
			tbl.AddRow(wf.ID, wf.Name, active, updated)
		}
		tbl.Print()
	}

	store, err := runtime.OpenStore(cfg.Storage)
	if err != nil || store == nil {
		return nil
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil
	}
	last := runs[0]
	fmt.Fprintf(w, "\n%s %s at %s: %d/%d succeeded\n",
		styleHeader.Render("Last deployment"), last.RunID,
		last.StartedAt.Local().Format(time.DateTime), last.Succeeded, last.Total)
	return nil
}

func printConfig(w io.Writer, cfg *config.Config) {
	webhookURL := cfg.N8N.WebhookURL
	if webhookURL == "" {
		webhookURL = styleDim.Render("(not set)")
	}

	tbl := newTable(w, "Setting", "Value")
	tbl.AddRow("environment", fmt.Sprintf("%s (%s)", cfg.Tier, cfg.Tier.Policy(cfg.StagingDeployment)))
	tbl.AddRow("n8n api url", cfg.N8N.APIURL)
	tbl.AddRow("n8n api key", mask(cfg.N8N.APIKey))
	tbl.AddRow("n8n api key header", cfg.N8N.APIKeyHeader)
	tbl.AddRow("n8n webhook url", webhookURL)
	tbl.AddRow("webhook secret", mask(cfg.Webhook.Secret))
	tbl.AddRow("staging username", cfg.Auth.Username)
	tbl.AddRow("staging password", mask(cfg.Auth.Password))
	tbl.AddRow("workflows dir", cfg.Workflows.Dir)
	tbl.AddRow("storage", cfg.Storage.Type)
	tbl.Print()
}
