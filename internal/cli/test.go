package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/shonenark/ark-gateway/internal/deploy"
	"github.com/shonenark/ark-gateway/internal/runtime"
)

// NewTestCommand creates the test command.
func NewTestCommand(g *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that n8n is reachable with the configured API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(cmd.Context(), g, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runTest(ctx context.Context, g *GlobalOptions, stdout, stderr io.Writer) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireN8N(); err != nil {
		return err
	}

	orch := deploy.New(runtime.NewClient(cfg), deploy.WithLogger(g.newLogger(stderr, false)))
	if err := orch.TestConnection(ctx); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s connected to %s\n", styleOK.Render("ok"), cfg.N8N.APIURL)
	return nil
}
