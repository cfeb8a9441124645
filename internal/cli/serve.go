package cli

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shonenark/ark-gateway/internal/runtime"
)

const shutdownGrace = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(g *GlobalOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook gateway",
		Long: `Serve receives signed webhooks on POST /webhooks/{workflow}, validates them
and forwards them to n8n. The deployment history is served under /admin
behind Basic-Auth. Logs are written as JSON to stderr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			logger := g.newLogger(cmd.ErrOrStderr(), true)

			gw, err := runtime.New(runtime.WithConfig(cfg), runtime.WithLogger(logger))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return gw.Run(ctx, shutdownGrace)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides PORT)")
	return cmd
}
